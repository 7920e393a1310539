// Package device provides the compute device the simulation dispatches its
// data-parallel kernels to.
//
// A [Kernel] is a named operation over an index range. Devices execute
// kernels directly or, between [Device.BeginCapture] and
// [Device.EndCapture], record them into a [Graph] that can be re-issued
// verbatim with [Device.LaunchGraph]:
//
//	dev := device.NewCPU()
//	if err := device.CheckCapture(dev); err == nil {
//		dev.BeginCapture()
//		step()
//		g, _ := dev.EndCapture()
//		dev.LaunchGraph(g)
//	}
//
// Recording requires both deferred graphs and pooled memory ([Caps]); state
// buffers are allocated from the device [Arena] so their addresses stay fixed
// for the lifetime of a recording.
package device
