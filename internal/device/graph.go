package device

// Graph is an ordered, parameter-frozen recording of kernel launches.
// It is valid only on the device that recorded it and only while that
// device's arena generation is unchanged.
type Graph struct {
	device     Device
	kernels    []Kernel
	generation uint64
}

// Len returns the number of recorded operations.
func (g *Graph) Len() int { return len(g.kernels) }

func (g *Graph) Generation() uint64 { return g.generation }

// Ops returns the recorded kernel names in launch order.
func (g *Graph) Ops() []string {
	names := make([]string, len(g.kernels))
	for i, k := range g.kernels {
		names[i] = k.Name
	}
	return names
}
