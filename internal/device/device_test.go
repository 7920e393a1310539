package device

import (
	"errors"
	"testing"

	"github.com/san-kum/framesim/internal/dynamo"
)

func fillKernel(buf []float64, v float64) Kernel {
	return Kernel{Name: "fill", Dim: len(buf), Fn: func(start, end int) {
		for i := start; i < end; i++ {
			buf[i] += v
		}
	}}
}

func TestCPULaunchExecutesImmediately(t *testing.T) {
	dev := NewCPU(WithWorkers(4), WithMinChunk(8))
	buf := Alloc[float64](dev.Arena(), 100)

	if err := dev.Launch(fillKernel(buf, 2)); err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	for i, v := range buf {
		if v != 2 {
			t.Fatalf("buf[%d] = %f, expected 2", i, v)
		}
	}
	if dev.Launches() != 1 {
		t.Errorf("expected 1 launch, got %d", dev.Launches())
	}
}

func TestCPUCaptureDefersExecution(t *testing.T) {
	dev := NewCPU()
	buf := Alloc[float64](dev.Arena(), 16)

	if err := dev.BeginCapture(); err != nil {
		t.Fatalf("begin capture: %v", err)
	}
	if !dev.Capturing() {
		t.Error("expected device to report capturing")
	}
	_ = dev.Launch(fillKernel(buf, 1))
	_ = dev.Launch(fillKernel(buf, 10))

	g, err := dev.EndCapture()
	if err != nil {
		t.Fatalf("end capture: %v", err)
	}
	if buf[0] != 0 {
		t.Errorf("recorded kernels must not execute, got buf[0]=%f", buf[0])
	}
	if g.Len() != 2 {
		t.Errorf("expected 2 recorded ops, got %d", g.Len())
	}

	for i := 0; i < 3; i++ {
		if err := dev.LaunchGraph(g); err != nil {
			t.Fatalf("launch graph: %v", err)
		}
	}
	if buf[15] != 33 {
		t.Errorf("expected 33 after three replays, got %f", buf[15])
	}
	if dev.GraphLaunches() != 3 {
		t.Errorf("expected 3 graph launches, got %d", dev.GraphLaunches())
	}
	if dev.Launches() != 0 {
		t.Errorf("replay must not dispatch individual launches, got %d", dev.Launches())
	}
}

func TestCPUCaptureUsageErrors(t *testing.T) {
	dev := NewCPU()

	if _, err := dev.EndCapture(); !errors.Is(err, dynamo.ErrUsage) {
		t.Errorf("expected usage error ending without capture, got %v", err)
	}
	if err := dev.BeginCapture(); err != nil {
		t.Fatal(err)
	}
	if err := dev.BeginCapture(); !errors.Is(err, dynamo.ErrUsage) {
		t.Errorf("expected usage error on nested capture, got %v", err)
	}
	dev.AbortCapture()
	if dev.Capturing() {
		t.Error("abort should close the recording")
	}
}

func TestCaptureRequiresCapabilities(t *testing.T) {
	tests := []struct {
		name string
		dev  *CPU
		ok   bool
	}{
		{"full", NewCPU(), true},
		{"no graphs", NewCPU(WithGraphs(false)), false},
		{"no mempool", NewCPU(WithMemPool(false)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SupportsCapture(tt.dev); got != tt.ok {
				t.Errorf("SupportsCapture() = %v, want %v", got, tt.ok)
			}
			err := tt.dev.BeginCapture()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, dynamo.ErrDeviceCapability) {
				t.Errorf("expected capability error, got %v", err)
			}
		})
	}
}

func TestArenaResetInvalidatesGraph(t *testing.T) {
	dev := NewCPU()
	buf := Alloc[float64](dev.Arena(), 4)

	_ = dev.BeginCapture()
	_ = dev.Launch(fillKernel(buf, 1))
	g, _ := dev.EndCapture()

	dev.Arena().Reset()
	if err := dev.LaunchGraph(g); !errors.Is(err, dynamo.ErrUsage) {
		t.Errorf("expected usage error for stale graph, got %v", err)
	}
}

func TestGraphRejectsForeignDevice(t *testing.T) {
	a, b := NewCPU(), NewCPU()
	_ = a.BeginCapture()
	g, _ := a.EndCapture()
	if err := b.LaunchGraph(g); !errors.Is(err, dynamo.ErrUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	dev, err := Open("cpu-eager")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if dev.Name() != "cpu-eager" || dev.Caps().Graphs {
		t.Errorf("unexpected device %s caps %v", dev.Name(), dev.Caps())
	}

	if _, err := Open("tpu"); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestArenaAccounting(t *testing.T) {
	dev := NewCPU()
	_ = Alloc[float64](dev.Arena(), 10)
	_ = Alloc[int32](dev.Arena(), 4)
	if dev.Arena().Bytes() != 96 {
		t.Errorf("expected 96 bytes, got %d", dev.Arena().Bytes())
	}
	if dev.Arena().Allocs() != 2 {
		t.Errorf("expected 2 allocations, got %d", dev.Arena().Allocs())
	}
}
