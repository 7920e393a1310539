package sim_test

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

// fallIntegrator applies gravity to every massive particle and records how
// often it ran and whether it ever saw a dirty force buffer.
type fallIntegrator struct {
	calls      int
	staleForce atomic.Bool
	poisonAt   int
	failAt     int
}

func (f *fallIntegrator) Name() string { return "fall" }

func (f *fallIntegrator) Integrate(m *scene.Model, in, out *sim.State, dt float64) error {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return errors.New("solver exploded")
	}
	poison := f.poisonAt > 0 && f.calls == f.poisonAt
	return m.Device.Launch(device.Kernel{
		Name: "fall",
		Dim:  m.ParticleCount(),
		Fn: func(start, end int) {
			for i := start; i < end; i++ {
				if in.ParticleF[i] != (mgl64.Vec3{}) || out.ParticleF[i] != (mgl64.Vec3{}) {
					f.staleForce.Store(true)
				}
				in.ParticleF[i] = m.Gravity.Mul(m.ParticleMass[i])
				v := in.ParticleQd[i].Add(in.ParticleF[i].Mul(m.ParticleInvMass[i] * dt))
				out.ParticleQd[i] = v
				out.ParticleQ[i] = in.ParticleQ[i].Add(v.Mul(dt))
				if poison && i == end-1 {
					out.ParticleQ[i][1] = math.NaN()
				}
			}
		},
	})
}

type countingObserver struct {
	resets   int
	substeps int
	outs     []*sim.State
}

func (c *countingObserver) OnReset(*sim.State) { c.resets++ }
func (c *countingObserver) OnSubstep(_ int64, _, out *sim.State) {
	c.substeps++
	c.outs = append(c.outs, out)
}

func chainModel() *scene.Model {
	b := scene.NewBuilder()
	for i := 0; i < 11; i++ {
		mass := 1.0
		if i == 0 {
			mass = 0
		}
		_, err := b.AddParticle(mgl64.Vec3{float64(i), 1, 0}, mgl64.Vec3{}, mass, scene.WithRadius(0.2))
		Expect(err).NotTo(HaveOccurred())
		if i > 0 {
			_, err = b.AddSpring(i-1, i, 1e6, 1, 0)
			Expect(err).NotTo(HaveOccurred())
		}
	}
	m, err := b.Finalize(device.NewCPU())
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("Scheduler", func() {
	var (
		model *scene.Model
		integ *fallIntegrator
		obs   *countingObserver
	)

	BeforeEach(func() {
		model = chainModel()
		integ = &fallIntegrator{}
		obs = &countingObserver{}
	})

	newScheduler := func(substeps int) *sim.Scheduler {
		s, err := sim.NewScheduler(model, integ, sim.Config{FPS: 60, Substeps: substeps})
		Expect(err).NotTo(HaveOccurred())
		s.AddObserver(obs)
		return s
	}

	It("integrates S times and resets forces 2S times per frame", func() {
		s := newScheduler(3)
		Expect(s.AdvanceFrame()).To(Succeed())

		Expect(integ.calls).To(Equal(3))
		Expect(obs.resets).To(Equal(6))
		Expect(obs.substeps).To(Equal(3))
		Expect(s.Steps()).To(Equal(int64(3)))
		Expect(s.Time()).To(BeNumerically("~", 1.0/60, 1e-15))
	})

	It("never hands the integrator stale forces", func() {
		s := newScheduler(4)
		for i := 0; i < 3; i++ {
			Expect(s.AdvanceFrame()).To(Succeed())
		}
		Expect(integ.staleForce.Load()).To(BeFalse())
	})

	It("alternates buffer roles after every substep", func() {
		s := newScheduler(1)
		bufs := s.Buffers()
		first, second := bufs[0], bufs[1]
		Expect(s.Current()).To(BeIdenticalTo(first))

		for k := 1; k <= 4; k++ {
			Expect(s.AdvanceFrame()).To(Succeed())
			if k%2 == 1 {
				Expect(s.Current()).To(BeIdenticalTo(second))
				Expect(s.Next()).To(BeIdenticalTo(first))
			} else {
				Expect(s.Current()).To(BeIdenticalTo(first))
			}
			Expect(s.Current()).To(BeIdenticalTo(obs.outs[len(obs.outs)-1]))
		}
	})

	It("exposes the last written buffer after an odd substep count", func() {
		s := newScheduler(3)
		Expect(s.AdvanceFrame()).To(Succeed())
		Expect(s.Parity()).To(Equal(1))
		Expect(s.Current()).To(BeIdenticalTo(obs.outs[2]))
	})

	It("keeps kinematic anchors in place", func() {
		s := newScheduler(2)
		before := s.Current().ParticleQ[0]
		for i := 0; i < 10; i++ {
			Expect(s.AdvanceFrame()).To(Succeed())
		}
		Expect(s.Current().ParticleQ[0]).To(Equal(before))
		Expect(s.Current().ParticleQ[5][1]).To(BeNumerically("<", 1))
	})

	It("propagates divergence as a fatal error", func() {
		integ.poisonAt = 3
		s := newScheduler(2)
		Expect(s.AdvanceFrame()).To(Succeed())

		err := s.AdvanceFrame()
		var div *dynamo.DivergenceError
		Expect(errors.As(err, &div)).To(BeTrue())
		Expect(err).To(MatchError(dynamo.ErrDivergence))
		Expect(div.Substep).To(Equal(int64(2)))
		Expect(div.Index).To(Equal(10))
		Expect(div.Integrator).To(Equal("fall"))
	})

	It("returns integration failures without retrying", func() {
		integ.failAt = 2
		s := newScheduler(4)
		err := s.AdvanceFrame()
		Expect(err).To(MatchError(ContainSubstring("solver exploded")))
		Expect(integ.calls).To(Equal(2))
		Expect(s.Steps()).To(BeZero())
	})

	It("changes its signature when reconfigured", func() {
		s := newScheduler(2)
		sig := s.Signature()
		Expect(sig.Substeps).To(Equal(2))
		Expect(sig.Dt).To(BeNumerically("~", 1.0/120, 1e-15))

		Expect(s.SetSubsteps(3)).To(Succeed())
		Expect(s.Signature()).NotTo(Equal(sig))
		Expect(s.SetSubsteps(0)).To(MatchError(dynamo.ErrConfiguration))
	})

	It("restores identical initial conditions", func() {
		s := newScheduler(2)
		initial, err := sim.NewState(model)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.AdvanceFrame()).To(Succeed())

		Expect(s.Reset(initial)).To(Succeed())
		Expect(s.Steps()).To(BeZero())
		Expect(s.Current().ParticleQ).To(Equal(initial.ParticleQ))
	})

	DescribeTable("rejects invalid configuration",
		func(cfg sim.Config) {
			_, err := sim.NewScheduler(model, integ, cfg)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		},
		Entry("zero fps", sim.Config{FPS: 0, Substeps: 1}),
		Entry("negative fps", sim.Config{FPS: -60, Substeps: 1}),
		Entry("zero substeps", sim.Config{FPS: 60, Substeps: 0}),
	)
})
