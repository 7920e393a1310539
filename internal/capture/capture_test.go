package capture_test

import (
	"io"
	"math"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/framesim/internal/capture"
	"github.com/san-kum/framesim/internal/device"
	"github.com/san-kum/framesim/internal/dynamo"
	"github.com/san-kum/framesim/internal/integrators"
	"github.com/san-kum/framesim/internal/scene"
	"github.com/san-kum/framesim/internal/sim"
)

var quiet = log.New(io.Discard)

func chain(dev device.Device) *scene.Model {
	b := scene.NewBuilder()
	for i := 0; i < 11; i++ {
		mass := 1.0
		if i == 0 {
			mass = 0
		}
		_, err := b.AddParticle(mgl64.Vec3{float64(i), 1, 0}, mgl64.Vec3{}, mass, scene.WithRadius(0.2))
		Expect(err).NotTo(HaveOccurred())
		if i > 0 {
			_, err = b.AddSpring(i-1, i, 1e3, 1, 0)
			Expect(err).NotTo(HaveOccurred())
		}
	}
	m, err := b.Finalize(dev)
	Expect(err).NotTo(HaveOccurred())
	return m
}

func cloth(dev device.Device) *scene.Model {
	b := scene.NewBuilder()
	_, err := b.AddClothGrid(scene.ClothGrid{
		Placement:  scene.NewTransform(mgl64.Vec3{0, 1, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})),
		DimX:       6,
		DimY:       6,
		CellX:      0.1,
		CellY:      0.1,
		Mass:       0.1,
		FixLeft:    true,
		TriKe:      1e2,
		TriKa:      1e2,
		TriKd:      1,
		AddSprings: true,
		SpringKe:   1e3,
	})
	Expect(err).NotTo(HaveOccurred())
	Expect(b.SetGround(true)).To(Succeed())
	m, err := b.Finalize(dev)
	Expect(err).NotTo(HaveOccurred())
	return m
}

func rigidChain(dev device.Device) *scene.Model {
	b := scene.NewBuilder()
	_, err := b.AddArticulation()
	Expect(err).NotTo(HaveOccurred())
	parent := scene.World
	for i := 0; i < 8; i++ {
		body, err := b.AddBody(scene.Translation(float64(i), 0, 1), 0.1)
		Expect(err).NotTo(HaveOccurred())
		_, err = b.AddShapeBox(body, scene.Translation(0.5, 0, 0), mgl64.Vec3{0.5, 0.1, 0.1}, scene.Material{Density: 10})
		Expect(err).NotTo(HaveOccurred())
		xf := scene.Translation(1, 0, 0)
		if i == 0 {
			xf = scene.Translation(0, 0, 1)
		}
		_, err = b.AddJointRevolute(scene.JointParams{
			Parent:      parent,
			Child:       body,
			Axis:        mgl64.Vec3{0, 0, 1},
			ParentXform: xf,
			ChildXform:  scene.Identity(),
			Target:      math.Pi,
			TargetKe:    1e5,
			TargetKd:    1e2,
			Limit:       &scene.JointLimit{Lower: -2 * math.Pi, Upper: 2 * math.Pi},
			LimitKe:     1e5,
			LimitKd:     1,
		})
		Expect(err).NotTo(HaveOccurred())
		parent = body
	}
	m, err := b.Finalize(dev)
	Expect(err).NotTo(HaveOccurred())
	return m
}

func scheduler(m *scene.Model, integ sim.Integrator, substeps int) *sim.Scheduler {
	s, err := sim.NewScheduler(m, integ, sim.Config{FPS: 60, Substeps: substeps})
	Expect(err).NotTo(HaveOccurred())
	return s
}

func snapshot(s *sim.Scheduler) ([]mgl64.Vec3, []mgl64.Vec3) {
	cur := s.Current()
	return append([]mgl64.Vec3(nil), cur.ParticleQ...), append([]mgl64.Vec3(nil), cur.ParticleQd...)
}

type articulated struct {
	jointQ, jointQd []float64
	bodyQ           []scene.Transform
}

func articulation(s *sim.Scheduler) articulated {
	cur := s.Current()
	return articulated{
		jointQ:  append([]float64(nil), cur.JointQ...),
		jointQd: append([]float64(nil), cur.JointQd...),
		bodyQ:   append([]scene.Transform(nil), cur.BodyQ...),
	}
}

var _ = Describe("Accelerator", func() {
	DescribeTable("replayed frames match direct dispatch bit for bit",
		func(build func(device.Device) *scene.Model, integ func() sim.Integrator, substeps, frames int) {
			direct := scheduler(build(device.NewCPU()), integ(), substeps)
			for i := 0; i < frames; i++ {
				Expect(direct.AdvanceFrame()).To(Succeed())
			}

			dev := device.NewCPU()
			replayed := scheduler(build(dev), integ(), substeps)
			Expect(replayed.AdvanceFrame()).To(Succeed())

			acc := capture.New(replayed, capture.WithLogger(quiet))
			h, err := acc.MaybeCapture()
			Expect(err).NotTo(HaveOccurred())
			Expect(h).NotTo(BeNil())
			for i := 1; i < frames; i++ {
				Expect(acc.Replay(h)).To(Succeed())
			}

			wantQ, wantQd := snapshot(direct)
			gotQ, gotQd := snapshot(replayed)
			Expect(gotQ).To(Equal(wantQ))
			Expect(gotQd).To(Equal(wantQd))
			Expect(articulation(replayed)).To(Equal(articulation(direct)))
			Expect(replayed.Steps()).To(Equal(direct.Steps()))
			Expect(replayed.Parity()).To(Equal(direct.Parity()))
			Expect(acc.Replays()).To(Equal(int64(frames - 1)))
			Expect(dev.GraphLaunches()).To(Equal(int64(frames - 1)))
		},
		Entry("chain, even substeps", chain, func() sim.Integrator { return integrators.NewSemiImplicit() }, 2, 8),
		Entry("chain, odd substeps", chain, func() sim.Integrator { return integrators.NewSemiImplicit() }, 3, 8),
		Entry("cloth, xpbd", cloth, func() sim.Integrator { return integrators.NewXPBD(2) }, 5, 6),
		Entry("cloth, semi-implicit", cloth, func() sim.Integrator { return integrators.NewSemiImplicit() }, 10, 4),
		Entry("rigid chain, featherstone, odd substeps", rigidChain, func() sim.Integrator { return integrators.NewFeatherstone() }, 3, 8),
		Entry("rigid chain, featherstone, even substeps", rigidChain, func() sim.Integrator { return integrators.NewFeatherstone() }, 10, 4),
	)

	It("records without advancing the simulation", func() {
		dev := device.NewCPU()
		s := scheduler(chain(dev), integrators.NewSemiImplicit(), 2)
		before, _ := snapshot(s)

		acc := capture.New(s, capture.WithLogger(quiet))
		h, err := acc.MaybeCapture()
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Ops()).To(BeNumerically(">", 0))

		after, _ := snapshot(s)
		Expect(after).To(Equal(before))
		Expect(s.Steps()).To(BeZero())
		Expect(dev.Launches()).To(BeZero())
	})

	It("returns the same handle on later calls", func() {
		s := scheduler(chain(device.NewCPU()), integrators.NewSemiImplicit(), 2)
		acc := capture.New(s, capture.WithLogger(quiet))
		h1, _ := acc.MaybeCapture()
		h2, _ := acc.MaybeCapture()
		Expect(h2).To(BeIdenticalTo(h1))
	})

	Context("after the scheduler changes", func() {
		var (
			s   *sim.Scheduler
			acc *capture.Accelerator
			h   *capture.Handle
		)

		BeforeEach(func() {
			s = scheduler(chain(device.NewCPU()), integrators.NewSemiImplicit(), 2)
			acc = capture.New(s, capture.WithLogger(quiet))
			var err error
			h, err = acc.MaybeCapture()
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects replay with a different substep count", func() {
			Expect(s.SetSubsteps(4)).To(Succeed())
			Expect(acc.Replay(h)).To(MatchError(dynamo.ErrUsage))
			Expect(s.Steps()).To(BeZero())
		})

		It("rejects replay with a different integrator", func() {
			Expect(s.SetIntegrator(integrators.NewXPBD(2))).To(Succeed())
			Expect(acc.Replay(h)).To(MatchError(dynamo.ErrUsage))
		})

		It("rejects replay after device memory is reallocated", func() {
			s.Model().Device.Arena().Reset()
			err := acc.Replay(h)
			var usage *dynamo.UsageError
			Expect(err).To(BeAssignableToTypeOf(usage))
		})

		It("can be recaptured after invalidation", func() {
			Expect(s.SetSubsteps(4)).To(Succeed())
			acc.Invalidate()
			h2, err := acc.MaybeCapture()
			Expect(err).NotTo(HaveOccurred())
			Expect(acc.Replay(h2)).To(Succeed())
			Expect(s.Steps()).To(Equal(int64(4)))
		})
	})

	It("rejects a nil handle", func() {
		s := scheduler(chain(device.NewCPU()), integrators.NewSemiImplicit(), 2)
		acc := capture.New(s, capture.WithLogger(quiet))
		Expect(acc.Replay(nil)).To(MatchError(dynamo.ErrUsage))
	})

	Context("on a device without graph support", func() {
		It("degrades to direct dispatch with identical results", func() {
			eager, err := device.Open("cpu-eager")
			Expect(err).NotTo(HaveOccurred())
			s := scheduler(chain(eager), integrators.NewSemiImplicit(), 2)
			acc := capture.New(s, capture.WithLogger(quiet))

			h, err := acc.MaybeCapture()
			Expect(err).NotTo(HaveOccurred())
			Expect(h).To(BeNil())
			Expect(acc.Reason()).To(MatchError(dynamo.ErrDeviceCapability))

			direct := scheduler(chain(device.NewCPU()), integrators.NewSemiImplicit(), 2)
			for i := 0; i < 5; i++ {
				Expect(acc.Step()).To(Succeed())
				Expect(direct.AdvanceFrame()).To(Succeed())
			}
			gotQ, _ := snapshot(s)
			wantQ, _ := snapshot(direct)
			Expect(gotQ).To(Equal(wantQ))
			Expect(acc.Replays()).To(BeZero())
		})

		It("reports pooled memory as missing", func() {
			dev := device.NewCPU(device.WithMemPool(false))
			s := scheduler(chain(dev), integrators.NewSemiImplicit(), 2)
			acc := capture.New(s, capture.WithLogger(quiet))
			h, err := acc.MaybeCapture()
			Expect(err).NotTo(HaveOccurred())
			Expect(h).To(BeNil())
			Expect(acc.Reason()).To(MatchError(ContainSubstring("pooled memory")))
		})
	})

	It("propagates divergence from a replayed frame", func() {
		b := scene.NewBuilder()
		_, err := b.AddParticle(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{}, 0)
		Expect(err).NotTo(HaveOccurred())
		_, err = b.AddParticle(mgl64.Vec3{1, 1, 0}, mgl64.Vec3{}, 1e-6)
		Expect(err).NotTo(HaveOccurred())
		_, err = b.AddSpring(0, 1, 1e9, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		m, err := b.Finalize(device.NewCPU())
		Expect(err).NotTo(HaveOccurred())

		s := scheduler(m, integrators.NewSemiImplicit(), 1)
		acc := capture.New(s, capture.WithLogger(quiet))
		h, err := acc.MaybeCapture()
		Expect(err).NotTo(HaveOccurred())

		var stepErr error
		for i := 0; i < 200 && stepErr == nil; i++ {
			stepErr = acc.Replay(h)
		}
		Expect(stepErr).To(MatchError(dynamo.ErrDivergence))
	})
})
