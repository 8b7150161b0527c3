package mpc_test

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/experiment"
	"github.com/san-kum/legmpc/internal/gait"
	"github.com/san-kum/legmpc/internal/mpc"
	"github.com/san-kum/legmpc/internal/solver"
)

// rf is the right-front contact index.
const rf = 2

func build() (*experiment.Experiment, []float64, []float64) {
	return buildWith(func(*config.Config) {})
}

func buildWith(mutate func(*config.Config)) (*experiment.Experiment, []float64, []float64) {
	cfg := config.DefaultConfig()
	cfg.MPC.Workers = 2
	mutate(cfg)
	e, err := experiment.Build(cfg, "mpc", nil)
	Expect(err).NotTo(HaveOccurred())
	q, v := e.InitialState().Split(e.Model.DimQ())
	return e, q, v
}

var _ = Describe("MPC", func() {
	var (
		e   *experiment.Experiment
		c   *mpc.MPC
		q   []float64
		v   []float64
		ctx context.Context
	)

	BeforeEach(func() {
		e, q, v = build()
		c = e.MPC
		ctx = context.Background()
	})

	Describe("lifecycle", func() {
		It("rejects updates before Init", func() {
			Expect(c.Status()).To(Equal(mpc.Uninitialized))
			_, err := c.Update(ctx, 0, q, v)
			Expect(err).To(MatchError(mpc.ErrNotInitialized))
		})

		It("moves from initialized to running", func() {
			cmd, err := c.Init(ctx, 0, q, v, e.Config.MPC.Init)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Status()).To(Equal(mpc.Initialized))
			Expect(cmd.U).To(HaveLen(12))

			cmd, err = c.Update(ctx, 0.02, q, v)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Status()).To(Equal(mpc.Running))
			Expect(cmd.Time).To(Equal(0.02))
			Expect(cmd.U).To(HaveLen(12))
			Expect(cmd.X).To(HaveLen(36))
			r, cols := cmd.K.Dims()
			Expect(r).To(Equal(12))
			Expect(cols).To(Equal(36))
			Expect(cmd.Diagnostics.Iterations).To(BeNumerically("<=", 1))
		})

		It("starts inside a diagonal stance phase", func() {
			cmd, err := c.Init(ctx, 0.6, q, v, e.Config.MPC.Init)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ContactStatus(0.6)).To(Equal([]bool{true, false, false, true}))
			Expect(dynamo.State(cmd.U).IsValid()).To(BeTrue())
		})

		It("starts when the first lift comes early in the horizon", func() {
			e, q, v = buildWith(func(cfg *config.Config) { cfg.Gait.InitialLiftTime = 0.2 })
			_, err := e.MPC.Init(ctx, 0, q, v, e.Config.MPC.Init)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects malformed measurements", func() {
			_, err := c.Init(ctx, 0, q[:10], v, e.Config.MPC.Init)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

			bad := append([]float64(nil), v...)
			bad[0] = math.NaN()
			_, err = c.Init(ctx, 0, q, bad, e.Config.MPC.Init)
			Expect(err).To(MatchError(dynamo.ErrInvalidState))
		})
	})

	Describe("SetGaitPattern", func() {
		DescribeTable("validation",
			func(nilPlanner bool, swing, lift float64) {
				var planner gait.Planner = e.Planner
				if nilPlanner {
					planner = nil
				}
				Expect(c.SetGaitPattern(planner, swing, lift)).To(MatchError(dynamo.ErrConfig))
			},
			Entry("nil planner", true, 0.25, 0.5),
			Entry("zero swing time", false, 0.0, 0.5),
			Entry("negative lift time", false, 0.25, -0.1),
		)

		It("leaves the feet planted with a zero step", func() {
			e.Planner.SetGaitPattern(r3.Vector{}, 0)
			Expect(c.SetGaitPattern(e.Planner, 0.25, 0.5)).To(Succeed())
			_, err := c.Init(ctx, 0, q, v, e.Config.MPC.Init)
			Expect(err).NotTo(HaveOccurred())
			p := c.Pattern()
			for i := 0; i < 4; i++ {
				Expect(p.Foothold(i, 2).Sub(p.InitialFoothold(i)).Norm()).To(BeNumerically("<", 1e-12))
			}
		})
	})

	Describe("trotting scenario", func() {
		BeforeEach(func() {
			_, err := c.Init(ctx, 0, q, v, e.Config.MPC.Init)
			Expect(err).NotTo(HaveOccurred())
		})

		It("references the right-front foot mid swing", func() {
			p0 := c.Pattern().InitialFoothold(rf)
			ref := c.Generator().Foot(rf).Position(0.625)
			want := p0.Add(r3.Vector{X: 0.075, Z: 0.1})
			Expect(ref.Sub(want).Norm()).To(BeNumerically("<", 1e-9))
		})

		It("schedules the diagonal pair together", func() {
			Expect(c.ContactStatus(0.4)).To(Equal([]bool{true, true, true, true}))
			Expect(c.ContactStatus(0.6)).To(Equal([]bool{true, false, false, true}))
			Expect(c.ContactStatus(0.8)).To(Equal([]bool{false, true, true, false}))
		})

		It("reports the gait phase", func() {
			Expect(c.Phase()).To(Equal(0.0))
			_, err := c.Update(ctx, 0.6, q, v)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Phase()).To(BeNumerically("~", 0.1, 1e-12))
			Expect(c.Time()).To(Equal(0.6))
		})

		It("converges the initial solve", func() {
			diag := c.Solution().Diagnostics
			Expect(diag.Converged).To(BeTrue(), diag.String())
			Expect(diag.Feasible).To(BeTrue(), diag.String())
		})

		It("keeps contact forces inside the friction cone", func() {
			sol := c.Solution()
			Expect(sol.Diagnostics.Feasible).To(BeTrue())
			forces, err := c.OCP().ContactForces(sol.X, sol.U)
			Expect(err).NotTo(HaveOccurred())
			mu := e.Config.Constraints.Friction
			for _, knot := range forces {
				for _, f := range knot {
					Expect(f.Z).To(BeNumerically(">=", -1e-9))
					Expect(math.Hypot(f.X, f.Y)).To(BeNumerically("<=", mu*f.Z+1e-9))
				}
			}
		})

		It("produces the same command from a restored state", func() {
			Expect(c.SetSolverOptions(tick())).To(Succeed())
			state := c.State()
			first, err := c.Update(ctx, 0.02, q, v)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Restore(state)).To(Succeed())
			second, err := c.Update(ctx, 0.02, q, v)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.U).To(Equal(first.U))
			Expect(second.K.RawMatrix().Data).To(Equal(first.K.RawMatrix().Data))
		})

		It("rejects a snapshot without a solution", func() {
			Expect(c.Restore(mpc.State{Status: mpc.Running})).To(MatchError(dynamo.ErrConfig))
		})

		It("replans from the last measurement", func() {
			e.Planner.SetGaitPattern(r3.Vector{Y: 0.1}, 0)
			Expect(c.SetGaitPattern(e.Planner, 0.25, 0.5)).To(Succeed())
			Expect(c.Pattern().Step()).To(Equal(r3.Vector{Y: 0.1}))
			_, err := c.Update(ctx, 0.02, q, v)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("replanning while trotting", func() {
		It("keeps every reference at the measured robot", func() {
			e.Planner.SetGaitPattern(r3.Vector{}, 0)
			Expect(c.SetGaitPattern(e.Planner, 0.25, 0.5)).To(Succeed())
			_, err := c.Init(ctx, 0, q, v, e.Config.MPC.Init)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Update(ctx, 1.6, q, v)
			Expect(err).NotTo(HaveOccurred())

			e.Planner.SetGaitPattern(r3.Vector{X: 0.15}, 0)
			Expect(c.SetGaitPattern(e.Planner, 0.25, 0.5)).To(Succeed())

			m := e.Model.Clone()
			m.ForwardKinematics(q)
			gen := c.Generator()
			for i, id := range m.ContactFrames() {
				jump := gen.Foot(i).Position(1.6).Sub(m.FramePosition(id)).Norm()
				Expect(jump).To(BeNumerically("<", 1e-9), "contact %d", i)
			}
			Expect(gen.CoM().Position(1.6).Sub(m.CoM()).Norm()).To(BeNumerically("<", 1e-9))

			// The stance pair steps once the next swing is over.
			landing := c.Pattern().Anchor(0, 2.1).Sub(m.FramePosition(m.ContactFrames()[0]))
			Expect(landing.X).To(BeNumerically("~", 0.15, 1e-9))

			_, err = c.Update(ctx, 1.62, q, v)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})

func tick() solver.Options {
	o := solver.DefaultOptions()
	o.MaxIter = 1
	return o
}
