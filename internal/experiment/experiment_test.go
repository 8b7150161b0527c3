package experiment

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/legmpc/internal/config"
	"github.com/san-kum/legmpc/internal/dynamo"
	"github.com/san-kum/legmpc/internal/mpc"
	"github.com/san-kum/legmpc/internal/sim"
)

func shortConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MPC.Workers = 2
	cfg.MPC.Init.MaxIter = 2
	cfg.Sim.Duration = 0.1
	return cfg
}

var _ = Describe("Build", func() {
	It("assembles the default trotting setup", func() {
		e, err := Build(shortConfig(), "mpc", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.UsesMPC()).To(BeTrue())
		Expect(e.Model.DimQ()).To(Equal(18))
		Expect(e.Problem.Cost().Terms()).To(HaveLen(6))
		Expect(e.Problem.MaxSteps()).To(Equal(3))
		Expect(e.Metrics).To(HaveLen(len(DefaultRegistry().MetricNames())))
		Expect(e.MPC.Status()).To(Equal(mpc.Uninitialized))
	})

	It("rejects unknown controllers", func() {
		_, err := Build(shortConfig(), "lqr", nil)
		Expect(err).To(MatchError(dynamo.ErrConfig))
	})

	DescribeTable("configuration errors",
		func(modify func(*config.Config)) {
			cfg := shortConfig()
			modify(cfg)
			_, err := Build(cfg, "mpc", nil)
			Expect(err).To(MatchError(dynamo.ErrConfig))
		},
		Entry("unknown contact frame", func(c *config.Config) { c.Robot.ContactFrames[0] = "FL_hand" }),
		Entry("unknown contact type", func(c *config.Config) { c.Robot.ContactTypes[0] = "line" }),
		Entry("short standing posture", func(c *config.Config) { c.Cost.QStanding = c.Cost.QStanding[:6] }),
		Entry("negative friction", func(c *config.Config) { c.Constraints.Friction = -1 }),
		Entry("no workers", func(c *config.Config) { c.MPC.Workers = 0 }),
		Entry("unknown integrator", func(c *config.Config) { c.Sim.Integrator = "leapfrog" }),
	)
})

var _ = Describe("Run", func() {
	ctx := context.Background()

	It("holds the stance with the pd baseline", func() {
		e, err := Build(shortConfig(), "pd", nil)
		Expect(err).NotTo(HaveOccurred())
		res, err := e.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Errors).To(BeEmpty())
		Expect(res.StepsTaken).To(Equal(40))
		Expect(res.Ticks).To(HaveLen(5))
		Expect(e.MPC.Status()).To(Equal(mpc.Uninitialized))
		Expect(res.Metrics["stability"]).To(Equal(1.0))
		Expect(res.Metrics["convergence_ratio"]).To(Equal(1.0))
		Expect(res.Metrics["com_tracking_rms"]).To(BeNumerically("<", 0.01))
	})

	It("closes the loop with the mpc", func() {
		e, err := Build(shortConfig(), "mpc", nil)
		Expect(err).NotTo(HaveOccurred())
		res, err := e.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.MPC.Status()).To(Equal(mpc.Running))
		Expect(res.Ticks).To(HaveLen(5))
		for _, x := range res.States {
			Expect(x.IsValid()).To(BeTrue())
		}
		Expect(res.Metrics).To(HaveKey("solve_time_ms"))
		Expect(res.Metrics["stability"]).To(Equal(1.0))
	})

	It("runs an ensemble of controllers", func() {
		var jobs []sim.Job
		for _, name := range []string{"pd", "pd"} {
			e, err := Build(shortConfig(), name, nil)
			Expect(err).NotTo(HaveOccurred())
			jobs = append(jobs, sim.Job{Name: name, Sim: e.Simulator, X0: e.InitialState(), Cfg: e.SimConfig()})
		}
		results, err := sim.NewEnsemble(2).Run(ctx, jobs)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].States[len(results[0].States)-1]).To(Equal(results[1].States[len(results[1].States)-1]))
	})
})

var _ = Describe("Registry", func() {
	It("lists controllers in order", func() {
		Expect(DefaultRegistry().ListControllers()).To(Equal([]string{"mpc", "pd"}))
	})

	It("accepts custom controllers", func() {
		r := DefaultRegistry()
		r.RegisterController("stand", func(e *Experiment) (sim.Controller, error) {
			return r.controllers["pd"](e)
		})
		e, err := r.Build(shortConfig(), "stand", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(e.UsesMPC()).To(BeFalse())
	})

	It("rejects unknown metrics", func() {
		_, err := DefaultRegistry().Metric("jerk", nil)
		Expect(err).To(MatchError(dynamo.ErrConfig))
	})
})
