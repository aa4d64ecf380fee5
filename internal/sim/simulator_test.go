package sim_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/thermsim/internal/control"
	"github.com/san-kum/thermsim/internal/sim"
	"github.com/san-kum/thermsim/internal/thermal"
)

func enclosure() thermal.Model {
	return thermal.Model{
		Name:     "enclosure",
		Media:    []thermal.Medium{thermal.Air(0.25)},
		Surfaces: []thermal.Surface{{Name: "walls", U: 1.6, Area: 2.5}},
		MaxPower: 2000,
	}
}

func roomParams() sim.Params {
	room := thermal.Room(4, 4, 2.5)
	room.MaxPower = 2000
	return sim.Params{
		Controller: control.Config{Kp: 5, Ti: 70, Td: 10},
		Model:      room,
		Setpoint:   25,
		Initial:    20,
		Ambient:    15,
		Dt:         1,
		Duration:   3600,
	}
}

type countingMetric struct{ n int }

func (c *countingMetric) Name() string                { return "count" }
func (c *countingMetric) Observe(sim.Sample, float64) { c.n++ }
func (c *countingMetric) Value() float64              { return float64(c.n) }
func (c *countingMetric) Reset()                      { c.n = 0 }

var _ = Describe("Simulator", func() {
	Describe("output series", func() {
		It("has floor(duration/dt) samples of equal length", func() {
			p := roomParams()
			p.Dt = 0.7
			p.Duration = 100

			res, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Samples).To(HaveLen(142))
			Expect(res.Temperatures()).To(HaveLen(142))
			Expect(res.Powers()).To(HaveLen(142))
			Expect(res.Losses()).To(HaveLen(142))
			Expect(res.Samples[0].Temperature).To(Equal(20.0))
			Expect(res.Samples[1].Time).To(BeNumerically("~", 0.7, 1e-12))
			Expect(res.Samples[90].Minutes()).To(BeNumerically("~", 63.0/60, 1e-12))
		})

		It("counts steps that divide the duration exactly", func() {
			p := roomParams()
			p.Dt = 0.1
			p.Duration = 60

			res, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Samples).To(HaveLen(600))
		})

		It("stays finite with aggressive gains and every loss term active", func() {
			p := roomParams()
			p.Controller = control.Config{Kp: 1e4, Ti: 0.5, Td: 50}
			p.Model.Cooling = true
			p.Model.VentilationFlow = 0.05
			p.Model.HeatGain = 300
			p.Model.Opening = &thermal.Opening{Height: 1.2, Area: 0.5}
			p.Windows = []sim.Window{{Start: 100, End: 900}}

			res, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			for _, s := range res.Samples {
				Expect(math.IsNaN(s.Temperature) || math.IsInf(s.Temperature, 0)).To(BeFalse())
				Expect(s.Power).To(BeNumerically(">=", -2000))
				Expect(s.Power).To(BeNumerically("<=", 2000))
			}
		})

		It("is deterministic", func() {
			p := roomParams()
			p.RandomOpenings = &sim.RandomOpenings{Count: 3, Length: 120, Seed: 42}

			a, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			b, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Samples).To(Equal(b.Samples))
			Expect(a.Final).To(Equal(b.Final))
		})
	})

	Describe("physics", func() {
		It("conserves temperature with no loss and no power", func() {
			p := sim.Params{
				Model:    thermal.Model{Media: []thermal.Medium{thermal.Air(30)}},
				Setpoint: 25, Initial: 18, Ambient: 18,
				Dt: 1, Duration: 600,
			}
			res, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			for _, s := range res.Samples {
				Expect(s.Temperature).To(Equal(18.0))
			}
			Expect(res.Final).To(Equal(18.0))
		})

		It("decays monotonically toward ambient with the actuator disabled", func() {
			p := roomParams()
			p.Model.MaxPower = 0
			p.Ambient = 10

			res, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			temps := res.Temperatures()
			for i := 1; i < len(temps); i++ {
				Expect(temps[i]).To(BeNumerically("<", temps[i-1]))
				Expect(temps[i]).To(BeNumerically(">", 10))
			}
			Expect(res.Powers()).To(HaveEach(0.0))
		})

		It("ends colder when the aperture is open", func() {
			p := roomParams()
			p.Duration = 60

			closed, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())

			p.Windows = []sim.Window{{Start: 0, End: 60}}
			open, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())

			Expect(open.Final).To(BeNumerically("<", closed.Final))
			for _, s := range open.Samples {
				Expect(s.Open).To(BeTrue())
			}
		})

		It("treats the manual toggle like a window over the whole run", func() {
			p := roomParams()
			p.Duration = 300
			p.Windows = []sim.Window{{Start: 0, End: 300}}
			windowed, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())

			p.Windows = nil
			p.Open = true
			toggled, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(toggled.Samples).To(Equal(windowed.Samples))
		})

		It("adds a constant heat gain", func() {
			p := sim.Params{
				Model:    thermal.Model{Media: []thermal.Medium{{Name: "block", Mass: 1, SpecificHeat: 100}}, HeatGain: 50},
				Initial:  20,
				Ambient:  20,
				Dt:       1,
				Duration: 10,
			}
			res, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Final).To(BeNumerically("~", 25, 1e-9))
		})
	})

	Describe("closed loop on a small enclosure", func() {
		var res *sim.Result

		BeforeEach(func() {
			var err error
			res, err = sim.Run(sim.Params{
				Controller: control.Config{Kp: 5, Ti: 70, Td: 10, SkipInitialKick: true},
				Model:      enclosure(),
				Setpoint:   25,
				Initial:    20,
				Ambient:    15,
				Dt:         1,
				Duration:   7200,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("rises monotonically up to its peak", func() {
			temps := res.Temperatures()
			peak := 0
			for i, v := range temps {
				if v > temps[peak] {
					peak = i
				}
			}
			Expect(peak).To(BeNumerically(">", 0))
			for i := 1; i <= peak; i++ {
				Expect(temps[i]).To(BeNumerically(">=", temps[i-1]))
			}
		})

		It("overshoots by less than a tenth of a degree", func() {
			Expect(res.Temperatures()).To(HaveEach(BeNumerically("<", 25.1)))
			Expect(res.Overshoot).To(BeNumerically("<", 0.4))
		})

		It("settles at the setpoint", func() {
			last := res.Samples[len(res.Samples)-1].Temperature
			Expect(math.Abs(res.Final - last)).To(BeNumerically("<", 1e-6))
			Expect(res.Final).To(BeNumerically("~", 25, 0.05))
		})

		It("reports the controller state after the last step", func() {
			last := res.Samples[len(res.Samples)-1]
			Expect(res.Controller.LastOutput).To(Equal(last.Power))
			Expect(res.Controller.Error).To(Equal(last.Setpoint - last.Temperature))
			Expect(res.Controller.Integral).To(BeNumerically(">", 0))
		})

		It("kicks on the first step from a zero previous error and still settles", func() {
			kicked, err := sim.Run(sim.Params{
				Controller: control.Config{Kp: 5, Ti: 70, Td: 10},
				Model:      enclosure(),
				Setpoint:   25,
				Initial:    20,
				Ambient:    15,
				Dt:         1,
				Duration:   7200,
			})
			Expect(err).NotTo(HaveOccurred())

			// 5*(5 + 5/70 + 10*5)
			Expect(kicked.Samples[0].Power).To(BeNumerically("~", 5*(5+5.0/70+50), 1e-9))
			Expect(res.Samples[0].Power).To(BeNumerically("~", 5*(5+5.0/70), 1e-9))
			Expect(kicked.Temperatures()).To(HaveEach(BeNumerically("<", 25.1)))
			Expect(kicked.Final).To(BeNumerically("~", 25, 0.05))
		})
	})

	Describe("setpoint schedule", func() {
		It("switches the setpoint at the given times", func() {
			p := roomParams()
			p.Duration = 600
			p.Schedule = []sim.SetpointStep{{At: 200, Setpoint: 18}, {At: 400, Setpoint: 22}}

			res, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Samples[199].Setpoint).To(Equal(25.0))
			Expect(res.Samples[200].Setpoint).To(Equal(18.0))
			Expect(res.Samples[399].Setpoint).To(Equal(18.0))
			Expect(res.Samples[400].Setpoint).To(Equal(22.0))
		})

		It("ignores the order steps are listed in", func() {
			p := roomParams()
			p.Schedule = []sim.SetpointStep{{At: 400, Setpoint: 22}, {At: 200, Setpoint: 18}}
			Expect(p.SetpointAt(100)).To(Equal(25.0))
			Expect(p.SetpointAt(300)).To(Equal(18.0))
			Expect(p.SetpointAt(500)).To(Equal(22.0))
		})
	})

	Describe("random openings", func() {
		It("draws the same windows for the same seed", func() {
			p := roomParams()
			p.RandomOpenings = &sim.RandomOpenings{Count: 4, Length: 60, Seed: 7}

			a, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			b, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Windows).To(HaveLen(4))
			Expect(a.Windows).To(Equal(b.Windows))

			p.RandomOpenings.Seed = 8
			c, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Windows).NotTo(Equal(a.Windows))
		})

		It("keeps windows inside the run", func() {
			p := roomParams()
			p.RandomOpenings = &sim.RandomOpenings{Count: 20, Length: 300, Seed: 1}

			res, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			for _, w := range res.Windows {
				Expect(w.Start).To(BeNumerically(">=", 0))
				Expect(w.End).To(BeNumerically("<=", p.Duration))
			}
		})
	})

	Describe("metrics", func() {
		It("observes every sample", func() {
			s := sim.New()
			m := &countingMetric{}
			s.AddMetric(m)

			p := roomParams()
			p.Duration = 50
			res, err := s.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Metrics).To(HaveKeyWithValue("count", 50.0))

			_, err = s.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.n).To(Equal(50), "metrics are reset between runs")
		})

		It("reports zero overshoot for a zero setpoint", func() {
			p := roomParams()
			p.Setpoint = 0
			res, err := sim.Run(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Overshoot).To(BeZero())
		})
	})

	DescribeTable("rejects invalid parameters",
		func(field string, mutate func(*sim.Params)) {
			p := roomParams()
			mutate(&p)

			_, err := sim.Run(p)
			Expect(err).To(MatchError(sim.ErrConfig))

			var cfgErr *sim.ConfigError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Field).To(Equal(field))
		},
		Entry("zero dt", "dt", func(p *sim.Params) { p.Dt = 0 }),
		Entry("negative dt", "dt", func(p *sim.Params) { p.Dt = -1 }),
		Entry("zero duration", "duration", func(p *sim.Params) { p.Duration = 0 }),
		Entry("negative duration", "duration", func(p *sim.Params) { p.Duration = -60 }),
		Entry("duration below dt", "duration", func(p *sim.Params) { p.Duration = 0.5 }),
		Entry("nan setpoint", "setpoint", func(p *sim.Params) { p.Setpoint = math.NaN() }),
		Entry("inf ambient", "ambient", func(p *sim.Params) { p.Ambient = math.Inf(-1) }),
		Entry("zero capacitance", "model", func(p *sim.Params) { p.Model.Media = []thermal.Medium{{Name: "void"}} }),
		Entry("negative max power", "model", func(p *sim.Params) { p.Model.MaxPower = -1 }),
		Entry("inverted window", "windows", func(p *sim.Params) { p.Windows = []sim.Window{{Start: 60, End: 10}} }),
		Entry("bad controller", "controller", func(p *sim.Params) { p.Controller.Ti = -5 }),
	)

	It("exposes the underlying model and controller errors", func() {
		p := roomParams()
		p.Model.Media = nil
		_, err := sim.Run(p)
		Expect(err).To(MatchError(thermal.ErrInvalidModel))

		p = roomParams()
		p.Controller.Mode = "on-off"
		_, err = sim.Run(p)
		Expect(err).To(MatchError(control.ErrInvalidConfig))
	})
})

var _ = Describe("Latest", func() {
	It("keeps only the newest run", func() {
		var l sim.Latest
		first := l.Begin()
		second := l.Begin()

		Expect(l.Finish(second, &sim.Result{Final: 2}, nil)).To(BeTrue())
		Expect(l.Finish(first, &sim.Result{Final: 1}, nil)).To(BeFalse())

		res, err := l.Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Final).To(Equal(2.0))
		Expect(l.Pending()).To(BeFalse())
	})

	It("reports a pending run until it finishes", func() {
		var l sim.Latest
		t := l.Begin()
		Expect(l.Pending()).To(BeTrue())
		l.Finish(t, nil, sim.ErrConfig)
		Expect(l.Pending()).To(BeFalse())

		_, err := l.Result()
		Expect(err).To(MatchError(sim.ErrConfig))
	})
})

var _ = Describe("Batch", func() {
	It("returns results in input order", func() {
		params := make([]sim.Params, 6)
		for i := range params {
			params[i] = roomParams()
			params[i].Duration = 120
			params[i].Setpoint = 20 + float64(i)
		}

		results, err := sim.NewBatch(nil, 3).Run(context.Background(), params)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(6))
		for i, r := range results {
			Expect(r.Samples[0].Setpoint).To(Equal(20 + float64(i)))
		}
	})

	It("fails when any run is invalid", func() {
		params := []sim.Params{roomParams(), roomParams()}
		params[1].Dt = 0

		_, err := sim.NewBatch(nil, 2).Run(context.Background(), params)
		Expect(err).To(MatchError(sim.ErrConfig))
	})
})
