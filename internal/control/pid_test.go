package control

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
)

func mustNew(t *testing.T, cfg Config) *PID {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return p
}

func TestOutputWithinBounds(t *testing.T) {
	modes := []Mode{ModePositional, ModeIncremental, ModeLegacy}
	forms := []Form{FormTime, FormParallel}
	rng := rand.New(rand.NewSource(7))

	for _, mode := range modes {
		for _, form := range forms {
			p := mustNew(t, Config{
				Mode: mode, Form: form,
				Kp: 50, Ti: 3, Td: 4, Ki: 2, Kd: 8,
				Tp: 0.5, OutMin: -300, OutMax: 1200, AntiWindup: mode == ModeLegacy,
			})
			for i := 0; i < 5000; i++ {
				sp := rng.Float64()*200 - 100
				meas := rng.Float64()*200 - 100
				u := p.Update(sp, meas)
				if u < -300 || u > 1200 || math.IsNaN(u) {
					t.Fatalf("%s/%s step %d: output %v outside [-300, 1200]", mode, form, i, u)
				}
			}
		}
	}
}

func TestProportionalOnly(t *testing.T) {
	p := mustNew(t, Config{Kp: 4, Tp: 1, OutMin: -100, OutMax: 100})
	if u := p.Update(25, 20); u != 20 {
		t.Errorf("expected 20, got %f", u)
	}
	if u := p.Update(25, 30); u != -20 {
		t.Errorf("expected -20, got %f", u)
	}
}

func TestPositionalTimeForm(t *testing.T) {
	p := mustNew(t, Config{Kp: 2, Ti: 10, Td: 3, Tp: 1, OutMin: -1000, OutMax: 1000})

	// e=5, integral=5, derivative from the reset error 0 is 5 → 2*(5 + 0.5 + 15) = 41
	if u := p.Update(25, 20); math.Abs(u-41) > 1e-12 {
		t.Errorf("first update: expected 41, got %f", u)
	}
	// e=4, integral=9, derivative=-1 → 2*(4 + 0.9 - 3) = 3.8
	if u := p.Update(25, 21); math.Abs(u-3.8) > 1e-12 {
		t.Errorf("second update: expected 3.8, got %f", u)
	}
}

func TestTimeFormScalesWithSamplePeriod(t *testing.T) {
	// Tp=0.5: integral = 0.5 then 1.0, output 1 + (0.5/1)*1.0 = 1.5
	p := mustNew(t, Config{Kp: 1, Ti: 1, Tp: 0.5, OutMin: -100, OutMax: 100})
	p.Update(1, 0)
	if u := p.Update(1, 0); math.Abs(u-1.5) > 1e-12 {
		t.Errorf("expected 1.5, got %f", u)
	}

	// derivative term is (Td/Tp)*Δe/Tp: 2*(1 + (0.5/0.5)*2) = 6
	d := mustNew(t, Config{Kp: 2, Td: 0.5, Tp: 0.5, OutMin: -100, OutMax: 100})
	if u := d.Update(1, 0); math.Abs(u-6) > 1e-12 {
		t.Errorf("expected 6, got %f", u)
	}
}

func TestPositionalParallelForm(t *testing.T) {
	p := mustNew(t, Config{Form: FormParallel, Kp: 30, Ki: 0.2, Kd: 10, Tp: 1, OutMin: -1e6, OutMax: 1e6})
	p.Update(25, 20)
	// e=3, integral=8, derivative=-2 → 90 + 1.6 - 20
	if u := p.Update(25, 22); math.Abs(u-71.6) > 1e-9 {
		t.Errorf("expected 71.6, got %f", u)
	}
}

func TestFirstUpdateUsesZeroPreviousError(t *testing.T) {
	p := mustNew(t, Config{Form: FormParallel, Kp: 1, Kd: 1, Tp: 1, OutMin: -100, OutMax: 100})
	if u := p.Update(1, 0); u != 2 {
		t.Errorf("expected 1 + 1*(1-0)/1 = 2, got %f", u)
	}

	p.Update(1, 0)
	p.Reset()
	if u := p.Update(1, 0); u != 2 {
		t.Errorf("after reset expected the derivative kick again, got %f", u)
	}
}

func TestSkipInitialKick(t *testing.T) {
	p := mustNew(t, Config{Form: FormParallel, Kp: 1, Kd: 1, Tp: 1, SkipInitialKick: true, OutMin: -100, OutMax: 100})
	if u := p.Update(1, 0); u != 1 {
		t.Errorf("expected proportional-only 1, got %f", u)
	}
	// e=0.5, derivative=-0.5
	if u := p.Update(1, 0.5); u != 0 {
		t.Errorf("expected 0, got %f", u)
	}
	p.Reset()
	if u := p.Update(1, 0); u != 1 {
		t.Errorf("reset should skip the kick again, got %f", u)
	}
}

func TestFormsAgree(t *testing.T) {
	const kp, ti, td, tp = 4.0, 20.0, 2.0, 0.5
	timeForm := mustNew(t, Config{Form: FormTime, Kp: kp, Ti: ti, Td: td, Tp: tp, OutMin: -1e6, OutMax: 1e6})
	parallel := mustNew(t, Config{Form: FormParallel, Kp: kp, Ki: kp * tp / ti, Kd: kp * td / tp, Tp: tp, OutMin: -1e6, OutMax: 1e6})

	meas := 10.0
	for i := 0; i < 50; i++ {
		a := timeForm.Update(20, meas)
		b := parallel.Update(20, meas)
		if math.Abs(a-b) > 1e-9 {
			t.Fatalf("step %d: time form %f != parallel form %f", i, a, b)
		}
		meas += 0.3
	}
}

// reference is a direct transcription of the control laws with state reset
// to zero, used to check Update across sample periods.
type reference struct {
	integral, prevErr, prevOut float64
}

func (r *reference) timeForm(kp, ti, td, tp, e, lo, hi float64) float64 {
	r.integral += e * tp
	derivative := (e - r.prevErr) / tp
	u := kp * (e + (tp/ti)*r.integral + (td/tp)*derivative)
	u = math.Max(lo, math.Min(hi, u))
	r.prevErr = e
	return u
}

func (r *reference) parallel(kp, ki, kd, tp, e, lo, hi float64) float64 {
	r.integral += e * tp
	derivative := (e - r.prevErr) / tp
	u := kp*e + ki*r.integral + kd*derivative
	u = math.Max(lo, math.Min(hi, u))
	r.prevErr = e
	return u
}

func (r *reference) incremental(kp, ti, tp, e, lo, hi float64) float64 {
	u := r.prevOut + kp*((e-r.prevErr)+(tp/ti)*e)
	u = math.Max(lo, math.Min(hi, u))
	r.prevErr, r.prevOut = e, u
	return u
}

func TestMatchesReferenceAcrossSamplePeriods(t *testing.T) {
	const lo, hi = -2000.0, 2000.0
	meas := []float64{20, 20.4, 21.1, 22.0, 23.2, 24.1, 24.8, 25.3, 25.1, 24.9, 25.0, 24.95}

	for _, tp := range []float64{0.1, 0.5, 1, 2} {
		t.Run(fmt.Sprintf("time/tp=%g", tp), func(t *testing.T) {
			p := mustNew(t, Config{Kp: 5, Ti: 70, Td: 10, Tp: tp, OutMin: lo, OutMax: hi})
			var ref reference
			for i, m := range meas {
				want := ref.timeForm(5, 70, 10, tp, 25-m, lo, hi)
				if got := p.Update(25, m); math.Abs(got-want) > 1e-9 {
					t.Fatalf("tp=%v step %d: got %v, want %v", tp, i, got, want)
				}
			}
		})
		t.Run(fmt.Sprintf("parallel/tp=%g", tp), func(t *testing.T) {
			p := mustNew(t, Config{Form: FormParallel, Kp: 30, Ki: 0.2, Kd: 10, Tp: tp, OutMin: lo, OutMax: hi})
			var ref reference
			for i, m := range meas {
				want := ref.parallel(30, 0.2, 10, tp, 25-m, lo, hi)
				if got := p.Update(25, m); math.Abs(got-want) > 1e-9 {
					t.Fatalf("tp=%v step %d: got %v, want %v", tp, i, got, want)
				}
			}
		})
		t.Run(fmt.Sprintf("incremental/tp=%g", tp), func(t *testing.T) {
			p := mustNew(t, Config{Mode: ModeIncremental, Kp: 0.5, Ti: 60, Tp: tp, OutMin: 0, OutMax: hi})
			var ref reference
			for i, m := range meas {
				want := ref.incremental(0.5, 60, tp, 25-m, 0, hi)
				if got := p.Update(25, m); math.Abs(got-want) > 1e-9 {
					t.Fatalf("tp=%v step %d: got %v, want %v", tp, i, got, want)
				}
			}
		})
	}
}

func TestIncremental(t *testing.T) {
	p := mustNew(t, Config{Mode: ModeIncremental, Kp: 0.5, Ti: 60, Tp: 1, OutMin: 0, OutMax: 2000})

	uPrev, ePrev := 0.0, 0.0
	meas := []float64{20, 20.5, 21, 21.2, 22, 23.5}
	for i, m := range meas {
		e := 23 - m
		want := uPrev + 0.5*((e-ePrev)+(1.0/60)*e)
		want = math.Max(0, math.Min(2000, want))

		got := p.Update(23, m)
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("step %d: expected %v, got %v", i, want, got)
		}
		uPrev, ePrev = got, e
	}
}

func TestIncrementalSaturates(t *testing.T) {
	p := mustNew(t, Config{Mode: ModeIncremental, Kp: 1000, Ti: 1, Tp: 1, OutMin: 0, OutMax: 500})
	for i := 0; i < 10; i++ {
		if u := p.Update(30, 10); u != 500 {
			t.Fatalf("step %d: expected saturated output 500, got %f", i, u)
		}
	}
	// saturated u_prev lets the output respond immediately once the error flips
	if u := p.Update(10, 30); u != 0 {
		t.Errorf("expected 0 after error reversal, got %f", u)
	}
}

func TestLegacyIntegratesPreviousError(t *testing.T) {
	p := mustNew(t, Config{Mode: ModeLegacy, Form: FormParallel, Ki: 1, Tp: 1, OutMin: -1e6, OutMax: 1e6})

	if u := p.Update(10, 0); u != 0 {
		t.Errorf("first update should integrate the reset error 0, got %f", u)
	}
	if u := p.Update(10, 4); u != 10 {
		t.Errorf("second update should integrate previous error 10, got %f", u)
	}
	if u := p.Update(10, 4); u != 16 {
		t.Errorf("third update should add previous error 6, got %f", u)
	}
}

func TestLegacyDerivativeKick(t *testing.T) {
	p := mustNew(t, Config{Mode: ModeLegacy, Form: FormParallel, Kd: 2, Tp: 1, OutMin: -1e6, OutMax: 1e6})
	if u := p.Update(25, 20); u != 10 {
		t.Errorf("expected derivative kick 10 from reset error, got %f", u)
	}

	q := mustNew(t, Config{Form: FormParallel, Kd: 2, Tp: 1, OutMin: -1e6, OutMax: 1e6})
	if u := q.Update(25, 20); u != 10 {
		t.Errorf("positional mode should see the same kick, got %f", u)
	}
}

func TestZeroIntegralTimeDisablesIntegral(t *testing.T) {
	p := mustNew(t, Config{Kp: 1, Ti: 0, Tp: 1, OutMin: -100, OutMax: 100})
	for i := 0; i < 20; i++ {
		if u := p.Update(5, 0); u != 5 {
			t.Fatalf("step %d: expected pure proportional 5, got %f", i, u)
		}
	}
	if d := p.Diagnostics(); d.Integral != 0 {
		t.Errorf("integral should stay 0, got %f", d.Integral)
	}
}

func TestNonPositiveSamplePeriodSkipsDerivative(t *testing.T) {
	for _, tp := range []float64{0, -1} {
		p := mustNew(t, Config{Kp: 1, Td: 10, Tp: tp, OutMin: -100, OutMax: 100})
		p.Update(5, 0)
		u := p.Update(5, 3)
		if math.IsNaN(u) || math.IsInf(u, 0) {
			t.Fatalf("tp=%v: output not finite: %v", tp, u)
		}
		if u != 2 {
			t.Errorf("tp=%v: expected proportional-only 2, got %f", tp, u)
		}
	}
}

func TestAntiWindup(t *testing.T) {
	p := mustNew(t, Config{Kp: 5, Ti: 10, Tp: 1, OutMin: 0, OutMax: 100, AntiWindup: true})
	for i := 0; i < 1000; i++ {
		p.Update(50, 0)
	}
	if got := p.Diagnostics().Integral; got != 20 {
		t.Errorf("integral should be bounded to out_max/kp = 20, got %f", got)
	}

	free := mustNew(t, Config{Kp: 5, Ti: 10, Tp: 1, OutMin: 0, OutMax: 100})
	for i := 0; i < 1000; i++ {
		free.Update(50, 0)
	}
	if got := free.Diagnostics().Integral; got != 50000 {
		t.Errorf("unguarded integral should keep growing, got %f", got)
	}
}

func TestSymmetricBounds(t *testing.T) {
	p := mustNew(t, Config{Kp: 1000, Tp: 1, OutMin: -3500, OutMax: 3500})
	if u := p.Update(24, 32); u != -3500 {
		t.Errorf("expected full cooling -3500, got %f", u)
	}
	if u := p.Update(24, 16); u != 3500 {
		t.Errorf("expected full heating 3500, got %f", u)
	}
}

func TestReset(t *testing.T) {
	p := mustNew(t, Config{Kp: 1, Ti: 5, Td: 1, Tp: 1, OutMin: -100, OutMax: 100})
	first := p.Update(10, 0)
	p.Update(10, 2)
	p.Update(10, 4)

	p.Reset()
	d := p.Diagnostics()
	if d.Integral != 0 || d.Error != 0 || d.LastOutput != 0 {
		t.Errorf("reset left state behind: %+v", d)
	}
	if again := p.Update(10, 0); again != first {
		t.Errorf("after reset expected %f, got %f", first, again)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown mode", Config{Mode: "bang-bang", OutMax: 1}},
		{"unknown form", Config{Form: "ideal", OutMax: 1}},
		{"negative ti", Config{Ti: -1, OutMax: 1}},
		{"negative td", Config{Td: -1, OutMax: 1}},
		{"nan kp", Config{Kp: math.NaN(), OutMax: 1}},
		{"inf out_max", Config{OutMax: math.Inf(1)}},
		{"inverted bounds", Config{OutMin: 10, OutMax: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if _, err := New(Config{Kp: 1, Tp: 1, OutMax: 1}); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
