// Public domain.

package pffit

import (
	"math"
	"testing"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"

	"github.com/soniakeys/unit"

	"phasefit/lightcurve"
)

func testOrbit() lightcurve.Orbit {
	return lightcurve.Orbit{
		A:           8,
		Inclination: unit.AngleFromDeg(90),
		Period:      1,
	}
}

// trueParams is the synthetic scenario used across tests.
func trueParams() Params {
	return Params{
		U1: .1, U2: .05,
		RadiusRatio: .1,
		LumRatio:    .001,
		Y1:          .4,
		C:           [6]float64{1, .02, -.01, .005, .004, -.003},
		Sigma:       1e-3,
	}
}

// synthObs builds n evenly spaced exposures in [-0.1, 0.1] days with
// slow centroid drifts, the geometry of the end-to-end scenario.
func synthObs(n int) (time, x, y []float64) {
	time = make([]float64, n)
	x = make([]float64, n)
	y = make([]float64, n)
	for i := range time {
		t := -.1 + .2*float64(i)/float64(n-1)
		time[i] = t
		x[i] = .3 * math.Sin(2*math.Pi*7*t)
		y[i] = .2*math.Cos(2*math.Pi*5*t) + .5*t
	}
	return
}

func synthSolver(t *testing.T, n int, noise float64, seed uint64) (*Solver, Params) {
	t.Helper()
	tt, x, y := synthObs(n)
	p := trueParams()
	s, err := NewSolver(testOrbit(), tt, make([]float64, n), x, y)
	if err != nil {
		t.Fatal(err)
	}
	m, err := s.Model(&p)
	if err != nil {
		t.Fatal(err)
	}
	if noise > 0 {
		rnd := xrand.New(xrand.NewSource(seed))
		for i := range m {
			m[i] += noise * rnd.NormFloat64()
		}
	}
	s, err = NewSolver(testOrbit(), tt, m, x, y)
	if err != nil {
		t.Fatal(err)
	}
	return s, p
}

func TestVectorRoundTrip(t *testing.T) {
	p := trueParams()
	v := p.Vector()
	if len(v) != Dim || len(Names()) != Dim {
		t.Fatalf("vector length %d, names %d, want %d", len(v), len(Names()), Dim)
	}
	q, err := FromVector(v)
	if err != nil {
		t.Fatal(err)
	}
	if q != p {
		t.Errorf("round trip %+v != %+v", q, p)
	}
	if _, err = FromVector(v[:Dim-1]); err == nil {
		t.Error("short vector: no error")
	}
}

func TestModelLength(t *testing.T) {
	for _, n := range []int{2, 17, 400} {
		s, p := synthSolver(t, n, 0, 0)
		m, err := s.Model(&p)
		if err != nil {
			t.Fatal(err)
		}
		if len(m) != n {
			t.Errorf("n=%d: model length %d", n, len(m))
		}
	}
}

// Scaling all six coefficients by k scales the sensitivity by k.
func TestSensitivityLinear(t *testing.T) {
	_, x, y := synthObs(50)
	c := [6]float64{1, .02, -.01, .005, .004, -.003}
	s1 := Sensitivity(&c, x, y)
	const k = 3.7
	var ck [6]float64
	for i := range c {
		ck[i] = k * c[i]
	}
	sk := Sensitivity(&ck, x, y)
	for i := range s1 {
		if math.Abs(sk[i]-k*s1[i]) > 1e-12 {
			t.Fatalf("i=%d: S(k*c) = %g, k*S(c) = %g", i, sk[i], k*s1[i])
		}
	}
}

// Systematics-only scenario: observed flux is exactly the sensitivity
// surface with no astrophysical signal and no noise; the least-squares
// fit must reproduce the coefficients to numerical precision.
func TestSystematicsOnlyRecovery(t *testing.T) {
	_, x, y := synthObs(200)
	c := [6]float64{1, .02, -.01, .005, .004, -.003}
	flux := Sensitivity(&c, x, y)
	got, err := SeedSensitivity(flux, x, y)
	if err != nil {
		t.Fatal(err)
	}
	for i := range c {
		if math.Abs(got[i]-c[i]) > 1e-10 {
			t.Errorf("c%d = %.15g, want %g", i, got[i], c[i])
		}
	}
}

func TestPriorRejection(t *testing.T) {
	s, p0 := synthSolver(t, 50, 0, 0)
	if _, ok := s.LogPosterior(&p0); !ok {
		t.Fatal("true parameters rejected")
	}
	mod := func(f func(*Params)) *Params {
		p := p0
		f(&p)
		return &p
	}
	cases := []struct {
		name string
		p    *Params
	}{
		{"rp=0", mod(func(p *Params) { p.RadiusRatio = 0 })},
		{"rp=1", mod(func(p *Params) { p.RadiusRatio = 1 })},
		{"rp=-0.1", mod(func(p *Params) { p.RadiusRatio = -.1 })},
		{"rp=1.1", mod(func(p *Params) { p.RadiusRatio = 1.1 })},
		{"fp=0", mod(func(p *Params) { p.LumRatio = 0 })},
		{"fp=1", mod(func(p *Params) { p.LumRatio = 1 })},
		{"fp=-0.1", mod(func(p *Params) { p.LumRatio = -.1 })},
		{"fp=1.1", mod(func(p *Params) { p.LumRatio = 1.1 })},
		{"sigma=0", mod(func(p *Params) { p.Sigma = 0 })},
		{"sigma<0", mod(func(p *Params) { p.Sigma = -1e-3 })},
		{"unphysical map", mod(func(p *Params) { p.Y1, p.Y2 = .8, .8 })},
	}
	for _, tc := range cases {
		if _, ok := s.LogPosterior(tc.p); ok {
			t.Errorf("%s: not rejected", tc.name)
		}
	}
	// the sampler-facing adapter maps rejection to -Inf
	f := s.LogProbFunc()
	if lp := f(cases[0].p.Vector()); !math.IsInf(lp, -1) {
		t.Errorf("adapter at rejected point = %g, want -Inf", lp)
	}
	if lp := f(p0.Vector()); math.IsInf(lp, 0) || math.IsNaN(lp) {
		t.Errorf("adapter at true point = %g, want finite", lp)
	}
}

// With zero-noise synthetic data, the generating vector maximizes the
// likelihood over a neighborhood of perturbed vectors (sigma held
// fixed so the chi-squared term is what is compared).
func TestRoundTripMaximum(t *testing.T) {
	s, p0 := synthSolver(t, 200, 0, 0)
	lp0, ok := s.LogPosterior(&p0)
	if !ok {
		t.Fatal("true parameters rejected")
	}
	rnd := xrand.New(xrand.NewSource(11))
	v0 := p0.Vector()
	for i := 0; i < 200; i++ {
		v := append([]float64{}, v0...)
		for d := 0; d < Dim-1; d++ { // all but sigma
			v[d] += 1e-3 * rnd.NormFloat64()
		}
		p, err := FromVector(v)
		if err != nil {
			t.Fatal(err)
		}
		lp, ok := s.LogPosterior(&p)
		if !ok {
			continue // jitter walked through a prior boundary
		}
		if lp > lp0+1e-9 {
			t.Fatalf("perturbation %d: log posterior %g exceeds generating "+
				"vector's %g", i, lp, lp0)
		}
	}
}

// A zero-valued parameter in the guess must still get spread across
// the walker ball, from the additive jitter term.
func TestWalkerBallZeroParam(t *testing.T) {
	p := trueParams()
	p.Y2 = 0 // already zero; make it explicit
	cfg := Config{Walkers: 50, Jitter: 1e-4, JitterAbs: 1e-6}
	rnd := xrand.New(xrand.NewSource(13))
	pos := walkerBall(&p, cfg, rnd)
	if len(pos) != cfg.Walkers {
		t.Fatalf("%d walkers generated, want %d", len(pos), cfg.Walkers)
	}
	y2 := paramIndex(t, "y2")
	col := make([]float64, len(pos))
	for i, w := range pos {
		col[i] = w[y2]
	}
	if stat.Variance(col, nil) == 0 {
		t.Error("zero variance across walkers in a zero-valued parameter")
	}
}

func paramIndex(t *testing.T, name string) int {
	t.Helper()
	for i, n := range Names() {
		if n == name {
			return i
		}
	}
	t.Fatalf("no parameter %q", name)
	return -1
}

func TestFitConfigErrors(t *testing.T) {
	s, p := synthSolver(t, 50, 0, 0)
	for _, w := range []int{0, 2 * Dim, 2*Dim + 1, 25} {
		if _, err := Fit(s, &p, Config{Walkers: w, BurnIn: 10, Production: 10,
			Repeatable: true}); err == nil {
			t.Errorf("walkers=%d: no error", w)
		}
	}
	if _, err := Fit(s, &p, Config{Walkers: 2*Dim + 2, BurnIn: 0,
		Production: 10, Repeatable: true}); err == nil {
		t.Error("zero burn-in: no error")
	}
}

func TestGewekeZ(t *testing.T) {
	n := 400
	flat := make([]float64, n)
	trend := make([]float64, n)
	rnd := xrand.New(xrand.NewSource(17))
	for i := range flat {
		flat[i] = rnd.NormFloat64()
		trend[i] = 20 * float64(i) / float64(n)
	}
	if z := gewekeZ(flat); math.Abs(z) > 3 {
		t.Errorf("stationary trace z = %g", z)
	}
	if z := gewekeZ(trend); math.Abs(z) < 3 {
		t.Errorf("trending trace z = %g", z)
	}
}

// End-to-end scenario: fit noisy synthetic data and require the
// radius ratio posterior to cover the truth within 3 sigma.
func TestEndToEndRecovery(t *testing.T) {
	if testing.Short() {
		t.Skip("full MCMC run")
	}
	s, p := synthSolver(t, 1000, 1e-3, 19)
	res, err := Fit(s, &p, Config{
		Walkers:    50,
		BurnIn:     2000,
		Production: 2000,
		Repeatable: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	rp := res.Summary[paramIndex(t, "rp")]
	if d := math.Abs(rp.Median - .1); d > 3*rp.Sigma {
		t.Errorf("rp = %g +/- %g, truth 0.1 is %g sigma away",
			rp.Median, rp.Sigma, d/rp.Sigma)
	}
	sg := res.Summary[paramIndex(t, "sigma")]
	if d := math.Abs(sg.Median - 1e-3); d > 4*sg.Sigma {
		t.Errorf("sigma = %g +/- %g, truth 1e-3 is %g sigma away",
			sg.Median, sg.Sigma, d/sg.Sigma)
	}
	if len(res.FlatChain()) != 50*2000 {
		t.Errorf("%d production samples, want %d", len(res.FlatChain()), 50*2000)
	}
}

// A short fit from the exact generating parameters of noiseless data:
// mostly a smoke test that the pipeline holds together, and that the
// stationarity flag stays clear when the ensemble starts converged.
func TestFitConverged(t *testing.T) {
	s, p := synthSolver(t, 100, 1e-4, 23)
	res, err := Fit(s, &p, Config{
		Walkers:    2*Dim + 2,
		BurnIn:     50,
		Production: 50,
		Repeatable: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Summary) != Dim {
		t.Fatalf("%d summaries, want %d", len(res.Summary), Dim)
	}
	for _, ps := range res.Summary {
		if math.IsNaN(ps.Median) || math.IsNaN(ps.Sigma) {
			t.Errorf("%s: NaN in summary", ps.Name)
		}
	}
}
