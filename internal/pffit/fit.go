// Public domain.

package pffit

import (
	"errors"
	"fmt"
	"math"
	"sort"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"phasefit/ensemble"
)

// Config controls a fitting run.
type Config struct {
	Walkers    int
	BurnIn     int
	Production int

	// Jitter scales the walker ball around the initial guess.  Each
	// parameter gets independent multiplicative and additive
	// perturbation; the additive term keeps parameters guessed at
	// exactly zero from collapsing the ball in that dimension.
	Jitter    float64
	JitterAbs float64

	// Repeatable reseeds the generator with a constant so two runs
	// produce identical chains.  Otherwise Seed is used.
	Repeatable bool
	Seed       uint64
}

// gewekeLimit is the |z| threshold past which the burn-in trace is
// flagged as still trending.
const gewekeLimit = 3

// ParamSummary is the marginal posterior summary for one parameter.
// Sigma is the marginal standard deviation, a symmetric uncertainty
// under the approximation that the marginal is roughly normal; heavy
// tails or multimodality are not reflected.
type ParamSummary struct {
	Name   string
	Median float64
	Sigma  float64
}

// Result is the outcome of a fitting run.
type Result struct {
	Summary    []ParamSummary
	Acceptance float64

	// NonConverged is set when the burn-in log-posterior trace shows a
	// persistent trend, meaning the production chain likely started
	// short of the stationary distribution.  A warning, never fatal:
	// extending BurnIn is the caller's call.
	NonConverged bool
	GewekeZ      float64

	flat [][]float64
}

// FlatChain exposes the flattened production chain, one row per sample.
func (r *Result) FlatChain() [][]float64 { return r.flat }

// Fit runs the full pipeline against s: seed an ensemble around guess,
// burn in, check stationarity, sample production, summarize marginals.
func Fit(s *Solver, guess *Params, cfg Config) (*Result, error) {
	if cfg.Walkers%2 != 0 || cfg.Walkers <= 2*Dim {
		return nil, fmt.Errorf("pffit: %d walkers; need an even count above %d",
			cfg.Walkers, 2*Dim)
	}
	if cfg.BurnIn < 2 || cfg.Production < 1 {
		return nil, errors.New("pffit: burn-in and production step counts must be positive")
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = 1e-4
	}
	if cfg.JitterAbs <= 0 {
		cfg.JitterAbs = 1e-6
	}

	src := &xrand.PCGSource{}
	if cfg.Repeatable {
		src.Seed(3)
	} else {
		src.Seed(cfg.Seed)
	}
	rnd := xrand.New(src)

	smp, err := ensemble.New(cfg.Walkers, Dim, s.LogProbFunc(), src)
	if err != nil {
		return nil, err
	}
	if err := smp.Init(walkerBall(guess, cfg, rnd)); err != nil {
		return nil, err
	}

	trace, err := smp.Run(cfg.BurnIn, false)
	if err != nil {
		return nil, err
	}
	z := gewekeZ(trace)

	// production continues from the terminal burn-in state; the
	// burn-in chain itself was never recorded.
	if _, err := smp.Run(cfg.Production, true); err != nil {
		return nil, err
	}

	flat := smp.FlatChain()
	names := Names()
	sum := make([]ParamSummary, Dim)
	col := make([]float64, len(flat))
	for d := 0; d < Dim; d++ {
		for i, row := range flat {
			col[i] = row[d]
		}
		sort.Float64s(col)
		sum[d] = ParamSummary{
			Name:   names[d],
			Median: stat.Quantile(.5, stat.Empirical, col, nil),
			Sigma:  stat.StdDev(col, nil),
		}
	}
	return &Result{
		Summary:      sum,
		Acceptance:   smp.AcceptanceRate(),
		NonConverged: math.Abs(z) > gewekeLimit,
		GewekeZ:      z,
		flat:         flat,
	}, nil
}

// walkerBall spreads walkers around the guess with independent jitter
// per parameter, multiplicative plus additive.
func walkerBall(guess *Params, cfg Config, rnd *xrand.Rand) [][]float64 {
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rnd}
	g := guess.Vector()
	pos := make([][]float64, cfg.Walkers)
	for w := range pos {
		p := make([]float64, Dim)
		for d, v := range g {
			p[d] = v*(1+cfg.Jitter*norm.Rand()) + cfg.JitterAbs*norm.Rand()
		}
		pos[w] = p
	}
	return pos
}

// gewekeZ compares the mean of the first quarter of the trace against
// the mean of the last half, in units of the pooled standard error.
// A stationary trace gives |z| of order 1; a trace still climbing out
// of a poor start gives a large |z|.
func gewekeZ(trace []float64) float64 {
	if len(trace) < 8 {
		return 0
	}
	a := trace[:len(trace)/4]
	b := trace[len(trace)/2:]
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	se := math.Sqrt(va/float64(len(a)) + vb/float64(len(b)))
	if se == 0 {
		return 0
	}
	return (ma - mb) / se
}
