// Package ensemble implements the Goodman-Weare affine-invariant
// ensemble MCMC sampler (the "stretch move").  A population of walkers
// explores a target log probability density; each walker proposes moves
// along lines through walkers of the complementary half ensemble, which
// makes the sampler invariant under affine transformations of the
// parameter space and so indifferent to parameter scale and
// correlation.
package ensemble

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	xrand "golang.org/x/exp/rand"
)

// ErrWalkerCount is returned by New for walker counts the stretch move
// cannot work with.
var ErrWalkerCount = errors.New("ensemble: walker count must be even and exceed twice the dimension")

// stretch move scale parameter.  2 is the standard choice.
const scaleA = 2

// A Sampler advances an ensemble of walkers over a target density.
// It is not safe for concurrent use; one Run at a time.
type Sampler struct {
	walkers int
	dim     int
	logProb func([]float64) float64
	rnd     *xrand.Rand

	pos  [][]float64 // current walker positions
	lp   []float64   // log prob at pos
	init bool

	accepted int
	steps    int

	chain   [][][]float64 // [step][walker]position
	chainLP [][]float64
}

// New creates a Sampler over logProb.  logProb must return a finite
// value or -Inf (rejection); it is called concurrently from multiple
// goroutines and must be safe for that.  src seeds the sampler's
// private generator; proposals are drawn single-threaded so a fixed
// seed reproduces a run exactly.
func New(walkers, dim int, logProb func([]float64) float64, src xrand.Source) (*Sampler, error) {
	if walkers%2 != 0 || walkers <= 2*dim {
		return nil, ErrWalkerCount
	}
	if dim < 1 {
		return nil, errors.New("ensemble: dimension must be positive")
	}
	return &Sampler{
		walkers: walkers,
		dim:     dim,
		logProb: logProb,
		rnd:     xrand.New(src),
	}, nil
}

// Init sets walker starting positions and evaluates the target there.
// It returns an error if any starting position is rejected outright:
// the stretch move cannot recover an ensemble seeded at -Inf.
func (s *Sampler) Init(pos [][]float64) error {
	if len(pos) != s.walkers {
		return fmt.Errorf("ensemble: got %d positions for %d walkers",
			len(pos), s.walkers)
	}
	s.pos = make([][]float64, s.walkers)
	s.lp = make([]float64, s.walkers)
	for i, p := range pos {
		if len(p) != s.dim {
			return fmt.Errorf("ensemble: position %d has dimension %d, want %d",
				i, len(p), s.dim)
		}
		s.pos[i] = append([]float64{}, p...)
	}
	s.parallel(func(i int) {
		s.lp[i] = s.logProb(s.pos[i])
	})
	for i, l := range s.lp {
		if math.IsInf(l, -1) || math.IsNaN(l) {
			return fmt.Errorf("ensemble: walker %d starts at zero probability", i)
		}
	}
	s.init = true
	return nil
}

// Run advances the ensemble n steps.  With record true every step is
// appended to the retained chain; otherwise the chain is untouched and
// only the terminal ensemble state is kept, which is how a burn-in
// segment is discarded.  The returned slice holds the walker-mean log
// probability at each step, usable as a stationarity trace either way.
func (s *Sampler) Run(n int, record bool) ([]float64, error) {
	if !s.init {
		return nil, errors.New("ensemble: Run before Init")
	}
	trace := make([]float64, n)
	half := s.walkers / 2
	for step := 0; step < n; step++ {
		// two half-ensemble updates per step.  walkers within a half
		// move independently given the frozen other half, so their
		// target evaluations run in parallel.
		for _, lo := range [2]int{0, half} {
			prop := make([][]float64, half)
			lnz := make([]float64, half)
			lnu := make([]float64, half)
			other := half - lo // start of complementary half
			for k := 0; k < half; k++ {
				j := other + s.rnd.Intn(half)
				u := s.rnd.Float64()
				z := (u*(scaleA-1) + 1)
				z = z * z / scaleA
				y := make([]float64, s.dim)
				xk := s.pos[lo+k]
				xj := s.pos[j]
				for d := 0; d < s.dim; d++ {
					y[d] = xj[d] + z*(xk[d]-xj[d])
				}
				prop[k] = y
				lnz[k] = math.Log(z)
				lnu[k] = math.Log(s.rnd.Float64())
			}
			plp := make([]float64, half)
			s.parallelN(half, func(k int) {
				plp[k] = s.logProb(prop[k])
			})
			for k := 0; k < half; k++ {
				w := lo + k
				if lnu[k] < float64(s.dim-1)*lnz[k]+plp[k]-s.lp[w] {
					s.pos[w] = prop[k]
					s.lp[w] = plp[k]
					s.accepted++
				}
			}
		}
		var sum float64
		for _, l := range s.lp {
			sum += l
		}
		trace[step] = sum / float64(s.walkers)
		if record {
			ps := make([][]float64, s.walkers)
			for i, p := range s.pos {
				ps[i] = append([]float64{}, p...)
			}
			s.chain = append(s.chain, ps)
			s.chainLP = append(s.chainLP, append([]float64{}, s.lp...))
		}
		s.steps++
	}
	return trace, nil
}

// Positions returns the current walker positions.  The caller must not
// modify the returned slices.
func (s *Sampler) Positions() [][]float64 { return s.pos }

// AcceptanceRate reports the fraction of proposals accepted since New.
func (s *Sampler) AcceptanceRate() float64 {
	if s.steps == 0 {
		return 0
	}
	return float64(s.accepted) / float64(s.steps*s.walkers)
}

// FlatChain flattens the recorded chain across steps and walkers into
// one row per sample.
func (s *Sampler) FlatChain() [][]float64 {
	flat := make([][]float64, 0, len(s.chain)*s.walkers)
	for _, step := range s.chain {
		flat = append(flat, step...)
	}
	return flat
}

// FlatLogProb flattens the recorded log probabilities to match
// FlatChain row for row.
func (s *Sampler) FlatLogProb() []float64 {
	flat := make([]float64, 0, len(s.chainLP)*s.walkers)
	for _, step := range s.chainLP {
		flat = append(flat, step...)
	}
	return flat
}

func (s *Sampler) parallel(f func(int)) { s.parallelN(s.walkers, f) }

// parallelN runs f(0..n-1) over a bounded pool of goroutines and waits
// for all of them, the per-step barrier of the sampler.
func (s *Sampler) parallelN(n int, f func(int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	idx := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range idx {
				f(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		idx <- i
	}
	close(idx)
	wg.Wait()
}
