// Public domain.

package pffit

import (
	"errors"
	"math"

	"phasefit/lightcurve"
)

// Solver holds the fixed inputs of a fitting run: the observation and
// the orbital elements that are set once and never refit.  Methods are
// pure in the parameters, so one Solver serves concurrent walker
// evaluations without synchronization.
type Solver struct {
	orbit lightcurve.Orbit
	time  []float64
	flux  []float64
	x, y  []float64
}

// NewSolver validates the orbit and observation arrays and returns a
// Solver.
func NewSolver(orbit lightcurve.Orbit, time, flux, x, y []float64) (*Solver, error) {
	switch {
	case orbit.Period <= 0:
		return nil, errors.New("pffit: non-positive orbital period")
	case orbit.A <= 0:
		return nil, errors.New("pffit: non-positive semimajor axis")
	case orbit.Eccentricity < 0 || orbit.Eccentricity >= 1:
		return nil, errors.New("pffit: eccentricity out of [0,1)")
	}
	n := len(time)
	if n == 0 {
		return nil, errors.New("pffit: empty observation")
	}
	if len(flux) != n || len(x) != n || len(y) != n {
		return nil, errors.New("pffit: observation arrays differ in length")
	}
	for i := 1; i < n; i++ {
		if time[i] <= time[i-1] {
			return nil, errors.New("pffit: observation times not strictly increasing")
		}
	}
	return &Solver{orbit: orbit, time: time, flux: flux, x: x, y: y}, nil
}

// N returns the number of observations.
func (s *Solver) N() int { return len(s.time) }

// Model computes the predicted observed flux for p: the astrophysical
// system flux multiplied elementwise by the detector sensitivity.
// Output length always equals the observation length.
func (s *Solver) Model(p *Params) ([]float64, error) {
	star := lightcurve.Star{U1: p.U1, U2: p.U2}
	planet := lightcurve.Planet{
		RadiusRatio: p.RadiusRatio,
		LumRatio:    p.LumRatio,
		Y1:          p.Y1,
		Y2:          p.Y2,
	}
	f, err := lightcurve.Flux(&star, &planet, &s.orbit, s.time)
	if err != nil {
		return nil, err
	}
	sens := Sensitivity(&p.C, s.x, s.y)
	for i := range f {
		f[i] *= sens[i]
	}
	return f, nil
}

// LogPosterior evaluates the log posterior density at p.  ok is false
// when a hard prior rejects p: radius ratio outside (0,1), luminosity
// ratio outside (0,1), non-positive sigma, or an unphysical surface
// map.  Rejection is data, not a fault; no error is involved.
//
// The likelihood is -0.5*sum(((o-m)/sigma)^2) - N*log(sigma), fitting
// the noise scale jointly with the signal.
func (s *Solver) LogPosterior(p *Params) (lp float64, ok bool) {
	if p.RadiusRatio <= 0 || p.RadiusRatio >= 1 {
		return 0, false
	}
	if p.LumRatio <= 0 || p.LumRatio >= 1 {
		return 0, false
	}
	if p.Sigma <= 0 {
		return 0, false
	}
	planet := lightcurve.Planet{
		RadiusRatio: p.RadiusRatio,
		LumRatio:    p.LumRatio,
		Y1:          p.Y1,
		Y2:          p.Y2,
	}
	if !lightcurve.Physical(&planet) {
		return 0, false
	}
	m, err := s.Model(p)
	if err != nil {
		// priors above keep the model in its valid domain; anything
		// else out of it is treated as a rejected region as well
		return 0, false
	}
	var chi2 float64
	inv := 1 / p.Sigma
	for i, o := range s.flux {
		r := (o - m[i]) * inv
		chi2 += r * r
	}
	lp = -0.5*chi2 - float64(s.N())*math.Log(p.Sigma)
	if math.IsNaN(lp) {
		return 0, false
	}
	return lp, true
}

// LogProbFunc adapts LogPosterior to the flat-vector, -Inf-on-reject
// form the ensemble sampler consumes.
func (s *Solver) LogProbFunc() func([]float64) float64 {
	return func(v []float64) float64 {
		p, err := FromVector(v)
		if err != nil {
			return math.Inf(-1)
		}
		lp, ok := s.LogPosterior(&p)
		if !ok {
			return math.Inf(-1)
		}
		return lp
	}
}
