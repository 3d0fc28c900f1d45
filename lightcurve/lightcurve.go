// Package lightcurve models the combined flux of a star and close-in
// planet: limb-darkened transit, secondary eclipse, and the phase
// modulation of a first-order spherical-harmonic surface map.
package lightcurve

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/kepler"
	"github.com/soniakeys/unit"
)

// Star describes the host star by its quadratic limb darkening law,
//
//	I(mu) = 1 - U1*(1-mu) - U2*(1-mu)^2
//
// with mu the cosine of the angle between the line of sight and the
// stellar surface normal.
type Star struct {
	U1, U2 float64
}

// Planet describes the planet relative to its star.  RadiusRatio is
// planet radius over stellar radius.  LumRatio is the planet's
// disk-integrated flux relative to the star for a uniform map.
// Y1, Y2 are the two first-order surface map coefficients, modulating
// brightness with longitude from the substellar point.
type Planet struct {
	RadiusRatio float64
	LumRatio    float64
	Y1, Y2      float64
}

// Orbit holds orbital elements, fixed for the lifetime of a fit.
// A is the semimajor axis in units of the stellar radius.  T0 is the
// reference transit time, same time scale as the observation times.
type Orbit struct {
	A            float64
	Inclination  unit.Angle
	Period       float64
	Eccentricity float64
	ArgPeriapsis unit.Angle
	T0           float64
}

// annuli sets the radial resolution of the partial-occultation
// integral.  Residual error against closed-form uniform-disk cases is
// below 1e-6 of total flux at this resolution.
const annuli = 256

// kPlaces is the decimal precision requested from the Kepler equation
// solver.
const kPlaces = 9

// Physical reports whether the planet's surface map is non-negative
// everywhere on the disk.  For a first-order map the minimum of
// 1 + Y1 cos L + Y2 sin L over longitude L is 1 - sqrt(Y1^2+Y2^2),
// so the test is closed form.
func Physical(p *Planet) bool {
	return p.Y1*p.Y1+p.Y2*p.Y2 < 1
}

// Flux computes the dimensionless system flux at each time in t.
// The unocculted star contributes 1, the planet adds its phase-modulated
// flux, transits subtract limb-darkened starlight and eclipses subtract
// planet light.  Returned slice has len(t).
func Flux(s *Star, p *Planet, o *Orbit, t []float64) ([]float64, error) {
	switch {
	case p.RadiusRatio <= 0:
		return nil, fmt.Errorf("lightcurve: non-positive radius ratio %g",
			p.RadiusRatio)
	case p.LumRatio < 0:
		return nil, fmt.Errorf("lightcurve: negative luminosity ratio %g",
			p.LumRatio)
	case o.Period <= 0:
		return nil, errors.New("lightcurve: non-positive period")
	case o.A <= 0:
		return nil, errors.New("lightcurve: non-positive semimajor axis")
	case o.Eccentricity < 0 || o.Eccentricity >= 1:
		return nil, fmt.Errorf("lightcurve: eccentricity %g out of [0,1)",
			o.Eccentricity)
	}

	// mean anomaly at the reference transit.  the true anomaly there is
	// pi/2 - argument of periapsis.
	e := o.Eccentricity
	nuTr := math.Pi/2 - o.ArgPeriapsis.Rad()
	eTr := 2 * math.Atan(math.Sqrt((1-e)/(1+e))*math.Tan(nuTr/2))
	mTr := eTr - e*math.Sin(eTr)

	starTotal := starFluxTo(1, s)
	si := math.Sin(o.Inclination.Rad())

	f := make([]float64, len(t))
	for i, ti := range t {
		m := mTr + 2*math.Pi*(ti-o.T0)/o.Period
		ea, err := kepler.Kepler2(e, unit.Angle(math.Mod(m, 2*math.Pi)),
			kPlaces)
		if err != nil {
			// fall back on the slower iteration, stable for all e < 1
			ea, err = kepler.Kepler1(e, unit.Angle(math.Mod(m, 2*math.Pi)),
				kPlaces)
			if err != nil {
				return nil, fmt.Errorf("lightcurve: kepler: %v", err)
			}
		}
		nu := 2 * math.Atan2(math.Sqrt(1+e)*math.Sin(ea.Rad()/2),
			math.Sqrt(1-e)*math.Cos(ea.Rad()/2))
		r := o.A * (1 - e*math.Cos(ea.Rad()))

		// argument of latitude and sky-projected separation in
		// stellar radii
		u := o.ArgPeriapsis.Rad() + nu
		su := math.Sin(u)
		d := r * math.Sqrt(1-si*si*su*su)

		fStar := 1.0
		fPlanet := planetFlux(p, u)
		if su > 0 {
			// planet in front of star: transit geometry
			fStar = (starTotal - blocked(s, p.RadiusRatio, d)) / starTotal
		} else if ol := overlap(1, p.RadiusRatio, d); ol > 0 {
			// planet behind star: eclipse, possibly partial
			area := math.Pi * p.RadiusRatio * p.RadiusRatio
			fPlanet *= 1 - ol/area
		}
		f[i] = fStar + fPlanet
	}
	return f, nil
}

// planetFlux is the planet's disk-integrated flux at argument of
// latitude u.  The substellar longitude faces the observer at
// superior conjunction (u = -pi/2), giving the dayside peak near
// eclipse for a positive Y1.
func planetFlux(p *Planet, u float64) float64 {
	l := u + math.Pi/2 // 0 at eclipse, pi at transit
	return p.LumRatio * (1 + p.Y1*math.Cos(l) + p.Y2*math.Sin(l))
}

// starFluxTo integrates the limb-darkened disk out to radius rr (in
// stellar radii), closed form.  rr=1 gives the total star flux
// pi*(1 - U1/3 - U2/6) up to the factor pi, which cancels in ratios.
func starFluxTo(rr float64, s *Star) float64 {
	if rr >= 1 {
		rr = 1
	}
	mu := math.Sqrt(1 - rr*rr)
	// I(mu) expanded in powers of mu: (1-U1-U2) + (U1+2U2)mu - U2 mu^2
	a := 1 - s.U1 - s.U2
	b := s.U1 + 2*s.U2
	c := s.U2
	mu2 := mu * mu
	return a*(1-mu2) + b*2/3*(1-mu2*mu) - c/2*(1-mu2*mu2)
}

// blocked integrates star flux occulted by a planet disk of radius p
// centered at sky distance d, both in stellar radii.  The fully
// occulted inner region is closed form; the partial region is an
// annulus integral weighting each ring by its occulted arc fraction.
func blocked(s *Star, p, d float64) float64 {
	if d >= 1+p {
		return 0
	}
	var b float64
	r1 := d - p
	if r1 < 0 {
		// rings closer than p-d to disk center are fully covered
		b = starFluxTo(-r1, s)
		r1 = -r1
	}
	r2 := d + p
	if r2 > 1 {
		r2 = 1
	}
	if r2 <= r1 {
		return b
	}
	h := (r2 - r1) / annuli
	for i := 0; i < annuli; i++ {
		r := r1 + (float64(i)+.5)*h
		ca := (d*d + r*r - p*p) / (2 * d * r)
		if ca >= 1 {
			continue
		}
		var alpha float64
		if ca <= -1 {
			alpha = math.Pi
		} else {
			alpha = math.Acos(ca)
		}
		mu := math.Sqrt(1 - r*r)
		in := 1 - s.U1*(1-mu) - s.U2*(1-mu)*(1-mu)
		b += in * alpha / math.Pi * 2 * r * h
	}
	return b
}

// overlap is the lens area common to circles of radius r1 and r2 with
// centers separated by d.
func overlap(r1, r2, d float64) float64 {
	if d >= r1+r2 {
		return 0
	}
	if r2 > r1 {
		r1, r2 = r2, r1
	}
	if d <= r1-r2 {
		return math.Pi * r2 * r2
	}
	d1 := (d*d + r1*r1 - r2*r2) / (2 * d)
	d2 := d - d1
	return r1*r1*math.Acos(d1/r1) - d1*math.Sqrt(r1*r1-d1*d1) +
		r2*r2*math.Acos(d2/r2) - d2*math.Sqrt(r2*r2-d2*d2)
}
