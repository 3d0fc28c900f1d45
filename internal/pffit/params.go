// Public domain.

// Package pffit fits a transit/eclipse/phase-curve model, jointly with
// a polynomial detector sensitivity surface and a white noise scale, to
// a photometric time series.
package pffit

import "fmt"

// Params is the full fittable parameter set.  The sampler works on flat
// vectors; everything else addresses parameters through this struct so
// an ordering change cannot silently misalign a consumer.
type Params struct {
	U1, U2      float64 // quadratic limb darkening
	RadiusRatio float64
	LumRatio    float64
	Y1, Y2      float64    // first-order surface map
	C           [6]float64 // sensitivity: 1, x, y, x^2, y^2, xy
	Sigma       float64    // white noise standard deviation
}

// Dim is the length of the flat parameter vector.
const Dim = 13

var paramNames = []string{
	"u1", "u2", "rp", "fp", "y1", "y2",
	"c0", "c1", "c2", "c3", "c4", "c5",
	"sigma",
}

// Names returns the parameter names in vector order.
func Names() []string { return append([]string{}, paramNames...) }

// Vector flattens p in the fixed order given by Names.
func (p *Params) Vector() []float64 {
	return []float64{
		p.U1, p.U2, p.RadiusRatio, p.LumRatio, p.Y1, p.Y2,
		p.C[0], p.C[1], p.C[2], p.C[3], p.C[4], p.C[5],
		p.Sigma,
	}
}

// FromVector is the inverse of Vector.
func FromVector(v []float64) (Params, error) {
	if len(v) != Dim {
		return Params{}, fmt.Errorf("pffit: parameter vector length %d, want %d",
			len(v), Dim)
	}
	var p Params
	p.U1, p.U2, p.RadiusRatio, p.LumRatio, p.Y1, p.Y2 =
		v[0], v[1], v[2], v[3], v[4], v[5]
	copy(p.C[:], v[6:12])
	p.Sigma = v[12]
	return p, nil
}
