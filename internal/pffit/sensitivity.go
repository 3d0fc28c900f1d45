// Public domain.

package pffit

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Sensitivity evaluates the detector sensitivity surface
//
//	S(x,y) = c0 + c1 x + c2 y + c3 x^2 + c4 y^2 + c5 xy
//
// at each centroid position.  x and y must have equal length.  Defined
// for all real inputs; linear in the coefficients.
func Sensitivity(c *[6]float64, x, y []float64) []float64 {
	s := make([]float64, len(x))
	for i := range x {
		xi, yi := x[i], y[i]
		s[i] = c[0] + c[1]*xi + c[2]*yi + c[3]*xi*xi + c[4]*yi*yi + c[5]*xi*yi
	}
	return s
}

// SeedSensitivity least-squares fits the sensitivity surface alone to
// the observed flux, giving initial coefficient guesses for the
// sampler.  The astrophysical signal is small compared to typical
// detector variation, so the result lands close enough for a walker
// ball.
func SeedSensitivity(flux, x, y []float64) ([6]float64, error) {
	var c [6]float64
	n := len(flux)
	if len(x) != n || len(y) != n {
		return c, errors.New("pffit: flux and centroid lengths differ")
	}
	if n < 6 {
		return c, errors.New("pffit: need at least 6 points to seed sensitivity")
	}
	a := mat.NewDense(n, 6, nil)
	for i := 0; i < n; i++ {
		xi, yi := x[i], y[i]
		a.SetRow(i, []float64{1, xi, yi, xi * xi, yi * yi, xi * yi})
	}
	b := mat.NewDense(n, 1, append([]float64{}, flux...))
	var qr mat.QR
	qr.Factorize(a)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, b); err != nil {
		return c, err
	}
	for i := range c {
		c[i] = sol.At(i, 0)
	}
	return c, nil
}
