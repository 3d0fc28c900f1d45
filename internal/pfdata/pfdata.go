// Public domain.

// Package pfdata loads columnar photometry files: one exposure per
// line, whitespace separated numeric columns, one header line.
package pfdata

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Columns maps the needed quantities to zero-based column indexes.
// The defaults match the photometry routine's output layout, where
// flux and centroid columns are interleaved with their uncertainties.
type Columns struct {
	Flux, Time, X, Y int
}

// DefaultColumns is the photometry routine's layout.
var DefaultColumns = Columns{Flux: 0, Time: 2, X: 4, Y: 6}

// clipSigma bounds for the single outlier-rejection pass.
const clipSigma = 6

// A FormatError reports a malformed observation file.  Structural
// problems in the data are fatal before any fitting begins.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("observation file line %d: %s", e.Line, e.Msg)
	}
	return "observation file: " + e.Msg
}

// Observation is a loaded, preprocessed photometric time series.
// All four slices have equal length and Time is strictly increasing.
// Flux is normalized to a median of 1 and X, Y are centroid offsets
// about their means.
type Observation struct {
	Time []float64
	Flux []float64
	X, Y []float64

	// Clipped counts exposures dropped by outlier rejection.
	Clipped int
}

// Options controls loading.
type Options struct {
	Cols Columns

	// Cut drops this many exposures from the start before anything
	// else, for settling ramps at the start of an observing run.
	Cut int

	// BMJD converts times from barycentric MJD to JD.
	BMJD bool

	// NoClip skips outlier rejection.
	NoClip bool
}

// LoadFile opens and loads path.
func LoadFile(path string, opt Options) (*Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, opt)
}

// Load reads an observation from r and applies, in order: start cut,
// median normalization of flux, chronological sort, outlier rejection,
// centroid re-zeroing, and optional time scale conversion.
func Load(r io.Reader, opt Options) (*Observation, error) {
	if opt.Cols == (Columns{}) {
		opt.Cols = DefaultColumns
	}
	need := opt.Cols.Flux
	for _, c := range []int{opt.Cols.Time, opt.Cols.X, opt.Cols.Y} {
		if c > need {
			need = c
		}
	}

	var o Observation
	ln := 0
	for bf := bufio.NewReader(r); ; {
		line, isPre, err := bf.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isPre {
			return nil, &FormatError{ln + 1, "unexpected long line"}
		}
		ln++
		if ln == 1 {
			continue // header
		}
		flds := strings.Fields(string(line))
		if len(flds) == 0 {
			continue
		}
		if len(flds) <= need {
			return nil, &FormatError{ln,
				fmt.Sprintf("%d columns, need %d", len(flds), need+1)}
		}
		v := make([]float64, 4)
		for i, c := range []int{opt.Cols.Time, opt.Cols.Flux,
			opt.Cols.X, opt.Cols.Y} {
			v[i], err = strconv.ParseFloat(flds[c], 64)
			if err != nil {
				return nil, &FormatError{ln,
					fmt.Sprintf("column %d: %v", c+1, err)}
			}
		}
		o.Time = append(o.Time, v[0])
		o.Flux = append(o.Flux, v[1])
		o.X = append(o.X, v[2])
		o.Y = append(o.Y, v[3])
	}
	if opt.Cut > 0 {
		if opt.Cut >= len(o.Time) {
			return nil, &FormatError{0, "start cut removes every exposure"}
		}
		o.Time = o.Time[opt.Cut:]
		o.Flux = o.Flux[opt.Cut:]
		o.X = o.X[opt.Cut:]
		o.Y = o.Y[opt.Cut:]
	}
	if len(o.Time) < 2 {
		return nil, &FormatError{0, "fewer than 2 usable exposures"}
	}

	normalize(o.Flux)
	sort.Sort(byTime{&o})
	for i := 1; i < len(o.Time); i++ {
		if o.Time[i] <= o.Time[i-1] {
			return nil, &FormatError{0,
				fmt.Sprintf("duplicate exposure time %g", o.Time[i])}
		}
	}
	if !opt.NoClip {
		o.clip()
	}
	center(o.X)
	center(o.Y)
	if opt.BMJD {
		for i := range o.Time {
			o.Time[i] += 2400000.5
		}
	}
	return &o, nil
}

// normalize scales the series to a median of 1.
func normalize(f []float64) {
	s := append([]float64{}, f...)
	sort.Float64s(s)
	med := stat.Quantile(.5, stat.Empirical, s, nil)
	if med == 0 {
		return
	}
	for i := range f {
		f[i] /= med
	}
}

// clip drops exposures where flux or either centroid lies beyond
// clipSigma standard deviations of its series mean.  One pass, masks
// unioned across the three series like the photometry routine does.
func (o *Observation) clip() {
	mask := make([]bool, len(o.Time))
	for _, s := range [][]float64{o.Flux, o.X, o.Y} {
		m, sd := stat.MeanStdDev(s, nil)
		for i, v := range s {
			if math.Abs(v-m) > clipSigma*sd || math.IsNaN(v) {
				mask[i] = true
			}
		}
	}
	k := 0
	for i := range mask {
		if mask[i] {
			continue
		}
		o.Time[k] = o.Time[i]
		o.Flux[k] = o.Flux[i]
		o.X[k] = o.X[i]
		o.Y[k] = o.Y[i]
		k++
	}
	o.Clipped = len(mask) - k
	o.Time = o.Time[:k]
	o.Flux = o.Flux[:k]
	o.X = o.X[:k]
	o.Y = o.Y[:k]
}

// center shifts a series to zero mean.
func center(s []float64) {
	m := stat.Mean(s, nil)
	for i := range s {
		s[i] -= m
	}
}

type byTime struct{ o *Observation }

func (b byTime) Len() int           { return len(b.o.Time) }
func (b byTime) Less(i, j int) bool { return b.o.Time[i] < b.o.Time[j] }
func (b byTime) Swap(i, j int) {
	o := b.o
	o.Time[i], o.Time[j] = o.Time[j], o.Time[i]
	o.Flux[i], o.Flux[j] = o.Flux[j], o.Flux[i]
	o.X[i], o.X[j] = o.X[j], o.X[i]
	o.Y[i], o.Y[j] = o.Y[j], o.Y[i]
}
