// Public domain.

package pfdata_test

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"phasefit/internal/pfdata"
)

const header = "flux ferr time terr x xerr y yerr\n"

func TestLoad(t *testing.T) {
	// out of time order on purpose; flux median is 10
	in := header +
		"10 .1 2.0 0 15.2 .1 14.9 .1\n" +
		"12 .1 1.0 0 15.0 .1 15.1 .1\n" +
		"10 .1 3.0 0 15.1 .1 15.0 .1\n"
	o, err := pfdata.Load(strings.NewReader(in), pfdata.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Time) != 3 {
		t.Fatalf("%d exposures, want 3", len(o.Time))
	}
	for i := 1; i < len(o.Time); i++ {
		if o.Time[i] <= o.Time[i-1] {
			t.Fatal("times not sorted")
		}
	}
	// sorted by time, flux normalized to median 1
	if o.Flux[0] != 1.2 || o.Flux[1] != 1 || o.Flux[2] != 1 {
		t.Errorf("flux = %v, want [1.2 1 1]", o.Flux)
	}
	// centroids re-zeroed about the mean
	var sx, sy float64
	for i := range o.X {
		sx += o.X[i]
		sy += o.Y[i]
	}
	if math.Abs(sx) > 1e-12 || math.Abs(sy) > 1e-12 {
		t.Errorf("centroid means %g, %g not zero", sx/3, sy/3)
	}
}

func TestLoadBMJD(t *testing.T) {
	in := header +
		"10 .1 100.0 0 15.0 .1 15.0 .1\n" +
		"10 .1 101.0 0 15.0 .1 15.0 .1\n"
	o, err := pfdata.Load(strings.NewReader(in), pfdata.Options{BMJD: true})
	if err != nil {
		t.Fatal(err)
	}
	if o.Time[0] != 2400100.5 {
		t.Errorf("converted time %f, want 2400100.5", o.Time[0])
	}
}

func TestLoadCut(t *testing.T) {
	in := header +
		"99 .1 1.0 0 15.0 .1 15.0 .1\n" +
		"10 .1 2.0 0 15.0 .1 15.0 .1\n" +
		"10 .1 3.0 0 15.0 .1 15.0 .1\n"
	o, err := pfdata.Load(strings.NewReader(in), pfdata.Options{Cut: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Time) != 2 || o.Time[0] != 2 {
		t.Errorf("cut left times %v, want [2 3]", o.Time)
	}
	if _, err = pfdata.Load(strings.NewReader(in),
		pfdata.Options{Cut: 3}); err == nil {
		t.Error("cut of everything: no error")
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name, in string
	}{
		{"short row", header +
			"10 .1 1.0 0 15.0 .1 15.0 .1\n" +
			"10 .1 2.0 0 15.0\n"},
		{"bad number", header +
			"10 .1 1.0 0 15.0 .1 abc .1\n" +
			"10 .1 2.0 0 15.0 .1 15.0 .1\n"},
		{"duplicate time", header +
			"10 .1 1.0 0 15.0 .1 15.0 .1\n" +
			"10 .1 1.0 0 15.0 .1 15.0 .1\n"},
		{"too few rows", header +
			"10 .1 1.0 0 15.0 .1 15.0 .1\n"},
	}
	for _, tc := range cases {
		_, err := pfdata.Load(strings.NewReader(tc.in), pfdata.Options{})
		if err == nil {
			t.Errorf("%s: no error", tc.name)
			continue
		}
		if _, ok := err.(*pfdata.FormatError); !ok {
			t.Errorf("%s: error type %T, want *FormatError", tc.name, err)
		}
	}
}

func TestClip(t *testing.T) {
	var b strings.Builder
	b.WriteString(header)
	// 40 well-behaved exposures and one wild flux outlier
	for i := 0; i < 40; i++ {
		f := 10 + .001*float64(i%5)
		writeRow(&b, f, float64(i), 15, 15)
	}
	writeRow(&b, 1000, 40, 15, 15)
	o, err := pfdata.Load(strings.NewReader(b.String()), pfdata.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if o.Clipped != 1 || len(o.Time) != 40 {
		t.Errorf("clipped %d of %d, want 1 leaving 40", o.Clipped,
			o.Clipped+len(o.Time))
	}
	o, err = pfdata.Load(strings.NewReader(b.String()),
		pfdata.Options{NoClip: true})
	if err != nil {
		t.Fatal(err)
	}
	if o.Clipped != 0 || len(o.Time) != 41 {
		t.Error("NoClip still rejected exposures")
	}
}

func writeRow(b *strings.Builder, f, t, x, y float64) {
	fmt.Fprintf(b, "%g .1 %g 0 %g .1 %g .1\n", f, t, x, y)
}
