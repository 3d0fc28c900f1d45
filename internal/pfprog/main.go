// Public domain.

// Package pfprog is the phasefit command proper; the root package main
// just calls Main.
package pfprog

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/soniakeys/exit"
	"github.com/soniakeys/unit"

	"phasefit/internal/pfdata"
	"phasefit/internal/pffit"
	"phasefit/lightcurve"
)

const versionString = "phasefit version 0.2 Go source."
const copyrightString = "Public domain."

// envConfig holds defaults settable from the environment.  Command
// line flags override.
type envConfig struct {
	Walkers    int    `env:"PHASEFIT_WALKERS" envDefault:"50"`
	BurnIn     int    `env:"PHASEFIT_BURNIN" envDefault:"2000"`
	Production int    `env:"PHASEFIT_PRODUCTION" envDefault:"2000"`
	Seed       uint64 `env:"PHASEFIT_SEED"`
}

func Main() {
	defer exit.Handler()

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		exit.Log(err)
	}

	cl := parseCommandLine(&ec)
	orbit, guess, opt, fcfg := readConfig(cl.fnConfig)
	fcfg.Walkers = cl.walkers
	fcfg.BurnIn = cl.burnIn
	fcfg.Production = cl.production
	fcfg.Seed = cl.seed
	if fcfg.Seed == 0 && !fcfg.Repeatable {
		fcfg.Seed = uint64(time.Now().UnixNano())
	}
	if cl.cut > 0 {
		opt.Cut = cl.cut
	}

	var obs *pfdata.Observation
	var err error
	if cl.fnObs == "-" {
		obs, err = pfdata.Load(os.Stdin, opt)
	} else {
		obs, err = pfdata.LoadFile(cl.fnObs, opt)
	}
	if err != nil {
		exit.Log(err)
	}
	if obs.Clipped > 0 {
		log.Println(obs.Clipped, "exposures rejected as outliers")
	}

	solver, err := pffit.NewSolver(orbit, obs.Time, obs.Flux, obs.X, obs.Y)
	if err != nil {
		exit.Log(err)
	}

	// seed the systematics coefficients and noise scale from the data
	// unless the config pinned them
	if !guess.pinnedC {
		c, err := pffit.SeedSensitivity(obs.Flux, obs.X, obs.Y)
		if err != nil {
			exit.Log(err)
		}
		guess.p.C = c
	}
	if guess.p.Sigma == 0 {
		guess.p.Sigma = roughSigma(obs.Flux)
	}

	res, err := pffit.Fit(solver, &guess.p, fcfg)
	if err != nil {
		exit.Log(err)
	}
	if res.NonConverged {
		log.Printf("warning: burn-in log posterior still trending (z=%.1f); "+
			"consider a longer burn-in", res.GewekeZ)
	}

	fmt.Println(versionString)
	fmt.Printf("%d walkers, %d burn-in + %d production steps, "+
		"%.0f%% proposals accepted\n",
		fcfg.Walkers, fcfg.BurnIn, fcfg.Production, res.Acceptance*100)
	fmt.Println("Param        Median     Sigma")
	for _, s := range res.Summary {
		fmt.Printf("%-5s %13.6g %9.3g\n", s.Name, s.Median, s.Sigma)
	}
}

// roughSigma estimates the point-to-point noise from first differences
// of the flux, robust against the transit signal itself.
func roughSigma(f []float64) float64 {
	var ss float64
	for i := 1; i < len(f); i++ {
		d := f[i] - f[i-1]
		ss += d * d
	}
	return math.Sqrt(ss / float64(2*(len(f)-1)))
}

type commandLine struct {
	fnConfig   string
	fnObs      string
	walkers    int
	burnIn     int
	production int
	seed       uint64
	cut        int
}

func parseCommandLine(ec *envConfig) *commandLine {
	var cl commandLine
	flag.StringVar(&cl.fnConfig, "c", "", "")
	flag.IntVar(&cl.walkers, "w", ec.Walkers, "")
	flag.IntVar(&cl.burnIn, "b", ec.BurnIn, "")
	flag.IntVar(&cl.production, "n", ec.Production, "")
	flag.Uint64Var(&cl.seed, "s", ec.Seed, "")
	flag.IntVar(&cl.cut, "cut", 0, "")
	dv := flag.Bool("v", false, "")
	flag.Usage = func() {
		os.Stderr.WriteString(`
Usage: phasefit -c <config-file> [options] <obsfile>   fit observations in file
       phasefit -c <config-file> [options] -           fit observations from stdin
       phasefit -v                                     display version and copyright

Options:
       -w <walkers>
       -b <burn-in steps>
       -n <production steps>
       -s <random seed>
       -cut <exposures to drop from start>
`)
	}
	flag.Parse()
	if *dv {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	}
	if flag.NArg() != 1 || cl.fnConfig == "" {
		flag.Usage()
		os.Exit(1)
	}
	cl.fnObs = flag.Arg(0)
	return &cl
}

// initialGuess wraps the guess parameters with a note of whether the
// config file pinned the sensitivity coefficients.
type initialGuess struct {
	p       pffit.Params
	pinnedC bool
}

var rxKeyVal = regexp.MustCompile(`^[ \t]*([a-z0-9]+)[ \t]*=[ \t]*(\S+)[ \t]*$`)

// readConfig reads the keyword config file holding the fixed orbital
// elements and the initial parameter guess.  Empty lines and lines
// beginning with # are ignored.  Other lines are either a bare keyword
// or "key = value"; angles are in degrees.
func readConfig(fn string) (orbit lightcurve.Orbit,
	guess initialGuess, opt pfdata.Options, fcfg pffit.Config) {

	f, err := os.Open(fn)
	if err != nil {
		exit.Log(err)
	}
	defer f.Close()

	// required keys are tracked so a config missing, say, the period
	// fails up front instead of producing a nonsense fit
	seen := map[string]bool{}

	ln := 0
	for lr := bufio.NewReader(f); ; {
		l, isPre, err := lr.ReadLine()
		if err == io.EOF {
			break
		}
		switch {
		case err != nil:
			exit.Log(err)
		case isPre:
			exit.Log("unexpected long line in config file")
		}
		ln++
		if len(l) == 0 || l[0] == '#' {
			continue
		}
		ls := string(l)
		switch ls {
		case "repeatable":
			fcfg.Repeatable = true
			continue
		case "random":
			fcfg.Repeatable = false
			continue
		case "bmjd":
			opt.BMJD = true
			continue
		case "noclip":
			opt.NoClip = true
			continue
		}
		ss := rxKeyVal.FindStringSubmatch(ls)
		if len(ss) != 3 {
			exit.Log(fmt.Sprintf("unrecognized config line %d: %s", ln, ls))
		}
		v, err := strconv.ParseFloat(ss[2], 64)
		if err != nil {
			exit.Log(fmt.Sprintf("config line %d: %v", ln, err))
		}
		seen[ss[1]] = true
		switch ss[1] {
		case "period":
			orbit.Period = v
		case "a":
			orbit.A = v
		case "inc":
			orbit.Inclination = unit.AngleFromDeg(v)
		case "ecc":
			orbit.Eccentricity = v
		case "argp":
			orbit.ArgPeriapsis = unit.AngleFromDeg(v)
		case "t0":
			orbit.T0 = v
		case "u1":
			guess.p.U1 = v
		case "u2":
			guess.p.U2 = v
		case "rp":
			guess.p.RadiusRatio = v
		case "fp":
			guess.p.LumRatio = v
		case "y1":
			guess.p.Y1 = v
		case "y2":
			guess.p.Y2 = v
		case "sigma":
			guess.p.Sigma = v
		case "c0", "c1", "c2", "c3", "c4", "c5":
			guess.p.C[ss[1][1]-'0'] = v
			guess.pinnedC = true
		case "jitter":
			fcfg.Jitter = v
		case "jitterabs":
			fcfg.JitterAbs = v
		case "fluxcol":
			opt.Cols.Flux = int(v)
		case "timecol":
			opt.Cols.Time = int(v)
		case "xcol":
			opt.Cols.X = int(v)
		case "ycol":
			opt.Cols.Y = int(v)
		default:
			exit.Log(fmt.Sprintf("unrecognized config keyword line %d: %s",
				ln, ss[1]))
		}
	}
	for _, k := range []string{"period", "a", "inc", "t0", "rp", "fp"} {
		if !seen[k] {
			exit.Log("config file missing required keyword: " + k)
		}
	}
	if opt.Cols != (pfdata.Columns{}) {
		// partial column overrides fill in from the default layout
		def := pfdata.DefaultColumns
		if !seen["fluxcol"] {
			opt.Cols.Flux = def.Flux
		}
		if !seen["timecol"] {
			opt.Cols.Time = def.Time
		}
		if !seen["xcol"] {
			opt.Cols.X = def.X
		}
		if !seen["ycol"] {
			opt.Cols.Y = def.Y
		}
	}
	return
}
