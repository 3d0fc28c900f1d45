/*
Command phasefit fits exoplanet transit, eclipse, and phase-curve light
curves jointly with detector systematics, using an affine-invariant
ensemble MCMC sampler.

Contents

Version 0.2

  Program overview
  Command line usage
  File formats
  Algorithm outline

Program overview

Input is a columnar photometry file, one exposure per line, giving at
least flux, time, and the x and y detector centroid of the target.
Output is a table of posterior medians and uncertainties for the model
parameters.

The fitted model is the product of two parts.  The astrophysical part
is the flux of a star and close-in planet: a quadratic limb-darkened
transit, a secondary eclipse, and the sinusoidal phase modulation of a
first-order spherical-harmonic planet surface map.  The instrumental
part is a second-order polynomial in the detector centroid position,
modeling the intra-pixel sensitivity variation that dominates the
systematics of space infrared photometers.  A white noise scale is
fitted jointly, so the reported uncertainties account for it.

Sample run:

	phasefit -c hd189.config phot.dat

	phasefit version 0.2 Go source.
	50 walkers, 2000 burn-in + 2000 production steps, 28% proposals accepted
	Param        Median     Sigma
	u1          0.105131   0.00771
	u2         0.0474411   0.00907
	rp         0.0996804  0.000291
	...

Command line usage

Invoking the program without valid arguments shows this usage prompt.

	Usage: phasefit -c <config-file> [options] <obsfile>   fit observations in file
	       phasefit -c <config-file> [options] -           fit observations from stdin
	       phasefit -v                                     display version and copyright

	Options:
	       -w <walkers>
	       -b <burn-in steps>
	       -n <production steps>
	       -s <random seed>
	       -cut <exposures to drop from start>

Walker count, step counts, and seed may also be set with the
environment variables PHASEFIT_WALKERS, PHASEFIT_BURNIN,
PHASEFIT_PRODUCTION, and PHASEFIT_SEED.  Flags take precedence.

File formats

The observation file is whitespace separated numeric columns with a
single header line.  By default flux is read from column 1, time from
column 3, and the x and y centroids from columns 5 and 7, matching the
layout written by the photometry routine; the config keywords fluxcol,
timecol, xcol, and ycol override this with zero-based indexes.  On
load the flux is normalized to a median of one, exposures are sorted
chronologically, exposures more than six standard deviations from the
mean in flux or either centroid are dropped, and the centroids are
re-zeroed about their means.

The config file is a text file of keywords.  Empty lines and lines
beginning with # are ignored.  Value keywords take "key = value" form,
with angles in degrees.

Fixed orbital elements (period, a, inc, t0 required):

	period   orbital period, days
	a        semimajor axis, stellar radii
	inc      inclination
	ecc      eccentricity
	argp     argument of periapsis
	t0       reference transit time

Initial parameter guesses (rp and fp required; the sensitivity
coefficients and noise scale are seeded from the data when not given):

	u1 u2    quadratic limb darkening
	rp       planet-star radius ratio
	fp       planet-star luminosity ratio
	y1 y2    first-order surface map coefficients
	c0 .. c5 sensitivity polynomial coefficients
	sigma    white noise standard deviation

Run control:

	repeatable   reseed the generator with a constant; identical runs
	random       seed from the clock (the default)
	bmjd         convert times from barycentric MJD to JD
	noclip       skip outlier rejection
	jitter       walker ball relative spread
	jitterabs    walker ball additive spread

Algorithm outline

1.  The observation file is loaded and preprocessed as described above.

2.  An initial guess vector is assembled from the config file.  The six
sensitivity coefficients, unless pinned, are seeded by a linear least
squares fit of the sensitivity surface alone to the flux; the noise
scale, unless given, from the scatter of flux first differences.

3.  An ensemble of walkers is scattered around the guess with
independent multiplicative and additive jitter per parameter, and
advanced with the Goodman-Weare stretch move.  The posterior combines
a Gaussian likelihood with hard priors: radius ratio and luminosity
ratio in (0,1), positive noise scale, and a surface map that is nowhere
negative on the planet disk.  Walker evaluations within each half
ensemble run concurrently.

4.  A burn-in segment is run and discarded.  If the log posterior,
averaged over walkers, still shows a trend across the burn-in, a
warning suggests extending it; the fit proceeds either way with the
decision left to the operator.

5.  A production segment continues from the terminal burn-in state.
The retained chain, flattened across steps and walkers, yields a
median and standard deviation per parameter, reported under the
approximation that each marginal is roughly normal.

-------------
Public domain.
*/
package main
