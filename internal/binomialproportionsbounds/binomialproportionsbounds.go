/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package binomialproportionsbounds gives an approximate Clopper-Pearson
// confidence interval around an observed binomial proportion.
//
// Picture a coin with an unknown heads probability p. It gets flipped n
// times (n known, chosen ahead of time) and comes up heads k times (k
// observed, a realization of a binomial random variable). pHat = k/n is
// the obvious point estimate of p, but this package answers the sharper
// question: given n, k and a desired confidence level (expressed as a
// number of standard deviations, numStdDevs), what interval [lo, hi]
// almost certainly contains the true p? The exact Clopper-Pearson
// interval is the textbook answer but is strictly conservative (wider
// than necessary); the formulas here trade that conservatism for a
// closed-form approximation.
package binomialproportionsbounds

import (
	"fmt"
	"math"
)

// ApproximateLowerBoundOnP returns the lower end of an approximate
// Clopper-Pearson interval for a binomial proportion observed as k
// successes out of n trials, at a confidence level set by numStdDevs
// standard deviations. n and k must be non-negative and k must not
// exceed n.
//
// The derivation works from the right tail of the binomial distribution:
// solving sum_{j=k}^{n} bino(j; n, p) = delta for p is restated as
// solving the left tail sum_{j=0}^{k-1} bino(j; n, p) = 1 - delta, then
// substituted x = 1-p so the target becomes the incomplete-beta
// equation I_x(n-k+1, k) = 1 - delta, which inverseIncompleteBetaX
// solves approximately. delta itself comes from numStdDevs via the
// standard normal's right tail — fewer standard deviations means a
// larger 1-delta and thus a smaller delta (negative numStdDevs values
// correspond to the small-delta regime).
func ApproximateLowerBoundOnP(n, k uint64, numStdDevs float64) (float64, error) {
	if err := checkTrialCounts(n, k); err != nil {
		return 0, err
	}
	switch {
	case n == 0:
		return 0.0, nil
	case k == 0:
		return 0.0, nil
	case k == 1:
		return lowerBoundSingleSuccess(n, rightTailProbability(numStdDevs)), nil
	case k == n:
		return lowerBoundAllSuccesses(n, rightTailProbability(numStdDevs)), nil
	default:
		x := inverseIncompleteBetaX(float64((n-k)+1), float64(k), -numStdDevs)
		return 1.0 - x, nil
	}
}

// ApproximateUpperBoundOnP returns the upper end of the same approximate
// confidence interval described in ApproximateLowerBoundOnP.
//
// Here the derivation runs off the left tail instead: solving
// sum_{j=0}^{k} bino(j; n, p) = delta for p, substituting x = 1-p gives
// I_x(n-k, k+1) = delta, which inverseIncompleteBetaX again solves. This
// time larger numStdDevs means smaller delta.
func ApproximateUpperBoundOnP(n, k uint64, numStdDevs float64) (float64, error) {
	if err := checkTrialCounts(n, k); err != nil {
		return 0, err
	}
	switch {
	case n == 0:
		return 1.0, nil
	case k == n:
		return 1.0, nil
	case k == n-1:
		return upperBoundAllButOneSuccess(n, rightTailProbability(numStdDevs)), nil
	case k == 0:
		return upperBoundNoSuccesses(n, rightTailProbability(numStdDevs)), nil
	default:
		x := inverseIncompleteBetaX(float64(n-k), float64(k+1), numStdDevs)
		return 1.0 - x, nil
	}
}

// Erf approximates the error function at x to roughly 7 decimal digits.
func Erf(x float64) float64 {
	if x < 0.0 {
		return -erfNonNegative(-x)
	}
	return erfNonNegative(x)
}

// NormalCDF approximates the standard normal cumulative distribution at x.
func NormalCDF(x float64) float64 {
	return 0.5 * (1.0 + Erf(x/math.Sqrt(2.0)))
}

func checkTrialCounts(n, k uint64) error {
	if k > n {
		return fmt.Errorf("successes cannot exceed trials: n=%d, k=%d", n, k)
	}
	return nil
}

// erfNonNegative implements Abramowitz & Stegun formula 7.1.28 (p. 88),
// a rational-polynomial approximation accurate to about 7 decimal digits
// for x >= 0.
func erfNonNegative(x float64) float64 {
	const (
		a1 = 0.0705230784
		a2 = 0.0422820123
		a3 = 0.0092705272
		a4 = 0.0001520143
		a5 = 0.0002765672
		a6 = 0.0000430638
	)

	x2 := x * x
	x3 := x2 * x
	x4 := x2 * x2
	x5 := x2 * x3
	x6 := x3 * x3

	poly := 1.0 + a1*x + a2*x2 + a3*x3 + a4*x4 + a5*x5 + a6*x6

	// The approximation raises the polynomial to the 16th power; doing
	// that by repeated squaring avoids math.Pow's overhead.
	sq2 := poly * poly
	sq4 := sq2 * sq2
	sq8 := sq4 * sq4
	sq16 := sq8 * sq8

	return 1.0 - (1.0 / sq16)
}

// rightTailProbability converts a standard-deviation count into the
// right-tail probability (delta) of the standard normal distribution
// that it corresponds to.
func rightTailProbability(numStdDevs float64) float64 {
	return NormalCDF(-numStdDevs)
}

// inverseIncompleteBetaX approximately inverts the incomplete beta
// function I_x(a, b) = delta for x, holding a and b fixed. This is
// Abramowitz & Stegun formula 26.5.22 (p. 945); delta is supplied
// indirectly as yp, the number of standard deviations that leaves
// probability delta in the right tail of a standard Gaussian. Variable
// names below mirror the book's notation so the formula can be checked
// against the source directly.
func inverseIncompleteBetaX(a, b, yp float64) float64 {
	b2m1 := 2.0*b - 1.0
	a2m1 := 2.0*a - 1.0
	lambda := (yp*yp - 3.0) / 6.0
	h := 2.0 / (1.0/a2m1 + 1.0/b2m1)
	term1 := (yp * math.Sqrt(h+lambda)) / h
	term2 := 1.0/b2m1 - 1.0/a2m1
	term3 := lambda + 5.0/6.0 - 2.0/(3.0*h)
	w := term1 - term2*term3
	return a / (a + b*math.Exp(2.0*w))
}

// The four corner cases below (k = 0, 1, n-1, n) admit a closed form
// instead of the general beta-inversion formula above.

func lowerBoundAllSuccesses(n uint64, delta float64) float64 {
	return math.Pow(delta, 1.0/float64(n))
}

func lowerBoundSingleSuccess(n uint64, delta float64) float64 {
	return 1.0 - math.Pow(1.0-delta, 1.0/float64(n))
}

func upperBoundNoSuccesses(n uint64, delta float64) float64 {
	return 1.0 - math.Pow(delta, 1.0/float64(n))
}

func upperBoundAllButOneSuccess(n uint64, delta float64) float64 {
	return math.Pow(1.0-delta, 1.0/float64(n))
}
