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

package theta

import (
	"fmt"
	"math"

	"github.com/sketchkit/theta/internal/binomialproportionsbounds"
)

// ratioConfidenceStdDevs fixes the ratio-bound confidence level at 2
// standard deviations (~95%) rather than exposing it as a parameter.
const ratioConfidenceStdDevs = 2.0

// ratioLowerBound estimates a 95% confidence lower bound on b/a, where a
// is the observed size of a Bernoulli sample of a set A taken at
// inclusion probability f, and b is the observed size of the subset of
// that sample lying in some other set B. f should generally stay below
// 0.5 — above that the normal-approximation correction below starts to
// lose accuracy. f == 1.0 means no sampling happened at all, so the
// ratio is returned as-is with no interval around it.
func ratioLowerBound(a, b uint64, f float64) (float64, error) {
	if err := validateSampleRatioInputs(a, b, f); err != nil {
		return 0.0, err
	}
	if a == 0 {
		return 0.0, nil
	}
	if f == 1.0 {
		return float64(b) / float64(a), nil
	}
	return binomialproportionsbounds.ApproximateLowerBoundOnP(a, b, ratioConfidenceStdDevs*samplingWidthCorrection(f))
}

// ratioUpperBound is ratioLowerBound's upper-bound counterpart.
func ratioUpperBound(a, b uint64, f float64) (float64, error) {
	if err := validateSampleRatioInputs(a, b, f); err != nil {
		return 0.0, err
	}
	if a == 0 {
		return 1.0, nil
	}
	if f == 1.0 {
		return float64(b) / float64(a), nil
	}
	return binomialproportionsbounds.ApproximateUpperBoundOnP(a, b, ratioConfidenceStdDevs*samplingWidthCorrection(f))
}

// samplingWidthCorrection widens the standard-deviation multiplier to
// account for the extra variance that Bernoulli sampling at probability
// f injects on top of the binomial-proportion uncertainty itself. Below
// f=0.5 this is just sqrt(1-f); above it a small linear term is added
// back in, since the plain sqrt(1-f) term alone underestimates the
// interval width once more than half the set has been sampled.
func samplingWidthCorrection(f float64) float64 {
	base := math.Sqrt(1.0 - f)
	if f <= 0.5 {
		return base
	}
	return base + 0.01*(f-0.5)
}

func validateSampleRatioInputs(a, b uint64, f float64) error {
	if a < b {
		return fmt.Errorf("a must be >= b: a = %d, b = %d", a, b)
	}
	if f > 1.0 || f <= 0.0 {
		return fmt.Errorf("inclusion probability f must satisfy 0 < f <= 1.0: %f", f)
	}
	return nil
}
