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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioBounds_FullInclusionReturnsExactRatioWithNoInterval(t *testing.T) {
	lb, err := ratioLowerBound(100, 40, 1.0)
	require.NoError(t, err)
	ub, err := ratioUpperBound(100, 40, 1.0)
	require.NoError(t, err)

	assert.Equal(t, 0.4, lb)
	assert.Equal(t, 0.4, ub)
}

func TestRatioBounds_ZeroObservedASamplesGivesDegenerateInterval(t *testing.T) {
	lb, err := ratioLowerBound(0, 0, 0.1)
	require.NoError(t, err)
	assert.Zero(t, lb)

	ub, err := ratioUpperBound(0, 0, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ub)
}

func TestRatioBounds_RejectsBExceedingA(t *testing.T) {
	_, err := ratioLowerBound(10, 11, 0.5)
	assert.Error(t, err)

	_, err = ratioUpperBound(10, 11, 0.5)
	assert.Error(t, err)
}

func TestRatioBounds_RejectsInclusionProbabilityOutOfRange(t *testing.T) {
	for _, f := range []float64{0.0, -0.1, 1.1} {
		_, err := ratioLowerBound(10, 5, f)
		assert.Error(t, err, "f=%f should be rejected", f)
	}
}

func TestRatioBounds_LowerNeverExceedsUpper(t *testing.T) {
	cases := []struct {
		a, b uint64
		f    float64
	}{
		{100, 0, 0.2},
		{100, 50, 0.2},
		{100, 100, 0.2},
		{1000, 300, 0.05},
		{1000, 300, 0.49},
	}
	for _, c := range cases {
		lb, err := ratioLowerBound(c.a, c.b, c.f)
		require.NoError(t, err)
		ub, err := ratioUpperBound(c.a, c.b, c.f)
		require.NoError(t, err)
		assert.LessOrEqual(t, lb, ub, "a=%d b=%d f=%f", c.a, c.b, c.f)
	}
}

func TestRatioBounds_StraddleThePointEstimate(t *testing.T) {
	a, b, f := uint64(200), uint64(60), 0.3
	estimate := float64(b) / float64(a)

	lb, err := ratioLowerBound(a, b, f)
	require.NoError(t, err)
	ub, err := ratioUpperBound(a, b, f)
	require.NoError(t, err)

	assert.LessOrEqual(t, lb, estimate)
	assert.GreaterOrEqual(t, ub, estimate)
}

func TestRatioBounds_WidenAsInclusionProbabilityShrinks(t *testing.T) {
	widthAt := func(f float64) float64 {
		lb, err := ratioLowerBound(500, 150, f)
		require.NoError(t, err)
		ub, err := ratioUpperBound(500, 150, f)
		require.NoError(t, err)
		return ub - lb
	}

	// Less of A's universe sampled (smaller f) means less information
	// about the true ratio, so the interval should be no narrower.
	assert.GreaterOrEqual(t, widthAt(0.05), widthAt(0.4))
}

func TestSamplingWidthCorrection_MatchesSqrtBelowHalf(t *testing.T) {
	// Below f=0.5 the correction is exactly sqrt(1-f); above it a small
	// linear term is blended in. Exercise both branches directly.
	below := samplingWidthCorrection(0.2)
	above := samplingWidthCorrection(0.8)

	assert.InDelta(t, 0.894427191, below, 1e-6)
	assert.Greater(t, above, 0.0)
}
