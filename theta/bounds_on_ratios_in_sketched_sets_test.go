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

func TestSketchedRatioCounts_SameThetaSkipsRescan(t *testing.T) {
	a := buildSketch(t, nil, rangeValues(0, 50)).Compact(false)
	b := buildSketch(t, nil, rangeValues(25, 75)).Compact(false)
	require.Equal(t, a.Theta64(), b.Theta64())

	countA, countB := sketchedRatioCounts(a, b)
	assert.Equal(t, uint64(a.NumRetained()), countA)
	assert.Equal(t, uint64(b.NumRetained()), countB)
}

func TestSketchedRatioCounts_DifferentThetaRescansA(t *testing.T) {
	a := buildSketch(t, []UpdateSketchOptionFunc{WithUpdateSketchLgK(10)}, rangeValues(0, 20000)).Compact(false)
	b := buildSketch(t, []UpdateSketchOptionFunc{WithUpdateSketchLgK(10)}, rangeValues(0, 200)).Compact(false)
	require.NotEqual(t, a.Theta64(), b.Theta64())

	countA, _ := sketchedRatioCounts(a, b)
	// Only entries of A under B's (tighter) theta are eligible, so the
	// rescanned count must be no larger than A's own retained count.
	assert.LessOrEqual(t, countA, uint64(a.NumRetained()))
}

func TestValidateThetas_RejectsBWithLooserThetaThanA(t *testing.T) {
	err := validateThetas(100, 200)
	assert.Error(t, err)

	err = validateThetas(200, 100)
	assert.NoError(t, err)
}

func TestBoundsInSketchedSets_EmptyIntersectionGivesZeroEstimate(t *testing.T) {
	a := buildSketch(t, nil, rangeValues(0, 100)).Compact(false)
	disjoint := buildSketch(t, nil, rangeValues(1000, 1010)).Compact(false)

	inter := NewIntersection()
	require.NoError(t, inter.Update(a))
	require.NoError(t, inter.Update(disjoint))
	b, err := inter.Result(false)
	require.NoError(t, err)

	lb, err := lowerBoundForBOverAInSketchedSets(a, b)
	require.NoError(t, err)
	est, err := estimateOfBOverAInSketchedSets(a, b)
	require.NoError(t, err)
	ub, err := upperBoundForBOverAInSketchedSets(a, b)
	require.NoError(t, err)

	assert.Zero(t, lb)
	assert.Equal(t, 0.0, est)
	assert.Equal(t, 0.0, ub)
}

func TestBoundsInSketchedSets_FullOverlapEstimateIsOne(t *testing.T) {
	a := buildSketch(t, nil, rangeValues(0, 300)).Compact(false)
	b := buildSketch(t, nil, rangeValues(0, 300)).Compact(false)

	est, err := estimateOfBOverAInSketchedSets(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, est)
}

func TestBoundsInSketchedSets_LowerNeverExceedsUpper(t *testing.T) {
	a := buildSketch(t, nil, rangeValues(0, 500)).Compact(false)
	b := buildSketch(t, nil, rangeValues(100, 300)).Compact(false)

	lb, err := lowerBoundForBOverAInSketchedSets(a, b)
	require.NoError(t, err)
	ub, err := upperBoundForBOverAInSketchedSets(a, b)
	require.NoError(t, err)

	assert.LessOrEqual(t, lb, ub)
}

func TestBoundsInSketchedSets_BoundsStraddleTheEstimate(t *testing.T) {
	a := buildSketch(t, nil, rangeValues(0, 500)).Compact(false)
	b := buildSketch(t, nil, rangeValues(100, 300)).Compact(false)

	lb, err := lowerBoundForBOverAInSketchedSets(a, b)
	require.NoError(t, err)
	est, err := estimateOfBOverAInSketchedSets(a, b)
	require.NoError(t, err)
	ub, err := upperBoundForBOverAInSketchedSets(a, b)
	require.NoError(t, err)

	assert.LessOrEqual(t, lb, est)
	assert.GreaterOrEqual(t, ub, est)
}
