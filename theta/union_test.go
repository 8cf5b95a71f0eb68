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

func TestNewUnion_Defaults(t *testing.T) {
	u, err := NewUnion()
	require.NoError(t, err)

	result, err := u.Result(false)
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
	assert.Zero(t, result.NumRetained())
}

func TestNewUnion_RejectsBadOptions(t *testing.T) {
	_, err := NewUnion(WithUnionLgK(MaxLgK + 1))
	assert.Error(t, err)

	_, err = NewUnion(WithUnionSketchP(-1))
	assert.Error(t, err)
}

func TestUnion_UpdateWithEmptySketchIsANoOp(t *testing.T) {
	u, err := NewUnion()
	require.NoError(t, err)

	empty := buildSketch(t, nil, nil)
	require.NoError(t, u.Update(empty))

	result, err := u.Result(false)
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
}

func TestUnion_MergesDisjointExactSketchesExactly(t *testing.T) {
	a := buildSketch(t, nil, rangeValues(0, 30))
	b := buildSketch(t, nil, rangeValues(30, 60))

	u, err := NewUnion()
	require.NoError(t, err)
	require.NoError(t, u.Update(a))
	require.NoError(t, u.Update(b))

	result, err := u.Result(false)
	require.NoError(t, err)
	assert.Equal(t, uint32(60), result.NumRetained())
	assert.Equal(t, 60.0, result.Estimate())
}

func TestUnion_OverlappingSketchesDeduplicate(t *testing.T) {
	a := buildSketch(t, nil, rangeValues(0, 50))
	b := buildSketch(t, nil, rangeValues(25, 75))

	u, err := NewUnion()
	require.NoError(t, err)
	require.NoError(t, u.Update(a))
	require.NoError(t, u.Update(b))

	result, err := u.Result(false)
	require.NoError(t, err)
	assert.Equal(t, uint32(75), result.NumRetained())
}

func TestUnion_ResultDoesNotConsumeTheAccumulator(t *testing.T) {
	u, err := NewUnion()
	require.NoError(t, err)
	require.NoError(t, u.Update(buildSketch(t, nil, rangeValues(0, 10))))

	first, err := u.Result(false)
	require.NoError(t, err)

	require.NoError(t, u.Update(buildSketch(t, nil, rangeValues(10, 20))))
	second, err := u.Result(false)
	require.NoError(t, err)

	assert.Equal(t, uint32(10), first.NumRetained())
	assert.Equal(t, uint32(20), second.NumRetained())
}

func TestUnion_EstimationModeRespectsSmallestThetaSeen(t *testing.T) {
	lgK := uint8(8)
	u, err := NewUnion(WithUnionLgK(lgK))
	require.NoError(t, err)

	big := buildSketch(t, []UpdateSketchOptionFunc{WithUpdateSketchLgK(lgK)}, rangeValues(0, 10000))
	require.True(t, big.IsEstimationMode())

	require.NoError(t, u.Update(big))
	result, err := u.Result(false)
	require.NoError(t, err)

	assert.True(t, result.IsEstimationMode())
	assert.InEpsilon(t, 10000.0, result.Estimate(), 0.1)
}

func TestUnion_NominalSizeCapsTheRetainedEntryCount(t *testing.T) {
	lgK := uint8(6)
	u, err := NewUnion(WithUnionLgK(lgK))
	require.NoError(t, err)

	for base := int64(0); base < 5; base++ {
		sketch := buildSketch(t, []UpdateSketchOptionFunc{WithUpdateSketchLgK(lgK)},
			rangeValues(base*10000, base*10000+10000))
		require.NoError(t, u.Update(sketch))
	}

	result, err := u.Result(false)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.NumRetained(), uint32(1<<lgK))
}

func TestUnion_RejectsMismatchedSeed(t *testing.T) {
	u, err := NewUnion(WithUnionSeed(7))
	require.NoError(t, err)

	other := buildSketch(t, []UpdateSketchOptionFunc{WithUpdateSketchSeed(8)}, rangeValues(0, 5))
	err = u.Update(other)
	assert.Error(t, err)
}

func TestUnion_ResetReturnsToEmptyAccumulatorState(t *testing.T) {
	u, err := NewUnion()
	require.NoError(t, err)
	require.NoError(t, u.Update(buildSketch(t, nil, rangeValues(0, 100))))

	u.Reset()

	result, err := u.Result(false)
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
	assert.Zero(t, result.NumRetained())
}

func TestUnion_OrderedResultIsSorted(t *testing.T) {
	u, err := NewUnion()
	require.NoError(t, err)
	require.NoError(t, u.Update(buildSketch(t, nil, rangeValues(0, 200))))

	result, err := u.OrderedResult()
	require.NoError(t, err)

	var previous uint64
	first := true
	for entry := range result.All() {
		if !first {
			assert.LessOrEqual(t, previous, entry)
		}
		previous = entry
		first = false
	}
}

func TestUnion_DefaultPolicyKeepsMatchingEntriesOnce(t *testing.T) {
	u, err := NewUnion()
	require.NoError(t, err)
	assert.NotNil(t, u.Policy())

	require.NoError(t, u.Update(buildSketch(t, nil, rangeValues(0, 10))))
	require.NoError(t, u.Update(buildSketch(t, nil, rangeValues(0, 10))))

	result, err := u.Result(false)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), result.NumRetained())
}
