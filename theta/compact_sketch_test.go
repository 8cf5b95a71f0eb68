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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompactSketch_FromEmptySource(t *testing.T) {
	source := buildSketch(t, nil, nil)
	compact := NewCompactSketch(source, false)

	assert.True(t, compact.IsEmpty())
	assert.True(t, compact.IsOrdered())
	assert.Zero(t, compact.NumRetained())
}

func TestNewCompactSketch_OrderedRequestSortsUnorderedSource(t *testing.T) {
	source := buildSketch(t, nil, rangeValues(0, 100))
	require.False(t, source.IsOrdered())

	compact := NewCompactSketch(source, true)
	assert.True(t, compact.IsOrdered())

	var previous uint64
	first := true
	for entry := range compact.All() {
		if !first {
			assert.LessOrEqual(t, previous, entry)
		}
		previous = entry
		first = false
	}
}

func TestNewCompactSketch_UnorderedRequestKeepsSourceOrder(t *testing.T) {
	source := buildSketch(t, nil, rangeValues(0, 100))
	compact := NewCompactSketch(source, false)
	assert.False(t, compact.IsOrdered())
	assert.Equal(t, source.NumRetained(), compact.NumRetained())
}

func TestCompactSketch_SingleOrZeroEntriesAreAlwaysOrdered(t *testing.T) {
	zero := newCompactSketchFromEntries(true, false, 0, MaxTheta, nil)
	assert.True(t, zero.IsOrdered())

	one := newCompactSketchFromEntries(false, false, 0, MaxTheta, []uint64{42})
	assert.True(t, one.IsOrdered())
}

func TestCompactSketch_EstimateMatchesRetainedOverTheta(t *testing.T) {
	source := buildSketch(t, []UpdateSketchOptionFunc{WithUpdateSketchLgK(10)}, rangeValues(0, 50000))
	compact := source.Compact(false)

	assert.Equal(t, float64(compact.NumRetained())/compact.Theta(), compact.Estimate())
}

func TestCompactSketch_BoundsCollapseOutsideEstimationMode(t *testing.T) {
	source := buildSketch(t, nil, rangeValues(0, 10))
	compact := source.Compact(false)
	require.False(t, compact.IsEstimationMode())

	lb, err := compact.LowerBound(1)
	require.NoError(t, err)
	ub, err := compact.UpperBound(1)
	require.NoError(t, err)
	assert.Equal(t, float64(compact.NumRetained()), lb)
	assert.Equal(t, float64(compact.NumRetained()), ub)
}

func TestCompactSketch_MarshalBinaryRoundTripsThroughDecode(t *testing.T) {
	source := buildSketch(t, nil, rangeValues(0, 200))
	compact := source.CompactOrdered()

	bytes, err := compact.MarshalBinary()
	require.NoError(t, err)

	decoded, err := Decode(bytes, DefaultSeed)
	require.NoError(t, err)

	assert.Equal(t, compact.NumRetained(), decoded.NumRetained())
	assert.Equal(t, compact.Theta64(), decoded.Theta64())
	assert.Equal(t, compact.Estimate(), decoded.Estimate())
}

func TestCompactSketch_StringSummaryFormatsAllFields(t *testing.T) {
	source := buildSketch(t, nil, rangeValues(0, 5))
	compact := source.Compact(false)

	summary := compact.String(true)
	assert.Contains(t, summary, "### Theta sketch summary:")
	assert.Contains(t, summary, "### Retained entries")
	assert.Contains(t, summary, "### End retained entries")

	withoutItems := compact.String(false)
	assert.NotContains(t, withoutItems, "### Retained entries")
}

func TestCompactSketch_MaxSerializedSizeBytesGrowsWithLgK(t *testing.T) {
	small := (*CompactSketch)(nil).MaxSerializedSizeBytes(4)
	large := (*CompactSketch)(nil).MaxSerializedSizeBytes(12)
	assert.Less(t, small, large)
}

func TestCompactSketch_SerializedSizeBytesCompressedNeverExceedsUncompressed(t *testing.T) {
	source := buildSketch(t, nil, rangeValues(0, 1000))
	compact := source.CompactOrdered()

	uncompressed := compact.SerializedSizeBytes(false)
	compressed := compact.SerializedSizeBytes(true)
	assert.LessOrEqual(t, compressed, uncompressed)
}

func TestCompactSketch_UnorderedSketchIsNotSuitableForCompression(t *testing.T) {
	source := buildSketch(t, nil, rangeValues(0, 1000))
	compact := source.Compact(false)
	require.False(t, compact.IsOrdered())

	assert.False(t, compact.isSuitableForCompression())
}

func TestCompactSketch_CompressedEncodeDecodeRoundTrip(t *testing.T) {
	source := buildSketch(t, []UpdateSketchOptionFunc{WithUpdateSketchLgK(8)}, rangeValues(0, 2000))
	compact := source.CompactOrdered()
	require.True(t, compact.isSuitableForCompression())

	var buf bytes.Buffer
	enc := NewEncoder(&buf, true)
	require.NoError(t, enc.Encode(compact))

	decoded, err := Decode(buf.Bytes(), DefaultSeed)
	require.NoError(t, err)

	assert.Equal(t, compact.NumRetained(), decoded.NumRetained())
	assert.Equal(t, compact.Theta64(), decoded.Theta64())

	originalEntries := map[uint64]bool{}
	for e := range compact.All() {
		originalEntries[e] = true
	}
	for e := range decoded.All() {
		assert.True(t, originalEntries[e])
	}
}
