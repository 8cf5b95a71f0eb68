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

package internal

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuickSelect_OrderStatistics(t *testing.T) {
	testCases := []struct {
		name     string
		arr      []uint64
		pivot    int
		expected uint64
	}{
		{name: "minimum of unsorted", arr: []uint64{8, 1, 6, 3, 9, 2}, pivot: 0, expected: 1},
		{name: "maximum of unsorted", arr: []uint64{8, 1, 6, 3, 9, 2}, pivot: 5, expected: 9},
		{name: "median of unsorted, even spread", arr: []uint64{8, 1, 6, 3, 9, 2}, pivot: 2, expected: 3},
		{name: "already ascending", arr: []uint64{10, 20, 30, 40, 50}, pivot: 3, expected: 40},
		{name: "already descending", arr: []uint64{50, 40, 30, 20, 10}, pivot: 1, expected: 20},
		{name: "all entries equal", arr: []uint64{7, 7, 7, 7, 7}, pivot: 3, expected: 7},
		{name: "single element", arr: []uint64{42}, pivot: 0, expected: 42},
		{name: "two elements, pivot on larger", arr: []uint64{55, 13}, pivot: 1, expected: 55},
		{name: "repeated values around the target rank", arr: []uint64{4, 4, 4, 9, 1, 1}, pivot: 2, expected: 4},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			arr := slices.Clone(tc.arr)
			got := QuickSelect(arr, 0, len(arr)-1, tc.pivot)
			assert.Equal(t, tc.expected, got)
		})
	}
}

// TestQuickSelect_MatchesFullSort cross-checks every rank of several
// pseudo-random arrays against a plain sort, which is the property the
// hashtable rebuild path actually relies on: whatever QuickSelect returns
// for rank k must be the same value a full sort would put at index k.
func TestQuickSelect_MatchesFullSort(t *testing.T) {
	seed := uint64(0x2545F4914F6CDD1D)
	next := func() uint64 {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		return seed
	}

	const n = 37
	base := make([]uint64, n)
	for i := range base {
		base[i] = next() % 1000
	}

	sorted := slices.Clone(base)
	slices.Sort(sorted)

	for rank := 0; rank < n; rank++ {
		arr := slices.Clone(base)
		got := QuickSelect(arr, 0, n-1, rank)
		assert.Equal(t, sorted[rank], got, "rank %d", rank)
	}
}

// TestQuickSelect_PartitionsAroundResult confirms the side effect the
// callers depend on beyond the return value itself: after selection,
// everything left of pivot is no larger than the selected value and
// everything from pivot onward is no smaller.
func TestQuickSelect_PartitionsAroundResult(t *testing.T) {
	arr := []uint64{19, 3, 27, 8, 14, 2, 31, 16, 5}
	pivot := 4

	selected := QuickSelect(arr, 0, len(arr)-1, pivot)

	for i := 0; i < pivot; i++ {
		assert.LessOrEqual(t, arr[i], selected)
	}
	for i := pivot; i < len(arr); i++ {
		assert.GreaterOrEqual(t, arr[i], selected)
	}
}
