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

func TestCheckEqualHelpers(t *testing.T) {
	cases := []struct {
		name      string
		check     func() error
		wantLabel string
	}{
		{"serial version match", func() error { return CheckSerialVersionEqual(3, 3) }, ""},
		{"serial version mismatch", func() error { return CheckSerialVersionEqual(4, 3) }, "serial version"},
		{"sketch family match", func() error { return CheckSketchFamilyEqual(9, 9) }, ""},
		{"sketch family mismatch", func() error { return CheckSketchFamilyEqual(9, 10) }, "sketch family"},
		{"sketch type match", func() error { return CheckSketchTypeEqual(3, 3) }, ""},
		{"sketch type mismatch", func() error { return CheckSketchTypeEqual(2, 3) }, "sketch type"},
		{"seed hash match", func() error { return CheckSeedHashEqual(0xBEEF, 0xBEEF) }, ""},
		{"seed hash mismatch", func() error { return CheckSeedHashEqual(0xBEEF, 0xCAFE) }, "seed hash"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.check()
			if tc.wantLabel == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantLabel)
		})
	}
}

func TestStartingThetaFromP(t *testing.T) {
	assert.Equal(t, MaxTheta, startingThetaFromP(1.0), "p == 1 must hit MaxTheta exactly, not a rounded approximation")
	assert.Equal(t, MaxTheta, startingThetaFromP(1.5), "p > 1 is treated the same as p == 1")
	assert.Equal(t, uint64(float64(MaxTheta)*0.25), startingThetaFromP(0.25))
	assert.Equal(t, uint64(0), startingThetaFromP(0))
}

func TestStartingSubMultiple(t *testing.T) {
	tests := []struct {
		name             string
		lgTgt, lgMin, rf uint8
		want             uint8
	}{
		{"target below minimum clamps to minimum", 3, 5, 2, 5},
		{"target equal to minimum", 5, 5, 2, 5},
		{"zero resize factor forces exact target", 10, 5, 0, 10},
		{"gap is an exact multiple of the resize step", 11, 5, 3, 5},
		{"gap leaves a remainder above minimum", 12, 5, 3, 6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, startingSubMultiple(tc.lgTgt, tc.lgMin, tc.rf))
		})
	}
}

func TestValidateLgKAndP(t *testing.T) {
	require.NoError(t, validateLgKAndP(DefaultLgK, 1.0))

	t.Run("lgK below the floor is rejected", func(t *testing.T) {
		err := validateLgKAndP(MinLgK-1, 1.0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lg_k must not be less than")
	})

	t.Run("lgK above the ceiling is rejected", func(t *testing.T) {
		err := validateLgKAndP(MaxLgK+1, 1.0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lg_k must not be greater than")
	})

	for _, p := range []float32{0, -0.5, 1.01, 2} {
		t.Run("invalid sampling probability is rejected", func(t *testing.T) {
			err := validateLgKAndP(DefaultLgK, p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "sampling probability")
		})
	}

	require.NoError(t, validateLgKAndP(MinLgK, 0.0001))
	require.NoError(t, validateLgKAndP(MaxLgK, 1.0))
}

func TestRequireSeedMatch(t *testing.T) {
	sketch, err := NewQuickSelectUpdateSketch()
	require.NoError(t, err)
	require.NoError(t, sketch.UpdateString("an item"))
	result := sketch.Compact(false)

	t.Run("matching seed succeeds and returns the hash", func(t *testing.T) {
		hash, err := requireSeedMatch(DefaultSeed, result)
		require.NoError(t, err)
		resultHash, _ := result.SeedHash()
		assert.Equal(t, resultHash, hash)
	})

	t.Run("mismatched seed is rejected", func(t *testing.T) {
		_, err := requireSeedMatch(DefaultSeed+1, result)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "seed hash mismatch")
	})
}
