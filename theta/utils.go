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
	"errors"
	"fmt"

	"github.com/sketchkit/theta/internal"
)

// checkEqual is the one comparison every preamble-decoding path needs: "does
// this byte we just read match what the caller expected", with a uniform
// error shape regardless of which preamble field is being checked. One
// generic function in place of four near-identical hand-written ones.
func checkEqual[T comparable](actual, expected T, description string) error {
	if actual != expected {
		return fmt.Errorf("%s mismatch: expected %v, actual %v", description, expected, actual)
	}
	return nil
}

// CheckSerialVersionEqual rejects a preamble whose serial version byte
// doesn't match what this decoder understands.
func CheckSerialVersionEqual(actual, expected uint8) error {
	return checkEqual(actual, expected, "serial version")
}

// CheckSketchFamilyEqual rejects bytes belonging to a different sketch
// family than the decoder being used (e.g. feeding an HLL preamble to the
// Theta decoder).
func CheckSketchFamilyEqual(actual, expected uint8) error {
	return checkEqual(actual, expected, "sketch family")
}

// CheckSketchTypeEqual rejects a preamble tagged with a sketch type the
// caller's decoder doesn't implement.
func CheckSketchTypeEqual(actual, expected uint8) error {
	return checkEqual(actual, expected, "sketch type")
}

// CheckSeedHashEqual rejects operands hashed with an incompatible seed
// before any set-operation math runs on their (otherwise meaningless
// together) hash values.
func CheckSeedHashEqual(actual, expected uint16) error {
	return checkEqual(actual, expected, "seed hash")
}

// startingThetaFromP converts a sampling probability into its theta
// representation. p==1 is special-cased rather than computed, since
// float64(MaxTheta)*1.0 can round away from MaxTheta exactly and a
// non-sampling sketch must start at precisely MaxTheta to report exact
// counts instead of silently starting in estimation mode.
func startingThetaFromP(p float32) uint64 {
	if p < 1 {
		return uint64(float64(MaxTheta) * float64(p))
	}
	return MaxTheta
}

// validateLgKAndP applies the two validity constraints shared by every
// constructor in this package that accepts a target size and a sampling
// probability (update sketches and unions both configure a hash table the
// same way): lgK must fall within the supported table-size range, and p
// must be a valid probability.
func validateLgKAndP(lgK uint8, p float32) error {
	if lgK < MinLgK {
		return fmt.Errorf("lg_k must not be less than %d: %d", MinLgK, lgK)
	}
	if lgK > MaxLgK {
		return fmt.Errorf("lg_k must not be greater than %d: %d", MaxLgK, lgK)
	}
	if p <= 0 || p > 1 {
		return errors.New("sampling probability must be between 0 and 1")
	}
	return nil
}

// requireSeedMatch computes ownSeed's seed hash and compares it against
// other's. Union and Intersection both need this before touching an
// incoming sketch's hashes: two sketches built with different seeds hash
// the same underlying values to unrelated numbers, so without this check a
// set operation between them would silently produce a meaningless result
// instead of an error.
func requireSeedMatch(ownSeed uint64, other Sketch) (uint16, error) {
	ownHash, err := internal.ComputeSeedHash(int64(ownSeed))
	if err != nil {
		return 0, err
	}
	otherHash, err := other.SeedHash()
	if err != nil {
		return 0, err
	}
	if uint16(ownHash) != otherHash {
		return 0, errors.New("seed hash mismatch")
	}
	return uint16(ownHash), nil
}

// startingSubMultiple finds the smallest table size a sketch can start at
// and still reach lgTgt by repeatedly growing by lgRf bits — the classic
// "grow geometrically but land exactly on the target" problem. A resize
// factor of 0 (RESIZE_FACTOR X1, i.e. never grow) means the table must
// already be lgTgt; any other factor walks backward from lgTgt in steps of
// lgRf until it can't go below lgMin.
func startingSubMultiple(lgTgt, lgMin, lgRf uint8) uint8 {
	if lgTgt <= lgMin {
		return lgMin
	}
	if lgRf == 0 {
		return lgTgt
	}
	return ((lgTgt - lgMin) % lgRf) + lgMin
}
