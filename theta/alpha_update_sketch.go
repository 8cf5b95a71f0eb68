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
	"iter"
	"math"
	"strings"

	"github.com/sketchkit/theta/internal"
)

// MinLgKAlpha is the minimum lg_nom for an Alpha sketch. Alpha trades the
// QuickSelect variant's flexibility at small k for a tighter variance, and
// is only worth it once the sampling/sketch-mode transition has enough
// entries to be meaningful.
const MinLgKAlpha uint8 = 9

// AlphaUpdateSketch is an Update Theta sketch that uses a geometric theta
// decrement instead of quick-select rebuilds. It trades a lazily-cleaned
// ("dirty") hash table for lower estimator variance at the same k.
type AlphaUpdateSketch struct {
	table *Hashtable

	alpha  float64
	split1 uint64

	// admittedCount counts admitted (non-duplicate) inserts made while the
	// table is not dirty. From the (k+1)-th one on, every such insert puts
	// the sketch (back) into dirty mode and lowers theta.
	admittedCount uint32
	dirty         bool
}

// NewAlphaUpdateSketch creates a new Alpha update sketch with the given options.
func NewAlphaUpdateSketch(opts ...UpdateSketchOptionFunc) (*AlphaUpdateSketch, error) {
	options := &updateSketchOptions{
		lgK:  DefaultLgK,
		rf:   DefaultResizeFactor,
		p:    1.0,
		seed: DefaultSeed,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.lgK < MinLgKAlpha {
		return nil, fmt.Errorf("lg_k must not be less than %d for the Alpha sketch: %d", MinLgKAlpha, options.lgK)
	}
	if options.lgK > MaxLgK {
		return nil, fmt.Errorf("lg_k must not be greater than %d: %d", MaxLgK, options.lgK)
	}
	if options.p <= 0 || options.p > 1 {
		return nil, errors.New("sampling probability must be between 0 and 1")
	}

	options.lgCurSize = startingSubMultiple(options.lgK+1, MinLgK, uint8(options.rf))
	options.theta = startingThetaFromP(options.p)

	k := float64(uint64(1) << options.lgK)
	alpha := k / (k + 1.0)
	split1 := uint64(float64(options.p) * (alpha + 1.0) / 2.0 * twoPow63)

	return &AlphaUpdateSketch{
		table: NewHashtable(
			options.lgCurSize, options.lgK, options.rf, options.p, options.theta, options.seed, true,
		),
		alpha:  alpha,
		split1: split1,
	}, nil
}

const twoPow63 = float64(uint64(1) << 63)

// IsEmpty returns true if this sketch represents an empty set
// (not the same as no retained entries!)
func (s *AlphaUpdateSketch) IsEmpty() bool {
	return s.table.isEmpty
}

// IsOrdered returns true if retained entries are ordered
func (s *AlphaUpdateSketch) IsOrdered() bool {
	return s.NumRetained() <= 1
}

// Theta64 returns theta as a positive integer between 0 and math.MaxInt64
func (s *AlphaUpdateSketch) Theta64() uint64 {
	if s.IsEmpty() {
		return MaxTheta
	}
	return s.table.theta
}

// Theta returns theta as a fraction from 0 to 1 (effective sampling rate)
func (s *AlphaUpdateSketch) Theta() float64 {
	return float64(s.Theta64()) / float64(MaxTheta)
}

// IsEstimationMode returns true if the sketch is in estimation mode
// (as opposed to exact mode)
func (s *AlphaUpdateSketch) IsEstimationMode() bool {
	return s.Theta64() < MaxTheta && !s.IsEmpty()
}

// NumRetained returns the number of entries that currently count toward the
// estimate. While the table is dirty this excludes tombstones (entries
// whose hash has fallen at or above the current theta but have not yet
// been reclaimed by a dirty rebuild), so it is recomputed by scanning.
func (s *AlphaUpdateSketch) NumRetained() uint32 {
	if !s.dirty {
		return s.table.numEntries
	}
	return countBelowTheta(s.table.entries, s.table.theta)
}

// SeedHash returns hash of the seed that was used to hash the input
func (s *AlphaUpdateSketch) SeedHash() (uint16, error) {
	seedHash, err := internal.ComputeSeedHash(int64(s.table.seed))
	if err != nil {
		return 0, err
	}
	return uint16(seedHash), nil
}

// LgK returns configured nominal number of entries in the sketch
func (s *AlphaUpdateSketch) LgK() uint8 {
	return s.table.lgNomSize
}

// ResizeFactor returns a configured resize factor of the sketch
func (s *AlphaUpdateSketch) ResizeFactor() ResizeFactor {
	return s.table.rf
}

// Estimate returns estimate of the distinct count of the input stream
func (s *AlphaUpdateSketch) Estimate() float64 {
	return float64(s.NumRetained()) / s.Theta()
}

// variance implements the three-regime Alpha variance formula. y = 1/p,
// thetaHat = theta as a fraction, b = 1/alpha, x = p/thetaHat.
func (s *AlphaUpdateSketch) variance() float64 {
	p := float64(s.table.p)
	y := 1.0 / p
	thetaHat := s.Theta()
	curCount := float64(s.NumRetained())
	k := float64(uint64(1) << s.table.lgNomSize)

	correction := (1.0 - thetaHat) / (thetaHat * thetaHat)

	switch {
	case s.table.theta > s.split1:
		// r = 0: still in sampling mode.
		return curCount*(y*y-y) + correction
	case float64(s.table.theta) > float64(s.split1)*s.alpha:
		// r = 1: just past the sampling/sketch-mode boundary.
		return (k+1.0)*(y*y-y) + correction
	default:
		// r >= 2: steady-state sketch mode.
		b := 1.0 / s.alpha
		x := p / thetaHat
		base := (k + 1.0) * (y*y - y)
		tail := (y / (1.0 - b*b)) * (y*b*b - y*x*x - b - b*b + x + x*b)
		return base + tail + correction
	}
}

// LowerBound returns the approximate lower error bound given a number of standard deviations.
func (s *AlphaUpdateSketch) LowerBound(numStdDevs uint8) (float64, error) {
	if numStdDevs < 1 || numStdDevs > 3 {
		return 0, fmt.Errorf("numStdDevs must be 1, 2 or 3: %d", numStdDevs)
	}
	if !s.IsEstimationMode() {
		return float64(s.NumRetained()), nil
	}
	bound := s.Estimate() - float64(numStdDevs)*math.Sqrt(s.variance())
	if bound < 0 {
		bound = 0
	}
	return bound, nil
}

// UpperBound returns the approximate upper error bound given a number of standard deviations.
func (s *AlphaUpdateSketch) UpperBound(numStdDevs uint8) (float64, error) {
	if numStdDevs < 1 || numStdDevs > 3 {
		return 0, fmt.Errorf("numStdDevs must be 1, 2 or 3: %d", numStdDevs)
	}
	if !s.IsEstimationMode() {
		return float64(s.NumRetained()), nil
	}
	return s.Estimate() + float64(numStdDevs)*math.Sqrt(s.variance()), nil
}

// UpdateInt64 updates this sketch with a given signed 64-bit integer.
func (s *AlphaUpdateSketch) UpdateInt64(value int64) error {
	hash, err := s.table.HashInt64AndScreen(value)
	if err != nil {
		return err
	}
	return s.insert(hash)
}

// UpdateUint64 updates this sketch with a given unsigned 64-bit integer.
func (s *AlphaUpdateSketch) UpdateUint64(value uint64) error {
	return s.UpdateInt64(int64(value))
}

// UpdateInt32 updates this sketch with a given signed 32-bit integer.
func (s *AlphaUpdateSketch) UpdateInt32(value int32) error {
	hash, err := s.table.HashInt32AndScreen(value)
	if err != nil {
		return err
	}
	return s.insert(hash)
}

// UpdateUint32 updates this sketch with a given unsigned 32-bit integer.
func (s *AlphaUpdateSketch) UpdateUint32(value uint32) error {
	return s.UpdateInt32(int32(value))
}

// UpdateInt16 updates this sketch with a given signed 16-bit integer.
func (s *AlphaUpdateSketch) UpdateInt16(value int16) error {
	return s.UpdateInt32(int32(value))
}

// UpdateUint16 updates this sketch with a given unsigned 16-bit integer.
func (s *AlphaUpdateSketch) UpdateUint16(value uint16) error {
	return s.UpdateInt32(int32(value))
}

// UpdateInt8 updates this sketch with a given signed 8-bit integer.
func (s *AlphaUpdateSketch) UpdateInt8(value int8) error {
	return s.UpdateInt32(int32(value))
}

// UpdateUint8 updates this sketch with a given unsigned 8-bit integer.
func (s *AlphaUpdateSketch) UpdateUint8(value uint8) error {
	return s.UpdateInt32(int32(value))
}

// UpdateFloat64 updates this sketch with a given double-precision floating point value.
func (s *AlphaUpdateSketch) UpdateFloat64(value float64) error {
	return s.UpdateInt64(canonicalDouble(value))
}

// UpdateFloat32 updates this sketch with a given floating point value.
func (s *AlphaUpdateSketch) UpdateFloat32(value float32) error {
	return s.UpdateFloat64(float64(value))
}

// UpdateString updates this sketch with a given string.
func (s *AlphaUpdateSketch) UpdateString(value string) error {
	if value == "" {
		return ErrUpdateEmptyString
	}
	hash, err := s.table.HashStringAndScreen(value)
	if err != nil {
		return err
	}
	return s.insert(hash)
}

// UpdateBytes updates this sketch with given data.
func (s *AlphaUpdateSketch) UpdateBytes(data []byte) error {
	hash, err := s.table.HashBytesAndScreen(data)
	if err != nil {
		return err
	}
	return s.insert(hash)
}

// insert admits a screened hash into the table, following either the
// sampling-mode growth path shared with QuickSelect or the dirty
// steady-state insert, per the phase transition in the Alpha sketch design.
func (s *AlphaUpdateSketch) insert(hash uint64) error {
	k := uint32(1) << s.table.lgNomSize

	if !s.dirty {
		index, err := s.table.Find(hash)
		if err == nil {
			return ErrDuplicateKey
		}

		s.table.Insert(index, hash)
		s.admittedCount++

		if s.admittedCount >= k+1 {
			s.dirty = true
			s.table.theta = floorMulAlpha(s.table.theta, s.alpha)
		}
		return nil
	}

	inserted, err := s.dirtyInsert(hash)
	if err != nil {
		return err
	}
	if !inserted {
		return ErrDuplicateKey
	}

	s.table.theta = floorMulAlpha(s.table.theta, s.alpha)

	if s.table.numEntries > computeCapacity(s.table.lgCurSize, s.table.lgNomSize) {
		s.rebuildDirty()
	}
	return nil
}

// dirtyInsert implements the two-phase probe from the design notes: phase A
// walks the chain looking for a tombstone, a duplicate, or an empty slot;
// phase B, entered once a tombstone is seen, keeps walking for a duplicate
// or an empty slot before committing to the remembered tombstone position.
// It returns false (no error) if the hash was already present.
func (s *AlphaUpdateSketch) dirtyInsert(hash uint64) (bool, error) {
	entries := s.table.entries
	lgSize := s.table.lgCurSize
	theta := s.table.theta

	size := uint32(1) << lgSize
	mask := size - 1
	stride := computeStride(hash, lgSize)
	index := uint32(hash) & mask
	loopIndex := index

	tombstoneIndex := -1
	for {
		probe := entries[index]
		switch {
		case probe == 0:
			if tombstoneIndex >= 0 {
				entries[tombstoneIndex] = hash
			} else {
				entries[index] = hash
				s.table.numEntries++
			}
			return true, nil
		case probe == hash:
			return false, nil
		case probe >= theta && tombstoneIndex < 0:
			tombstoneIndex = int(index)
		}

		index = (index + stride) & mask
		if index == loopIndex {
			if tombstoneIndex >= 0 {
				entries[tombstoneIndex] = hash
				return true, nil
			}
			return false, ErrKeyNotFoundAndNoEmptySlots
		}
	}
}

// rebuildDirty reclaims tombstones by compacting surviving (0, theta)
// entries into a fresh table of the same size, clearing the dirty flag. If
// that alone doesn't bring the table back under the rebuild threshold
// (theta hasn't shrunk enough yet), it forces one ×2 resize.
func (s *AlphaUpdateSketch) rebuildDirty() {
	theta := s.table.theta
	survivors := make([]uint64, 0, s.table.numEntries)
	for _, v := range s.table.entries {
		if v != 0 && v < theta {
			survivors = append(survivors, v)
		}
	}

	lgSize := s.table.lgCurSize
	if uint32(len(survivors)) > computeCapacity(lgSize, s.table.lgNomSize) {
		lgSize++
	}

	fresh := make([]uint64, 1<<lgSize)
	for _, v := range survivors {
		idx, _ := find(fresh, lgSize, v)
		fresh[idx] = v
	}

	s.table.entries = fresh
	s.table.lgCurSize = lgSize
	s.table.numEntries = uint32(len(survivors))
	s.dirty = false
}

func floorMulAlpha(theta uint64, alpha float64) uint64 {
	return uint64(math.Floor(float64(theta) * alpha))
}

func countBelowTheta(entries []uint64, theta uint64) uint32 {
	var count uint32
	for _, v := range entries {
		if v != 0 && v < theta {
			count++
		}
	}
	return count
}

// Trim removes tombstones in excess of nominal size, if any.
func (s *AlphaUpdateSketch) Trim() {
	if s.dirty && s.table.numEntries > uint32(1)<<s.table.lgNomSize {
		s.rebuildDirty()
	}
}

// Reset resets the sketch to the initial empty state.
func (s *AlphaUpdateSketch) Reset() {
	s.table.Reset()
	s.admittedCount = 0
	s.dirty = false
}

// All returns an iterator over hash values currently counted by the sketch.
func (s *AlphaUpdateSketch) All() iter.Seq[uint64] {
	theta := s.table.theta
	dirty := s.dirty
	return func(yield func(uint64) bool) {
		for _, entry := range s.table.entries {
			if entry == 0 {
				continue
			}
			if dirty && entry >= theta {
				continue
			}
			if !yield(entry) {
				return
			}
		}
	}
}

func (s *AlphaUpdateSketch) Compact(ordered bool) *CompactSketch {
	return NewCompactSketch(s, ordered)
}

func (s *AlphaUpdateSketch) CompactOrdered() *CompactSketch {
	return s.Compact(true)
}

// String returns a human-readable summary of this sketch as a string.
// If shouldPrintItems is true, include the list of items retained by the sketch.
func (s *AlphaUpdateSketch) String(shouldPrintItems bool) string {
	seedHash, _ := s.SeedHash()
	lb, _ := s.LowerBound(2)
	ub, _ := s.UpperBound(2)

	var result strings.Builder
	result.WriteString("### Alpha sketch summary:\n")
	result.WriteString(fmt.Sprintf("   num retained entries : %d\n", s.NumRetained()))
	result.WriteString(fmt.Sprintf("   seed hash            : %d\n", seedHash))
	result.WriteString(fmt.Sprintf("   empty?               : %t\n", s.IsEmpty()))
	result.WriteString(fmt.Sprintf("   dirty?               : %t\n", s.dirty))
	result.WriteString(fmt.Sprintf("   estimation mode?     : %t\n", s.IsEstimationMode()))
	result.WriteString(fmt.Sprintf("   theta (fraction)     : %f\n", s.Theta()))
	result.WriteString(fmt.Sprintf("   theta (raw 64-bit)   : %d\n", s.Theta64()))
	result.WriteString(fmt.Sprintf("   estimate             : %f\n", s.Estimate()))
	result.WriteString(fmt.Sprintf("   lower bound 95%% conf : %f\n", lb))
	result.WriteString(fmt.Sprintf("   upper bound 95%% conf : %f\n", ub))
	result.WriteString(fmt.Sprintf("   lg nominal size      : %d\n", s.LgK()))
	result.WriteString("### End sketch summary\n")

	if shouldPrintItems {
		result.WriteString("### Retained entries\n")
		for hash := range s.All() {
			result.WriteString(fmt.Sprintf("%d\n", hash))
		}
		result.WriteString("### End retained entries\n")
	}

	return result.String()
}
