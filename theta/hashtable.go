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
	"math"

	"github.com/sketchkit/theta/internal"
)

// Growth is capacity-driven, not load-factor driven in the usual hash-map
// sense: resizeThreshold caps the table at half full while it is still
// growing toward its nominal size (cheap, since we'll reallocate again
// soon anyway), and rebuildThreshold caps it much closer to full (15/16)
// once it has reached its capped target size, where reallocating means
// running quick-select instead of a plain grow.
const (
	resizeThreshold  = 0.5
	rebuildThreshold = 15.0 / 16.0
)

const (
	// strideHashBits selects how many key bits (above the index bits)
	// feed the probe stride. 6 bits gives 64 possible odd strides, which
	// in practice is plenty to keep secondary clustering rare.
	strideHashBits = 6
	strideMask     = (1 << strideHashBits) - 1
)

var (
	ErrKeyNotFound                = errors.New("key not found")
	ErrKeyNotFoundAndNoEmptySlots = errors.New("key not found and no empty slots")
	// ErrZeroHashValue signals a reduced hash of exactly zero, the
	// sentinel this table uses for "slot empty" — such a hash can never
	// be stored, so the caller must ignore the update instead.
	ErrZeroHashValue = errors.New("zero hash value")
	// ErrHashExceedsTheta signals a hash at or above theta: admissible
	// for the overall sampling process, just not for this sketch's
	// current window, so the update contributes nothing.
	ErrHashExceedsTheta = errors.New("hash exceeds theta")
)

// Hashtable is the open-addressed, double-hashed table of longs shared by
// both sketch variants: a flat uint64 slice where 0 marks an empty slot,
// sized to a power of two so probe arithmetic can use a bitmask instead of
// a modulo.
type Hashtable struct {
	entries    []uint64
	theta      uint64
	seed       uint64
	numEntries uint32
	p          float32
	lgCurSize  uint8
	lgNomSize  uint8
	rf         ResizeFactor
	isEmpty    bool
}

// NewHashtable allocates a table sized 2^lgCurSize, capped to grow no
// further than 2^(lgNomSize+1) entries.
func NewHashtable(lgCurSize, lgNomSize uint8, rf ResizeFactor, p float32, theta, seed uint64, isEmpty bool) *Hashtable {
	t := &Hashtable{
		isEmpty:   isEmpty,
		lgCurSize: lgCurSize,
		lgNomSize: lgNomSize,
		rf:        rf,
		p:         p,
		theta:     theta,
		seed:      seed,
	}
	if lgCurSize > 0 {
		t.entries = make([]uint64, 1<<lgCurSize)
	}
	return t
}

// Copy returns an independent deep copy: mutating one table must never be
// observable through the other.
func (t *Hashtable) Copy() *Hashtable {
	c := &Hashtable{
		isEmpty:    t.isEmpty,
		lgCurSize:  t.lgCurSize,
		lgNomSize:  t.lgNomSize,
		rf:         t.rf,
		p:          t.p,
		numEntries: t.numEntries,
		theta:      t.theta,
		seed:       t.seed,
	}
	if t.entries != nil {
		c.entries = make([]uint64, 1<<t.lgCurSize)
		copy(c.entries, t.entries)
	}
	return c
}

// screen reduces a 128-bit MurmurHash3 output to the 63-bit key space this
// table operates over (top bit cleared so every stored value is positive)
// and applies the theta admissibility test. Every HashXAndScreen method
// below is this same check wired to a different input encoding, so it is
// factored out once here rather than repeated four times.
func (t *Hashtable) screen(h128lo uint64) (uint64, error) {
	t.isEmpty = false
	hash := h128lo >> 1
	if hash >= t.theta {
		return 0, ErrHashExceedsTheta
	}
	if hash == 0 {
		return 0, ErrZeroHashValue
	}
	return hash, nil
}

// HashStringAndScreen hashes data's UTF-8 bytes and screens it against theta.
func (t *Hashtable) HashStringAndScreen(data string) (uint64, error) {
	lo, _ := internal.HashBytes128([]byte(data), 0, len(data), t.seed)
	return t.screen(lo)
}

// HashInt32AndScreen hashes a single int32 and screens it against theta.
func (t *Hashtable) HashInt32AndScreen(data int32) (uint64, error) {
	lo, _ := internal.HashInt32s128([]int32{data}, 0, 1, t.seed)
	return t.screen(lo)
}

// HashInt64AndScreen hashes a single int64 and screens it against theta.
func (t *Hashtable) HashInt64AndScreen(data int64) (uint64, error) {
	lo, _ := internal.HashInt64s128([]int64{data}, 0, 1, t.seed)
	return t.screen(lo)
}

// HashBytesAndScreen hashes a raw byte slice and screens it against theta.
func (t *Hashtable) HashBytesAndScreen(data []byte) (uint64, error) {
	lo, _ := internal.HashBytes128(data, 0, len(data), t.seed)
	return t.screen(lo)
}

// Find probes for key, returning the slot that holds it, or the first
// empty slot on the probe path if it is absent.
func (t *Hashtable) Find(key uint64) (int, error) {
	return find(t.entries, t.lgCurSize, key)
}

func find(entries []uint64, lgSize uint8, key uint64) (int, error) {
	size := uint32(1) << lgSize
	mask := size - 1
	stride := computeStride(key, lgSize)
	index := uint32(key) & mask

	start := index
	for {
		switch entries[index] {
		case 0:
			return int(index), ErrKeyNotFound
		case key:
			return int(index), nil
		}
		index = (index + stride) & mask
		if index == start {
			return 0, ErrKeyNotFoundAndNoEmptySlots
		}
	}
}

// computeStride derives the double-hashing step from bits of key just
// above the index bits. Forcing it odd guarantees the stride is coprime
// with the power-of-two table size, so a full probe cycle visits every
// slot before repeating.
func computeStride(key uint64, lgSize uint8) uint32 {
	return 2*uint32((key>>lgSize)&strideMask) + 1
}

// Insert writes entry at index (previously located via Find) and grows or
// rebuilds the table if that pushed it past capacity.
func (t *Hashtable) Insert(index int, entry uint64) {
	t.entries[index] = entry
	t.numEntries++

	if t.numEntries > computeCapacity(t.lgCurSize, t.lgNomSize) {
		if t.lgCurSize <= t.lgNomSize {
			t.resize()
		} else {
			t.rebuild()
		}
	}
}

func computeCapacity(lgCurSize, lgNomSize uint8) uint32 {
	threshold := rebuildThreshold
	if lgCurSize <= lgNomSize {
		threshold = resizeThreshold
	}
	return uint32(math.Floor(threshold * float64(uint32(1)<<lgCurSize)))
}

// resize grows the table by the configured resize factor (never past the
// capped target size) and rehashes every live entry into the larger
// table. No entry is dropped and theta does not move — this is pure
// reallocation, not the lossy quick-select path.
func (t *Hashtable) resize() {
	oldSize := 1 << t.lgCurSize
	lgNewSize := min(t.lgCurSize+uint8(t.rf), t.lgNomSize+1)
	newEntries := make([]uint64, 1<<lgNewSize)

	for i := 0; i < oldSize; i++ {
		if key := t.entries[i]; key != 0 {
			index, _ := find(newEntries, lgNewSize, key) // always finds room in a larger table
			newEntries[index] = key
		}
	}

	t.entries = newEntries
	t.lgCurSize = lgNewSize
}

// rebuild prunes the table back to its nominal size by quick-selecting
// the (k+1)-th smallest live entry as the new theta, then reinserting only
// the k entries strictly below it. This is the only place theta moves for
// the QuickSelect variant.
func (t *Hashtable) rebuild() {
	size := 1 << t.lgCurSize
	k := 1 << t.lgNomSize

	consolidateNonEmpty(t.entries, size, int(t.numEntries))

	internal.QuickSelect(t.entries[:t.numEntries], 0, int(t.numEntries)-1, k)
	t.theta = t.entries[k]

	survivors := t.entries[:k]
	t.entries = make([]uint64, size)
	t.numEntries = uint32(k)

	for _, key := range survivors {
		index, _ := find(t.entries, t.lgCurSize, key)
		t.entries[index] = key
	}
}

// Trim forces a rebuild if the table currently holds more than its
// nominal k entries — used when a caller wants a stable size ahead of
// serialization without waiting for the next Insert to trigger it.
func (t *Hashtable) Trim() {
	if t.numEntries > uint32(1)<<t.lgNomSize {
		t.rebuild()
	}
}

// Reset discards all entries and returns theta to its starting value,
// reallocating only if the starting size differs from the current one.
func (t *Hashtable) Reset() {
	startingLgSize := startingSubMultiple(t.lgNomSize+1, MinLgK, uint8(t.rf))

	if startingLgSize != t.lgCurSize {
		t.lgCurSize = startingLgSize
		t.entries = make([]uint64, 1<<startingLgSize)
	} else {
		for i := range t.entries {
			t.entries[i] = 0
		}
	}

	t.numEntries = 0
	t.theta = startingThetaFromP(t.p)
	t.isEmpty = true
}

// consolidateNonEmpty packs the first num non-zero entries of a
// possibly-sparse array into its front, in place, so QuickSelect has a
// dense slice to partition. Order among survivors is not preserved —
// quick-select doesn't care, and θ̂ only depends on the value, not position.
func consolidateNonEmpty(entries []uint64, size, num int) {
	dst := 0
	for dst < size && entries[dst] != 0 {
		dst++
	}
	for src := dst + 1; src < size && dst < num; src++ {
		if entries[src] != 0 {
			entries[dst] = entries[src]
			entries[src] = 0
			dst++
		}
	}
}
