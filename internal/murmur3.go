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

// Package internal holds the MurmurHash3 x64-128 primitive the sketch
// engine builds on, plus a couple of array-layout helpers it shares with
// the hash table. The hash itself is a fixed, externally standardized
// algorithm (and deliberately out of this engine's own design surface —
// every sketch library that wants cross-implementation-compatible wire
// bytes has to agree on exactly these mixing constants) so only its
// surrounding plumbing — naming, input-shape entry points — is this
// module's own.
package internal

// murmur3C1 and murmur3C2 are MurmurHash3 x64-128's fixed mixing
// constants; changing either would silently produce a different (if
// still well-distributed) hash family incompatible with any other
// MurmurHash3 x64-128 implementation reading the same bytes.
const (
	murmur3C1 = 0x87c37b91114253d5
	murmur3C2 = 0x4cf5ad432745937f
)

// murmur3State accumulates the running 128-bit hash across however many
// fixed-width blocks an input decomposes into.
type murmur3State struct {
	h1 uint64
	h2 uint64
}

// HashChars128 hashes a run of single-byte "chars" (the width datasketches
// uses for UTF-16-derived character data) in 8-char/8-byte blocks.
func HashChars128(key []byte, offsetChars int, lengthChars int, seed uint64) (uint64, uint64) {
	state := murmur3State{h1: seed, h2: seed}

	nblocks := lengthChars >> 3
	for i := 0; i < nblocks; i++ {
		k1 := readTailBytes(key, offsetChars+(i<<3), 4)
		k2 := readTailBytes(key, offsetChars+(i<<3)+4, 4)
		state.absorbBlock(k1, k2)
	}

	tail := nblocks << 3
	rem := lengthChars - tail
	var k1, k2 uint64
	switch {
	case rem > 4:
		k1 = readTailBytes(key, offsetChars+tail, 4)
		k2 = readTailBytes(key, offsetChars+tail+4, rem-4)
	case rem != 0:
		k1 = readTailBytes(key, offsetChars+tail, rem)
	}

	return state.finalize(k1, k2, uint64(lengthChars)<<1)
}

// HashInt32s128 hashes a run of int32s in 4-element/16-byte blocks.
func HashInt32s128(key []int32, offsetInts int, lengthInts int, seed uint64) (uint64, uint64) {
	state := murmur3State{h1: seed, h2: seed}

	nblocks := lengthInts >> 2
	for i := 0; i < nblocks; i++ {
		k1 := uint64(key[offsetInts+(i<<2)])
		k2 := uint64(key[offsetInts+(i<<2)+2])
		state.absorbBlock(k1, k2)
	}

	tail := nblocks << 2
	rem := lengthInts - tail
	var k1, k2 uint64
	switch {
	case rem > 2:
		k1 = uint64(key[offsetInts+tail])
		k2 = uint64(key[offsetInts+tail+2])
	case rem != 0:
		k1 = uint64(key[offsetInts+tail])
	}

	return state.finalize(k1, k2, uint64(lengthInts)<<2)
}

// HashInt64s128 hashes a run of int64s in 2-element/16-byte blocks.
func HashInt64s128(key []int64, offsetLongs int, lengthLongs int, seed uint64) (uint64, uint64) {
	state := murmur3State{h1: seed, h2: seed}

	nblocks := lengthLongs >> 1
	for i := 0; i < nblocks; i++ {
		k1 := uint64(key[offsetLongs+(i<<1)])
		k2 := uint64(key[offsetLongs+(i<<1)+1])
		state.absorbBlock(k1, k2)
	}

	tail := nblocks << 1
	rem := lengthLongs - tail
	var k1 uint64
	if rem != 0 {
		k1 = uint64(key[offsetLongs+tail])
	}

	return state.finalize(k1, 0, uint64(lengthLongs)<<3)
}

// HashBytes128 hashes a raw byte slice in 16-byte blocks.
func HashBytes128(key []byte, offsetBytes int, lengthBytes int, seed uint64) (uint64, uint64) {
	state := murmur3State{h1: seed, h2: seed}

	nblocks := lengthBytes >> 4
	for i := 0; i < nblocks; i++ {
		k1 := readTailBytes(key, offsetBytes+(i<<4), 8)
		k2 := readTailBytes(key, offsetBytes+(i<<4)+8, 8)
		state.absorbBlock(k1, k2)
	}

	tail := nblocks << 4
	rem := lengthBytes - tail
	var k1, k2 uint64
	switch {
	case rem > 8:
		k1 = readTailBytes(key, offsetBytes+tail, 8)
		k2 = readTailBytes(key, offsetBytes+tail+8, rem-8)
	case rem != 0:
		k1 = readTailBytes(key, offsetBytes+tail, rem)
	}

	return state.finalize(k1, k2, uint64(lengthBytes))
}

// readTailBytes little-endian-packs up to 8 bytes starting at index into a
// uint64; used both for full blocks and for the sub-block remainder.
func readTailBytes(b []byte, index int, n int) uint64 {
	var out uint64
	for i := n - 1; i >= 0; i-- {
		out ^= uint64(b[index+i]) << uint(i*8)
	}
	return out
}

func mixK1(k1 uint64) uint64 {
	k1 *= murmur3C1
	k1 = (k1 << 31) | (k1 >> (64 - 31))
	k1 *= murmur3C2
	return k1
}

func mixK2(k2 uint64) uint64 {
	k2 *= murmur3C2
	k2 = (k2 << 33) | (k2 >> (64 - 33))
	k2 *= murmur3C1
	return k2
}

func fmix64(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// absorbBlock folds one 128-bit (k1, k2) block into the running state.
func (m *murmur3State) absorbBlock(k1, k2 uint64) {
	m.h1 ^= mixK1(k1)
	m.h1 = (m.h1 << 27) | (m.h1 >> (64 - 27))
	m.h1 += m.h2
	m.h1 = m.h1*5 + 0x52dce729

	m.h2 ^= mixK2(k2)
	m.h2 = (m.h2 << 31) | (m.h2 >> (64 - 31))
	m.h2 += m.h1
	m.h2 = m.h2*5 + 0x38495ab5
}

// finalize mixes in the trailing partial block and the total input length,
// then runs the avalanche finisher on both halves.
func (m *murmur3State) finalize(k1, k2, inputLengthBytes uint64) (uint64, uint64) {
	m.h1 ^= mixK1(k1)
	m.h2 ^= mixK2(k2)
	m.h1 ^= inputLengthBytes
	m.h2 ^= inputLengthBytes
	m.h1 += m.h2
	m.h2 += m.h1
	m.h1 = fmix64(m.h1)
	m.h2 = fmix64(m.h2)
	m.h1 += m.h2
	m.h2 += m.h1
	return m.h1, m.h2
}
