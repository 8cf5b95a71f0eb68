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

import "math"

// ResizeFactor controls how aggressively a hash table's backing array grows
// each time it fills up. The value is the number of bits added to
// lgCurSize per grow, not a linear multiplier — ResizeX8 doesn't mean "grow
// by 8 entries", it means "grow by 2^3", hence the naming looking like a
// factor while the field itself is an exponent.
type ResizeFactor uint8

const (
	// ResizeX1 never grows the table after its initial allocation; useful
	// when the caller already knows the final size and wants to skip
	// reallocation churn entirely.
	ResizeX1 ResizeFactor = iota
	// ResizeX2 doubles lgCurSize's backing array each grow.
	ResizeX2
	// ResizeX4 quadruples it.
	ResizeX4
	// ResizeX8 grows it eightfold — the default, favoring fewer, larger
	// reallocations over many small ones.
	ResizeX8
)

// DefaultResizeFactor is the default resize factor
const DefaultResizeFactor = ResizeX8

// MaxTheta is theta's starting value: the full 63-bit sampling space
// before anything has been excluded. Capped at math.MaxInt64 rather than
// MaxUint64 so that theta always fits the signed 64-bit field Java's wire
// format stores it in.
const MaxTheta uint64 = math.MaxInt64

// MinLgK bounds nominal size from below: below 2^5 entries the standard
// error guarantees this sketch family is built around stop being
// meaningful.
const MinLgK uint8 = 5

// MaxLgK bounds nominal size from above: a sketch configured past 2^26
// entries stops being more space-efficient than just keeping the exact set.
const MaxLgK uint8 = 26

// DefaultLgK is the default log2 of K
const DefaultLgK uint8 = 12

// DefaultSeed is the default seed for hashing
const DefaultSeed uint64 = 9001
