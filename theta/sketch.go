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
	"fmt"
	"iter"
	"strings"
)

// Sketch is the read-only contract both the mutable update sketches and
// the immutable CompactSketch satisfy: every set operation (Union,
// Intersection, ANotB) and every serializer in this package is written
// against this interface rather than a concrete type, so none of them
// care whether the hashes they're iterating came from a live hash table
// or a frozen sorted slice.
type Sketch interface {
	// IsEmpty returns true if this sketch represents an empty set
	// (not the same as no retained entries!)
	IsEmpty() bool

	// Estimate returns estimate of the distinct count of the input stream
	Estimate() float64

	// LowerBound returns the approximate lower error bound given a number of standard deviations.
	// This parameter is similar to the number of standard deviations of the normal distribution
	// and corresponds to approximately 67%, 95% and 99% confidence intervals.
	// numStdDevs number of Standard Deviations (1, 2 or 3)
	LowerBound(numStdDevs uint8) (float64, error)

	// UpperBound returns the approximate upper error bound given a number of standard deviations.
	// This parameter is similar to the number of standard deviations of the normal distribution
	// and corresponds to approximately 67%, 95% and 99% confidence intervals.
	// numStdDevs number of Standard Deviations (1, 2 or 3)
	UpperBound(numStdDevs uint8) (float64, error)

	// IsEstimationMode returns true if the sketch is in estimation mode
	// (as opposed to exact mode)
	IsEstimationMode() bool

	// Theta returns theta as a fraction from 0 to 1 (effective sampling rate)
	Theta() float64

	// Theta64 returns theta as a positive integer between 0 and math.MaxInt64
	Theta64() uint64

	// NumRetained returns the number of retained entries in the sketch
	NumRetained() uint32

	// SeedHash returns hash of the seed that was used to hash the input
	SeedHash() (uint16, error)

	// IsOrdered returns true if retained entries are ordered
	IsOrdered() bool

	// String returns a human-readable summary of this sketch as a string
	// If shouldPrintItems is true, include the list of items retained by the sketch
	String(shouldPrintItems bool) string

	// All returns hash values in the sketch.
	All() iter.Seq[uint64]
}

// summarizeSketch renders the same human-readable layout for any Sketch,
// so CompactSketch and WrappedCompactSketch print identically despite
// reading their fields from different underlying storage.
func summarizeSketch(s Sketch, shouldPrintItems bool) string {
	seedHash, _ := s.SeedHash()
	lb, _ := s.LowerBound(2)
	ub, _ := s.UpperBound(2)

	var sb strings.Builder
	sb.WriteString("### Theta sketch summary:\n")
	fmt.Fprintf(&sb, "   num retained entries : %d\n", s.NumRetained())
	fmt.Fprintf(&sb, "   seed hash            : %d\n", seedHash)
	fmt.Fprintf(&sb, "   empty?               : %t\n", s.IsEmpty())
	fmt.Fprintf(&sb, "   ordered?             : %t\n", s.IsOrdered())
	fmt.Fprintf(&sb, "   estimation mode?     : %t\n", s.IsEstimationMode())
	fmt.Fprintf(&sb, "   theta (fraction)     : %f\n", s.Theta())
	fmt.Fprintf(&sb, "   theta (raw 64-bit)   : %d\n", s.Theta64())
	fmt.Fprintf(&sb, "   estimate             : %f\n", s.Estimate())
	fmt.Fprintf(&sb, "   lower bound 95%% conf : %f\n", lb)
	fmt.Fprintf(&sb, "   upper bound 95%% conf : %f\n", ub)
	sb.WriteString("### End sketch summary\n")

	if shouldPrintItems {
		sb.WriteString("### Retained entries\n")
		for entry := range s.All() {
			fmt.Fprintf(&sb, "%d\n", entry)
		}
		sb.WriteString("### End retained entries\n")
	}

	return sb.String()
}

// thetaFraction converts a raw 64-bit theta value into the [0,1] sampling
// fraction it represents; every Sketch implementation's Theta() is this
// one division applied to its own Theta64().
func thetaFraction(theta64 uint64) float64 {
	return float64(theta64) / float64(MaxTheta)
}

// confidenceBound evaluates the shared binomial confidence-bound formula
// used by every Sketch's LowerBound/UpperBound: outside estimation mode
// the retained count already is the exact answer, so both bounds
// collapse onto it without consulting the bounds model at all.
func confidenceBound(numRetained uint32, theta float64, isEstimationMode bool, numStdDevs uint8, bound func(uint64, float64, uint) (float64, error)) (float64, error) {
	if !isEstimationMode {
		return float64(numRetained), nil
	}
	return bound(uint64(numRetained), theta, uint(numStdDevs))
}
