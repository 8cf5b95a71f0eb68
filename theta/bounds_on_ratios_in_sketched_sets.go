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

import "errors"

// sketchedRatioCounts reduces two sketches (A and B, already required to
// satisfy thetaB <= thetaA) down to the pair of integer counts the ratio
// formulas below actually need: B's retained count, and however many of
// A's entries fall under B's theta. When the two share a theta exactly,
// A's own retained count already reflects that cutoff and a rescan is
// wasted; otherwise every entry of A must be checked against thetaB by
// hand since A's own retained count was computed against a looser cutoff.
func sketchedRatioCounts(sketchA, sketchB Sketch) (countA, countB uint64) {
	thetaB := sketchB.Theta64()
	countB = uint64(sketchB.NumRetained())
	if sketchA.Theta64() == thetaB {
		countA = uint64(sketchA.NumRetained())
	} else {
		countA = countLessThanTheta64(sketchA, thetaB)
	}
	return countA, countB
}

// lowerBoundForBOverAInSketchedSets gives a 95% confidence lower bound on
// the fraction of A's (sub-theta) entries that also appear in B.
func lowerBoundForBOverAInSketchedSets(sketchA, sketchB Sketch) (float64, error) {
	if err := validateThetas(sketchA.Theta64(), sketchB.Theta64()); err != nil {
		return 0, err
	}
	countA, countB := sketchedRatioCounts(sketchA, sketchB)
	if countA == 0 {
		return 0, nil
	}
	return ratioLowerBound(countA, countB, sketchB.Theta())
}

// upperBoundForBOverAInSketchedSets is the upper-bound counterpart of
// lowerBoundForBOverAInSketchedSets.
func upperBoundForBOverAInSketchedSets(sketchA, sketchB Sketch) (float64, error) {
	if err := validateThetas(sketchA.Theta64(), sketchB.Theta64()); err != nil {
		return 0, err
	}
	countA, countB := sketchedRatioCounts(sketchA, sketchB)
	if countA == 0 {
		return 1, nil
	}
	return ratioUpperBound(countA, countB, sketchB.Theta())
}

// estimateOfBOverAInSketchedSets is the point estimate the two bounds
// above straddle; with no observations it defaults to 0.5 rather than
// favoring either direction.
func estimateOfBOverAInSketchedSets(sketchA, sketchB Sketch) (float64, error) {
	if err := validateThetas(sketchA.Theta64(), sketchB.Theta64()); err != nil {
		return 0, err
	}
	countA, countB := sketchedRatioCounts(sketchA, sketchB)
	if countA == 0 {
		return 0.5, nil
	}
	return float64(countB) / float64(countA), nil
}

func validateThetas(thetaA, thetaB uint64) error {
	if thetaB > thetaA {
		return errors.New("theta_b must be <= theta_a")
	}
	return nil
}

func countLessThanTheta64(sketch Sketch, theta uint64) uint64 {
	count := uint64(0)
	for entry := range sketch.All() {
		if entry < theta {
			count++
		}
	}
	return count
}
