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

// Policy decides what happens when a set operation finds the same hash on
// both sides of a match. A plain union has nothing to reconcile — the
// match just confirms the hash is already retained — but this hook exists
// so a tuple/summary-carrying sketch built on top of this table (frequency
// sketches, for instance) can fold its per-key payload instead of dropping
// one side's data silently.
type Policy interface {
	// Apply runs against a matched pair: internalEntry is the slot already
	// held in the table, incomingEntry is the colliding hash from the
	// sketch being merged in.
	Apply(internalEntry *uint64, incomingEntry uint64)
}

// noopPolicy is what a bare Theta sketch (no attached summary) uses: a
// match on hash alone is already the entire union contract, so there is
// nothing further to reconcile.
type noopPolicy struct{}

func (*noopPolicy) Apply(internalEntry *uint64, incomingEntry uint64) {}
