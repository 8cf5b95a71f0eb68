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

type Family struct {
	Id          int
	MaxPreLongs int
}

type families struct {
	Alpha       Family
	QuickSelect Family
	Union       Family
	Intersect   Family
	ANotB       Family
	HLL         Family
	Frequency   Family
	Kll         Family
	CPC         Family
}

var FamilyEnum = &families{
	Alpha: Family{
		Id:          1,
		MaxPreLongs: 3,
	},
	QuickSelect: Family{
		Id:          2,
		MaxPreLongs: 3,
	},
	Union: Family{
		Id:          4,
		MaxPreLongs: 3,
	},
	Intersect: Family{
		Id:          3,
		MaxPreLongs: 3,
	},
	ANotB: Family{
		Id:          5,
		MaxPreLongs: 3,
	},
	HLL: Family{
		Id:          7,
		MaxPreLongs: 1,
	},
	Frequency: Family{
		Id:          10,
		MaxPreLongs: 4,
	},
	Kll: Family{
		Id:          15,
		MaxPreLongs: 2,
	},
	CPC: Family{
		Id:          16,
		MaxPreLongs: 5,
	},
}
