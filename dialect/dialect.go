/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dialect defines versioned SQL dialects as bit sets.
//
// Every concrete dialect version is a single bit. A backend is the union of
// its versions and Any is the union of everything. Translation variants are
// bound to such combinations and the most specific combination that contains
// the requested dialect wins.
package dialect

import (
	"math/bits"
	"sort"
	"strings"

	"github.com/rulego/dlquery/exc"
)

// DialectCombo is a set of dialect versions.
type DialectCombo uint64

// Concrete dialect versions, one bit each, ordered by version within a backend.
const (
	ClickHouse21_8 DialectCombo = 1 << iota
	ClickHouse22_10
	ClickHouse23_8
	PostgreSQL9_3
	PostgreSQL9_4
	MySQL5_6
	MySQL5_7
	MySQL8_0_12
	SQLite3
	CompengV1
)

// Backend-wide combinations.
const (
	Empty      DialectCombo = 0
	ClickHouse              = ClickHouse21_8 | ClickHouse22_10 | ClickHouse23_8
	PostgreSQL              = PostgreSQL9_3 | PostgreSQL9_4
	MySQL                   = MySQL5_6 | MySQL5_7 | MySQL8_0_12
	SQLite                  = SQLite3
	Compeng                 = CompengV1
	// SQL is every dialect that speaks SQL text
	SQL = ClickHouse | PostgreSQL | MySQL | SQLite
	Any = SQL | Compeng
)

// Backend 后端类型
type Backend string

const (
	BackendNone       Backend = ""
	BackendClickHouse Backend = "CLICKHOUSE"
	BackendPostgreSQL Backend = "POSTGRESQL"
	BackendMySQL      Backend = "MYSQL"
	BackendSQLite     Backend = "SQLITE"
	BackendCompeng    Backend = "COMPENG"
)

type backendInfo struct {
	backend  Backend
	versions []DialectCombo // ascending
}

var backends = []backendInfo{
	{BackendClickHouse, []DialectCombo{ClickHouse21_8, ClickHouse22_10, ClickHouse23_8}},
	{BackendPostgreSQL, []DialectCombo{PostgreSQL9_3, PostgreSQL9_4}},
	{BackendMySQL, []DialectCombo{MySQL5_6, MySQL5_7, MySQL8_0_12}},
	{BackendSQLite, []DialectCombo{SQLite3}},
	{BackendCompeng, []DialectCombo{CompengV1}},
}

var bitNames = map[DialectCombo]string{
	ClickHouse21_8:  "CLICKHOUSE_21_8",
	ClickHouse22_10: "CLICKHOUSE_22_10",
	ClickHouse23_8:  "CLICKHOUSE_23_8",
	PostgreSQL9_3:   "POSTGRESQL_9_3",
	PostgreSQL9_4:   "POSTGRESQL_9_4",
	MySQL5_6:        "MYSQL_5_6",
	MySQL5_7:        "MYSQL_5_7",
	MySQL8_0_12:     "MYSQL_8_0_12",
	SQLite3:         "SQLITE_3",
	CompengV1:       "COMPENG",
}

var comboNames = map[DialectCombo]string{
	ClickHouse: "CLICKHOUSE",
	PostgreSQL: "POSTGRESQL",
	MySQL:      "MYSQL",
	SQL:        "SQL",
	Any:        "ANY",
}

// Backends returns all known backends.
func Backends() []Backend {
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		out = append(out, b.backend)
	}
	return out
}

// BackendDialects returns the combination of all versions of a backend.
func BackendDialects(b Backend) DialectCombo {
	for _, info := range backends {
		if info.backend == b {
			var combo DialectCombo
			for _, v := range info.versions {
				combo |= v
			}
			return combo
		}
	}
	return Empty
}

func infoFor(d DialectCombo) (backendInfo, int, bool) {
	for _, info := range backends {
		for i, v := range info.versions {
			if v == d {
				return info, i, true
			}
		}
	}
	return backendInfo{}, 0, false
}

// IsSingle reports whether d is exactly one dialect version.
func (d DialectCombo) IsSingle() bool {
	return d != 0 && d&(d-1) == 0
}

// AndAbove returns d together with every later version of the same backend.
// d must be a single version.
func (d DialectCombo) AndAbove() DialectCombo {
	info, idx, ok := infoFor(d)
	if !ok {
		return d
	}
	combo := Empty
	for _, v := range info.versions[idx:] {
		combo |= v
	}
	return combo
}

// AndBelow returns d together with every earlier version of the same backend.
func (d DialectCombo) AndBelow() DialectCombo {
	info, idx, ok := infoFor(d)
	if !ok {
		return d
	}
	combo := Empty
	for _, v := range info.versions[:idx+1] {
		combo |= v
	}
	return combo
}

// ToList returns the single versions of d in declaration order.
func (d DialectCombo) ToList() []DialectCombo {
	out := make([]DialectCombo, 0, bits.OnesCount64(uint64(d)))
	for _, info := range backends {
		for _, v := range info.versions {
			if d&v != 0 {
				out = append(out, v)
			}
		}
	}
	return out
}

// Contains reports whether every version of other is in d.
func (d DialectCombo) Contains(other DialectCombo) bool {
	return other != 0 && other&^d == 0
}

// Overlaps reports whether d and other share a version.
func (d DialectCombo) Overlaps(other DialectCombo) bool {
	return d&other != 0
}

// Specificity is the number of versions in d. Lower is more specific.
func (d DialectCombo) Specificity() int {
	return bits.OnesCount64(uint64(d))
}

// Backend returns the backend all versions of d belong to, or BackendNone
// when d spans several backends.
func (d DialectCombo) Backend() Backend {
	var found Backend
	for _, info := range backends {
		for _, v := range info.versions {
			if d&v == 0 {
				continue
			}
			if found != BackendNone && found != info.backend {
				return BackendNone
			}
			found = info.backend
		}
	}
	return found
}

// String returns the canonical name of d.
// Unnamed combinations are rendered as names joined by "|".
func (d DialectCombo) String() string {
	if d == Empty {
		return "EMPTY"
	}
	if name, ok := comboNames[d]; ok {
		return name
	}
	if name, ok := bitNames[d]; ok {
		return name
	}
	parts := make([]string, 0, d.Specificity())
	rest := d
	for _, info := range backends {
		full := BackendDialects(info.backend)
		if rest&full == full && len(info.versions) > 1 {
			parts = append(parts, string(info.backend))
			rest &^= full
		}
	}
	for _, v := range rest.ToList() {
		parts = append(parts, bitNames[v])
	}
	return strings.Join(parts, "|")
}

// ParseDialect parses a dialect or backend name such as "POSTGRESQL_9_4",
// "POSTGRESQL" or "CLICKHOUSE|SQLITE_3". Names are case insensitive.
func ParseDialect(name string) (DialectCombo, error) {
	var combo DialectCombo
	for _, part := range strings.Split(name, "|") {
		part = strings.ToUpper(strings.TrimSpace(part))
		found := false
		for bit, n := range bitNames {
			if n == part {
				combo |= bit
				found = true
				break
			}
		}
		if !found {
			for c, n := range comboNames {
				if n == part {
					combo |= c
					found = true
					break
				}
			}
		}
		if !found {
			if b := BackendDialects(Backend(part)); b != Empty {
				combo |= b
				found = true
			}
		}
		if !found {
			return Empty, exc.ErrUnknownDialect.New(name)
		}
	}
	return combo, nil
}

// Names returns the names of all single versions, sorted.
func Names() []string {
	out := make([]string, 0, len(bitNames))
	for _, n := range bitNames {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Latest returns the newest version of a backend.
func Latest(b Backend) DialectCombo {
	for _, info := range backends {
		if info.backend == b {
			return info.versions[len(info.versions)-1]
		}
	}
	return Empty
}
