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

package compeng

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/utils/cast"
)

// Aggregator computes an aggregation incrementally. NULL values are
// ignored, an aggregation over no values is NULL (COUNT is 0).
type Aggregator interface {
	// New creates an empty aggregator of the same kind
	New() Aggregator
	// Add adds a value
	Add(value interface{})
	// Result returns the aggregation result
	Result() interface{}
}

// SumAggregator keeps integer sums exact until a float shows up.
type SumAggregator struct {
	ints    int64
	floats  float64
	isFloat bool
	has     bool
}

func (a *SumAggregator) New() Aggregator { return &SumAggregator{} }

func (a *SumAggregator) Add(value interface{}) {
	n, ok := toNumber(value)
	if !ok {
		return
	}
	a.has = true
	if n.isFloat && !a.isFloat {
		a.isFloat = true
		a.floats = float64(a.ints)
	}
	if a.isFloat {
		a.floats += n.float()
	} else {
		a.ints += n.i
	}
}

func (a *SumAggregator) Result() interface{} {
	switch {
	case !a.has:
		return nil
	case a.isFloat:
		return a.floats
	}
	return a.ints
}

// AvgAggregator 平均值
type AvgAggregator struct {
	sum   float64
	count int
}

func (a *AvgAggregator) New() Aggregator { return &AvgAggregator{} }

func (a *AvgAggregator) Add(value interface{}) {
	if n, ok := toNumber(value); ok {
		a.sum += n.float()
		a.count++
	}
}

func (a *AvgAggregator) Result() interface{} {
	if a.count == 0 {
		return nil
	}
	return a.sum / float64(a.count)
}

// ExtremumAggregator is MIN when sign is -1 and MAX when sign is 1.
type ExtremumAggregator struct {
	sign  int
	value interface{}
}

func (a *ExtremumAggregator) New() Aggregator { return &ExtremumAggregator{sign: a.sign} }

func (a *ExtremumAggregator) Add(value interface{}) {
	if value == nil {
		return
	}
	if a.value == nil || cast.Compare(value, a.value)*a.sign > 0 {
		a.value = value
	}
}

func (a *ExtremumAggregator) Result() interface{} { return a.value }

// CountAggregator counts non-NULL values.
type CountAggregator struct {
	n int64
}

func (a *CountAggregator) New() Aggregator { return &CountAggregator{} }

func (a *CountAggregator) Add(value interface{}) {
	if value != nil {
		a.n++
	}
}

func (a *CountAggregator) Result() interface{} { return a.n }

// CountDistinctAggregator 去重计数
type CountDistinctAggregator struct {
	seen map[string]struct{}
}

func (a *CountDistinctAggregator) New() Aggregator {
	return &CountDistinctAggregator{seen: make(map[string]struct{})}
}

func (a *CountDistinctAggregator) Add(value interface{}) {
	if value == nil {
		return
	}
	a.seen[valueKey(value)] = struct{}{}
}

func (a *CountDistinctAggregator) Result() interface{} { return int64(len(a.seen)) }

// MedianAggregator keeps every value, the median of an even count is the
// mean of the two middle values.
type MedianAggregator struct {
	values []float64
}

func (a *MedianAggregator) New() Aggregator { return &MedianAggregator{} }

func (a *MedianAggregator) Add(value interface{}) {
	if n, ok := toNumber(value); ok {
		a.values = append(a.values, n.float())
	}
}

func (a *MedianAggregator) Result() interface{} {
	n := len(a.values)
	if n == 0 {
		return nil
	}
	sorted := append([]float64(nil), a.values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// VarianceAggregator computes variance or standard deviation with Welford's
// algorithm, for a sample or for the whole population.
type VarianceAggregator struct {
	Sample bool
	Sqrt   bool
	count  int
	mean   float64
	m2     float64
}

func (a *VarianceAggregator) New() Aggregator {
	return &VarianceAggregator{Sample: a.Sample, Sqrt: a.Sqrt}
}

func (a *VarianceAggregator) Add(value interface{}) {
	n, ok := toNumber(value)
	if !ok {
		return
	}
	x := n.float()
	a.count++
	delta := x - a.mean
	a.mean += delta / float64(a.count)
	a.m2 += delta * (x - a.mean)
}

func (a *VarianceAggregator) Result() interface{} {
	div := float64(a.count)
	if a.Sample {
		div--
	}
	if div <= 0 {
		return nil
	}
	v := a.m2 / div
	if a.Sqrt {
		return math.Sqrt(v)
	}
	return v
}

// 聚合函数原型，按名称查找
var aggregators = map[string]Aggregator{
	"sum":    &SumAggregator{},
	"avg":    &AvgAggregator{},
	"min":    &ExtremumAggregator{sign: -1},
	"max":    &ExtremumAggregator{sign: 1},
	"any":    &ExtremumAggregator{sign: 1},
	"count":  &CountAggregator{},
	"countd": &CountDistinctAggregator{},
	"median": &MedianAggregator{},
	"stdev":  &VarianceAggregator{Sample: true, Sqrt: true},
	"stdevp": &VarianceAggregator{Sqrt: true},
	"var":    &VarianceAggregator{Sample: true},
	"varp":   &VarianceAggregator{},
}

// AggregationSpec describes how a call feeds its aggregator.
type AggregationSpec struct {
	Aggregator Aggregator
	// CondArg is the index of the condition argument of *_IF calls, -1 otherwise
	CondArg int
	// CountRows counts rows instead of argument values
	CountRows bool
}

// LookupAggregation resolves an aggregate function by name. COUNT without
// arguments counts rows; COUNT_IF(cond) counts rows where cond holds.
func LookupAggregation(name string, argCount int) (*AggregationSpec, error) {
	name = strings.ToLower(name)
	spec := &AggregationSpec{CondArg: -1}
	base := name
	if strings.HasSuffix(name, "_if") {
		base = strings.TrimSuffix(name, "_if")
		spec.CondArg = argCount - 1
	}
	proto, ok := aggregators[base]
	if !ok {
		return nil, exc.ErrCompeng.New(fmt.Sprintf("aggregation %s is not supported in memory", strings.ToUpper(name)))
	}
	spec.Aggregator = proto.New()
	if base == "count" && argCount == 0 || name == "count_if" {
		spec.CountRows = true
	}
	return spec, nil
}

// Feed adds the argument values of one row.
func (s *AggregationSpec) Feed(agg Aggregator, args []interface{}) {
	if s.CondArg >= 0 && !isTrue(args[s.CondArg]) {
		return
	}
	if s.CountRows || len(args) == 0 {
		agg.Add(true)
		return
	}
	agg.Add(args[0])
}

// valueKey builds a map key keeping values of different types apart.
func valueKey(v interface{}) string {
	if v == nil {
		return "\x00"
	}
	if n, ok := toNumber(v); ok {
		return "n:" + cast.ToString(n.float())
	}
	return fmt.Sprintf("%T:%s", v, cast.ToString(v))
}
