/*
 * Copyright 2024 The RuleGo Authors.
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

// Package cast converts loosely typed values (request parameters, driver
// results, in-memory rows) into the Go values used for each formula type.
package cast

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/rulego/dlquery/formula"
)

// 支持的日期格式
var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05-07:00",
}

// ToTimeE parses a date or datetime from strings, numbers (unix seconds)
// and time values.
func ToTimeE(v interface{}) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte:
		return ToTimeE(string(x))
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse %q as time", x)
	}
	return cast.ToTimeE(v)
}

// Coerce converts v into the Go value of type t: int64, float64, string,
// bool or time.Time. Nil stays nil.
func Coerce(v interface{}, t formula.DataType) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch t.NonConst() {
	case formula.TypeInteger:
		if s, ok := v.(string); ok {
			// spf13/cast 会把前导 0 当作八进制
			v = strings.TrimLeft(s, "0")
			if v == "" {
				return int64(0), nil
			}
		}
		if f, ok := v.(float64); ok && f != float64(int64(f)) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
		return cast.ToInt64E(v)
	case formula.TypeFloat:
		return cast.ToFloat64E(v)
	case formula.TypeBoolean:
		return cast.ToBoolE(v)
	case formula.TypeDate:
		tm, err := ToTimeE(v)
		if err != nil {
			return nil, err
		}
		return time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, time.UTC), nil
	case formula.TypeDatetime, formula.TypeDatetimeTZ:
		return ToTimeE(v)
	case formula.TypeString, formula.TypeUUID, formula.TypeMarkup:
		return cast.ToStringE(v)
	}
	return v, nil
}

// ToFloat64 converts numbers, bools and numeric strings, ok is false for
// anything else.
func ToFloat64(v interface{}) (float64, bool) {
	switch v.(type) {
	case nil, time.Time:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

// ToString renders a value the way it is shown in headers and templates.
func ToString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return formula.FormatFloat(x)
	}
	return cast.ToString(v)
}

// Compare orders two values: NULLs first, then numbers, times and strings
// by their natural order. Values of different kinds compare as strings.
func Compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return compareBool(ba, bb)
		}
	}
	fa, okA := ToFloat64(a)
	fb, okB := ToFloat64(b)
	if okA && okB && !isString(a) && !isString(b) {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(ToString(a), ToString(b))
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}
