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

package formula

import "strings"

// DataType 表达式结果的数据类型
type DataType int

const (
	TypeUnsupported DataType = iota
	TypeNull
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeString
	TypeDate
	TypeDatetime
	TypeDatetimeTZ
	TypeGeopoint
	TypeGeopolygon
	TypeUUID
	TypeArrayInt
	TypeArrayFloat
	TypeArrayStr
	TypeTreeStr
	TypeMarkup

	// 常量类型，字面量推导出的类型
	TypeConstInteger
	TypeConstFloat
	TypeConstBoolean
	TypeConstString
	TypeConstDate
	TypeConstDatetime
	TypeConstDatetimeTZ
	TypeConstGeopoint
	TypeConstGeopolygon
	TypeConstUUID
	TypeConstArrayInt
	TypeConstArrayFloat
	TypeConstArrayStr
	TypeConstTreeStr
)

var dataTypeNames = map[DataType]string{
	TypeUnsupported:     "UNSUPPORTED",
	TypeNull:            "NULL",
	TypeInteger:         "INTEGER",
	TypeFloat:           "FLOAT",
	TypeBoolean:         "BOOLEAN",
	TypeString:          "STRING",
	TypeDate:            "DATE",
	TypeDatetime:        "DATETIME",
	TypeDatetimeTZ:      "DATETIMETZ",
	TypeGeopoint:        "GEOPOINT",
	TypeGeopolygon:      "GEOPOLYGON",
	TypeUUID:            "UUID",
	TypeArrayInt:        "ARRAY_INT",
	TypeArrayFloat:      "ARRAY_FLOAT",
	TypeArrayStr:        "ARRAY_STR",
	TypeTreeStr:         "TREE_STR",
	TypeMarkup:          "MARKUP",
	TypeConstInteger:    "CONST_INTEGER",
	TypeConstFloat:      "CONST_FLOAT",
	TypeConstBoolean:    "CONST_BOOLEAN",
	TypeConstString:     "CONST_STRING",
	TypeConstDate:       "CONST_DATE",
	TypeConstDatetime:   "CONST_DATETIME",
	TypeConstDatetimeTZ: "CONST_DATETIMETZ",
	TypeConstGeopoint:   "CONST_GEOPOINT",
	TypeConstGeopolygon: "CONST_GEOPOLYGON",
	TypeConstUUID:       "CONST_UUID",
	TypeConstArrayInt:   "CONST_ARRAY_INT",
	TypeConstArrayFloat: "CONST_ARRAY_FLOAT",
	TypeConstArrayStr:   "CONST_ARRAY_STR",
	TypeConstTreeStr:    "CONST_TREE_STR",
}

var constMirror = map[DataType]DataType{
	TypeInteger:    TypeConstInteger,
	TypeFloat:      TypeConstFloat,
	TypeBoolean:    TypeConstBoolean,
	TypeString:     TypeConstString,
	TypeDate:       TypeConstDate,
	TypeDatetime:   TypeConstDatetime,
	TypeDatetimeTZ: TypeConstDatetimeTZ,
	TypeGeopoint:   TypeConstGeopoint,
	TypeGeopolygon: TypeConstGeopolygon,
	TypeUUID:       TypeConstUUID,
	TypeArrayInt:   TypeConstArrayInt,
	TypeArrayFloat: TypeConstArrayFloat,
	TypeArrayStr:   TypeConstArrayStr,
	TypeTreeStr:    TypeConstTreeStr,
}

var nonConstMirror = func() map[DataType]DataType {
	m := make(map[DataType]DataType, len(constMirror))
	for k, v := range constMirror {
		m[v] = k
	}
	return m
}()

// String returns the upper case name of the type
func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return "UNSUPPORTED"
}

// IsConst reports whether t is one of the CONST_* types.
func (t DataType) IsConst() bool {
	_, ok := nonConstMirror[t]
	return ok
}

// NonConst strips the CONST_ prefix.
func (t DataType) NonConst() DataType {
	if base, ok := nonConstMirror[t]; ok {
		return base
	}
	return t
}

// Const returns the CONST_ mirror of t, or t itself when it has none.
func (t DataType) Const() DataType {
	if c, ok := constMirror[t]; ok {
		return c
	}
	return t
}

// IsNumeric 是否为数值类型
func (t DataType) IsNumeric() bool {
	switch t.NonConst() {
	case TypeInteger, TypeFloat:
		return true
	}
	return false
}

// IsTemporal 是否为日期时间类型
func (t DataType) IsTemporal() bool {
	switch t.NonConst() {
	case TypeDate, TypeDatetime, TypeDatetimeTZ:
		return true
	}
	return false
}

// IsArray 是否为数组类型
func (t DataType) IsArray() bool {
	switch t.NonConst() {
	case TypeArrayInt, TypeArrayFloat, TypeArrayStr:
		return true
	}
	return false
}

// CastableTo reports whether a value of type t may be used where other is expected.
// NULL casts to everything, CONST_X casts to X, INTEGER casts to FLOAT,
// DATE casts to DATETIME and MARKUP accepts strings.
func (t DataType) CastableTo(other DataType) bool {
	if t == TypeNull || t == other {
		return true
	}
	if other.IsConst() {
		return t.IsConst() && t.NonConst().CastableTo(other.NonConst())
	}
	base := t.NonConst()
	switch {
	case base == other:
		return true
	case base == TypeInteger && other == TypeFloat:
		return true
	case base == TypeDate && (other == TypeDatetime || other == TypeDatetimeTZ):
		return true
	case base == TypeDatetime && other == TypeDatetimeTZ:
		return true
	case base == TypeString && (other == TypeMarkup || other == TypeTreeStr):
		return true
	}
	return false
}

// CommonType returns the narrowest type both a and b cast to.
func CommonType(a, b DataType) (DataType, bool) {
	if a == TypeNull {
		return b, true
	}
	if b == TypeNull {
		return a, true
	}
	ca, cb := a.NonConst(), b.NonConst()
	var result DataType
	switch {
	case ca == cb:
		result = ca
	case a.CastableTo(cb):
		result = cb
	case b.CastableTo(ca):
		result = ca
	default:
		return TypeUnsupported, false
	}
	if a.IsConst() && b.IsConst() {
		result = result.Const()
	}
	return result, true
}

// ParseDataType parses a type name such as "INTEGER" or "const_string".
func ParseDataType(name string) (DataType, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range dataTypeNames {
		if n == upper {
			return t, true
		}
	}
	return TypeUnsupported, false
}
