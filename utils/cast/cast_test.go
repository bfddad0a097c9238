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

package cast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dlquery/formula"
)

func TestCoerce(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		input  interface{}
		typ    formula.DataType
		expect interface{}
		hasErr bool
	}{
		{"int from string", "42", formula.TypeInteger, int64(42), false},
		{"int leading zero", "010", formula.TypeInteger, int64(10), false},
		{"int zero", "0", formula.TypeInteger, int64(0), false},
		{"int from whole float", 3.0, formula.TypeInteger, int64(3), false},
		{"int from fraction", 3.5, formula.TypeInteger, nil, true},
		{"int from garbage", "abc", formula.TypeInteger, nil, true},
		{"float", "1.5", formula.TypeFloat, 1.5, false},
		{"const float", 2, formula.TypeConstFloat, 2.0, false},
		{"bool", "true", formula.TypeBoolean, true, false},
		{"string", 12, formula.TypeString, "12", false},
		{"date", "2024-03-01", formula.TypeDate, day, false},
		{"date truncates", "2024-03-01 10:11:12", formula.TypeDate, day, false},
		{"datetime", "2024-03-01 10:11:12", formula.TypeDatetime, day.Add(10*time.Hour + 11*time.Minute + 12*time.Second), false},
		{"bad date", "March", formula.TypeDate, nil, true},
		{"nil", nil, formula.TypeInteger, nil, false},
		{"bytes", []byte("7"), formula.TypeInteger, int64(7), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.input, tt.typ)
			if tt.hasErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 0, Compare(nil, nil))
	assert.Equal(t, -1, Compare(nil, 1))
	assert.Equal(t, 1, Compare(2, nil))
	assert.Equal(t, -1, Compare(int64(2), 10.5))
	assert.Equal(t, 1, Compare("b", "a"))
	// 字符串按字典序，不按数值
	assert.Equal(t, 1, Compare("9", "10"))
	assert.Equal(t, -1, Compare(false, true))
	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, -1, Compare(early, early.Add(time.Hour)))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "2024-03-01", ToString(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-01 10:00:00", ToString(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "7", ToString(int64(7)))
}
