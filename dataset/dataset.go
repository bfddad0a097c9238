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

// Package dataset describes the virtual schema formulas are written against
// and the rows that flow out of executed queries.
package dataset

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
)

// CalcMode 字段计算方式
type CalcMode string

const (
	CalcDirect    CalcMode = "direct"
	CalcFormula   CalcMode = "formula"
	CalcParameter CalcMode = "parameter"
)

// Aggregation is the aggregation a field applies to its formula.
type Aggregation string

const (
	AggNone        Aggregation = "none"
	AggSum         Aggregation = "sum"
	AggAvg         Aggregation = "avg"
	AggMin         Aggregation = "min"
	AggMax         Aggregation = "max"
	AggCount       Aggregation = "count"
	AggCountUnique Aggregation = "countunique"
)

// FunctionName returns the formula function implementing the aggregation.
func (a Aggregation) FunctionName() string {
	switch a {
	case AggCountUnique:
		return "countd"
	case AggNone, "":
		return ""
	}
	return string(a)
}

// FieldType 维度或度量
type FieldType string

const (
	Dimension FieldType = "DIMENSION"
	Measure   FieldType = "MEASURE"
)

// Field is a dataset field. Direct fields read a source column, formula
// fields are computed from other fields, parameters hold a value.
type Field struct {
	ID           string           `yaml:"id" json:"id"`
	Title        string           `yaml:"title" json:"title"`
	CalcMode     CalcMode         `yaml:"calc_mode" json:"calc_mode"`
	Source       string           `yaml:"source,omitempty" json:"source,omitempty"`
	Formula      string           `yaml:"formula,omitempty" json:"formula,omitempty"`
	Aggregation  Aggregation      `yaml:"aggregation,omitempty" json:"aggregation,omitempty"`
	DataType     formula.DataType `yaml:"-" json:"-"`
	TypeName     string           `yaml:"type,omitempty" json:"type,omitempty"`
	DefaultValue interface{}      `yaml:"default_value,omitempty" json:"default_value,omitempty"`
	Hidden       bool             `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

// HasAggregation reports whether the field wraps its formula in an aggregation.
func (f *Field) HasAggregation() bool {
	return f.Aggregation.FunctionName() != ""
}

// Dataset 数据集：字段列表与源表
type Dataset struct {
	ID          string   `yaml:"id" json:"id"`
	SourceTable string   `yaml:"source_table" json:"source_table"`
	Fields      []*Field `yaml:"fields" json:"fields"`

	byID    map[string]*Field
	byTitle map[string]*Field
}

// New builds a dataset and indexes its fields.
func New(id, sourceTable string, fields ...*Field) (*Dataset, error) {
	ds := &Dataset{ID: id, SourceTable: sourceTable, Fields: fields}
	if err := ds.init(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Load reads a dataset description in YAML.
func Load(r io.Reader) (*Dataset, error) {
	ds := &Dataset{}
	if err := yaml.NewDecoder(r).Decode(ds); err != nil {
		return nil, exc.ErrInvalidRequest.Wrap(err, "invalid dataset description")
	}
	if err := ds.init(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (d *Dataset) init() error {
	d.byID = make(map[string]*Field, len(d.Fields))
	d.byTitle = make(map[string]*Field, len(d.Fields))
	for _, f := range d.Fields {
		if f.ID == "" {
			return exc.ErrInvalidRequest.New(fmt.Sprintf("field %q has no id", f.Title))
		}
		if _, dup := d.byID[f.ID]; dup {
			return exc.ErrInvalidRequest.New(fmt.Sprintf("duplicate field id %q", f.ID))
		}
		if f.CalcMode == "" {
			f.CalcMode = CalcDirect
		}
		if f.Aggregation == "" {
			f.Aggregation = AggNone
		}
		if f.TypeName != "" {
			t, ok := formula.ParseDataType(f.TypeName)
			if !ok {
				return exc.ErrInvalidRequest.New(fmt.Sprintf("field %q has unknown type %q", f.ID, f.TypeName))
			}
			f.DataType = t
		}
		switch f.CalcMode {
		case CalcDirect:
			if f.Source == "" {
				f.Source = f.ID
			}
		case CalcFormula, CalcParameter:
		default:
			return exc.ErrInvalidRequest.New(fmt.Sprintf("field %q has unknown calc mode %q", f.ID, f.CalcMode))
		}
		d.byID[f.ID] = f
		if f.Title != "" {
			d.byTitle[strings.ToLower(f.Title)] = f
		}
	}
	return nil
}

// FieldByID returns a field by id.
func (d *Dataset) FieldByID(id string) (*Field, error) {
	if d.byID == nil {
		if err := d.init(); err != nil {
			return nil, err
		}
	}
	f, ok := d.byID[id]
	if !ok {
		return nil, exc.ErrFieldNotFound.New(id).With("field_id", id)
	}
	return f, nil
}

// FieldByTitle returns a field by title, case-insensitively.
func (d *Dataset) FieldByTitle(title string) (*Field, error) {
	if d.byTitle == nil {
		if err := d.init(); err != nil {
			return nil, err
		}
	}
	f, ok := d.byTitle[strings.ToLower(title)]
	if !ok {
		return nil, exc.ErrFieldNotFound.New(title).With("title", title)
	}
	return f, nil
}

// Lookup resolves a formula reference, by id first and then by title.
func (d *Dataset) Lookup(ref string) (*Field, error) {
	if f, err := d.FieldByID(ref); err == nil {
		return f, nil
	}
	return d.FieldByTitle(ref)
}
