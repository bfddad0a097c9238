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

package compilation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/inspect"
	"github.com/rulego/dlquery/legend"
	"github.com/rulego/dlquery/logger"
	"github.com/rulego/dlquery/mutation"
)

// Compiler compiles block legends against one dataset.
type Compiler struct {
	Dataset *dataset.Dataset
	Catalog inspect.FunctionCatalog
	// AllowNestedWindows lets window calls take other window calls as arguments
	AllowNestedWindows bool
	Logger             logger.Logger
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithNestedWindows allows nested window functions.
func WithNestedWindows(allow bool) CompilerOption {
	return func(c *Compiler) { c.AllowNestedWindows = allow }
}

// WithLogger sets the compiler logger.
func WithLogger(l logger.Logger) CompilerOption {
	return func(c *Compiler) { c.Logger = l }
}

// NewCompiler creates a compiler for ds. catalog classifies functions,
// usually the registry of the target connector set.
func NewCompiler(ds *dataset.Dataset, catalog inspect.FunctionCatalog, opts ...CompilerOption) *Compiler {
	c := &Compiler{Dataset: ds, Catalog: catalog}
	for _, opt := range opts {
		opt(c)
	}
	c.Logger = logger.OrDefault(c.Logger)
	return c
}

// Env returns the inspection environment of the dataset: source columns
// typed by their direct fields.
func (c *Compiler) Env() *inspect.Environment {
	types := make(map[string]formula.DataType)
	for _, f := range c.Dataset.Fields {
		if f.CalcMode == dataset.CalcDirect {
			types[f.Source] = f.DataType
		}
	}
	return inspect.NewEnvironment(c.Catalog, types)
}

// Compile compiles every block of bl into one top query. Blocks share the
// query and expression id sequences.
func (c *Compiler) Compile(bl *legend.BlockLegend) (*CompiledMultiQuery, error) {
	if err := bl.Validate(); err != nil {
		return nil, err
	}
	env := c.Env()
	queryIDs := NewPrefixedIDGen("q")
	exprIDs := NewPrefixedIDGen("e")
	var (
		queries []*CompiledQuery
		blocks  []*CompiledBlock
	)
	for _, spec := range bl.Blocks {
		bc := &blockCompiler{
			c:         c,
			env:       env,
			spec:      spec,
			meta:      bl.Meta,
			exprIDs:   exprIDs,
			resolved:  make(map[string]formula.Node),
			resolving: make(map[string]bool),
			log:       c.Logger.WithFields(logger.Fields{"block_id": spec.BlockID}),
		}
		q, err := bc.compile(queryIDs.Next())
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
		blocks = append(blocks, &CompiledBlock{
			BlockID:       spec.BlockID,
			QueryID:       q.ID,
			ParentBlockID: spec.ParentBlockID,
			Placement:     spec.Placement,
			LegendItemIDs: q.Meta.LegendItemIDs,
			Limit:         spec.Limit,
			Offset:        spec.Offset,
		})
	}
	mq, err := NewCompiledMultiQuery(queries, blocks)
	if err != nil {
		return nil, err
	}
	mq.QueryIDs, mq.ExprIDs = queryIDs, exprIDs
	return mq, nil
}

type blockCompiler struct {
	c       *Compiler
	env     *inspect.Environment
	spec    *legend.BlockSpec
	meta    legend.BlockLegendMeta
	exprIDs *PrefixedIDGen
	log     logger.Logger

	params    map[string]interface{}
	resolved  map[string]formula.Node
	resolving map[string]bool
}

// compiledItem is a legend item with its resolved formula.
type compiledItem struct {
	item *legend.Item
	expr formula.Node
}

func (b *blockCompiler) compile(queryID string) (*CompiledQuery, error) {
	items := b.spec.Items()
	b.params = make(map[string]interface{})
	for _, item := range items {
		if ps, ok := item.RoleSpec.(*legend.ParameterRoleSpec); ok && item.Role == legend.RoleParameter {
			b.params[item.ID] = ps.Value
		}
	}

	var selected, orderBy, filters []compiledItem
	distinct := false
	for _, item := range items {
		if item.ItemType == legend.ItemMeasureName || item.ItemType == legend.ItemDimensionName {
			continue
		}
		switch item.Role {
		case legend.RoleParameter:
			continue
		case legend.RoleFilter:
			expr, err := b.resolveRef(item.ID)
			if err != nil {
				if b.spec.IgnoreNonexistentFilters && exc.ErrFieldNotFound.Is(err) {
					b.log.Debug("skipping filter on unknown field %s", item.ID)
					continue
				}
				return nil, err
			}
			filters = append(filters, compiledItem{item: item, expr: expr})
			continue
		}
		expr, err := b.itemExpr(item)
		if err != nil {
			return nil, err
		}
		ci := compiledItem{item: item, expr: expr}
		if item.Role == legend.RoleOrderBy {
			orderBy = append(orderBy, ci)
			continue
		}
		if item.Role == legend.RoleDistinct {
			distinct = true
		}
		selected = append(selected, ci)
	}

	if len(selected) == 0 {
		switch b.spec.EmptyQueryMode {
		case legend.EmptyQueryEmptyRow, legend.EmptyQueryEmpty:
		default:
			return nil, exc.ErrEmptyQuery.New().With("block_id", b.spec.BlockID)
		}
	}

	// 维度：非聚合、非窗口、非常量的选择项与排序项
	dims := formula.NewNodeSet()
	hasAggregates := false
	for _, ci := range append(append([]compiledItem(nil), selected...), orderBy...) {
		if b.isDimension(ci.expr) {
			dims.Add(ci.expr)
		} else if b.aggregated(ci.expr) {
			hasAggregates = true
		}
	}
	group, err := b.groupingEnabled(hasAggregates, dims.Len())
	if err != nil {
		return nil, err
	}

	globalDims := dims.Items()
	if !group {
		globalDims = nil
	}
	pipe := b.newPipeline(globalDims, orderBy, filters)

	q := &CompiledQuery{
		ID:    queryID,
		Level: LevelSourceDB,
		JoinedFrom: JoinedFromObject{
			RootFromID: b.c.Dataset.ID,
			Froms:      []*FromObject{b.avatar()},
		},
		Limit:  b.spec.Limit,
		Offset: b.spec.Offset,
		Meta: QueryMeta{
			BlockID:           b.spec.BlockID,
			QueryType:         b.spec.QueryType,
			RowCountHardLimit: b.rowCountHardLimit(),
			EmptyQueryMode:    b.spec.EmptyQueryMode,
			Distinct:          distinct && !hasAggregates,
		},
	}
	fromIDs := []string{b.c.Dataset.ID}

	for _, ci := range selected {
		expr, err := pipe.process(ci)
		if err != nil {
			return nil, err
		}
		q.Select = append(q.Select, &CompiledFormulaInfo{
			Expr:            expr,
			Alias:           b.exprIDs.Next(),
			FromIDs:         fromIDs,
			OriginalFieldID: ci.item.ID,
		})
		q.Meta.LegendItemIDs = append(q.Meta.LegendItemIDs, ci.item.LegendItemID)
	}

	if group {
		for _, ci := range append(append([]compiledItem(nil), selected...), orderBy...) {
			if !b.isDimension(ci.expr) {
				continue
			}
			expr, err := pipe.process(ci)
			if err != nil {
				return nil, err
			}
			if containsFormula(q.GroupBy, expr) {
				continue
			}
			q.GroupBy = append(q.GroupBy, &CompiledFormulaInfo{
				Expr:            expr,
				Alias:           b.aliasFor(q, expr),
				FromIDs:         fromIDs,
				OriginalFieldID: ci.item.ID,
			})
		}
	}

	for _, ci := range orderBy {
		expr, err := pipe.process(ci)
		if err != nil {
			return nil, err
		}
		dir := legend.Asc
		if spec, ok := ci.item.RoleSpec.(*legend.OrderByRoleSpec); ok && spec.Direction != "" {
			dir = spec.Direction
		}
		q.OrderBy = append(q.OrderBy, &CompiledOrderByFormulaInfo{
			CompiledFormulaInfo: CompiledFormulaInfo{
				Expr:            expr,
				Alias:           b.aliasFor(q, expr),
				FromIDs:         fromIDs,
				OriginalFieldID: ci.item.ID,
			},
			Direction: dir,
		})
	}

	for _, ci := range filters {
		cond, err := b.filterExpr(ci)
		if err != nil {
			return nil, err
		}
		if b.aggregated(ci.expr) && (distinct || b.spec.GroupByPolicy == legend.GroupByDisable) {
			return nil, exc.ErrMeasureFilterUnsupported.New(ci.item.ID).With("field_id", ci.item.ID)
		}
		expr, err := pipe.process(compiledItem{item: ci.item, expr: cond})
		if err != nil {
			return nil, err
		}
		q.Filters = append(q.Filters, &CompiledFormulaInfo{
			Expr:            expr,
			Alias:           b.exprIDs.Next(),
			FromIDs:         fromIDs,
			OriginalFieldID: ci.item.ID,
		})
	}

	b.log.Debug("compiled %s", q)
	return q, nil
}

func (b *blockCompiler) rowCountHardLimit() *int {
	if b.spec.RowCountHardLimit != nil {
		return b.spec.RowCountHardLimit
	}
	return b.meta.RowCountHardLimit
}

// groupingEnabled applies the GROUP BY policy of the block.
func (b *blockCompiler) groupingEnabled(hasAggregates bool, dimCount int) (bool, error) {
	switch b.spec.GroupByPolicy {
	case legend.GroupByForce:
		return dimCount > 0 || hasAggregates, nil
	case legend.GroupByDisable:
		if hasAggregates && dimCount > 0 {
			return false, exc.ErrInvalidGroupByConfiguration.New("aggregations require GROUP BY but it is disabled").
				With("block_id", b.spec.BlockID)
		}
		return false, nil
	default:
		return hasAggregates, nil
	}
}

func (b *blockCompiler) isDimension(expr formula.Node) bool {
	return !b.aggregated(expr) && !inspect.IsConstantExpression(expr, b.env)
}

func (b *blockCompiler) aggregated(expr formula.Node) bool {
	return inspect.IsAggregateExpression(expr, b.env) || inspect.IsWindowExpression(expr, b.env)
}

// aliasFor reuses the alias of an equal select item.
func (b *blockCompiler) aliasFor(q *CompiledQuery, expr formula.Node) string {
	for _, f := range q.Select {
		if formula.Equal(f.Expr, expr) {
			return f.Alias
		}
	}
	return b.exprIDs.Next()
}

func containsFormula(infos []*CompiledFormulaInfo, expr formula.Node) bool {
	for _, f := range infos {
		if formula.Equal(f.Expr, expr) {
			return true
		}
	}
	return false
}

// avatar is the from object of the dataset source table.
func (b *blockCompiler) avatar() *FromObject {
	ds := b.c.Dataset
	seen := make(map[string]bool)
	var cols []FromColumn
	for _, f := range ds.Fields {
		if f.CalcMode != dataset.CalcDirect || seen[f.Source] {
			continue
		}
		seen[f.Source] = true
		cols = append(cols, FromColumn{ID: f.Source, Name: f.Source})
	}
	return &FromObject{ID: ds.ID, Alias: ds.ID, Columns: cols, Table: ds.SourceTable}
}

var templatePlaceholder = regexp.MustCompile(`\{([^{}]+)\}`)

// itemExpr builds the formula of a selectable or order by item.
func (b *blockCompiler) itemExpr(item *legend.Item) (formula.Node, error) {
	switch spec := item.RoleSpec.(type) {
	case *legend.RangeRoleSpec:
		expr, err := b.resolveRef(item.ID)
		if err != nil {
			return nil, err
		}
		name := "min"
		if spec.RangeType == legend.RangeMax {
			name = "max"
		}
		return formula.NewFuncCall(name, expr), nil
	case *legend.TemplateRoleSpec:
		return b.templateExpr(spec.Template)
	}
	return b.resolveRef(item.ID)
}

// templateExpr concatenates the literal parts of a template with the string
// values of the {Field} placeholders.
func (b *blockCompiler) templateExpr(template string) (formula.Node, error) {
	var parts []formula.Node
	last := 0
	for _, loc := range templatePlaceholder.FindAllStringSubmatchIndex(template, -1) {
		if loc[0] > last {
			parts = append(parts, formula.NewString(template[last:loc[0]]))
		}
		ref, err := b.resolveRef(strings.TrimSpace(template[loc[2]:loc[3]]))
		if err != nil {
			return nil, err
		}
		parts = append(parts, formula.NewFuncCall("str", ref))
		last = loc[1]
	}
	if last < len(template) {
		parts = append(parts, formula.NewString(template[last:]))
	}
	switch len(parts) {
	case 0:
		return formula.NewString(""), nil
	case 1:
		if _, isLiteral := parts[0].(*formula.LiteralString); isLiteral {
			return parts[0], nil
		}
	}
	return formula.NewFuncCall("concat", parts...), nil
}

// resolveRef resolves a field id or title into a formula over source columns.
func (b *blockCompiler) resolveRef(ref string) (formula.Node, error) {
	f, err := b.c.Dataset.Lookup(ref)
	if err != nil {
		return nil, err
	}
	return b.resolveField(f)
}

func (b *blockCompiler) resolveField(f *dataset.Field) (formula.Node, error) {
	if n, ok := b.resolved[f.ID]; ok {
		return n, nil
	}
	if b.resolving[f.ID] {
		return nil, exc.ErrFieldRecursion.New(f.ID).With("field_id", f.ID)
	}
	b.resolving[f.ID] = true
	defer delete(b.resolving, f.ID)

	var node formula.Node
	switch f.CalcMode {
	case dataset.CalcParameter:
		value := f.DefaultValue
		if override, ok := b.params[f.ID]; ok {
			value = override
		}
		lit, err := LiteralFor(value, f.DataType)
		if err != nil {
			return nil, exc.ErrParameterValue.Wrap(err, f.ID, value).With("field_id", f.ID)
		}
		b.resolved[f.ID] = lit
		return lit, nil
	case dataset.CalcFormula:
		parsed, err := formula.Parse(f.Formula)
		if err != nil {
			return nil, err
		}
		node, err = formula.Transform(parsed, func(n formula.Node) (formula.Node, error) {
			ref, ok := n.(*formula.Field)
			if !ok {
				return n, nil
			}
			target, err := b.c.Dataset.Lookup(ref.Name)
			if err != nil {
				return nil, exc.ErrUnknownField.New(ref.Name).With("field_id", f.ID)
			}
			return b.resolveField(target)
		})
		if err != nil {
			return nil, err
		}
		node, err = mutation.Apply(node, mutation.RemapBfb{NameMapping: b.bfbMapping()})
		if err != nil {
			return nil, err
		}
	default:
		node = formula.NewField(f.Source)
	}
	if f.HasAggregation() {
		node = formula.NewFuncCall(f.Aggregation.FunctionName(), node)
	}
	b.resolved[f.ID] = node
	return node, nil
}

// bfbMapping maps titles and ids of dataset fields onto their ids.
func (b *blockCompiler) bfbMapping() map[string]string {
	m := make(map[string]string, 2*len(b.c.Dataset.Fields))
	for _, f := range b.c.Dataset.Fields {
		m[f.ID] = f.ID
		if f.Title != "" {
			m[f.Title] = f.ID
		}
	}
	return m
}

var comparisonFilters = map[legend.FilterOp]string{
	legend.FilterEq:  formula.OpEq,
	legend.FilterNe:  formula.OpNe,
	legend.FilterGt:  formula.OpGt,
	legend.FilterGte: formula.OpGte,
	legend.FilterLt:  formula.OpLt,
	legend.FilterLte: formula.OpLte,
}

// filterExpr builds the boolean condition of a filter item.
func (b *blockCompiler) filterExpr(ci compiledItem) (formula.Node, error) {
	spec, ok := ci.item.RoleSpec.(*legend.FilterRoleSpec)
	if !ok {
		return nil, exc.ErrInvalidRequest.New(fmt.Sprintf("filter item %d has no filter spec", ci.item.LegendItemID))
	}
	values := spec.Values
	argCount := func(n int) error {
		if len(values) != n {
			return exc.ErrFilterArgumentCount.New(spec.Operation, len(values)).With("field_id", ci.item.ID)
		}
		return nil
	}
	t, err := inspect.InferDataType(ci.expr, b.env)
	if err != nil {
		t = formula.TypeUnsupported
	}
	literal := func(v interface{}, t formula.DataType) (formula.Node, error) {
		n, err := LiteralFor(v, t)
		if err != nil {
			return nil, exc.ErrFilterValue.Wrap(err, ci.item.ID, v).With("field_id", ci.item.ID)
		}
		return n, nil
	}

	if op, ok := comparisonFilters[spec.Operation]; ok {
		if err := argCount(1); err != nil {
			return nil, err
		}
		v, err := literal(values[0], t)
		if err != nil {
			return nil, err
		}
		return formula.NewBinary(op, ci.expr, v), nil
	}
	switch spec.Operation {
	case legend.FilterIn, legend.FilterNotIn:
		if len(values) == 0 {
			return nil, exc.ErrFilterArgumentCount.New(spec.Operation, 0).With("field_id", ci.item.ID)
		}
		list := make([]formula.Node, 0, len(values))
		for _, v := range values {
			n, err := literal(v, t)
			if err != nil {
				return nil, err
			}
			list = append(list, n)
		}
		op := formula.OpIn
		if spec.Operation == legend.FilterNotIn {
			op = formula.OpNotIn
		}
		return formula.NewBinary(op, ci.expr, formula.NewExpressionList(list...)), nil
	case legend.FilterIsNull, legend.FilterIsNotNull:
		if err := argCount(0); err != nil {
			return nil, err
		}
		op := formula.OpIsNull
		if spec.Operation == legend.FilterIsNotNull {
			op = formula.OpIsNotNull
		}
		return formula.NewUnary(op, ci.expr), nil
	case legend.FilterStartsWith, legend.FilterEndsWith, legend.FilterContains:
		if err := argCount(1); err != nil {
			return nil, err
		}
		v, err := literal(values[0], formula.TypeString)
		if err != nil {
			return nil, err
		}
		subject := ci.expr
		if t.NonConst() != formula.TypeString {
			subject = formula.NewFuncCall("str", subject)
		}
		return formula.NewFuncCall(string(spec.Operation), subject, v), nil
	case legend.FilterBetween:
		if err := argCount(2); err != nil {
			return nil, err
		}
		lo, err := literal(values[0], t)
		if err != nil {
			return nil, err
		}
		hi, err := literal(values[1], t)
		if err != nil {
			return nil, err
		}
		return formula.NewTernary(formula.OpBetween, ci.expr, lo, hi), nil
	}
	return nil, exc.ErrInvalidRequest.New(fmt.Sprintf("unsupported filter operation %q", spec.Operation))
}
