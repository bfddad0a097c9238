package translation

import (
	"strings"

	"github.com/rulego/dlquery/compilation"
	"github.com/rulego/dlquery/dataset"
	"github.com/rulego/dlquery/dialect"
	"github.com/rulego/dlquery/exc"
	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/functions"
	"github.com/rulego/dlquery/inspect"
	"github.com/rulego/dlquery/legend"
)

// TranslatedQuery is one executable query of a translated multi-query.
type TranslatedQuery struct {
	ID      string
	Level   compilation.Level
	Dialect dialect.DialectCombo
	// SQL is the statement sent to the database, for compeng queries a
	// readable description of the in-memory plan
	SQL string
	// Columns are the select aliases with their inferred types
	Columns dataset.Schema
	// DependsOn lists the executable queries whose results are read
	DependsOn         []string
	BlockID           int
	RowCountHardLimit *int
	// Query is the compiled query, evaluated directly by compeng
	Query *compilation.CompiledQuery
}

// IsCompeng reports whether the query is evaluated in memory.
func (q *TranslatedQuery) IsCompeng() bool {
	return q.Level == compilation.LevelCompeng
}

// TranslatedMultiQuery lists the executable queries in dependency order.
type TranslatedMultiQuery struct {
	Queries []*TranslatedQuery
	Blocks  []*compilation.CompiledBlock
	byID    map[string]*TranslatedQuery
}

// NewTranslatedMultiQuery indexes queries, which must be in dependency order.
func NewTranslatedMultiQuery(queries []*TranslatedQuery, blocks []*compilation.CompiledBlock) *TranslatedMultiQuery {
	t := &TranslatedMultiQuery{Queries: queries, Blocks: blocks, byID: make(map[string]*TranslatedQuery, len(queries))}
	for _, q := range queries {
		t.byID[q.ID] = q
	}
	return t
}

// QueryByID returns an executable query.
func (t *TranslatedMultiQuery) QueryByID(id string) (*TranslatedQuery, bool) {
	if t.byID == nil {
		for _, q := range t.Queries {
			if q.ID == id {
				return q, true
			}
		}
		return nil, false
	}
	q, ok := t.byID[id]
	return q, ok
}

// BlockQuery returns the top query of a block.
func (t *TranslatedMultiQuery) BlockQuery(blockID int) (*TranslatedQuery, bool) {
	for _, b := range t.Blocks {
		if b.BlockID == blockID {
			return t.QueryByID(b.QueryID)
		}
	}
	return nil, false
}

// TranslateMultiQuery renders the executable queries of mq. Source-db
// queries read only by other source-db queries are inlined as sub-selects,
// the others become statements of dialect d. sourceTypes types the source
// table columns.
func TranslateMultiQuery(mq *compilation.CompiledMultiQuery, reg *functions.Registry, d dialect.DialectCombo,
	sourceTypes map[string]formula.DataType) (*TranslatedMultiQuery, error) {
	if !d.IsSingle() {
		return nil, exc.ErrTranslation.New("dialect " + d.String() + " is not a single dialect version")
	}
	order, err := mq.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	r := &renderer{
		reg:         reg,
		dialect:     d,
		mq:          mq,
		sourceTypes: sourceTypes,
		types:       make(map[string]map[string]formula.DataType, len(order)),
	}
	for _, q := range order {
		r.types[q.ID] = r.selectTypes(q)
	}

	readers := make(map[string][]*compilation.CompiledQuery)
	for _, q := range order {
		for _, id := range q.SubqueryIDs() {
			readers[id] = append(readers[id], q)
		}
	}
	executable := func(q *compilation.CompiledQuery) bool {
		if q.Level == compilation.LevelCompeng || len(readers[q.ID]) == 0 {
			return true
		}
		for _, rd := range readers[q.ID] {
			if rd.Level == compilation.LevelCompeng {
				return true
			}
		}
		return false
	}

	out := &TranslatedMultiQuery{Blocks: mq.Blocks, byID: make(map[string]*TranslatedQuery)}
	for _, q := range order {
		if !executable(q) {
			continue
		}
		tq := &TranslatedQuery{
			ID:                q.ID,
			Level:             q.Level,
			BlockID:           q.Meta.BlockID,
			RowCountHardLimit: q.Meta.RowCountHardLimit,
			Query:             q,
		}
		for _, f := range q.Select {
			tq.Columns = append(tq.Columns, dataset.Column{Name: f.Alias, DataType: r.types[q.ID][f.Alias]})
		}
		if q.Level == compilation.LevelCompeng {
			tq.Dialect = dialect.CompengV1
			tq.DependsOn = q.SubqueryIDs()
			tq.SQL = describe(q)
		} else {
			tq.Dialect = d
			if tq.SQL, err = r.render(q); err != nil {
				return nil, err
			}
		}
		out.Queries = append(out.Queries, tq)
		out.byID[q.ID] = tq
	}
	return out, nil
}

type renderer struct {
	reg         *functions.Registry
	dialect     dialect.DialectCombo
	mq          *compilation.CompiledMultiQuery
	sourceTypes map[string]formula.DataType
	types       map[string]map[string]formula.DataType
}

// fromTypes types the columns readable by q.
func (r *renderer) fromTypes(q *compilation.CompiledQuery) map[string]formula.DataType {
	out := make(map[string]formula.DataType)
	for _, from := range q.JoinedFrom.Froms {
		if from.IsSubquery() {
			for alias, t := range r.types[from.QueryID] {
				out[alias] = t
			}
			continue
		}
		for _, c := range from.Columns {
			if t, ok := r.sourceTypes[c.Name]; ok {
				out[c.Name] = t
			}
		}
	}
	return out
}

func (r *renderer) env(q *compilation.CompiledQuery) *inspect.Environment {
	return inspect.NewEnvironment(r.reg, r.fromTypes(q))
}

func (r *renderer) selectTypes(q *compilation.CompiledQuery) map[string]formula.DataType {
	env := r.env(q)
	out := make(map[string]formula.DataType, len(q.Select))
	for _, f := range q.Select {
		t, err := inspect.InferDataType(f.Expr, env)
		if err != nil {
			t = formula.TypeUnsupported
		}
		out[f.Alias] = t.NonConst()
	}
	return out
}

func (r *renderer) translator(q *compilation.CompiledQuery) *Translator {
	t := &Translator{Registry: r.reg, Dialect: r.dialect, Env: r.env(q)}
	style := t.Style()
	t.FieldRenderer = func(f *formula.Field) (string, error) {
		from, ok := q.JoinedFrom.FromForColumn(f.Name)
		if !ok {
			return "", exc.ErrUnknownField.New(f.Name)
		}
		return style.QuoteIdent(from.Alias) + "." + style.QuoteIdent(f.Name), nil
	}
	return t
}

// render builds the SELECT statement of q, inlining source-db sub-queries.
func (r *renderer) render(q *compilation.CompiledQuery) (string, error) {
	t := r.translator(q)
	style := t.Style()
	var sb strings.Builder

	sb.WriteString("SELECT ")
	if q.Meta.Distinct {
		sb.WriteString("DISTINCT ")
	}
	for i, f := range q.Select {
		text, err := t.Translate(f.Expr)
		if err != nil {
			return "", err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(text + " AS " + style.QuoteIdent(f.Alias))
	}

	from, err := r.renderFrom(q, t)
	if err != nil {
		return "", err
	}
	sb.WriteString("\nFROM " + from)

	var where, having []string
	for _, f := range q.Filters {
		text, err := t.Translate(f.Expr)
		if err != nil {
			return "", err
		}
		if inspect.IsAggregateExpression(f.Expr, t.Env) {
			having = append(having, text)
		} else {
			where = append(where, text)
		}
	}
	if len(where) > 0 {
		sb.WriteString("\nWHERE " + strings.Join(where, " AND "))
	}
	if len(q.GroupBy) > 0 {
		groups := make([]string, 0, len(q.GroupBy))
		for _, g := range q.GroupBy {
			text, err := t.Translate(g.Expr)
			if err != nil {
				return "", err
			}
			groups = append(groups, text)
		}
		sb.WriteString("\nGROUP BY " + strings.Join(groups, ", "))
	}
	if len(having) > 0 {
		sb.WriteString("\nHAVING " + strings.Join(having, " AND "))
	}
	if len(q.OrderBy) > 0 {
		items := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			text, err := t.Translate(o.Expr)
			if err != nil {
				return "", err
			}
			items = append(items, text+direction(o.Direction == legend.Desc))
		}
		sb.WriteString("\nORDER BY " + strings.Join(items, ", "))
	}
	if tail := style.LimitOffset(q.Limit, q.Offset); tail != "" {
		sb.WriteString("\n" + tail)
	}
	return sb.String(), nil
}

func (r *renderer) renderFrom(q *compilation.CompiledQuery, t *Translator) (string, error) {
	root, ok := q.JoinedFrom.From(q.JoinedFrom.RootFromID)
	if !ok {
		return "", exc.ErrInvalidQueryStructure.New("query " + q.ID + " has no root from " + q.JoinedFrom.RootFromID)
	}
	text, err := r.fromObject(root)
	if err != nil {
		return "", err
	}
	parts := []string{text}
	for _, from := range q.JoinedFrom.Froms {
		if from.ID == root.ID {
			continue
		}
		text, err := r.fromObject(from)
		if err != nil {
			return "", err
		}
		join := joinFor(q, from.ID)
		if join == nil {
			parts = append(parts, "CROSS JOIN "+text)
			continue
		}
		cond, err := t.Translate(join.Expr)
		if err != nil {
			return "", err
		}
		kind := "JOIN"
		if join.JoinType == compilation.JoinLeft {
			kind = "LEFT JOIN"
		}
		parts = append(parts, kind+" "+text+" ON "+cond)
	}
	return strings.Join(parts, "\n"), nil
}

func (r *renderer) fromObject(from *compilation.FromObject) (string, error) {
	style := r.reg.Style(r.dialect)
	if !from.IsSubquery() {
		return style.QuoteIdent(from.Table) + " AS " + style.QuoteIdent(from.Alias), nil
	}
	sub, ok := r.mq.QueryByID(from.QueryID)
	if !ok {
		return "", exc.ErrPlanningDependency.New("unknown query " + from.QueryID)
	}
	if sub.Level != compilation.LevelSourceDB {
		return "", exc.ErrInvalidQueryStructure.New("source query reads in-memory query " + sub.ID)
	}
	text, err := r.render(sub)
	if err != nil {
		return "", err
	}
	return "(" + text + ") AS " + style.QuoteIdent(from.Alias), nil
}

func joinFor(q *compilation.CompiledQuery, rightID string) *compilation.CompiledJoinOnFormulaInfo {
	for _, j := range q.JoinOn {
		if j.RightID == rightID {
			return j
		}
	}
	return nil
}

// describe renders an in-memory query for debugging.
func describe(q *compilation.CompiledQuery) string {
	parts := make([]string, 0, len(q.Select))
	for _, f := range q.Select {
		parts = append(parts, formula.Render(f.Expr)+" AS "+f.Alias)
	}
	out := "COMPENG SELECT " + strings.Join(parts, ", ") + " FROM " + strings.Join(q.SubqueryIDs(), ", ")
	if len(q.Filters) > 0 {
		conds := make([]string, 0, len(q.Filters))
		for _, f := range q.Filters {
			conds = append(conds, formula.Render(f.Expr))
		}
		out += " WHERE " + strings.Join(conds, " AND ")
	}
	return out
}
