package cache

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rulego/dlquery/formula"
	"github.com/rulego/dlquery/merging"
	"github.com/rulego/dlquery/translation"
)

// DefaultSize 默认缓存条目数
const DefaultSize = 256

// ResultCache keeps merged results by key hash. It is safe for concurrent
// use.
type ResultCache struct {
	lru *lru.Cache[string, *merging.MergedQueryDataStream]
}

// NewResultCache creates a cache holding up to size results.
func NewResultCache(size int) (*ResultCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, *merging.MergedQueryDataStream](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{lru: c}, nil
}

// Get returns the cached result of key. An invalid key is never cached.
func (c *ResultCache) Get(key *LocalKeyRepresentation) (*merging.MergedQueryDataStream, bool) {
	h, err := key.Hash()
	if err != nil {
		return nil, false
	}
	return c.lru.Get(h)
}

// Add stores s under key.
func (c *ResultCache) Add(key *LocalKeyRepresentation, s *merging.MergedQueryDataStream) error {
	h, err := key.Hash()
	if err != nil {
		return err
	}
	c.lru.Add(h, s)
	return nil
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int { return c.lru.Len() }

// Purge drops every result.
func (c *ResultCache) Purge() { c.lru.Purge() }

// QueryKey is the key of the result of tmq read from a connection.
func QueryKey(connectionID string, tmq *translation.TranslatedMultiQuery) *LocalKeyRepresentation {
	key := NewLocalKeyRepresentation(DataKeyPart{PartType: "connection_id", PartContent: connectionID})
	for _, q := range tmq.Queries {
		key = key.Extend("query", q.Dialect.String()+"\n"+fingerprint(q))
	}
	for _, b := range tmq.Blocks {
		key = key.Extend("block", fmt.Sprintf("%d:%s:%T:%v", b.BlockID, b.QueryID, b.Placement, b.LegendItemIDs))
	}
	return key
}

// fingerprint identifies what a query computes. The SQL of an in-memory
// query is only a summary, its formulas are rendered instead.
func fingerprint(q *translation.TranslatedQuery) string {
	if !q.IsCompeng() || q.Query == nil {
		return q.SQL
	}
	var sb strings.Builder
	cq := q.Query
	for _, f := range cq.AllFormulas() {
		sb.WriteString(f.Alias + "=" + formula.Render(f.Expr) + ";")
	}
	for _, o := range cq.OrderBy {
		sb.WriteString(string(o.Direction) + ";")
	}
	for _, j := range cq.JoinOn {
		sb.WriteString(j.LeftID + ">" + j.RightID + ":" + string(j.JoinType) + ";")
	}
	fmt.Fprintf(&sb, "from=%v distinct=%t limit=%s offset=%s", cq.SubqueryIDs(), cq.Meta.Distinct, intString(cq.Limit), intString(cq.Offset))
	return sb.String()
}

func intString(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
