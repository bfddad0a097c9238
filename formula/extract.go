package formula

import (
	"reflect"
	"sort"

	"github.com/mitchellh/hashstructure"
)

// Extract returns a position independent representation of the tree.
// Two nodes are structurally equal when their extracts are deeply equal.
func Extract(n Node) []interface{} {
	if n == nil {
		return nil
	}
	head := extractHead(n)
	children := n.Children()
	out := make([]interface{}, 0, len(head)+len(children))
	out = append(out, head...)
	for _, child := range children {
		out = append(out, Extract(child))
	}
	return out
}

func extractHead(n Node) []interface{} {
	switch v := n.(type) {
	case *Field:
		return []interface{}{"field", v.Name}
	case *Null:
		return []interface{}{"null"}
	case *LiteralInteger:
		return []interface{}{"int", v.Value}
	case *LiteralFloat:
		return []interface{}{"float", v.Value}
	case *LiteralString:
		return []interface{}{"str", v.Value}
	case *LiteralBoolean:
		return []interface{}{"bool", v.Value}
	case *LiteralDate:
		return []interface{}{"date", v.Value.Format("2006-01-02")}
	case *LiteralDatetime:
		return []interface{}{"datetime", v.Value.UTC().Format("2006-01-02T15:04:05.999999999")}
	case *LiteralGeopoint:
		return []interface{}{"geopoint", v.Lat, v.Lon}
	case *LiteralGeopolygon:
		flat := make([]interface{}, 0, 2*len(v.Points)+1)
		flat = append(flat, "geopolygon")
		for _, p := range v.Points {
			flat = append(flat, p[0], p[1])
		}
		return flat
	case *LiteralUUID:
		return []interface{}{"uuid", v.Value.String()}
	case *FuncCall:
		return []interface{}{"func", v.Name}
	case *WindowFuncCall:
		return []interface{}{"wfunc", v.Name}
	case *Binary:
		return []interface{}{"binary", v.Op}
	case *Unary:
		return []interface{}{"unary", v.Op}
	case *Ternary:
		return []interface{}{"ternary", v.Op}
	case *IfBlock:
		return []interface{}{"if", v.Else != nil}
	case *CaseBlock:
		return []interface{}{"case", v.Else != nil}
	case *Parenthesized:
		return []interface{}{"paren"}
	case *ExpressionList:
		return []interface{}{"list"}
	case *QueryFork:
		return []interface{}{"fork"}
	case *LodSpecifier:
		kind := v.Kind
		if kind == LodInherited {
			kind = LodDefault
		}
		return []interface{}{"lod", int(kind)}
	case *BeforeFilterBy:
		names := append([]string(nil), v.FieldNames...)
		sort.Strings(names)
		head := make([]interface{}, 0, len(names)+1)
		head = append(head, "bfb")
		for _, name := range names {
			head = append(head, name)
		}
		return head
	case *IgnoreDimensions:
		return []interface{}{"ignore"}
	case *WindowGrouping:
		return []interface{}{"grouping", int(v.Kind)}
	case *Ordering:
		return []interface{}{"ordering"}
	case *OrderItem:
		return []interface{}{"order_item", v.Desc}
	}
	return []interface{}{"unknown"}
}

// Hash returns a structural hash of the tree.
func Hash(n Node) uint64 {
	h, err := hashstructure.Hash(Extract(n), nil)
	if err != nil {
		// extracts only hold hashable scalars
		panic(err)
	}
	return h
}

// Equal reports structural equality ignoring source positions.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(Extract(a), Extract(b))
}

// NodeSet is an insertion ordered set of structurally distinct nodes.
type NodeSet struct {
	buckets map[uint64][]int
	items   []Node
}

// NewNodeSet creates a set from nodes
func NewNodeSet(nodes ...Node) *NodeSet {
	s := &NodeSet{buckets: make(map[uint64][]int)}
	for _, n := range nodes {
		s.Add(n)
	}
	return s
}

// Add inserts n unless an equal node is present. Reports whether it was added.
func (s *NodeSet) Add(n Node) bool {
	if s.buckets == nil {
		s.buckets = make(map[uint64][]int)
	}
	h := Hash(n)
	for _, idx := range s.buckets[h] {
		if Equal(s.items[idx], n) {
			return false
		}
	}
	s.buckets[h] = append(s.buckets[h], len(s.items))
	s.items = append(s.items, n)
	return true
}

// Contains reports whether an equal node is present
func (s *NodeSet) Contains(n Node) bool {
	return s.IndexOf(n) >= 0
}

// IndexOf returns insertion index of an equal node or -1
func (s *NodeSet) IndexOf(n Node) int {
	if s == nil || s.buckets == nil {
		return -1
	}
	for _, idx := range s.buckets[Hash(n)] {
		if Equal(s.items[idx], n) {
			return idx
		}
	}
	return -1
}

// Items returns nodes in insertion order
func (s *NodeSet) Items() []Node {
	if s == nil {
		return nil
	}
	return append([]Node(nil), s.items...)
}

// Len returns the number of nodes
func (s *NodeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Equals reports whether both sets hold the same nodes regardless of order
func (s *NodeSet) Equals(other *NodeSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, n := range s.Items() {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// IsSubsetOf reports whether every node of s is in other
func (s *NodeSet) IsSubsetOf(other *NodeSet) bool {
	for _, n := range s.Items() {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}
