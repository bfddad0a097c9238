package formula

import "fmt"

// Visitor is called for every node in pre-order with the chain of its ancestors.
// Returning false skips the children of the node.
type Visitor func(node Node, parents []Node) bool

type walkItem struct {
	node  Node
	depth int
}

// Walk visits the tree in pre-order using an explicit stack.
// parents is only valid during the call.
func Walk(root Node, visit Visitor) {
	if root == nil {
		return
	}
	stack := []walkItem{{node: root}}
	var path []Node
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		path = path[:item.depth]
		if !visit(item.node, path) {
			continue
		}
		path = append(path, item.node)
		children := item.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, walkItem{node: children[i], depth: item.depth + 1})
		}
	}
}

// TransformFunc rewrites a node whose children were already rewritten.
type TransformFunc func(node Node) (Node, error)

type transformFrame struct {
	node     Node
	children []Node
	next     int
	out      []Node
	changed  bool
}

// Transform rewrites the tree bottom-up (post-order) using an explicit stack.
// Nodes whose children did not change are passed to fn as is, so a function
// that returns its argument unchanged keeps the original tree identity.
func Transform(root Node, fn TransformFunc) (Node, error) {
	if root == nil {
		return nil, nil
	}
	stack := []*transformFrame{{node: root, children: root.Children()}}
	for {
		top := stack[len(stack)-1]
		if top.next < len(top.children) {
			child := top.children[top.next]
			top.next++
			stack = append(stack, &transformFrame{node: child, children: child.Children()})
			continue
		}
		stack = stack[:len(stack)-1]
		node := top.node
		if top.changed {
			node = node.WithChildren(top.out)
		}
		replaced, err := fn(node)
		if err != nil {
			return nil, err
		}
		if len(stack) == 0 {
			return replaced, nil
		}
		parent := stack[len(stack)-1]
		parent.out = append(parent.out, replaced)
		if replaced != parent.children[len(parent.out)-1] {
			parent.changed = true
		}
	}
}

// AutonomousChildren returns the nearest autonomous descendants of n,
// looking through sub-clause nodes.
func AutonomousChildren(n Node) []Node {
	var out []Node
	stack := append([]Node(nil), reversed(n.Children())...)
	for len(stack) > 0 {
		child := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if child.Autonomous() {
			out = append(out, child)
			continue
		}
		stack = append(stack, reversed(child.Children())...)
	}
	return out
}

func reversed(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[len(nodes)-1-i] = n
	}
	return out
}

// Path addresses a node by child indexes from the root.
type Path []int

// NodeAt returns the node at path.
func NodeAt(root Node, path Path) (Node, error) {
	node := root
	for depth, idx := range path {
		children := node.Children()
		if idx < 0 || idx >= len(children) {
			return nil, fmt.Errorf("invalid node path %v at depth %d", path, depth)
		}
		node = children[idx]
	}
	return node, nil
}

// ReplaceAt returns a copy of root where the node at path is replaced.
// Only the ancestors of the replaced node are copied.
func ReplaceAt(root Node, path Path, replacement Node) (Node, error) {
	chain := make([]Node, 0, len(path)+1)
	chain = append(chain, root)
	node := root
	for depth, idx := range path {
		children := node.Children()
		if idx < 0 || idx >= len(children) {
			return nil, fmt.Errorf("invalid node path %v at depth %d", path, depth)
		}
		node = children[idx]
		chain = append(chain, node)
	}
	current := replacement
	for depth := len(path) - 1; depth >= 0; depth-- {
		parent := chain[depth]
		children := parent.Children()
		children[path[depth]] = current
		current = parent.WithChildren(children)
	}
	return current, nil
}

// Find returns paths of all nodes matching pred in pre-order.
func Find(root Node, pred func(Node) bool) []Path {
	var out []Path
	type item struct {
		node Node
		path Path
	}
	stack := []item{{node: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if pred(it.node) {
			out = append(out, it.path)
		}
		children := it.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			childPath := make(Path, len(it.path)+1)
			copy(childPath, it.path)
			childPath[len(it.path)] = i
			stack = append(stack, item{node: children[i], path: childPath})
		}
	}
	return out
}

// Replace rewrites the outermost nodes for which fn returns a replacement.
// Matched nodes are not descended into, so nested matches are left alone.
func Replace(root Node, fn func(Node) (Node, bool)) (Node, error) {
	if root == nil {
		return nil, nil
	}
	type item struct {
		node Node
		path Path
	}
	var (
		paths        []Path
		replacements []Node
	)
	stack := []item{{node: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if r, ok := fn(it.node); ok {
			paths = append(paths, it.path)
			replacements = append(replacements, r)
			continue
		}
		children := it.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			childPath := make(Path, len(it.path)+1)
			copy(childPath, it.path)
			childPath[len(it.path)] = i
			stack = append(stack, item{node: children[i], path: childPath})
		}
	}
	out := root
	for i, p := range paths {
		var err error
		if out, err = ReplaceAt(out, p, replacements[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
