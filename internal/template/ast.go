// Package template expands {{ expr }} Starlark expressions embedded in the
// SQL fragments of metric definitions. Logic that needs loops or branching
// belongs in the macro functions themselves; a fragment is a flat sequence
// of literal SQL text and expressions.
package template

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is the interface for all template AST nodes.
type Node interface {
	Pos() Position
	node() // marker method to restrict implementation
}

// nodeBase provides common Position handling for all nodes.
type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode represents literal SQL text (passed through unchanged).
type TextNode struct {
	nodeBase
	Text string
}

// ExprNode represents a {{ expr }} expression.
// The Expr field contains the Starlark expression source (without delimiters).
type ExprNode struct {
	nodeBase
	Expr string
}
