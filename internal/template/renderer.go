package template

import (
	"strings"

	starctx "github.com/quarrylabs/quarry/internal/starlark"
)

// parse converts lexer tokens into template nodes.
func parse(tokens []Token) []Node {
	var nodes []Node
	for _, tok := range tokens {
		switch tok.Type {
		case TokenText:
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})
		case TokenExpr:
			nodes = append(nodes, &ExprNode{nodeBase: nodeBase{pos: tok.Pos}, Expr: tok.Value})
		}
	}
	return nodes
}

// Render evaluates template nodes against the execution context and
// concatenates the results. Expression results are stringified the same
// way the context does: strings verbatim, None as empty, everything else
// via its Starlark representation.
func Render(nodes []Node, ctx *starctx.ExecutionContext) (string, error) {
	var sb strings.Builder

	for _, node := range nodes {
		switch n := node.(type) {
		case *TextNode:
			sb.WriteString(n.Text)
		case *ExprNode:
			pos := n.Pos()
			result, err := ctx.EvalExprString(n.Expr, pos.File, pos.Line)
			if err != nil {
				return "", err
			}
			sb.WriteString(result)
		}
	}

	return sb.String(), nil
}

// RenderString expands all {{ expr }} occurrences in input against ctx.
// Input without expression delimiters is returned unchanged.
func RenderString(input, file string, ctx *starctx.ExecutionContext) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	tokens, err := NewLexer(input, file).Tokenize()
	if err != nil {
		return "", err
	}

	return Render(parse(tokens), ctx)
}

// Expander returns a function that expands a single SQL fragment.
// The compiler calls it on every expression and filter before validating
// the expanded text.
func Expander(file string, ctx *starctx.ExecutionContext) func(string) (string, error) {
	return func(fragment string) (string, error) {
		return RenderString(fragment, file, ctx)
	}
}
