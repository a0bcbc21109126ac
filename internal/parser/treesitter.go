// Package parser implements the File Parser (§4.4): it walks a single
// source unit's AST and materializes nodes, edges, and deferred references
// per the active schema.Schema.
package parser

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/standardbeagle/graphindex/internal/schema"
)

// tsNode adapts a *tree_sitter.Node + source buffer to schema.ParsedNode.
// kindOverride lets field getters synthesize a schema-facing kind label
// (e.g. "type_spec_struct") for a raw tree-sitter node whose literal Kind()
// is ambiguous on its own (tree-sitter-go's "type_spec" covers struct,
// interface, alias, and plain defined types alike).
type tsNode struct {
	n            *tree_sitter.Node
	source       []byte
	kindOverride string
}

func wrap(n *tree_sitter.Node, source []byte) schema.ParsedNode {
	if n == nil {
		return nil
	}
	return tsNode{n: n, source: source}
}

func wrapAs(n *tree_sitter.Node, source []byte, kind string) schema.ParsedNode {
	if n == nil {
		return nil
	}
	return tsNode{n: n, source: source, kindOverride: kind}
}

func (t tsNode) Kind() string {
	if t.kindOverride != "" {
		return t.kindOverride
	}
	return t.n.Kind()
}

func (t tsNode) Text() string {
	return string(t.source[t.n.StartByte():t.n.EndByte()])
}

func (t tsNode) StartLine() int { return int(t.n.StartPosition().Row) + 1 }
func (t tsNode) EndLine() int   { return int(t.n.EndPosition().Row) + 1 }

func (t tsNode) Field(name string) (schema.ParsedNode, bool) {
	c := t.n.ChildByFieldName(name)
	if c == nil {
		return nil, false
	}
	return tsNode{n: c, source: t.source}, true
}

// Fields implements the Many-cardinality getters used by schema.ChildSpec
// and schema.ReferenceSpec. For Go's grammar these resolve by walking the
// relevant container node (parameter list, field list, spec list, call
// expressions within a body) since tree-sitter-go does not expose
// field-name-repeated children directly.
func (t tsNode) Fields(name string) []schema.ParsedNode {
	return goFieldGetters[name](t)
}

func (t tsNode) NamedChildren() []schema.ParsedNode {
	out := make([]schema.ParsedNode, 0, t.n.NamedChildCount())
	for i := uint(0); i < t.n.NamedChildCount(); i++ {
		c := t.n.NamedChild(i)
		if c != nil {
			out = append(out, tsNode{n: c, source: t.source})
		}
	}
	return out
}

// NewGoParser returns a ready tree_sitter.Parser configured for Go source.
func NewGoParser() (*tree_sitter.Parser, error) {
	p := tree_sitter.NewParser()
	lang := tree_sitter.NewLanguage(tree_sitter_go.Language())
	if err := p.SetLanguage(lang); err != nil {
		return nil, err
	}
	return p, nil
}
