package parser

import (
	"regexp"
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/graphindex/internal/schema"
)

type getter func(t tsNode) []schema.ParsedNode

// goFieldGetters implements every named "getter" the Go core schema
// (internal/schema/golang.go) references. Each one walks the concrete
// tree-sitter-go grammar shape for that declaration family and returns a
// flat list of schema.ParsedNode, synthesizing a disambiguated Kind() where
// the raw grammar node is ambiguous (type_spec -> struct/interface/alias).
var goFieldGetters = map[string]getter{
	"func_decl":           topLevelKind("function_declaration"),
	"type_decl_struct":    typeSpecsWhere(isStructSpec),
	"type_decl_interface": typeSpecsWhere(isInterfaceSpec),
	"type_decl_alias":     typeSpecsWhere(isAliasSpec),
	"package_var":         packageVars,
	"import_spec":         importSpecs,
	"parameters":          parameters,
	"fields":              structFields,
	"embedded_interface":  embeddedInterfaces,
	"call_target":         callTargets,
	"field_type":          fieldType,
	"param_type":          paramType,
	"var_type":            varType,
	"underlying_type":     underlyingType,
	"directives":          directiveComments,
	"struct_tag":          structTag,
	"exported_decl":       exportedTopLevel,
}

func children(t tsNode) []*tree_sitter.Node {
	out := make([]*tree_sitter.Node, 0, t.n.NamedChildCount())
	for i := uint(0); i < t.n.NamedChildCount(); i++ {
		if c := t.n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func topLevelKind(kind string) getter {
	return func(t tsNode) []schema.ParsedNode {
		var out []schema.ParsedNode
		for _, c := range children(t) {
			if c.Kind() == kind {
				out = append(out, tsNode{n: c, source: t.source})
			}
		}
		return out
	}
}

// typeSpecRoots walks every type_declaration's nested type_spec children
// (Go allows grouped `type ( ... )` blocks as well as single `type X struct{}`).
func typeSpecRoots(t tsNode) []*tree_sitter.Node {
	var specs []*tree_sitter.Node
	for _, decl := range children(t) {
		if decl.Kind() != "type_declaration" {
			continue
		}
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			if spec := decl.NamedChild(i); spec != nil && spec.Kind() == "type_spec" {
				specs = append(specs, spec)
			}
		}
	}
	return specs
}

func specUnderlyingType(spec *tree_sitter.Node) *tree_sitter.Node {
	return spec.ChildByFieldName("type")
}

func isStructSpec(spec *tree_sitter.Node) bool {
	t := specUnderlyingType(spec)
	return t != nil && t.Kind() == "struct_type"
}

func isInterfaceSpec(spec *tree_sitter.Node) bool {
	t := specUnderlyingType(spec)
	return t != nil && t.Kind() == "interface_type"
}

func isAliasSpec(spec *tree_sitter.Node) bool {
	t := specUnderlyingType(spec)
	if t == nil {
		return false
	}
	return t.Kind() != "struct_type" && t.Kind() != "interface_type"
}

func typeSpecsWhere(pred func(*tree_sitter.Node) bool) getter {
	return func(t tsNode) []schema.ParsedNode {
		var out []schema.ParsedNode
		var kind string
		for _, spec := range typeSpecRoots(t) {
			if !pred(spec) {
				continue
			}
			switch {
			case isStructSpec(spec):
				kind = "type_spec_struct"
			case isInterfaceSpec(spec):
				kind = "type_spec_interface"
			default:
				kind = "type_spec_alias"
			}
			out = append(out, wrapAs(spec, t.source, kind))
		}
		return out
	}
}

func packageVars(t tsNode) []schema.ParsedNode {
	var out []schema.ParsedNode
	for _, decl := range children(t) {
		var wantKind string
		switch decl.Kind() {
		case "var_declaration":
			wantKind = "var_spec"
		case "const_declaration":
			wantKind = "const_spec"
		default:
			continue
		}
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			if spec := decl.NamedChild(i); spec != nil && spec.Kind() == wantKind {
				out = append(out, tsNode{n: spec, source: t.source})
			}
		}
	}
	return out
}

func importSpecs(t tsNode) []schema.ParsedNode {
	var out []schema.ParsedNode
	for _, decl := range children(t) {
		if decl.Kind() != "import_declaration" {
			continue
		}
		for i := uint(0); i < decl.NamedChildCount(); i++ {
			c := decl.NamedChild(i)
			if c == nil {
				continue
			}
			if c.Kind() == "import_spec" {
				out = append(out, tsNode{n: c, source: t.source})
			} else if c.Kind() == "import_spec_list" {
				for j := uint(0); j < c.NamedChildCount(); j++ {
					if spec := c.NamedChild(j); spec != nil && spec.Kind() == "import_spec" {
						out = append(out, tsNode{n: spec, source: t.source})
					}
				}
			}
		}
	}
	return out
}

func parameters(t tsNode) []schema.ParsedNode {
	plist := t.n.ChildByFieldName("parameters")
	if plist == nil {
		return nil
	}
	var out []schema.ParsedNode
	for i := uint(0); i < plist.NamedChildCount(); i++ {
		if p := plist.NamedChild(i); p != nil && p.Kind() == "parameter_declaration" {
			out = append(out, tsNode{n: p, source: t.source})
		}
	}
	return out
}

func structFields(t tsNode) []schema.ParsedNode {
	body := t.n.ChildByFieldName("type")
	if body == nil || body.Kind() != "struct_type" {
		return nil
	}
	flist := body.ChildByFieldName("body")
	if flist == nil {
		return nil
	}
	var out []schema.ParsedNode
	for i := uint(0); i < flist.NamedChildCount(); i++ {
		if f := flist.NamedChild(i); f != nil && f.Kind() == "field_declaration" {
			out = append(out, tsNode{n: f, source: t.source})
		}
	}
	return out
}

func embeddedInterfaces(t tsNode) []schema.ParsedNode {
	body := t.n.ChildByFieldName("type")
	if body == nil {
		return nil
	}
	var listField string
	switch body.Kind() {
	case "struct_type":
		listField = "body"
	case "interface_type":
		listField = "body"
	default:
		return nil
	}
	list := body.ChildByFieldName(listField)
	if list == nil {
		return nil
	}
	var out []schema.ParsedNode
	for i := uint(0); i < list.NamedChildCount(); i++ {
		c := list.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "field_declaration":
			// embedded struct field (anonymous, no "name" field)
			if c.ChildByFieldName("name") == nil {
				if typ := c.ChildByFieldName("type"); typ != nil {
					out = append(out, tsNode{n: typ, source: t.source})
				}
			}
		case "type_identifier", "qualified_type":
			out = append(out, tsNode{n: c, source: t.source})
		}
	}
	return out
}

func callTargets(t tsNode) []schema.ParsedNode {
	body := t.n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	var out []schema.ParsedNode
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		if n.Kind() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				out = append(out, tsNode{n: fn, source: t.source})
			}
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(body)
	return out
}

func fieldType(t tsNode) []schema.ParsedNode {
	if typ := t.n.ChildByFieldName("type"); typ != nil {
		return []schema.ParsedNode{tsNode{n: typ, source: t.source}}
	}
	return nil
}

func paramType(t tsNode) []schema.ParsedNode { return fieldType(t) }

func varType(t tsNode) []schema.ParsedNode {
	if typ := t.n.ChildByFieldName("type"); typ != nil {
		return []schema.ParsedNode{tsNode{n: typ, source: t.source}}
	}
	return nil
}

func underlyingType(t tsNode) []schema.ParsedNode {
	if typ := t.n.ChildByFieldName("type"); typ != nil {
		return []schema.ParsedNode{tsNode{n: typ, source: t.source}}
	}
	return nil
}

// directivePattern matches the handful of compiler/tooling directive
// comments Go recognizes: //go:generate, //go:embed, //go:build, and the
// legacy // +build constraint line.
var directivePattern = regexp.MustCompile(`^//\s*(go:\S+|\+build\b)`)

// commentAnchor returns the node whose sibling chain actually carries a
// declaration's leading comments. A bare spec node (type_spec, var_spec,
// const_spec) sits nested one level inside its wrapping _declaration node
// and is usually its only child, so the comment lives above the wrapper,
// not above the spec itself.
func commentAnchor(n *tree_sitter.Node) *tree_sitter.Node {
	switch n.Kind() {
	case "type_spec", "var_spec", "const_spec":
		if p := n.Parent(); p != nil {
			return p
		}
	}
	return n
}

// precedingCommentGroup walks contiguous "comment" siblings immediately
// above n, oldest first. tree-sitter-go keeps comments as extra named
// nodes directly in the sibling chain, so PrevSibling() reaches them
// without a structural rescan (the same trick the unified extractor's
// doc-comment lookup uses).
func precedingCommentGroup(n *tree_sitter.Node) []*tree_sitter.Node {
	var group []*tree_sitter.Node
	for cur := n.PrevSibling(); cur != nil && cur.Kind() == "comment"; cur = cur.PrevSibling() {
		group = append([]*tree_sitter.Node{cur}, group...)
	}
	return group
}

// directiveComments returns the nearest attached doc-comment directive
// group above a declaration (e.g. //go:generate, // +build), each wrapped
// as a Decorator-shaped ParsedNode.
func directiveComments(t tsNode) []schema.ParsedNode {
	var out []schema.ParsedNode
	for _, c := range precedingCommentGroup(commentAnchor(t.n)) {
		text := string(t.source[c.StartByte():c.EndByte()])
		if directivePattern.MatchString(strings.TrimSpace(text)) {
			out = append(out, wrapAs(c, t.source, "directive_comment"))
		}
	}
	return out
}

// structTag returns a field_declaration's struct tag, if any, as a
// Decorator-shaped ParsedNode.
func structTag(t tsNode) []schema.ParsedNode {
	tag := t.n.ChildByFieldName("tag")
	if tag == nil {
		return nil
	}
	return []schema.ParsedNode{wrapAs(tag, t.source, "struct_tag")}
}

func isUpperFirst(name string) bool {
	r := []rune(name)
	if len(r) == 0 {
		return false
	}
	return unicode.IsUpper(r[0])
}

// exportedTopLevel scans every top-level declaration family a source_file
// carries and returns the exported ones (name starts with an upper-case
// rune) as Export-shaped ParsedNode views over the same underlying node.
func exportedTopLevel(t tsNode) []schema.ParsedNode {
	var out []schema.ParsedNode
	for _, getterName := range []string{"func_decl", "type_decl_struct", "type_decl_interface", "type_decl_alias", "package_var"} {
		for _, p := range goFieldGetters[getterName](t) {
			tn, ok := p.(tsNode)
			if !ok {
				continue
			}
			name, ok := tn.Field("name")
			if !ok {
				continue
			}
			if isUpperFirst(name.Text()) {
				out = append(out, wrapAs(tn.n, tn.source, "exported_decl"))
			}
		}
	}
	return out
}
