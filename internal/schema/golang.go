package schema

import (
	"strings"
	"unicode"

	"github.com/standardbeagle/graphindex/internal/types"
)

// isExportedName is Go's own visibility rule: an identifier is exported iff
// its first rune is upper-case.
func isExportedName(name string) bool {
	r := []rune(name)
	if len(r) == 0 {
		return false
	}
	return unicode.IsUpper(r[0])
}

func visibilityOf(name string) types.Visibility {
	if isExportedName(name) {
		return types.VisibilityPublic
	}
	return types.VisibilityPrivate
}

func nameOf(p ParsedNode) (any, bool) {
	n, ok := p.Field("name")
	if !ok {
		return nil, false
	}
	return n.Text(), true
}

func bodyOf(p ParsedNode) (any, bool) {
	return p.Text(), true
}

func exportedOf(p ParsedNode) (any, bool) {
	n, ok := p.Field("name")
	if !ok {
		return false, true
	}
	return isExportedName(n.Text()), true
}

func visibilityExtractor(p ParsedNode) (any, bool) {
	n, ok := p.Field("name")
	if !ok {
		return types.VisibilityNone, true
	}
	return visibilityOf(n.Text()), true
}

// GoSchema instantiates the Core Schema (§4.2) against tree-sitter-go's
// field/kind naming. A source_file's direct children are walked
// structurally; declarations beneath it dispatch on tree-sitter node kind.
func GoSchema() *Schema {
	return &Schema{
		Nodes: []CoreKindSchema{
			fileSchema(),
			functionSchema(),
			methodSchema(),
			classSchema(),  // struct type_declaration
			interfaceSchema(),
			typeAliasSchema(),
			propertySchema(),
			parameterSchema(),
			variableSchema(),
			importSchema(),
			exportSchema(),
			decoratorSchema(),
		},
		Edges: []EdgeSchema{
			{Kind: types.EdgeContains, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeContains), Directed: true},
			{Kind: types.EdgeHasMember, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeHasMember), Directed: true},
			{Kind: types.EdgeHasParameter, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeHasParameter), Directed: true},
			{Kind: types.EdgeDecoratedWith, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeDecoratedWith), Directed: true},
			{Kind: types.EdgeImports, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeImports), Directed: true},
			{Kind: types.EdgeExports, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeExports), Directed: true},
			{Kind: types.EdgeExtends, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeExtends), Directed: true,
				AllowedSources: []types.CoreKind{types.KindClass, types.KindInterface}, AllowedTargets: []types.CoreKind{types.KindClass, types.KindInterface}},
			{Kind: types.EdgeImplements, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeImplements), Directed: true,
				AllowedSources: []types.CoreKind{types.KindClass}, AllowedTargets: []types.CoreKind{types.KindInterface}},
			{Kind: types.EdgeTypedAs, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeTypedAs), Directed: true},
			{Kind: types.EdgeCalls, DefaultWeight: types.DefaultRelationshipWeight(types.EdgeCalls), Directed: true,
				AllowedSources: []types.CoreKind{types.KindFunction, types.KindMethod}, AllowedTargets: []types.CoreKind{types.KindFunction, types.KindMethod}},
		},
	}
}

func fileSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindFile,
		Matches:  func(p ParsedNode) bool { return p.Kind() == "source_file" },
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: func(p ParsedNode) (any, bool) { return "", true }},
		},
		Children: []ChildSpec{
			{Kind: types.KindFunction, EdgeKind: types.EdgeContains, Getter: "func_decl", Card: Many},
			{Kind: types.KindClass, EdgeKind: types.EdgeContains, Getter: "type_decl_struct", Card: Many},
			{Kind: types.KindInterface, EdgeKind: types.EdgeContains, Getter: "type_decl_interface", Card: Many},
			{Kind: types.KindTypeAlias, EdgeKind: types.EdgeContains, Getter: "type_decl_alias", Card: Many},
			{Kind: types.KindVariable, EdgeKind: types.EdgeContains, Getter: "package_var", Card: Many},
			{Kind: types.KindImport, EdgeKind: types.EdgeImports, Getter: "import_spec", Card: Many},
			{Kind: types.KindExport, EdgeKind: types.EdgeExports, Getter: "exported_decl", Card: Many},
		},
		Store: StoreMeta{Labels: []string{"File"}, PrimaryLabel: "File", IndexedProps: []string{"filePath"}, SkipEmbedding: true},
	}
}

func functionSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindFunction,
		Matches: func(p ParsedNode) bool {
			if p.Kind() != "function_declaration" {
				return false
			}
			_, hasReceiver := p.Field("receiver")
			return !hasReceiver
		},
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: nameOf},
			{Key: PropVisibility, Extract: visibilityExtractor},
			{Key: PropExported, Extract: exportedOf},
			{Key: PropBody, Extract: bodyOf},
		},
		Children: []ChildSpec{
			{Kind: types.KindParameter, EdgeKind: types.EdgeHasParameter, Getter: "parameters", Card: Many},
			{Kind: types.KindDecorator, EdgeKind: types.EdgeDecoratedWith, Getter: "directives", Card: Many},
		},
		References: []ReferenceSpec{
			{EdgeKind: types.EdgeCalls, Getter: "call_target", Card: Many, TargetKind: types.TargetFunction},
		},
		Store: StoreMeta{Labels: []string{"Function"}, PrimaryLabel: "Function", IndexedProps: []string{"name"}},
	}
}

func methodSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindMethod,
		Matches: func(p ParsedNode) bool {
			if p.Kind() != "function_declaration" {
				return false
			}
			_, hasReceiver := p.Field("receiver")
			return hasReceiver
		},
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: nameOf},
			{Key: PropVisibility, Extract: visibilityExtractor},
			{Key: PropExported, Extract: exportedOf},
			{Key: PropBody, Extract: bodyOf},
			{Key: "receiverType", Extract: func(p ParsedNode) (any, bool) {
				r, ok := p.Field("receiver")
				if !ok {
					return nil, false
				}
				return strings.TrimSpace(r.Text()), true
			}},
		},
		Children: []ChildSpec{
			{Kind: types.KindParameter, EdgeKind: types.EdgeHasParameter, Getter: "parameters", Card: Many},
			{Kind: types.KindDecorator, EdgeKind: types.EdgeDecoratedWith, Getter: "directives", Card: Many},
		},
		References: []ReferenceSpec{
			{EdgeKind: types.EdgeCalls, Getter: "call_target", Card: Many, TargetKind: types.TargetFunction},
		},
		Store: StoreMeta{Labels: []string{"Method"}, PrimaryLabel: "Method", IndexedProps: []string{"name"}},
	}
}

func classSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindClass,
		Matches:  func(p ParsedNode) bool { return p.Kind() == "type_spec_struct" },
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: nameOf},
			{Key: PropVisibility, Extract: visibilityExtractor},
			{Key: PropExported, Extract: exportedOf},
			{Key: PropBody, Extract: bodyOf},
		},
		Children: []ChildSpec{
			{Kind: types.KindProperty, EdgeKind: types.EdgeHasMember, Getter: "fields", Card: Many},
			{Kind: types.KindDecorator, EdgeKind: types.EdgeDecoratedWith, Getter: "directives", Card: Many},
		},
		References: []ReferenceSpec{
			{EdgeKind: types.EdgeImplements, Getter: "embedded_interface", Card: Many, TargetKind: types.TargetType},
		},
		Store: StoreMeta{Labels: []string{"Class"}, PrimaryLabel: "Class", IndexedProps: []string{"name"}},
	}
}

func interfaceSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindInterface,
		Matches:  func(p ParsedNode) bool { return p.Kind() == "type_spec_interface" },
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: nameOf},
			{Key: PropVisibility, Extract: visibilityExtractor},
			{Key: PropExported, Extract: exportedOf},
			{Key: PropBody, Extract: bodyOf},
		},
		Children: []ChildSpec{
			{Kind: types.KindDecorator, EdgeKind: types.EdgeDecoratedWith, Getter: "directives", Card: Many},
		},
		References: []ReferenceSpec{
			{EdgeKind: types.EdgeExtends, Getter: "embedded_interface", Card: Many, TargetKind: types.TargetType},
		},
		Store: StoreMeta{Labels: []string{"Interface"}, PrimaryLabel: "Interface", IndexedProps: []string{"name"}},
	}
}

func typeAliasSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindTypeAlias,
		Matches:  func(p ParsedNode) bool { return p.Kind() == "type_spec_alias" },
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: nameOf},
			{Key: PropVisibility, Extract: visibilityExtractor},
			{Key: PropExported, Extract: exportedOf},
			{Key: PropBody, Extract: bodyOf},
		},
		Children: []ChildSpec{
			{Kind: types.KindDecorator, EdgeKind: types.EdgeDecoratedWith, Getter: "directives", Card: Many},
		},
		References: []ReferenceSpec{
			{EdgeKind: types.EdgeTypedAs, Getter: "underlying_type", Card: One, TargetKind: types.TargetType},
		},
		Store: StoreMeta{Labels: []string{"TypeAlias"}, PrimaryLabel: "TypeAlias", IndexedProps: []string{"name"}},
	}
}

func propertySchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindProperty,
		Matches:  func(p ParsedNode) bool { return p.Kind() == "field_declaration" },
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: nameOf},
			{Key: PropVisibility, Extract: visibilityExtractor},
			{Key: PropExported, Extract: exportedOf},
			{Key: "tag", Extract: func(p ParsedNode) (any, bool) {
				t, ok := p.Field("tag")
				if !ok {
					return nil, false
				}
				return t.Text(), true
			}},
		},
		Children: []ChildSpec{
			{Kind: types.KindDecorator, EdgeKind: types.EdgeDecoratedWith, Getter: "struct_tag", Card: Many},
		},
		References: []ReferenceSpec{
			{EdgeKind: types.EdgeTypedAs, Getter: "field_type", Card: One, TargetKind: types.TargetType},
		},
		Store: StoreMeta{Labels: []string{"Property"}, PrimaryLabel: "Property", IndexedProps: []string{"name"}, SkipEmbedding: true},
	}
}

func parameterSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindParameter,
		Matches:  func(p ParsedNode) bool { return p.Kind() == "parameter_declaration" },
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: nameOf},
		},
		References: []ReferenceSpec{
			{EdgeKind: types.EdgeTypedAs, Getter: "param_type", Card: One, TargetKind: types.TargetType},
		},
		Store: StoreMeta{Labels: []string{"Parameter"}, PrimaryLabel: "Parameter", SkipEmbedding: true},
	}
}

func variableSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindVariable,
		Matches:  func(p ParsedNode) bool { return p.Kind() == "var_spec" || p.Kind() == "const_spec" },
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: nameOf},
			{Key: PropVisibility, Extract: visibilityExtractor},
			{Key: PropExported, Extract: exportedOf},
		},
		Children: []ChildSpec{
			{Kind: types.KindDecorator, EdgeKind: types.EdgeDecoratedWith, Getter: "directives", Card: Many},
		},
		References: []ReferenceSpec{
			{EdgeKind: types.EdgeTypedAs, Getter: "var_type", Card: One, TargetKind: types.TargetType},
		},
		Store: StoreMeta{Labels: []string{"Variable"}, PrimaryLabel: "Variable", SkipEmbedding: true},
	}
}

func importSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindImport,
		Matches:  func(p ParsedNode) bool { return p.Kind() == "import_spec" },
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: func(p ParsedNode) (any, bool) {
				n, ok := p.Field("path")
				if !ok {
					return nil, false
				}
				return strings.Trim(n.Text(), `"`), true
			}},
		},
		Store: StoreMeta{Labels: []string{"Import"}, PrimaryLabel: "Import", SkipEmbedding: true},
	}
}

// exportSchema covers Go's own visibility rule as a first-class node: one
// Export node per top-level declaration whose name starts with an
// upper-case rune, linked from its owning File by EdgeExports.
func exportSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindExport,
		Matches:  func(p ParsedNode) bool { return p.Kind() == "exported_decl" },
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: nameOf},
		},
		Store: StoreMeta{Labels: []string{"Export"}, PrimaryLabel: "Export", IndexedProps: []string{"name"}, SkipEmbedding: true},
	}
}

// decoratorSchema covers Go's two syntactic decoration mechanisms: struct
// tags on a field, and the nearest attached doc-comment directive group
// above a declaration (//go:generate, //go:embed, // +build).
func decoratorSchema() CoreKindSchema {
	return CoreKindSchema{
		CoreKind: types.KindDecorator,
		Matches: func(p ParsedNode) bool {
			return p.Kind() == "directive_comment" || p.Kind() == "struct_tag"
		},
		Properties: []PropertyExtractor{
			{Key: PropName, Extract: func(p ParsedNode) (any, bool) { return strings.TrimSpace(p.Text()), true }},
		},
		Store: StoreMeta{Labels: []string{"Decorator"}, PrimaryLabel: "Decorator", SkipEmbedding: true},
	}
}
