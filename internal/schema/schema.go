// Package schema is the declarative description of node kinds, child
// containment, reference relationships, and store-side indexing metadata
// (§4.2). It is evaluated at runtime by internal/parser against a
// language-agnostic ParsedNode view over the tree-sitter AST; nothing in
// this package imports tree-sitter directly, so swapping the parsed-node
// adapter is enough to retarget a different curly-brace language without
// touching the schema tables themselves.
package schema

import "github.com/standardbeagle/graphindex/internal/types"

// Cardinality describes how many targets a reference extractor expects.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

// ParsedNode is the minimal view the schema needs over a parsed AST node.
// internal/parser's tree-sitter adapter implements this.
type ParsedNode interface {
	Kind() string
	Text() string
	StartLine() int
	EndLine() int
	// Field returns the named field child per the grammar's field names
	// (tree-sitter's field-name accessors), e.g. "name", "body", "type".
	Field(name string) (ParsedNode, bool)
	// Fields returns every child bound to the named field, for
	// Many-cardinality getters (e.g. "parameters", "fields").
	Fields(name string) []ParsedNode
	// NamedChildren returns every named child, used by getters that must
	// walk structurally rather than by field name (e.g. decorator scanning).
	NamedChildren() []ParsedNode
}

// PropertyExtractor computes one property value from a parsed node. Its Key
// is the property name written into the node's Context map (or, for the
// small set of well-known keys below, onto the Node struct field itself).
type PropertyExtractor struct {
	Key     string
	Extract func(p ParsedNode) (any, bool)
}

// Well-known property keys the parser maps onto types.Node fields directly
// instead of into the free-form Context map.
const (
	PropName       = "name"
	PropVisibility = "visibility"
	PropExported   = "isExported"
	PropBody       = "body"
)

// ChildSpec enumerates one category of child declaration beneath a parent.
type ChildSpec struct {
	Kind     types.CoreKind
	EdgeKind types.EdgeKind // contains | has-member | has-parameter | decorated-with
	Getter   string         // field name passed to ParsedNode.Fields
	Card     Cardinality
}

// ReferenceSpec enumerates one category of deferred/local reference a node
// kind may emit (extends, implements, typed-as, imports, calls, exports).
type ReferenceSpec struct {
	EdgeKind   types.EdgeKind
	Getter     string
	Card       Cardinality
	TargetKind types.TargetKind
}

// StoreMeta is persisted alongside a node kind for the Graph Importer
// (§4.2 "store-side metadata").
type StoreMeta struct {
	Labels        []string
	PrimaryLabel  string
	IndexedProps  []string
	SkipEmbedding bool
}

// NodeSchema is the full declarative description for one core kind.
type NodeSchema struct {
	Kind CoreKindSchema
}

// CoreKindSchema binds a CoreKind to its detection predicate, extractors and
// metadata.
type CoreKindSchema struct {
	CoreKind   types.CoreKind
	Matches    func(p ParsedNode) bool
	Properties []PropertyExtractor
	Children   []ChildSpec
	References []ReferenceSpec
	Store      StoreMeta
}

// EdgeSchema is the declarative description for one edge kind (§4.2 "for
// each edge kind").
type EdgeSchema struct {
	Kind            types.EdgeKind
	AllowedSources  []types.CoreKind
	AllowedTargets  []types.CoreKind
	DefaultWeight   float64
	Directed        bool
}

// Schema is the full stacked set of node and edge schemas active for a
// parse. A Workspace Parser may layer per-package Framework Enhancements on
// top of a shared core Schema (§4.6).
type Schema struct {
	Nodes []CoreKindSchema
	Edges []EdgeSchema
}

// Lookup returns the CoreKindSchema whose Matches predicate accepts p, in
// declaration order (first match wins, mirroring "apply highest-priority
// match first" from §4.4).
func (s *Schema) Lookup(p ParsedNode) (CoreKindSchema, bool) {
	for _, n := range s.Nodes {
		if n.Matches(p) {
			return n, true
		}
	}
	return CoreKindSchema{}, false
}

// EdgeSchemaFor returns the declarative edge metadata for a kind, falling
// back to the §3.3 invariant-4 default weight table when undeclared.
func (s *Schema) EdgeSchemaFor(kind types.EdgeKind) EdgeSchema {
	for _, e := range s.Edges {
		if e.Kind == kind {
			return e
		}
	}
	return EdgeSchema{Kind: kind, DefaultWeight: -1, Directed: true}
}
