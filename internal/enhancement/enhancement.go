// Package enhancement implements the stacked Framework Enhancements of
// spec.md §4.3: detection patterns that refine a core node with a semantic
// kind and extra labels, plus pairwise edge enhancers evaluated over the
// merged project-wide symbol index after every chunk has parsed.
package enhancement

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/graphindex/internal/schema"
	"github.com/standardbeagle/graphindex/internal/types"
)

// DetectionPattern matches a parsed node against a framework convention.
type DetectionPattern func(n *types.Node, p schema.ParsedNode) bool

// ContextExtractor contributes one or more keys to a node's Context map.
// Extractors run in priority order (ordered slice, lowest index first).
type ContextExtractor func(n *types.Node, p schema.ParsedNode, ctx map[string]any)

// Enhancement is one priority-ordered refinement rule (§4.3).
type Enhancement struct {
	Name        string
	CoreKind    types.CoreKind
	Detect      DetectionPattern
	Semantic    string
	ExtraLabels []string
	Context     []ContextExtractor
	Edges       []EdgeEnhancement
}

// EdgeEnhancement synthesizes a semantic relationship between two symbols
// whose DetectionPattern accepts the pair, evaluated pairwise over the
// whole project's Lightweight Symbol Records (§4.3, §4.6 step 2).
type EdgeEnhancement struct {
	Name       string
	EdgeKind   types.EdgeKind
	Semantic   string
	Weight     float64
	Detect     func(source, target types.Symbol, all []types.Symbol, shared map[string]any) bool
	Context    func(source, target types.Symbol) map[string]any
}

// Stack is the priority-ordered list of active enhancements; the first
// match for a node kind wins the semantic kind and label assignment, but
// every matching enhancement still contributes its context extractors
// (§4.3 "apply highest-priority match first ... additional enhancements
// may contribute to the context map").
type Stack struct {
	Enhancements []Enhancement
}

// Apply runs every enhancement whose CoreKind and Detect predicate match n,
// in stack order. The first match sets SemanticKind/Labels; all matches
// contribute Context.
func (s *Stack) Apply(n *types.Node, p schema.ParsedNode) {
	if n.Context == nil {
		n.Context = map[string]any{}
	}
	semanticSet := false
	for _, e := range s.Enhancements {
		if e.CoreKind != n.CoreKind {
			continue
		}
		if !e.Detect(n, p) {
			continue
		}
		if !semanticSet {
			n.SemanticKind = e.Semantic
			n.Labels = append(n.Labels, e.ExtraLabels...)
			semanticSet = true
		}
		for _, ce := range e.Context {
			ce(n, p, n.Context)
		}
	}
}

// EdgeEnhancements returns every EdgeEnhancement across the stack.
func (s *Stack) EdgeEnhancements() []EdgeEnhancement {
	var out []EdgeEnhancement
	for _, e := range s.Enhancements {
		out = append(out, e.Edges...)
	}
	return out
}

// GoStack is the reference enhancement stack for Go sources: net/http
// handler detection by method name (ServeHTTP), by-convention constructor
// detection (New* prefix), JSON struct-tag decoration, and cobra command
// detection by a cobra.Command literal in the function body.
func GoStack() *Stack {
	jsonTagRe := regexp.MustCompile(`json:"([^"]*)"`)

	return &Stack{Enhancements: []Enhancement{
		{
			Name:     "http-handler",
			CoreKind: types.KindMethod,
			Detect: func(n *types.Node, p schema.ParsedNode) bool {
				return n.Name == "ServeHTTP"
			},
			Semantic:    "http.Handler",
			ExtraLabels: []string{"HTTPHandler"},
		},
		{
			Name:     "constructor",
			CoreKind: types.KindFunction,
			Detect: func(n *types.Node, p schema.ParsedNode) bool {
				return strings.HasPrefix(n.Name, "New") && len(n.Name) > len("New")
			},
			Semantic:    "constructor",
			ExtraLabels: []string{"Constructor"},
			Context: []ContextExtractor{
				func(n *types.Node, p schema.ParsedNode, ctx map[string]any) {
					ctx["constructedType"] = strings.TrimPrefix(n.Name, "New")
				},
			},
		},
		{
			Name:     "json-tagged-field",
			CoreKind: types.KindProperty,
			Detect: func(n *types.Node, p schema.ParsedNode) bool {
				tag, _ := n.Context["tag"].(string)
				return jsonTagRe.MatchString(tag)
			},
			Semantic:    "json-field",
			ExtraLabels: []string{"JSONField"},
			Context: []ContextExtractor{
				func(n *types.Node, p schema.ParsedNode, ctx map[string]any) {
					tag, _ := n.Context["tag"].(string)
					m := jsonTagRe.FindStringSubmatch(tag)
					if len(m) == 2 {
						ctx["jsonName"] = strings.Split(m[1], ",")[0]
					}
				},
			},
		},
		{
			Name:     "cobra-command-constructor",
			CoreKind: types.KindFunction,
			Detect: func(n *types.Node, p schema.ParsedNode) bool {
				return strings.Contains(n.Body, "cobra.Command{")
			},
			Semantic:    "cli.command",
			ExtraLabels: []string{"CLICommand"},
			Edges: []EdgeEnhancement{
				{
					Name:     "command-registers-subcommand",
					EdgeKind: types.EdgeCalls,
					Semantic: "registers",
					Weight:   0.55,
					Detect: func(source, target types.Symbol, all []types.Symbol, shared map[string]any) bool {
						if source.SemanticKind != "cli.command" || target.SemanticKind != "cli.command" {
							return false
						}
						return strings.Contains(source.Name, "Root") && source.ID != target.ID
					},
				},
			},
		},
	}}
}
