package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/standardbeagle/graphindex/internal/changedetector"
	"github.com/standardbeagle/graphindex/internal/debug"
	graphindexerrors "github.com/standardbeagle/graphindex/internal/errors"
	"github.com/standardbeagle/graphindex/internal/identity"
	"github.com/standardbeagle/graphindex/internal/normalize"
	"github.com/standardbeagle/graphindex/internal/schema"
	"github.com/standardbeagle/graphindex/internal/types"
)

var log = debug.Component("parser")

// Result is one source unit's contribution to the pipeline: the node set,
// resolved local edges, deferred cross-file references, and the lightweight
// symbol projections used by cross-chunk enhancers (§4.4, §3.1).
type Result struct {
	Unit      types.SourceUnit
	Nodes     []types.Node
	Edges     []types.Edge
	Deferred  []types.DeferredReference
	Symbols   []types.Symbol
	ParseErrs []error
}

// FileParser walks a single Go source file against a schema.Schema,
// minting deterministic IDs via internal/identity and deferring any
// reference it cannot resolve against its own local node set (§4.4).
type FileParser struct {
	ProjectID types.ProjectID
	Schema    *schema.Schema
	// Enhance is invoked once per emitted node so Framework Enhancements
	// (§4.3) can set SemanticKind/Labels/Context before the node is
	// finalized. It is optional; nil means no enhancement layer is active.
	Enhance func(n *types.Node, parsed schema.ParsedNode)
}

// localIndex is the within-file name+kind lookup used by reference
// extractors before falling back to a DeferredReference (§4.4 step 2).
type localIndex struct {
	byNameKind map[string]types.ID
}

func newLocalIndex() *localIndex {
	return &localIndex{byNameKind: map[string]types.ID{}}
}

func (l *localIndex) put(kind types.CoreKind, name string, id types.ID) {
	l.byNameKind[string(kind)+"::"+name] = id
}

func (l *localIndex) lookup(kind types.TargetKind, name string) (types.ID, bool) {
	if kind == types.TargetType {
		for _, k := range []types.CoreKind{types.KindClass, types.KindInterface, types.KindTypeAlias, types.KindEnum} {
			if id, ok := l.byNameKind[string(k)+"::"+name]; ok {
				return id, true
			}
		}
		return "", false
	}
	if kind == types.TargetFunction {
		for _, k := range []types.CoreKind{types.KindFunction, types.KindMethod} {
			if id, ok := l.byNameKind[string(k)+"::"+name]; ok {
				return id, true
			}
		}
		return "", false
	}
	return "", false
}

// Parse runs the full §4.4 algorithm over one file's content.
func (fp *FileParser) Parse(path string, content []byte, mtimeMs, size int64) Result {
	res := Result{
		Unit: types.SourceUnit{
			FilePath: path,
			ModTime:  mtimeMs,
			Size:     size,
			Language: "go",
		},
	}

	res.Unit.ContentHash = changedetector.ContentHash(content)

	tsParser, err := NewGoParser()
	if err != nil {
		// A parser that cannot even be constructed is fatal to the chunk,
		// not just this file (§4.4 "corrupts the AST binding itself").
		panic(fmt.Sprintf("parser: failed to construct go parser: %v", err))
	}
	defer tsParser.Close()

	tree := tsParser.Parse(content, nil)
	if tree == nil {
		res.ParseErrs = append(res.ParseErrs, graphindexerrors.NewParseError(path, 0, 0, fmt.Errorf("tree-sitter returned no tree")))
		return res
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		res.ParseErrs = append(res.ParseErrs, graphindexerrors.NewParseError(path, 0, 0, fmt.Errorf("empty root node")))
		return res
	}

	fileParsed := wrap(root, content)
	idx := newLocalIndex()

	fileNode := types.Node{
		ID:            identity.NodeID(fp.ProjectID, types.KindFile, path, "", ""),
		ProjectID:     fp.ProjectID,
		CoreKind:      types.KindFile,
		Name:          path,
		Location:      types.Location{FilePath: path, StartLine: 1, EndLine: fileParsed.EndLine()},
		SkipEmbedding: true,
		Context:       map[string]any{"mtime": mtimeMs, "size": size, "contentHash": res.Unit.ContentHash},
	}
	if fp.Enhance != nil {
		fp.Enhance(&fileNode, fileParsed)
	}
	res.Nodes = append(res.Nodes, fileNode)
	res.Symbols = append(res.Symbols, types.Symbol{ID: fileNode.ID, SemanticKind: fileNode.SemanticKind, Name: fileNode.Name})

	fileSchema, _ := fp.Schema.Lookup(fileParsed)

	// Pass 1: enumerate and materialize every top-level child kind so the
	// local index is fully populated before any reference extractor runs
	// (§4.4 step 2 "locate the target by name + kind in the local parsed
	// set"); cyclic/forward references within one file resolve this way.
	type pending struct {
		parsed schema.ParsedNode
		node   *types.Node
		ck     schema.CoreKindSchema
	}
	var queue []pending

	for _, cs := range fileSchema.Children {
		for _, childParsed := range fileParsed.Fields(cs.Getter) {
			ck, ok := fp.Schema.Lookup(childParsed)
			if !ok {
				continue
			}
			n := fp.materializeNode(ck, childParsed, path, fileNode.ID, idx)
			res.Nodes = append(res.Nodes, n)
			edge := fp.edge(cs.EdgeKind, fileNode.ID, n.ID, path, childParsed.StartLine(), types.OriginAST, 1.0)
			res.Edges = append(res.Edges, edge)
			res.Symbols = append(res.Symbols, types.Symbol{ID: n.ID, SemanticKind: n.SemanticKind, Name: n.Name, Context: n.Context})

			nCopy := n
			queue = append(queue, pending{parsed: childParsed, node: &nCopy, ck: ck})
		}
	}

	// Pass 2: descend into each materialized node's own children
	// (parameters, fields) and emit its reference extractors, now that the
	// whole file's top-level index is populated.
	for i := range queue {
		item := queue[i]
		fp.descendChildren(item.ck, item.parsed, item.node.ID, path, idx, &res)
		fp.emitReferences(item.ck, item.parsed, item.node, path, idx, &res)
	}

	log.WithField("file", path).WithField("nodes", len(res.Nodes)).Debug("parsed file")
	return res
}

func (fp *FileParser) descendChildren(ck schema.CoreKindSchema, parsed schema.ParsedNode, parentID types.ID, path string, idx *localIndex, res *Result) {
	for _, cs := range ck.Children {
		for _, childParsed := range parsed.Fields(cs.Getter) {
			childSchema, ok := fp.Schema.Lookup(childParsed)
			if !ok {
				continue
			}
			n := fp.materializeNode(childSchema, childParsed, path, parentID, idx)
			res.Nodes = append(res.Nodes, n)
			edge := fp.edge(cs.EdgeKind, parentID, n.ID, path, childParsed.StartLine(), types.OriginAST, 1.0)
			res.Edges = append(res.Edges, edge)
			res.Symbols = append(res.Symbols, types.Symbol{ID: n.ID, SemanticKind: n.SemanticKind, Name: n.Name, Context: n.Context})
			fp.descendChildren(childSchema, childParsed, n.ID, path, idx, res)
			fp.emitReferences(childSchema, childParsed, &n, path, idx, res)
		}
	}
}

func (fp *FileParser) materializeNode(ck schema.CoreKindSchema, parsed schema.ParsedNode, path string, parentID types.ID, idx *localIndex) types.Node {
	name := ""
	ctx := map[string]any{}
	var body string
	visibility := types.VisibilityNone
	exported := false

	for _, pe := range ck.Properties {
		v, ok := pe.Extract(parsed)
		if !ok {
			continue
		}
		switch pe.Key {
		case schema.PropName:
			name, _ = v.(string)
		case schema.PropVisibility:
			visibility, _ = v.(types.Visibility)
		case schema.PropExported:
			exported, _ = v.(bool)
		case schema.PropBody:
			body, _ = v.(string)
		default:
			ctx[pe.Key] = v
		}
	}

	id := identity.NodeID(fp.ProjectID, ck.CoreKind, path, name, parentID)

	n := types.Node{
		ID:            id,
		ProjectID:     fp.ProjectID,
		CoreKind:      ck.CoreKind,
		Name:          name,
		Labels:        append([]string{}, ck.Store.Labels...),
		Location:      types.Location{FilePath: path, StartLine: parsed.StartLine(), EndLine: parsed.EndLine()},
		Body:          body,
		Visibility:    visibility,
		IsExported:    exported,
		ParentID:      parentID,
		Context:       ctx,
		SkipEmbedding: ck.Store.SkipEmbedding,
	}

	if body != "" {
		normResult := normalize.Normalize(body)
		n.NormalizedHash = normResult.NormalizedHash
		paramCount := normResult.Metrics.ParameterCount
		if real, ok := realParameterCount(ck, parsed); ok {
			paramCount = real
		}
		n.Context["parameterCount"] = paramCount
		n.Context["statementCount"] = normResult.Metrics.StatementCount
		n.Context["maxBraceNesting"] = normResult.Metrics.MaxBraceNesting
		n.Context["nonBlankLines"] = normResult.Metrics.NonBlankLineCount
		n.Context["tokenCount"] = normResult.Metrics.TokenCount
	}

	if fp.Enhance != nil {
		fp.Enhance(&n, parsed)
	}

	idx.put(ck.CoreKind, name, id)
	return n
}

// realParameterCount refines normalize's comma-count heuristic with the
// exact Parameter-child count the schema already computes for kinds that
// declare one (functions, methods), falling back to the heuristic for
// everything else.
func realParameterCount(ck schema.CoreKindSchema, parsed schema.ParsedNode) (int, bool) {
	for _, cs := range ck.Children {
		if cs.Kind == types.KindParameter {
			return len(parsed.Fields(cs.Getter)), true
		}
	}
	return 0, false
}

func (fp *FileParser) emitReferences(ck schema.CoreKindSchema, parsed schema.ParsedNode, node *types.Node, path string, idx *localIndex, res *Result) {
	for _, rs := range ck.References {
		targets := parsed.Fields(rs.Getter)
		for _, tp := range targets {
			name := referenceName(tp)
			if name == "" {
				continue
			}
			if targetID, ok := idx.lookup(rs.TargetKind, name); ok {
				confidence := 1.0
				if rs.EdgeKind == types.EdgeCalls {
					confidence = 0.9 // receiver/local resolution, syntactic
				}
				res.Edges = append(res.Edges, fp.edge(rs.EdgeKind, node.ID, targetID, path, tp.StartLine(), types.OriginAST, confidence))
				continue
			}
			res.Deferred = append(res.Deferred, types.DeferredReference{
				SourceID:   node.ID,
				EdgeKind:   rs.EdgeKind,
				TargetName: name,
				TargetKind: rs.TargetKind,
				FilePath:   path,
				Line:       tp.StartLine(),
			})
		}
	}
}

// referenceName extracts the bare identifier a reference target points at,
// unwrapping the handful of composite node shapes tree-sitter-go produces
// for type and call-target expressions (pointer types, selector
// expressions for package-qualified names).
func referenceName(p schema.ParsedNode) string {
	text := strings.TrimSpace(p.Text())
	text = strings.TrimPrefix(text, "*")
	text = strings.TrimPrefix(text, "[]")
	if idx := strings.LastIndex(text, "."); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.IndexAny(text, "([{<"); idx >= 0 {
		text = text[:idx]
	}
	return text
}

func (fp *FileParser) edge(kind types.EdgeKind, src, tgt types.ID, path string, line int, origin types.EdgeOrigin, confidence float64) types.Edge {
	var id types.ID
	if kind == types.EdgeCalls {
		id = identity.CallEdgeID(src, tgt, line)
	} else {
		id = identity.CoreEdgeID(kind, src, tgt)
	}
	weight := fp.Schema.EdgeSchemaFor(kind).DefaultWeight
	if weight < 0 {
		weight = types.DefaultRelationshipWeight(kind)
	}
	return types.Edge{
		ID:                 id,
		ProjectID:          fp.ProjectID,
		CoreKind:           kind,
		SourceID:           src,
		TargetID:           tgt,
		Origin:             origin,
		Confidence:         confidence,
		RelationshipWeight: weight,
		FilePath:           path,
		Line:               line,
	}
}

// ReadFile is a small helper shared by the coordinator and incremental
// engine so file-stat metadata and content are captured consistently.
func ReadFile(path string) (content []byte, mtimeMs int64, size int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, 0, err
	}
	content, err = os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, err
	}
	return content, info.ModTime().UnixMilli(), info.Size(), nil
}
