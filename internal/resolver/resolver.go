// Package resolver implements the Reference Resolver (§4.5): it turns a
// project-wide set of types.DeferredReference into resolved types.Edge
// values using three strategies in order — precise file match, module
// specifier resolution for imports, and name+kind fallback.
package resolver

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/graphindex/internal/identity"
	"github.com/standardbeagle/graphindex/internal/types"
)

// DeclaredIndex is the project-wide index of every declared node, keyed for
// each of the resolver's three lookup strategies.
type DeclaredIndex struct {
	// byFileKindName supports the precise strategy: (coreKind, name, filePath).
	byFileKindName map[string]types.ID
	// byKindName supports the name+kind fallback strategy, and holds every
	// candidate (not just the first) so ambiguity can be resolved
	// deterministically (§9 Open Question 1).
	byKindName map[string][]candidate
	// filesByPath supports import resolution: every known File node ID by
	// its exact path, plus the set of known file paths for extension/index
	// fallback probing.
	filesByPath map[string]types.ID
	knownPaths  map[string]bool
	// packageRoots maps a scoped package specifier ("@scope/pkg") to its
	// root directory, populated by the Workspace Parser (§4.5 strategy 2).
	packageRoots map[string]string
}

type candidate struct {
	id       types.ID
	filePath string
}

func NewDeclaredIndex() *DeclaredIndex {
	return &DeclaredIndex{
		byFileKindName: map[string]types.ID{},
		byKindName:     map[string][]candidate{},
		filesByPath:    map[string]types.ID{},
		knownPaths:     map[string]bool{},
		packageRoots:   map[string]string{},
	}
}

func fileKindKey(kind types.CoreKind, name, path string) string {
	return string(kind) + "::" + name + "::" + path
}

func kindNameKey(kind types.TargetKind, name string) string {
	return string(kind) + "::" + name
}

// AddNode registers one declared node for lookup. File nodes are indexed
// twice: once under the generic type-kind buckets below, and once in
// filesByPath for import resolution.
func (idx *DeclaredIndex) AddNode(n types.Node) {
	idx.byFileKindName[fileKindKey(n.CoreKind, n.Name, n.Location.FilePath)] = n.ID

	for _, tk := range targetKindsFor(n.CoreKind) {
		key := kindNameKey(tk, n.Name)
		idx.byKindName[key] = append(idx.byKindName[key], candidate{id: n.ID, filePath: n.Location.FilePath})
	}

	if n.CoreKind == types.KindFile {
		idx.filesByPath[n.Location.FilePath] = n.ID
		idx.knownPaths[n.Location.FilePath] = true
	}
}

// SetPackageRoot registers a scoped package specifier's root directory for
// strategy 2's scoped-package rewrite.
func (idx *DeclaredIndex) SetPackageRoot(specifier, root string) {
	idx.packageRoots[specifier] = root
}

func targetKindsFor(k types.CoreKind) []types.TargetKind {
	switch k {
	case types.KindClass, types.KindInterface, types.KindEnum, types.KindTypeAlias:
		return []types.TargetKind{types.TargetType}
	case types.KindFunction, types.KindMethod:
		return []types.TargetKind{types.TargetFunction}
	case types.KindFile:
		return []types.TargetKind{types.TargetFile}
	default:
		return nil
	}
}

// goIndexExtensions are the fall-back suffixes tried for a directory import
// target, mirroring the distilled spec's "/index.*" fall-back generalized
// to Go's package-as-directory convention.
var goIndexExtensions = []string{".go"}

// Stats is returned alongside the resolved edges: unresolved-reference
// tallies per edge kind with a bounded sample, and the count of references
// that bound ambiguously to more than one candidate (§9 Open Question 1,
// §4.5, §7).
type Stats struct {
	UnresolvedByKind map[types.EdgeKind]int
	UnresolvedSample map[types.EdgeKind][]string
	Ambiguous        int
}

const sampleCap = 20

// Resolver resolves deferred references against a DeclaredIndex.
type Resolver struct {
	Index *DeclaredIndex
}

func New(idx *DeclaredIndex) *Resolver {
	return &Resolver{Index: idx}
}

// Resolve runs the three-strategy lookup over every deferred reference and
// returns the resolved edges plus resolution statistics. Resolution
// failures are never fatal (§4.5, §7): they are counted and dropped.
func (r *Resolver) Resolve(projectID types.ProjectID, deferred []types.DeferredReference) ([]types.Edge, Stats) {
	stats := Stats{
		UnresolvedByKind: map[types.EdgeKind]int{},
		UnresolvedSample: map[types.EdgeKind][]string{},
	}
	var edges []types.Edge

	for _, ref := range deferred {
		targetID, ambiguous, ok := r.resolveOne(ref)
		if !ok {
			stats.UnresolvedByKind[ref.EdgeKind]++
			if len(stats.UnresolvedSample[ref.EdgeKind]) < sampleCap {
				stats.UnresolvedSample[ref.EdgeKind] = append(stats.UnresolvedSample[ref.EdgeKind], ref.TargetName)
			}
			continue
		}
		if ambiguous {
			stats.Ambiguous++
		}

		confidence := 1.0
		if ref.EdgeKind == types.EdgeCalls {
			confidence = 0.7 // cross-file best-effort by-name match, no receiver type (§9)
		}

		var id types.ID
		if ref.EdgeKind == types.EdgeCalls {
			id = identity.CallEdgeID(ref.SourceID, targetID, ref.Line)
		} else {
			id = identity.CoreEdgeID(ref.EdgeKind, ref.SourceID, targetID)
		}

		edges = append(edges, types.Edge{
			ID:                 id,
			ProjectID:          projectID,
			CoreKind:           ref.EdgeKind,
			SourceID:           ref.SourceID,
			TargetID:           targetID,
			Origin:             types.OriginAST,
			Confidence:         confidence,
			RelationshipWeight: types.DefaultRelationshipWeight(ref.EdgeKind),
			FilePath:           ref.FilePath,
			Line:               ref.Line,
		})
	}

	return edges, stats
}

func (r *Resolver) resolveOne(ref types.DeferredReference) (types.ID, bool, bool) {
	// Strategy 1: precise match by (coreKind, name, filePath).
	if ref.TargetFilePath != "" {
		for _, ck := range coreKindsFor(ref.TargetKind) {
			if id, ok := r.Index.byFileKindName[fileKindKey(ck, ref.TargetName, ref.TargetFilePath)]; ok {
				return id, false, true
			}
		}
	}

	// Strategy 2: module specifier resolution for imports targeting a File.
	if ref.EdgeKind == types.EdgeImports || ref.TargetKind == types.TargetFile {
		if id, ok := r.resolveImport(ref); ok {
			return id, false, true
		}
	}

	// Strategy 3: name+kind exact match, deterministic ambiguity pick
	// (§9 Open Question 1): first precise-file match (same dir as the
	// reference), else shortest package path, else lexical sort.
	candidates := r.Index.byKindName[kindNameKey(ref.TargetKind, ref.TargetName)]
	if len(candidates) == 0 {
		return "", false, false
	}
	if len(candidates) == 1 {
		return candidates[0].id, false, true
	}

	sorted := append([]candidate{}, candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		iSame := filepath.Dir(sorted[i].filePath) == filepath.Dir(ref.FilePath)
		jSame := filepath.Dir(sorted[j].filePath) == filepath.Dir(ref.FilePath)
		if iSame != jSame {
			return iSame
		}
		li, lj := len(sorted[i].filePath), len(sorted[j].filePath)
		if li != lj {
			return li < lj
		}
		return sorted[i].filePath < sorted[j].filePath
	})
	return sorted[0].id, true, true
}

func coreKindsFor(tk types.TargetKind) []types.CoreKind {
	switch tk {
	case types.TargetType:
		return []types.CoreKind{types.KindClass, types.KindInterface, types.KindEnum, types.KindTypeAlias}
	case types.TargetFunction:
		return []types.CoreKind{types.KindFunction, types.KindMethod}
	case types.TargetFile:
		return []types.CoreKind{types.KindFile}
	default:
		return nil
	}
}

// resolveImport implements §4.5 strategy 2: direct path match, relative
// rewrite, then scoped-package rewrite with extension/index fall-backs.
func (r *Resolver) resolveImport(ref types.DeferredReference) (types.ID, bool) {
	spec := ref.TargetName

	if id, ok := r.Index.filesByPath[spec]; ok {
		return id, true
	}

	if strings.HasPrefix(spec, ".") {
		dir := filepath.Dir(ref.FilePath)
		joined := filepath.Clean(filepath.Join(dir, spec))
		if id, ok := r.tryExtensions(joined); ok {
			return id, true
		}
		return "", false
	}

	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 2)
		scopePkg := parts[0]
		if len(parts) > 1 {
			scopePkg = parts[0] + "/" + strings.SplitN(parts[1], "/", 2)[0]
		}
		root, ok := r.Index.packageRoots[scopePkg]
		if !ok {
			return "", false
		}
		sub := ""
		if len(parts) > 1 {
			rest := strings.SplitN(parts[1], "/", 2)
			if len(rest) > 1 {
				sub = rest[1]
			}
		}
		target := filepath.Join(root, sub)
		if id, ok := r.tryExtensions(target); ok {
			return id, true
		}
		// bare package import: resolve to any file within that package root.
		for path, id := range r.Index.filesByPath {
			if strings.HasPrefix(path, root) {
				return id, true
			}
		}
	}

	return "", false
}

func (r *Resolver) tryExtensions(base string) (types.ID, bool) {
	for _, ext := range goIndexExtensions {
		if id, ok := r.Index.filesByPath[base+ext]; ok {
			return id, true
		}
	}
	for _, ext := range goIndexExtensions {
		if id, ok := r.Index.filesByPath[filepath.Join(base, "index"+ext)]; ok {
			return id, true
		}
	}
	return "", false
}
