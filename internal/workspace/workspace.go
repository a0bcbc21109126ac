// Package workspace implements the Workspace Parser (§4.6): it detects the
// project's package layout, discovers source files per package honoring the
// shared exclude list, drives a parser.FileParser over each, then runs the
// Reference Resolver and Framework Edge Enhancements once over the merged
// project-wide result.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	"github.com/standardbeagle/graphindex/internal/debug"
	"github.com/standardbeagle/graphindex/internal/enhancement"
	"github.com/standardbeagle/graphindex/internal/identity"
	"github.com/standardbeagle/graphindex/internal/parser"
	"github.com/standardbeagle/graphindex/internal/resolver"
	"github.com/standardbeagle/graphindex/internal/schema"
	"github.com/standardbeagle/graphindex/internal/types"
)

var log = debug.Component("workspace")

// Package is one discovered package root with its member source files.
type Package struct {
	Root  string
	Files []string
}

// Layout is the detected workspace shape: one or more package roots sharing
// a single project root.
type Layout struct {
	ProjectRoot string
	Manifest    string // "go.work", "go.mod", "Cargo.toml", or "" if none found
	Packages    []Package
}

// DetectLayout walks down from root looking for a workspace manifest, then
// enumerates package roots. A bare go.mod with no go.work is itself a
// single-package workspace; a go.work file's `use` directives each name a
// package root (§6 "Monorepo/workspace manifest probing").
func DetectLayout(root string, excludes []string) (Layout, error) {
	layout := Layout{ProjectRoot: root}

	if data, err := os.ReadFile(filepath.Join(root, "go.work")); err == nil {
		wf, err := modfile.ParseWork("go.work", data, nil)
		if err == nil {
			layout.Manifest = "go.work"
			for _, u := range wf.Use {
				pkgRoot := filepath.Clean(filepath.Join(root, u.Path))
				layout.Packages = append(layout.Packages, Package{Root: pkgRoot})
			}
		}
	}

	if layout.Manifest == "" {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			layout.Manifest = "go.mod"
			layout.Packages = append(layout.Packages, Package{Root: root})
		}
	}

	if layout.Manifest == "" {
		if data, err := os.ReadFile(filepath.Join(root, "Cargo.toml")); err == nil {
			var cargo map[string]any
			if toml.Unmarshal(data, &cargo) == nil {
				layout.Manifest = "Cargo.toml"
				if ws, ok := cargo["workspace"].(map[string]any); ok {
					if members, ok := ws["members"].([]any); ok {
						for _, m := range members {
							if s, ok := m.(string); ok {
								matches, _ := doublestar.FilepathGlob(filepath.Join(root, s))
								for _, m := range matches {
									layout.Packages = append(layout.Packages, Package{Root: m})
								}
							}
						}
					}
				}
				if len(layout.Packages) == 0 {
					layout.Packages = append(layout.Packages, Package{Root: root})
				}
			}
		}
	}

	if layout.Manifest == "" {
		// No recognized manifest: treat the root itself as the sole package
		// (§4.6 applies even to a single, unmanifested tree).
		layout.Packages = append(layout.Packages, Package{Root: root})
	}

	for i := range layout.Packages {
		files, err := discoverGoFiles(layout.Packages[i].Root, excludes)
		if err != nil {
			return layout, err
		}
		layout.Packages[i].Files = files
	}

	return layout, nil
}

func discoverGoFiles(root string, excludes []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range excludes {
			if matched, _ := doublestar.Match(pattern, rel); matched {
				return nil
			}
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

// Result is the merged outcome of parsing every package in a Layout: the
// full node/edge set after resolver and edge-enhancement passes, plus
// resolver statistics for the Progress Reporter (§6.3).
type Result struct {
	Nodes          []types.Node
	Edges          []types.Edge
	Units          []types.SourceUnit
	ParseErrs      []error
	ResolverStats  resolver.Stats
}

// Parser drives the per-package File Parser and the final cross-package
// resolution/enhancement passes.
type Parser struct {
	ProjectID  types.ProjectID
	Schema     *schema.Schema
	Enhancers  *enhancement.Stack
}

// New builds a workspace Parser for projectRoot, deriving the deterministic
// project ID (§3.2) from its canonical absolute path.
func New(projectRoot string, sch *schema.Schema, enh *enhancement.Stack) (*Parser, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}
	return &Parser{ProjectID: identity.ProjectID(abs), Schema: sch, Enhancers: enh}, nil
}

// Parse runs §4.6 end to end over the given Layout.
func (wp *Parser) Parse(layout Layout) Result {
	var res Result
	idx := resolver.NewDeclaredIndex()
	var symbols []types.Symbol
	var deferred []types.DeferredReference

	for _, pkg := range layout.Packages {
		for _, path := range pkg.Files {
			rel, err := filepath.Rel(layout.ProjectRoot, path)
			if err != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			content, mtimeMs, size, err := parser.ReadFile(path)
			if err != nil {
				res.ParseErrs = append(res.ParseErrs, err)
				continue
			}

			fp := &parser.FileParser{ProjectID: wp.ProjectID, Schema: wp.Schema}
			if wp.Enhancers != nil {
				fp.Enhance = wp.Enhancers.Apply
			}
			fileResult := fp.Parse(rel, content, mtimeMs, size)

			fileResult.Unit.Package = pkg.Root
			res.Units = append(res.Units, fileResult.Unit)
			res.Nodes = append(res.Nodes, fileResult.Nodes...)
			res.Edges = append(res.Edges, fileResult.Edges...)
			res.ParseErrs = append(res.ParseErrs, fileResult.ParseErrs...)
			symbols = append(symbols, fileResult.Symbols...)
			deferred = append(deferred, fileResult.Deferred...)

			for _, n := range fileResult.Nodes {
				idx.AddNode(n)
			}
		}
	}

	log.WithField("project_id", wp.ProjectID).WithField("files", len(res.Units)).Debug("workspace parse complete, resolving references")

	r := resolver.New(idx)
	resolvedEdges, stats := r.Resolve(wp.ProjectID, deferred)
	res.Edges = append(res.Edges, resolvedEdges...)
	res.ResolverStats = stats

	if wp.Enhancers != nil {
		res.Edges = append(res.Edges, enhancement.ApplyEdgeEnhancements(wp.ProjectID, symbols, wp.Enhancers, nil)...)
	}

	return res
}
