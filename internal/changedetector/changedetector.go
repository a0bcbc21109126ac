// Package changedetector implements the Change Detector (§4.9): it walks
// the current file tree, canonicalizes paths, and classifies each file
// against the last-indexed (mtime, size, contentHash) tuples as reparse,
// delete, or skip.
package changedetector

import (
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/standardbeagle/graphindex/internal/debug"
	"github.com/standardbeagle/graphindex/internal/types"
)

var log = debug.Component("changedetector")

// Classification is the per-file verdict of one detection pass.
type Classification string

const (
	Reparse Classification = "reparse"
	Delete  Classification = "delete"
	Skip    Classification = "skip"
)

// Plan is the output of Detect: files grouped by classification.
type Plan struct {
	ToReparse []string
	ToDelete  []string
}

// Detector compares the current tree against previously indexed source
// units.
type Detector struct {
	ProjectRoot string
	Excludes    []string

	matcherOnce sync.Once
	matcher     gitignore.Matcher
}

// gitignoreMatcher lazily loads and caches the project's .gitignore chain
// (§4.9 "honors .gitignore semantics in addition to configured excludes").
// A root with no .gitignore files yields an empty, always-missing matcher.
func (d *Detector) gitignoreMatcher() gitignore.Matcher {
	d.matcherOnce.Do(func() {
		patterns, err := gitignore.ReadPatterns(osfs.New(d.ProjectRoot), nil)
		if err != nil {
			log.WithField("root", d.ProjectRoot).WithError(err).Debug("no gitignore patterns loaded")
		}
		d.matcher = gitignore.NewMatcher(patterns)
	})
	return d.matcher
}

// canonicalize resolves symlinks and rejects any result that escapes
// ProjectRoot (§4.9 "guards against symlink traversal"), mirroring the
// teacher's EvalSymlinks-based cycle guard generalized to a root-escape
// check.
func (d *Detector) canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		resolved = abs // fail-safe: keep walking rather than dropping the file (§4.9)
	}

	rootResolved, err := filepath.EvalSymlinks(d.ProjectRoot)
	if err != nil {
		rootResolved = d.ProjectRoot
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &escapeError{path: path}
	}
	return resolved, nil
}

type escapeError struct{ path string }

func (e *escapeError) Error() string {
	return "changedetector: path escapes project root: " + e.path
}

// walkCurrent enumerates every non-excluded .go file under ProjectRoot,
// canonicalized. I/O errors other than not-found mark the file as reparse
// (fail-safe, §4.9); symlink-escape is excluded outright, not reparsed.
func (d *Detector) walkCurrent() (map[string]bool, []error) {
	current := map[string]bool{}
	var ioErrs []error

	filepath.WalkDir(d.ProjectRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				ioErrs = append(ioErrs, err)
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}

		rel, relErr := filepath.Rel(d.ProjectRoot, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range d.Excludes {
			if matched, _ := doublestar.Match(pattern, rel); matched {
				return nil
			}
		}
		if d.gitignoreMatcher().Match(strings.Split(rel, "/"), false) {
			return nil
		}

		canonical, cErr := d.canonicalize(path)
		if cErr != nil {
			var esc *escapeError
			if errors.As(cErr, &esc) {
				log.WithField("path", path).Warn("rejecting path escaping project root")
				return nil
			}
			ioErrs = append(ioErrs, cErr)
			current[path] = true // fail-safe: treat as present, let hash comparison force reparse
			return nil
		}

		current[canonical] = true
		return nil
	})

	return current, ioErrs
}

// hashFile computes the content hash the way the parser does (§3.1, §6.6):
// xxhash's 64-bit sum, fast enough to run on every changed-size/mtime file
// during a watch burst.
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return ContentHash(data), nil
}

// ContentHash is shared with internal/parser so a file's stored
// ContentHash and the change detector's recomputed hash are always
// comparable (§3.1, §6.6).
func ContentHash(data []byte) string {
	sum := xxhash.Sum64(data)
	return hex.EncodeToString([]byte{
		byte(sum >> 56), byte(sum >> 48), byte(sum >> 40), byte(sum >> 32),
		byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum),
	})
}

// Detect classifies every current and every previously-indexed file
// (§4.9).
func (d *Detector) Detect(indexed []types.SourceUnit) Plan {
	current, _ := d.walkCurrent()

	indexedByPath := make(map[string]types.SourceUnit, len(indexed))
	for _, u := range indexed {
		indexedByPath[u.FilePath] = u
	}

	var plan Plan
	for path := range current {
		prior, wasIndexed := indexedByPath[path]
		if !wasIndexed {
			plan.ToReparse = append(plan.ToReparse, path)
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				plan.ToDelete = append(plan.ToDelete, path)
				continue
			}
			plan.ToReparse = append(plan.ToReparse, path) // fail-safe I/O error (§4.9)
			continue
		}

		mtimeMs := info.ModTime().UnixMilli()
		size := info.Size()
		if mtimeMs == prior.ModTime && size == prior.Size {
			continue // mtime+size match: skip the hash read (fast path)
		}

		hash, err := hashFile(path)
		if err != nil {
			plan.ToReparse = append(plan.ToReparse, path)
			continue
		}
		if hash != prior.ContentHash {
			plan.ToReparse = append(plan.ToReparse, path)
		}
		// else: mtime/size differ but content is identical (e.g. touch) — skip.
	}

	for path := range indexedByPath {
		if !current[path] {
			plan.ToDelete = append(plan.ToDelete, path)
		}
	}

	return plan
}
