// Package identity is the sole minter of node and edge IDs (§4.1). No other
// package constructs a types.ID directly — collisions here are treated as
// fatal invariant violations, never silently resolved.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/standardbeagle/graphindex/internal/types"
)

const idHexLen = 16

func sum16(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte("::"))
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:idHexLen]
}

// ProjectID derives the 12-hex-character content-derived project identifier
// (§3.1) from the canonical absolute path.
func ProjectID(canonicalAbsPath string) types.ProjectID {
	sum := sha256.Sum256([]byte(canonicalAbsPath))
	return types.ProjectID("proj_" + hex.EncodeToString(sum[:])[:12])
}

// NodeID mints a deterministic node ID: SHA-256 of
// projectId :: coreKind :: filePath :: [parentId ::] name, truncated to 16
// hex chars and prefixed "projectId:coreKind:" (§3.2, §4.1).
func NodeID(projectID types.ProjectID, kind types.CoreKind, filePath, name string, parentID types.ID) types.ID {
	parts := []string{string(projectID), string(kind), filePath}
	if parentID != "" {
		parts = append(parts, string(parentID))
	}
	parts = append(parts, name)
	return types.ID(fmt.Sprintf("%s:%s:%s", projectID, kind, sum16(parts...)))
}

// CoreEdgeID mints a deterministic edge ID for non-call edges: SHA-256 of
// edgeKind :: sourceId :: targetId (§3.2, §4.1).
func CoreEdgeID(kind types.EdgeKind, source, target types.ID) types.ID {
	return types.ID(sum16(string(kind), string(source), string(target)))
}

// CallEdgeID mints a deterministic ID for a calls edge. The call site line
// participates so multiple call sites between the same pair of nodes each
// get a distinct edge (§4.1).
func CallEdgeID(source, target types.ID, line int) types.ID {
	return types.ID(sum16(string(types.EdgeCalls), string(source), string(target), strconv.Itoa(line)))
}

// SemanticEdgeID mints a deterministic ID for a framework-synthesized
// semantic edge (§4.1, §4.3).
func SemanticEdgeID(semanticKind string, source, target types.ID) types.ID {
	return types.ID(sum16("semantic:"+semanticKind, string(source), string(target)))
}

// ParseNodeID splits a node ID back into its projectId and coreKind prefix
// components. Used by invariant checks and tests; the trailing hex digest is
// opaque by design.
func ParseNodeID(id types.ID) (projectID types.ProjectID, kind types.CoreKind, ok bool) {
	parts := strings.SplitN(string(id), ":", 3)
	if len(parts) != 3 {
		return "", "", false
	}
	return types.ProjectID(parts[0]), types.CoreKind(parts[1]), true
}
