package enhancement

import (
	"github.com/standardbeagle/graphindex/internal/identity"
	"github.com/standardbeagle/graphindex/internal/types"
)

// ApplyEdgeEnhancements evaluates every EdgeEnhancement pairwise over the
// project-wide symbol set (§4.3, §4.6 step 2). O(n^2) in symbol count by
// design — this runs once, after all chunks and packages have parsed, over
// Lightweight Symbol Records rather than full AST nodes.
func ApplyEdgeEnhancements(projectID types.ProjectID, symbols []types.Symbol, stack *Stack, shared map[string]any) []types.Edge {
	var out []types.Edge
	enhancements := stack.EdgeEnhancements()
	if len(enhancements) == 0 {
		return nil
	}
	for _, src := range symbols {
		for _, tgt := range symbols {
			if src.ID == tgt.ID {
				continue
			}
			for _, ee := range enhancements {
				if !ee.Detect(src, tgt, symbols, shared) {
					continue
				}
				ctx := map[string]any{}
				if ee.Context != nil {
					ctx = ee.Context(src, tgt)
				}
				out = append(out, types.Edge{
					ID:                 identity.SemanticEdgeID(ee.Semantic, src.ID, tgt.ID),
					ProjectID:          projectID,
					CoreKind:           ee.EdgeKind,
					SemanticKind:       ee.Semantic,
					SourceID:           src.ID,
					TargetID:           tgt.ID,
					Origin:             types.OriginPattern,
					Confidence:         1.0,
					RelationshipWeight: ee.Weight,
					Context:            ctx,
				})
			}
		}
	}
	return out
}
