// Package neo4jstore is the reference graphstore.Store adapter backed by
// github.com/neo4j/neo4j-go-driver/v5, mirroring the driver-wrapping and
// modern ExecuteQuery usage the example corpus uses against the same
// database (§6.5).
package neo4jstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/standardbeagle/graphindex/internal/debug"
	graphindexerrors "github.com/standardbeagle/graphindex/internal/errors"
	"github.com/standardbeagle/graphindex/internal/graphstore"
	"github.com/standardbeagle/graphindex/internal/types"
)

var log = debug.Component("neo4jstore")

// Store is a graphstore.Store backed by a live Neo4j connection.
type Store struct {
	driver        neo4j.DriverWithContext
	database      string
	queryTimeout  time.Duration
}

// coreLabels lists every label §4.2 mints a per-label lookup index for.
var coreLabels = []string{
	"File", "Class", "Interface", "Enum", "TypeAlias", "Function", "Method",
	"Property", "Constructor", "Parameter", "Variable", "Import", "Export", "Decorator",
}

// Open connects to uri, verifying connectivity up front (fail fast on
// startup, mirroring the teacher corpus's neo4j client constructor).
func Open(ctx context.Context, uri, user, password, database string, connectTimeout, queryTimeout time.Duration) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""), func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = connectTimeout
	})
	if err != nil {
		return nil, graphindexerrors.NewStoreError("connect", 0, fmt.Errorf("failed to create neo4j driver: %w", err))
	}

	verifyCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, graphindexerrors.NewStoreError("connect", 0, fmt.Errorf("failed to connect to neo4j at %s: %w", uri, err))
	}

	log.WithField("uri", uri).WithField("database", database).Info("neo4j store connected")
	return &Store{driver: driver, database: database, queryTimeout: queryTimeout}, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *Store) execute(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	qctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return neo4j.ExecuteQuery(qctx, s.driver, query, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
}

// EnsureIndexes implements createProjectIndexes (§4.8): per-label lookup
// indexes keyed on id, the normalized-hash index, and the two vector
// indexes (code-body embeddings and session notes), cosine similarity.
func (s *Store) EnsureIndexes(ctx context.Context, vectorDimension int) error {
	for _, label := range coreLabels {
		q := fmt.Sprintf("CREATE INDEX %s_id IF NOT EXISTS FOR (n:%s) ON (n.id)", label, label)
		if _, err := s.execute(ctx, q, nil); err != nil {
			return graphindexerrors.NewStoreError("createProjectIndexes", 0, err)
		}
	}

	if _, err := s.execute(ctx, "CREATE INDEX node_normalized_hash IF NOT EXISTS FOR (n:Function) ON (n.normalizedHash)", nil); err != nil {
		return graphindexerrors.NewStoreError("createProjectIndexes", 0, err)
	}

	if _, err := s.execute(ctx, "CREATE INDEX project_id IF NOT EXISTS FOR (p:Project) ON (p.id)", nil); err != nil {
		return graphindexerrors.NewStoreError("createProjectIndexes", 0, err)
	}

	vectorIndexQuery := `
CREATE VECTOR INDEX code_body_embedding IF NOT EXISTS
FOR (n:Embedded) ON (n.embedding)
OPTIONS {indexConfig: {
  ` + "`vector.dimensions`" + `: $dim,
  ` + "`vector.similarity_function`" + `: 'cosine'
}}`
	if _, err := s.execute(ctx, vectorIndexQuery, map[string]any{"dim": int64(vectorDimension)}); err != nil {
		return graphindexerrors.NewStoreError("createProjectIndexes", 0, err)
	}

	sessionNoteIndexQuery := `
CREATE VECTOR INDEX session_note_embedding IF NOT EXISTS
FOR (n:SessionNote) ON (n.embedding)
OPTIONS {indexConfig: {
  ` + "`vector.dimensions`" + `: $dim,
  ` + "`vector.similarity_function`" + `: 'cosine'
}}`
	if _, err := s.execute(ctx, sessionNoteIndexQuery, map[string]any{"dim": int64(vectorDimension)}); err != nil {
		return graphindexerrors.NewStoreError("createProjectIndexes", 0, err)
	}

	return nil
}

// ClearProject implements clearProject (§4.8): batched DETACH delete so a
// project with millions of nodes never blows a single transaction.
func (s *Store) ClearProject(ctx context.Context, projectID types.ProjectID) error {
	query := `
CALL apoc.periodic.iterate(
  'MATCH (n {projectId: $projectId}) RETURN n',
  'DETACH DELETE n',
  {batchSize: 1000, params: {projectId: $projectId}}
)`
	if _, err := s.execute(ctx, query, map[string]any{"projectId": string(projectID)}); err != nil {
		return graphindexerrors.NewStoreError("clearProject", 0, err)
	}
	return nil
}

// WriteNodes implements writeNodeBatch (§4.8): bulk MERGE by id, with the
// Embedded label applied only to nodes carrying a non-empty vector.
func (s *Store) WriteNodes(ctx context.Context, batch []graphstore.NodeWrite) error {
	rows := make([]map[string]any, 0, len(batch))
	for _, nw := range batch {
		n := nw.Node
		row := map[string]any{
			"id":             string(n.ID),
			"projectId":      string(n.ProjectID),
			"coreKind":       string(n.CoreKind),
			"semanticKind":   n.SemanticKind,
			"name":           n.Name,
			"labels":         append([]string{n.PrimaryLabel()}, n.Labels...),
			"filePath":       n.Location.FilePath,
			"startLine":      n.Location.StartLine,
			"endLine":        n.Location.EndLine,
			"body":           n.Body,
			"visibility":     string(n.Visibility),
			"isExported":     n.IsExported,
			"normalizedHash": n.NormalizedHash,
			"embedded":       len(nw.Embedding) > 0,
		}
		if len(nw.Embedding) > 0 {
			row["embedding"] = nw.Embedding
		}
		// File nodes additionally carry the persistent tracking fields the
		// Change Detector compares against on the next pass (§6.6).
		if mtime, ok := n.Context["mtime"].(int64); ok {
			row["mtime"] = mtime
		}
		if size, ok := n.Context["size"].(int64); ok {
			row["size"] = size
		}
		if hash, ok := n.Context["contentHash"].(string); ok {
			row["contentHash"] = hash
		}
		rows = append(rows, row)
	}

	query := `
UNWIND $rows AS row
MERGE (n {id: row.id})
SET n += row
WITH n, row WHERE row.embedded
SET n:Embedded`
	if _, err := s.execute(ctx, query, map[string]any{"rows": rows}); err != nil {
		return graphindexerrors.NewStoreError("writeNodeBatch", 0, err)
	}
	return nil
}

// WriteEdges implements writeEdgeBatch (§4.8): bulk edge creation that
// rejects endpoints outside projectID by matching both sides on id AND
// projectId in the same query, so a mismatch simply creates no relationship
// for that row rather than corrupting another project's graph.
func (s *Store) WriteEdges(ctx context.Context, projectID types.ProjectID, edges []types.Edge) error {
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]any{
			"id":         string(e.ID),
			"sourceId":   string(e.SourceID),
			"targetId":   string(e.TargetID),
			"kind":       string(e.CoreKind),
			"semantic":   e.SemanticKind,
			"confidence": e.Confidence,
			"weight":     e.RelationshipWeight,
			"filePath":   e.FilePath,
			"line":       e.Line,
		})
	}

	query := `
UNWIND $rows AS row
MATCH (src {id: row.sourceId, projectId: $projectId})
MATCH (tgt {id: row.targetId, projectId: $projectId})
MERGE (src)-[r:RELATES {id: row.id}]->(tgt)
SET r += row`
	if _, err := s.execute(ctx, query, map[string]any{"rows": rows, "projectId": string(projectID)}); err != nil {
		return graphindexerrors.NewStoreError("writeEdgeBatch", 0, err)
	}
	return nil
}

// SaveCrossUnitEdges implements §4.8 saveCrossUnitEdges.
func (s *Store) SaveCrossUnitEdges(ctx context.Context, projectID types.ProjectID, paths []string) ([]types.Edge, error) {
	query := `
MATCH (src {projectId: $projectId})-[r:RELATES]->(tgt {projectId: $projectId})
WHERE (src.filePath IN $paths) <> (tgt.filePath IN $paths)
RETURN r.id AS id, src.id AS sourceId, tgt.id AS targetId, r.kind AS kind,
       r.semantic AS semantic, r.confidence AS confidence, r.weight AS weight,
       r.filePath AS filePath, r.line AS line`
	result, err := s.execute(ctx, query, map[string]any{"projectId": string(projectID), "paths": paths})
	if err != nil {
		return nil, graphindexerrors.NewStoreError("saveCrossUnitEdges", 0, err)
	}

	edges := make([]types.Edge, 0, len(result.Records))
	for _, rec := range result.Records {
		edges = append(edges, edgeFromRecord(projectID, rec.AsMap()))
	}
	return edges, nil
}

// RecreateCrossUnitEdges implements §4.8 recreateCrossUnitEdges.
func (s *Store) RecreateCrossUnitEdges(ctx context.Context, projectID types.ProjectID, edges []types.Edge) error {
	return s.WriteEdges(ctx, projectID, edges)
}

// DeleteFileSubgraph implements the Incremental Engine's §4.10 step 2
// (DETACH delete every node owned by one file).
func (s *Store) DeleteFileSubgraph(ctx context.Context, projectID types.ProjectID, path string) error {
	query := `MATCH (n {projectId: $projectId, filePath: $path}) DETACH DELETE n`
	if _, err := s.execute(ctx, query, map[string]any{"projectId": string(projectID), "path": path}); err != nil {
		return graphindexerrors.NewStoreError("deleteFileSubgraph", 0, err)
	}
	return nil
}

// AllNodes implements the Incremental Engine's existing-symbol seed and
// DeclaredIndex rehydration (§4.10 step 3).
func (s *Store) AllNodes(ctx context.Context, projectID types.ProjectID) ([]types.Node, error) {
	query := `
MATCH (n {projectId: $projectId})
RETURN n.id AS id, n.coreKind AS coreKind, n.semanticKind AS semanticKind, n.name AS name,
       n.filePath AS filePath, n.startLine AS startLine, n.endLine AS endLine,
       n.visibility AS visibility, n.isExported AS isExported, n.normalizedHash AS normalizedHash`
	result, err := s.execute(ctx, query, map[string]any{"projectId": string(projectID)})
	if err != nil {
		return nil, graphindexerrors.NewStoreError("allNodes", 0, err)
	}

	nodes := make([]types.Node, 0, len(result.Records))
	for _, rec := range result.Records {
		nodes = append(nodes, nodeFromRecord(projectID, rec.AsMap()))
	}
	return nodes, nil
}

// ListSourceUnits implements the Change Detector's prior-state read (§4.9,
// §6.6): every File node's tracked (path, mtime, size, contentHash) tuple.
func (s *Store) ListSourceUnits(ctx context.Context, projectID types.ProjectID) ([]types.SourceUnit, error) {
	query := `
MATCH (n:File {projectId: $projectId})
RETURN n.filePath AS filePath, n.mtime AS mtime, n.size AS size, n.contentHash AS contentHash`
	result, err := s.execute(ctx, query, map[string]any{"projectId": string(projectID)})
	if err != nil {
		return nil, graphindexerrors.NewStoreError("listSourceUnits", 0, err)
	}

	units := make([]types.SourceUnit, 0, len(result.Records))
	for _, rec := range result.Records {
		m := rec.AsMap()
		u := types.SourceUnit{Language: "go"}
		if v, ok := m["filePath"].(string); ok {
			u.FilePath = v
		}
		if v, ok := m["mtime"].(int64); ok {
			u.ModTime = v
		}
		if v, ok := m["size"].(int64); ok {
			u.Size = v
		}
		if v, ok := m["contentHash"].(string); ok {
			u.ContentHash = v
		}
		units = append(units, u)
	}
	return units, nil
}

// WriteProject implements the Project lifecycle stamp (§3.4, §4.10 step 6):
// a MERGE by id so CreatedAt is minted once and every subsequent call only
// refreshes status, counts, and UpdatedAt.
func (s *Store) WriteProject(ctx context.Context, project types.Project) error {
	query := `
MERGE (p:Project {id: $id})
ON CREATE SET p.createdAt = $updatedAt
SET p.path = $path, p.name = $name, p.status = $status,
    p.nodeCount = $nodeCount, p.edgeCount = $edgeCount, p.updatedAt = $updatedAt`
	params := map[string]any{
		"id":        string(project.ID),
		"path":      project.Path,
		"name":      project.Name,
		"status":    string(project.Status),
		"nodeCount": int64(project.NodeCount),
		"edgeCount": int64(project.EdgeCount),
		"updatedAt": project.UpdatedAt,
	}
	if _, err := s.execute(ctx, query, params); err != nil {
		return graphindexerrors.NewStoreError("writeProject", 0, err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func nodeFromRecord(projectID types.ProjectID, m map[string]any) types.Node {
	n := types.Node{ProjectID: projectID}
	if v, ok := m["id"].(string); ok {
		n.ID = types.ID(v)
	}
	if v, ok := m["coreKind"].(string); ok {
		n.CoreKind = types.CoreKind(v)
	}
	if v, ok := m["semanticKind"].(string); ok {
		n.SemanticKind = v
	}
	if v, ok := m["name"].(string); ok {
		n.Name = v
	}
	if v, ok := m["filePath"].(string); ok {
		n.Location.FilePath = v
	}
	if v, ok := m["startLine"].(int64); ok {
		n.Location.StartLine = int(v)
	}
	if v, ok := m["endLine"].(int64); ok {
		n.Location.EndLine = int(v)
	}
	if v, ok := m["visibility"].(string); ok {
		n.Visibility = types.Visibility(v)
	}
	if v, ok := m["isExported"].(bool); ok {
		n.IsExported = v
	}
	if v, ok := m["normalizedHash"].(string); ok {
		n.NormalizedHash = v
	}
	return n
}

func edgeFromRecord(projectID types.ProjectID, m map[string]any) types.Edge {
	e := types.Edge{ProjectID: projectID}
	if v, ok := m["id"].(string); ok {
		e.ID = types.ID(v)
	}
	if v, ok := m["sourceId"].(string); ok {
		e.SourceID = types.ID(v)
	}
	if v, ok := m["targetId"].(string); ok {
		e.TargetID = types.ID(v)
	}
	if v, ok := m["kind"].(string); ok {
		e.CoreKind = types.EdgeKind(v)
	}
	if v, ok := m["semantic"].(string); ok {
		e.SemanticKind = v
	}
	if v, ok := m["confidence"].(float64); ok {
		e.Confidence = v
	}
	if v, ok := m["weight"].(float64); ok {
		e.RelationshipWeight = v
	}
	if v, ok := m["filePath"].(string); ok {
		e.FilePath = v
	}
	if v, ok := m["line"].(int64); ok {
		e.Line = int(v)
	}
	return e
}
