package storage

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dshills/hotelsearch/pkg/types"
)

// DefaultRRFConstant is the k in RRF(d) = Σ 1/(k + rank(d))
const DefaultRRFConstant = 60.0

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, db *sql.DB, collectionID int64, queryVector []float32, skip, top int) ([]Hit, error) {
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, collectionID, queryVector, skip, top)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, db, collectionID, queryVector, skip, top)
}

// searchVectorOptimized computes distances in SQL with the sqlite-vec extension
func searchVectorOptimized(ctx context.Context, db *sql.DB, collectionID int64, queryVector []float32, skip, top int) ([]Hit, error) {
	// vec_distance_cosine returns distance (lower is better)
	query := `
		SELECT
			record_id, name, description,
			1.0 - vec_distance_cosine(embedding, ?) AS similarity
		FROM records
		WHERE collection_id = ?
		ORDER BY similarity DESC, record_id
		LIMIT ? OFFSET ?
	`
	rows, err := db.QueryContext(ctx, query, serializeVector(queryVector), collectionID, top, skip)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", types.ErrConnectionFailure, err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]Hit, 0, min(top, MaxFusionWindow))
	for rows.Next() {
		var h Hit
		var score float64
		if err := rows.Scan(&h.Record.ID, &h.Record.Name, &h.Record.Description, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		h.Score = scorePtr(score)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// searchVectorFallback ranks every record of the collection in Go
func searchVectorFallback(ctx context.Context, db *sql.DB, collectionID int64, queryVector []float32, skip, top int) ([]Hit, error) {
	query := `
		SELECT record_id, name, description, embedding
		FROM records
		WHERE collection_id = ?
	`
	rows, err := db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query embeddings: %w", types.ErrConnectionFailure, err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]candidate, 0, 64)
	for rows.Next() {
		var c candidate
		var blob []byte
		if err := rows.Scan(&c.record.ID, &c.record.Name, &c.record.Description, &blob); err != nil {
			return nil, err
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}
		c.score = cosineSimilarity(queryVector, vector)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	hits := make([]Hit, len(candidates))
	for i, c := range candidates {
		hits[i] = Hit{Record: c.record, Score: scorePtr(c.score)}
	}
	return page(hits, skip, top), nil
}

// searchText performs BM25 full-text search using FTS5
func searchText(ctx context.Context, db *sql.DB, collectionID int64, match string, limit int) ([]Hit, error) {
	query := `
		SELECT r.record_id, r.name, r.description, bm25(records_fts) AS score
		FROM records_fts
		INNER JOIN records r ON records_fts.rowid = r.id
		WHERE records_fts MATCH ?
		AND r.collection_id = ?
		ORDER BY score, r.record_id
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, match, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute FTS search: %w", types.ErrConnectionFailure, err)
	}
	defer func() { _ = rows.Close() }()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var bm25 float64
		if err := rows.Scan(&h.Record.ID, &h.Record.Name, &h.Record.Description, &bm25); err != nil {
			return nil, err
		}
		// BM25 is negative with lower being better; map into (0, 1]
		h.Score = scorePtr(1.0 / (1.0 + math.Abs(bm25)/50.0))
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// buildFTSQuery turns keywords into an FTS5 OR expression. Each keyword is
// quoted as a phrase so FTS5 operators and punctuation are matched
// literally. Blank keywords are dropped.
func buildFTSQuery(keywords []string) string {
	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(kw, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

// fuseRRF merges ranked lists with Reciprocal Rank Fusion. The fused
// score replaces the per-leg scores.
func fuseRRF(k float64, lists ...[]Hit) []Hit {
	if k == 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[int64]float64)
	records := make(map[int64]types.Record)
	for _, list := range lists {
		for rank, h := range list {
			scores[h.Record.ID] += 1.0 / (k + float64(rank+1))
			if _, ok := records[h.Record.ID]; !ok {
				records[h.Record.ID] = h.Record
			}
		}
	}

	candidates := make([]candidate, 0, len(scores))
	for id, score := range scores {
		candidates = append(candidates, candidate{record: records[id], score: score})
	}
	sortCandidates(candidates)

	fused := make([]Hit, len(candidates))
	for i, c := range candidates {
		fused[i] = Hit{Record: c.record, Score: scorePtr(c.score)}
	}
	return fused
}

// page returns hits[skip : skip+top], clamped
func page(hits []Hit, skip, top int) []Hit {
	if skip >= len(hits) {
		return nil
	}
	hits = hits[skip:]
	if top < len(hits) {
		hits = hits[:top]
	}
	return hits
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate is a record with its score
type candidate struct {
	record types.Record
	score  float64
}

// sortCandidates sorts by score descending, ties by ascending record ID
func sortCandidates(candidates []candidate) {
	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.record.ID, b.record.ID)
	})
}
