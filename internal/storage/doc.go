// Package storage persists embedded records and answers similarity and
// hybrid queries over them.
//
// Two VectorStore implementations are provided:
//   - SQLiteStore: an embedded database with an FTS5 index. Cosine
//     similarity runs in Go by default, or in SQL via sqlite-vec when built
//     with the sqlite_vec tag. Hybrid queries fuse a vector leg and a BM25
//     leg with Reciprocal Rank Fusion (k=60).
//   - QdrantStore: a Qdrant server reached over gRPC. Hybrid queries are
//     fused server-side.
//
// # Database Schema
//
// Tables:
//   - collections: name and fixed vector dimension
//   - records: caller ID, name, description and the embedding blob,
//     unique per collection
//   - records_fts: FTS5 index over description, kept in sync by
//     triggers
//
// Migrations are versioned with semver and applied when the database is
// first opened.
//
// # Basic Usage
//
//	store := storage.NewSQLiteStore("hotelsearch.db", 1536)
//	defer store.Close()
//
//	coll, err := store.EnsureCollection(ctx, "hotels")
//	if err != nil {
//	    return err
//	}
//	if err := coll.Upsert(ctx, &rec); err != nil {
//	    return err
//	}
//
//	for hit, err := range coll.VectorSearch(ctx, queryVec, storage.SearchOptions{Top: 5}) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(hit.Record.Name, *hit.Score)
//	}
//
// Search results are lazy: the query runs when the sequence is first
// ranged, and a sequence can be ranged only once.
package storage
