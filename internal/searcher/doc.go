// Package searcher answers natural-language hotel queries.
//
// Two modes are provided:
//   - Vector: rank records by similarity between the query embedding and
//     each record's description embedding
//   - Hybrid: additionally match comma-separated keywords against the
//     full-text index; the store fuses both rankings
//
// # Basic Usage
//
//	s, err := searcher.NewSearcher(store, emb, "hotels")
//	if err != nil {
//	    return err
//	}
//
//	results, err := s.HybridSearch(ctx, "quiet place near the sea", "pool, spa", 0, 5)
//	for _, r := range results {
//	    fmt.Printf("[%d] %s (score: %.3f)\n", r.ID, r.Name, r.Score)
//	}
//
// # Ordering and Scores
//
// Results are returned in the order the store ranks them and are never
// re-sorted. A hit without a score is reported with score 0.
//
// # Errors
//
// A negative top is types.ErrInvalidArgument. Embedding failures
// (types.ErrGenerationFailure) and collection failures
// (types.ErrConfigurationMissing, types.ErrConnectionFailure) are returned
// unchanged in kind.
package searcher
