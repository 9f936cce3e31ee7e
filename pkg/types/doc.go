// Package types provides shared type definitions for the hotelsearch service.
//
// This package defines the domain types that flow between the embedder, the
// vector store adapters, the indexer, and the searcher, together with the
// error kinds every component reports.
//
// # Core Types
//
// Record is a searchable document. Its Embedding is derived from Description
// at ingestion time and is nil until ingestion succeeds:
//
//	rec := types.Record{
//	    ID:          1,
//	    Name:        "Grand Palace Hotel",
//	    Description: "A luxury hotel downtown with a rooftop pool.",
//	}
//
// SearchResult is one ranked hit returned to callers. Score is always present;
// a store that returns no score yields 0.
//
// IngestionReport partitions an ingestion batch into succeeded, failed, and
// skipped (not attempted because the call was cancelled) record ids.
//
// # Error Kinds
//
// Components wrap one of the sentinel kinds so callers can branch with
// errors.Is regardless of which adapter produced the failure:
//
//	if errors.Is(err, types.ErrConfigurationMissing) {
//	    // not configured
//	} else if errors.Is(err, types.ErrConnectionFailure) {
//	    // configured but down, safe to retry with backoff
//	}
package types
