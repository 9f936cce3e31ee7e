// Package indexer drives bulk ingestion of records into a vector store.
//
// For each record the indexer generates an embedding from the description
// and upserts the record with it. Records are independent: a failed
// embedding call or a rejected write is logged with the record's identity
// and recorded in the report, and the rest of the batch continues. There is
// no batch-level transaction and no retry inside the pipeline.
//
// # Basic Usage
//
//	idx, err := indexer.New(store, emb, indexer.WithWorkers(4))
//	if err != nil {
//	    return err
//	}
//	defer idx.Release()
//
//	report, err := idx.Ingest(ctx, "hotels", records)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%d ok, %d failed\n", len(report.SucceededIDs), len(report.Failed))
//
// # Concurrency
//
// Records are processed on an ants worker pool. Only one Ingest call may
// run at a time per Indexer; a concurrent call returns
// ErrIngestionInProgress.
package indexer
