package types

import (
	"slices"
	"time"
)

// IngestionReport partitions an ingestion batch by outcome
type IngestionReport struct {
	SucceededIDs []int64          `json:"succeeded_ids"`
	Failed       map[int64]string `json:"failed"`
	SkippedIDs   []int64          `json:"skipped_ids,omitempty"` // Not attempted, call was cancelled
	Duration     time.Duration    `json:"duration_ns"`
}

// NewIngestionReport returns an empty report
func NewIngestionReport() *IngestionReport {
	return &IngestionReport{
		SucceededIDs: make([]int64, 0),
		Failed:       make(map[int64]string),
	}
}

// Succeeded reports whether id was ingested
func (r *IngestionReport) Succeeded(id int64) bool {
	_, found := slices.BinarySearch(r.SucceededIDs, id)
	return found
}

// Total is the number of records the report accounts for
func (r *IngestionReport) Total() int {
	return len(r.SucceededIDs) + len(r.Failed) + len(r.SkippedIDs)
}

// Normalize sorts the id lists so the report reads as a set
func (r *IngestionReport) Normalize() {
	slices.Sort(r.SucceededIDs)
	r.SucceededIDs = slices.Compact(r.SucceededIDs)
	slices.Sort(r.SkippedIDs)
	r.SkippedIDs = slices.Compact(r.SkippedIDs)
}
