package types

import "fmt"

// DefaultDimension is the embedding dimension used when none is configured
const DefaultDimension = 1536

// Record is a searchable document keyed by ID
type Record struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`               // Indexed, equality-filterable
	Description string    `json:"description" yaml:"description"` // Full-text indexed
	Embedding   []float32 `json:"embedding,omitempty" yaml:"-"`   // Derived from Description
}

// Validate checks the fields a record must carry before it is embedded
func (r *Record) Validate() error {
	if r.ID < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrNegativeID)
	}
	return nil
}

// ValidateEmbedding checks that the record carries an embedding of the given dimension
func (r *Record) ValidateEmbedding(dimension int) error {
	if r.Embedding == nil {
		return ErrMissingEmbedding
	}
	if len(r.Embedding) != dimension {
		return fmt.Errorf("embedding dimension %d does not match collection dimension %d", len(r.Embedding), dimension)
	}
	return nil
}
