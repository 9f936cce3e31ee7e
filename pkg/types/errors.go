package types

import "errors"

// Error kinds shared by every component
var (
	// ErrConfigurationMissing means a required connection parameter (host, credential, path) is absent
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrConnectionFailure means the backend is configured but could not be reached
	ErrConnectionFailure = errors.New("connection failure")
	// ErrGenerationFailure means the embedding model call failed
	ErrGenerationFailure = errors.New("embedding generation failed")
	// ErrStoreWriteFailure means the vector store rejected an upsert
	ErrStoreWriteFailure = errors.New("store write failed")
	// ErrInvalidArgument means a caller supplied an unusable argument
	ErrInvalidArgument = errors.New("invalid argument")
)

// Domain errors for record validation
var (
	ErrNegativeID       = errors.New("record id must be >= 0")
	ErrMissingEmbedding = errors.New("record has no embedding")
)

// Kind returns the error kind err wraps, or nil if it wraps none of them.
func Kind(err error) error {
	for _, kind := range []error{
		ErrInvalidArgument,
		ErrConfigurationMissing,
		ErrConnectionFailure,
		ErrGenerationFailure,
		ErrStoreWriteFailure,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
