package indexer

import (
	"sync"
	"sync/atomic"
)

// IngestLock admits one ingestion at a time. A second caller is turned away
// instead of waiting.
type IngestLock struct {
	mu   sync.Mutex
	held atomic.Bool
}

// TryAcquire takes the lock if it is free
func (l *IngestLock) TryAcquire() bool {
	if !l.mu.TryLock() {
		return false
	}
	l.held.Store(true)
	return true
}

// Release frees a lock obtained from TryAcquire
func (l *IngestLock) Release() {
	l.held.Store(false)
	l.mu.Unlock()
}

// Held reports whether an ingestion is running
func (l *IngestLock) Held() bool {
	return l.held.Load()
}
