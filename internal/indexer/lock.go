package indexer

import "sync/atomic"

// IndexLock is the "indexing in progress" flag shared by bulk and incremental
// passes. Acquisition never blocks: a caller that loses either drops or
// defers its work.
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free and reports whether it did.
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.held.Store(false)
}

// Held reports whether a pass currently owns the lock.
func (l *IndexLock) Held() bool {
	return l.held.Load()
}
