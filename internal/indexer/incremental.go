package indexer

import (
	"context"
	"errors"
	"sort"

	"github.com/dshills/vaultrag/internal/vault"
)

// HandleEvent queues a vault change. Creates and modifies are coalesced: each
// one restarts the debounce timer, and the queued notes are processed together
// once the timer fires. Deletes remove both records at once.
func (m *Maintainer) HandleEvent(ev vault.Event) {
	if vault.IsExcluded(ev.ID, m.cfg.ExcludedFolders) {
		return
	}

	if ev.Kind == vault.EventDeleted {
		m.mu.Lock()
		delete(m.pending, ev.ID)
		m.mu.Unlock()
		m.removeNote(m.ctx, ev.ID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[ev.ID] = struct{}{}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.clock.AfterFunc(m.cfg.Debounce, m.flush)
}

// Watch feeds events into HandleEvent until events closes or ctx is done.
func (m *Maintainer) Watch(ctx context.Context, events <-chan vault.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.logger.Debug("vault change", "id", ev.ID, "kind", ev.Kind)
			m.HandleEvent(ev)
		}
	}
}

func (m *Maintainer) removeNote(ctx context.Context, id string) {
	if err := m.embeddings.Delete(ctx, id); err != nil {
		m.logger.Warn("failed to remove embedding", "id", id, "op", "delete", "error", err)
	}
	if err := m.dates.DeleteNote(ctx, id); err != nil {
		m.logger.Warn("failed to remove date record", "id", id, "op", "delete", "error", err)
	}
}

// flush processes the queued notes. If another pass holds the lock the queue
// is left in place and flushed again when that pass ends.
func (m *Maintainer) flush() {
	m.mu.Lock()
	m.timer = nil
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return
	}
	if !m.lock.TryAcquire() {
		m.deferred = true
		m.mu.Unlock()
		m.logger.Debug("change batch deferred until running pass ends")
		return
	}
	batch := make([]string, 0, len(m.pending))
	for id := range m.pending {
		batch = append(batch, id)
	}
	m.pending = make(map[string]struct{})
	m.deferred = false
	m.mu.Unlock()

	sort.Strings(batch)
	_, err := m.run(m.ctx, ModeIncremental, func(ctx context.Context, stats *Stats) error {
		return m.incremental(ctx, batch, stats)
	})
	m.lock.Release()
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("incremental pass failed", "error", err)
	}

	m.flushDeferred()
}

// flushDeferred runs a change batch that arrived during the pass that just
// ended, unless a debounce timer is already pending for it.
func (m *Maintainer) flushDeferred() {
	m.mu.Lock()
	run := m.deferred && m.timer == nil && len(m.pending) > 0
	m.deferred = false
	m.mu.Unlock()
	if run && m.ctx.Err() == nil {
		m.flush()
	}
}

func (m *Maintainer) incremental(ctx context.Context, ids []string, stats *Stats) error {
	for _, id := range ids {
		stop, err := m.ctrl.checkpoint(ctx)
		if err != nil {
			return err
		}
		if stop {
			stats.Stopped = true
			m.requeue(ids, id)
			return nil
		}

		doc, err := m.docs.Stat(ctx, id)
		if errors.Is(err, vault.ErrNotFound) {
			m.removeNote(ctx, id)
			stats.Removed++
			continue
		}
		if err != nil {
			if m.fatal(id, "stat", err, stats) {
				return err
			}
			continue
		}

		if err := m.processDocument(ctx, doc, true, stats); err != nil {
			if m.fatal(id, "incremental", err, stats) {
				return err
			}
		}
	}
	return nil
}

// requeue puts ids from "from" onward back in the queue without arming the
// timer; the next change or bulk pass picks them up.
func (m *Maintainer) requeue(ids []string, from string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := sort.SearchStrings(ids, from); i < len(ids); i++ {
		m.pending[ids[i]] = struct{}{}
	}
}
