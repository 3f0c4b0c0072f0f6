package embedder

import (
	"context"
	"sync"
)

// Handle is the embedder injected into the indexer and searcher. The
// underlying provider is replaced only through Rebind, which the server calls
// when credentials change. Callers never rebuild clients per request.
type Handle struct {
	mu      sync.RWMutex
	current Embedder
}

// NewHandle wraps e.
func NewHandle(e Embedder) *Handle {
	return &Handle{current: e}
}

// Rebind swaps in a new provider and closes the previous one.
func (h *Handle) Rebind(e Embedder) error {
	h.mu.Lock()
	old := h.current
	h.current = e
	h.mu.Unlock()

	if old != nil && old != e {
		return old.Close()
	}
	return nil
}

func (h *Handle) get() Embedder {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *Handle) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	e := h.get()
	if e == nil {
		return nil, ErrNoProviderEnabled
	}
	return e.GenerateEmbedding(ctx, req)
}

func (h *Handle) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	e := h.get()
	if e == nil {
		return nil, ErrNoProviderEnabled
	}
	return e.GenerateBatch(ctx, req)
}

func (h *Handle) Dimension() int {
	if e := h.get(); e != nil {
		return e.Dimension()
	}
	return 0
}

func (h *Handle) Provider() string {
	if e := h.get(); e != nil {
		return e.Provider()
	}
	return ""
}

func (h *Handle) Model() string {
	if e := h.get(); e != nil {
		return e.Model()
	}
	return ""
}

func (h *Handle) Close() error {
	h.mu.Lock()
	old := h.current
	h.current = nil
	h.mu.Unlock()
	if old != nil {
		return old.Close()
	}
	return nil
}
