package indexer

import (
	"log/slog"
	"sync"
)

// Notifier surfaces short user-visible notices, such as a rejected API key.
type Notifier interface {
	Notify(message string)
}

// LogNotifier logs notices at WARN and remembers the most recent one.
type LogNotifier struct {
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(message string) {
	n.mu.Lock()
	n.last = message
	n.mu.Unlock()
	n.logger.Warn("indexing notice", "message", message)
}

// Last returns the latest notice, or "" if none was raised.
func (n *LogNotifier) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
