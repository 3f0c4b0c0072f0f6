package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned by Pause, Resume and Stop when the
// maintainer is not in a state that allows them.
var ErrInvalidTransition = errors.New("invalid indexing state transition")

// State is the maintainer's run state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Mode names the kind of pass that is running.
type Mode int

const (
	ModeNone Mode = iota
	ModeBulk
	ModeIncremental
)

func (m Mode) String() string {
	switch m {
	case ModeBulk:
		return "bulk"
	case ModeIncremental:
		return "incremental"
	default:
		return "none"
	}
}

// controller holds the run state. A pass moves it Idle -> Running through
// begin and back to Idle through finish; Pause, Resume and Stop are the only
// transitions callers outside the pass can make.
type controller struct {
	mu       sync.Mutex
	state    State
	mode     Mode
	stop     bool
	resumeCh chan struct{}
}

func (c *controller) begin(mode Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return fmt.Errorf("%w: begin %s while %s", ErrInvalidTransition, mode, c.state)
	}
	c.state = StateRunning
	c.mode = mode
	c.stop = false
	return nil
}

func (c *controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumeCh != nil {
		close(c.resumeCh)
		c.resumeCh = nil
	}
	c.state = StateIdle
	c.mode = ModeNone
	c.stop = false
}

func (c *controller) pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return fmt.Errorf("%w: pause while %s", ErrInvalidTransition, c.state)
	}
	c.state = StatePaused
	c.resumeCh = make(chan struct{})
	return nil
}

func (c *controller) resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return fmt.Errorf("%w: resume while %s", ErrInvalidTransition, c.state)
	}
	c.state = StateRunning
	close(c.resumeCh)
	c.resumeCh = nil
	return nil
}

// requestStop asks the running pass to leave its loop. A paused pass is woken
// so it can observe the request.
func (c *controller) requestStop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateRunning:
	case StatePaused:
		c.state = StateRunning
		close(c.resumeCh)
		c.resumeCh = nil
	default:
		return fmt.Errorf("%w: stop while %s", ErrInvalidTransition, c.state)
	}
	c.stop = true
	return nil
}

// checkpoint is called between documents. It blocks while paused and reports
// whether the pass should stop.
func (c *controller) checkpoint(ctx context.Context) (bool, error) {
	for {
		c.mu.Lock()
		if c.stop {
			c.mu.Unlock()
			return true, nil
		}
		if c.state != StatePaused {
			c.mu.Unlock()
			return false, ctx.Err()
		}
		ch := c.resumeCh
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (c *controller) snapshot() (State, Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.mode
}
