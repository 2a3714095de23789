package curation

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cull/internal/shared"
)

// FinalizeGuard runs its action at most once, however many times and from however
// many goroutines [FinalizeGuard.Trigger] is called.
//
// Callers that arrive while the action is running block until it returns.
// Errors and panics from the action are logged and never escape Trigger.
type FinalizeGuard struct {
	mu     sync.Mutex
	done   bool
	fired  atomic.Bool
	action func() error
	logger *log.Logger
}

// NewFinalizeGuard wraps action. A nil logger discards output.
func NewFinalizeGuard(action func() error, logger *log.Logger) *FinalizeGuard {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &FinalizeGuard{action: action, logger: logger}
}

// Trigger runs the action if no earlier call has.
func (g *FinalizeGuard) Trigger() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return
	}
	g.done = true
	g.fired.Store(true)

	if err := g.run(); err != nil {
		g.logger.Error("finalize failed", "error", err)
	}
}

// Fired reports whether the action has started. It does not wait for the action to finish.
func (g *FinalizeGuard) Fired() bool {
	return g.fired.Load()
}

func (g *FinalizeGuard) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("finalize panicked: %v", r)
		}
	}()

	if g.action == nil {
		return nil
	}
	return g.action()
}
