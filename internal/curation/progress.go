package curation

import (
	"fmt"

	"github.com/desertthunder/cull/internal/models"
)

// ProgressUpdate represents a progress event during finalization.
//
// Used to send real-time updates to the UI while removals are committed.
type ProgressUpdate struct {
	Phase   Phase  // Finalization phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Phase identifies a finalization step.
type Phase int

const (
	PhaseDrain Phase = iota
	PhaseCommit
	PhasePersist
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseDrain:
		return "drain"
	case PhaseCommit:
		return "commit"
	case PhasePersist:
		return "persist"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// sendProgress sends without blocking; updates are dropped when nobody is listening.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func drainUpdate(n int) ProgressUpdate {
	return ProgressUpdate{Phase: PhaseDrain, Step: 1, Total: 1, Message: fmt.Sprintf("Collected %d removals", n)}
}

func commitUpdate(step, total int, r models.Removal) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseCommit,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Removing %s - %s", r.Name, r.Artist),
	}
}

func persistUpdate(step, total int, what string) ProgressUpdate {
	return ProgressUpdate{Phase: PhasePersist, Step: step, Total: total, Message: fmt.Sprintf("Saving %s...", what)}
}

func doneUpdate(r *Report) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseDone,
		Step:    1,
		Total:   1,
		Message: r.Summary(),
	}
}
