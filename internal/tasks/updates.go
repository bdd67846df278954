package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	CheckCache Phase = iota
	ResolveIDs
	ResolveNames
	Export
	Done
)

func (p Phase) String() string {
	switch p {
	case CheckCache:
		return "check_cache"
	case ResolveIDs:
		return "resolve_ids"
	case ResolveNames:
		return "resolve_names"
	case Export:
		return "export"
	case Done:
		return "done"
	default:
		return ""
	}
}

func cacheUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckCache,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Checking local cache for %d ids...", total),
	}
}

func resolveIDsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveIDs,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Resolving %d ids through the bulk endpoint...", total),
	}
}

func resolveNamesUpdate(step, total int, name string) ProgressUpdate {
	if name == "" {
		return ProgressUpdate{
			Phase:   ResolveNames,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("Resolving %d display names...", total),
		}
	}
	return ProgressUpdate{
		Phase:   ResolveNames,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, name),
	}
}

func exportUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Export,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing export: %s", path),
	}
}

func doneUpdate(resolved, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Resolved %d/%d queries", resolved, total),
	}
}
