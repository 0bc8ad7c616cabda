package vram

import "fmt"

// Priority orders memory contention: a higher value wins. Eviction is
// strict: a resident entry is evictable only when its priority is strictly
// below the requester's, so equal-priority services never evict each other.
type Priority int

const (
	// PriorityBackground is for opportunistic work (prefetch, warmup).
	PriorityBackground Priority = 1
	// PriorityNormal is the default for routine service loads.
	PriorityNormal Priority = 5
	// PriorityUserRequested is for work a user is actively waiting on.
	PriorityUserRequested Priority = 8
	// PriorityUICritical is reserved for interactive UI work and is not
	// used for memory contention.
	PriorityUICritical Priority = 10
)

func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityNormal:
		return "normal"
	case PriorityUserRequested:
		return "user_requested"
	case PriorityUICritical:
		return "ui_critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority maps a config/API string to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "background":
		return PriorityBackground, nil
	case "normal", "":
		return PriorityNormal, nil
	case "user_requested":
		return PriorityUserRequested, nil
	case "ui_critical":
		return PriorityUICritical, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}
