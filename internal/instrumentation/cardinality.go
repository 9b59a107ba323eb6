package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// These functions reduce label values to a bounded, readable form.

// TypeLabel normalizes a declared type name for use as a metric label.
// Pointer markers, package paths and generic arguments are dropped so that
// "*github.com/acme/dice.Dice[int]" and "dice.Dice" share one series.
//
// Example:
//
//	TypeLabel("Dice")                            // "Dice"
//	TypeLabel("*dice.Dice")                      // "dice.Dice"
//	TypeLabel("github.com/acme/dice.Cup[int]")   // "dice.Cup"
//	TypeLabel("")                                // "unknown"
func TypeLabel(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, "*")

	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}

	if name == "" {
		return StatusUnknown
	}
	return name
}
