// Package scoring turns a work item into a planned hours-per-week figure and
// decides whether the item carries enough data to be scored.
package scoring

import (
	"strings"

	"github.com/zulandar/workyard/internal/models"
	"github.com/zulandar/workyard/internal/weights"
)

// Governance is the category whose hours are tracked directly instead of
// estimated from size.
const Governance = "Governance"

// NoPhase is the phase weight key used when an item has no phase.
const NoPhase = "N/A"

// Breakdown shows the factors behind a formula score.
type Breakdown struct {
	Direct      bool    `json:"direct"`
	BaseHours   float64 `json:"base_hours"`
	RoleWeight  float64 `json:"role_weight"`
	TypeWeight  float64 `json:"type_weight"`
	PhaseWeight float64 `json:"phase_weight"`
	Hours       float64 `json:"hours"`
}

// Score returns the planned weekly hours for item under snap.
func Score(item models.WorkItem, snap *weights.Snapshot) float64 {
	return Explain(item, snap).Hours
}

// Explain is Score with its factors. Governance items return their raw
// direct hours. Other items multiply base hours for the effort size by the
// role, type and phase weights; a missing multiplier is 1 and a missing
// base is 0.
func Explain(item models.WorkItem, snap *weights.Snapshot) Breakdown {
	if item.Category == Governance {
		var h float64
		if item.DirectHoursPerWeek != nil {
			h = *item.DirectHoursPerWeek
		}
		return Breakdown{Direct: true, Hours: h}
	}

	phase := NoPhase
	if present(item.Phase) {
		phase = *item.Phase
	}
	b := Breakdown{
		BaseHours:   lookup(snap, weights.EffortSize, deref(item.WorkEffort), 0),
		RoleWeight:  lookup(snap, weights.RoleWeight, deref(item.Role), 1),
		TypeWeight:  lookup(snap, weights.WorkTypeWeight, item.Category, 1),
		PhaseWeight: lookup(snap, weights.PhaseWeight, phase, 1),
	}
	b.Hours = b.BaseHours * b.RoleWeight * b.TypeWeight * b.PhaseWeight
	return b
}

func lookup(snap *weights.Snapshot, configType, key string, fallback float64) float64 {
	if key == "" {
		return fallback
	}
	if v, ok := snap.Value(configType, key); ok {
		return v
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// present treats nil, blank and "Unknown" as missing.
func present(s *string) bool {
	if s == nil {
		return false
	}
	v := strings.TrimSpace(*s)
	return v != "" && !strings.EqualFold(v, "unknown")
}
