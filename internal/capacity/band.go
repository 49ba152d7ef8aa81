// Package capacity aggregates scored work items into per-person, per-manager
// and org-wide capacity snapshots.
package capacity

import "github.com/zulandar/workyard/internal/weights"

// Band is a named utilization tier.
type Band string

const (
	Available Band = "available"
	Near      Band = "near_capacity"
	At        Band = "at_capacity"
	Over      Band = "over_capacity"
)

// Classify maps a utilization fraction to a band, checking the most severe
// threshold first.
func Classify(utilization float64, th weights.Thresholds) Band {
	switch {
	case utilization >= th.Over:
		return Over
	case utilization >= th.At:
		return At
	case th.HasNear && utilization >= th.Near:
		return Near
	}
	return Available
}

// Severity orders bands from 0 (available) to 3 (over).
func (b Band) Severity() int {
	switch b {
	case Near:
		return 1
	case At:
		return 2
	case Over:
		return 3
	}
	return 0
}

// Label is the display name of the band.
func (b Band) Label() string {
	switch b {
	case Near:
		return "Near Capacity"
	case At:
		return "At Capacity"
	case Over:
		return "Over Capacity"
	}
	return "Available"
}
