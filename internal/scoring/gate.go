package scoring

import "github.com/zulandar/workyard/internal/models"

// Field names a required work item attribute.
type Field string

const (
	FieldRole        Field = "role"
	FieldWorkEffort  Field = "work_effort"
	FieldCategory    Field = "category"
	FieldPhase       Field = "phase"
	FieldDirectHours Field = "direct_hours_per_week"
)

// MissingFields lists the required attributes item lacks, in a fixed order.
// Role, work effort and category are always required; phase is required
// unless the category is Governance. A negative direct-hours figure on a
// Governance item is also reported.
func MissingFields(item models.WorkItem) []Field {
	var missing []Field
	if !present(item.Role) {
		missing = append(missing, FieldRole)
	}
	if !present(item.WorkEffort) {
		missing = append(missing, FieldWorkEffort)
	}
	if !present(&item.Category) {
		missing = append(missing, FieldCategory)
	}
	if item.Category != Governance && !present(item.Phase) {
		missing = append(missing, FieldPhase)
	}
	if item.Category == Governance && item.DirectHoursPerWeek != nil && *item.DirectHoursPerWeek < 0 {
		missing = append(missing, FieldDirectHours)
	}
	return missing
}

// IsComplete reports whether item passes the completeness gate.
func IsComplete(item models.WorkItem) bool {
	return len(MissingFields(item)) == 0
}

// DataQuality is (total - missing) / total, or 1 when total is 0.
func DataQuality(total, missing int) float64 {
	if total <= 0 {
		return 1
	}
	return float64(total-missing) / float64(total)
}

// Warning is the first completeness problem found on an item.
type Warning string

const (
	NeedsBaseline Warning = "needs_baseline"
	MissingRole   Warning = "missing_role"
	MissingSize   Warning = "missing_size"
	MissingType   Warning = "missing_type"
	MissingPhase  Warning = "missing_phase"
	BadHours      Warning = "invalid_hours"
)

// Classify returns the item's first failing reason, or "" when complete.
// Items missing role, size and type together need baseline information.
func Classify(item models.WorkItem) Warning {
	missing := MissingFields(item)
	if len(missing) == 0 {
		return ""
	}
	has := make(map[Field]bool, len(missing))
	for _, f := range missing {
		has[f] = true
	}
	switch {
	case has[FieldRole] && has[FieldWorkEffort] && has[FieldCategory]:
		return NeedsBaseline
	case has[FieldRole]:
		return MissingRole
	case has[FieldWorkEffort]:
		return MissingSize
	case has[FieldCategory]:
		return MissingType
	case has[FieldPhase]:
		return MissingPhase
	}
	return BadHours
}

// Warnings counts incomplete items by their first failing reason.
type Warnings struct {
	NeedsBaseline int `json:"needs_baseline"`
	MissingRole   int `json:"missing_role"`
	MissingSize   int `json:"missing_size"`
	MissingType   int `json:"missing_type"`
	MissingPhase  int `json:"missing_phase"`
	InvalidHours  int `json:"invalid_hours"`
}

// Add counts item if it fails the gate.
func (w *Warnings) Add(item models.WorkItem) {
	switch Classify(item) {
	case NeedsBaseline:
		w.NeedsBaseline++
	case MissingRole:
		w.MissingRole++
	case MissingSize:
		w.MissingSize++
	case MissingType:
		w.MissingType++
	case MissingPhase:
		w.MissingPhase++
	case BadHours:
		w.InvalidHours++
	}
}

// Merge adds other's counts into w.
func (w *Warnings) Merge(other Warnings) {
	w.NeedsBaseline += other.NeedsBaseline
	w.MissingRole += other.MissingRole
	w.MissingSize += other.MissingSize
	w.MissingType += other.MissingType
	w.MissingPhase += other.MissingPhase
	w.InvalidHours += other.InvalidHours
}

// Total is the number of incomplete items counted.
func (w Warnings) Total() int {
	return w.NeedsBaseline + w.MissingRole + w.MissingSize + w.MissingType + w.MissingPhase + w.InvalidHours
}
