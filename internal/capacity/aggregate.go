package capacity

import (
	"fmt"
	"strings"

	"github.com/zulandar/workyard/internal/models"
	"github.com/zulandar/workyard/internal/scoring"
	"github.com/zulandar/workyard/internal/weights"
)

// DefaultAvailableHours is the weekly baseline when neither the person nor
// the options set one.
const DefaultAvailableHours = 40

// DefaultActiveStatuses count toward capacity when Options leaves them unset.
var DefaultActiveStatuses = []string{"Not Started", "Planning", "In Progress", "Active", "Scaling"}

// Options tunes aggregation.
type Options struct {
	AvailableHours float64
	ActiveStatuses []string
}

func (o Options) available(p models.Person) float64 {
	if p.AvailableHours > 0 {
		return p.AvailableHours
	}
	if o.AvailableHours > 0 {
		return o.AvailableHours
	}
	return DefaultAvailableHours
}

func (o Options) isActive(status string) bool {
	statuses := o.ActiveStatuses
	if len(statuses) == 0 {
		statuses = DefaultActiveStatuses
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Snapshot is a derived capacity figure for one person or a group.
type Snapshot struct {
	PersonID              string           `json:"person_id,omitempty"`
	Name                  string           `json:"name"`
	People                int              `json:"people"`
	TotalAssignments      int              `json:"total_assignments"`
	ActiveAssignments     int              `json:"active_assignments"`
	ScoredAssignments     int              `json:"scored_assignments"`
	IncompleteAssignments int              `json:"incomplete_assignments"`
	PlannedHours          float64          `json:"planned_hours"`
	ActualHours           float64          `json:"actual_hours"`
	AvailableHours        float64          `json:"available_hours"`
	Utilization           float64          `json:"utilization"`
	Band                  Band             `json:"band"`
	DataQuality           float64          `json:"data_quality"`
	Warnings              scoring.Warnings `json:"warnings"`
	WeightsVersion        uint64           `json:"weights_version"`
}

// Aggregate computes a person's snapshot. Only active items count. Items
// failing the completeness gate add nothing to planned hours but lower the
// data quality. Actual hours take the most recently updated log of each
// active item, not a sum across weeks.
func Aggregate(person models.Person, items []models.WorkItem, snap *weights.Snapshot, logs []models.TimeLog, opts Options) Snapshot {
	out := Snapshot{
		PersonID:         person.ID,
		Name:             person.Name,
		People:           1,
		TotalAssignments: len(items),
		AvailableHours:   opts.available(person),
	}
	if snap != nil {
		out.WeightsVersion = snap.Version
	}

	latest := latestByItem(logs)
	for _, item := range items {
		if !opts.isActive(item.Status) {
			continue
		}
		out.ActiveAssignments++
		if l, ok := latest[item.ID]; ok {
			out.ActualHours += l.HoursSpent
		}
		if !scoring.IsComplete(item) {
			out.IncompleteAssignments++
			out.Warnings.Add(item)
			continue
		}
		out.ScoredAssignments++
		out.PlannedHours += scoring.Score(item, snap)
	}

	out.finish(snap.Thresholds())
	return out
}

// Rollup sums member snapshots and reclassifies the group against the
// combined available hours.
func Rollup(name string, members []Snapshot, th weights.Thresholds) Snapshot {
	out := Snapshot{Name: name}
	for _, m := range members {
		out.People += m.People
		out.TotalAssignments += m.TotalAssignments
		out.ActiveAssignments += m.ActiveAssignments
		out.ScoredAssignments += m.ScoredAssignments
		out.IncompleteAssignments += m.IncompleteAssignments
		out.PlannedHours += m.PlannedHours
		out.ActualHours += m.ActualHours
		out.AvailableHours += m.AvailableHours
		out.Warnings.Merge(m.Warnings)
		if m.WeightsVersion > out.WeightsVersion {
			out.WeightsVersion = m.WeightsVersion
		}
	}
	out.finish(th)
	return out
}

func (s *Snapshot) finish(th weights.Thresholds) {
	if s.AvailableHours > 0 {
		s.Utilization = s.PlannedHours / s.AvailableHours
	}
	s.Band = Classify(s.Utilization, th)
	s.DataQuality = scoring.DataQuality(s.ActiveAssignments, s.IncompleteAssignments)
}

// latestByItem keeps the most recently updated log for each work item. Ties
// go to the later week.
func latestByItem(logs []models.TimeLog) map[string]models.TimeLog {
	out := make(map[string]models.TimeLog, len(logs))
	for _, l := range logs {
		cur, ok := out[l.WorkItemID]
		if !ok || l.UpdatedAt.After(cur.UpdatedAt) ||
			(l.UpdatedAt.Equal(cur.UpdatedAt) && l.WeekStartDate > cur.WeekStartDate) {
			out[l.WorkItemID] = l
		}
	}
	return out
}

// FormatStatus renders the band with any data-quality warnings, e.g.
// "2 Need Baseline Info, 1 Missing Phase - Near Capacity".
func FormatStatus(s Snapshot) string {
	var parts []string
	w := s.Warnings
	for _, c := range []struct {
		n     int
		label string
	}{
		{w.NeedsBaseline, "Need Baseline Info"},
		{w.MissingRole, "Missing Role"},
		{w.MissingSize, "Missing Size"},
		{w.MissingType, "Missing Work Type"},
		{w.MissingPhase, "Missing Phase"},
		{w.InvalidHours, "Invalid Hours"},
	} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.label))
		}
	}
	if len(parts) == 0 {
		return s.Band.Label()
	}
	return strings.Join(parts, ", ") + " - " + s.Band.Label()
}
