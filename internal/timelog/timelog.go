// Package timelog records weekly hours per person and work item.
package timelog

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/db"
	"github.com/zulandar/workyard/internal/models"
)

// WeekLayout formats week_start_date values.
const WeekLayout = "2006-01-02"

// MaxHoursPerWeek is the number of hours in a week.
const MaxHoursPerWeek = 168

// WeekStart returns midnight UTC on the Monday of t's ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekKey is the week_start_date value for the week containing t.
func WeekKey(t time.Time) string {
	return WeekStart(t).Format(WeekLayout)
}

// ParseWeek accepts any date and normalizes it to its week key.
func ParseWeek(s string) (string, error) {
	t, err := time.Parse(WeekLayout, s)
	if err != nil {
		return "", apperr.Validation("timelog.ParseWeek", "week %q is not a YYYY-MM-DD date", s)
	}
	return WeekKey(t), nil
}

// Entry is one logTime request.
type Entry struct {
	WorkItemID string
	PersonID   string
	Week       time.Time
	Hours      float64
	Note       string
}

// Log records hours for the entry's week. A second log for the same item,
// person and week replaces the hours and note in place.
func Log(ctx context.Context, gdb *gorm.DB, e Entry) (*models.TimeLog, error) {
	const op = "timelog.Log"
	if math.IsNaN(e.Hours) || e.Hours < 0 || e.Hours > MaxHoursPerWeek {
		return nil, apperr.Validation(op, "hours %v must be between 0 and %d", e.Hours, MaxHoursPerWeek)
	}
	tx := gdb.WithContext(ctx)

	var item models.WorkItem
	if err := tx.Select("id", "work_effort").Where("id = ?", e.WorkItemID).First(&item).Error; err != nil {
		return nil, lookupErr(op, "work item", e.WorkItemID, err)
	}
	var p models.Person
	if err := tx.Select("id").Where("id = ?", e.PersonID).First(&p).Error; err != nil {
		return nil, lookupErr(op, "person", e.PersonID, err)
	}

	now := time.Now().UTC()
	row := &models.TimeLog{
		ID:            uuid.NewString(),
		WorkItemID:    e.WorkItemID,
		PersonID:      e.PersonID,
		WeekStartDate: WeekKey(e.Week),
		HoursSpent:    e.Hours,
		Note:          e.Note,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if item.WorkEffort != nil {
		row.EffortSize = *item.WorkEffort
	}
	err := db.UpsertByKey(tx, row,
		[]string{"work_item_id", "person_id", "week_start_date"},
		[]string{"hours_spent", "note", "effort_size", "updated_at"})
	if err != nil {
		return nil, apperr.Store(op, err)
	}

	var stored models.TimeLog
	err = tx.Where("work_item_id = ? AND person_id = ? AND week_start_date = ?",
		row.WorkItemID, row.PersonID, row.WeekStartDate).First(&stored).Error
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	return &stored, nil
}

// ListForPerson returns a person's logs, newest week first. A zero since
// returns every week.
func ListForPerson(ctx context.Context, gdb *gorm.DB, personID string, since time.Time) ([]models.TimeLog, error) {
	q := gdb.WithContext(ctx).Where("person_id = ?", personID)
	if !since.IsZero() {
		q = q.Where("week_start_date >= ?", WeekKey(since))
	}
	var logs []models.TimeLog
	if err := q.Order("week_start_date DESC").Order("work_item_id").Find(&logs).Error; err != nil {
		return nil, apperr.Store("timelog.ListForPerson", err)
	}
	return logs, nil
}

// WeekTotal sums a person's hours for one week.
func WeekTotal(logs []models.TimeLog, week string) float64 {
	var total float64
	for _, l := range logs {
		if l.WeekStartDate == week {
			total += l.HoursSpent
		}
	}
	return total
}

// Direction of a week-over-week change.
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Stable Direction = "stable"
)

// Trend compares two weekly totals. Changes within 20% of previous are
// stable; any hours after a zero week are up.
func Trend(current, previous float64) Direction {
	if previous == 0 {
		if current > 0 {
			return Up
		}
		return Stable
	}
	switch ratio := current / previous; {
	case ratio > 1.2:
		return Up
	case ratio < 0.8:
		return Down
	}
	return Stable
}

func lookupErr(op, entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(op, entity, id)
	}
	return apperr.Store(op, err)
}
