package timelog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/db"
	"github.com/zulandar/workyard/internal/models"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026-03-09", "2026-03-09"}, // Monday
		{"2026-03-11", "2026-03-09"},
		{"2026-03-15", "2026-03-09"}, // Sunday
		{"2026-03-16", "2026-03-16"},
		{"2026-01-01", "2025-12-29"}, // across a year boundary
	}
	for _, tt := range tests {
		d, err := time.Parse(WeekLayout, tt.in)
		require.NoError(t, err)
		if got := WeekKey(d); got != tt.want {
			t.Errorf("WeekKey(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseWeek(t *testing.T) {
	got, err := ParseWeek("2026-03-12")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", got)

	_, err = ParseWeek("last week")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestTrend(t *testing.T) {
	tests := []struct {
		cur, prev float64
		want      Direction
	}{
		{10, 10, Stable},
		{12, 10, Stable},
		{12.1, 10, Up},
		{8, 10, Stable},
		{7.9, 10, Down},
		{5, 0, Up},
		{0, 0, Stable},
	}
	for _, tt := range tests {
		if got := Trend(tt.cur, tt.prev); got != tt.want {
			t.Errorf("Trend(%v, %v) = %s, want %s", tt.cur, tt.prev, got, tt.want)
		}
	}
}

func setup(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	size := "M"
	require.NoError(t, gdb.Create(&models.Person{ID: "p1", Name: "Ada"}).Error)
	require.NoError(t, gdb.Create(&models.WorkItem{ID: "i1", OwnerID: "p1", Name: "Ledger", WorkEffort: &size}).Error)
	return gdb
}

func TestLog_UpsertsPerWeek(t *testing.T) {
	gdb := setup(t)
	ctx := context.Background()
	mon := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	first, err := Log(ctx, gdb, Entry{WorkItemID: "i1", PersonID: "p1", Week: mon, Hours: 6, Note: "kickoff"})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", first.WeekStartDate)
	assert.Equal(t, "M", first.EffortSize)

	second, err := Log(ctx, gdb, Entry{WorkItemID: "i1", PersonID: "p1", Week: mon.AddDate(0, 0, 3), Hours: 9, Note: "revised"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same week updates in place")
	assert.Equal(t, 9.0, second.HoursSpent)
	assert.Equal(t, "revised", second.Note)

	_, err = Log(ctx, gdb, Entry{WorkItemID: "i1", PersonID: "p1", Week: mon.AddDate(0, 0, 7), Hours: 3})
	require.NoError(t, err)

	logs, err := ListForPerson(ctx, gdb, "p1", time.Time{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "2026-03-16", logs[0].WeekStartDate)
	assert.Equal(t, 9.0, WeekTotal(logs, "2026-03-09"))

	recent, err := ListForPerson(ctx, gdb, "p1", mon.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestLog_Validation(t *testing.T) {
	gdb := setup(t)
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name string
		e    Entry
		kind apperr.Kind
	}{
		{"negative hours", Entry{WorkItemID: "i1", PersonID: "p1", Week: now, Hours: -1}, apperr.KindValidation},
		{"too many hours", Entry{WorkItemID: "i1", PersonID: "p1", Week: now, Hours: 169}, apperr.KindValidation},
		{"unknown item", Entry{WorkItemID: "nope", PersonID: "p1", Week: now, Hours: 1}, apperr.KindNotFound},
		{"unknown person", Entry{WorkItemID: "i1", PersonID: "nope", Week: now, Hours: 1}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Log(ctx, gdb, tt.e)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}
