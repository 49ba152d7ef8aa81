package governance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/conversion"
	"github.com/zulandar/workyard/internal/db"
	"github.com/zulandar/workyard/internal/models"
	"github.com/zulandar/workyard/internal/notify"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

var clock = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Machine, *gorm.DB, *recordingPublisher) {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	require.NoError(t, gdb.Create(&models.Person{ID: "p1", Name: "Ada", AvailableHours: 40}).Error)
	require.NoError(t, gdb.Create(&models.Person{ID: "p2", Name: "Linus", AvailableHours: 40}).Error)

	pub := &recordingPublisher{}
	now := func() time.Time { return clock }
	conv := conversion.New(gdb, conversion.WithClock(now))
	return NewMachine(gdb, conv, WithPublisher(pub), WithClock(now)), gdb, pub
}

func completeOpts() CreateOpts {
	return CreateOpts{
		Title:      "Sepsis bundle",
		WorkEffort: "M",
		Detail: models.RequestDetail{
			DivisionRegion:   "North",
			SubmitterName:    "Bo",
			SubmitterEmail:   "bo@example.org",
			ProblemStatement: "Late antibiotics",
			DesiredOutcomes:  "Faster bundle compliance",
		},
		ProjectionBasis: "LOS reduction",
		ImpactMetrics:   []models.ImpactMetric{{MetricName: "Compliance"}},
	}
}

func newRequest(t *testing.T, m *Machine) *models.GovernanceRequest {
	t.Helper()
	req, err := m.Create(context.Background(), completeOpts())
	require.NoError(t, err)
	return req
}

func TestNextCodeFrom(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		year     int
		want     string
	}{
		{"continues the year", []string{"GOV-2025-001", "GOV-2025-002"}, 2025, "GOV-2025-003"},
		{"new year starts at one", []string{"GOV-2025-001", "GOV-2025-002"}, 2026, "GOV-2026-001"},
		{"empty", nil, 2026, "GOV-2026-001"},
		{"gaps use the highest", []string{"GOV-2025-009", "GOV-2025-002"}, 2025, "GOV-2025-010"},
		{"past 999", []string{"GOV-2025-999"}, 2025, "GOV-2025-1000"},
		{"junk ignored", []string{"REQ-7", "GOV-2025-xx"}, 2025, "GOV-2025-001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextCodeFrom(tt.existing, tt.year))
		})
	}
}

func TestCreate_AssignsSequentialCodes(t *testing.T) {
	m, gdb, _ := setup(t)
	a := newRequest(t, m)
	b := newRequest(t, m)
	assert.Equal(t, "GOV-2025-001", a.RequestCode)
	assert.Equal(t, "GOV-2025-002", b.RequestCode)
	assert.Equal(t, StatusDraft, a.Status)

	next, err := NextCode(gdb, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "GOV-2026-001", next)
}

func TestCreate_Validation(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	_, err := m.Create(ctx, CreateOpts{Title: " "})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = m.Create(ctx, CreateOpts{Title: "x", WorkEffort: "XXXL"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = m.Create(ctx, CreateOpts{Title: "x", Detail: models.RequestDetail{SubmitterEmail: "not-an-email"}})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestTransition_IllegalIsRejected(t *testing.T) {
	m, _, pub := setup(t)
	req := newRequest(t, m)

	_, err := m.Transition(context.Background(), req.ID, StatusCompleted, "ana")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	got, err := Get(m.db, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, got.Status)
	assert.Empty(t, pub.events)
}

func TestTransition_Table(t *testing.T) {
	all := Statuses
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, v := range ValidTransitions[from] {
				if v == to {
					want = true
				}
			}
			assert.Equal(t, want, isValidTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.Empty(t, NextStates(StatusCompleted))
	assert.Empty(t, NextStates(StatusDismissed))
	assert.True(t, IsTerminal(StatusDismissed))
}

func TestTransition_SubmissionRequiresFields(t *testing.T) {
	m, gdb, _ := setup(t)
	req, err := m.Create(context.Background(), CreateOpts{Title: "Thin request", Detail: models.RequestDetail{SubmitterName: "Bo"}})
	require.NoError(t, err)

	_, err = m.Transition(context.Background(), req.ID, StatusReadyForReview, "ana")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "submitter_email")
	assert.Contains(t, err.Error(), "problem_statement")
	assert.NotContains(t, err.Error(), "submitter_name")

	var got models.GovernanceRequest
	require.NoError(t, gdb.First(&got, "id = ?", req.ID).Error)
	assert.Equal(t, StatusDraft, got.Status)
	assert.Nil(t, got.SubmittedDate)
}

func TestTransition_SubmitWithoutOwner(t *testing.T) {
	m, _, pub := setup(t)
	req := newRequest(t, m)

	out, err := m.Transition(context.Background(), req.RequestCode, StatusReadyForReview, "ana")
	require.NoError(t, err)
	assert.Equal(t, StatusReadyForReview, out.Request.Status)
	require.NotNil(t, out.Request.SubmittedDate)
	assert.True(t, out.Request.SubmittedDate.Equal(clock))
	assert.Nil(t, out.Phase1)
	assert.Nil(t, out.Request.LinkedInitiativeID)
	assert.Equal(t, []string{StatusNeedsRefinement, StatusReadyForGovernance, StatusDismissed}, out.NextStates)
	assert.Equal(t, "ana", out.Request.LastUpdatedBy)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "GOV-2025-001 moved to Ready for Review", pub.events[0].Title)
}

func TestFullLifecycle(t *testing.T) {
	m, gdb, _ := setup(t)
	ctx := context.Background()
	req := newRequest(t, m)

	// Owner assigned while still a draft: nothing is converted yet.
	out, err := m.Assign(ctx, req.ID, "p1", "L", "lead")
	require.NoError(t, err)
	assert.Nil(t, out.Phase1)
	assert.Equal(t, "Ada", out.Request.AssignedOwnerName)

	// Submission with an owner runs phase 1.
	out, err = m.Transition(ctx, req.ID, StatusReadyForReview, "ana")
	require.NoError(t, err)
	require.NotNil(t, out.Phase1)
	itemID := out.Phase1.Item.ID
	require.NotNil(t, out.Request.LinkedInitiativeID)
	assert.Equal(t, itemID, *out.Request.LinkedInitiativeID)
	require.NotNil(t, out.Phase1.Item.WorkEffort)
	assert.Equal(t, "L", *out.Phase1.Item.WorkEffort)

	// Sent back and resubmitted: still one item, submitted date kept.
	firstSubmitted := *out.Request.SubmittedDate
	_, err = m.Transition(ctx, req.ID, StatusNeedsRefinement, "rev")
	require.NoError(t, err)
	out, err = m.Transition(ctx, req.ID, StatusReadyForReview, "ana")
	require.NoError(t, err)
	assert.True(t, out.Request.SubmittedDate.Equal(firstSubmitted))

	// Approval for governance enriches the same item.
	out, err = m.Transition(ctx, req.ID, StatusReadyForGovernance, "rev")
	require.NoError(t, err)
	require.NotNil(t, out.Phase2)
	assert.Equal(t, itemID, out.Phase2.Item.ID)
	assert.Equal(t, conversion.EnrichedStatus, out.Phase2.Item.Status)

	// Completion moves it into execution.
	out, err = m.Transition(ctx, req.ID, StatusCompleted, "board")
	require.NoError(t, err)
	require.NotNil(t, out.Completed)
	assert.NotNil(t, out.Request.CompletedDate)
	assert.NotNil(t, out.Request.ApprovedDate)
	assert.Empty(t, out.NextStates)

	var item models.WorkItem
	require.NoError(t, gdb.First(&item, "id = ?", itemID).Error)
	assert.Equal(t, conversion.CompletedStatus, item.Status)
	assert.Equal(t, conversion.ExecutionCategory, item.Category)

	var items int64
	require.NoError(t, gdb.Model(&models.WorkItem{}).Count(&items).Error)
	assert.Equal(t, int64(1), items)
}

func TestAssign_InReadyForReviewRunsPhase1(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()
	req := newRequest(t, m)
	_, err := m.Transition(ctx, req.ID, StatusReadyForReview, "ana")
	require.NoError(t, err)

	out, err := m.Assign(ctx, req.ID, "p1", "", "lead")
	require.NoError(t, err)
	require.NotNil(t, out.Phase1)
	assert.False(t, out.Phase1.AlreadyDone)

	again, err := m.Assign(ctx, req.ID, "p1", "", "lead")
	require.NoError(t, err)
	assert.Nil(t, again.Phase1, "already linked requests are not converted again")
	assert.Equal(t, *out.Request.LinkedInitiativeID, *again.Request.LinkedInitiativeID)

	_, err = m.Assign(ctx, req.ID, "p2", "", "lead")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "converted request cannot change owner")
}

func TestAssign_InReadyForGovernanceConvertsFully(t *testing.T) {
	m, gdb, _ := setup(t)
	ctx := context.Background()
	req := newRequest(t, m)
	_, err := m.Transition(ctx, req.ID, StatusReadyForReview, "ana")
	require.NoError(t, err)
	out, err := m.Transition(ctx, req.ID, StatusReadyForGovernance, "rev")
	require.NoError(t, err)
	assert.Nil(t, out.Phase2)
	assert.NotEmpty(t, out.Notes)

	p, err := PipelineMetrics(gdb)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReadyForAssignment)

	out, err = m.Assign(ctx, req.ID, "p2", "S", "lead")
	require.NoError(t, err)
	require.NotNil(t, out.Phase1)
	require.NotNil(t, out.Phase2)
	assert.Equal(t, out.Phase1.Item.ID, out.Phase2.Item.ID)

	var metrics int64
	require.NoError(t, gdb.Model(&models.WorkItemMetric{}).Where("work_item_id = ?", out.Phase2.Item.ID).Count(&metrics).Error)
	assert.Equal(t, int64(1), metrics)
}

func TestAssign_Errors(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()
	req := newRequest(t, m)

	_, err := m.Assign(ctx, req.ID, "ghost", "", "lead")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = m.Assign(ctx, req.ID, "p1", "HUGE", "lead")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = m.Transition(ctx, req.ID, StatusReadyForReview, "ana")
	require.NoError(t, err)
	_, err = m.Transition(ctx, req.ID, StatusDismissed, "rev")
	require.NoError(t, err)
	_, err = m.Assign(ctx, req.ID, "p1", "", "lead")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestTransition_NotFound(t *testing.T) {
	m, _, _ := setup(t)
	_, err := m.Transition(context.Background(), "nope", StatusReadyForReview, "")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestUpdate_OnlyWhileEditable(t *testing.T) {
	m, gdb, _ := setup(t)
	ctx := context.Background()
	req := newRequest(t, m)

	title := "Sepsis bundle v2"
	metrics := []models.ImpactMetric{{MetricName: "A"}, {MetricName: "B"}}
	got, err := Update(gdb, req.ID, Patch{Title: &title, ImpactMetrics: &metrics, Actor: "bo"})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)

	reloaded, err := Get(gdb, req.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.ImpactMetrics, 2)
	assert.Equal(t, "bo", reloaded.LastUpdatedBy)

	bad := "nope"
	_, err = Update(gdb, req.ID, Patch{WorkEffort: &bad})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = m.Transition(ctx, req.ID, StatusReadyForReview, "ana")
	require.NoError(t, err)
	_, err = Update(gdb, req.ID, Patch{Title: &title})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestComments(t *testing.T) {
	m, gdb, _ := setup(t)
	req := newRequest(t, m)

	_, err := AddComment(gdb, req.ID, "Rev One", "Needs a baseline")
	require.NoError(t, err)
	_, err = AddComment(gdb, req.RequestCode, "Rev Two", "Agreed")
	require.NoError(t, err)

	_, err = AddComment(gdb, req.ID, "", "anon")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = AddComment(gdb, "missing", "Rev", "x")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	got, err := Get(gdb, req.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "Rev One", got.Comments[0].AuthorName)
}

func TestList(t *testing.T) {
	m, gdb, _ := setup(t)
	ctx := context.Background()
	a := newRequest(t, m)
	opts := completeOpts()
	opts.Title = "Anticoagulation reversal"
	opts.Detail.DivisionRegion = "South"
	_, err := m.Create(ctx, opts)
	require.NoError(t, err)
	_, err = m.Transition(ctx, a.ID, StatusReadyForReview, "ana")
	require.NoError(t, err)

	tests := []struct {
		name   string
		f      ListFilters
		titles []string
	}{
		{"all by code", ListFilters{}, []string{"Sepsis bundle", "Anticoagulation reversal"}},
		{"by title", ListFilters{Sort: SortTitle}, []string{"Anticoagulation reversal", "Sepsis bundle"}},
		{"desc code", ListFilters{Desc: true}, []string{"Anticoagulation reversal", "Sepsis bundle"}},
		{"status", ListFilters{Status: StatusReadyForReview}, []string{"Sepsis bundle"}},
		{"division", ListFilters{Division: "South"}, []string{"Anticoagulation reversal"}},
		{"search", ListFilters{Search: "SEPSIS"}, []string{"Sepsis bundle"}},
		{"search code", ListFilters{Search: "gov-2025-002"}, []string{"Anticoagulation reversal"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := List(gdb, tt.f)
			require.NoError(t, err)
			var titles []string
			for _, r := range got {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tt.titles, titles)
		})
	}

	_, err = List(gdb, ListFilters{Sort: "priority"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestPipelineMetrics(t *testing.T) {
	m, gdb, _ := setup(t)
	ctx := context.Background()

	newRequest(t, m) // stays in Draft
	review := newRequest(t, m)
	prep := newRequest(t, m)
	done := newRequest(t, m)

	_, err := m.Transition(ctx, review.ID, StatusReadyForReview, "")
	require.NoError(t, err)

	_, err = m.Assign(ctx, prep.ID, "p1", "", "")
	require.NoError(t, err)
	_, err = m.Transition(ctx, prep.ID, StatusReadyForReview, "")
	require.NoError(t, err)

	_, err = m.Assign(ctx, done.ID, "p2", "", "")
	require.NoError(t, err)
	for _, s := range []string{StatusReadyForReview, StatusReadyForGovernance, StatusCompleted} {
		_, err = m.Transition(ctx, done.ID, s, "")
		require.NoError(t, err)
	}

	p, err := PipelineMetrics(gdb)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 1, p.ByStatus[StatusDraft])
	assert.Equal(t, 2, p.ByStatus[StatusReadyForReview])
	assert.Equal(t, 1, p.ByStatus[StatusCompleted])
	assert.Equal(t, 2, p.NeedsReview)
	assert.Equal(t, 1, p.InPrep)
	assert.Equal(t, 0, p.ReadyForAssignment)
	assert.Equal(t, []string{StatusDraft, StatusReadyForReview, StatusCompleted}, p.Statuses())
}
