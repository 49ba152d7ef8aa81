package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/config"
	"github.com/zulandar/workyard/internal/conversion"
	"github.com/zulandar/workyard/internal/db"
	"github.com/zulandar/workyard/internal/governance"
	"github.com/zulandar/workyard/internal/models"
	"github.com/zulandar/workyard/internal/notify"
	"github.com/zulandar/workyard/internal/weights"
	"github.com/zulandar/workyard/internal/workitem"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*gin.Engine, *gorm.DB, *Broker) {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	_, err = db.SeedWeights(gdb, config.DefaultWeights)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&models.Person{ID: "p1", Name: "Ada", AvailableHours: 40}).Error)

	ws := weights.NewStore(gdb)
	capSvc := capacity.NewService(gdb, ws, capacity.Options{}, nil)
	conv := conversion.New(gdb, conversion.WithRecomputer(capSvc))
	broker := NewBroker()
	m := governance.NewMachine(gdb, conv, governance.WithPublisher(notify.New(nil, broker)))

	r, err := NewRouter(Deps{DB: gdb, Weights: ws, Capacity: capSvc, Machine: m, Events: broker})
	require.NoError(t, err)
	return r, gdb, broker
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestNewRouter_RequiresDeps(t *testing.T) {
	_, err := NewRouter(Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is required")
}

func TestWeights(t *testing.T) {
	r, gdb, _ := setup(t)

	w := do(t, r, http.MethodGet, "/api/weights?type=effort_size", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Version uint64                `json:"version"`
		Weights []models.WeightConfig `json:"weights"`
	}
	decode(t, w, &got)
	assert.Equal(t, uint64(1), got.Version)
	require.Len(t, got.Weights, 5)
	assert.Equal(t, "XS", got.Weights[0].Key)

	w = do(t, r, http.MethodGet, "/api/weights?type=bogus", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var xl models.WeightConfig
	require.NoError(t, gdb.Where("config_type = ? AND key = ?", "effort_size", "XL").First(&xl).Error)
	w = do(t, r, http.MethodPost, "/api/weights/apply", map[string]interface{}{
		"changes": map[string]float64{xl.ID: 20},
		"actor":   "ops",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &got)
	assert.Equal(t, uint64(2), got.Version)

	w = do(t, r, http.MethodPost, "/api/weights/apply", map[string]interface{}{"changes": map[string]float64{}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCapacityEndpoints(t *testing.T) {
	r, gdb, _ := setup(t)
	mgr := "m1"
	require.NoError(t, gdb.Create(&models.Manager{ID: mgr, Name: "Grace"}).Error)
	require.NoError(t, gdb.Model(&models.Person{}).Where("id = ?", "p1").Update("manager_id", mgr).Error)

	w := do(t, r, http.MethodGet, "/api/people/p1/capacity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap capacity.Snapshot
	decode(t, w, &snap)
	assert.Equal(t, "Ada", snap.Name)
	assert.Equal(t, capacity.Available, snap.Band)

	w = do(t, r, http.MethodGet, "/api/people/nobody/capacity", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/managers/m1/capacity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var team capacity.Team
	decode(t, w, &team)
	assert.Equal(t, "Grace", team.Summary.Name)
	assert.Len(t, team.Members, 1)

	w = do(t, r, http.MethodGet, "/api/capacity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &team)
	assert.Equal(t, "Organization", team.Summary.Name)

	w = do(t, r, http.MethodGet, "/api/people/p1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var metrics models.DashboardMetrics
	decode(t, w, &metrics)
	assert.Equal(t, "p1", metrics.PersonID)
}

func TestPeople(t *testing.T) {
	r, _, _ := setup(t)

	w := do(t, r, http.MethodPost, "/api/people", map[string]interface{}{"name": "Linus"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p models.Person
	decode(t, w, &p)
	assert.Equal(t, 40.0, p.AvailableHours)

	w = do(t, r, http.MethodPost, "/api/people", map[string]interface{}{"name": "X", "manager_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/people", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Person
	decode(t, w, &list)
	assert.Len(t, list, 2)
}

type outcomeResp struct {
	Outcome     governance.Outcome `json:"outcome"`
	EffectError string             `json:"effect_error"`
}

func TestRequestLifecycle(t *testing.T) {
	r, _, broker := setup(t)
	events, cancel := broker.Subscribe()
	defer cancel()

	w := do(t, r, http.MethodPost, "/api/requests", map[string]interface{}{
		"title":       "Sepsis bundle",
		"work_effort": "M",
		"detail": map[string]interface{}{
			"division_region":   "North",
			"submitter_name":    "Bo",
			"submitter_email":   "bo@example.org",
			"problem_statement": "Late antibiotics",
			"desired_outcomes":  "Faster compliance",
		},
		"impact_metrics": []map[string]interface{}{{"metric_name": "Compliance"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Request    models.GovernanceRequest `json:"request"`
		NextStates []string                 `json:"next_states"`
	}
	decode(t, w, &created)
	code := created.Request.RequestCode
	assert.Equal(t, governance.StatusDraft, created.Request.Status)
	assert.Equal(t, []string{governance.StatusReadyForReview}, created.NextStates)

	w = do(t, r, http.MethodPost, "/api/requests/"+code+"/transition", map[string]string{"status": governance.StatusCompleted})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"validation"`)

	w = do(t, r, http.MethodPost, "/api/requests/"+code+"/transition", map[string]string{
		"status": governance.StatusReadyForReview, "actor": "bo",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out outcomeResp
	decode(t, w, &out)
	assert.Equal(t, governance.StatusReadyForReview, out.Outcome.To)
	assert.Nil(t, out.Outcome.Phase1)

	select {
	case e := <-events:
		assert.Contains(t, e.Title, code)
	case <-time.After(time.Second):
		t.Fatal("no event published for the transition")
	}

	w = do(t, r, http.MethodPost, "/api/requests/"+code+"/assign", map[string]string{"owner_id": "p1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &out)
	require.NotNil(t, out.Outcome.Phase1)
	require.NotNil(t, out.Outcome.Phase1.Item)
	assert.Equal(t, "Sepsis bundle - Governance Prep", out.Outcome.Phase1.Item.Name)

	w = do(t, r, http.MethodPost, "/api/requests/"+code+"/transition", map[string]string{"status": governance.StatusReadyForGovernance})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &out)
	require.NotNil(t, out.Outcome.Phase2)
	assert.Empty(t, out.EffectError)

	w = do(t, r, http.MethodGet, "/api/items/"+out.Outcome.Phase2.Item.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var full workitem.Full
	decode(t, w, &full)
	require.NotNil(t, full.Story)
	assert.Equal(t, "Late antibiotics", full.Story.Challenge)
	assert.Len(t, full.Metrics, 1)

	w = do(t, r, http.MethodGet, "/api/requests/"+code, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &created)
	assert.Equal(t, []string{governance.StatusCompleted, governance.StatusDismissed}, created.NextStates)

	w = do(t, r, http.MethodGet, "/api/pipeline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p governance.Pipeline
	decode(t, w, &p)
	assert.Equal(t, 1, p.Total)
	assert.Equal(t, 1, p.InPrep)
}

func TestRequestEdits(t *testing.T) {
	r, _, _ := setup(t)

	w := do(t, r, http.MethodPost, "/api/requests", map[string]string{"title": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/api/requests", map[string]string{"title": "Fall prevention"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Request models.GovernanceRequest `json:"request"`
	}
	decode(t, w, &created)
	id := created.Request.ID

	w = do(t, r, http.MethodPatch, "/api/requests/"+id, map[string]string{"title": "Falls program"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &created)
	assert.Equal(t, "Falls program", created.Request.Title)

	w = do(t, r, http.MethodPost, "/api/requests/"+id+"/comments", map[string]string{"author": "Grace", "text": "Needs metrics"})
	assert.Equal(t, http.StatusCreated, w.Code)
	w = do(t, r, http.MethodPost, "/api/requests/"+id+"/comments", map[string]string{"text": "anonymous"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodGet, "/api/requests?q=falls", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.GovernanceRequest
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = do(t, r, http.MethodGet, "/api/requests?sort=owner", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodGet, "/api/requests/GOV-1999-001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/requests/"+id+"/assign", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogTime(t *testing.T) {
	r, gdb, _ := setup(t)
	item, err := workitem.Create(gdb, workitem.CreateOpts{OwnerID: "p1", Name: "EHR upgrade", Category: "Project", WorkEffort: "M"})
	require.NoError(t, err)

	w := do(t, r, http.MethodPost, "/api/timelogs", map[string]interface{}{
		"work_item_id": item.ID, "person_id": "p1", "week": "2025-06-04", "hours": 6,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var row models.TimeLog
	decode(t, w, &row)
	assert.Equal(t, "2025-06-02", row.WeekStartDate)
	assert.Equal(t, 6.0, row.HoursSpent)

	w = do(t, r, http.MethodPost, "/api/timelogs", map[string]interface{}{"work_item_id": item.ID, "person_id": "p1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/timelogs", map[string]interface{}{
		"work_item_id": item.ID, "person_id": "p1", "hours": 200,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/api/timelogs", map[string]interface{}{
		"work_item_id": item.ID, "person_id": "p1", "week": "June", "hours": 1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInsights_NotConfigured(t *testing.T) {
	r, _, _ := setup(t)
	w := do(t, r, http.MethodPost, "/api/insights", map[string]string{"question": "who is overloaded?"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, r, http.MethodPost, "/api/insights/balance", map[string]interface{}{"people": []string{"p1", "p2"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBroker(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe()
	assert.Equal(t, 1, b.Subscribers())

	require.NoError(t, b.Publish(context.Background(), notify.Event{Title: "hello"}))
	assert.Equal(t, "hello", (<-ch).Title)

	// A full subscriber drops events instead of blocking publishers.
	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, b.Publish(context.Background(), notify.Event{Title: "x"}))
	}
	assert.Len(t, ch, subscriberBuffer)

	cancel()
	assert.Equal(t, 0, b.Subscribers())
}

func TestEventStream(t *testing.T) {
	r, _, broker := setup(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)
	_, _ = rd.ReadString('\n') // data
	_, _ = rd.ReadString('\n') // blank

	require.NoError(t, broker.Publish(context.Background(), notify.Event{Title: "GOV-2025-001 moved", Severity: "info"}))
	line, err = rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: notification\n", line)
	line, err = rd.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "))
	assert.Contains(t, line, `"title":"GOV-2025-001 moved"`)
}

func TestItemEdits(t *testing.T) {
	r, gdb, _ := setup(t)
	item, err := workitem.Create(gdb, workitem.CreateOpts{OwnerID: "p1", Name: "EHR upgrade", Category: "Project"})
	require.NoError(t, err)

	w := do(t, r, http.MethodPatch, "/api/items/"+item.ID, map[string]string{"status": "Active", "work_effort": "L"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.WorkItem
	decode(t, w, &got)
	assert.Equal(t, "Active", got.Status)

	w = do(t, r, http.MethodPatch, "/api/items/"+item.ID, map[string]string{"owner_id": "p2"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var m models.DashboardMetrics
	require.NoError(t, gdb.First(&m, "person_id = ?", "p1").Error)
	assert.Equal(t, 1, m.ActiveAssignments)

	w = do(t, r, http.MethodDelete, "/api/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, "/api/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogTime_RefreshesCachedMetrics(t *testing.T) {
	r, gdb, _ := setup(t)
	item, err := workitem.Create(gdb, workitem.CreateOpts{OwnerID: "p1", Name: "EHR upgrade", Category: "Project", Status: "Active"})
	require.NoError(t, err)

	w := do(t, r, http.MethodGet, "/api/people/p1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var before models.DashboardMetrics
	decode(t, w, &before)
	assert.Zero(t, before.ActualHours)

	w = do(t, r, http.MethodPost, "/api/timelogs", map[string]interface{}{
		"work_item_id": item.ID, "person_id": "p1", "hours": 12,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/people/p1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var after models.DashboardMetrics
	decode(t, w, &after)
	assert.Equal(t, 12.0, after.ActualHours)
}

func TestReassignItem(t *testing.T) {
	r, gdb, _ := setup(t)
	require.NoError(t, gdb.Create(&models.Person{ID: "p2", Name: "Linus", AvailableHours: 40}).Error)
	item, err := workitem.Create(gdb, workitem.CreateOpts{
		OwnerID: "p1", Name: "EHR upgrade", Category: "Project", Status: "Active",
		WorkEffort: "L", Role: "Owner", Phase: "Implementation",
	})
	require.NoError(t, err)
	w := do(t, r, http.MethodGet, "/api/people/p1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/items/"+item.ID+"/reassign", map[string]string{"owner_id": "p2", "role": "Support"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var moved workitem.Reassignment
	decode(t, w, &moved)
	assert.Equal(t, "p1", moved.PreviousOwnerID)
	assert.Equal(t, "Linus", moved.Item.OwnerName)

	var old, current models.DashboardMetrics
	require.NoError(t, gdb.First(&old, "person_id = ?", "p1").Error)
	assert.Zero(t, old.ActiveAssignments)
	assert.Zero(t, old.PlannedHours)
	require.NoError(t, gdb.First(&current, "person_id = ?", "p2").Error)
	assert.Equal(t, 1, current.ActiveAssignments)
	assert.Greater(t, current.PlannedHours, 0.0)

	w = do(t, r, http.MethodPost, "/api/items/"+item.ID+"/reassign", map[string]string{"owner_id": "p2"})
	require.Equal(t, http.StatusOK, w.Code)
	var note map[string]string
	decode(t, w, &note)
	assert.Contains(t, note["note"], "already owned by Linus")

	w = do(t, r, http.MethodPost, "/api/items/"+item.ID+"/reassign", map[string]string{"owner_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodPost, "/api/items/"+item.ID+"/reassign", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
