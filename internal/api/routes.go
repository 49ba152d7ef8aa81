package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/governance"
	"github.com/zulandar/workyard/internal/insights"
	"github.com/zulandar/workyard/internal/models"
	"github.com/zulandar/workyard/internal/people"
	"github.com/zulandar/workyard/internal/timelog"
	"github.com/zulandar/workyard/internal/weights"
	"github.com/zulandar/workyard/internal/workitem"
)

// heartbeatInterval paces keep-alive events on idle streams.
var heartbeatInterval = 15 * time.Second

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, d Deps) {
	h := &handlers{d}
	api := router.Group("/api")

	api.GET("/weights", h.listWeights)
	api.POST("/weights/apply", h.applyWeights)

	api.GET("/people", h.listPeople)
	api.POST("/people", h.createPerson)
	api.GET("/people/:id/capacity", h.personCapacity)
	api.GET("/people/:id/metrics", h.personMetrics)
	api.GET("/managers/:id/capacity", h.managerCapacity)
	api.GET("/capacity", h.orgCapacity)

	api.GET("/items", h.listItems)
	api.GET("/items/:id", h.getItem)
	api.PATCH("/items/:id", h.updateItem)
	api.DELETE("/items/:id", h.deleteItem)
	api.POST("/items/:id/reassign", h.reassignItem)

	api.GET("/requests", h.listRequests)
	api.POST("/requests", h.createRequest)
	api.GET("/requests/:id", h.getRequest)
	api.PATCH("/requests/:id", h.updateRequest)
	api.POST("/requests/:id/transition", h.transition)
	api.POST("/requests/:id/assign", h.assign)
	api.POST("/requests/:id/comments", h.addComment)
	api.GET("/pipeline", h.pipeline)

	api.POST("/timelogs", h.logTime)
	api.POST("/insights", h.ask)
	api.POST("/insights/balance", h.balance)

	api.GET("/events", handleEvents(d.Events, heartbeatInterval))
}

type handlers struct {
	d Deps
}

// actor names the caller: the body's actor field, else the X-Actor header.
func actor(c *gin.Context, fromBody string) string {
	if s := strings.TrimSpace(fromBody); s != "" {
		return s
	}
	return strings.TrimSpace(c.GetHeader("X-Actor"))
}

func (h *handlers) listWeights(c *gin.Context) {
	configType := c.Query("type")
	if configType != "" && !weights.IsConfigType(configType) {
		writeErr(c, apperr.Validation("weights: list", "unknown config type %q", configType))
		return
	}
	snap, err := h.d.Weights.Snapshot(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version":    snap.Version,
		"thresholds": snap.Thresholds(),
		"weights":    snap.List(configType),
	})
}

type applyBody struct {
	Changes map[string]float64 `json:"changes"`
	Actor   string             `json:"actor"`
}

func (h *handlers) applyWeights(c *gin.Context) {
	var body applyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	snap, err := h.d.Weights.ApplyDraft(c.Request.Context(), body.Changes, actor(c, body.Actor))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": snap.Version, "weights": snap.List("")})
}

func (h *handlers) listPeople(c *gin.Context) {
	list, err := people.List(h.d.DB.WithContext(c.Request.Context()), c.Query("manager"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type personBody struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Title          string  `json:"title"`
	ManagerID      string  `json:"manager_id"`
	AvailableHours float64 `json:"available_hours"`
}

func (h *handlers) createPerson(c *gin.Context) {
	var body personBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	p, err := people.Create(h.d.DB.WithContext(c.Request.Context()), people.CreateOpts{
		Name:           body.Name,
		Email:          body.Email,
		Title:          body.Title,
		ManagerID:      body.ManagerID,
		AvailableHours: body.AvailableHours,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handlers) personCapacity(c *gin.Context) {
	s, err := h.d.Capacity.ForPerson(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handlers) personMetrics(c *gin.Context) {
	m, err := h.d.Capacity.Metrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *handlers) managerCapacity(c *gin.Context) {
	t, err := h.d.Capacity.ForManager(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handlers) orgCapacity(c *gin.Context) {
	t, err := h.d.Capacity.ForOrg(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *handlers) listItems(c *gin.Context) {
	items, err := workitem.List(h.d.DB.WithContext(c.Request.Context()), workitem.ListFilters{
		OwnerID:  c.Query("owner"),
		Status:   c.Query("status"),
		Category: c.Query("category"),
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *handlers) getItem(c *gin.Context) {
	full, err := workitem.GetFull(h.d.DB.WithContext(c.Request.Context()), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, full)
}

func (h *handlers) updateItem(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	gdb := h.d.DB.WithContext(ctx)
	if err := workitem.Update(gdb, c.Param("id"), updates); err != nil {
		writeErr(c, err)
		return
	}
	item, err := workitem.Get(gdb, c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	h.d.Capacity.RecomputeAdvisory(ctx, item.OwnerID)
	c.JSON(http.StatusOK, item)
}

func (h *handlers) deleteItem(c *gin.Context) {
	ctx := c.Request.Context()
	gdb := h.d.DB.WithContext(ctx)
	item, err := workitem.Get(gdb, c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := workitem.Delete(gdb, item.ID); err != nil {
		writeErr(c, err)
		return
	}
	h.d.Capacity.RecomputeAdvisory(ctx, item.OwnerID)
	c.Status(http.StatusNoContent)
}

type reassignBody struct {
	OwnerID string `json:"owner_id"`
	Role    string `json:"role"`
}

func (h *handlers) reassignItem(c *gin.Context) {
	var body reassignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	moved, err := workitem.Reassign(h.d.DB.WithContext(ctx), c.Param("id"), body.OwnerID, body.Role)
	if err != nil {
		writeErr(c, err)
		return
	}
	h.d.Capacity.RecomputeAdvisory(ctx, moved.PreviousOwnerID)
	if moved.Item.OwnerID != moved.PreviousOwnerID {
		h.d.Capacity.RecomputeAdvisory(ctx, moved.Item.OwnerID)
	}
	c.JSON(http.StatusOK, moved)
}

func (h *handlers) listRequests(c *gin.Context) {
	list, err := governance.List(h.d.DB.WithContext(c.Request.Context()), governance.ListFilters{
		Status:   c.Query("status"),
		Division: c.Query("division"),
		Search:   c.Query("q"),
		Sort:     c.Query("sort"),
		Desc:     c.Query("order") == "desc",
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type requestBody struct {
	Title                  string                `json:"title"`
	WorkEffort             string                `json:"work_effort"`
	Detail                 models.RequestDetail  `json:"detail"`
	FinancialImpact        *float64              `json:"financial_impact"`
	ProjectionBasis        string                `json:"projection_basis"`
	CalculationMethodology string                `json:"calculation_methodology"`
	KeyAssumptions         []string              `json:"key_assumptions"`
	ImpactMetrics          []models.ImpactMetric `json:"impact_metrics"`
	Actor                  string                `json:"actor"`
}

func (h *handlers) createRequest(c *gin.Context) {
	var body requestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	req, err := h.d.Machine.Create(c.Request.Context(), governance.CreateOpts{
		Title:                  body.Title,
		WorkEffort:             body.WorkEffort,
		Detail:                 body.Detail,
		FinancialImpact:        body.FinancialImpact,
		ProjectionBasis:        body.ProjectionBasis,
		CalculationMethodology: body.CalculationMethodology,
		KeyAssumptions:         body.KeyAssumptions,
		ImpactMetrics:          body.ImpactMetrics,
		Actor:                  actor(c, body.Actor),
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, requestView(req))
}

func requestView(req *models.GovernanceRequest) gin.H {
	return gin.H{"request": req, "next_states": governance.NextStates(req.Status)}
}

func (h *handlers) getRequest(c *gin.Context) {
	req, err := governance.Get(h.d.DB.WithContext(c.Request.Context()), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, requestView(req))
}

type patchBody struct {
	Title                  *string                `json:"title"`
	WorkEffort             *string                `json:"work_effort"`
	Detail                 *models.RequestDetail  `json:"detail"`
	FinancialImpact        *float64               `json:"financial_impact"`
	ProjectionBasis        *string                `json:"projection_basis"`
	CalculationMethodology *string                `json:"calculation_methodology"`
	KeyAssumptions         *[]string              `json:"key_assumptions"`
	ImpactMetrics          *[]models.ImpactMetric `json:"impact_metrics"`
	Actor                  string                 `json:"actor"`
}

func (h *handlers) updateRequest(c *gin.Context) {
	var body patchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	req, err := governance.Update(h.d.DB.WithContext(c.Request.Context()), c.Param("id"), governance.Patch{
		Title:                  body.Title,
		WorkEffort:             body.WorkEffort,
		Detail:                 body.Detail,
		FinancialImpact:        body.FinancialImpact,
		ProjectionBasis:        body.ProjectionBasis,
		CalculationMethodology: body.CalculationMethodology,
		KeyAssumptions:         body.KeyAssumptions,
		ImpactMetrics:          body.ImpactMetrics,
		Actor:                  actor(c, body.Actor),
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, requestView(req))
}

// writeOutcome renders a committed transition or assignment. A failed side
// effect does not undo the commit, so it is reported next to the outcome.
func writeOutcome(c *gin.Context, out *governance.Outcome, err error) {
	if out == nil {
		writeErr(c, err)
		return
	}
	resp := gin.H{"outcome": out}
	if err != nil {
		resp["effect_error"] = err.Error()
		resp["effect_kind"] = apperr.KindOf(err).String()
	}
	c.JSON(http.StatusOK, resp)
}

type transitionBody struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

func (h *handlers) transition(c *gin.Context) {
	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if body.Status == "" {
		badRequest(c, errors.New("status is required"))
		return
	}
	out, err := h.d.Machine.Transition(c.Request.Context(), c.Param("id"), body.Status, actor(c, body.Actor))
	writeOutcome(c, out, err)
}

type assignBody struct {
	OwnerID    string `json:"owner_id"`
	WorkEffort string `json:"work_effort"`
	Actor      string `json:"actor"`
}

func (h *handlers) assign(c *gin.Context) {
	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if body.OwnerID == "" {
		badRequest(c, errors.New("owner_id is required"))
		return
	}
	out, err := h.d.Machine.Assign(c.Request.Context(), c.Param("id"), body.OwnerID, body.WorkEffort, actor(c, body.Actor))
	writeOutcome(c, out, err)
}

type commentBody struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

func (h *handlers) addComment(c *gin.Context) {
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	cm, err := governance.AddComment(h.d.DB.WithContext(c.Request.Context()), c.Param("id"), actor(c, body.Author), body.Text)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, cm)
}

func (h *handlers) pipeline(c *gin.Context) {
	p, err := governance.PipelineMetrics(h.d.DB.WithContext(c.Request.Context()))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type timeLogBody struct {
	WorkItemID string   `json:"work_item_id"`
	PersonID   string   `json:"person_id"`
	Week       string   `json:"week"` // any date in the week, YYYY-MM-DD; defaults to this week
	Hours      *float64 `json:"hours"`
	Note       string   `json:"note"`
}

func (h *handlers) logTime(c *gin.Context) {
	var body timeLogBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if body.Hours == nil {
		badRequest(c, errors.New("hours is required"))
		return
	}
	week := time.Now()
	if body.Week != "" {
		key, err := timelog.ParseWeek(body.Week)
		if err != nil {
			writeErr(c, err)
			return
		}
		week, _ = time.Parse("2006-01-02", key)
	}
	row, err := timelog.Log(c.Request.Context(), h.d.DB, timelog.Entry{
		WorkItemID: body.WorkItemID,
		PersonID:   body.PersonID,
		Week:       week,
		Hours:      *body.Hours,
		Note:       body.Note,
	})
	if err != nil {
		writeErr(c, err)
		return
	}
	h.d.Capacity.RecomputeAdvisory(c.Request.Context(), row.PersonID)
	c.JSON(http.StatusOK, row)
}

type askBody struct {
	Question string `json:"question"`
}

func (h *handlers) ask(c *gin.Context) {
	if h.d.Advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "insights are not configured"})
		return
	}
	var body askBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	ans, err := h.d.Advisor.Ask(c.Request.Context(), body.Question)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

type balanceBody struct {
	People   []string `json:"people"`
	Question string   `json:"question"`
}

func (h *handlers) balance(c *gin.Context) {
	if h.d.Advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "insights are not configured"})
		return
	}
	var body balanceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	if len(body.People) != 2 {
		badRequest(c, errors.New("people must hold exactly two person IDs"))
		return
	}
	ctx := c.Request.Context()
	var loads [2]insights.Workload
	for i, id := range body.People {
		w, err := insights.LoadWorkload(ctx, h.d.DB, h.d.Capacity, id)
		if err != nil {
			writeErr(c, err)
			return
		}
		loads[i] = w
	}
	ans, err := h.d.Advisor.Balance(ctx, loads[0], loads[1], body.Question)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}
