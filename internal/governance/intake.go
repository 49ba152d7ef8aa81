package governance

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/db"
	"github.com/zulandar/workyard/internal/models"
)

// maxCodeAttempts bounds how often Create picks a new code after losing a
// race for the same one.
const maxCodeAttempts = 3

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// submission holds the fields a request needs before it can be reviewed.
type submission struct {
	Title            string `json:"title" validate:"required"`
	SubmitterName    string `json:"submitter_name" validate:"required"`
	SubmitterEmail   string `json:"submitter_email" validate:"required,email"`
	ProblemStatement string `json:"problem_statement" validate:"required"`
	DesiredOutcomes  string `json:"desired_outcomes" validate:"required"`
	DivisionRegion   string `json:"division_region" validate:"required"`
}

// checkSubmission validates req for entry into Ready for Review.
func checkSubmission(op string, req *models.GovernanceRequest) error {
	s := submission{
		Title:            strings.TrimSpace(req.Title),
		SubmitterName:    strings.TrimSpace(req.Detail.SubmitterName),
		SubmitterEmail:   strings.TrimSpace(req.Detail.SubmitterEmail),
		ProblemStatement: strings.TrimSpace(req.Detail.ProblemStatement),
		DesiredOutcomes:  strings.TrimSpace(req.Detail.DesiredOutcomes),
		DivisionRegion:   strings.TrimSpace(req.Detail.DivisionRegion),
	}
	return validationErr(op, validate.Struct(s))
}

func validationErr(op string, err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Validation(op, "%v", err)
	}
	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return apperr.Validation(op, "%s", strings.Join(parts, "; "))
}

func checkEffort(op string, effort *string) error {
	if effort == nil || *effort == "" {
		return nil
	}
	for _, e := range EffortSizes {
		if e == *effort {
			return nil
		}
	}
	return apperr.Validation(op, "work effort %q is not one of %v", *effort, EffortSizes)
}

func checkEmail(op, email string) error {
	if email == "" {
		return nil
	}
	if err := validate.Var(email, "email"); err != nil {
		return apperr.Validation(op, "submitter email %q is not a valid address", email)
	}
	return nil
}

// CreateOpts holds parameters for a new request.
type CreateOpts struct {
	Title                  string
	WorkEffort             string
	Detail                 models.RequestDetail
	FinancialImpact        *float64
	ProjectionBasis        string
	CalculationMethodology string
	KeyAssumptions         []string
	ImpactMetrics          []models.ImpactMetric
	Actor                  string
}

// Create saves a new Draft request under the next GOV-<year>-NNN code.
func Create(gdb *gorm.DB, opts CreateOpts, now time.Time) (*models.GovernanceRequest, error) {
	const op = "governance.Create"
	if strings.TrimSpace(opts.Title) == "" {
		return nil, apperr.Validation(op, "title is required")
	}
	effort := optional(opts.WorkEffort)
	if err := checkEffort(op, effort); err != nil {
		return nil, err
	}
	if err := checkEmail(op, opts.Detail.SubmitterEmail); err != nil {
		return nil, err
	}

	req := &models.GovernanceRequest{
		Title:                  strings.TrimSpace(opts.Title),
		Status:                 StatusDraft,
		WorkEffort:             effort,
		Detail:                 opts.Detail,
		FinancialImpact:        opts.FinancialImpact,
		ProjectionBasis:        opts.ProjectionBasis,
		CalculationMethodology: opts.CalculationMethodology,
		KeyAssumptions:         opts.KeyAssumptions,
		ImpactMetrics:          opts.ImpactMetrics,
		LastUpdatedBy:          opts.Actor,
	}
	for attempt := 1; ; attempt++ {
		code, err := NextCode(gdb, now)
		if err != nil {
			return nil, err
		}
		req.ID = uuid.NewString()
		req.RequestCode = code
		err = gdb.Create(req).Error
		if err == nil {
			return req, nil
		}
		if !db.IsDuplicateKey(err) || attempt == maxCodeAttempts {
			return nil, apperr.Store(op, fmt.Errorf("create %s: %w", code, err))
		}
	}
}

// Patch holds the editable request fields. Nil fields are left unchanged.
type Patch struct {
	Title                  *string
	WorkEffort             *string
	Detail                 *models.RequestDetail
	FinancialImpact        *float64
	ProjectionBasis        *string
	CalculationMethodology *string
	KeyAssumptions         *[]string
	ImpactMetrics          *[]models.ImpactMetric
	Actor                  string
}

// Update edits a request. Only Draft and Needs Refinement requests accept
// edits.
func Update(gdb *gorm.DB, id string, p Patch) (*models.GovernanceRequest, error) {
	const op = "governance.Update"
	req, err := Get(gdb, id)
	if err != nil {
		return nil, err
	}
	if !isEditable(req.Status) {
		return nil, apperr.Validation(op, "request %s is %s; only %s and %s requests can be edited",
			req.RequestCode, req.Status, StatusDraft, StatusNeedsRefinement)
	}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, apperr.Validation(op, "title is required")
		}
		req.Title = strings.TrimSpace(*p.Title)
	}
	if p.WorkEffort != nil {
		if err := checkEffort(op, p.WorkEffort); err != nil {
			return nil, err
		}
		req.WorkEffort = optional(*p.WorkEffort)
	}
	if p.Detail != nil {
		if err := checkEmail(op, p.Detail.SubmitterEmail); err != nil {
			return nil, err
		}
		req.Detail = *p.Detail
	}
	if p.FinancialImpact != nil {
		req.FinancialImpact = p.FinancialImpact
	}
	if p.ProjectionBasis != nil {
		req.ProjectionBasis = *p.ProjectionBasis
	}
	if p.CalculationMethodology != nil {
		req.CalculationMethodology = *p.CalculationMethodology
	}
	if p.KeyAssumptions != nil {
		req.KeyAssumptions = *p.KeyAssumptions
	}
	if p.ImpactMetrics != nil {
		req.ImpactMetrics = *p.ImpactMetrics
	}
	if p.Actor != "" {
		req.LastUpdatedBy = p.Actor
	}

	comments := req.Comments
	req.Comments = nil
	if err := gdb.Omit("Comments").Save(req).Error; err != nil {
		return nil, apperr.Store(op, fmt.Errorf("update %s: %w", req.RequestCode, err))
	}
	req.Comments = comments
	return req, nil
}

// AddComment records a review note. author is the caller's display name.
func AddComment(gdb *gorm.DB, requestID, author, text string) (*models.GovernanceComment, error) {
	const op = "governance.AddComment"
	if strings.TrimSpace(author) == "" {
		return nil, apperr.Validation(op, "author is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation(op, "comment text is required")
	}
	req, err := Get(gdb, requestID)
	if err != nil {
		return nil, err
	}
	c := &models.GovernanceComment{RequestID: req.ID, AuthorName: author, Text: text}
	if err := gdb.Create(c).Error; err != nil {
		return nil, apperr.Store(op, err)
	}
	return c, nil
}

// Sort orders for List.
const (
	SortCode  = "code"
	SortDate  = "date"
	SortTitle = "title"
)

// ListFilters holds optional filters for listing requests.
type ListFilters struct {
	Status   string
	Division string
	Search   string // matches code, title or submitter name
	Sort     string // code (default), date or title
	Desc     bool
}

// List returns requests matching the filters.
func List(gdb *gorm.DB, f ListFilters) ([]models.GovernanceRequest, error) {
	q := gdb.Model(&models.GovernanceRequest{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Division != "" {
		q = q.Where("division_region = ?", f.Division)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(request_code) LIKE ? OR LOWER(title) LIKE ? OR LOWER(submitter_name) LIKE ?", like, like, like)
	}

	col := "request_code"
	switch f.Sort {
	case "", SortCode:
	case SortDate:
		col = "created_at"
	case SortTitle:
		col = "title"
	default:
		return nil, apperr.Validation("governance.List", "unknown sort %q (code, date, title)", f.Sort)
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}

	var out []models.GovernanceRequest
	if err := q.Order(col + " " + dir).Order("request_code " + dir).Find(&out).Error; err != nil {
		return nil, apperr.Store("governance.List", err)
	}
	return out, nil
}

// Pipeline summarizes the request queue.
type Pipeline struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ReadyForAssignment int            `json:"ready_for_assignment"`
	InPrep             int            `json:"in_prep"`
	NeedsReview        int            `json:"needs_review"`
}

// Statuses returns the statuses present in ByStatus in lifecycle order.
func (p Pipeline) Statuses() []string {
	var out []string
	for _, s := range Statuses {
		if p.ByStatus[s] > 0 {
			out = append(out, s)
		}
	}
	var extra []string
	for s := range p.ByStatus {
		if !contains(Statuses, s) {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// PipelineMetrics counts requests by status. Ready for assignment means
// Ready for Governance with no owner; in prep means converted and not yet
// terminal.
func PipelineMetrics(gdb *gorm.DB) (*Pipeline, error) {
	var rows []models.GovernanceRequest
	if err := gdb.Select("id", "status", "assigned_owner_id", "linked_initiative_id").Find(&rows).Error; err != nil {
		return nil, apperr.Store("governance.PipelineMetrics", err)
	}
	p := &Pipeline{Total: len(rows), ByStatus: make(map[string]int)}
	for _, r := range rows {
		p.ByStatus[r.Status]++
		if r.Status == StatusReadyForGovernance && r.AssignedOwnerID == nil {
			p.ReadyForAssignment++
		}
		if r.LinkedInitiativeID != nil && !IsTerminal(r.Status) {
			p.InPrep++
		}
		if r.Status == StatusReadyForReview {
			p.NeedsReview++
		}
	}
	return p, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
