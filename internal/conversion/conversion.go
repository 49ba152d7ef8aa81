// Package conversion promotes a governance request into a work item in two
// phases. Phase 1 creates a minimal item as soon as an owner is known so
// time can be logged against it. Phase 2 fills the same item with the
// request's detail, story, financial projection and metrics.
//
// The governance state machine is the only caller.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/db"
	"github.com/zulandar/workyard/internal/logging"
	"github.com/zulandar/workyard/internal/models"
)

// Work item values written by each phase.
const (
	GovernanceCategory = "Governance"
	ExecutionCategory  = "System Initiative"
	PrepStatus         = "Not Started"
	EnrichedStatus     = "In Progress"
	CompletedStatus    = "Active"
	DiscoveryPhase     = "Discovery"
	ExecutionPhase     = "Implementation"
	OwnerRole          = "Owner"
)

// Recomputer refreshes a person's cached capacity. Failures are the
// recomputer's to log; conversion never waits on the outcome.
type Recomputer interface {
	RecomputeAdvisory(ctx context.Context, personID string)
}

// Result is the outcome of a conversion step.
type Result struct {
	Item        *models.WorkItem `json:"work_item"`
	AlreadyDone bool             `json:"already_done"`
	Note        string           `json:"note,omitempty"`
	FailedSteps []string         `json:"failed_steps,omitempty"`
}

// Service runs conversion phases against the record store.
type Service struct {
	db        *gorm.DB
	recompute Recomputer
	log       *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// WithRecomputer sets the advisory capacity recomputer.
func WithRecomputer(r Recomputer) Option { return func(s *Service) { s.recompute = r } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New creates a conversion Service.
func New(gdb *gorm.DB, opts ...Option) *Service {
	s := &Service{db: gdb, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.log = logging.OrNop(s.log)
	return s
}

// CreateMinimalWorkItem is Phase 1. It creates a Governance prep item owned
// by ownerID and links it to the request. When the request is already
// linked, the existing item is returned with AlreadyDone set. The unique
// index on work_items.governance_request_id settles concurrent calls: the
// loser of the race sees a duplicate key and returns the winner's item.
func (s *Service) CreateMinimalWorkItem(ctx context.Context, requestID, ownerID, ownerName string) (*Result, error) {
	const op = "conversion: phase 1"
	tx := s.db.WithContext(ctx)

	req, err := loadRequest(tx, op, requestID)
	if err != nil {
		return nil, err
	}
	if req.LinkedInitiativeID != nil {
		item, err := loadItem(tx, op, *req.LinkedInitiativeID)
		if err != nil {
			return nil, err
		}
		return &Result{Item: item, AlreadyDone: true, Note: "request already converted to " + item.ID}, nil
	}

	var owner models.Person
	if err := tx.Where("id = ?", ownerID).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "person", ownerID)
		}
		return nil, apperr.Store(op, err)
	}
	if ownerName == "" {
		ownerName = owner.Name
	}

	role := OwnerRole
	item := &models.WorkItem{
		ID:                  uuid.NewString(),
		OwnerID:             owner.ID,
		OwnerName:           ownerName,
		Name:                req.Title + " - Governance Prep",
		Category:            GovernanceCategory,
		Status:              PrepStatus,
		Role:                &role,
		WorkEffort:          req.WorkEffort,
		GovernanceRequestID: &req.ID,
	}
	res := &Result{Item: item}
	if err := tx.Create(item).Error; err != nil {
		if !db.IsDuplicateKey(err) {
			return nil, apperr.Store(op, fmt.Errorf("create work item: %w", err))
		}
		var existing models.WorkItem
		if err := tx.Where("governance_request_id = ?", req.ID).First(&existing).Error; err != nil {
			return nil, apperr.Store(op, fmt.Errorf("load converted item: %w", err))
		}
		res = &Result{Item: &existing, AlreadyDone: true, Note: "request already converted to " + existing.ID}
	}

	// Only an unlinked request takes the link, so it is written at most once.
	now := s.now().UTC()
	if err := tx.Model(&models.GovernanceRequest{}).
		Where("id = ? AND linked_initiative_id IS NULL", req.ID).
		Updates(map[string]interface{}{
			"linked_initiative_id": res.Item.ID,
			"converted_at":         now,
			"converted_by":         ownerName,
		}).Error; err != nil {
		return nil, apperr.Store(op, fmt.Errorf("link request: %w", err))
	}
	if res.AlreadyDone {
		return res, nil
	}

	if err := capacity.IncrementWorkType(tx, owner.ID, GovernanceCategory); err != nil {
		s.log.Warn("conversion: work type count not updated",
			zap.String("request_id", req.ID), zap.Error(err))
	}
	s.log.Info("conversion: phase 1 complete",
		zap.String("request", req.RequestCode),
		zap.String("work_item_id", item.ID),
		zap.String("owner_id", owner.ID))
	s.recomputeOwner(ctx, owner.ID)
	return res, nil
}

// EnrichWorkItem is Phase 2. It moves the linked item into discovery and
// copies the request's detail onto it. The story and financial rows are
// upserted by work item and the metric rows are replaced, so running it
// again never duplicates them. The sub-steps are independent: each failure
// is logged and listed in FailedSteps while the others still run, and the
// returned error then reports the failures alongside a non-nil Result.
func (s *Service) EnrichWorkItem(ctx context.Context, requestID string) (*Result, error) {
	const op = "conversion: phase 2"
	tx := s.db.WithContext(ctx)

	req, err := loadRequest(tx, op, requestID)
	if err != nil {
		return nil, err
	}
	if req.LinkedInitiativeID == nil {
		return nil, apperr.Dependency(op, "phase 1 required: request %s has no linked work item", req.RequestCode)
	}
	item, err := loadItem(tx, op, *req.LinkedInitiativeID)
	if err != nil {
		return nil, err
	}

	phase := DiscoveryPhase
	item.Status = EnrichedStatus
	item.Phase = &phase
	item.Detail = req.Detail
	if item.WorkEffort == nil {
		item.WorkEffort = req.WorkEffort
	}
	if err := tx.Save(item).Error; err != nil {
		return nil, apperr.Store(op, fmt.Errorf("update work item: %w", err))
	}

	res := &Result{Item: item}
	var errs []error
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			s.log.Warn("conversion: enrichment step failed",
				zap.String("step", name),
				zap.String("request_id", req.ID),
				zap.String("work_item_id", item.ID),
				zap.Error(err))
			res.FailedSteps = append(res.FailedSteps, name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("story", func() error { return upsertStory(tx, item.ID, req) })
	if hasFinancial(req) {
		step("financial", func() error { return upsertFinancial(tx, item.ID, req) })
	}
	if len(req.ImpactMetrics) > 0 {
		step("metrics", func() error { return replaceMetrics(tx, item.ID, req.ImpactMetrics) })
	}

	s.log.Info("conversion: phase 2 complete",
		zap.String("request", req.RequestCode),
		zap.String("work_item_id", item.ID),
		zap.Strings("failed_steps", res.FailedSteps))
	s.recomputeOwner(ctx, item.OwnerID)

	if len(errs) > 0 {
		return res, apperr.Store(op, errors.Join(errs...))
	}
	return res, nil
}

// Complete moves the linked item from governance prep to execution. A
// request without a linked item is left alone and yields a nil Result.
func (s *Service) Complete(ctx context.Context, requestID string) (*Result, error) {
	const op = "conversion: complete"
	tx := s.db.WithContext(ctx)

	req, err := loadRequest(tx, op, requestID)
	if err != nil {
		return nil, err
	}
	if req.LinkedInitiativeID == nil {
		return nil, nil
	}
	item, err := loadItem(tx, op, *req.LinkedInitiativeID)
	if err != nil {
		return nil, err
	}

	from := item.Category
	phase := ExecutionPhase
	item.Status = CompletedStatus
	item.Category = ExecutionCategory
	item.Phase = &phase
	item.Name = req.Title
	if err := tx.Save(item).Error; err != nil {
		return nil, apperr.Store(op, fmt.Errorf("update work item: %w", err))
	}
	if from == GovernanceCategory {
		if err := capacity.MoveWorkType(tx, item.OwnerID, GovernanceCategory, ExecutionCategory); err != nil {
			s.log.Warn("conversion: work type count not moved",
				zap.String("work_item_id", item.ID), zap.Error(err))
		}
	}
	s.recomputeOwner(ctx, item.OwnerID)
	return &Result{Item: item}, nil
}

func (s *Service) recomputeOwner(ctx context.Context, personID string) {
	if s.recompute != nil {
		s.recompute.RecomputeAdvisory(ctx, personID)
	}
}

func hasFinancial(req *models.GovernanceRequest) bool {
	return req.FinancialImpact != nil || req.ProjectionBasis != "" ||
		req.CalculationMethodology != "" || len(req.KeyAssumptions) > 0
}

func upsertStory(tx *gorm.DB, itemID string, req *models.GovernanceRequest) error {
	row := &models.WorkItemStory{
		ID:         uuid.NewString(),
		WorkItemID: itemID,
		Challenge:  req.Detail.ProblemStatement,
		Outcome:    req.Detail.DesiredOutcomes,
	}
	return db.UpsertByKey(tx, row, []string{"work_item_id"}, []string{"challenge", "outcome", "updated_at"})
}

func upsertFinancial(tx *gorm.DB, itemID string, req *models.GovernanceRequest) error {
	row := &models.WorkItemFinancial{
		ID:                     uuid.NewString(),
		WorkItemID:             itemID,
		ProjectedAnnual:        req.FinancialImpact,
		ProjectionBasis:        req.ProjectionBasis,
		CalculationMethodology: req.CalculationMethodology,
		KeyAssumptions:         req.KeyAssumptions,
	}
	return db.UpsertByKey(tx, row, []string{"work_item_id"}, []string{
		"projected_annual", "projection_basis", "calculation_methodology", "key_assumptions", "updated_at",
	})
}

// replaceMetrics swaps the item's metric rows for the request's list.
// Metrics are positional, so there is nothing to match rows on.
func replaceMetrics(tx *gorm.DB, itemID string, metrics []models.ImpactMetric) error {
	return tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("work_item_id = ?", itemID).Delete(&models.WorkItemMetric{}).Error; err != nil {
			return err
		}
		rows := make([]models.WorkItemMetric, len(metrics))
		for i, m := range metrics {
			rows[i] = models.WorkItemMetric{
				WorkItemID:        itemID,
				MetricName:        m.MetricName,
				MetricType:        m.MetricType,
				Unit:              m.Unit,
				BaselineValue:     m.BaselineValue,
				CurrentValue:      m.CurrentValue,
				TargetValue:       m.TargetValue,
				Improvement:       m.Improvement,
				MeasurementMethod: m.MeasurementMethod,
				DisplayOrder:      i,
			}
		}
		return tx.Create(&rows).Error
	})
}

func loadRequest(tx *gorm.DB, op, id string) (*models.GovernanceRequest, error) {
	var req models.GovernanceRequest
	if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "governance request", id)
		}
		return nil, apperr.Store(op, err)
	}
	return &req, nil
}

// loadItem treats a missing linked item as an integrity violation rather
// than re-creating it.
func loadItem(tx *gorm.DB, op, id string) (*models.WorkItem, error) {
	var item models.WorkItem
	if err := tx.Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "linked work item", id)
		}
		return nil, apperr.Store(op, err)
	}
	return &item, nil
}
