package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/conversion"
	"github.com/zulandar/workyard/internal/logging"
	"github.com/zulandar/workyard/internal/models"
	"github.com/zulandar/workyard/internal/notify"
)

// Machine applies status transitions and owns their side effects. It is
// the only component that runs conversion phases.
type Machine struct {
	db   *gorm.DB
	conv *conversion.Service
	pub  notify.Publisher
	log  *zap.Logger
	now  func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(l *zap.Logger) Option { return func(m *Machine) { m.log = l } }

// WithPublisher sets where transition events are published.
func WithPublisher(p notify.Publisher) Option { return func(m *Machine) { m.pub = p } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

// NewMachine creates a Machine.
func NewMachine(gdb *gorm.DB, conv *conversion.Service, opts ...Option) *Machine {
	m := &Machine{db: gdb, conv: conv, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	m.log = logging.OrNop(m.log)
	return m
}

// Outcome reports a committed transition or assignment and any conversion
// it ran.
type Outcome struct {
	Request    *models.GovernanceRequest `json:"request"`
	From       string                    `json:"from"`
	To         string                    `json:"to"`
	NextStates []string                  `json:"next_states"`
	Phase1     *conversion.Result        `json:"phase1,omitempty"`
	Phase2     *conversion.Result        `json:"phase2,omitempty"`
	Completed  *conversion.Result        `json:"completed,omitempty"`
	Notes      []string                  `json:"notes,omitempty"`
}

// Create saves a new Draft request stamped with the machine's clock.
func (m *Machine) Create(ctx context.Context, opts CreateOpts) (*models.GovernanceRequest, error) {
	req, err := Create(m.db.WithContext(ctx), opts, m.now())
	if err != nil {
		return nil, err
	}
	m.log.Info("governance: request created", zap.String("request", req.RequestCode))
	return req, nil
}

// Transition moves a request to target. An illegal transition, or a
// submission missing required fields, fails with a validation error and
// leaves the request unchanged.
//
// Once the status is committed the transition's side effects run: entering
// Ready for Review with an owner runs phase 1, entering Ready for
// Governance runs phase 2, and Completed moves the linked item into
// execution. A side-effect failure does not undo the status change; it is
// returned as the error together with a non-nil Outcome.
func (m *Machine) Transition(ctx context.Context, id, target, actor string) (*Outcome, error) {
	const op = "governance: transition"
	tx := m.db.WithContext(ctx)

	req, err := Get(tx, id)
	if err != nil {
		return nil, err
	}
	from := req.Status
	if !isValidTransition(from, target) {
		return nil, apperr.Validation(op, "invalid status transition from %q to %q; valid transitions: %v",
			from, target, NextStates(from))
	}
	if target == StatusReadyForReview {
		if err := checkSubmission(op, req); err != nil {
			return nil, err
		}
	}

	now := m.now().UTC()
	updates := map[string]interface{}{"status": target, "updated_at": now}
	if actor != "" {
		updates["last_updated_by"] = actor
	}
	switch target {
	case StatusReadyForReview:
		if req.SubmittedDate == nil {
			updates["submitted_date"] = now
		}
	case StatusNeedsRefinement, StatusReadyForGovernance, StatusDismissed:
		updates["reviewed_date"] = now
	case StatusCompleted:
		updates["approved_date"] = now
		updates["completed_date"] = now
	}

	// Guard on the old status so two racing transitions cannot both apply.
	res := tx.Model(&models.GovernanceRequest{}).Where("id = ? AND status = ?", req.ID, from).Updates(updates)
	if res.Error != nil {
		return nil, apperr.Store(op, fmt.Errorf("update %s: %w", req.RequestCode, res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Validation(op, "request %s changed status concurrently; reload and retry", req.RequestCode)
	}
	m.log.Info("governance: status changed",
		zap.String("request", req.RequestCode),
		zap.String("from", from),
		zap.String("to", target),
		zap.String("actor", actor))

	out := &Outcome{From: from, To: target}
	effectErr := m.runEffects(ctx, req, target, out)

	if out.Request, err = Get(tx, req.ID); err != nil {
		return nil, err
	}
	out.NextStates = NextStates(out.Request.Status)
	m.publish(ctx, out, actor)
	return out, effectErr
}

func (m *Machine) runEffects(ctx context.Context, req *models.GovernanceRequest, target string, out *Outcome) error {
	var errs []error
	switch target {
	case StatusReadyForReview:
		switch {
		case req.LinkedInitiativeID != nil:
		case req.AssignedOwnerID == nil:
			out.Notes = append(out.Notes, "no owner assigned; work item is created on assignment")
		default:
			if err := m.phase1(ctx, req, out); err != nil {
				errs = append(errs, err)
			}
		}
	case StatusReadyForGovernance:
		switch {
		case req.LinkedInitiativeID == nil && req.AssignedOwnerID == nil:
			out.Notes = append(out.Notes, "awaiting owner assignment; details are copied once an owner is assigned")
		default:
			if err := m.convertFully(ctx, req, out); err != nil {
				errs = append(errs, err)
			}
		}
	case StatusCompleted:
		r, err := m.conv.Complete(ctx, req.ID)
		if err != nil {
			m.log.Warn("governance: completion side effect failed", zap.String("request", req.RequestCode), zap.Error(err))
			errs = append(errs, err)
		}
		out.Completed = r
	}
	return errors.Join(errs...)
}

// convertFully runs phase 1 when the request is not yet linked, then phase 2.
func (m *Machine) convertFully(ctx context.Context, req *models.GovernanceRequest, out *Outcome) error {
	if req.LinkedInitiativeID == nil {
		if err := m.phase1(ctx, req, out); err != nil {
			return err
		}
	}
	r, err := m.conv.EnrichWorkItem(ctx, req.ID)
	out.Phase2 = r
	if err != nil {
		m.log.Warn("governance: phase 2 failed", zap.String("request", req.RequestCode), zap.Error(err))
		return err
	}
	return nil
}

func (m *Machine) phase1(ctx context.Context, req *models.GovernanceRequest, out *Outcome) error {
	r, err := m.conv.CreateMinimalWorkItem(ctx, req.ID, *req.AssignedOwnerID, req.AssignedOwnerName)
	if err != nil {
		m.log.Warn("governance: phase 1 failed", zap.String("request", req.RequestCode), zap.Error(err))
		return err
	}
	out.Phase1 = r
	if r.AlreadyDone {
		out.Notes = append(out.Notes, r.Note)
	}
	return nil
}

// Assign sets the request's owner and, when given, its work effort. On a
// request already in Ready for Review the owner's work item is created at
// once; in Ready for Governance it is created and enriched.
func (m *Machine) Assign(ctx context.Context, id, ownerID, workEffort, actor string) (*Outcome, error) {
	const op = "governance: assign"
	tx := m.db.WithContext(ctx)

	req, err := Get(tx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(req.Status) {
		return nil, apperr.Validation(op, "request %s is %s; owners cannot be assigned", req.RequestCode, req.Status)
	}
	if req.LinkedInitiativeID != nil && req.AssignedOwnerID != nil && *req.AssignedOwnerID != ownerID {
		return nil, apperr.Validation(op, "request %s is already converted for another owner", req.RequestCode)
	}
	effort := optional(workEffort)
	if err := checkEffort(op, effort); err != nil {
		return nil, err
	}

	var owner models.Person
	if err := tx.Where("id = ?", ownerID).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "person", ownerID)
		}
		return nil, apperr.Store(op, err)
	}

	updates := map[string]interface{}{
		"assigned_owner_id":   owner.ID,
		"assigned_owner_name": owner.Name,
		"assigned_role":       conversion.OwnerRole,
		"updated_at":          m.now().UTC(),
	}
	if effort != nil {
		updates["work_effort"] = *effort
	}
	if actor != "" {
		updates["last_updated_by"] = actor
	}
	if err := tx.Model(&models.GovernanceRequest{}).Where("id = ?", req.ID).Updates(updates).Error; err != nil {
		return nil, apperr.Store(op, fmt.Errorf("assign %s: %w", req.RequestCode, err))
	}
	m.log.Info("governance: owner assigned",
		zap.String("request", req.RequestCode),
		zap.String("owner_id", owner.ID))

	if req, err = Get(tx, req.ID); err != nil {
		return nil, err
	}
	out := &Outcome{From: req.Status, To: req.Status}
	var effectErr error
	switch {
	case req.Status == StatusReadyForReview && req.LinkedInitiativeID == nil:
		effectErr = m.phase1(ctx, req, out)
	case req.Status == StatusReadyForGovernance:
		effectErr = m.convertFully(ctx, req, out)
	}

	if out.Request, err = Get(tx, req.ID); err != nil {
		return nil, err
	}
	out.NextStates = NextStates(out.Request.Status)
	return out, effectErr
}

func (m *Machine) publish(ctx context.Context, out *Outcome, actor string) {
	if m.pub == nil {
		return
	}
	t := notify.Transition{
		Code:  out.Request.RequestCode,
		Title: out.Request.Title,
		From:  out.From,
		To:    out.To,
		Actor: actor,
		Owner: out.Request.AssignedOwnerName,
	}
	switch {
	case out.Phase2 != nil && out.Phase2.Item != nil:
		t.Converted, t.WorkItem = "phase 2", out.Phase2.Item.ID
	case out.Phase1 != nil && !out.Phase1.AlreadyDone:
		t.Converted, t.WorkItem = "phase 1", out.Phase1.Item.ID
	}
	m.pub.Publish(ctx, notify.TransitionEvent(t))
}
