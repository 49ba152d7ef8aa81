package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/db"
	"github.com/zulandar/workyard/internal/models"
	"github.com/zulandar/workyard/internal/weights"
)

// Team is a roll-up together with the snapshots it was built from.
type Team struct {
	Summary Snapshot   `json:"summary"`
	Members []Snapshot `json:"members"`
}

// Service computes snapshots from the record store.
type Service struct {
	db      *gorm.DB
	weights *weights.Store
	opts    Options
	log     *zap.Logger
}

// NewService creates a capacity service.
func NewService(gdb *gorm.DB, ws *weights.Store, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: gdb, weights: ws, opts: opts, log: log}
}

// ForPerson computes the live snapshot for one person.
func (s *Service) ForPerson(ctx context.Context, personID string) (Snapshot, error) {
	snap, err := s.weights.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	tx := s.db.WithContext(ctx)

	var p models.Person
	if err := tx.Where("id = ?", personID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{}, apperr.NotFound("capacity.ForPerson", "person", personID)
		}
		return Snapshot{}, apperr.Store("capacity.ForPerson", err)
	}
	members, err := s.load(tx, snap, []models.Person{p})
	if err != nil {
		return Snapshot{}, apperr.Store("capacity.ForPerson", err)
	}
	return members[0], nil
}

// ForManager rolls up every direct report of a manager.
func (s *Service) ForManager(ctx context.Context, managerID string) (Team, error) {
	snap, err := s.weights.Snapshot(ctx)
	if err != nil {
		return Team{}, err
	}
	tx := s.db.WithContext(ctx)

	var m models.Manager
	if err := tx.Where("id = ?", managerID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Team{}, apperr.NotFound("capacity.ForManager", "manager", managerID)
		}
		return Team{}, apperr.Store("capacity.ForManager", err)
	}
	var reports []models.Person
	if err := tx.Where("manager_id = ?", managerID).Order("name").Find(&reports).Error; err != nil {
		return Team{}, apperr.Store("capacity.ForManager", err)
	}
	members, err := s.load(tx, snap, reports)
	if err != nil {
		return Team{}, apperr.Store("capacity.ForManager", err)
	}
	return Team{Summary: Rollup(m.Name, members, snap.Thresholds()), Members: members}, nil
}

// ForOrg rolls up everyone.
func (s *Service) ForOrg(ctx context.Context) (Team, error) {
	snap, err := s.weights.Snapshot(ctx)
	if err != nil {
		return Team{}, err
	}
	tx := s.db.WithContext(ctx)

	var everyone []models.Person
	if err := tx.Order("name").Find(&everyone).Error; err != nil {
		return Team{}, apperr.Store("capacity.ForOrg", err)
	}
	members, err := s.load(tx, snap, everyone)
	if err != nil {
		return Team{}, apperr.Store("capacity.ForOrg", err)
	}
	return Team{Summary: Rollup("Organization", members, snap.Thresholds()), Members: members}, nil
}

// ManagerTeams rolls up every manager in name order.
func (s *Service) ManagerTeams(ctx context.Context) ([]Team, error) {
	var managers []models.Manager
	if err := s.db.WithContext(ctx).Order("name").Find(&managers).Error; err != nil {
		return nil, apperr.Store("capacity.ManagerTeams", err)
	}
	teams := make([]Team, 0, len(managers))
	for _, m := range managers {
		t, err := s.ForManager(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, nil
}

// load fetches items and logs for people in two queries and aggregates each.
func (s *Service) load(tx *gorm.DB, snap *weights.Snapshot, people []models.Person) ([]Snapshot, error) {
	if len(people) == 0 {
		return []Snapshot{}, nil
	}
	ids := make([]string, len(people))
	for i, p := range people {
		ids[i] = p.ID
	}

	var items []models.WorkItem
	if err := tx.Where("owner_id IN ?", ids).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load work items: %w", err)
	}
	var logs []models.TimeLog
	if err := tx.Where("person_id IN ?", ids).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("load time logs: %w", err)
	}

	itemsBy := make(map[string][]models.WorkItem)
	for _, it := range items {
		itemsBy[it.OwnerID] = append(itemsBy[it.OwnerID], it)
	}
	logsBy := make(map[string][]models.TimeLog)
	for _, l := range logs {
		logsBy[l.PersonID] = append(logsBy[l.PersonID], l)
	}

	out := make([]Snapshot, len(people))
	for i, p := range people {
		out[i] = Aggregate(p, itemsBy[p.ID], snap, logsBy[p.ID], s.opts)
	}
	return out, nil
}

// Recompute refreshes the cached metrics row for a person.
func (s *Service) Recompute(ctx context.Context, personID string) (*models.DashboardMetrics, error) {
	snap, err := s.ForPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	row := &models.DashboardMetrics{
		PersonID:          personID,
		TotalAssignments:  snap.TotalAssignments,
		ActiveAssignments: snap.ActiveAssignments,
		PlannedHours:      snap.PlannedHours,
		ActualHours:       snap.ActualHours,
		AvailableHours:    snap.AvailableHours - snap.PlannedHours,
		Utilization:       snap.Utilization,
		Band:              string(snap.Band),
		DataQuality:       snap.DataQuality,
		StatusText:        FormatStatus(snap),
		WeightsVersion:    snap.WeightsVersion,
		UpdatedAt:         time.Now().UTC(),
	}
	err = db.UpsertByKey(s.db.WithContext(ctx), row, []string{"person_id"}, []string{
		"total_assignments", "active_assignments", "planned_hours", "actual_hours",
		"available_hours", "utilization", "band", "data_quality", "status_text",
		"weights_version", "updated_at",
	})
	if err != nil {
		return nil, apperr.Store("capacity.Recompute", err)
	}
	s.log.Debug("capacity recomputed",
		zap.String("person_id", personID),
		zap.Float64("utilization", snap.Utilization),
		zap.String("band", string(snap.Band)),
	)
	return row, nil
}

// RecomputeAdvisory runs Recompute and only logs a failure.
func (s *Service) RecomputeAdvisory(ctx context.Context, personID string) {
	if _, err := s.Recompute(ctx, personID); err != nil {
		s.log.Warn("advisory capacity recompute failed",
			zap.String("person_id", personID), zap.Error(err))
	}
}

// Metrics returns the cached row, recomputing it when missing or computed
// under an older weight version.
func (s *Service) Metrics(ctx context.Context, personID string) (*models.DashboardMetrics, error) {
	snap, err := s.weights.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var row models.DashboardMetrics
	err = s.db.WithContext(ctx).Where("person_id = ?", personID).First(&row).Error
	switch {
	case err == nil && row.WeightsVersion == snap.Version:
		return &row, nil
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		return s.Recompute(ctx, personID)
	default:
		return nil, apperr.Store("capacity.Metrics", err)
	}
}
