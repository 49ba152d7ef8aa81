package weights

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/logging"
	"github.com/zulandar/workyard/internal/models"
)

// Store reads and applies weight configuration. The applied set is cached
// as a Snapshot keyed by the latest WeightRevision ID, so a revision written
// by any process invalidates it on the next read.
type Store struct {
	db  *gorm.DB
	log *zap.Logger

	mu  sync.Mutex // serializes ApplyDraft batches
	cur atomic.Pointer[Snapshot]
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates a Store backed by db.
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, o := range opts {
		o(s)
	}
	s.log = logging.OrNop(s.log)
	return s
}

// Snapshot returns the last successfully applied weight set.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	const op = "weights: snapshot"
	tx := s.db.WithContext(ctx)
	rev, err := revision(tx)
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	if cur := s.cur.Load(); cur != nil && cur.Version == rev {
		return cur, nil
	}
	var rows []models.WeightConfig
	if err := tx.Find(&rows).Error; err != nil {
		return nil, apperr.Store(op, err)
	}
	snap := NewSnapshot(rev, rows)
	s.cur.Store(snap)
	return snap, nil
}

// List implements listWeights: the applied rows of one config type, or all
// rows when configType is empty.
func (s *Store) List(ctx context.Context, configType string) ([]models.WeightConfig, error) {
	if configType != "" && !IsConfigType(configType) {
		return nil, apperr.Validation("weights: list", "unknown config type %q", configType)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.List(configType), nil
}

// ApplyDraft writes every change in one transaction. If any change is
// invalid or any write fails, nothing is applied and the previous snapshot
// stays current.
func (s *Store) ApplyDraft(ctx context.Context, changes map[string]float64, actor string) (*Snapshot, error) {
	const op = "weights: apply draft"
	if len(changes) == 0 {
		return nil, apperr.Validation(op, "draft has no changes")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var next *Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.WeightConfig
		if err := tx.Find(&rows).Error; err != nil {
			return apperr.Store(op, err)
		}
		staged, err := stage(rows, changes)
		if err != nil {
			return apperr.Validation(op, "%v", err)
		}
		for _, id := range ids {
			if err := tx.Model(&models.WeightConfig{}).Where("id = ?", id).Update("value", changes[id]).Error; err != nil {
				return apperr.Store(op, fmt.Errorf("update %s: %w", id, err))
			}
		}
		rev := models.WeightRevision{AppliedBy: actor, Changes: len(changes)}
		if err := tx.Create(&rev).Error; err != nil {
			return apperr.Store(op, fmt.Errorf("record revision: %w", err))
		}
		next = NewSnapshot(uint64(rev.ID), staged)
		return nil
	})
	if err != nil {
		s.log.Warn("weights draft rejected", zap.Int("changes", len(changes)), zap.Error(err))
		return nil, err
	}

	s.cur.Store(next)
	s.log.Info("weights draft applied",
		zap.Uint64("version", next.Version),
		zap.Int("changes", len(changes)),
		zap.String("actor", actor))
	return next, nil
}

func revision(tx *gorm.DB) (uint64, error) {
	var rev uint64
	if err := tx.Model(&models.WeightRevision{}).Select("COALESCE(MAX(id), 0)").Scan(&rev).Error; err != nil {
		return 0, err
	}
	return rev, nil
}
