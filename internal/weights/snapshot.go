// Package weights holds the scoring weight configuration and applies
// drafted changes to it atomically.
package weights

import (
	"sort"

	"github.com/zulandar/workyard/internal/models"
)

// Config types.
const (
	EffortSize        = "effort_size"
	RoleWeight        = "role_weight"
	WorkTypeWeight    = "work_type_weight"
	PhaseWeight       = "phase_weight"
	CapacityThreshold = "capacity_threshold"
)

// ConfigTypes lists every valid config type in display order.
var ConfigTypes = []string{EffortSize, RoleWeight, WorkTypeWeight, PhaseWeight, CapacityThreshold}

// Threshold keys within CapacityThreshold.
const (
	ThresholdNear = "near"
	ThresholdAt   = "at"
	ThresholdOver = "over"
)

// DefaultThresholds apply when no capacity_threshold rows exist.
var DefaultThresholds = Thresholds{Near: 0.60, At: 0.75, Over: 0.85, HasNear: true}

// IsConfigType reports whether t is a known config type.
func IsConfigType(t string) bool {
	for _, ct := range ConfigTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// Thresholds are the minimum utilization fractions for each band.
type Thresholds struct {
	Near    float64 `json:"near"`
	At      float64 `json:"at"`
	Over    float64 `json:"over"`
	HasNear bool    `json:"has_near"`
}

// Snapshot is an immutable view of one applied weight set. Version
// increases with every applied draft.
type Snapshot struct {
	Version uint64
	rows    []models.WeightConfig
	values  map[string]map[string]float64
}

// NewSnapshot indexes rows. The rows slice is copied.
func NewSnapshot(version uint64, rows []models.WeightConfig) *Snapshot {
	s := &Snapshot{
		Version: version,
		rows:    append([]models.WeightConfig(nil), rows...),
		values:  make(map[string]map[string]float64),
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		a, b := s.rows[i], s.rows[j]
		if a.ConfigType != b.ConfigType {
			return typeOrder(a.ConfigType) < typeOrder(b.ConfigType)
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.Key < b.Key
	})
	for _, r := range s.rows {
		m, ok := s.values[r.ConfigType]
		if !ok {
			m = make(map[string]float64)
			s.values[r.ConfigType] = m
		}
		m[r.Key] = r.Value
	}
	return s
}

func typeOrder(t string) int {
	for i, ct := range ConfigTypes {
		if ct == t {
			return i
		}
	}
	return len(ConfigTypes)
}

// Value looks up a weight. ok is false when the key is not configured.
func (s *Snapshot) Value(configType, key string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.values[configType][key]
	return v, ok
}

// List returns the rows of one config type, or all rows when configType is
// empty.
func (s *Snapshot) List(configType string) []models.WeightConfig {
	if s == nil {
		return nil
	}
	out := make([]models.WeightConfig, 0, len(s.rows))
	for _, r := range s.rows {
		if configType == "" || r.ConfigType == configType {
			out = append(out, r)
		}
	}
	return out
}

// Thresholds returns the configured band cut points. Missing "at" or
// "over" keys fall back to DefaultThresholds; a missing "near" key means
// the near band is not modeled.
func (s *Snapshot) Thresholds() Thresholds {
	if s == nil || len(s.values[CapacityThreshold]) == 0 {
		return DefaultThresholds
	}
	th := DefaultThresholds
	m := s.values[CapacityThreshold]
	if v, ok := m[ThresholdAt]; ok {
		th.At = v
	}
	if v, ok := m[ThresholdOver]; ok {
		th.Over = v
	}
	th.Near, th.HasNear = m[ThresholdNear]
	return th
}
