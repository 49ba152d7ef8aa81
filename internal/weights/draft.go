package weights

import (
	"fmt"
	"math"

	"github.com/zulandar/workyard/internal/models"
)

// Draft collects pending changes against a base snapshot. It is private to
// its editor until applied.
type Draft struct {
	base    *Snapshot
	changes map[string]float64
}

// NewDraft starts an empty draft on top of base.
func NewDraft(base *Snapshot) *Draft {
	return &Draft{base: base, changes: make(map[string]float64)}
}

// Set stages a new value for the weight with the given ID.
func (d *Draft) Set(id string, value float64) {
	d.changes[id] = value
}

// Changes returns a copy of the staged changes.
func (d *Draft) Changes() map[string]float64 {
	out := make(map[string]float64, len(d.changes))
	for k, v := range d.changes {
		out[k] = v
	}
	return out
}

// Preview returns the base rows with the staged values applied.
func (d *Draft) Preview() ([]models.WeightConfig, error) {
	return stage(d.base.List(""), d.changes)
}

// stage copies rows and applies changes to the copy, validating every value
// and the resulting threshold order. rows is never modified.
func stage(rows []models.WeightConfig, changes map[string]float64) ([]models.WeightConfig, error) {
	staged := append([]models.WeightConfig(nil), rows...)
	index := make(map[string]int, len(staged))
	for i, r := range staged {
		index[r.ID] = i
	}
	for id, v := range changes {
		i, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("unknown weight %s", id)
		}
		if err := checkValue(staged[i].ConfigType, v); err != nil {
			return nil, fmt.Errorf("%s/%s: %w", staged[i].ConfigType, staged[i].Key, err)
		}
		staged[i].Value = v
	}
	if err := checkThresholdOrder(staged); err != nil {
		return nil, err
	}
	return staged, nil
}

func checkValue(configType string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("value must be finite")
	}
	if v < 0 {
		return fmt.Errorf("value %v must not be negative", v)
	}
	if configType == CapacityThreshold && v > 1 {
		return fmt.Errorf("threshold %v must be a fraction in [0,1]", v)
	}
	return nil
}

// checkThresholdOrder requires near <= at <= over among the keys present.
func checkThresholdOrder(rows []models.WeightConfig) error {
	th := NewSnapshot(0, rows).Thresholds()
	if th.At > th.Over {
		return fmt.Errorf("capacity thresholds out of order: at %v > over %v", th.At, th.Over)
	}
	if th.HasNear && th.Near > th.At {
		return fmt.Errorf("capacity thresholds out of order: near %v > at %v", th.Near, th.At)
	}
	return nil
}
