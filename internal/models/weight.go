package models

import "time"

// WeightConfig is one named, typed scalar used by the scoring formula.
type WeightConfig struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	ConfigType   string    `gorm:"size:32;not null;uniqueIndex:idx_weight_type_key" json:"config_type"`
	Key          string    `gorm:"column:weight_key;size:64;not null;uniqueIndex:idx_weight_type_key" json:"key"`
	Value        float64   `gorm:"not null" json:"value"`
	Label        string    `gorm:"size:128" json:"label"`
	DisplayOrder int       `json:"display_order"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WeightRevision records one applied draft. The highest ID is the current
// weights version.
type WeightRevision struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	AppliedBy string    `gorm:"size:128" json:"applied_by"`
	Changes   int       `json:"changes"`
	CreatedAt time.Time `json:"created_at"`
}
