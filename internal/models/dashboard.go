package models

import "time"

// DashboardMetrics caches the latest capacity computation for a person.
type DashboardMetrics struct {
	PersonID          string    `gorm:"primaryKey;size:36" json:"person_id"`
	TotalAssignments  int       `json:"total_assignments"`
	ActiveAssignments int       `json:"active_assignments"`
	PlannedHours      float64   `json:"planned_hours"`
	ActualHours       float64   `json:"actual_hours"`
	AvailableHours    float64   `json:"available_hours"`
	Utilization       float64   `json:"capacity_utilization"`
	Band              string    `gorm:"size:16" json:"capacity_band"`
	DataQuality       float64   `json:"data_quality"`
	StatusText        string    `gorm:"size:255" json:"capacity_status"`
	WeightsVersion    uint64    `json:"weights_version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// WorkTypeSummary counts a person's work items per category.
type WorkTypeSummary struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID string `gorm:"size:36;not null;uniqueIndex:idx_work_type_person" json:"person_id"`
	WorkType string `gorm:"size:64;not null;uniqueIndex:idx_work_type_person" json:"work_type"`
	Count    int    `json:"count"`
}
