package models

import "time"

// TimeLog is the hours a person spent on a work item during one week.
type TimeLog struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	WorkItemID    string    `gorm:"size:36;not null;uniqueIndex:idx_time_log_week" json:"work_item_id"`
	PersonID      string    `gorm:"size:36;not null;uniqueIndex:idx_time_log_week;index" json:"person_id"`
	WeekStartDate string    `gorm:"size:10;not null;uniqueIndex:idx_time_log_week" json:"week_start_date"`
	HoursSpent    float64   `json:"hours_spent"`
	EffortSize    string    `gorm:"size:8" json:"effort_size,omitempty"`
	Note          string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
