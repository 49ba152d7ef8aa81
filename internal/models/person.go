package models

import "time"

// Manager owns a group of reports for capacity roll-ups.
type Manager struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Reports []Person `gorm:"foreignKey:ManagerID" json:"reports,omitempty"`
}

// Person is a team member who owns work items.
type Person struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Name           string    `gorm:"size:128;not null;index" json:"name"`
	Email          string    `gorm:"size:255" json:"email,omitempty"`
	Title          string    `gorm:"size:128" json:"title,omitempty"`
	ManagerID      *string   `gorm:"size:36;index" json:"manager_id,omitempty"`
	AvailableHours float64   `gorm:"default:40" json:"available_hours"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
