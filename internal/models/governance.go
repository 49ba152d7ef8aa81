package models

import "time"

// GovernanceRequest is an intake submission that may convert into a work item.
type GovernanceRequest struct {
	ID                string  `gorm:"primaryKey;size:36" json:"id"`
	RequestCode       string  `gorm:"size:16;not null;uniqueIndex" json:"request_id"`
	Title             string  `gorm:"not null" json:"title"`
	Status            string  `gorm:"size:32;not null;index" json:"status"`
	AssignedOwnerID   *string `gorm:"size:36;index" json:"assigned_owner_id,omitempty"`
	AssignedOwnerName string  `gorm:"size:128" json:"assigned_owner_name,omitempty"`
	AssignedRole      string  `gorm:"size:32" json:"assigned_role,omitempty"`
	WorkEffort        *string `gorm:"size:8" json:"work_effort,omitempty"`

	Detail RequestDetail `gorm:"embedded" json:"detail"`

	FinancialImpact        *float64       `json:"financial_impact,omitempty"`
	ProjectionBasis        string         `gorm:"type:text" json:"projection_basis,omitempty"`
	CalculationMethodology string         `gorm:"type:text" json:"calculation_methodology,omitempty"`
	KeyAssumptions         []string       `gorm:"type:text;serializer:json" json:"key_assumptions,omitempty"`
	ImpactMetrics          []ImpactMetric `gorm:"type:text;serializer:json" json:"impact_metrics,omitempty"`

	LinkedInitiativeID *string    `gorm:"size:36" json:"linked_initiative_id,omitempty"`
	ConvertedAt        *time.Time `json:"converted_at,omitempty"`
	ConvertedBy        string     `gorm:"size:128" json:"converted_by,omitempty"`
	SubmittedDate      *time.Time `json:"submitted_date,omitempty"`
	ReviewedDate       *time.Time `json:"reviewed_date,omitempty"`
	ApprovedDate       *time.Time `json:"approved_date,omitempty"`
	CompletedDate      *time.Time `json:"completed_date,omitempty"`
	LastUpdatedBy      string     `gorm:"size:128" json:"last_updated_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Comments []GovernanceComment `gorm:"foreignKey:RequestID" json:"comments,omitempty"`
}

// ImpactMetric is a metric proposed on the request, stored inline and
// copied to WorkItemMetric rows during enrichment.
type ImpactMetric struct {
	MetricName        string   `json:"metric_name"`
	MetricType        string   `json:"metric_type,omitempty"`
	Unit              string   `json:"unit,omitempty"`
	BaselineValue     *float64 `json:"baseline_value,omitempty"`
	CurrentValue      *float64 `json:"current_value,omitempty"`
	TargetValue       *float64 `json:"target_value,omitempty"`
	Improvement       string   `json:"improvement,omitempty"`
	MeasurementMethod string   `json:"measurement_method,omitempty"`
}

// GovernanceComment is a review note on a request.
type GovernanceComment struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID  string    `gorm:"size:36;not null;index" json:"request_id"`
	AuthorName string    `gorm:"size:128;not null" json:"author_name"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
