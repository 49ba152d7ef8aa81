package models

import "time"

// WorkItem is a unit of trackable work owned by exactly one person.
type WorkItem struct {
	ID                  string   `gorm:"primaryKey;size:36" json:"id"`
	OwnerID             string   `gorm:"size:36;not null;index" json:"owner_id"`
	OwnerName           string   `gorm:"size:128" json:"owner_name"`
	Name                string   `gorm:"not null" json:"name"`
	Category            string   `gorm:"size:64;index" json:"category"`
	Status              string   `gorm:"size:32;index" json:"status"`
	Phase               *string  `gorm:"size:64" json:"phase,omitempty"`
	WorkEffort          *string  `gorm:"size:8" json:"work_effort,omitempty"`
	Role                *string  `gorm:"size:32" json:"role,omitempty"`
	DirectHoursPerWeek  *float64 `json:"direct_hours_per_week,omitempty"`
	GovernanceRequestID *string  `gorm:"size:36;uniqueIndex" json:"governance_request_id,omitempty"`

	Detail RequestDetail `gorm:"embedded" json:"detail"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequestDetail is the descriptive, stakeholder and compliance-impact block
// shared by a governance request and the work item it converts into.
type RequestDetail struct {
	DivisionRegion     string     `gorm:"size:64" json:"division_region,omitempty"`
	SubmitterName      string     `gorm:"size:128" json:"submitter_name,omitempty"`
	SubmitterEmail     string     `gorm:"size:255" json:"submitter_email,omitempty"`
	ProblemStatement   string     `gorm:"type:text" json:"problem_statement,omitempty"`
	DesiredOutcomes    string     `gorm:"type:text" json:"desired_outcomes,omitempty"`
	SponsorName        string     `gorm:"size:128" json:"sponsor_name,omitempty"`
	ValueStatement     string     `gorm:"type:text" json:"value_statement,omitempty"`
	ComplianceValue    string     `gorm:"type:text" json:"compliance_value,omitempty"`
	TargetTimeline     string     `gorm:"size:128" json:"target_timeline,omitempty"`
	EstimatedScope     string     `gorm:"type:text" json:"estimated_scope,omitempty"`
	RequiredDate       *time.Time `json:"required_date,omitempty"`
	RequiredDateReason string     `gorm:"type:text" json:"required_date_reason,omitempty"`
	AdditionalComments string     `gorm:"type:text" json:"additional_comments,omitempty"`
	RegionsImpacted    string     `gorm:"type:text" json:"regions_impacted,omitempty"`

	ImpactBoardGoal     bool   `json:"impact_board_goal"`
	ImpactStrategicPlan bool   `json:"impact_strategic_plan"`
	ImpactSystemPolicy  bool   `json:"impact_system_policy"`
	ImpactPatientSafety bool   `json:"impact_patient_safety"`
	ImpactRegulatory    bool   `json:"impact_regulatory"`
	ImpactFinancial     bool   `json:"impact_financial"`
	ImpactOther         string `gorm:"type:text" json:"impact_other,omitempty"`

	GroupsNurses         bool   `json:"groups_nurses"`
	GroupsPhysicians     bool   `json:"groups_physicians"`
	GroupsTherapies      bool   `json:"groups_therapies"`
	GroupsLab            bool   `json:"groups_lab"`
	GroupsPharmacy       bool   `json:"groups_pharmacy"`
	GroupsRadiology      bool   `json:"groups_radiology"`
	GroupsAdministration bool   `json:"groups_administration"`
	GroupsOther          string `gorm:"size:255" json:"groups_other,omitempty"`
}

// WorkItemStory is the narrative attached to a converted work item.
type WorkItemStory struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	WorkItemID          string    `gorm:"size:36;not null;uniqueIndex" json:"work_item_id"`
	Challenge           string    `gorm:"type:text" json:"challenge,omitempty"`
	Approach            string    `gorm:"type:text" json:"approach,omitempty"`
	Outcome             string    `gorm:"type:text" json:"outcome,omitempty"`
	CollaborationDetail string    `gorm:"type:text" json:"collaboration_detail,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// WorkItemFinancial holds the projected and actual financial impact.
type WorkItemFinancial struct {
	ID                     string    `gorm:"primaryKey;size:36" json:"id"`
	WorkItemID             string    `gorm:"size:36;not null;uniqueIndex" json:"work_item_id"`
	ProjectedAnnual        *float64  `json:"projected_annual,omitempty"`
	ProjectionBasis        string    `gorm:"type:text" json:"projection_basis,omitempty"`
	CalculationMethodology string    `gorm:"type:text" json:"calculation_methodology,omitempty"`
	KeyAssumptions         []string  `gorm:"type:text;serializer:json" json:"key_assumptions,omitempty"`
	ActualRevenue          *float64  `json:"actual_revenue,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// WorkItemMetric is one positionally ordered impact metric.
type WorkItemMetric struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkItemID        string    `gorm:"size:36;not null;index" json:"work_item_id"`
	MetricName        string    `gorm:"size:255;not null" json:"metric_name"`
	MetricType        string    `gorm:"size:64" json:"metric_type,omitempty"`
	Unit              string    `gorm:"size:64" json:"unit,omitempty"`
	BaselineValue     *float64  `json:"baseline_value,omitempty"`
	CurrentValue      *float64  `json:"current_value,omitempty"`
	TargetValue       *float64  `json:"target_value,omitempty"`
	Improvement       string    `gorm:"size:255" json:"improvement,omitempty"`
	MeasurementMethod string    `gorm:"type:text" json:"measurement_method,omitempty"`
	DisplayOrder      int       `json:"display_order"`
	CreatedAt         time.Time `json:"created_at"`
}
