// Package workitem provides work item entry and lookup.
package workitem

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/models"
)

// Statuses lists every work item status in lifecycle order.
var Statuses = []string{
	"Not Started", "Planning", "In Progress", "Active", "Scaling",
	"On Hold", "Completed", "Deprecated",
}

// Categories lists the work types an item may carry.
var Categories = []string{"Project", "System Initiative", "Ticket", "General Support", "Governance"}

// CreateOpts holds parameters for creating a work item.
type CreateOpts struct {
	OwnerID            string
	Name               string
	Category           string
	Status             string // defaults to Not Started
	Phase              string
	WorkEffort         string
	Role               string
	DirectHoursPerWeek *float64
}

// ListFilters holds optional filters for listing work items.
type ListFilters struct {
	OwnerID  string
	Status   string
	Category string
}

// StatusCount is one row of a status summary.
type StatusCount struct {
	Status string
	Count  int
}

// Full is a work item with its governance-derived records.
type Full struct {
	models.WorkItem
	Story     *models.WorkItemStory     `json:"story,omitempty"`
	Financial *models.WorkItemFinancial `json:"financial,omitempty"`
	Metrics   []models.WorkItemMetric   `json:"metrics,omitempty"`
}

// editable columns accepted by Update.
var editable = map[string]bool{
	"name": true, "category": true, "status": true, "phase": true,
	"work_effort": true, "role": true, "direct_hours_per_week": true,
}

// Create creates a work item for an existing owner.
func Create(db *gorm.DB, opts CreateOpts) (*models.WorkItem, error) {
	const op = "workitem.Create"
	if strings.TrimSpace(opts.Name) == "" {
		return nil, apperr.Validation(op, "name is required")
	}
	if opts.OwnerID == "" {
		return nil, apperr.Validation(op, "owner is required")
	}
	if opts.Status == "" {
		opts.Status = "Not Started"
	}
	if !contains(Statuses, opts.Status) {
		return nil, apperr.Validation(op, "status %q is not one of %v", opts.Status, Statuses)
	}
	if opts.DirectHoursPerWeek != nil && *opts.DirectHoursPerWeek < 0 {
		return nil, apperr.Validation(op, "direct hours per week must not be negative")
	}

	var owner models.Person
	if err := db.Where("id = ?", opts.OwnerID).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "person", opts.OwnerID)
		}
		return nil, apperr.Store(op, err)
	}

	item := models.WorkItem{
		ID:                 uuid.NewString(),
		OwnerID:            owner.ID,
		OwnerName:          owner.Name,
		Name:               opts.Name,
		Category:           opts.Category,
		Status:             opts.Status,
		Phase:              optional(opts.Phase),
		WorkEffort:         optional(opts.WorkEffort),
		Role:               optional(opts.Role),
		DirectHoursPerWeek: opts.DirectHoursPerWeek,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return apperr.Store(op, err)
		}
		return countWorkType(tx, item.OwnerID, item.Category)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Get retrieves a work item by ID.
func Get(db *gorm.DB, id string) (*models.WorkItem, error) {
	var item models.WorkItem
	if err := db.Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("workitem.Get", "work item", id)
		}
		return nil, apperr.Store("workitem.Get", fmt.Errorf("get %s: %w", id, err))
	}
	return &item, nil
}

// GetFull retrieves a work item with its story, financial row and metrics.
func GetFull(db *gorm.DB, id string) (*Full, error) {
	item, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	out := &Full{WorkItem: *item}

	var story models.WorkItemStory
	switch err := db.Where("work_item_id = ?", id).First(&story).Error; {
	case err == nil:
		out.Story = &story
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Store("workitem.GetFull", err)
	}
	var fin models.WorkItemFinancial
	switch err := db.Where("work_item_id = ?", id).First(&fin).Error; {
	case err == nil:
		out.Financial = &fin
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Store("workitem.GetFull", err)
	}
	if err := db.Where("work_item_id = ?", id).Order("display_order ASC").Find(&out.Metrics).Error; err != nil {
		return nil, apperr.Store("workitem.GetFull", err)
	}
	return out, nil
}

// List returns work items matching the filters, ordered by owner then name.
func List(db *gorm.DB, filters ListFilters) ([]models.WorkItem, error) {
	q := db.Model(&models.WorkItem{})
	if filters.OwnerID != "" {
		q = q.Where("owner_id = ?", filters.OwnerID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Category != "" {
		q = q.Where("category = ?", filters.Category)
	}

	var items []models.WorkItem
	if err := q.Order("owner_name ASC, name ASC").Find(&items).Error; err != nil {
		return nil, apperr.Store("workitem.List", err)
	}
	return items, nil
}

// Update modifies editable work item fields.
func Update(db *gorm.DB, id string, updates map[string]interface{}) error {
	const op = "workitem.Update"
	if len(updates) == 0 {
		return apperr.Validation(op, "no fields to update")
	}
	for k := range updates {
		if !editable[k] {
			return apperr.Validation(op, "field %q is not editable", k)
		}
	}
	if s, ok := updates["status"].(string); ok && !contains(Statuses, s) {
		return apperr.Validation(op, "status %q is not one of %v", s, Statuses)
	}
	item, err := Get(db, id)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WorkItem{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperr.Store(op, fmt.Errorf("update %s: %w", id, err))
		}
		if c, ok := updates["category"].(string); ok && c != item.Category {
			if err := uncountWorkType(tx, item.OwnerID, item.Category); err != nil {
				return err
			}
			return countWorkType(tx, item.OwnerID, c)
		}
		return nil
	})
}

// Reassignment is the result of moving a work item to a new owner.
type Reassignment struct {
	Item            *models.WorkItem `json:"item"`
	PreviousOwnerID string           `json:"previous_owner_id"`
}

// Reassign moves a work item to another person, optionally with a new role.
// An empty role keeps the current one. The work-type count moves with the
// item. Reassigning to the current owner and role is already done.
func Reassign(db *gorm.DB, id, newOwnerID, role string) (*Reassignment, error) {
	const op = "workitem.Reassign"
	if newOwnerID == "" {
		return nil, apperr.Validation(op, "new owner is required")
	}
	item, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	var owner models.Person
	if err := db.Where("id = ?", newOwnerID).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "person", newOwnerID)
		}
		return nil, apperr.Store(op, err)
	}
	if role == "" {
		role = deref(item.Role)
	}
	if owner.ID == item.OwnerID && role == deref(item.Role) {
		return nil, apperr.AlreadyDone(op, fmt.Sprintf("work item %s is already owned by %s", id, owner.Name))
	}

	prev := item.OwnerID
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WorkItem{}).Where("id = ?", id).Updates(map[string]interface{}{
			"owner_id":   owner.ID,
			"owner_name": owner.Name,
			"role":       optional(role),
		}).Error; err != nil {
			return apperr.Store(op, fmt.Errorf("reassign %s: %w", id, err))
		}
		if prev == owner.ID {
			return nil
		}
		if err := uncountWorkType(tx, prev, item.Category); err != nil {
			return err
		}
		return countWorkType(tx, owner.ID, item.Category)
	})
	if err != nil {
		return nil, err
	}
	item, err = Get(db, id)
	if err != nil {
		return nil, err
	}
	return &Reassignment{Item: item, PreviousOwnerID: prev}, nil
}

// Delete removes a work item and its derived records. It refuses while a
// governance request still links to the item.
func Delete(db *gorm.DB, id string) error {
	const op = "workitem.Delete"
	item, err := Get(db, id)
	if err != nil {
		return err
	}
	var linked int64
	if err := db.Model(&models.GovernanceRequest{}).Where("linked_initiative_id = ?", id).Count(&linked).Error; err != nil {
		return apperr.Store(op, err)
	}
	if linked > 0 {
		return apperr.Validation(op, "work item %s is linked to a governance request; deleting it would orphan the request", id)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&models.WorkItemStory{}, &models.WorkItemFinancial{}, &models.WorkItemMetric{}, &models.TimeLog{}} {
			if err := tx.Where("work_item_id = ?", id).Delete(m).Error; err != nil {
				return apperr.Store(op, err)
			}
		}
		if err := tx.Where("id = ?", id).Delete(&models.WorkItem{}).Error; err != nil {
			return apperr.Store(op, err)
		}
		return uncountWorkType(tx, item.OwnerID, item.Category)
	})
}

// StatusSummary returns item counts per status for one owner.
func StatusSummary(db *gorm.DB, ownerID string) ([]StatusCount, error) {
	var results []StatusCount
	if err := db.Model(&models.WorkItem{}).
		Select("status, COUNT(*) as count").
		Where("owner_id = ?", ownerID).
		Group("status").
		Order("status ASC").
		Find(&results).Error; err != nil {
		return nil, apperr.Store("workitem.StatusSummary", err)
	}
	return results, nil
}

// countWorkType and uncountWorkType keep WorkTypeSummary in step with the
// owner's items. Items without a category are not counted.
func countWorkType(tx *gorm.DB, ownerID, category string) error {
	if category == "" {
		return nil
	}
	return capacity.IncrementWorkType(tx, ownerID, category)
}

func uncountWorkType(tx *gorm.DB, ownerID, category string) error {
	if category == "" {
		return nil
	}
	return capacity.DecrementWorkType(tx, ownerID, category)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
