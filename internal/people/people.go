// Package people manages team members and their managers.
package people

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/models"
)

// CreateOpts holds parameters for adding a person.
type CreateOpts struct {
	Name           string
	Email          string
	Title          string
	ManagerID      string
	AvailableHours float64 // 0 keeps the store default of 40
}

// Create adds a person. The manager, when given, must exist.
func Create(db *gorm.DB, opts CreateOpts) (*models.Person, error) {
	const op = "people.Create"
	if strings.TrimSpace(opts.Name) == "" {
		return nil, apperr.Validation(op, "name is required")
	}
	if opts.AvailableHours < 0 {
		return nil, apperr.Validation(op, "available hours must not be negative")
	}

	p := models.Person{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(opts.Name),
		Email:          opts.Email,
		Title:          opts.Title,
		AvailableHours: opts.AvailableHours,
	}
	if opts.ManagerID != "" {
		if _, err := GetManager(db, opts.ManagerID); err != nil {
			return nil, err
		}
		p.ManagerID = &opts.ManagerID
	}
	if p.AvailableHours == 0 {
		p.AvailableHours = 40
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, apperr.Store(op, err)
	}
	return &p, nil
}

// Get retrieves a person by ID.
func Get(db *gorm.DB, id string) (*models.Person, error) {
	var p models.Person
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("people.Get", "person", id)
		}
		return nil, apperr.Store("people.Get", fmt.Errorf("get %s: %w", id, err))
	}
	return &p, nil
}

// List returns people in name order, optionally only one manager's reports.
func List(db *gorm.DB, managerID string) ([]models.Person, error) {
	q := db.Model(&models.Person{})
	if managerID != "" {
		q = q.Where("manager_id = ?", managerID)
	}
	var out []models.Person
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, apperr.Store("people.List", err)
	}
	return out, nil
}

// CreateManager adds a manager.
func CreateManager(db *gorm.DB, name, email string) (*models.Manager, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("people.CreateManager", "name is required")
	}
	m := models.Manager{ID: uuid.NewString(), Name: strings.TrimSpace(name), Email: email}
	if err := db.Create(&m).Error; err != nil {
		return nil, apperr.Store("people.CreateManager", err)
	}
	return &m, nil
}

// GetManager retrieves a manager with their reports.
func GetManager(db *gorm.DB, id string) (*models.Manager, error) {
	var m models.Manager
	err := db.Preload("Reports", func(tx *gorm.DB) *gorm.DB { return tx.Order("name ASC") }).
		Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("people.GetManager", "manager", id)
		}
		return nil, apperr.Store("people.GetManager", err)
	}
	return &m, nil
}

// ListManagers returns every manager in name order.
func ListManagers(db *gorm.DB) ([]models.Manager, error) {
	var out []models.Manager
	if err := db.Order("name ASC").Find(&out).Error; err != nil {
		return nil, apperr.Store("people.ListManagers", err)
	}
	return out, nil
}

// SetManager moves a person under a manager, or clears the manager when
// managerID is empty.
func SetManager(db *gorm.DB, personID, managerID string) error {
	if _, err := Get(db, personID); err != nil {
		return err
	}
	var value interface{}
	if managerID != "" {
		if _, err := GetManager(db, managerID); err != nil {
			return err
		}
		value = managerID
	}
	if err := db.Model(&models.Person{}).Where("id = ?", personID).Update("manager_id", value).Error; err != nil {
		return apperr.Store("people.SetManager", err)
	}
	return nil
}
