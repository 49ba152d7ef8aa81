package capacity

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/models"
)

// IncrementWorkType adds one to a person's count for a work type, creating
// the row at 1.
func IncrementWorkType(tx *gorm.DB, personID, workType string) error {
	row := models.WorkTypeSummary{PersonID: personID, WorkType: workType, Count: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "person_id"}, {Name: "work_type"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + ?", 1)}),
	}).Create(&row).Error
	if err != nil {
		return apperr.Store("capacity.IncrementWorkType", err)
	}
	return nil
}

// DecrementWorkType removes one from a person's count. The row is deleted
// when the count would reach zero; a missing row is left alone.
func DecrementWorkType(tx *gorm.DB, personID, workType string) error {
	var row models.WorkTypeSummary
	err := tx.Where("person_id = ? AND work_type = ?", personID, workType).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Store("capacity.DecrementWorkType", err)
	}
	if row.Count <= 1 {
		err = tx.Delete(&row).Error
	} else {
		err = tx.Model(&row).Update("count", gorm.Expr("count - ?", 1)).Error
	}
	if err != nil {
		return apperr.Store("capacity.DecrementWorkType", err)
	}
	return nil
}

// MoveWorkType shifts one count from one work type to another in a single
// transaction.
func MoveWorkType(tx *gorm.DB, personID, from, to string) error {
	return tx.Transaction(func(tx *gorm.DB) error {
		if err := DecrementWorkType(tx, personID, from); err != nil {
			return err
		}
		return IncrementWorkType(tx, personID, to)
	})
}

// WorkTypes lists a person's counts.
func WorkTypes(ctx context.Context, tx *gorm.DB, personID string) ([]models.WorkTypeSummary, error) {
	var rows []models.WorkTypeSummary
	if err := tx.WithContext(ctx).Where("person_id = ?", personID).Order("work_type").Find(&rows).Error; err != nil {
		return nil, apperr.Store("capacity.WorkTypes", err)
	}
	return rows, nil
}
