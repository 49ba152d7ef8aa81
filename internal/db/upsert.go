package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertByKey inserts record, or updates the listed columns of the row that
// already holds the same key columns. The key columns must be covered by a
// unique index. It is a single INSERT ... ON CONFLICT statement, so two
// concurrent callers never both insert.
func UpsertByKey(db *gorm.DB, record interface{}, keys []string, updates []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("db: upsert: at least one key column is required")
	}
	cols := make([]clause.Column, len(keys))
	for i, k := range keys {
		cols[i] = clause.Column{Name: k}
	}
	oc := clause.OnConflict{Columns: cols}
	if len(updates) == 0 {
		oc.DoNothing = true
	} else {
		oc.DoUpdates = clause.AssignmentColumns(updates)
	}
	if err := db.Clauses(oc).Create(record).Error; err != nil {
		return fmt.Errorf("db: upsert on %v: %w", keys, err)
	}
	return nil
}
