// Package governance handles governance request intake and the status
// state machine that drives conversion into work items.
package governance

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/workyard/internal/apperr"
	"github.com/zulandar/workyard/internal/models"
)

// Request statuses.
const (
	StatusDraft              = "Draft"
	StatusReadyForReview     = "Ready for Review"
	StatusNeedsRefinement    = "Needs Refinement"
	StatusReadyForGovernance = "Ready for Governance"
	StatusCompleted          = "Completed"
	StatusDismissed          = "Dismissed"
)

// Statuses lists every request status in lifecycle order.
var Statuses = []string{
	StatusDraft, StatusReadyForReview, StatusNeedsRefinement,
	StatusReadyForGovernance, StatusCompleted, StatusDismissed,
}

// ValidTransitions maps each status to its valid next statuses. Completed
// and Dismissed are terminal.
var ValidTransitions = map[string][]string{
	StatusDraft:              {StatusReadyForReview},
	StatusReadyForReview:     {StatusNeedsRefinement, StatusReadyForGovernance, StatusDismissed},
	StatusNeedsRefinement:    {StatusReadyForReview, StatusDismissed},
	StatusReadyForGovernance: {StatusCompleted, StatusDismissed},
}

// EffortSizes are the accepted work effort estimates, smallest first.
var EffortSizes = []string{"XS", "S", "M", "L", "XL"}

// NextStates returns the statuses reachable from status.
func NextStates(status string) []string {
	return append([]string(nil), ValidTransitions[status]...)
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusDismissed
}

// isValidTransition checks whether a status transition is allowed.
func isValidTransition(from, to string) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

func isEditable(status string) bool {
	return status == StatusDraft || status == StatusNeedsRefinement
}

var codePattern = regexp.MustCompile(`^GOV-(\d{4})-(\d{3,})$`)

// FormatCode renders a request code, e.g. GOV-2025-007.
func FormatCode(year, seq int) string {
	return fmt.Sprintf("GOV-%d-%03d", year, seq)
}

// ParseCode splits a request code into year and sequence.
func ParseCode(code string) (year, seq int, ok bool) {
	m := codePattern.FindStringSubmatch(code)
	if m == nil {
		return 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	seq, _ = strconv.Atoi(m[2])
	return year, seq, true
}

// NextCodeFrom returns the code after the highest sequence among existing
// codes for year. Codes from other years are ignored, so each year starts
// again at 001.
func NextCodeFrom(existing []string, year int) string {
	highest := 0
	for _, c := range existing {
		y, seq, ok := ParseCode(c)
		if ok && y == year && seq > highest {
			highest = seq
		}
	}
	return FormatCode(year, highest+1)
}

// NextCode reads the existing codes for the year of now and returns the next.
func NextCode(db *gorm.DB, now time.Time) (string, error) {
	year := now.Year()
	var codes []string
	if err := db.Model(&models.GovernanceRequest{}).
		Where("request_code LIKE ?", fmt.Sprintf("GOV-%d-%%", year)).
		Pluck("request_code", &codes).Error; err != nil {
		return "", apperr.Store("governance.NextCode", err)
	}
	return NextCodeFrom(codes, year), nil
}

// Get retrieves a request by ID or request code, with its comments oldest
// first.
func Get(db *gorm.DB, idOrCode string) (*models.GovernanceRequest, error) {
	var req models.GovernanceRequest
	err := db.Preload("Comments", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC, id ASC") }).
		Where("id = ? OR request_code = ?", idOrCode, idOrCode).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("governance.Get", "governance request", idOrCode)
		}
		return nil, apperr.Store("governance.Get", fmt.Errorf("get %s: %w", idOrCode, err))
	}
	return &req, nil
}
