package domain

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultCategoryColor is applied when a category is created without a color.
const DefaultCategoryColor = "#6B7280"

var categoryColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Category labels tickets.
type Category struct {
	ID          int64
	Name        string
	Description string
	Color       string
	IsActive    bool
	CreatedAt   time.Time
	TicketCount int64
}

// ValidateCategoryColor accepts a 7 character hex color such as #F59E0B.
func ValidateCategoryColor(color string) error {
	if !categoryColorPattern.MatchString(color) {
		return fmt.Errorf("invalid color %q: use hex format like #FF0000", color)
	}
	return nil
}

// CategoryDeleteResult tells the caller which delete variant was applied.
type CategoryDeleteResult string

const (
	CategoryHardDeleted CategoryDeleteResult = "hard_deleted"
	CategorySoftDeleted CategoryDeleteResult = "soft_deleted"
)
