package market

import (
	"errors"
	"strings"
)

// Sentinel errors for the marketplace core. The API layer maps these onto
// HTTP statuses with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrUnavailable      = errors.New("listing not active")
	ErrDuplicateSkillID = errors.New("skill id already exists")
	ErrInvalidRating    = errors.New("rating must be 1-5")
)

// ValidationError reports every constraint a manifest violated, not just the
// first one, so a bot can fix its manifest in a single pass.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid skill manifest: " + strings.Join(e.Issues, "; ")
}
