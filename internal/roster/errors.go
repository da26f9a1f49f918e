package roster

import (
	"errors"
	"fmt"
	"strings"
)

// Structural failures abort an extraction run before anything is written.
var (
	ErrSourceNotFound    = errors.New("roster: source not found")
	ErrNoWeekColumns     = errors.New("roster: no week columns detected")
	ErrTargetWeekMissing = errors.New("roster: target week column missing")
)

// TargetWeekMissingError is returned by the single-week path when the requested week
// has no column in the source. Found lists the week-like headers that were present.
type TargetWeekMissingError struct {
	Week  int
	Found []string
}

func (e *TargetWeekMissingError) Error() string {
	return fmt.Sprintf("roster: could not find a column for Week %d; found week-like columns: [%s]",
		e.Week, strings.Join(e.Found, ", "))
}

// Is lets errors.Is match ErrTargetWeekMissing.
func (e *TargetWeekMissingError) Is(target error) bool {
	return target == ErrTargetWeekMissing
}
