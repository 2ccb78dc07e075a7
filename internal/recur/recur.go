// Package recur validates the cron expressions accepted by `fetch --cron`
// and computes when a recurring pool should be resubmitted.
package recur

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Horizon bounds how far ahead an expression must fire to be accepted.
const Horizon = 365 * 24 * time.Hour

// ErrNoOccurrence is returned when an expression never fires within Horizon.
var ErrNoOccurrence = errors.New("cron expression has no occurrence within a year")

// Validate checks expr is a 5-field cron expression
// (minute hour day-of-month month day-of-week).
func Validate(expr string) error {
	// gronx also accepts a leading seconds field; the CLI does not.
	if len(strings.Fields(expr)) != 5 || !gronx.IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q, expected 5-field format (minute hour day-of-month month day-of-week)", expr)
	}
	return nil
}

// Next returns the first occurrence of expr strictly after from.
func Next(expr string, from time.Time) (time.Time, error) {
	if err := Validate(expr); err != nil {
		return time.Time{}, err
	}
	next, err := gronx.NextTickAfter(expr, from, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("next occurrence of %q: %w", expr, err)
	}
	if !next.Before(from.Add(Horizon)) {
		return time.Time{}, ErrNoOccurrence
	}
	return next, nil
}

// Delay returns how long to wait from now until the next occurrence of expr.
// The result is never negative.
func Delay(expr string, now time.Time) (time.Duration, error) {
	next, err := Next(expr, now)
	if err != nil {
		return 0, err
	}
	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, nil
}
