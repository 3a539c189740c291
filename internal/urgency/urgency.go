// Package urgency classifies a project's urgency tier from its deadlines.
// The classification is pure: callers pass in "today" so listings stay
// deterministic and tests never depend on the wall clock.
package urgency

import (
	"time"

	"seaop/models"
)

// farFuture stands in for an unset deadline so it never drives the tier.
const farFuture = 999

// DaysRemaining returns whole days between today and the given date, or the
// far-future sentinel when the date is unset.
func DaysRemaining(date *time.Time, today time.Time) int {
	if date == nil {
		return farFuture
	}
	d := truncateToDay(*date).Sub(truncateToDay(today))
	return int(d.Hours() / 24)
}

// Classify maps the two deadlines to a tier. Urgency follows the shorter of
// the two, so a lead ages into higher tiers as either date approaches.
func Classify(submissionDeadline, desiredStart *time.Time, today time.Time) models.UrgencyTier {
	days := EffectiveDays(submissionDeadline, desiredStart, today)
	switch {
	case days < 0:
		return models.UrgencyCritical // deadline already passed
	case days <= 3:
		return models.UrgencyCritical
	case days <= 7:
		return models.UrgencyHigh
	case days <= 14:
		return models.UrgencyNormal
	default:
		return models.UrgencyLow
	}
}

// EffectiveDays is the minimum of the two remaining-day counts.
func EffectiveDays(submissionDeadline, desiredStart *time.Time, today time.Time) int {
	a := DaysRemaining(submissionDeadline, today)
	b := DaysRemaining(desiredStart, today)
	if b < a {
		return b
	}
	return a
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
