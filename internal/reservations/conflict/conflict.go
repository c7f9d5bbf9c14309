// Package conflict decides whether two bookings compete for the same court
// time. Intervals are half-open [start, end), so a booking ending exactly
// when another starts does not conflict.
package conflict

import (
	"time"

	"courtside/pkg/model"
)

// Overlaps reports whether [start1, end1) and [start2, end2) intersect.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}

// FirstOverlap returns the first active booking whose interval intersects
// [start, end), or nil when the slot is free. Cancelled bookings never
// conflict.
func FirstOverlap(existing []*model.Booking, start, end time.Time) *model.Booking {
	for _, b := range existing {
		if !b.Active() {
			continue
		}
		if Overlaps(b.StartTime, b.EndTime, start, end) {
			return b
		}
	}
	return nil
}
