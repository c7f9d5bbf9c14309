package model

import (
	"time"
)

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Booking is a time-bounded exclusive hold on one court, owned by one
// principal. Time bounds are half-open [StartTime, EndTime) and immutable
// after creation; moving a booking is modelled as cancel plus recreate.
// ID and CreatedAt are assigned by the ledger on insert.
type Booking struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	CourtID   string    `json:"court_id" bson:"court_id" validate:"required,opaque_id"`
	OwnerID   string    `json:"owner_id" bson:"owner_id" validate:"required,opaque_id"`
	GroupID   string    `json:"group_id,omitempty" bson:"group_id,omitempty" validate:"omitempty,opaque_id"`
	StartTime time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status    string    `json:"status" bson:"status" validate:"omitempty,oneof=active cancelled"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Duration returns the booked span. Positive whenever StartTime < EndTime.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// Active reports whether the booking still holds its time slot.
func (b *Booking) Active() bool {
	return b.Status == StatusActive
}
