package model

// BookingRule caps the duration of bookings made by non-privileged
// principals. Several rules may be active at once; the effective limit is
// the minimum MaxDurationMinutes among them. Rules are managed outside the
// reservation core and read-only here.
type BookingRule struct {
	ID                 string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Label              string `json:"label" bson:"label" validate:"required,min=2,max=100"`
	MaxDurationMinutes int    `json:"max_duration_minutes" bson:"max_duration_minutes" validate:"required,min=1"`
	Active             bool   `json:"active" bson:"active"`
}
