package events

import (
	"context"

	"courtside/pkg/kafka"
	"courtside/pkg/logger"
	"courtside/pkg/model"
)

const (
	TopicBookings = "reservations.bookings"
	TopicDLQ      = "reservations.bookings.dlq"

	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"

	schemaVersion = "1"
	sourceService = "reservations"
)

// Publisher announces committed booking state changes. Publishing happens
// strictly after the transaction commits; a publish failure never rolls the
// booking back, it is logged and the message lands in the DLQ.
type Publisher interface {
	BookingCreated(ctx context.Context, booking *model.Booking)
	BookingCancelled(ctx context.Context, booking *model.Booking)
}

type kafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		log:      log,
	}
}

func (p *kafkaPublisher) BookingCreated(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, EventBookingCreated, booking)
}

func (p *kafkaPublisher) BookingCancelled(ctx context.Context, booking *model.Booking) {
	p.publish(ctx, EventBookingCancelled, booking)
}

func (p *kafkaPublisher) publish(ctx context.Context, eventType string, booking *model.Booking) {
	// Keyed by court so consumers see one court's events in order.
	msg := kafka.NewMessage().
		WithKey(booking.CourtID).
		WithValue(booking).
		WithEventID("").
		WithEventType(eventType).
		WithSchemaVersion(schemaVersion).
		WithSource(sourceService).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"court_id", booking.CourtID,
			"error", err,
		)
		return
	}

	p.log.Debug("Booking event published",
		"event_type", eventType,
		"booking_id", booking.ID,
		"event_id", msg.GetEventID(),
	)
}

type noopPublisher struct{}

// NewNoopPublisher is used when event publishing is disabled by configuration.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) BookingCreated(ctx context.Context, booking *model.Booking)   {}
func (noopPublisher) BookingCancelled(ctx context.Context, booking *model.Booking) {}
