package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtside/internal/reservations/conflict"
	reserrors "courtside/internal/reservations/errors"
	"courtside/internal/reservations/events"
	"courtside/internal/reservations/repository"
	"courtside/internal/reservations/validator"
	"courtside/pkg/config"
	apperrors "courtside/pkg/errors"
	"courtside/pkg/model"
	"courtside/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

type ReservationService interface {
	Create(ctx context.Context, actingID string, booking *model.Booking) error
	Cancel(ctx context.Context, actingID string, bookingID string) error
	ListForCourt(ctx context.Context, actingID string, courtID string, from, to time.Time, limit int, offset int64) ([]*model.Booking, error)
	ListForPrincipal(ctx context.Context, actingID string, principalID string, limit int, offset int64) ([]*model.Booking, error)
}

type reservationService struct {
	repo       repository.BookingRepository
	rules      repository.RuleRepository
	principals repository.PrincipalRepository
	validator  *validator.BookingValidator
	events     events.Publisher
	cfg        *config.Config
	now        func() time.Time
}

func NewReservationService(
	repo repository.BookingRepository,
	rules repository.RuleRepository,
	principals repository.PrincipalRepository,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:       repo,
		rules:      rules,
		principals: principals,
		validator:  validator,
		events:     publisher,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Create books a court slot for a principal. Checks run in a fixed order:
// identity, time range, ownership, duration rules, and finally the
// overlap check and insert inside one transaction. Only the last step can
// race with concurrent requests; the transaction decides the winner.
func (s *reservationService) Create(ctx context.Context, actingID string, booking *model.Booking) error {
	role, err := s.resolveRole(ctx, actingID)
	if err != nil {
		return err
	}

	s.sanitize(booking)
	s.applyDefaults(booking, actingID)

	if !booking.EndTime.After(booking.StartTime) {
		return apperrors.RuleViolation("end_time must be after start_time")
	}

	if err := s.validate(booking); err != nil {
		return err
	}

	if booking.OwnerID != actingID && !role.Privileged() {
		return apperrors.Unauthorized("Only privileged principals may book on behalf of another principal")
	}

	if !role.Privileged() {
		if err := s.checkDurationRules(ctx, booking); err != nil {
			return err
		}
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// Contend on the court's anchor document first. Concurrent creates
		// insert distinct documents, which snapshot isolation alone would
		// let both commit; the shared anchor write makes the storage engine
		// abort one, and its retry sees the winner's booking below.
		if err := s.repo.TouchCourtAnchor(sessCtx, booking.CourtID); err != nil {
			return apperrors.Internal("Failed to serialize court access", err)
		}

		existing, err := s.repo.FindActiveOverlapping(sessCtx, booking.CourtID, booking.StartTime, booking.EndTime)
		if err != nil {
			return apperrors.Internal("Failed to check existing bookings", err)
		}

		if other := conflict.FirstOverlap(existing, booking.StartTime, booking.EndTime); other != nil {
			return apperrors.Conflict(fmt.Sprintf(
				"Court is already booked from %s to %s",
				other.StartTime.Format(time.RFC3339),
				other.EndTime.Format(time.RFC3339),
			))
		}

		if err := s.repo.Insert(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"court_id", booking.CourtID,
			"owner_id", booking.OwnerID,
			"error", err,
		)
		return err
	}

	// Events only after the transaction commits; a lost event is
	// recoverable, a phantom one is not.
	s.events.BookingCreated(ctx, booking)

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"court_id", booking.CourtID,
		"owner_id", booking.OwnerID,
		"start_time", booking.StartTime,
	)
	return nil
}

// Cancel releases a booking's hold on its slot. Cancelling an already
// cancelled booking is a no-op, but only after ownership and the temporal
// rule have been checked, so an unauthorized caller learns nothing from
// the idempotent path.
func (s *reservationService) Cancel(ctx context.Context, actingID string, bookingID string) error {
	role, err := s.resolveRole(ctx, actingID)
	if err != nil {
		return err
	}

	if bookingID == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, reserrors.ErrNotFound) {
			return apperrors.RuleViolation("Booking does not exist")
		}
		if errors.Is(err, reserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid booking ID format")
		}
		return apperrors.Internal("Failed to retrieve booking", err)
	}

	if booking.OwnerID != actingID && !role.Privileged() {
		return apperrors.Unauthorized("Only the owner or a privileged principal may cancel this booking")
	}

	if !role.Privileged() && !booking.StartTime.After(s.now()) {
		return apperrors.RuleViolation("Bookings that have already started cannot be cancelled")
	}

	if !booking.Active() {
		s.cfg.Log.Debug("Cancel requested for already cancelled booking", "id", bookingID)
		return nil
	}

	cancelled, err := s.repo.CancelActive(ctx, bookingID)
	if err != nil {
		s.cfg.Log.Error("Failed to cancel booking", "id", bookingID, "error", err)
		return apperrors.Internal("Failed to cancel booking", err)
	}

	if !cancelled {
		// Lost the race with another cancel; outcome is the same.
		s.cfg.Log.Debug("Booking was cancelled concurrently", "id", bookingID)
		return nil
	}

	booking.Status = model.StatusCancelled
	s.events.BookingCancelled(ctx, booking)

	s.cfg.Log.Info("Booking cancelled successfully", "id", bookingID, "court_id", booking.CourtID)
	return nil
}

func (s *reservationService) ListForCourt(ctx context.Context, actingID string, courtID string, from, to time.Time, limit int, offset int64) ([]*model.Booking, error) {
	if _, err := s.resolveRole(ctx, actingID); err != nil {
		return nil, err
	}

	courtID = sanitizer.SanitizeIdentifier(courtID)
	if courtID == "" {
		return nil, apperrors.InvalidInput("Court ID cannot be empty")
	}
	if !to.After(from) {
		return nil, apperrors.InvalidInput("'to' must be after 'from'")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, err := s.repo.FindByCourt(ctx, courtID, from, to, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings for court", "court_id", courtID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}

	return bookings, nil
}

func (s *reservationService) ListForPrincipal(ctx context.Context, actingID string, principalID string, limit int, offset int64) ([]*model.Booking, error) {
	role, err := s.resolveRole(ctx, actingID)
	if err != nil {
		return nil, err
	}

	principalID = sanitizer.SanitizeIdentifier(principalID)
	if principalID == "" {
		return nil, apperrors.InvalidInput("Principal ID cannot be empty")
	}

	if principalID != actingID && !role.Privileged() {
		return nil, apperrors.Unauthorized("Only privileged principals may list another principal's bookings")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, err := s.repo.FindByOwner(ctx, principalID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings for principal", "principal_id", principalID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}

	return bookings, nil
}

// --- Helpers ---

func (s *reservationService) resolveRole(ctx context.Context, actingID string) (model.Role, error) {
	if actingID == "" {
		return "", apperrors.Unauthorized("Missing acting principal")
	}

	role, err := s.principals.RoleOf(ctx, actingID)
	if err != nil {
		if errors.Is(err, reserrors.ErrUnknownPrincipal) {
			return "", apperrors.Unauthorized("Unknown principal")
		}
		return "", apperrors.Internal("Failed to resolve principal", err)
	}

	return role, nil
}

func (s *reservationService) sanitize(b *model.Booking) {
	b.CourtID = sanitizer.SanitizeIdentifier(b.CourtID)
	b.OwnerID = sanitizer.SanitizeIdentifier(b.OwnerID)
	b.GroupID = sanitizer.SanitizeIdentifier(b.GroupID)
}

func (s *reservationService) applyDefaults(b *model.Booking, actingID string) {
	if b.OwnerID == "" {
		b.OwnerID = actingID
	}
	b.Status = model.StatusActive
	b.ID = ""
}

func (s *reservationService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// checkDurationRules folds the active rules to the smallest duration cap.
// No active rules means no cap at all.
func (s *reservationService) checkDurationRules(ctx context.Context, booking *model.Booking) error {
	rules, err := s.rules.Active(ctx)
	if err != nil {
		return apperrors.Internal("Failed to load booking rules", err)
	}

	if len(rules) == 0 {
		return nil
	}

	strictest := rules[0]
	for _, rule := range rules[1:] {
		if rule.MaxDurationMinutes < strictest.MaxDurationMinutes {
			strictest = rule
		}
	}

	if booking.Duration() > time.Duration(strictest.MaxDurationMinutes)*time.Minute {
		return apperrors.RuleViolation(fmt.Sprintf(
			"Booking duration %s exceeds the %d minute limit (%s)",
			booking.Duration(), strictest.MaxDurationMinutes,
			sanitizer.SanitizeLabel(strictest.Label),
		))
	}

	return nil
}
