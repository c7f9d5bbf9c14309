package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	reserrors "courtside/internal/reservations/errors"
	"courtside/internal/reservations/events"
	"courtside/internal/reservations/repository"
	"courtside/internal/reservations/validator"
	"courtside/pkg/config"
	mongotx "courtside/pkg/db/mongo"
	apperrors "courtside/pkg/errors"
	"courtside/pkg/logger"
	"courtside/pkg/model"
)

// Mock repositories for testing

type mockBookingRepository struct {
	insertFunc                func(ctx context.Context, booking *model.Booking) error
	findByIDFunc              func(ctx context.Context, id string) (*model.Booking, error)
	findActiveOverlappingFunc func(ctx context.Context, courtID string, start, end time.Time) ([]*model.Booking, error)
	findByCourtFunc           func(ctx context.Context, courtID string, from, to time.Time, limit int, offset int64) ([]*model.Booking, error)
	findByOwnerFunc           func(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Booking, error)
	cancelActiveFunc          func(ctx context.Context, id string) (bool, error)
	touchCourtAnchorFunc      func(ctx context.Context, courtID string) error
}

func (m *mockBookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, booking)
	}
	booking.ID = "64f0c0ffee0000000000b001"
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, reserrors.ErrNotFound
}

func (m *mockBookingRepository) FindActiveOverlapping(ctx context.Context, courtID string, start, end time.Time) ([]*model.Booking, error) {
	if m.findActiveOverlappingFunc != nil {
		return m.findActiveOverlappingFunc(ctx, courtID, start, end)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) FindByCourt(ctx context.Context, courtID string, from, to time.Time, limit int, offset int64) ([]*model.Booking, error) {
	if m.findByCourtFunc != nil {
		return m.findByCourtFunc(ctx, courtID, from, to, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Booking, error) {
	if m.findByOwnerFunc != nil {
		return m.findByOwnerFunc(ctx, ownerID, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) CancelActive(ctx context.Context, id string) (bool, error) {
	if m.cancelActiveFunc != nil {
		return m.cancelActiveFunc(ctx, id)
	}
	return true, nil
}

func (m *mockBookingRepository) TouchCourtAnchor(ctx context.Context, courtID string) error {
	if m.touchCourtAnchorFunc != nil {
		return m.touchCourtAnchorFunc(ctx, courtID)
	}
	return nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockRuleRepository struct {
	activeFunc func(ctx context.Context) ([]*model.BookingRule, error)
}

func (m *mockRuleRepository) Active(ctx context.Context) ([]*model.BookingRule, error) {
	if m.activeFunc != nil {
		return m.activeFunc(ctx)
	}
	return []*model.BookingRule{}, nil
}

type mockPrincipalRepository struct {
	roleOfFunc func(ctx context.Context, id string) (model.Role, error)
}

func (m *mockPrincipalRepository) RoleOf(ctx context.Context, id string) (model.Role, error) {
	if m.roleOfFunc != nil {
		return m.roleOfFunc(ctx, id)
	}
	return "", reserrors.ErrUnknownPrincipal
}

type recordingPublisher struct {
	created   []*model.Booking
	cancelled []*model.Booking
}

func (p *recordingPublisher) BookingCreated(ctx context.Context, booking *model.Booking) {
	p.created = append(p.created, booking)
}

func (p *recordingPublisher) BookingCancelled(ctx context.Context, booking *model.Booking) {
	p.cancelled = append(p.cancelled, booking)
}

var _ events.Publisher = (*recordingPublisher)(nil)

// Test fixtures

var testClock = time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC)

func slot(hour, minute int) time.Time {
	return time.Date(2026, time.September, 1, hour, minute, 0, 0, time.UTC)
}

func membersAndAdmins(ctx context.Context, id string) (model.Role, error) {
	switch id {
	case "alice", "bob":
		return model.RoleMember, nil
	case "root":
		return model.RoleAdmin, nil
	default:
		return "", reserrors.ErrUnknownPrincipal
	}
}

type fixture struct {
	service   *reservationService
	repo      *mockBookingRepository
	rules     *mockRuleRepository
	publisher *recordingPublisher
}

func newFixture() *fixture {
	log := logger.New(logger.Config{
		Level:  logger.ERROR,
		Format: logger.TEXT,
		Output: io.Discard,
	})

	cfg := &config.Config{
		Log:          log,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	repo := &mockBookingRepository{}
	rules := &mockRuleRepository{}
	publisher := &recordingPublisher{}

	svc := &reservationService{
		repo:       repo,
		rules:      rules,
		principals: &mockPrincipalRepository{roleOfFunc: membersAndAdmins},
		validator:  validator.NewBookingValidator(log),
		events:     publisher,
		cfg:        cfg,
		now:        func() time.Time { return testClock },
	}

	return &fixture{service: svc, repo: repo, rules: rules, publisher: publisher}
}

var _ repository.BookingRepository = (*mockBookingRepository)(nil)

func newBooking(owner string, start, end time.Time) *model.Booking {
	return &model.Booking{
		CourtID:   "court-1",
		OwnerID:   owner,
		StartTime: start,
		EndTime:   end,
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	appErr := apperrors.AsAppError(err)
	if appErr.Code != code {
		t.Fatalf("expected error code %s, got %s (%v)", code, appErr.Code, err)
	}
}

// Create

func TestCreate_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	booking := newBooking("alice", slot(10, 0), slot(11, 0))
	if err := f.service.Create(ctx, "alice", booking); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	if booking.Status != model.StatusActive {
		t.Errorf("status = %s, want %s", booking.Status, model.StatusActive)
	}
	if booking.ID == "" {
		t.Error("booking ID not assigned on insert")
	}
	if len(f.publisher.created) != 1 {
		t.Errorf("created events = %d, want 1", len(f.publisher.created))
	}
}

func TestCreate_TouchesCourtAnchorBeforeOverlapCheck(t *testing.T) {
	f := newFixture()

	var calls []string
	f.repo.touchCourtAnchorFunc = func(ctx context.Context, courtID string) error {
		calls = append(calls, "anchor:"+courtID)
		return nil
	}
	f.repo.findActiveOverlappingFunc = func(ctx context.Context, courtID string, start, end time.Time) ([]*model.Booking, error) {
		calls = append(calls, "overlap:"+courtID)
		return nil, nil
	}

	booking := newBooking("alice", slot(10, 0), slot(11, 0))
	if err := f.service.Create(context.Background(), "alice", booking); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	// The anchor write must land before the overlap read so that two
	// concurrent transactions on the same court collide on a document and
	// the retried one re-reads with the winner's booking visible.
	want := []string{"anchor:court-1", "overlap:court-1"}
	if len(calls) != len(want) || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("transaction calls = %v, want %v", calls, want)
	}
}

func TestCreate_AnchorFailureAbortsWithoutInsert(t *testing.T) {
	f := newFixture()
	f.repo.touchCourtAnchorFunc = func(ctx context.Context, courtID string) error {
		return context.DeadlineExceeded
	}
	inserted := false
	f.repo.insertFunc = func(ctx context.Context, booking *model.Booking) error {
		inserted = true
		return nil
	}

	err := f.service.Create(context.Background(), "alice", newBooking("alice", slot(10, 0), slot(11, 0)))
	assertCode(t, err, apperrors.CodeInternal)

	if inserted {
		t.Error("insert must not run when the anchor write fails")
	}
	if len(f.publisher.created) != 0 {
		t.Error("failed create must not publish an event")
	}
}

func TestCreate_DefaultsOwnerToActingPrincipal(t *testing.T) {
	f := newFixture()

	booking := newBooking("", slot(10, 0), slot(11, 0))
	if err := f.service.Create(context.Background(), "alice", booking); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	if booking.OwnerID != "alice" {
		t.Errorf("owner = %s, want alice", booking.OwnerID)
	}
}

func TestCreate_IdentityChecks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("missing acting principal", func(t *testing.T) {
		err := f.service.Create(ctx, "", newBooking("alice", slot(10, 0), slot(11, 0)))
		assertCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("unknown acting principal", func(t *testing.T) {
		err := f.service.Create(ctx, "mallory", newBooking("mallory", slot(10, 0), slot(11, 0)))
		assertCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("member booking for someone else", func(t *testing.T) {
		err := f.service.Create(ctx, "alice", newBooking("bob", slot(10, 0), slot(11, 0)))
		assertCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("admin booking for someone else", func(t *testing.T) {
		if err := f.service.Create(ctx, "root", newBooking("bob", slot(10, 0), slot(11, 0))); err != nil {
			t.Fatalf("Create() = %v, want nil", err)
		}
	})
}

func TestCreate_TimeRange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	t.Run("zero-length interval", func(t *testing.T) {
		err := f.service.Create(ctx, "alice", newBooking("alice", slot(10, 0), slot(10, 0)))
		assertCode(t, err, apperrors.CodeRuleViolation)
	})

	t.Run("inverted interval", func(t *testing.T) {
		err := f.service.Create(ctx, "alice", newBooking("alice", slot(11, 0), slot(10, 0)))
		assertCode(t, err, apperrors.CodeRuleViolation)
	})
}

func TestCreate_ValidationFailure(t *testing.T) {
	f := newFixture()

	booking := newBooking("alice", slot(10, 0), slot(11, 0))
	booking.CourtID = ""
	err := f.service.Create(context.Background(), "alice", booking)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestCreate_Conflicts(t *testing.T) {
	existing := []*model.Booking{
		{
			ID:        "64f0c0ffee0000000000b000",
			CourtID:   "court-1",
			OwnerID:   "bob",
			StartTime: slot(10, 0),
			EndTime:   slot(11, 0),
			Status:    model.StatusActive,
		},
	}

	tests := []struct {
		name       string
		start, end time.Time
		wantErr    bool
	}{
		{"same slot", slot(10, 0), slot(11, 0), true},
		{"overlapping by half an hour", slot(10, 30), slot(11, 30), true},
		{"spanning with one extra minute", slot(9, 0), slot(11, 1), true},
		{"back to back after", slot(11, 0), slot(12, 0), false},
		{"back to back before", slot(9, 0), slot(10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.findActiveOverlappingFunc = func(ctx context.Context, courtID string, start, end time.Time) ([]*model.Booking, error) {
				return existing, nil
			}

			err := f.service.Create(context.Background(), "alice", newBooking("alice", tt.start, tt.end))
			if tt.wantErr {
				assertCode(t, err, apperrors.CodeConflict)
				if len(f.publisher.created) != 0 {
					t.Error("conflicting create must not publish an event")
				}
			} else if err != nil {
				t.Fatalf("Create() = %v, want nil", err)
			}
		})
	}
}

func TestCreate_DurationRules(t *testing.T) {
	ninetyMinuteRule := []*model.BookingRule{
		{ID: "r1", Label: "peak hours cap", MaxDurationMinutes: 90, Active: true},
	}

	t.Run("no active rules means no limit", func(t *testing.T) {
		f := newFixture()
		err := f.service.Create(context.Background(), "alice", newBooking("alice", slot(8, 0), slot(18, 0)))
		if err != nil {
			t.Fatalf("Create() = %v, want nil for 600 minute booking with no rules", err)
		}
	})

	t.Run("duration exactly at the limit", func(t *testing.T) {
		f := newFixture()
		f.rules.activeFunc = func(ctx context.Context) ([]*model.BookingRule, error) {
			return ninetyMinuteRule, nil
		}
		err := f.service.Create(context.Background(), "alice", newBooking("alice", slot(10, 0), slot(11, 30)))
		if err != nil {
			t.Fatalf("Create() = %v, want nil for 90 minute booking under 90 minute rule", err)
		}
	})

	t.Run("duration one minute over the limit", func(t *testing.T) {
		f := newFixture()
		f.rules.activeFunc = func(ctx context.Context) ([]*model.BookingRule, error) {
			return ninetyMinuteRule, nil
		}
		err := f.service.Create(context.Background(), "alice", newBooking("alice", slot(10, 0), slot(11, 31)))
		assertCode(t, err, apperrors.CodeRuleViolation)
	})

	t.Run("strictest rule wins", func(t *testing.T) {
		f := newFixture()
		f.rules.activeFunc = func(ctx context.Context) ([]*model.BookingRule, error) {
			return []*model.BookingRule{
				{ID: "r1", Label: "default cap", MaxDurationMinutes: 120, Active: true},
				{ID: "r2", Label: "peak hours cap", MaxDurationMinutes: 60, Active: true},
			}, nil
		}
		err := f.service.Create(context.Background(), "alice", newBooking("alice", slot(10, 0), slot(11, 30)))
		assertCode(t, err, apperrors.CodeRuleViolation)
	})

	t.Run("violation names the limiting rule with a clean label", func(t *testing.T) {
		f := newFixture()
		f.rules.activeFunc = func(ctx context.Context) ([]*model.BookingRule, error) {
			return []*model.BookingRule{
				{ID: "r1", Label: "  peak \t hours\x00 cap  ", MaxDurationMinutes: 90, Active: true},
			}, nil
		}
		err := f.service.Create(context.Background(), "alice", newBooking("alice", slot(10, 0), slot(12, 0)))
		assertCode(t, err, apperrors.CodeRuleViolation)
		if msg := apperrors.AsAppError(err).Message; !strings.Contains(msg, "(peak hours cap)") {
			t.Errorf("message %q should carry the sanitized rule label", msg)
		}
	})

	t.Run("privileged principal is exempt", func(t *testing.T) {
		f := newFixture()
		ruleQueried := false
		f.rules.activeFunc = func(ctx context.Context) ([]*model.BookingRule, error) {
			ruleQueried = true
			return ninetyMinuteRule, nil
		}
		err := f.service.Create(context.Background(), "root", newBooking("root", slot(8, 0), slot(18, 0)))
		if err != nil {
			t.Fatalf("Create() = %v, want nil for privileged principal", err)
		}
		if ruleQueried {
			t.Error("duration rules must not be evaluated for privileged principals")
		}
	})
}

// Cancel

func futureBooking(owner string) *model.Booking {
	return &model.Booking{
		ID:        "64f0c0ffee0000000000b001",
		CourtID:   "court-1",
		OwnerID:   owner,
		StartTime: slot(10, 0),
		EndTime:   slot(11, 0),
		Status:    model.StatusActive,
	}
}

func TestCancel_OwnerCancelsFutureBooking(t *testing.T) {
	f := newFixture()
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return futureBooking("alice"), nil
	}

	if err := f.service.Cancel(context.Background(), "alice", "64f0c0ffee0000000000b001"); err != nil {
		t.Fatalf("Cancel() = %v, want nil", err)
	}

	if len(f.publisher.cancelled) != 1 {
		t.Fatalf("cancelled events = %d, want 1", len(f.publisher.cancelled))
	}
	if f.publisher.cancelled[0].Status != model.StatusCancelled {
		t.Error("published booking should carry cancelled status")
	}
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture()
	b := futureBooking("alice")
	b.Status = model.StatusCancelled
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return b, nil
	}
	f.repo.cancelActiveFunc = func(ctx context.Context, id string) (bool, error) {
		t.Fatal("already cancelled booking must not be written again")
		return false, nil
	}

	if err := f.service.Cancel(context.Background(), "alice", b.ID); err != nil {
		t.Fatalf("Cancel() = %v, want nil for repeated cancel", err)
	}

	if len(f.publisher.cancelled) != 0 {
		t.Error("repeated cancel must not publish an event")
	}
}

func TestCancel_ConcurrentCancelLosesQuietly(t *testing.T) {
	f := newFixture()
	f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
		return futureBooking("alice"), nil
	}
	f.repo.cancelActiveFunc = func(ctx context.Context, id string) (bool, error) {
		return false, nil // another request flipped the status first
	}

	if err := f.service.Cancel(context.Background(), "alice", "64f0c0ffee0000000000b001"); err != nil {
		t.Fatalf("Cancel() = %v, want nil when losing the cancel race", err)
	}

	if len(f.publisher.cancelled) != 0 {
		t.Error("losing cancel must not publish an event")
	}
}

func TestCancel_Authorization(t *testing.T) {
	t.Run("non-owner member is rejected", func(t *testing.T) {
		f := newFixture()
		f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
			return futureBooking("alice"), nil
		}
		err := f.service.Cancel(context.Background(), "bob", "64f0c0ffee0000000000b001")
		assertCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("admin cancels another member's booking", func(t *testing.T) {
		f := newFixture()
		f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
			return futureBooking("alice"), nil
		}
		if err := f.service.Cancel(context.Background(), "root", "64f0c0ffee0000000000b001"); err != nil {
			t.Fatalf("Cancel() = %v, want nil", err)
		}
	})

	t.Run("unknown principal", func(t *testing.T) {
		f := newFixture()
		err := f.service.Cancel(context.Background(), "mallory", "64f0c0ffee0000000000b001")
		assertCode(t, err, apperrors.CodeUnauthorized)
	})
}

func TestCancel_TemporalRule(t *testing.T) {
	startedBooking := func() *model.Booking {
		b := futureBooking("alice")
		b.StartTime = slot(7, 0) // before the fixture clock at 08:00
		b.EndTime = slot(9, 0)
		return b
	}

	t.Run("owner cannot cancel a started booking", func(t *testing.T) {
		f := newFixture()
		f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
			return startedBooking(), nil
		}
		err := f.service.Cancel(context.Background(), "alice", "64f0c0ffee0000000000b001")
		assertCode(t, err, apperrors.CodeRuleViolation)
	})

	t.Run("admin can cancel a started booking", func(t *testing.T) {
		f := newFixture()
		f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
			return startedBooking(), nil
		}
		if err := f.service.Cancel(context.Background(), "root", "64f0c0ffee0000000000b001"); err != nil {
			t.Fatalf("Cancel() = %v, want nil", err)
		}
	})
}

func TestCancel_MissingBooking(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		f := newFixture()
		err := f.service.Cancel(context.Background(), "alice", "64f0c0ffee0000000000beef")
		assertCode(t, err, apperrors.CodeRuleViolation)
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newFixture()
		f.repo.findByIDFunc = func(ctx context.Context, id string) (*model.Booking, error) {
			return nil, reserrors.ErrInvalidID
		}
		err := f.service.Cancel(context.Background(), "alice", "not-an-object-id")
		assertCode(t, err, apperrors.CodeInvalidInput)
	})

	t.Run("empty id", func(t *testing.T) {
		f := newFixture()
		err := f.service.Cancel(context.Background(), "alice", "")
		assertCode(t, err, apperrors.CodeInvalidInput)
	})
}

// Listing

func TestListForCourt(t *testing.T) {
	f := newFixture()
	f.repo.findByCourtFunc = func(ctx context.Context, courtID string, from, to time.Time, limit int, offset int64) ([]*model.Booking, error) {
		return []*model.Booking{futureBooking("alice")}, nil
	}

	bookings, err := f.service.ListForCourt(context.Background(), "bob", "court-1", slot(0, 0), slot(23, 0), 10, 0)
	if err != nil {
		t.Fatalf("ListForCourt() = %v, want nil", err)
	}
	if len(bookings) != 1 {
		t.Errorf("bookings = %d, want 1", len(bookings))
	}

	t.Run("inverted window", func(t *testing.T) {
		_, err := f.service.ListForCourt(context.Background(), "bob", "court-1", slot(23, 0), slot(0, 0), 10, 0)
		assertCode(t, err, apperrors.CodeInvalidInput)
	})

	t.Run("unknown principal", func(t *testing.T) {
		_, err := f.service.ListForCourt(context.Background(), "mallory", "court-1", slot(0, 0), slot(23, 0), 10, 0)
		assertCode(t, err, apperrors.CodeUnauthorized)
	})
}

func TestListForPrincipal(t *testing.T) {
	t.Run("member lists own bookings", func(t *testing.T) {
		f := newFixture()
		var queriedOwner string
		f.repo.findByOwnerFunc = func(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Booking, error) {
			queriedOwner = ownerID
			return []*model.Booking{futureBooking("alice")}, nil
		}

		if _, err := f.service.ListForPrincipal(context.Background(), "alice", "alice", 10, 0); err != nil {
			t.Fatalf("ListForPrincipal() = %v, want nil", err)
		}
		if queriedOwner != "alice" {
			t.Errorf("queried owner = %s, want alice", queriedOwner)
		}
	})

	t.Run("member cannot list another member's bookings", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.ListForPrincipal(context.Background(), "alice", "bob", 10, 0)
		assertCode(t, err, apperrors.CodeUnauthorized)
	})

	t.Run("admin lists any member's bookings", func(t *testing.T) {
		f := newFixture()
		if _, err := f.service.ListForPrincipal(context.Background(), "root", "alice", 10, 0); err != nil {
			t.Fatalf("ListForPrincipal() = %v, want nil", err)
		}
	})
}
