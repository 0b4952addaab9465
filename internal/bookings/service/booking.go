package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "medsched/internal/bookings/errors"
	"medsched/internal/bookings/repository"
	"medsched/internal/bookings/validator"
	mirrorservice "medsched/internal/mirror/service"
	"medsched/pkg/clock"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/locking"
	"medsched/pkg/model"

	"github.com/google/uuid"
)

type BookRequest struct {
	ResourceID      string
	PatientID       string
	StartTime       time.Time
	DurationMinutes int
	Status          string
	Reason          string
}

// BookingService is the commit path. Every mutation of a resource's calendar
// happens under that resource's advisory lock, and the conflict re-check
// inside the lock uses the same half-open overlap predicate as the slot
// engine, so a slot offered by a read can still lose the race here.
type BookingService interface {
	Book(ctx context.Context, req BookRequest) (*model.BookingResult, error)
	Reschedule(ctx context.Context, id string, start time.Time, durationMinutes int) (*model.BookingResult, error)
	Cancel(ctx context.Context, id string) (*model.BookingResult, error)
	Confirm(ctx context.Context, id string, externalRef string) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	mirror    mirrorservice.MirrorService
	locks     locking.Provider
	validator *validator.BookingValidator
	clk       clock.Clock
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	mirror mirrorservice.MirrorService,
	locks locking.Provider,
	validator *validator.BookingValidator,
	clk clock.Clock,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		mirror:    mirror,
		locks:     locks,
		validator: validator,
		clk:       clk,
		cfg:       cfg,
	}
}

// newBookingID generates an "A" + 8 hex character identifier.
func newBookingID() string {
	u := uuid.New()
	return fmt.Sprintf("A%x", u[:4])
}

func (s *bookingService) Book(ctx context.Context, req BookRequest) (*model.BookingResult, error) {
	booking := s.buildBooking(req)

	// Validation rejects before any lock is taken.
	if err := s.validate(booking); err != nil {
		return nil, err
	}
	// Bookings are created occupying capacity; cancelled and completed are
	// lifecycle outcomes, not creation states.
	if !booking.IsActive() {
		return nil, apperrors.InvalidInput("Status must be tentative or confirmed at creation")
	}

	handle, err := s.acquireResourceLock(ctx, booking.ResourceID)
	if err != nil {
		return nil, err
	}
	defer s.releaseResourceLock(ctx, handle, booking.ResourceID)

	if err := s.checkConflicts(ctx, booking.ResourceID, booking.Interval(), ""); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to insert booking",
			"booking_id", booking.ID,
			"resource_id", booking.ResourceID,
			"error", err,
		)
		if errors.Is(err, bookingserrors.ErrDuplicateID) {
			return nil, apperrors.Persistence("Booking ID collision", err)
		}
		return nil, apperrors.Persistence("Failed to persist booking", err)
	}

	s.mirror.Append(ctx, booking, model.MirrorSourceLocal)

	s.cfg.Log.Info("Booking committed",
		"booking_id", booking.ID,
		"resource_id", booking.ResourceID,
		"patient_id", booking.PatientID,
		"start_time", booking.StartTime,
		"status", booking.Status,
	)

	return &model.BookingResult{
		Success:   true,
		BookingID: booking.ID,
		Status:    booking.Status,
		Message:   "booking committed",
	}, nil
}

func (s *bookingService) buildBooking(req BookRequest) *model.Booking {
	durationMinutes := req.DurationMinutes
	if durationMinutes == 0 {
		durationMinutes = s.cfg.DefaultSlotDurationMin
	}

	status := req.Status
	if status == "" {
		status = model.StatusTentative
	}

	start := req.StartTime.In(s.cfg.Location)
	now := s.stamp()
	return &model.Booking{
		ID:              newBookingID(),
		ResourceID:      req.ResourceID,
		PatientID:       req.PatientID,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(durationMinutes) * time.Minute),
		DurationMinutes: durationMinutes,
		Status:          status,
		Reason:          req.Reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// stamp returns the audit timestamp for a mutation. Mongo stores millisecond
// precision, so truncate up front to keep round-tripped values comparable.
func (s *bookingService) stamp() time.Time {
	return s.clk.Now().UTC().Truncate(time.Millisecond)
}

func (s *bookingService) Reschedule(ctx context.Context, id string, start time.Time, durationMinutes int) (*model.BookingResult, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !booking.IsActive() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("Cannot reschedule a %s booking", booking.Status))
	}

	if durationMinutes == 0 {
		durationMinutes = booking.DurationMinutes
	}

	moved := *booking
	moved.StartTime = start.In(s.cfg.Location)
	moved.EndTime = moved.StartTime.Add(time.Duration(durationMinutes) * time.Minute)
	moved.DurationMinutes = durationMinutes

	if err := s.validate(&moved); err != nil {
		return nil, err
	}

	handle, err := s.acquireResourceLock(ctx, booking.ResourceID)
	if err != nil {
		return nil, err
	}
	defer s.releaseResourceLock(ctx, handle, booking.ResourceID)

	// The booking being moved must not conflict with itself.
	if err := s.checkConflicts(ctx, booking.ResourceID, moved.Interval(), booking.ID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateInterval(ctx, id, moved.StartTime, moved.EndTime, durationMinutes, s.stamp()); err != nil {
		s.cfg.Log.Error("Failed to reschedule booking", "booking_id", id, "error", err)
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Persistence("Failed to reschedule booking", err)
	}

	s.mirror.Append(ctx, &moved, model.MirrorSourceLocal)

	s.cfg.Log.Info("Booking rescheduled",
		"booking_id", id,
		"resource_id", booking.ResourceID,
		"start_time", moved.StartTime,
	)

	return &model.BookingResult{
		Success:   true,
		BookingID: id,
		Status:    booking.Status,
		Message:   "booking rescheduled",
	}, nil
}

// Cancel releases a booking's capacity. Cancelling an already cancelled
// booking succeeds without touching anything.
func (s *bookingService) Cancel(ctx context.Context, id string) (*model.BookingResult, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.Status == model.StatusCancelled {
		return &model.BookingResult{
			Success:   true,
			BookingID: id,
			Status:    model.StatusCancelled,
			Message:   "booking already cancelled",
		}, nil
	}

	handle, err := s.acquireResourceLock(ctx, booking.ResourceID)
	if err != nil {
		return nil, err
	}
	defer s.releaseResourceLock(ctx, handle, booking.ResourceID)

	if err := s.repo.UpdateStatus(ctx, id, model.StatusCancelled, "", s.stamp()); err != nil {
		s.cfg.Log.Error("Failed to cancel booking", "booking_id", id, "error", err)
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Persistence("Failed to cancel booking", err)
	}

	s.mirror.AppendTombstone(ctx, booking)

	s.cfg.Log.Info("Booking cancelled", "booking_id", id, "resource_id", booking.ResourceID)

	return &model.BookingResult{
		Success:   true,
		BookingID: id,
		Status:    model.StatusCancelled,
		Message:   "booking cancelled",
	}, nil
}

// Confirm reconciles an external confirmation: status moves to confirmed and
// the external reference is recorded. The interval was already validated when
// the booking committed, so there is no conflict re-check.
func (s *bookingService) Confirm(ctx context.Context, id string, externalRef string) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.StatusCancelled {
		return nil, apperrors.Conflict("Cannot confirm a cancelled booking")
	}

	if err := s.repo.UpdateStatus(ctx, id, model.StatusConfirmed, externalRef, s.stamp()); err != nil {
		s.cfg.Log.Error("Failed to confirm booking", "booking_id", id, "error", err)
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Persistence("Failed to confirm booking", err)
	}

	booking.Status = model.StatusConfirmed
	booking.ExternalRef = externalRef

	s.mirror.Append(ctx, booking, model.MirrorSourceReconciled)

	s.cfg.Log.Info("Booking confirmed",
		"booking_id", id,
		"external_ref", externalRef,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Persistence("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Persistence("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Persistence("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// --- Helpers ---

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	if !booking.EndTime.After(s.clk.Now()) {
		return apperrors.InvalidInput("Booking must end in the future")
	}
	return nil
}

func (s *bookingService) acquireResourceLock(ctx context.Context, resourceID string) (locking.Handle, error) {
	handle, err := s.locks.Acquire(ctx, "resource:"+resourceID, s.cfg.LockWaitTimeout)
	if err != nil {
		if errors.Is(err, locking.ErrLockTimeout) {
			s.cfg.Log.Warn("Resource lock wait timed out",
				"resource_id", resourceID,
				"wait", s.cfg.LockWaitTimeout,
			)
			return nil, apperrors.LockTimeout("Resource is busy, please retry")
		}
		return nil, apperrors.Internal("Failed to acquire resource lock", err)
	}
	return handle, nil
}

func (s *bookingService) releaseResourceLock(ctx context.Context, handle locking.Handle, resourceID string) {
	if err := handle.Release(ctx); err != nil {
		s.cfg.Log.Warn("Failed to release resource lock", "resource_id", resourceID, "error", err)
	}
}

// checkConflicts re-validates the interval under the lock against both the
// ledger and the calendar mirror. excludeID skips the booking being moved.
func (s *bookingService) checkConflicts(ctx context.Context, resourceID string, iv model.Interval, excludeID string) error {
	existing, err := s.repo.FindActiveByResource(ctx, resourceID, model.ActiveStatuses, iv.Start, iv.End)
	if err != nil {
		return apperrors.Persistence("Failed to check existing bookings", err)
	}
	for _, b := range existing {
		if b.ID == excludeID {
			continue
		}
		if iv.Overlaps(b.Interval()) {
			return apperrors.Conflict(fmt.Sprintf(
				"Requested time overlaps an existing booking (%s - %s)",
				b.StartTime.Format(time.RFC3339),
				b.EndTime.Format(time.RFC3339),
			))
		}
	}

	mirrored, err := s.mirror.BusyIntervals(ctx, resourceID, iv.Start, iv.End, excludeID)
	if err != nil {
		return err
	}
	for _, m := range mirrored {
		if iv.Overlaps(m) {
			return apperrors.Conflict(fmt.Sprintf(
				"Requested time overlaps a mirrored calendar entry (%s - %s)",
				m.Start.Format(time.RFC3339),
				m.End.Format(time.RFC3339),
			))
		}
	}
	return nil
}
