package service

import (
	"context"
	"time"

	"medsched/internal/mirror/repository"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/kafka"
	"medsched/pkg/model"

	"github.com/google/uuid"
)

// EventPublisher is satisfied by *kafka.Producer. Nil when eventing is off.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// MirrorService maintains the external calendar mirror. Appends are
// best-effort: the booking that triggered them has already committed, so a
// mirror failure is logged and swallowed rather than surfaced.
type MirrorService interface {
	Append(ctx context.Context, booking *model.Booking, source string)
	AppendTombstone(ctx context.Context, booking *model.Booking)
	BusyIntervals(ctx context.Context, resourceID string, from, to time.Time, exclude ...string) ([]model.Interval, error)
}

type mirrorService struct {
	repo      repository.MirrorRepository
	publisher EventPublisher
	cfg       *config.Config
}

func NewMirrorService(repo repository.MirrorRepository, publisher EventPublisher, cfg *config.Config) MirrorService {
	return &mirrorService{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *mirrorService) Append(ctx context.Context, booking *model.Booking, source string) {
	record := &model.MirrorRecord{
		EventID:    uuid.New().String(),
		BookingID:  booking.ID,
		ResourceID: booking.ResourceID,
		StartTime:  booking.StartTime,
		EndTime:    booking.EndTime,
		Source:     source,
	}

	if err := s.repo.Append(ctx, record); err != nil {
		s.cfg.Log.Warn("Calendar mirror append failed",
			"booking_id", booking.ID,
			"resource_id", booking.ResourceID,
			"source", source,
			"error", err,
		)
		return
	}

	s.publish(ctx, record)
}

func (s *mirrorService) AppendTombstone(ctx context.Context, booking *model.Booking) {
	s.Append(ctx, booking, model.MirrorSourceCancelled)
}

// publish emits the mirror event to Kafka, also best-effort.
func (s *mirrorService) publish(ctx context.Context, record *model.MirrorRecord) {
	if s.publisher == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(record.BookingID).
		WithValue(record).
		WithEventType("mirror." + record.Source).
		WithSource("scheduler").
		Build()

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Mirror event publish failed",
			"booking_id", record.BookingID,
			"event_id", record.EventID,
			"error", err,
		)
	}
}

// BusyIntervals returns the intervals the mirror considers occupied within
// [from, to). The latest event per booking wins; bookings whose latest event
// is a cancellation tombstone are free. Booking IDs in exclude are skipped,
// so a reschedule does not collide with its own earlier events.
func (s *mirrorService) BusyIntervals(ctx context.Context, resourceID string, from, to time.Time, exclude ...string) ([]model.Interval, error) {
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	records, err := s.repo.FindByResource(ctx, resourceID)
	if err != nil {
		s.cfg.Log.Error("Failed to load mirror events", "resource_id", resourceID, "error", err)
		return nil, apperrors.Persistence("Failed to load mirror events", err)
	}

	// records are in append order, so a plain overwrite keeps the latest.
	latest := make(map[string]model.MirrorRecord, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		if _, seen := latest[rec.BookingID]; !seen {
			order = append(order, rec.BookingID)
		}
		latest[rec.BookingID] = rec
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	rangeFilter := model.Interval{Start: from, End: to}
	var busy []model.Interval
	for _, bookingID := range order {
		if _, skip := excluded[bookingID]; skip {
			continue
		}
		rec := latest[bookingID]
		if rec.Source == model.MirrorSourceCancelled {
			continue
		}
		iv := rec.Interval()
		if !from.IsZero() && !to.IsZero() && !iv.Overlaps(rangeFilter) {
			continue
		}
		busy = append(busy, iv)
	}
	return busy, nil
}
