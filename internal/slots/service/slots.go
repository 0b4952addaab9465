package service

import (
	"context"
	"time"

	"medsched/internal/schedule/service"
	"medsched/internal/slots"
	"medsched/pkg/clock"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/model"
)

// LedgerSource yields intervals occupied by active bookings.
type LedgerSource interface {
	FindIntervals(ctx context.Context, resourceID string, statuses []string, from, to time.Time) ([]model.Interval, error)
}

// MirrorSource yields busy intervals from the calendar mirror.
type MirrorSource interface {
	BusyIntervals(ctx context.Context, resourceID string, from, to time.Time, exclude ...string) ([]model.Interval, error)
}

type SlotQuery struct {
	From            *time.Time
	To              *time.Time
	DurationMinutes int
	StepMinutes     int
	MaxResults      int
}

type SlotService interface {
	// FindSlots is a pure read: it takes no locks, so a returned slot is an
	// offer that the commit path re-validates.
	FindSlots(ctx context.Context, resourceID string, q SlotQuery) ([]model.Interval, error)
}

type slotService struct {
	schedules service.ScheduleService
	ledger    LedgerSource
	mirror    MirrorSource
	clk       clock.Clock
	cfg       *config.Config
}

func NewSlotService(
	schedules service.ScheduleService,
	ledger LedgerSource,
	mirror MirrorSource,
	clk clock.Clock,
	cfg *config.Config,
) SlotService {
	return &slotService{
		schedules: schedules,
		ledger:    ledger,
		mirror:    mirror,
		clk:       clk,
		cfg:       cfg,
	}
}

func (s *slotService) FindSlots(ctx context.Context, resourceID string, q SlotQuery) ([]model.Interval, error) {
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	now := s.clk.Now().In(s.cfg.Location)

	from := now
	if q.From != nil {
		from = q.From.In(s.cfg.Location)
	}
	to := from.AddDate(0, 0, s.cfg.BookingHorizonDays)
	if q.To != nil {
		to = q.To.In(s.cfg.Location)
	}
	if !to.After(from) {
		return nil, apperrors.InvalidInput("date_to must be after date_from")
	}

	durationMinutes := q.DurationMinutes
	if durationMinutes <= 0 {
		durationMinutes = s.cfg.DefaultSlotDurationMin
	}

	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > s.cfg.MaxSlotResults {
		maxResults = s.cfg.MaxSlotResults
	}

	rules, err := s.schedules.RulesFor(ctx, resourceID, from, to)
	if err != nil {
		return nil, err
	}

	busy, err := s.busyIntervals(ctx, resourceID, from, to)
	if err != nil {
		return nil, err
	}

	found := slots.Enumerate(rules, busy, now, slots.Options{
		Duration:   time.Duration(durationMinutes) * time.Minute,
		Step:       time.Duration(q.StepMinutes) * time.Minute,
		MaxResults: maxResults,
		Location:   s.cfg.Location,
	})

	s.cfg.Log.Debug("Slot search completed",
		"resource_id", resourceID,
		"from", from,
		"to", to,
		"duration_minutes", durationMinutes,
		"found", len(found),
	)
	return found, nil
}

// busyIntervals merges the booking ledger and the calendar mirror. The two
// sources may both carry the same booking; duplicates are harmless to the
// overlap test.
func (s *slotService) busyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]model.Interval, error) {
	booked, err := s.ledger.FindIntervals(ctx, resourceID, model.ActiveStatuses, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to load booked intervals", "resource_id", resourceID, "error", err)
		return nil, apperrors.Persistence("Failed to load booked intervals", err)
	}

	mirrored, err := s.mirror.BusyIntervals(ctx, resourceID, from, to)
	if err != nil {
		return nil, err
	}

	return append(booked, mirrored...), nil
}
