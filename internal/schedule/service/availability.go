package service

import (
	"context"
	"time"

	"medsched/internal/schedule/repository"
	"medsched/internal/schedule/validator"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/model"
	"medsched/pkg/timeutil"
)

type ScheduleService interface {
	// RulesFor returns the resource's normalized availability rules within
	// [from, to], ordered by (date, window start).
	RulesFor(ctx context.Context, resourceID string, from, to time.Time) ([]model.AvailabilityRule, error)
	Rows(ctx context.Context, resourceID string) ([]model.AvailabilityRow, error)
	ReplaceRules(ctx context.Context, resourceID string, rows []model.AvailabilityRow) error
}

type scheduleService struct {
	repo      repository.AvailabilityRepository
	validator *validator.AvailabilityValidator
	cfg       *config.Config
}

func NewScheduleService(
	repo repository.AvailabilityRepository,
	validator *validator.AvailabilityValidator,
	cfg *config.Config,
) ScheduleService {
	return &scheduleService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *scheduleService) RulesFor(ctx context.Context, resourceID string, from, to time.Time) ([]model.AvailabilityRule, error) {
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	rows, err := s.repo.FindRows(ctx, resourceID, timeutil.FormatDate(from), timeutil.FormatDate(to))
	if err != nil {
		s.cfg.Log.Error("Failed to load availability", "resource_id", resourceID, "error", err)
		return nil, apperrors.Persistence("Failed to load availability", err)
	}

	if len(rows) == 0 {
		count, err := s.repo.CountForResource(ctx, resourceID)
		if err != nil {
			s.cfg.Log.Error("Failed to count availability", "resource_id", resourceID, "error", err)
			return nil, apperrors.Persistence("Failed to load availability", err)
		}
		if count == 0 {
			return nil, apperrors.NotFoundWithID("Schedule", resourceID)
		}
		// Known resource, just nothing in range.
		return nil, nil
	}

	rules := make([]model.AvailabilityRule, 0, len(rows))
	for _, row := range rows {
		rule, ok := s.normalizeRow(row)
		if !ok {
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// normalizeRow converts a stored row into a typed rule. Malformed rows are
// skipped, not fatal: one bad row must never take a whole schedule offline.
func (s *scheduleService) normalizeRow(row model.AvailabilityRow) (model.AvailabilityRule, bool) {
	date, err := timeutil.ParseDate(row.Date, s.cfg.Location)
	if err != nil {
		s.cfg.Log.Warn("Skipping availability row with bad date",
			"resource_id", row.ResourceID, "date", row.Date, "error", err)
		return model.AvailabilityRule{}, false
	}

	start, err := timeutil.ParseClock(row.WindowStart)
	if err != nil {
		s.cfg.Log.Warn("Skipping availability row with bad window start",
			"resource_id", row.ResourceID, "date", row.Date, "window_start", row.WindowStart, "error", err)
		return model.AvailabilityRule{}, false
	}

	end, err := timeutil.ParseClock(row.WindowEnd)
	if err != nil {
		s.cfg.Log.Warn("Skipping availability row with bad window end",
			"resource_id", row.ResourceID, "date", row.Date, "window_end", row.WindowEnd, "error", err)
		return model.AvailabilityRule{}, false
	}

	if end <= start {
		s.cfg.Log.Warn("Skipping availability row with empty window",
			"resource_id", row.ResourceID, "date", row.Date,
			"window_start", row.WindowStart, "window_end", row.WindowEnd)
		return model.AvailabilityRule{}, false
	}

	slotMinutes := row.SlotMinutes
	if slotMinutes <= 0 {
		slotMinutes = s.cfg.DefaultSlotDurationMin
	}

	return model.AvailabilityRule{
		ResourceID:  row.ResourceID,
		Date:        date,
		WindowStart: start,
		WindowEnd:   end,
		SlotMinutes: slotMinutes,
	}, true
}

func (s *scheduleService) Rows(ctx context.Context, resourceID string) ([]model.AvailabilityRow, error) {
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	rows, err := s.repo.FindRows(ctx, resourceID, "", "")
	if err != nil {
		s.cfg.Log.Error("Failed to load availability", "resource_id", resourceID, "error", err)
		return nil, apperrors.Persistence("Failed to load availability", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFoundWithID("Schedule", resourceID)
	}
	return rows, nil
}

func (s *scheduleService) ReplaceRules(ctx context.Context, resourceID string, rows []model.AvailabilityRow) error {
	if resourceID == "" {
		return apperrors.InvalidInput("Resource ID cannot be empty")
	}

	if err := s.validator.ValidateRows(rows); err != nil {
		s.cfg.Log.Warn("Availability validation failed", "resource_id", resourceID, "error", err)
		return apperrors.Validation("Invalid availability rows", map[string]any{"error": err.Error()})
	}

	if err := s.repo.ReplaceRows(ctx, resourceID, rows); err != nil {
		s.cfg.Log.Error("Failed to replace availability", "resource_id", resourceID, "error", err)
		return apperrors.Persistence("Failed to replace availability", err)
	}

	s.cfg.Log.Info("Availability replaced",
		"resource_id", resourceID,
		"rows", len(rows),
	)
	return nil
}
