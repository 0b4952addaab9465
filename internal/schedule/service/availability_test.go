package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"medsched/internal/schedule/validator"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/logger"
	"medsched/pkg/model"
)

var kolkata = mustLoadLocation("Asia/Kolkata")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type mockAvailabilityRepository struct {
	rows      []model.AvailabilityRow
	findErr   error
	replaced  []model.AvailabilityRow
	replaceFn func(ctx context.Context, resourceID string, rows []model.AvailabilityRow) error
}

func (m *mockAvailabilityRepository) FindRows(ctx context.Context, resourceID string, fromDate, toDate string) ([]model.AvailabilityRow, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []model.AvailabilityRow
	for _, row := range m.rows {
		if row.ResourceID != resourceID {
			continue
		}
		if fromDate != "" && row.Date < fromDate {
			continue
		}
		if toDate != "" && row.Date > toDate {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *mockAvailabilityRepository) CountForResource(ctx context.Context, resourceID string) (int64, error) {
	var n int64
	for _, row := range m.rows {
		if row.ResourceID == resourceID {
			n++
		}
	}
	return n, nil
}

func (m *mockAvailabilityRepository) ReplaceRows(ctx context.Context, resourceID string, rows []model.AvailabilityRow) error {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, resourceID, rows)
	}
	m.replaced = rows
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Location:               kolkata,
		DefaultSlotDurationMin: 30,
		Log:                    logger.NewNop(),
	}
}

func newTestService(repo *mockAvailabilityRepository) ScheduleService {
	cfg := testConfig()
	return NewScheduleService(repo, validator.NewAvailabilityValidator(cfg.Log), cfg)
}

func row(date, start, end string, slotMinutes int) model.AvailabilityRow {
	return model.AvailabilityRow{
		ResourceID:  "doc-1",
		Date:        date,
		WindowStart: start,
		WindowEnd:   end,
		SlotMinutes: slotMinutes,
	}
}

func day(date string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", date, kolkata)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRulesForNormalizesRows(t *testing.T) {
	repo := &mockAvailabilityRepository{rows: []model.AvailabilityRow{
		row("2026-09-01", "09:00", "12:00", 30),
		row("2026-09-02", "10:00:00", "13:30:00", 15),
	}}
	svc := newTestService(repo)

	rules, err := svc.RulesFor(context.Background(), "doc-1", day("2026-09-01"), day("2026-09-07"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].WindowStart != 9*time.Hour || rules[0].WindowEnd != 12*time.Hour {
		t.Errorf("unexpected first window: %v-%v", rules[0].WindowStart, rules[0].WindowEnd)
	}
	if rules[1].WindowStart != 10*time.Hour || rules[1].WindowEnd != 13*time.Hour+30*time.Minute {
		t.Errorf("unexpected second window: %v-%v", rules[1].WindowStart, rules[1].WindowEnd)
	}
	if rules[1].SlotMinutes != 15 {
		t.Errorf("expected 15 minute slots, got %d", rules[1].SlotMinutes)
	}
}

func TestRulesForSkipsUnparsableRows(t *testing.T) {
	repo := &mockAvailabilityRepository{rows: []model.AvailabilityRow{
		row("2026-09-01", "09:00", "12:00", 30),
		row("2026-09-01", "late morning", "12:00", 30),
		row("not-a-date", "09:00", "12:00", 30),
	}}
	svc := newTestService(repo)

	rules, err := svc.RulesFor(context.Background(), "doc-1", day("2026-09-01"), day("2026-09-07"))
	if err != nil {
		t.Fatalf("bad rows must not be fatal: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected only the clean rule, got %d", len(rules))
	}
}

func TestRulesForDropsEmptyWindows(t *testing.T) {
	repo := &mockAvailabilityRepository{rows: []model.AvailabilityRow{
		row("2026-09-01", "12:00", "09:00", 30),
		row("2026-09-01", "10:00", "10:00", 30),
	}}
	svc := newTestService(repo)

	rules, err := svc.RulesFor(context.Background(), "doc-1", day("2026-09-01"), day("2026-09-07"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("inverted and empty windows must be dropped, got %d rules", len(rules))
	}
}

func TestRulesForDefaultsSlotMinutes(t *testing.T) {
	repo := &mockAvailabilityRepository{rows: []model.AvailabilityRow{
		row("2026-09-01", "09:00", "12:00", 0),
	}}
	svc := newTestService(repo)

	rules, err := svc.RulesFor(context.Background(), "doc-1", day("2026-09-01"), day("2026-09-07"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rules[0].SlotMinutes != 30 {
		t.Errorf("expected configured default of 30, got %d", rules[0].SlotMinutes)
	}
}

func TestRulesForUnknownResource(t *testing.T) {
	svc := newTestService(&mockAvailabilityRepository{})

	_, err := svc.RulesFor(context.Background(), "ghost", day("2026-09-01"), day("2026-09-07"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := apperrors.AsAppError(err).Code; code != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %s", code)
	}
}

func TestRulesForKnownResourceOutOfRange(t *testing.T) {
	repo := &mockAvailabilityRepository{rows: []model.AvailabilityRow{
		row("2026-01-01", "09:00", "12:00", 30),
	}}
	svc := newTestService(repo)

	rules, err := svc.RulesFor(context.Background(), "doc-1", day("2026-09-01"), day("2026-09-07"))
	if err != nil {
		t.Fatalf("an empty range for a known resource is not an error: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected no rules, got %d", len(rules))
	}
}

func TestRulesForPersistenceError(t *testing.T) {
	repo := &mockAvailabilityRepository{findErr: errors.New("cursor timeout")}
	svc := newTestService(repo)

	_, err := svc.RulesFor(context.Background(), "doc-1", day("2026-09-01"), day("2026-09-07"))
	if code := apperrors.AsAppError(err).Code; code != apperrors.CodePersistence {
		t.Fatalf("expected persistence error, got %s", code)
	}
}

func TestReplaceRulesValidates(t *testing.T) {
	repo := &mockAvailabilityRepository{}
	svc := newTestService(repo)

	err := svc.ReplaceRules(context.Background(), "doc-1", []model.AvailabilityRow{
		row("2026-09-01", "12:00", "09:00", 30),
	})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if code := apperrors.AsAppError(err).Code; code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", code)
	}
	if repo.replaced != nil {
		t.Error("invalid rows must not be persisted")
	}
}

func TestReplaceRulesStoresValidRows(t *testing.T) {
	repo := &mockAvailabilityRepository{}
	svc := newTestService(repo)

	rows := []model.AvailabilityRow{
		row("2026-09-01", "09:00", "12:00", 30),
		row("2026-09-01", "14:00", "17:00", 30),
	}
	if err := svc.ReplaceRules(context.Background(), "doc-1", rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.replaced) != 2 {
		t.Fatalf("expected 2 stored rows, got %d", len(repo.replaced))
	}
}
