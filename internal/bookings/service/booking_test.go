package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	bookingserrors "medsched/internal/bookings/errors"
	"medsched/internal/bookings/validator"
	"medsched/pkg/clock"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/locking"
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

// --- Mocks ---

type mockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking

	insertFn         func(ctx context.Context, b *model.Booking) error
	updateIntervalFn func(ctx context.Context, id string, start, end time.Time, durationMinutes int) error
}

func newMockBookingRepository() *mockBookingRepository {
	return &mockBookingRepository{bookings: make(map[string]*model.Booking)}
}

func (m *mockBookingRepository) Insert(ctx context.Context, b *model.Booking) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bookings[b.ID]; exists {
		return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateID, b.ID)
	}
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
	}
	cp := *b
	return &cp, nil
}

func (m *mockBookingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.bookings {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockBookingRepository) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.bookings)), nil
}

func (m *mockBookingRepository) FindActiveByResource(ctx context.Context, resourceID string, statuses []string, from, to time.Time) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}
	var out []*model.Booking
	for _, b := range m.bookings {
		if b.ResourceID != resourceID || !allowed[b.Status] {
			continue
		}
		if !to.IsZero() && !b.StartTime.Before(to) {
			continue
		}
		if !from.IsZero() && !b.EndTime.After(from) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockBookingRepository) FindIntervals(ctx context.Context, resourceID string, statuses []string, from, to time.Time) ([]model.Interval, error) {
	bookings, err := m.FindActiveByResource(ctx, resourceID, statuses, from, to)
	if err != nil {
		return nil, err
	}
	var out []model.Interval
	for _, b := range bookings {
		out = append(out, b.Interval())
	}
	return out, nil
}

func (m *mockBookingRepository) UpdateInterval(ctx context.Context, id string, start, end time.Time, durationMinutes int, updatedAt time.Time) error {
	if m.updateIntervalFn != nil {
		return m.updateIntervalFn(ctx, id, start, end, durationMinutes)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
	}
	b.StartTime = start
	b.EndTime = end
	b.DurationMinutes = durationMinutes
	b.UpdatedAt = updatedAt
	return nil
}

func (m *mockBookingRepository) UpdateStatus(ctx context.Context, id string, status string, externalRef string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
	}
	b.Status = status
	if externalRef != "" {
		b.ExternalRef = externalRef
	}
	b.UpdatedAt = updatedAt
	return nil
}

type mirrorAppend struct {
	booking model.Booking
	source  string
}

type mockMirrorService struct {
	mu      sync.Mutex
	appends []mirrorAppend
	busy    []model.Interval
	busyIDs []string
}

func (m *mockMirrorService) Append(ctx context.Context, booking *model.Booking, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends = append(m.appends, mirrorAppend{booking: *booking, source: source})
}

func (m *mockMirrorService) AppendTombstone(ctx context.Context, booking *model.Booking) {
	m.Append(ctx, booking, model.MirrorSourceCancelled)
}

func (m *mockMirrorService) BusyIntervals(ctx context.Context, resourceID string, from, to time.Time, exclude ...string) ([]model.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	var out []model.Interval
	for i, iv := range m.busy {
		if i < len(m.busyIDs) && excluded[m.busyIDs[i]] {
			continue
		}
		out = append(out, iv)
	}
	return out, nil
}

type countingLockProvider struct {
	inner    locking.Provider
	acquires int
}

func (p *countingLockProvider) Acquire(ctx context.Context, key string, wait time.Duration) (locking.Handle, error) {
	p.acquires++
	return p.inner.Acquire(ctx, key, wait)
}

// --- Fixtures ---

func testConfig() *config.Config {
	return &config.Config{
		Location:               kolkata,
		BookingHorizonDays:     14,
		DefaultSlotDurationMin: 30,
		MaxSlotResults:         100,
		LockWaitTimeout:        2 * time.Second,
		Log:                    logger.NewNop(),
	}
}

func fixedClock() clock.Clock {
	return clock.Fixed{Instant: time.Date(2026, 8, 28, 8, 0, 0, 0, kolkata)}
}

func futureStart() time.Time {
	return time.Date(2026, 9, 1, 10, 0, 0, 0, kolkata)
}

func newTestService(repo *mockBookingRepository, mirror *mockMirrorService, locks locking.Provider) BookingService {
	cfg := testConfig()
	return NewBookingService(
		repo,
		mirror,
		locks,
		validator.NewBookingValidator(cfg.Log),
		fixedClock(),
		cfg,
	)
}

func validRequest() BookRequest {
	return BookRequest{
		ResourceID:      "doc-1",
		PatientID:       "pat-1",
		StartTime:       futureStart(),
		DurationMinutes: 30,
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	return apperrors.AsAppError(err).Code
}

// --- Tests ---

func TestBookSuccess(t *testing.T) {
	repo := newMockBookingRepository()
	mirror := &mockMirrorService{}
	svc := newTestService(repo, mirror, locking.NewMemoryProvider())

	result, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(result.BookingID) != 9 || result.BookingID[0] != 'A' {
		t.Errorf("expected A-prefixed 9 character booking ID, got %q", result.BookingID)
	}
	if result.Status != model.StatusTentative {
		t.Errorf("expected tentative status, got %q", result.Status)
	}

	stored, err := repo.FindByID(context.Background(), result.BookingID)
	if err != nil {
		t.Fatalf("booking not persisted: %v", err)
	}
	if !stored.EndTime.Equal(futureStart().Add(30 * time.Minute)) {
		t.Errorf("wrong end time: %v", stored.EndTime)
	}

	if len(mirror.appends) != 1 || mirror.appends[0].source != model.MirrorSourceLocal {
		t.Errorf("expected one local mirror append, got %+v", mirror.appends)
	}
}

func TestBookDefaultDuration(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, &mockMirrorService{}, locking.NewMemoryProvider())

	req := validRequest()
	req.DurationMinutes = 0
	result, err := svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), result.BookingID)
	if stored.DurationMinutes != 30 {
		t.Errorf("expected default 30 minute duration, got %d", stored.DurationMinutes)
	}
}

func TestBookValidationRejectsBeforeLock(t *testing.T) {
	repo := newMockBookingRepository()
	locks := &countingLockProvider{inner: locking.NewMemoryProvider()}
	svc := newTestService(repo, &mockMirrorService{}, locks)

	req := validRequest()
	req.PatientID = ""
	_, err := svc.Book(context.Background(), req)
	if code := appCode(t, err); code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", code)
	}
	if locks.acquires != 0 {
		t.Errorf("validation failure must not take the lock, got %d acquisitions", locks.acquires)
	}
	if n, _ := repo.Count(context.Background()); n != 0 {
		t.Errorf("expected no bookings, got %d", n)
	}
}

func TestBookInvalidDuration(t *testing.T) {
	svc := newTestService(newMockBookingRepository(), &mockMirrorService{}, locking.NewMemoryProvider())

	req := validRequest()
	req.DurationMinutes = 3
	_, err := svc.Book(context.Background(), req)
	if code := appCode(t, err); code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", code)
	}
}

func TestBookStampsTimestampsFromClock(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, &mockMirrorService{}, locking.NewMemoryProvider())

	result, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	want := fixedClock().Now().UTC().Truncate(time.Millisecond)
	stored, err := repo.FindByID(context.Background(), result.BookingID)
	if err != nil {
		t.Fatalf("stored booking not found: %v", err)
	}
	if !stored.CreatedAt.Equal(want) {
		t.Errorf("created_at must come from the injected clock, got %v want %v", stored.CreatedAt, want)
	}
	if !stored.UpdatedAt.Equal(want) {
		t.Errorf("updated_at must come from the injected clock, got %v want %v", stored.UpdatedAt, want)
	}

	if _, err := svc.Cancel(context.Background(), result.BookingID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	cancelled, _ := repo.FindByID(context.Background(), result.BookingID)
	if !cancelled.UpdatedAt.Equal(want) {
		t.Errorf("cancel must stamp updated_at from the injected clock, got %v want %v", cancelled.UpdatedAt, want)
	}
}

func TestBookRejectsNonActiveStatus(t *testing.T) {
	for _, status := range []string{model.StatusCancelled, model.StatusCompleted} {
		repo := newMockBookingRepository()
		mirror := &mockMirrorService{}
		svc := newTestService(repo, mirror, locking.NewMemoryProvider())

		req := validRequest()
		req.Status = status
		_, err := svc.Book(context.Background(), req)
		if code := appCode(t, err); code != apperrors.CodeInvalidInput {
			t.Fatalf("status %s: expected invalid input, got %s", status, code)
		}

		if n, _ := repo.Count(context.Background()); n != 0 {
			t.Errorf("status %s: rejected booking must not be stored, got %d", status, n)
		}
		if len(mirror.appends) != 0 {
			t.Errorf("status %s: rejected booking must not reach the mirror, got %d appends", status, len(mirror.appends))
		}
	}
}

func TestBookConflictAgainstLedger(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, &mockMirrorService{}, locking.NewMemoryProvider())

	first, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// Same slot, different patient.
	req := validRequest()
	req.PatientID = "pat-2"
	_, err = svc.Book(context.Background(), req)
	if code := appCode(t, err); code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %s", code)
	}

	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("conflict must not create a booking, got %d", n)
	}
	if _, err := repo.FindByID(context.Background(), first.BookingID); err != nil {
		t.Errorf("original booking must survive: %v", err)
	}
}

func TestBookConflictAgainstMirror(t *testing.T) {
	mirror := &mockMirrorService{
		busy: []model.Interval{{
			Start: futureStart(),
			End:   futureStart().Add(30 * time.Minute),
		}},
	}
	svc := newTestService(newMockBookingRepository(), mirror, locking.NewMemoryProvider())

	_, err := svc.Book(context.Background(), validRequest())
	if code := appCode(t, err); code != apperrors.CodeConflict {
		t.Fatalf("expected conflict from mirror, got %s", code)
	}
}

func TestBookBackToBackAllowed(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, &mockMirrorService{}, locking.NewMemoryProvider())

	if _, err := svc.Book(context.Background(), validRequest()); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	req := validRequest()
	req.StartTime = futureStart().Add(30 * time.Minute)
	if _, err := svc.Book(context.Background(), req); err != nil {
		t.Fatalf("back-to-back booking must succeed: %v", err)
	}
}

func TestBookLockTimeout(t *testing.T) {
	provider := locking.NewMemoryProvider()
	held, err := provider.Acquire(context.Background(), "resource:doc-1", time.Second)
	if err != nil {
		t.Fatalf("setup acquire failed: %v", err)
	}
	defer held.Release(context.Background())

	repo := newMockBookingRepository()
	cfg := testConfig()
	cfg.LockWaitTimeout = 50 * time.Millisecond
	svc := NewBookingService(repo, &mockMirrorService{}, provider,
		validator.NewBookingValidator(cfg.Log), fixedClock(), cfg)

	_, err = svc.Book(context.Background(), validRequest())
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeLockTimeout {
		t.Fatalf("expected lock timeout, got %s", appErr.Code)
	}
	if !appErr.Retryable() {
		t.Error("lock timeout must be retryable")
	}
	if n, _ := repo.Count(context.Background()); n != 0 {
		t.Errorf("lock timeout must not create a booking, got %d", n)
	}
}

func TestBookPersistenceError(t *testing.T) {
	repo := newMockBookingRepository()
	repo.insertFn = func(ctx context.Context, b *model.Booking) error {
		return errors.New("write concern error")
	}
	mirror := &mockMirrorService{}
	svc := newTestService(repo, mirror, locking.NewMemoryProvider())

	_, err := svc.Book(context.Background(), validRequest())
	if code := appCode(t, err); code != apperrors.CodePersistence {
		t.Fatalf("expected persistence error, got %s", code)
	}
	if len(mirror.appends) != 0 {
		t.Errorf("failed insert must not reach the mirror, got %+v", mirror.appends)
	}
}

func TestBookRaceOneWinner(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, &mockMirrorService{}, locking.NewMemoryProvider())

	const contenders = 8
	var wg sync.WaitGroup
	results := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := validRequest()
			req.PatientID = fmt.Sprintf("pat-%d", i)
			_, results[i] = svc.Book(context.Background(), req)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		if code := apperrors.AsAppError(err).Code; code != apperrors.CodeConflict {
			t.Errorf("loser should see a conflict, got %s", code)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if n, _ := repo.Count(context.Background()); n != 1 {
		t.Errorf("expected exactly one stored booking, got %d", n)
	}
}

func TestRescheduleSuccess(t *testing.T) {
	repo := newMockBookingRepository()
	mirror := &mockMirrorService{}
	svc := newTestService(repo, mirror, locking.NewMemoryProvider())

	created, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	newStart := futureStart().Add(2 * time.Hour)
	result, err := svc.Reschedule(context.Background(), created.BookingID, newStart, 0)
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	moved, _ := repo.FindByID(context.Background(), created.BookingID)
	if !moved.StartTime.Equal(newStart) {
		t.Errorf("expected start %v, got %v", newStart, moved.StartTime)
	}
	if moved.DurationMinutes != 30 {
		t.Errorf("duration must carry over, got %d", moved.DurationMinutes)
	}
	if len(mirror.appends) != 2 {
		t.Errorf("expected mirror appends for create and move, got %d", len(mirror.appends))
	}
}

func TestRescheduleConflictLeavesOriginal(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, &mockMirrorService{}, locking.NewMemoryProvider())

	_, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	second := validRequest()
	second.PatientID = "pat-2"
	second.StartTime = futureStart().Add(time.Hour)
	moved, err := svc.Book(context.Background(), second)
	if err != nil {
		t.Fatalf("second booking failed: %v", err)
	}

	// Try to move the second on top of the first.
	_, err = svc.Reschedule(context.Background(), moved.BookingID, futureStart(), 0)
	if code := appCode(t, err); code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %s", code)
	}

	unchanged, _ := repo.FindByID(context.Background(), moved.BookingID)
	if !unchanged.StartTime.Equal(futureStart().Add(time.Hour)) {
		t.Errorf("failed reschedule must leave the original interval, got %v", unchanged.StartTime)
	}
}

func TestRescheduleDoesNotConflictWithSelf(t *testing.T) {
	repo := newMockBookingRepository()
	svc := newTestService(repo, &mockMirrorService{}, locking.NewMemoryProvider())

	created, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// Shift by 15 minutes; the new interval overlaps the old one.
	if _, err := svc.Reschedule(context.Background(), created.BookingID, futureStart().Add(15*time.Minute), 0); err != nil {
		t.Fatalf("overlapping self-move must succeed: %v", err)
	}
}

func TestCancelFreesCapacity(t *testing.T) {
	repo := newMockBookingRepository()
	mirror := &mockMirrorService{}
	svc := newTestService(repo, mirror, locking.NewMemoryProvider())

	created, err := svc.Book(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), created.BookingID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	last := mirror.appends[len(mirror.appends)-1]
	if last.source != model.MirrorSourceCancelled {
		t.Errorf("expected cancellation tombstone, got %q", last.source)
	}

	// The slot is free again.
	req := validRequest()
	req.PatientID = "pat-2"
	if _, err := svc.Book(context.Background(), req); err != nil {
		t.Fatalf("rebooking a cancelled slot must succeed: %v", err)
	}
}

func TestCancelIdempotent(t *testing.T) {
	repo := newMockBookingRepository()
	mirror := &mockMirrorService{}
	svc := newTestService(repo, mirror, locking.NewMemoryProvider())

	created, _ := svc.Book(context.Background(), validRequest())
	if _, err := svc.Cancel(context.Background(), created.BookingID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	tombstones := len(mirror.appends)

	result, err := svc.Cancel(context.Background(), created.BookingID)
	if err != nil {
		t.Fatalf("repeated cancel must succeed: %v", err)
	}
	if !result.Success || result.Status != model.StatusCancelled {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(mirror.appends) != tombstones {
		t.Errorf("repeated cancel must not append more tombstones")
	}
}

func TestConfirmRecordsExternalRef(t *testing.T) {
	repo := newMockBookingRepository()
	mirror := &mockMirrorService{}
	svc := newTestService(repo, mirror, locking.NewMemoryProvider())

	created, _ := svc.Book(context.Background(), validRequest())
	booking, err := svc.Confirm(context.Background(), created.BookingID, "ext-42")
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if booking.Status != model.StatusConfirmed || booking.ExternalRef != "ext-42" {
		t.Errorf("unexpected booking state: %+v", booking)
	}

	last := mirror.appends[len(mirror.appends)-1]
	if last.source != model.MirrorSourceReconciled {
		t.Errorf("expected reconciled mirror append, got %q", last.source)
	}
}

func TestConfirmCancelledBooking(t *testing.T) {
	svc := newTestService(newMockBookingRepository(), &mockMirrorService{}, locking.NewMemoryProvider())

	created, _ := svc.Book(context.Background(), validRequest())
	if _, err := svc.Cancel(context.Background(), created.BookingID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err := svc.Confirm(context.Background(), created.BookingID, "ext-42")
	if code := appCode(t, err); code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %s", code)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	svc := newTestService(newMockBookingRepository(), &mockMirrorService{}, locking.NewMemoryProvider())

	_, err := svc.GetByID(context.Background(), "A00000000")
	if code := appCode(t, err); code != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %s", code)
	}
}
