package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"kabinet/internal/database"
	"kabinet/internal/events"
	"kabinet/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func testBooking(id int64) *models.Booking {
	now := time.Now()
	return &models.Booking{
		ID:            id,
		UserID:        1,
		ServiceID:     2,
		ServiceName:   "Консультация",
		ClientName:    "Анна",
		Phone:         "+79991234567",
		PreferredDate: "15 Марта",
		PreferredTime: "10:00",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	booking := testBooking(1)
	if err := worker.EnqueueTask(ctx, TaskUpsert, booking.ID, booking); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upsertCalls)
	}
	if sheets.lastBooking == nil || sheets.lastBooking.ClientName != "Анна" {
		t.Fatalf("booking not passed through payload: %+v", sheets.lastBooking)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, 2, testBooking(2)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}

	// до наступления next_retry_at задача не выдаётся опросом
	pending, err := db.GetPendingSyncTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no due tasks, got %d", len(pending))
	}
}

func TestProcessTaskFailGoesToDeadLetter(t *testing.T) {
	db := newTestDB(t)
	mr, client := newTestRedis(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSheetsWorker(db, sheets, client, RetryPolicy{MaxAttempts: 1}, nil)

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskDelete, 3, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, ok := worker.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task in redis queue")
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}

	dead, err := mr.List(worker.deadLetterKey)
	if err != nil {
		t.Fatalf("deadletter list: %v", err)
	}
	if len(dead) != 1 {
		t.Fatalf("expected 1 deadletter entry, got %d", len(dead))
	}
	var stored models.SyncTask
	if err := json.Unmarshal([]byte(dead[0]), &stored); err != nil {
		t.Fatalf("decode deadletter: %v", err)
	}
	if stored.BookingID != 3 {
		t.Fatalf("expected booking 3 in deadletter, got %d", stored.BookingID)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	task := models.SyncTask{TaskType: TaskUpsert, BookingID: 9, Payload: "{not json", Status: models.SyncStatusPending}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestEnqueueUsesRedisWhenAvailable(t *testing.T) {
	db := newTestDB(t)
	mr, client := newTestRedis(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, client, RetryPolicy{}, nil)

	if err := worker.EnqueueTask(context.Background(), TaskUpsert, 0, testBooking(5)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	queued, err := mr.List(worker.redisQueueKey)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("expected 1 redis task, got %d", len(queued))
	}
	if _, ok := worker.tryLocalQueue(); ok {
		t.Fatalf("memory queue must stay empty when redis accepted the task")
	}
}

func TestEnqueueFallsBackToMemoryWhenRedisDown(t *testing.T) {
	db := newTestDB(t)
	mr, client := newTestRedis(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, client, RetryPolicy{}, nil)
	mr.Close()

	if err := worker.EnqueueTask(context.Background(), TaskUpsert, 6, testBooking(6)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in memory queue")
	}
	if task.BookingID != 6 {
		t.Fatalf("expected booking 6, got %d", task.BookingID)
	}
}

func TestSheetsWorker_HandleSheetTask(t *testing.T) {
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(nil, sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{Booking: testBooking(1)}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", sheets.upsertCalls)
		}
	})

	t.Run("UpsertWithoutBooking", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskUpsert, sheetTaskPayload{BookingID: 1}); err == nil {
			t.Fatalf("expected error for missing booking")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, TaskDelete, sheetTaskPayload{BookingID: 123}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.deleteCalls != 1 || sheets.lastDeleted != 123 {
			t.Fatalf("expected delete of 123, got %d calls for %d", sheets.deleteCalls, sheets.lastDeleted)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if err := worker.handleSheetTask(ctx, "update_status", sheetTaskPayload{BookingID: 1}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestSheetsWorker_EnqueueTaskValidation(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	if err := worker.EnqueueTask(ctx, "", 1, nil); err == nil {
		t.Fatalf("expected error for empty task type")
	}
	if err := worker.EnqueueTask(ctx, TaskUpsert, 0, nil); err == nil {
		t.Fatalf("expected error for missing booking id")
	}
}

func TestSheetsWorker_SubscribeEnqueuesFromEvents(t *testing.T) {
	db := newTestDB(t)
	worker := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	bus := events.NewEventBus()
	worker.Subscribe(bus)

	created := events.BookingEventPayload{BookingID: 7, UserID: 1, ServiceName: "Терапия", ClientName: "Олег", CreatedAt: time.Now()}
	if err := bus.PublishJSON(events.EventBookingCreated, created); err != nil {
		t.Fatalf("publish created: %v", err)
	}
	if err := bus.PublishJSON(events.EventBookingDeleted, events.BookingEventPayload{BookingID: 7}); err != nil {
		t.Fatalf("publish deleted: %v", err)
	}

	upsert, ok := worker.tryLocalQueue()
	if !ok || upsert.TaskType != TaskUpsert {
		t.Fatalf("expected upsert task, got %+v", upsert)
	}
	payload, err := decodePayload(upsert.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Booking == nil || payload.Booking.ServiceName != "Терапия" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	del, ok := worker.tryLocalQueue()
	if !ok || del.TaskType != TaskDelete || del.BookingID != 7 {
		t.Fatalf("expected delete task for 7, got %+v", del)
	}
}

func TestStartDrainsAndStops(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)
	worker.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	if err := worker.EnqueueTask(ctx, TaskUpsert, 8, testBooking(8)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sheets.upserts() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
	if sheets.upserts() != 1 {
		t.Fatalf("expected 1 upsert, got %d", sheets.upserts())
	}
}

func TestRetryPolicySchedule(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}.withDefaults()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		retryCount int
		delay      time.Duration
		exhausted  bool
	}{
		{0, time.Second, false},
		{1, 2 * time.Second, false},
		{2, 4 * time.Second, true},
		{10, 5 * time.Second, true},
	}
	for _, c := range cases {
		task := &models.SyncTask{TaskType: TaskUpsert, BookingID: 7, RetryCount: c.retryCount}
		if got := policy.NextRunAt(task, now); !got.Equal(now.Add(c.delay)) {
			t.Fatalf("retry_count=%d: expected run at +%s, got %s", c.retryCount, c.delay, got.Sub(now))
		}
		if got := policy.Exhausted(task); got != c.exhausted {
			t.Fatalf("retry_count=%d: expected exhausted=%v", c.retryCount, c.exhausted)
		}
	}

	def := (RetryPolicy{}).withDefaults()
	if def != DefaultRetryPolicy() {
		t.Fatalf("zero policy expected defaults, got %+v", def)
	}
	if d := def.Delay(0); d != 2*time.Second {
		t.Fatalf("default first delay expected 2s, got %s", d)
	}
}

// Helpers

type fakeSheets struct {
	mu          sync.Mutex
	err         error
	upsertCalls int
	deleteCalls int
	lastBooking *models.Booking
	lastDeleted int64
}

func (f *fakeSheets) UpsertBooking(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.lastBooking = b
	return f.err
}

func (f *fakeSheets) DeleteBookingRow(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	f.lastDeleted = id
	return f.err
}

func (f *fakeSheets) upserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCalls
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
