package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/internal/infrastructure/buffer"
	"github.com/fastygo/sanctuary/repository"
	"github.com/fastygo/sanctuary/repository/memory"
	"github.com/fastygo/sanctuary/usecase/series"
)

type switchHealth struct {
	mu     sync.Mutex
	online bool
}

func (h *switchHealth) IsOnline() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online
}

func (h *switchHealth) set(v bool) {
	h.mu.Lock()
	h.online = v
	h.mu.Unlock()
}

// flakyAttendance fails until healed.
type flakyAttendance struct {
	*memory.AttendanceStore
	mu     sync.Mutex
	broken bool
}

func (f *flakyAttendance) Record(ctx context.Context, a *domain.Attendance) (*domain.Attendance, bool, error) {
	f.mu.Lock()
	broken := f.broken
	f.mu.Unlock()
	if broken {
		return nil, false, errors.New("connection refused")
	}
	return f.AttendanceStore.Record(ctx, a)
}

func (f *flakyAttendance) heal() {
	f.mu.Lock()
	f.broken = false
	f.mu.Unlock()
}

func openBuffer(t *testing.T) *buffer.Store {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), "buffer", 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newProcessor(t *testing.T, health ConnectionHealth, attendance repository.AttendanceRepository, requests repository.PrayerRequestRepository) (*BufferProcessor, *buffer.Store) {
	store := openBuffer(t)
	return NewBufferProcessor(store, health, attendance, requests, nil, ProcessorConfig{Interval: time.Hour, MaxRetries: 2}), store
}

func TestBridgeWritesThroughWhenOnline(t *testing.T) {
	requests := memory.NewPrayerRequestStore()
	bp, store := newProcessor(t, &switchHealth{online: true}, memory.NewAttendanceStore(), requests)
	bridge := NewBufferBridge(bp)

	req := &domain.PrayerRequest{ID: "req-1", AuthorID: "alice", Text: "Peace", Visibility: domain.VisibilityPublic, Status: domain.RequestSubmitted}
	require.NoError(t, bridge.BufferPrayerRequest(context.Background(), req))

	stored, err := requests.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "Peace", stored.Text)
	assert.Zero(t, bp.Size())
	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestBufferedAttendanceIsReplayedOnce(t *testing.T) {
	health := &switchHealth{}
	attendance := &flakyAttendance{AttendanceStore: memory.NewAttendanceStore(), broken: true}
	bp, _ := newProcessor(t, health, attendance, memory.NewPrayerRequestStore())
	bridge := NewBufferBridge(bp)

	record := &domain.Attendance{ID: "att-1", UserID: "grace", ActivityID: "act-1", JoinedAt: time.Now().UTC()}
	require.NoError(t, bridge.BufferAttendance(context.Background(), record))
	require.NoError(t, bridge.BufferAttendance(context.Background(), record))
	assert.Equal(t, 1, bp.Size())

	// Offline drains leave the buffer alone.
	require.NoError(t, bp.Drain(context.Background()))
	assert.Equal(t, 1, bp.Size())

	health.set(true)
	attendance.heal()
	require.NoError(t, bp.Drain(context.Background()))
	assert.Zero(t, bp.Size())

	list, err := attendance.ListByActivity(context.Background(), "act-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "att-1", list[0].ID)
}

func TestDrainDropsAfterMaxRetries(t *testing.T) {
	health := &switchHealth{online: true}
	attendance := &flakyAttendance{AttendanceStore: memory.NewAttendanceStore(), broken: true}
	bp, store := newProcessor(t, health, attendance, memory.NewPrayerRequestStore())

	payload, err := json.Marshal(domain.Attendance{ID: "att-2", UserID: "grace", ActivityID: "act-1"})
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(buffer.Item{ID: "att-2", Entity: buffer.EntityAttendance, Operation: buffer.OperationRecord, Data: payload}))

	require.NoError(t, bp.Drain(context.Background()))
	assert.Equal(t, 1, bp.Size())
	require.NoError(t, bp.Drain(context.Background()))
	assert.Zero(t, bp.Size())
}

func TestDrainDropsUnknownEntity(t *testing.T) {
	bp, store := newProcessor(t, nil, memory.NewAttendanceStore(), memory.NewPrayerRequestStore())
	require.NoError(t, store.Enqueue(buffer.Item{Entity: "task", Data: json.RawMessage(`{}`)}))

	require.NoError(t, bp.Drain(context.Background()))
	assert.Zero(t, bp.Size())
}

type countingSweeper struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (s *countingSweeper) ExtendAll(context.Context) (series.SweepReport, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	return series.SweepReport{Series: 1}, nil
}

func TestHorizonSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewHorizonScheduler(&countingSweeper{}, "every day", time.Second, nil)
	require.Error(t, err)

	_, err = NewHorizonScheduler(nil, "@every 1h", time.Second, nil)
	require.Error(t, err)

	_, err = NewHorizonScheduler(&countingSweeper{}, "0 0 3 * * *", time.Second, nil)
	require.NoError(t, err)
}

func TestHorizonSchedulerSkipsOverlappingRuns(t *testing.T) {
	sweeper := &countingSweeper{release: make(chan struct{})}
	hs, err := NewHorizonScheduler(sweeper, "@every 1h", time.Second, nil)
	require.NoError(t, err)

	done := make(chan bool)
	go func() { done <- hs.RunOnce(context.Background()) }()

	require.Eventually(t, func() bool {
		sweeper.mu.Lock()
		defer sweeper.mu.Unlock()
		return sweeper.calls == 1
	}, time.Second, 5*time.Millisecond)

	assert.False(t, hs.RunOnce(context.Background()))
	close(sweeper.release)
	assert.True(t, <-done)
	assert.True(t, hs.RunOnce(context.Background()))
}
