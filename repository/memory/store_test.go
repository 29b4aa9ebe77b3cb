package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
)

func occurrence(seriesID string, start time.Time) domain.ScheduledActivity {
	id := seriesID
	return domain.ScheduledActivity{
		Category: domain.CategoryPrayer,
		SeriesID: &id,
		Title:    "Morning prayer",
		StartAt:  start,
		EndAt:    start.Add(time.Hour),
		Venue:    domain.OfflineAt("Chapel"),
	}
}

func TestInsertOccurrencesSkipsExistingKeys(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	base := time.Date(2026, time.January, 5, 6, 0, 0, 0, time.UTC)

	n, err := store.InsertOccurrences(ctx, []domain.ScheduledActivity{
		occurrence("s1", base),
		occurrence("s1", base.AddDate(0, 0, 1)),
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = store.InsertOccurrences(ctx, []domain.ScheduledActivity{
		occurrence("s1", base.AddDate(0, 0, 1)),
		occurrence("s1", base.AddDate(0, 0, 2)),
		occurrence("s2", base),
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	all, err := store.ListSeriesFrom(ctx, "s1", base)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].StartAt.Equal(base))
}

func TestUpdateIfNotStartedIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	start := time.Date(2026, time.January, 20, 15, 0, 0, 0, time.UTC)
	a := occurrence("s1", start)
	_, err := store.Create(ctx, &a)
	require.NoError(t, err)

	a.Title = "Evening prayer"
	require.NoError(t, store.UpdateIfNotStarted(ctx, &a, start.Add(-time.Minute)))

	a.Title = "Too late"
	err = store.UpdateIfNotStarted(ctx, &a, start)
	require.True(t, domain.IsDomainError(err, domain.ErrCodeStaleWrite))
	assert.Equal(t, string(domain.StatusInProgress), domain.DetailOf(err, "status"))

	err = store.DeleteIfNotStarted(ctx, a.ID, start.Add(2*time.Hour))
	require.True(t, domain.IsDomainError(err, domain.ErrCodeStaleWrite))
	assert.Equal(t, string(domain.StatusCompleted), domain.DetailOf(err, "status"))

	stored, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening prayer", stored.Title)

	require.ErrorIs(t, store.DeleteIfNotStarted(ctx, "missing", start), domain.ErrActivityNotFound)
}

func TestListFiltersByWindow(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	base := time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		a := occurrence("s1", base.AddDate(0, 0, i))
		_, err := store.Create(ctx, &a)
		require.NoError(t, err)
	}

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 3)
	got, err := store.List(ctx, repository.ActivityFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = store.List(ctx, repository.ActivityFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestWatermarkOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	store := NewSeriesStore()
	s := &domain.ActivitySeries{Title: "Weekly"}
	_, err := store.Create(ctx, s)
	require.NoError(t, err)

	later := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AdvanceWatermark(ctx, s.ID, later))
	require.NoError(t, store.AdvanceWatermark(ctx, s.ID, later.AddDate(0, -1, 0)))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.GeneratedThrough)
	assert.True(t, got.GeneratedThrough.Equal(later))
}

func TestPrayerRequestVisibleTo(t *testing.T) {
	ctx := context.Background()
	store := NewPrayerRequestStore()
	for _, r := range []domain.PrayerRequest{
		{AuthorID: "a", Text: "public", Visibility: domain.VisibilityPublic},
		{AuthorID: "a", Text: "mine", Visibility: domain.VisibilityPrivate},
		{AuthorID: "b", Text: "theirs", Visibility: domain.VisibilityPrivate},
	} {
		r := r
		_, err := store.Create(ctx, &r)
		require.NoError(t, err)
	}

	got, err := store.List(ctx, repository.PrayerRequestFilter{VisibleTo: "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = store.List(ctx, repository.PrayerRequestFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestPrayerRequestTransitionChecksStatus(t *testing.T) {
	ctx := context.Background()
	store := NewPrayerRequestStore()
	req := &domain.PrayerRequest{AuthorID: "a", Text: "t", Status: domain.RequestSubmitted}
	_, err := store.Create(ctx, req)
	require.NoError(t, err)

	updated := *req
	require.NoError(t, updated.MarkPrayed(time.Now()))
	require.NoError(t, store.Transition(ctx, &updated, domain.RequestSubmitted))
	require.ErrorIs(t, store.Transition(ctx, &updated, domain.RequestSubmitted), domain.ErrInvalidTransition)
}

func TestAttendanceRecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewAttendanceStore()

	first, created, err := store.Record(ctx, &domain.Attendance{UserID: "u", ActivityID: "a", JoinedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := store.Record(ctx, &domain.Attendance{UserID: "u", ActivityID: "a", JoinedAt: time.Now()})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, again.ID)

	list, err := store.ListByActivity(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestLockerSerializesPerSeries(t *testing.T) {
	locker := NewLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, "s1")
			require.NoError(t, err)
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			_ = release(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	release, err := locker.Lock(ctx, "s1")
	require.NoError(t, err)
	timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(timeout, "s1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, release(ctx))

	other, err := locker.Lock(ctx, "s2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))
}

func TestFavoriteStoreIsUniquePerUserAndSeries(t *testing.T) {
	ctx := context.Background()
	store := NewFavoriteStore()
	base := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)

	first, created, err := store.Add(ctx, &domain.Favorite{UserID: "grace", SeriesID: "s1", CreatedAt: base})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, first.ID)

	again, created, err := store.Add(ctx, &domain.Favorite{UserID: "grace", SeriesID: "s1", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = store.Add(ctx, &domain.Favorite{UserID: "grace", SeriesID: "s2", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	mine, err := store.ListByUser(ctx, "grace")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "s2", mine[0].SeriesID)

	removed, err := store.Remove(ctx, "grace", "s1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = store.Remove(ctx, "grace", "s1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.Get(ctx, "grace", "s1")
	assert.ErrorIs(t, err, domain.ErrFavoriteNotFound)
}
