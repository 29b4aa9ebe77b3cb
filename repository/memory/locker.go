package memory

import (
	"context"
	"sync"

	"github.com/fastygo/sanctuary/repository"
)

// Locker is a process-local SeriesLocker built from one buffered channel per series.
type Locker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]chan struct{})}
}

var _ repository.SeriesLocker = (*Locker)(nil)

func (l *Locker) slot(seriesID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[seriesID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[seriesID] = ch
	}
	return ch
}

func (l *Locker) Lock(ctx context.Context, seriesID string) (func(context.Context) error, error) {
	ch := l.slot(seriesID)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}
