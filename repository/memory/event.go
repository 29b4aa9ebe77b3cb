package memory

import (
	"context"
	"sync"

	"github.com/fastygo/sanctuary/domain"
	"github.com/fastygo/sanctuary/repository"
)

// EventLog is an append-only in-memory EventRepository.
type EventLog struct {
	mu     sync.RWMutex
	events []domain.Event
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

var _ repository.EventRepository = (*EventLog)(nil)

func (l *EventLog) Append(_ context.Context, event domain.Event) error {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

func (l *EventLog) ListBySubject(_ context.Context, subjectID string, limit int) ([]domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Event
	for _, e := range l.events {
		if subjectID != "" && e.SubjectID != subjectID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
