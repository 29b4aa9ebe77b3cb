package repository

import (
	"context"

	"github.com/fastygo/sanctuary/domain"
)

// PrayerRequestFilter narrows listings. VisibleTo, when set, keeps public
// requests plus the private requests authored by that user.
type PrayerRequestFilter struct {
	AuthorID  string
	VisibleTo string
	Status    domain.RequestStatus
	Limit     int
	Offset    int
}

type PrayerRequestRepository interface {
	GetByID(ctx context.Context, id string) (*domain.PrayerRequest, error)
	List(ctx context.Context, filter PrayerRequestFilter) ([]domain.PrayerRequest, error)
	Create(ctx context.Context, request *domain.PrayerRequest) (*domain.PrayerRequest, error)
	// Transition stores the request only if its stored status is still from.
	Transition(ctx context.Context, request *domain.PrayerRequest, from domain.RequestStatus) error
}
