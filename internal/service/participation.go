package service

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
)

type ParticipationService struct {
	repo  domain.ParticipationRepository
	cache domain.CacheRepository
}

func NewParticipationService(repo domain.ParticipationRepository, cache domain.CacheRepository) *ParticipationService {
	return &ParticipationService{repo: repo, cache: cache}
}

func (s *ParticipationService) RSVP(ctx context.Context, traceID, idempotencyKey string, eventID, userID uuid.UUID) (domain.RSVPStatus, error) {
	// cache fast-fail before the row lock
	if s.cache != nil {
		snap, err := s.cache.GetEventSnapshot(ctx, eventID)
		if err == nil && snap.Capacity < 0 {
			return "", domain.ErrEventNotPublished
		} else if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
			// ignore redis errors
		}
	}
	return s.repo.RSVP(ctx, traceID, idempotencyKey, eventID, userID)
}

func (s *ParticipationService) Cancel(ctx context.Context, traceID, idempotencyKey string, eventID, userID uuid.UUID) error {
	return s.repo.CancelRSVP(ctx, traceID, idempotencyKey, eventID, userID)
}

func (s *ParticipationService) GetMyParticipation(ctx context.Context, eventID, userID uuid.UUID) (domain.RSVP, error) {
	return s.repo.GetRSVP(ctx, eventID, userID)
}

func (s *ParticipationService) CheckIn(ctx context.Context, traceID string, eventID, userID uuid.UUID) error {
	return s.repo.CheckIn(ctx, traceID, eventID, userID, time.Now().UTC())
}

func (s *ParticipationService) ListMyRSVPs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.RSVP, int, error) {
	return s.repo.ListMyRSVPs(ctx, userID, limit, offset)
}
