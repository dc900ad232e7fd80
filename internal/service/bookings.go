package service

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
)

type BookingService struct {
	repo  domain.BookingRepository
	cache domain.CacheRepository
}

func NewBookingService(repo domain.BookingRepository, cache domain.CacheRepository) *BookingService {
	return &BookingService{repo: repo, cache: cache}
}

func (s *BookingService) Create(ctx context.Context, traceID, idempotencyKey string, userID, eventID, paymentID uuid.UUID, ticketCount int) (domain.Booking, error) {
	if ticketCount <= 0 {
		ticketCount = 1
	}

	if s.cache != nil {
		snap, err := s.cache.GetEventSnapshot(ctx, eventID)
		if err == nil && snap.Capacity < 0 {
			return domain.Booking{}, domain.ErrEventNotPublished
		} else if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
			// ignore redis errors
		}
	}

	return s.repo.CreateBooking(ctx, traceID, idempotencyKey, userID, eventID, paymentID, ticketCount)
}

func (s *BookingService) Cancel(ctx context.Context, traceID, idempotencyKey string, userID, bookingID uuid.UUID) (domain.RefundQuote, error) {
	return s.repo.CancelBooking(ctx, traceID, idempotencyKey, userID, bookingID, time.Now().UTC())
}

func (s *BookingService) Get(ctx context.Context, bookingID, userID uuid.UUID) (domain.Booking, error) {
	return s.repo.GetBooking(ctx, bookingID, userID)
}

func (s *BookingService) ListMine(ctx context.Context, userID uuid.UUID, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, int, error) {
	return s.repo.ListMyBookings(ctx, userID, status, limit, offset)
}
