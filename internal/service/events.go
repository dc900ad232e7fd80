package service

import (
	"context"
	"strings"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
)

const defaultCapacity = 20

type EventService struct {
	repo  domain.EventRepository
	cache domain.CacheRepository
}

func NewEventService(repo domain.EventRepository, cache domain.CacheRepository) *EventService {
	return &EventService{repo: repo, cache: cache}
}

func isPrivileged(role string) bool {
	return strings.ToLower(strings.TrimSpace(role)) == "admin"
}

func (s *EventService) requireHost(ctx context.Context, eventID, requesterID uuid.UUID, role string) (domain.Event, error) {
	ev, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if !isPrivileged(role) && ev.HostID != requesterID {
		return domain.Event{}, domain.ErrNotOwner
	}
	return ev, nil
}

type CreateEventInput struct {
	ClubID             uuid.UUID
	Title              string
	Description        string
	Type               domain.EventType
	StartsAt           time.Time
	EndsAt             *time.Time
	LocationName       string
	Capacity           int
	Price              float64
	CancellationPolicy string
	Publish            bool
}

func (s *EventService) Create(ctx context.Context, hostID uuid.UUID, in CreateEventInput) (domain.Event, error) {
	if in.Capacity <= 0 {
		in.Capacity = defaultCapacity
	}
	// a free event never carries a price
	if in.Type == domain.EventFree {
		in.Price = 0
	}

	status := domain.EventDraft
	if in.Publish {
		status = domain.EventPublished
	}

	ev := domain.Event{
		ID:                 uuid.New(),
		HostID:             hostID,
		ClubID:             in.ClubID,
		Title:              in.Title,
		Description:        in.Description,
		Status:             status,
		Type:               in.Type,
		StartsAt:           in.StartsAt,
		EndsAt:             in.EndsAt,
		LocationName:       in.LocationName,
		Capacity:           in.Capacity,
		Price:              in.Price,
		CancellationPolicy: in.CancellationPolicy,
	}
	if err := s.repo.CreateEvent(ctx, &ev); err != nil {
		return domain.Event{}, err
	}

	if s.cache != nil {
		_ = s.cache.SetEventSnapshot(ctx, ev.ID, domain.EventSnapshot{
			Capacity: ev.Capacity,
			Status:   ev.Status,
		})
	}
	return ev, nil
}

func (s *EventService) Get(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	return s.repo.GetEvent(ctx, id)
}

func (s *EventService) List(ctx context.Context, f domain.EventFilter, limit, offset int) ([]domain.Event, int, error) {
	return s.repo.ListEvents(ctx, f, limit, offset)
}

func (s *EventService) Update(ctx context.Context, eventID, requesterID uuid.UUID, role string, upd domain.EventUpdate) (domain.Event, error) {
	if _, err := s.requireHost(ctx, eventID, requesterID, role); err != nil {
		return domain.Event{}, err
	}

	ev, err := s.repo.UpdateEvent(ctx, eventID, upd)
	if err != nil {
		return domain.Event{}, err
	}

	if s.cache != nil {
		_ = s.cache.SetEventSnapshot(ctx, ev.ID, domain.EventSnapshot{
			Capacity: ev.Capacity,
			Status:   ev.Status,
		})
	}
	return ev, nil
}

func (s *EventService) Cancel(ctx context.Context, traceID string, eventID, requesterID uuid.UUID, role string) error {
	if _, err := s.requireHost(ctx, eventID, requesterID, role); err != nil {
		return err
	}
	if err := s.repo.CancelEvent(ctx, traceID, eventID); err != nil {
		return err
	}

	// closed marker: admission fast-fails without touching postgres
	if s.cache != nil {
		_ = s.cache.SetEventSnapshot(ctx, eventID, domain.EventSnapshot{
			Capacity: -1,
			Status:   domain.EventCancelled,
		})
	}
	return nil
}

func (s *EventService) Attendees(ctx context.Context, eventID, requesterID uuid.UUID, role string, limit, offset int) ([]domain.Attendee, int, error) {
	if _, err := s.requireHost(ctx, eventID, requesterID, role); err != nil {
		return nil, 0, err
	}
	return s.repo.ListAttendees(ctx, eventID, limit, offset)
}
