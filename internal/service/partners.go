package service

import (
	"context"
	"strings"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
)

type PartnerService struct {
	repo domain.PartnerRepository
}

func NewPartnerService(repo domain.PartnerRepository) *PartnerService {
	return &PartnerService{repo: repo}
}

func (s *PartnerService) Analytics(ctx context.Context, userID uuid.UUID) (domain.PartnerAnalytics, error) {
	if _, err := s.repo.GetPartnerByUser(ctx, userID); err != nil {
		return domain.PartnerAnalytics{}, err
	}
	return s.repo.Analytics(ctx, userID)
}

func (s *PartnerService) ListPayouts(ctx context.Context, userID uuid.UUID) ([]domain.Payout, error) {
	partner, err := s.repo.GetPartnerByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPayouts(ctx, partner.ID)
}

// RequestPayout gates on the partner's standing before any money math runs.
func (s *PartnerService) RequestPayout(ctx context.Context, traceID string, userID uuid.UUID) (domain.Payout, error) {
	partner, err := s.repo.GetPartnerByUser(ctx, userID)
	if err != nil {
		return domain.Payout{}, err
	}
	if !partner.IsVerified {
		return domain.Payout{}, domain.ErrPartnerNotVerified
	}
	if strings.TrimSpace(partner.BankDetails) == "" {
		return domain.Payout{}, domain.ErrBankDetailsMissing
	}
	return s.repo.RequestPayout(ctx, traceID, partner, userID)
}
