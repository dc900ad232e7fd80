package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
)

type PaymentService struct {
	events   domain.EventRepository
	payments domain.PaymentRepository
	gateway  domain.PaymentGateway
	currency string
}

func NewPaymentService(events domain.EventRepository, payments domain.PaymentRepository, gateway domain.PaymentGateway, currency string) *PaymentService {
	return &PaymentService{events: events, payments: payments, gateway: gateway, currency: currency}
}

// OrderQuote is what the client needs to open the gateway checkout.
type OrderQuote struct {
	Payment        domain.Payment
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	KeyID          string
	Breakdown      domain.OrderBreakdown
}

// CreateOrder prices the tickets and opens a gateway order. The capacity check
// here is advisory; the seat is only taken when the verified payment is
// attached to a booking.
func (s *PaymentService) CreateOrder(ctx context.Context, userID, eventID uuid.UUID, ticketCount int) (OrderQuote, error) {
	if ticketCount <= 0 {
		ticketCount = 1
	}

	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return OrderQuote{}, err
	}
	if ev.Status != domain.EventPublished {
		return OrderQuote{}, domain.ErrEventNotPublished
	}
	if ev.Type != domain.EventPaid {
		return OrderQuote{}, domain.ErrFreeEventBooking
	}
	if !ev.StartsAt.After(time.Now()) {
		return OrderQuote{}, domain.ErrEventStarted
	}
	if err := domain.AdmitBooking(ev.RSVPCount, ev.Capacity, ticketCount, false); err != nil {
		return OrderQuote{}, err
	}

	bd := domain.NewOrderBreakdown(ev.Price, ticketCount)
	receipt := fmt.Sprintf("evt_%s_%d", eventID.String()[:8], time.Now().Unix())

	order, err := s.gateway.CreateOrder(ctx, bd.AmountMinor, s.currency, receipt, domain.OrderNotes{
		EventID:     eventID,
		UserID:      userID,
		TicketCount: ticketCount,
	})
	if err != nil {
		return OrderQuote{}, err
	}

	p := domain.Payment{
		ID:             uuid.New(),
		UserID:         userID,
		GatewayOrderID: order.ID,
		Amount:         bd.Total,
		Currency:       s.currency,
		Status:         domain.PaymentPending,
		Metadata: domain.PaymentMetadata{
			EventID:      eventID,
			TicketCount:  ticketCount,
			TicketAmount: bd.TicketAmount,
			PlatformFee:  bd.PlatformFee,
		},
	}
	if err := s.payments.InsertPending(ctx, &p); err != nil {
		return OrderQuote{}, err
	}

	return OrderQuote{
		Payment:        p,
		GatewayOrderID: order.ID,
		AmountMinor:    bd.AmountMinor,
		Currency:       s.currency,
		KeyID:          s.gateway.KeyID(),
		Breakdown:      bd,
	}, nil
}

// VerifyPayment settles the gateway callback. Replaying a callback for an
// already completed payment succeeds without touching the row; a bad
// signature permanently fails the payment. The bool reports whether this
// call performed the pending-to-completed transition, so replays can be told
// apart from first settlements.
func (s *PaymentService) VerifyPayment(ctx context.Context, traceID string, userID uuid.UUID, gatewayOrderID, gatewayPaymentID, signature string) (domain.Payment, bool, error) {
	p, err := s.payments.GetByOrderID(ctx, gatewayOrderID, userID)
	if err != nil {
		return domain.Payment{}, false, err
	}

	if p.Status == domain.PaymentCompleted {
		return p, false, nil
	}
	if p.Status != domain.PaymentPending {
		return domain.Payment{}, false, domain.ErrPaymentNotPending
	}

	if !s.gateway.VerifySignature(gatewayOrderID, gatewayPaymentID, signature) {
		_ = s.payments.MarkFailed(ctx, p.ID)
		return domain.Payment{}, false, domain.ErrSignatureMismatch
	}

	err = s.payments.MarkCompleted(ctx, traceID, p.ID, gatewayPaymentID, signature)
	if errors.Is(err, domain.ErrPaymentNotPending) {
		// lost the race: report whatever the winner left behind
		p, rerr := s.payments.GetByOrderID(ctx, gatewayOrderID, userID)
		if rerr != nil {
			return domain.Payment{}, false, rerr
		}
		if p.Status == domain.PaymentCompleted {
			return p, false, nil
		}
		return domain.Payment{}, false, domain.ErrPaymentNotPending
	}
	if err != nil {
		return domain.Payment{}, false, err
	}

	p, err = s.payments.GetPayment(ctx, p.ID, userID)
	if err != nil {
		return domain.Payment{}, false, err
	}
	return p, true, nil
}

func (s *PaymentService) Get(ctx context.Context, paymentID, userID uuid.UUID) (domain.Payment, error) {
	return s.payments.GetPayment(ctx, paymentID, userID)
}

func (s *PaymentService) RequestRefund(ctx context.Context, traceID string, bookingID, userID uuid.UUID, reason string) (domain.RefundQuote, error) {
	return s.payments.RefundBooking(ctx, traceID, bookingID, userID, reason)
}
