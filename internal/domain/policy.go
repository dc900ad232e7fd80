package domain

import "math"

// Platform fee: 10% of the ticket amount, clamped to [50, 200].
// Values are whole currency units, same as event prices.
const (
	feePercent = 10.0
	feeFloor   = 50.0
	feeCeiling = 200.0

	// MinPayoutAmount is the smallest attended-revenue balance a partner can
	// withdraw, in the same currency unit as booking amounts.
	MinPayoutAmount = 100.0
)

func PlatformFee(ticketAmount float64) float64 {
	fee := ticketAmount * feePercent / 100
	if fee < feeFloor {
		fee = feeFloor
	}
	if fee > feeCeiling {
		fee = feeCeiling
	}
	return fee
}

// OrderBreakdown is what the client is asked to pay for a paid booking.
type OrderBreakdown struct {
	TicketAmount float64
	PlatformFee  float64
	Total        float64
	// AmountMinor is Total in gateway minor units (paise for INR).
	AmountMinor int64
}

func NewOrderBreakdown(price float64, ticketCount int) OrderBreakdown {
	ticketAmount := price * float64(ticketCount)
	fee := PlatformFee(ticketAmount)
	total := ticketAmount + fee
	return OrderBreakdown{
		TicketAmount: ticketAmount,
		PlatformFee:  fee,
		Total:        total,
		AmountMinor:  int64(math.Round(total * 100)),
	}
}
