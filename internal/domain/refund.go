package domain

import "time"

// CheckInLeadTime is how long before the event start check-in opens.
const CheckInLeadTime = 30 * time.Minute

func CheckInOpen(startsAt, now time.Time) bool {
	return !now.Before(startsAt.Add(-CheckInLeadTime))
}

// RefundPercent maps time-to-start at the cancellation decision time to a
// refund tier: more than 24h out refunds fully, inside the final 24h half,
// after start nothing. Exactly 24h falls in the 50% tier.
func RefundPercent(eventStartsAt, decisionTime time.Time) int {
	hoursUntil := eventStartsAt.Sub(decisionTime).Hours()
	switch {
	case hoursUntil > 24:
		return 100
	case hoursUntil > 0:
		return 50
	default:
		return 0
	}
}

func RefundAmount(bookingAmount float64, percent int) float64 {
	return bookingAmount * float64(percent) / 100
}

// SettleRefund prices the refund for a cancelled booking. The base is the
// booking amount (ticket price times count); the platform fee is kept by the
// operator and never refunded.
func SettleRefund(bookingAmount float64, eventStartsAt, cancelledAt time.Time) (RefundQuote, error) {
	pct := RefundPercent(eventStartsAt, cancelledAt)
	amount := RefundAmount(bookingAmount, pct)
	if amount <= 0 {
		return RefundQuote{}, ErrNoRefundAvailable
	}
	return RefundQuote{Percent: pct, Amount: amount}, nil
}
