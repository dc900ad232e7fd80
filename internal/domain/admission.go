package domain

// AdmitRSVP decides the outcome of a free-event RSVP. existing is the caller's
// current RSVP status if a row exists (nil otherwise); a previously cancelled,
// waitlisted or expired RSVP re-runs admission instead of restoring its old
// status. Counters must come from a consistent read (the locked event row).
func AdmitRSVP(rsvpCount, capacity int, existing *RSVPStatus) (RSVPStatus, error) {
	if existing != nil && *existing == RSVPConfirmed {
		return "", ErrAlreadyConfirmed
	}
	if rsvpCount < capacity {
		return RSVPConfirmed, nil
	}
	return RSVPWaitlist, nil
}

// AdmitBooking is the binary paid-path check: no waitlist, reject outright.
func AdmitBooking(rsvpCount, capacity, ticketCount int, hasActiveBooking bool) error {
	if hasActiveBooking {
		return ErrDuplicateBooking
	}
	if rsvpCount+ticketCount > capacity {
		return ErrCapacityExceeded
	}
	return nil
}
