package domain_test

import (
	"testing"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func ptr(s domain.RSVPStatus) *domain.RSVPStatus { return &s }

func TestAdmitRSVP(t *testing.T) {
	tests := []struct {
		name      string
		rsvpCount int
		capacity  int
		existing  *domain.RSVPStatus
		want      domain.RSVPStatus
		wantErr   error
	}{
		{"Spots open", 5, 10, nil, domain.RSVPConfirmed, nil},
		{"Last spot", 9, 10, nil, domain.RSVPConfirmed, nil},
		{"Full goes to waitlist", 10, 10, nil, domain.RSVPWaitlist, nil},
		{"Full small event", 2, 2, nil, domain.RSVPWaitlist, nil},
		{"Already confirmed", 5, 10, ptr(domain.RSVPConfirmed), "", domain.ErrAlreadyConfirmed},
		{"Cancelled re-admits while open", 5, 10, ptr(domain.RSVPCancelled), domain.RSVPConfirmed, nil},
		{"Cancelled re-admits to waitlist when full", 10, 10, ptr(domain.RSVPCancelled), domain.RSVPWaitlist, nil},
		{"Waitlisted re-runs admission", 9, 10, ptr(domain.RSVPWaitlist), domain.RSVPConfirmed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.AdmitRSVP(tt.rsvpCount, tt.capacity, tt.existing)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdmitBooking(t *testing.T) {
	tests := []struct {
		name        string
		rsvpCount   int
		capacity    int
		ticketCount int
		hasActive   bool
		wantErr     error
	}{
		{"Fits", 5, 10, 2, false, nil},
		{"Takes the last seats", 8, 10, 2, false, nil},
		{"One over", 9, 10, 2, false, domain.ErrCapacityExceeded},
		{"Full", 10, 10, 1, false, domain.ErrCapacityExceeded},
		{"Duplicate booking", 0, 10, 1, true, domain.ErrDuplicateBooking},
		{"Duplicate wins over capacity", 10, 10, 1, true, domain.ErrDuplicateBooking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.AdmitBooking(tt.rsvpCount, tt.capacity, tt.ticketCount, tt.hasActive)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
