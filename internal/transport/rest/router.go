package rest

import (
	"net/http"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/gatherly/events-api/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Cache     domain.CacheRepository
	Handler   *Handler
	Verifier  security.AccessTokenVerifier
	JWTIssuer string

	RateLimit       int
	RateLimitWindow time.Duration

	// RateLimitDisabled turns the limiter off entirely (dev/test).
	RateLimitDisabled bool
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Cache == nil {
		panic("rest.NewRouter: nil cache")
	}
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}
	if d.RateLimit <= 0 {
		d.RateLimit = 100
	}
	if d.RateLimitWindow <= 0 {
		d.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()

	// Request ID + structured access log
	r.Use(RequestID)
	r.Use(HTTPLogger)

	// Panic recovery
	r.Use(middleware.Recoverer)

	// Cross-cutting
	if !d.RateLimitDisabled {
		r.Use(RateLimitMiddleware(d.Cache, d.RateLimit, d.RateLimitWindow))
	}
	r.Use(SecurityHeaders)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(d.Verifier, AuthOptions{ExpectedIssuer: d.JWTIssuer}))

		// events
		r.Get("/events", d.Handler.ListEvents)
		r.Post("/events", d.Handler.CreateEvent)
		r.Get("/events/{eventID}", d.Handler.GetEvent)
		r.Patch("/events/{eventID}", d.Handler.UpdateEvent)
		r.Delete("/events/{eventID}", d.Handler.CancelEvent)
		r.Get("/events/{eventID}/attendees", d.Handler.Attendees)

		// free-event participation
		r.Post("/events/{eventID}/rsvp", d.Handler.RSVP)
		r.Delete("/events/{eventID}/rsvp", d.Handler.CancelRSVP)
		r.Get("/events/{eventID}/rsvp", d.Handler.GetMyParticipation)
		r.Post("/events/{eventID}/checkin", d.Handler.CheckIn)

		// paid-event flow
		r.Post("/payments/orders", d.Handler.CreateOrder)
		r.Post("/payments/verify", d.Handler.VerifyPayment)
		r.Get("/payments/{paymentID}", d.Handler.GetPayment)

		r.Post("/bookings", d.Handler.CreateBooking)
		r.Get("/bookings/{bookingID}", d.Handler.GetBooking)
		r.Delete("/bookings/{bookingID}", d.Handler.CancelBooking)
		r.Post("/bookings/{bookingID}/refund", d.Handler.RequestRefund)

		// reads
		r.Get("/me/rsvps", d.Handler.MyRSVPs)
		r.Get("/me/bookings", d.Handler.MyBookings)

		// partner surface
		r.Get("/partner/analytics", d.Handler.PartnerAnalytics)
		r.Get("/partner/payouts", d.Handler.ListPayouts)
		r.Post("/partner/payouts", d.Handler.RequestPayout)
	})

	return r
}
