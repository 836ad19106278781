package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/careconnect/scheduling-service/internal/scheduling"
)

type RouterConfig struct {
	Schedules    *scheduling.ScheduleService
	Availability *scheduling.AvailabilityResolver
	Bookings     *scheduling.BookingCoordinator
	Lifecycle    *scheduling.LifecycleService
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       *zap.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints. Booking is rate limited per IP: a losing
	// booker is expected to re-fetch availability, not hammer retries.
	r.Route("/appointments", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(30, time.Minute))
			r.Post("/book", bookAppointmentHandler(cfg.Bookings))
		})
		r.Get("/", listAppointmentsHandler(cfg.Bookings))
		r.Get("/{id}", getAppointmentHandler(cfg.Bookings))
		r.Patch("/{id}/cancel", cancelAppointmentHandler(cfg.Lifecycle))
		r.Post("/{id}/confirm", confirmAppointmentHandler(cfg.Lifecycle))
		r.Post("/{id}/complete", completeAppointmentHandler(cfg.Lifecycle))
	})

	// Schedule endpoints
	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", createScheduleHandler(cfg.Schedules))
		r.Get("/", listSchedulesHandler(cfg.Schedules))
		r.Get("/available-slots", availableSlotsHandler(cfg.Availability))
		r.Patch("/{id}", updateScheduleHandler(cfg.Schedules))
		r.Delete("/{id}", deleteScheduleHandler(cfg.Schedules))
	})

	return r
}
