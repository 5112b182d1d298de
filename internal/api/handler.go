package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/rentalops/internal/auth"
	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/idempotency"
	"github.com/punchamoorthee/rentalops/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rental_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// IdempotencyStore remembers completed POST responses by Idempotency-Key.
type IdempotencyStore interface {
	Begin(ctx context.Context, key, requestHash string) (*idempotency.Record, error)
	Complete(ctx context.Context, key, requestHash string, status int, body []byte) error
	Release(ctx context.Context, key string) error
}

type Handler struct {
	rentals  *service.RentalService
	catalog  *service.CatalogService
	tokens   *auth.TokenService
	idem     IdempotencyStore
	validate *validator.Validate
}

// NewHandler wires the HTTP layer. idem may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandler(rentals *service.RentalService, catalog *service.CatalogService, tokens *auth.TokenService, idem IdempotencyStore) *Handler {
	return &Handler{
		rentals:  rentals,
		catalog:  catalog,
		tokens:   tokens,
		idem:     idem,
		validate: newValidator(),
	}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps domain errors onto HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	var invalid *domain.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Message
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusUnprocessableEntity, "Movie not in stock"
	case errors.Is(err, domain.ErrRentalAlreadyReturned):
		return http.StatusConflict, "Rental already processed"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Concurrent modification, retry the request"
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Access denied. No token provided"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	respondWithError(w, code, msg)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
