package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/punchamoorthee/rentalops/internal/auth"
)

const (
	headerRequestID = "X-Request-ID"
	headerAuthToken = "x-auth-token"
	bearerPrefix    = "Bearer "
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// Observe extracts the incoming trace context, attaches a request-scoped
// logger, records the request metrics and writes the access log.
func Observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, requestID)

		logCtx := zlog.With().Str("request_id", requestID)
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			logCtx = logCtx.Str("trace_id", sc.TraceID().String())
		}
		logger := logCtx.Logger()
		ctx = logger.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		endpoint := routeTemplate(r)
		elapsed := time.Since(start)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(elapsed.Seconds())

		var event *zerolog.Event
		switch {
		case rec.status >= http.StatusInternalServerError:
			event = logger.Error()
		case rec.status >= http.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Info()
		}
		event.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("latency", elapsed).
			Msg("request handled")
	})
}

// Recover turns a panic in a handler into a 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				zerolog.Ctx(r.Context()).Error().Interface("panic", p).Msg("handler panicked")
				respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequireAuth resolves the caller from the access token. A missing token is
// 401; a token that does not validate is 400.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(headerAuthToken)
		if token == "" {
			if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, bearerPrefix) {
				token = strings.TrimPrefix(authz, bearerPrefix)
			}
		}
		if token == "" {
			respondWithError(w, http.StatusUnauthorized, "Access denied. No token provided")
			return
		}

		actor, err := h.tokens.Validate(token)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("token rejected")
			respondWithError(w, http.StatusBadRequest, "Invalid token")
			return
		}

		ctx := auth.WithActor(r.Context(), actor)
		logger := zerolog.Ctx(ctx).With().Str("user_id", actor.ID).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx)))
	})
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := auth.ActorFrom(r.Context())
		if actor == nil || !actor.IsAdmin {
			respondWithError(w, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateID rejects requests whose {id} route variable is not a UUID.
func ValidateID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := mux.Vars(r)["id"]; ok {
			if _, err := uuid.Parse(id); err != nil {
				respondWithError(w, http.StatusBadRequest, "Invalid ID")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
