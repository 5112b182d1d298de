package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/rentalops/internal/auth"
	"github.com/punchamoorthee/rentalops/internal/idempotency"
	"github.com/punchamoorthee/rentalops/internal/models"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	idempotencyCleanup   = 5 * time.Second
)

// idempotencyKey scopes a client key to the caller so two users sending the
// same key never share a stored response.
func idempotencyKey(r *http.Request, key string) string {
	if actor := auth.ActorFrom(r.Context()); actor != nil {
		return actor.ID + ":" + key
	}
	return key
}

func (h *Handler) OpenRentalHandler(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Stream read error")
		return
	}

	req, ok := decodeAndValidate[models.OpenRentalRequest](h, w, bytes.NewReader(bodyBytes))
	if !ok {
		return
	}

	key := r.Header.Get(headerIdempotencyKey)
	if key == "" || h.idem == nil {
		h.openRental(w, r, req, "", "")
		return
	}
	key = idempotencyKey(r, key)

	reqHash := idempotency.HashRequest(bodyBytes)
	existing, err := h.idem.Begin(r.Context(), key, reqHash)
	switch {
	case errors.Is(err, idempotency.ErrInProgress):
		respondWithError(w, http.StatusConflict, "Request processing in progress")
		return
	case errors.Is(err, idempotency.ErrMismatch):
		respondWithError(w, http.StatusUnprocessableEntity, "Key reuse with mismatched payload")
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("idempotency lookup failed")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(existing.ResponseStatus)
		w.Write(existing.ResponseBody)
		return
	}

	h.openRental(w, r, req, key, reqHash)
}

func (h *Handler) openRental(w http.ResponseWriter, r *http.Request, req models.OpenRentalRequest, key, reqHash string) {
	ctx := r.Context()
	rental, err := h.rentals.OpenRental(ctx, auth.ActorFrom(ctx), req.CustomerID, req.MovieID)

	// The reservation must be settled even if the client has gone away.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idempotencyCleanup)
	defer cancel()

	if err != nil {
		if key != "" {
			if relErr := h.idem.Release(cleanupCtx, key); relErr != nil {
				zerolog.Ctx(ctx).Warn().Err(relErr).Msg("failed to release idempotency key")
			}
		}
		respondWithServiceError(w, r, err)
		return
	}

	if key != "" {
		body, err := json.Marshal(rental)
		if err == nil {
			err = h.idem.Complete(cleanupCtx, key, reqHash, http.StatusOK, body)
		}
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to store idempotent response")
		}
	}
	respondWithJSON(w, http.StatusOK, rental)
}

func (h *Handler) CloseRentalHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAndValidate[models.CloseRentalRequest](h, w, r.Body)
	if !ok {
		return
	}

	var dateIn time.Time
	if req.DateIn != nil {
		dateIn = req.DateIn.Time
	}

	ctx := r.Context()
	rental, err := h.rentals.CloseRental(ctx, auth.ActorFrom(ctx), mux.Vars(r)["id"], dateIn)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rental)
}

func (h *Handler) CancelRentalHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rental, err := h.rentals.CancelRental(ctx, auth.ActorFrom(ctx), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rental)
}

func (h *Handler) GetRentalHandler(w http.ResponseWriter, r *http.Request) {
	rental, err := h.catalog.GetRental(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rental)
}
