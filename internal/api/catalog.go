package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/rentalops/internal/auth"
	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/models"
)

func respond[T any](w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, v)
}

// Genres

func (h *Handler) GetGenreHandler(w http.ResponseWriter, r *http.Request) {
	g, err := h.catalog.GetGenre(r.Context(), mux.Vars(r)["id"])
	respond(w, r, g, err)
}

func (h *Handler) CreateGenreHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAndValidate[models.GenreRequest](h, w, r.Body)
	if !ok {
		return
	}
	g, err := h.catalog.CreateGenre(r.Context(), req)
	respond(w, r, g, err)
}

func (h *Handler) UpdateGenreHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAndValidate[models.GenreRequest](h, w, r.Body)
	if !ok {
		return
	}
	g, err := h.catalog.UpdateGenre(r.Context(), mux.Vars(r)["id"], req)
	respond(w, r, g, err)
}

func (h *Handler) DeleteGenreHandler(w http.ResponseWriter, r *http.Request) {
	g, err := h.catalog.DeleteGenre(r.Context(), mux.Vars(r)["id"])
	respond(w, r, g, err)
}

// Movies

func (h *Handler) GetMovieHandler(w http.ResponseWriter, r *http.Request) {
	m, err := h.catalog.GetMovie(r.Context(), mux.Vars(r)["id"])
	respond(w, r, m, err)
}

func (h *Handler) CreateMovieHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAndValidate[models.MovieRequest](h, w, r.Body)
	if !ok {
		return
	}
	m, err := h.catalog.CreateMovie(r.Context(), req)
	respond(w, r, m, err)
}

func (h *Handler) UpdateMovieHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAndValidate[models.MovieRequest](h, w, r.Body)
	if !ok {
		return
	}
	m, err := h.catalog.UpdateMovie(r.Context(), mux.Vars(r)["id"], req)
	respond(w, r, m, err)
}

func (h *Handler) DeleteMovieHandler(w http.ResponseWriter, r *http.Request) {
	m, err := h.catalog.DeleteMovie(r.Context(), mux.Vars(r)["id"])
	respond(w, r, m, err)
}

// Customers

func (h *Handler) GetCustomerHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.GetCustomer(r.Context(), mux.Vars(r)["id"])
	respond(w, r, c, err)
}

func (h *Handler) CreateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAndValidate[models.CustomerRequest](h, w, r.Body)
	if !ok {
		return
	}
	c, err := h.catalog.CreateCustomer(r.Context(), req)
	respond(w, r, c, err)
}

func (h *Handler) UpdateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAndValidate[models.CustomerRequest](h, w, r.Body)
	if !ok {
		return
	}
	c, err := h.catalog.UpdateCustomer(r.Context(), mux.Vars(r)["id"], req)
	respond(w, r, c, err)
}

func (h *Handler) DeleteCustomerHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.DeleteCustomer(r.Context(), mux.Vars(r)["id"])
	respond(w, r, c, err)
}

// Users

func (h *Handler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAndValidate[models.UserRequest](h, w, r.Body)
	if !ok {
		return
	}
	u, err := h.catalog.RegisterUser(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	w.Header().Set(headerAuthToken, token)
	respondWithJSON(w, http.StatusOK, u)
}

// GetMeHandler returns the authenticated user.
func (h *Handler) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.catalog.GetUser(r.Context(), auth.ActorFrom(r.Context()).ID)
	respond(w, r, u, err)
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	u, err := h.catalog.GetUser(r.Context(), mux.Vars(r)["id"])
	respond(w, r, u, err)
}

func (h *Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	if !h.ownsOrAdmin(w, r) {
		return
	}
	req, ok := decodeAndValidate[models.UserRequest](h, w, r.Body)
	if !ok {
		return
	}
	u, err := h.catalog.UpdateUser(r.Context(), auth.ActorFrom(r.Context()), mux.Vars(r)["id"], req)
	respond(w, r, u, err)
}

func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	if !h.ownsOrAdmin(w, r) {
		return
	}
	u, err := h.catalog.DeleteUser(r.Context(), mux.Vars(r)["id"])
	respond(w, r, u, err)
}

// ownsOrAdmin lets users change their own account; admins may change any.
func (h *Handler) ownsOrAdmin(w http.ResponseWriter, r *http.Request) bool {
	actor := auth.ActorFrom(r.Context())
	if actor == nil || (!actor.IsAdmin && actor.ID != mux.Vars(r)["id"]) {
		respondWithServiceError(w, r, domain.ErrForbidden)
		return false
	}
	return true
}

// LoginHandler exchanges credentials for an access token.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAndValidate[models.LoginRequest](h, w, r.Body)
	if !ok {
		return
	}
	token, err := h.catalog.Login(r.Context(), req)
	if errors.Is(err, domain.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Invalid email or password")
		return
	}
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"token": token})
}
