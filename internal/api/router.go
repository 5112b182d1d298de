package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every route. Public reads need no token; writes need
// one and destructive catalog operations additionally need an admin.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(Observe, Recover)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()

	authed := func(f http.HandlerFunc) http.Handler { return h.RequireAuth(f) }
	admin := func(f http.HandlerFunc) http.Handler { return h.RequireAuth(RequireAdmin(f)) }

	apiRouter.HandleFunc("/login", h.LoginHandler).Methods(http.MethodPost)

	apiRouter.Handle("/genres", authed(h.CreateGenreHandler)).Methods(http.MethodPost)
	apiRouter.Handle("/genres/{id}", ValidateID(http.HandlerFunc(h.GetGenreHandler))).Methods(http.MethodGet)
	apiRouter.Handle("/genres/{id}", ValidateID(authed(h.UpdateGenreHandler))).Methods(http.MethodPut)
	apiRouter.Handle("/genres/{id}", ValidateID(admin(h.DeleteGenreHandler))).Methods(http.MethodDelete)

	apiRouter.Handle("/movies", authed(h.CreateMovieHandler)).Methods(http.MethodPost)
	apiRouter.Handle("/movies/{id}", ValidateID(http.HandlerFunc(h.GetMovieHandler))).Methods(http.MethodGet)
	apiRouter.Handle("/movies/{id}", ValidateID(authed(h.UpdateMovieHandler))).Methods(http.MethodPut)
	apiRouter.Handle("/movies/{id}", ValidateID(admin(h.DeleteMovieHandler))).Methods(http.MethodDelete)

	apiRouter.Handle("/customers", authed(h.CreateCustomerHandler)).Methods(http.MethodPost)
	apiRouter.Handle("/customers/{id}", ValidateID(http.HandlerFunc(h.GetCustomerHandler))).Methods(http.MethodGet)
	apiRouter.Handle("/customers/{id}", ValidateID(authed(h.UpdateCustomerHandler))).Methods(http.MethodPut)
	apiRouter.Handle("/customers/{id}", ValidateID(authed(h.DeleteCustomerHandler))).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/users", h.RegisterUserHandler).Methods(http.MethodPost)
	apiRouter.Handle("/users/me", authed(h.GetMeHandler)).Methods(http.MethodGet)
	apiRouter.Handle("/users/{id}", ValidateID(authed(h.GetUserHandler))).Methods(http.MethodGet)
	apiRouter.Handle("/users/{id}", ValidateID(authed(h.UpdateUserHandler))).Methods(http.MethodPut)
	apiRouter.Handle("/users/{id}", ValidateID(authed(h.DeleteUserHandler))).Methods(http.MethodDelete)

	apiRouter.Handle("/rentals", authed(h.OpenRentalHandler)).Methods(http.MethodPost)
	apiRouter.Handle("/rentals/{id}", ValidateID(http.HandlerFunc(h.GetRentalHandler))).Methods(http.MethodGet)
	apiRouter.Handle("/rentals/{id}", ValidateID(authed(h.CloseRentalHandler))).Methods(http.MethodPatch)
	apiRouter.Handle("/rentals/{id}", ValidateID(admin(h.CancelRentalHandler))).Methods(http.MethodDelete)

	return r
}
