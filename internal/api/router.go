package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter builds the route table for the API. The author and title lookups
// are registered before the {id} routes so their path segments are not
// swallowed by the ID parameter.
func (h *Handler) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteFailure(w, http.StatusNotFound, "Resource not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", h.Logout).Methods(http.MethodPost)

	r.HandleFunc("/api/books", h.ListBooks).Methods(http.MethodGet)
	r.HandleFunc("/api/books/author/{author}", h.BooksByAuthor).Methods(http.MethodGet)
	r.HandleFunc("/api/books/title/{title}", h.BooksByTitle).Methods(http.MethodGet)
	r.HandleFunc("/api/books/{id}", h.BookByID).Methods(http.MethodGet)
	r.HandleFunc("/api/books/{id}/reviews", h.BookReviews).Methods(http.MethodGet)
	r.HandleFunc("/api/books/{id}/reviews", h.AddReview).Methods(http.MethodPut)
	r.HandleFunc("/api/books/{id}/reviews", h.DeleteReview).Methods(http.MethodDelete)

	return r
}
