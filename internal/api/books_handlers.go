package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"shelfreads/internal/models"
	"shelfreads/internal/reviews"
)

type reviewRequest struct {
	Review string `json:"review"`
}

// ListBooks returns the whole catalog in seed order.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Books retrieved successfully", map[string][]models.Book{
		"books": h.Catalog.List(),
	})
}

// BookByID returns a single book by its catalog ID.
func (h *Handler) BookByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	book, ok := h.Catalog.Get(id)
	if !ok {
		h.writeFailure(w, http.StatusNotFound, "Book not found", nil)
		return
	}
	writeSuccess(w, http.StatusOK, "Book retrieved successfully", book)
}

// BooksByAuthor returns all books with an exactly matching author.
func (h *Handler) BooksByAuthor(w http.ResponseWriter, r *http.Request) {
	author := mux.Vars(r)["author"]
	books := h.Catalog.ByAuthor(author)
	if len(books) == 0 {
		h.writeFailure(w, http.StatusNotFound, "No books found by this author", nil)
		return
	}
	writeSuccess(w, http.StatusOK, "Books retrieved successfully", map[string][]models.Book{"books": books})
}

// BooksByTitle returns all books whose title matches case-insensitively.
func (h *Handler) BooksByTitle(w http.ResponseWriter, r *http.Request) {
	title := mux.Vars(r)["title"]
	books := h.Catalog.ByTitle(title)
	if len(books) == 0 {
		h.writeFailure(w, http.StatusNotFound, "No books found with this title", nil)
		return
	}
	writeSuccess(w, http.StatusOK, "Books retrieved successfully", map[string][]models.Book{"books": books})
}

// BookReviews returns the review map for a book. An absent book and a book
// with zero reviews both answer 404, with distinct messages.
func (h *Handler) BookReviews(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	bookReviews, ok := h.Catalog.Reviews(id)
	if !ok {
		h.writeFailure(w, http.StatusNotFound, "Book not found", nil)
		return
	}
	if len(bookReviews) == 0 {
		h.writeFailure(w, http.StatusNotFound, "No reviews found for this book", nil)
		return
	}
	writeSuccess(w, http.StatusOK, "Reviews retrieved successfully", map[string]map[string]string{
		"reviews": bookReviews,
	})
}

// AddReview upserts the authenticated user's review on a book. The review key
// is always the identity's username; a second submission overwrites the
// first.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "Review text is required", err)
		return
	}
	if err := validateReview(req.Review); err != nil {
		h.writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	switch err := h.Reviews.Add(identity, mux.Vars(r)["id"], req.Review); {
	case errors.Is(err, reviews.ErrReviewRequired):
		h.writeFailure(w, http.StatusBadRequest, "Review text is required", nil)
	case errors.Is(err, reviews.ErrNotFound):
		h.writeFailure(w, http.StatusNotFound, "Book not found", nil)
	case err != nil:
		h.writeFailure(w, http.StatusInternalServerError, "Failed to add review", err)
	default:
		h.recorder().ObserveReviewEvent("upsert")
		writeSuccess(w, http.StatusOK, "Review added successfully", nil)
	}
}

// DeleteReview removes the authenticated user's review from a book. Deleting
// from an unknown book and deleting a review that was never written are the
// same not-found outcome.
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}

	switch err := h.Reviews.Delete(identity, mux.Vars(r)["id"]); {
	case errors.Is(err, reviews.ErrNotFound):
		h.writeFailure(w, http.StatusNotFound, "Book not found or you have not reviewed this book", nil)
	case err != nil:
		h.writeFailure(w, http.StatusInternalServerError, "Failed to delete review", err)
	default:
		h.recorder().ObserveReviewEvent("delete")
		writeSuccess(w, http.StatusOK, "Review deleted successfully", nil)
	}
}
