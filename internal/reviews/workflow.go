// Package reviews orchestrates authenticated review mutations against the
// catalog. The workflow takes its username exclusively from the verified
// identity, so one user can never touch another user's review: there is no
// API on this package that accepts a caller-supplied username.
package reviews

import (
	"errors"

	"shelfreads/internal/auth"
	"shelfreads/internal/catalog"
)

// ErrReviewRequired is returned when the review text is empty.
var ErrReviewRequired = errors.New("review text is required")

// ErrNotFound is returned when the target book is absent, or on delete when
// the identity has no review on the book. The two cases are deliberately
// conflated at this boundary.
var ErrNotFound = errors.New("book not found or review not found")

// Workflow applies review mutations for authenticated identities.
type Workflow struct {
	catalog *catalog.Store
}

// NewWorkflow constructs a Workflow over the provided catalog.
func NewWorkflow(store *catalog.Store) *Workflow {
	return &Workflow{catalog: store}
}

// Add inserts or overwrites the identity's review on the given book. The
// stored text is exactly the provided text.
func (w *Workflow) Add(identity auth.Identity, bookID, text string) error {
	if text == "" {
		return ErrReviewRequired
	}
	if !w.catalog.UpsertReview(bookID, identity.Username, text) {
		return ErrNotFound
	}
	return nil
}

// Delete removes the identity's review from the given book.
func (w *Workflow) Delete(identity auth.Identity, bookID string) error {
	if !w.catalog.DeleteReview(bookID, identity.Username) {
		return ErrNotFound
	}
	return nil
}
