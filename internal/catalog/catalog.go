// Package catalog owns the fixed book catalog and its per-book review maps.
//
// The set of books is seeded once at construction and never grows or shrinks;
// the only mutable state is each book's review map, which holds at most one
// entry per username. All access goes through an RWMutex and every returned
// book or review map is a copy, so callers cannot mutate store internals.
package catalog

import (
	"sync"

	"golang.org/x/text/cases"

	"shelfreads/internal/models"
)

// Store is the process-wide book catalog.
type Store struct {
	mu    sync.RWMutex
	order []string
	books map[string]*models.Book
}

// NewStore seeds a catalog with the provided books, preserving their order
// for List. Books without a review map get an empty one.
func NewStore(seed []models.Book) *Store {
	store := &Store{
		books: make(map[string]*models.Book, len(seed)),
	}
	for _, book := range seed {
		if _, dup := store.books[book.ID]; dup {
			continue
		}
		entry := book
		if entry.Reviews == nil {
			entry.Reviews = make(map[string]string)
		}
		store.books[entry.ID] = &entry
		store.order = append(store.order, entry.ID)
	}
	return store
}

// List returns every book in seed order.
func (s *Store) List() []models.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	books := make([]models.Book, 0, len(s.order))
	for _, id := range s.order {
		books = append(books, s.snapshotLocked(id))
	}
	return books
}

// Get returns the book with the given catalog ID.
func (s *Store) Get(id string) (models.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.books[id]; !ok {
		return models.Book{}, false
	}
	return s.snapshotLocked(id), true
}

// ByAuthor returns all books whose author matches exactly. The comparison is
// case-sensitive and does not normalize: accented and unaccented spellings
// are distinct authors.
func (s *Store) ByAuthor(author string) []models.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var books []models.Book
	for _, id := range s.order {
		if s.books[id].Author == author {
			books = append(books, s.snapshotLocked(id))
		}
	}
	return books
}

// ByTitle returns all books whose title equals the query under Unicode case
// folding. This is whole-title equality, never a substring match. The caser
// is built per call; cases.Caser documents that instances may be stateful and
// must not be shared between goroutines.
func (s *Store) ByTitle(title string) []models.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	folder := cases.Fold()
	folded := folder.String(title)
	var books []models.Book
	for _, id := range s.order {
		if folder.String(s.books[id].Title) == folded {
			books = append(books, s.snapshotLocked(id))
		}
	}
	return books
}

// Reviews returns a copy of the review map for the given book. The second
// return value distinguishes "book absent" from "book has zero reviews".
func (s *Store) Reviews(id string) (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[id]
	if !ok {
		return nil, false
	}
	return book.CloneReviews(), true
}

// UpsertReview inserts or overwrites the review for username on the given
// book. It returns false only when the book is absent. Calling twice with the
// same arguments leaves the map identical to calling once.
func (s *Store) UpsertReview(id, username, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[id]
	if !ok {
		return false
	}
	book.Reviews[username] = text
	return true
}

// DeleteReview removes username's review from the given book. It returns
// false when the book is absent or the user has no review on it.
func (s *Store) DeleteReview(id, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[id]
	if !ok {
		return false
	}
	if _, reviewed := book.Reviews[username]; !reviewed {
		return false
	}
	delete(book.Reviews, username)
	return true
}

func (s *Store) snapshotLocked(id string) models.Book {
	book := *s.books[id]
	book.Reviews = book.CloneReviews()
	return book
}
