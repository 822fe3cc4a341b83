package models

// Account is a registered identity. The username is unique across all
// accounts and immutable once created; only a one-way hash of the credential
// is ever stored.
type Account struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// Book is a catalog entry. The catalog is fixed at startup; only the Reviews
// map mutates, holding at most one review text per username.
type Book struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Author  string            `json:"author"`
	Reviews map[string]string `json:"reviews"`
}

// CloneReviews returns a copy of the book's review map so callers never alias
// store-internal state.
func (b Book) CloneReviews() map[string]string {
	reviews := make(map[string]string, len(b.Reviews))
	for username, text := range b.Reviews {
		reviews[username] = text
	}
	return reviews
}
