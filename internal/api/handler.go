package api

import (
	"net/http"

	"shelfreads/internal/accounts"
	"shelfreads/internal/auth"
	"shelfreads/internal/catalog"
	"shelfreads/internal/observability/metrics"
	"shelfreads/internal/reviews"
)

// Transport selects how clients present credentials. A deployment picks one
// and uses it consistently.
type Transport string

const (
	// TransportBearer reads the credential from the Authorization header.
	// Logout is a no-op: stateless tokens simply expire.
	TransportBearer Transport = "bearer"
	// TransportCookie keeps the credential in a server-held session and
	// hands the client an opaque session cookie. Logout revokes the session.
	TransportCookie Transport = "cookie"
)

// Handler bundles the dependencies shared by all API endpoints.
type Handler struct {
	Accounts  *accounts.Store
	Catalog   *catalog.Store
	Reviews   *reviews.Workflow
	Tokens    *auth.Authenticator
	Sessions  *auth.SessionManager
	Transport Transport
	Metrics   *metrics.Recorder

	// DevMode attaches internal error details to failure envelopes. Never
	// enable it in production.
	DevMode bool
}

// NewHandler constructs a Handler over the provided stores and authenticator.
// The review workflow is derived from the catalog; the session manager
// defaults to an in-memory store for the cookie transport.
func NewHandler(accountStore *accounts.Store, catalogStore *catalog.Store, tokens *auth.Authenticator) *Handler {
	return &Handler{
		Accounts:  accountStore,
		Catalog:   catalogStore,
		Reviews:   reviews.NewWorkflow(catalogStore),
		Tokens:    tokens,
		Sessions:  auth.NewSessionManager(),
		Transport: TransportCookie,
		Metrics:   metrics.Default(),
	}
}

func (h *Handler) recorder() *metrics.Recorder {
	if h.Metrics == nil {
		h.Metrics = metrics.Default()
	}
	return h.Metrics
}

// Health reports liveness plus basic store counts.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "ok", map[string]int{
		"books":    len(h.Catalog.List()),
		"accounts": h.Accounts.Count(),
	})
}
