// Package api hosts the HTTP handlers that front the Shelfreads REST API.
//
// Handlers coordinate request decoding, validation, and response shaping
// while delegating account state to accounts.Store, catalog state to
// catalog.Store, and review mutations to reviews.Workflow. Credential
// issuance and verification are provided by auth.Authenticator and (for the
// cookie transport) auth.SessionManager; the package does not reach for
// globals and expects callers to supply fully configured dependencies.
//
// Handlers assume the middleware in internal/server has already enforced
// authentication for protected routes, rate limiting, metrics, and logging.
// Protected handlers read their identity from the request context and never
// from client-supplied body fields.
package api
