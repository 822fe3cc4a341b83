package api

import (
	"log/slog"
	"net/http"
	"time"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// Register creates a new account. The uniqueness check and insert are atomic
// inside the account store, so concurrent registrations of the same username
// cannot both succeed.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "username and password are required", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeFailure(w, http.StatusBadRequest, "username and password are required", nil)
		return
	}
	if err := validateUsername(req.Username); err != nil {
		h.writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := validatePassword(req.Password); err != nil {
		h.writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if h.Accounts.Exists(req.Username) {
		h.writeFailure(w, http.StatusBadRequest, "Username already exists", nil)
		return
	}
	if !h.Accounts.Create(req.Username, req.Password) {
		// Lost a race on the username, or the hashing subsystem failed.
		if h.Accounts.Exists(req.Username) {
			h.writeFailure(w, http.StatusBadRequest, "Username already exists", nil)
			return
		}
		slog.Error("account creation failed", "username", req.Username)
		h.writeFailure(w, http.StatusInternalServerError, "Failed to register user", nil)
		return
	}
	h.recorder().ObserveAuthEvent("register")
	writeSuccess(w, http.StatusCreated, "User registered successfully!", nil)
}

// Login verifies credentials and issues a signed, time-limited token. With
// the cookie transport the token is parked in a server-held session and the
// client receives an opaque session cookie; the token is returned in the body
// either way so bearer clients can use it directly.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "username and password are required", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeFailure(w, http.StatusBadRequest, "username and password are required", nil)
		return
	}
	if !h.Accounts.Authenticate(req.Username, req.Password) {
		h.recorder().ObserveAuthEvent("login_failure")
		h.writeFailure(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}

	token, expiresAt, err := h.Tokens.Issue(req.Username)
	if err != nil {
		slog.Error("credential issuance failed", "username", req.Username, "error", err)
		h.writeFailure(w, http.StatusInternalServerError, "Failed to issue credential", err)
		return
	}

	if h.Transport == TransportCookie {
		sessionID, err := h.Sessions.Create(token, expiresAt)
		if err != nil {
			slog.Error("session creation failed", "username", req.Username, "error", err)
			h.writeFailure(w, http.StatusInternalServerError, "Failed to create session", err)
			return
		}
		setSessionCookie(w, r, sessionID, expiresAt)
	}

	h.recorder().ObserveAuthEvent("login_success")
	writeSuccess(w, http.StatusOK, "Login successful", loginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout invalidates the server-held session when the cookie transport is in
// use. Stateless bearer tokens cannot be revoked server-side and simply
// expire.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.Transport == TransportCookie {
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			if err := h.Sessions.Revoke(cookie.Value); err != nil {
				h.writeFailure(w, http.StatusInternalServerError, "Could not log out", err)
				return
			}
		}
		clearSessionCookie(w, r)
	}
	writeSuccess(w, http.StatusOK, "Logout successful", nil)
}
