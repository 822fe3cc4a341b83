package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"shelfreads/internal/accounts"
	"shelfreads/internal/auth"
	"shelfreads/internal/catalog"
	"shelfreads/internal/observability/metrics"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestHandler(t *testing.T, transport Transport) *Handler {
	t.Helper()
	tokens, err := auth.NewAuthenticator([]byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("NewAuthenticator returned error: %v", err)
	}
	handler := NewHandler(
		accounts.NewStore(accounts.WithHashCost(bcrypt.MinCost)),
		catalog.NewStore(catalog.DefaultBooks()),
		tokens,
	)
	handler.Transport = transport
	handler.Metrics = metrics.New()
	return handler
}

func doJSON(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec, decodeEnvelope(t, rec)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var envelope testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not a JSON envelope: %v (body %q)", err, rec.Body.String())
	}
	return envelope
}

func registerUser(t *testing.T, router http.Handler, username, password string) {
	t.Helper()
	rec, envelope := doJSON(t, router, http.MethodPost, "/api/auth/register",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, password))
	if rec.Code != http.StatusCreated || !envelope.Success {
		t.Fatalf("register failed: status %d, message %q", rec.Code, envelope.Message)
	}
}

func loginUser(t *testing.T, router http.Handler, username, password string) (string, *httptest.ResponseRecorder) {
	t.Helper()
	rec, envelope := doJSON(t, router, http.MethodPost, "/api/auth/login",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, password))
	if rec.Code != http.StatusOK || !envelope.Success {
		t.Fatalf("login failed: status %d, message %q", rec.Code, envelope.Message)
	}
	var payload struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expiresAt"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("login data did not decode: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("login returned an empty token")
	}
	if _, err := time.Parse(time.RFC3339, payload.ExpiresAt); err != nil {
		t.Fatalf("expiresAt is not RFC3339: %v", err)
	}
	return payload.Token, rec
}

func TestRegisterValidation(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"missing body", `{}`, "username and password are required"},
		{"missing password", `{"username":"fraser"}`, "username and password are required"},
		{"short username", `{"username":"ab","password":"Password1"}`, "username must be between 3 and 30 characters"},
		{"symbols in username", `{"username":"fra ser!","password":"Password1"}`, "username must contain only letters and numbers"},
		{"short password", `{"username":"fraser","password":"Pw1"}`, "password must be at least 8 characters long"},
		{"weak password", `{"username":"fraser","password":"alllowercase"}`, "password must contain at least one uppercase letter, one lowercase letter, and one number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, envelope := doJSON(t, router, http.MethodPost, "/api/auth/register", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if envelope.Success {
				t.Fatal("failure envelope reported success")
			}
			if envelope.Message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, envelope.Message)
			}
		})
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	registerUser(t, router, "fraser", "Password1")
	rec, envelope := doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"username":"fraser","password":"OtherPass1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if envelope.Message != "Username already exists" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
}

func TestRegisterRejectsUnknownFields(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"username":"fraser","password":"Password1","admin":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()
	registerUser(t, router, "fraser", "Password1")

	for _, body := range []string{
		`{"username":"fraser","password":"WrongPass1"}`,
		`{"username":"nobody","password":"Password1"}`,
	} {
		rec, envelope := doJSON(t, router, http.MethodPost, "/api/auth/login", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if envelope.Message != "Invalid username or password" {
			t.Fatalf("unexpected message %q", envelope.Message)
		}
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()
	registerUser(t, router, "fraser", "Password1")

	token, _ := loginUser(t, router, "fraser", "Password1")
	verification := handler.Tokens.Verify(token)
	if verification.Status != auth.StatusValid {
		t.Fatalf("issued token did not verify: %v", verification.Status)
	}
	if verification.Identity.Username != "fraser" {
		t.Fatalf("token carries wrong identity %q", verification.Identity.Username)
	}
}

func TestLoginCookieTransportSetsSessionCookie(t *testing.T) {
	handler := newTestHandler(t, TransportCookie)
	router := handler.NewRouter()
	registerUser(t, router, "fraser", "Password1")

	_, rec := loginUser(t, router, "fraser", "Password1")
	cookies := rec.Result().Cookies()
	var session *http.Cookie
	for _, cookie := range cookies {
		if cookie.Name == "shelfreads_session" {
			session = cookie
		}
	}
	if session == nil {
		t.Fatal("login did not set a session cookie")
	}
	if !session.HttpOnly {
		t.Fatal("session cookie is not HttpOnly")
	}
	if session.Value == "" {
		t.Fatal("session cookie has no value")
	}

	// The cookie value is an opaque session ID, never the token itself.
	if strings.Count(session.Value, ".") == 2 {
		t.Fatal("session cookie appears to hold the raw token")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.AddCookie(session)
	if verification := handler.AuthenticateRequest(req); verification.Status != auth.StatusValid {
		t.Fatalf("session cookie did not authenticate: %v", verification.Status)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	handler := newTestHandler(t, TransportCookie)
	router := handler.NewRouter()
	registerUser(t, router, "fraser", "Password1")

	_, loginRec := loginUser(t, router, "fraser", "Password1")
	var session *http.Cookie
	for _, cookie := range loginRec.Result().Cookies() {
		if cookie.Name == "shelfreads_session" {
			session = cookie
		}
	}
	if session == nil {
		t.Fatal("login did not set a session cookie")
	}

	logoutReq := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	logoutReq.AddCookie(session)
	logoutRec := httptest.NewRecorder()
	router.ServeHTTP(logoutRec, logoutReq)
	if logoutRec.Code != http.StatusOK {
		t.Fatalf("logout returned %d", logoutRec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.AddCookie(session)
	if verification := handler.AuthenticateRequest(req); verification.Status != auth.StatusAbsent {
		t.Fatalf("expected StatusAbsent after logout, got %v", verification.Status)
	}
}

func TestListBooksReturnsCatalogInOrder(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	rec, envelope := doJSON(t, router, http.MethodGet, "/api/books", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Books []struct {
			ID     string `json:"id"`
			Author string `json:"author"`
			Title  string `json:"title"`
		} `json:"books"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("data did not decode: %v", err)
	}
	if len(payload.Books) != 10 {
		t.Fatalf("expected 10 books, got %d", len(payload.Books))
	}
	if payload.Books[0].ID != "1" || payload.Books[9].ID != "10" {
		t.Fatalf("books out of seed order: first %q last %q", payload.Books[0].ID, payload.Books[9].ID)
	}
}

func TestBookByID(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	rec, envelope := doJSON(t, router, http.MethodGet, "/api/books/8", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var book struct {
		Author string `json:"author"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(envelope.Data, &book); err != nil {
		t.Fatalf("data did not decode: %v", err)
	}
	if book.Author != "Jane Austen" || book.Title != "Pride and Prejudice" {
		t.Fatalf("unexpected book %+v", book)
	}

	rec, envelope = doJSON(t, router, http.MethodGet, "/api/books/99", "")
	if rec.Code != http.StatusNotFound || envelope.Message != "Book not found" {
		t.Fatalf("expected 404 Book not found, got %d %q", rec.Code, envelope.Message)
	}
}

func TestBooksByAuthor(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	target := "/api/books/author/" + url.PathEscape("Jane Austen")
	rec, envelope := doJSON(t, router, http.MethodGet, target, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Books []struct {
			Title string `json:"title"`
		} `json:"books"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("data did not decode: %v", err)
	}
	if len(payload.Books) != 1 || payload.Books[0].Title != "Pride and Prejudice" {
		t.Fatalf("unexpected author match: %+v", payload.Books)
	}

	// Author lookup is exact: lowercasing misses.
	rec, envelope = doJSON(t, router, http.MethodGet, "/api/books/author/"+url.PathEscape("jane austen"), "")
	if rec.Code != http.StatusNotFound || envelope.Message != "No books found by this author" {
		t.Fatalf("expected 404 for lowercased author, got %d %q", rec.Code, envelope.Message)
	}
}

func TestBooksByTitleIsCaseInsensitive(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	rec, envelope := doJSON(t, router, http.MethodGet, "/api/books/title/"+url.PathEscape("pride and prejudice"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for folded title, got %d", rec.Code)
	}
	var payload struct {
		Books []struct {
			ID string `json:"id"`
		} `json:"books"`
	}
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("data did not decode: %v", err)
	}
	if len(payload.Books) != 1 || payload.Books[0].ID != "8" {
		t.Fatalf("unexpected title match: %+v", payload.Books)
	}

	// Substrings never match.
	rec, envelope = doJSON(t, router, http.MethodGet, "/api/books/title/"+url.PathEscape("Pride"), "")
	if rec.Code != http.StatusNotFound || envelope.Message != "No books found with this title" {
		t.Fatalf("expected 404 for substring, got %d %q", rec.Code, envelope.Message)
	}
}

func TestBookReviewsDistinguishesMessages(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	rec, envelope := doJSON(t, router, http.MethodGet, "/api/books/99/reviews", "")
	if rec.Code != http.StatusNotFound || envelope.Message != "Book not found" {
		t.Fatalf("expected book-absent message, got %d %q", rec.Code, envelope.Message)
	}

	rec, envelope = doJSON(t, router, http.MethodGet, "/api/books/1/reviews", "")
	if rec.Code != http.StatusNotFound || envelope.Message != "No reviews found for this book" {
		t.Fatalf("expected zero-reviews message, got %d %q", rec.Code, envelope.Message)
	}
}

func authedRequest(identity auth.Identity, method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(ContextWithIdentity(req.Context(), identity))
}

func TestAddReviewUpsertsUnderIdentity(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()
	identity := auth.Identity{Username: "fraser"}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(identity, http.MethodPut, "/api/books/1/reviews", `{"review":"a classic"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Message != "Review added successfully" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(identity, http.MethodPut, "/api/books/1/reviews", `{"review":"changed my mind"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on overwrite, got %d", rec.Code)
	}

	reviews, _ := handler.Catalog.Reviews("1")
	if len(reviews) != 1 || reviews["fraser"] != "changed my mind" {
		t.Fatalf("unexpected review state: %v", reviews)
	}
}

func TestAddReviewValidation(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()
	identity := auth.Identity{Username: "fraser"}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(identity, http.MethodPut, "/api/books/1/reviews", `{"review":""}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty review, got %d", rec.Code)
	}

	long := strings.Repeat("x", 501)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(identity, http.MethodPut, "/api/books/1/reviews", fmt.Sprintf(`{"review":%q}`, long)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized review, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(identity, http.MethodPut, "/api/books/99/reviews", `{"review":"lost"}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown book, got %d", rec.Code)
	}
}

func TestDeleteReviewConflatesNotFound(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()
	identity := auth.Identity{Username: "fraser"}

	for _, target := range []string{"/api/books/99/reviews", "/api/books/1/reviews"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(identity, http.MethodDelete, target, ""))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %d", target, rec.Code)
		}
		envelope := decodeEnvelope(t, rec)
		if envelope.Message != "Book not found or you have not reviewed this book" {
			t.Fatalf("unexpected message %q", envelope.Message)
		}
	}
}

func TestDeleteReviewSuccess(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()
	identity := auth.Identity{Username: "fraser"}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(identity, http.MethodPut, "/api/books/1/reviews", `{"review":"temp"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("setup add failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(identity, http.MethodDelete, "/api/books/1/reviews", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if envelope := decodeEnvelope(t, rec); envelope.Message != "Review deleted successfully" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
}

func TestRequireIdentityFallback(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	// Without the auth middleware no identity reaches the handler.
	rec, envelope := doJSON(t, router, http.MethodPut, "/api/books/1/reviews", `{"review":"nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if envelope.Message != "User not logged in" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
}

func TestFailureEnvelopeHidesDetailOutsideDevMode(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	rec, envelope := doJSON(t, router, http.MethodPost, "/api/auth/register", `{bad json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if envelope.Error != "" {
		t.Fatalf("error detail leaked outside dev mode: %q", envelope.Error)
	}

	handler.DevMode = true
	rec, envelope = doJSON(t, router, http.MethodPost, "/api/auth/register", `{bad json`)
	if envelope.Error == "" {
		t.Fatal("expected error detail in dev mode")
	}
}

func TestHealthReportsCounts(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()
	registerUser(t, router, "fraser", "Password1")

	rec, envelope := doJSON(t, router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var counts struct {
		Books    int `json:"books"`
		Accounts int `json:"accounts"`
	}
	if err := json.Unmarshal(envelope.Data, &counts); err != nil {
		t.Fatalf("data did not decode: %v", err)
	}
	if counts.Books != 10 || counts.Accounts != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestUnmatchedRouteReturnsEnvelope(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	rec, envelope := doJSON(t, router, http.MethodGet, "/api/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if envelope.Success || envelope.Message != "Resource not found" {
		t.Fatalf("unexpected envelope: success=%v message=%q", envelope.Success, envelope.Message)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
}

func TestWrongMethodReturnsEnvelope(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	router := handler.NewRouter()

	rec, envelope := doJSON(t, router, http.MethodDelete, "/api/books", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if envelope.Success || envelope.Message != "Method not allowed" {
		t.Fatalf("unexpected envelope: success=%v message=%q", envelope.Success, envelope.Message)
	}
}

func TestBearerTokenExtraction(t *testing.T) {
	handler := newTestHandler(t, TransportBearer)
	registerUser(t, handler.NewRouter(), "fraser", "Password1")
	token, _, err := handler.Tokens.Issue("fraser")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if verification := handler.AuthenticateRequest(req); verification.Status != auth.StatusValid {
		t.Fatalf("expected StatusValid, got %v", verification.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/books", nil)
	if verification := handler.AuthenticateRequest(req); verification.Status != auth.StatusAbsent {
		t.Fatalf("expected StatusAbsent without header, got %v", verification.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if verification := handler.AuthenticateRequest(req); verification.Status != auth.StatusAbsent {
		t.Fatalf("expected StatusAbsent for non-bearer scheme, got %v", verification.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	if verification := handler.AuthenticateRequest(req); verification.Status != auth.StatusInvalid {
		t.Fatalf("expected StatusInvalid for garbage token, got %v", verification.Status)
	}
}
