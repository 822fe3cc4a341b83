// Package auth issues and verifies the bearer credentials that bind a
// request to an identity, and manages the server-held sessions used by the
// cookie transport.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Status classifies the outcome of verifying a presented credential. The
// distinction between Absent and Invalid/Expired is part of the API contract:
// "you never logged in" and "your credential is broken" are different answers.
type Status int

const (
	// StatusAbsent means no credential was presented at all.
	StatusAbsent Status = iota
	// StatusInvalid means the credential failed signature or structural checks.
	StatusInvalid
	// StatusExpired means the credential was well-formed but past its expiry.
	StatusExpired
	// StatusValid means the credential verified and carries an identity.
	StatusValid
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusInvalid:
		return "invalid"
	case StatusExpired:
		return "expired"
	case StatusValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Identity is the authenticated username bound to a request after successful
// verification. Handlers must scope every mutation to it and never to a
// client-supplied username.
type Identity struct {
	Username  string
	ExpiresAt time.Time
}

// Verification is the tagged result of verifying a credential. Identity is
// populated only when Status is StatusValid.
type Verification struct {
	Status   Status
	Identity Identity
}

// ErrSecretRequired is returned when constructing an Authenticator without a
// signing secret.
var ErrSecretRequired = errors.New("signing secret is required")

// DefaultTokenTTL is the credential lifetime used when none is configured.
const DefaultTokenTTL = time.Hour

// Authenticator mints and verifies signed, time-limited credentials carrying
// a username. Tokens are HMAC-SHA256 JWTs; the expiry is fixed at issuance
// and never refreshed by use.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator constructs an Authenticator with the provided signing
// secret and token lifetime. A non-positive TTL falls back to DefaultTokenTTL.
func NewAuthenticator(secret []byte, ttl time.Duration) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue mints a credential for the provided username.
func (a *Authenticator) Issue(username string) (string, time.Time, error) {
	if username == "" {
		return "", time.Time{}, errors.New("username is required")
	}
	issuedAt := a.now().UTC()
	expiresAt := issuedAt.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks the presented credential and returns a tagged result. An
// empty credential reports StatusAbsent; a bad signature, wrong algorithm, or
// malformed token reports StatusInvalid; a verified token past its expiry
// reports StatusExpired.
func (a *Authenticator) Verify(credential string) Verification {
	if credential == "" {
		return Verification{Status: StatusAbsent}
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verification{Status: StatusExpired}
		}
		return Verification{Status: StatusInvalid}
	}
	if !token.Valid || claims.Subject == "" {
		return Verification{Status: StatusInvalid}
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return Verification{
		Status:   StatusValid,
		Identity: Identity{Username: claims.Subject, ExpiresAt: expiresAt},
	}
}
