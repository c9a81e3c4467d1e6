// Package auth implements the sidecar's two end-user authentication modes
// (trust and verify) and the separate admin bearer check.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrAuthDisabled = errors.New("auth disabled")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoAdminKey   = errors.New("no admin key")
)

// Mode selects how end-user bearer tokens are interpreted.
type Mode string

const (
	// ModeTrust decodes the JWT envelope and reads a claim without checking
	// the signature.
	ModeTrust Mode = "trust"
	// ModeVerify recomputes the HS256 HMAC over header.payload and rejects
	// on mismatch.
	ModeVerify Mode = "verify"
)

// Config configures the Service.
type Config struct {
	Mode       Mode
	SigningKey string
	// ClaimsPath is the dotted path into the JWT payload used to extract
	// the user id. Defaults to "sub".
	ClaimsPath string
	AdminKey   string
}

// Result is the outcome of authenticating a request. A failed
// authentication is represented here rather than as an error so that
// callers never need to raise on a missing or malformed token.
type Result struct {
	Authenticated bool
	UserID        string
	Error         string
}

// Service validates end-user tokens and the separate admin bearer secret.
type Service struct {
	mode       Mode
	jwt        *JWTService
	claimsPath string
	adminKey   string
}

// NewService constructs an auth Service. ClaimsPath defaults to "sub".
func NewService(cfg Config) *Service {
	claimsPath := strings.TrimSpace(cfg.ClaimsPath)
	if claimsPath == "" {
		claimsPath = "sub"
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeTrust
	}
	return &Service{
		mode:       mode,
		jwt:        NewJWTService(cfg.SigningKey),
		claimsPath: claimsPath,
		adminKey:   strings.TrimSpace(cfg.AdminKey),
	}
}

// TokenFromRequest extracts a bearer token from the request. The
// Authorization header wins when both it and the ?token= query parameter
// are present.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Authenticate validates token per the configured mode. It never returns an
// error: a missing or malformed token yields Result{Authenticated: false}.
func (s *Service) Authenticate(token string) Result {
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{Error: "missing token"}
	}

	var (
		userID string
		err    error
	)
	switch s.mode {
	case ModeVerify:
		userID, err = s.jwt.ValidateAndExtract(token, s.claimsPath)
	default:
		userID, err = s.jwt.DecodeAndExtract(token, s.claimsPath)
	}
	if err != nil {
		return Result{Error: err.Error()}
	}
	if userID == "" {
		return Result{Error: "claim not found"}
	}
	return Result{Authenticated: true, UserID: userID}
}

// AuthenticateRequest is a convenience wrapper combining TokenFromRequest
// and Authenticate.
func (s *Service) AuthenticateRequest(r *http.Request) Result {
	return s.Authenticate(TokenFromRequest(r))
}

// ValidateAdmin compares bearer in constant time against the configured
// admin key. If no admin key is configured, always rejects.
func (s *Service) ValidateAdmin(bearer string) error {
	if s.adminKey == "" {
		return ErrNoAdminKey
	}
	bearer = strings.TrimSpace(bearer)
	if subtle.ConstantTimeCompare([]byte(bearer), []byte(s.adminKey)) != 1 {
		return ErrInvalidToken
	}
	return nil
}
