package core

import (
	"crypto/subtle"
	"strings"
	"time"
)

// SecureCompareString performs constant-time string comparison
func SecureCompareString(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ValidateAuthToken rejects tokens that are empty, short, or obviously weak
func ValidateAuthToken(token string) error {
	if token == "" {
		return NewError(ErrInvalidInput, "authentication token cannot be empty")
	}
	if len(token) < 16 {
		return NewError(ErrInvalidInput, "authentication token is too short").
			WithGuidance("Use a token with at least 16 characters.")
	}

	lower := strings.ToLower(token)
	for _, weak := range []string{"password", "secret", "token", "admin", "test", "default", "12345"} {
		if strings.Contains(lower, weak) {
			return NewError(ErrInvalidInput, "authentication token appears to be weak").
				WithGuidance("Use a randomly generated token.")
		}
	}
	return nil
}

// AuthResult represents the result of authentication
type AuthResult struct {
	Authorized bool
	Error      string
	Duration   time.Duration
}

// AuthenticateBearer checks an Authorization header against the expected token
func AuthenticateBearer(authHeader, expectedToken string) AuthResult {
	start := time.Now()

	scheme, token, found := strings.Cut(authHeader, " ")
	switch {
	case authHeader == "":
		return AuthResult{Error: "missing Authorization header", Duration: time.Since(start)}
	case !found || scheme != "Bearer":
		return AuthResult{Error: "invalid Authorization header format", Duration: time.Since(start)}
	case !SecureCompareString(token, expectedToken):
		return AuthResult{Error: "invalid bearer token", Duration: time.Since(start)}
	}

	return AuthResult{Authorized: true, Duration: time.Since(start)}
}
