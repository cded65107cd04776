package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer is the iss claim of tokens minted by IssueToken.
const tokenIssuer = "video-route"

var (
	// ErrNoSecret is returned by IssueToken when no signing secret is configured.
	ErrNoSecret = errors.New("api: jwt secret is not configured")

	// errNoToken means the request carried no bearer token.
	errNoToken = errors.New("api: missing bearer token")
)

// IssueToken signs an HS256 bearer token for a client such as a wall panel
// or a hardware button box.
//
// Parameters:
//   - secret: The security.jwt.secret the server validates with
//   - subject: Who the token is for (recorded in the sub claim)
//   - ttl: Lifetime; zero issues a token without expiry
//
// Returns:
//   - string: The signed token
//   - error: ErrNoSecret, or a signing failure
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   tokenIssuer,
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// validateToken checks signature, algorithm, issuer and expiry and returns
// the token subject.
func validateToken(secret, raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// bearerToken extracts the token from the Authorization header, falling
// back to the token query parameter for WebSocket upgrades and plain links.
func bearerToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errNoToken
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", errNoToken
}
