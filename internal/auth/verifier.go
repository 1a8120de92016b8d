package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultJWKSURL serves the signing keys for Firebase ID tokens.
	DefaultJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

	verifierLeeway = 30 * time.Second
)

var ErrInvalidIDToken = errors.New("invalid id token")

// Verifier validates identity-provider ID tokens (RS256) against a JWKS endpoint.
type Verifier struct {
	keyfunc keyfunc.Keyfunc
	parser  *jwt.Parser
}

// NewVerifier builds a verifier for the given provider project.
// jwksURL is optional and defaults to the Firebase key set.
func NewVerifier(projectID, jwksURL string) (*Verifier, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("identity project id must be set")
	}
	if jwksURL == "" {
		jwksURL = DefaultJWKSURL
	}

	k, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}

	parser := jwt.NewParser(
		jwt.WithIssuer("https://securetoken.google.com/"+projectID),
		jwt.WithAudience(projectID),
		jwt.WithLeeway(verifierLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
	)
	return &Verifier{keyfunc: k, parser: parser}, nil
}

// Verify parses the ID token and returns the verified identity.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	token, err := v.parser.Parse(tokenString, v.keyfunc.Keyfunc)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidIDToken
	}

	id := Identity{
		UserID:      readString(mc, "sub"),
		Email:       strings.ToLower(readString(mc, "email")),
		DisplayName: readString(mc, "name"),
	}
	if b, ok := mc["admin"].(bool); ok {
		id.Admin = b
	}
	if id.UserID == "" {
		return Identity{}, fmt.Errorf("%w: missing sub", ErrInvalidIDToken)
	}
	return id, nil
}

func readString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}
