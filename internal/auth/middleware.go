package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// DefaultPublicPaths are the pages reachable without a session.
var DefaultPublicPaths = []string{"/signin", "/signup", "/signup/success", "/create-password"}

// GateOptions configures SessionGate.
type GateOptions struct {
	CookieName string
	// PublicPaths match exactly; PublicPrefixes match by prefix.
	PublicPaths    []string
	PublicPrefixes []string
	// APIPrefixes get a 401 JSON response instead of a redirect.
	APIPrefixes []string
	SignInPath  string
	Clock       func() time.Time

	// IDTokens, when set, also accepts identity-provider ID tokens sent as
	// bearer tokens.
	IDTokens IDTokenVerifier
	// RoleFor resolves the current role of an authenticated caller. It
	// overrides the role baked into a session token; "" means no role. For an
	// ID token that returns "" the admin claim decides.
	RoleFor func(ctx context.Context, id Identity) string
}

// IDTokenVerifier is implemented by *Verifier.
type IDTokenVerifier interface {
	Verify(token string) (Identity, error)
}

// SessionGate requires a valid session on every path outside the public
// allow-list. The session comes from the cookie, or from a bearer header for
// non-browser clients. Identity is injected into the request context; RBAC
// checks belong to internal/rbac.
func SessionGate(m *Manager, opts GateOptions) gin.HandlerFunc {
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	if opts.SignInPath == "" {
		opts.SignInPath = "/signin"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	public := make(map[string]struct{}, len(opts.PublicPaths))
	for _, p := range opts.PublicPaths {
		public[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := public[path]; ok || hasAnyPrefix(path, opts.PublicPrefixes) {
			c.Next()
			return
		}

		tok, bearer := sessionToken(c, opts.CookieName)
		if tok == "" {
			deny(c, path, opts)
			return
		}
		var userID, email, role string
		ok := false
		if claims, err := m.Verify(tok, opts.Clock()); err == nil {
			userID, email, role, ok = claims.UserID, claims.Email, claims.Role, true
			if opts.RoleFor != nil {
				role = opts.RoleFor(c.Request.Context(), Identity{UserID: userID, Email: email})
			}
		} else if bearer && opts.IDTokens != nil {
			if id, err := opts.IDTokens.Verify(tok); err == nil {
				userID, email, role, ok = id.UserID, id.Email, idTokenRole(c.Request.Context(), id, opts), true
			}
		}
		if !ok {
			deny(c, path, opts)
			return
		}

		ctx := WithIdentity(c.Request.Context(), userID, email, role)
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", userID)
		c.Set("role", role)

		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header.
func BearerToken(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if !strings.HasPrefix(raw, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	return tok, tok != ""
}

// sessionToken prefers the cookie and reports whether the token came from
// the Authorization header.
func sessionToken(c *gin.Context, cookieName string) (string, bool) {
	if v, err := c.Cookie(cookieName); err == nil && v != "" {
		return v, false
	}
	if tok, ok := BearerToken(c); ok {
		return tok, true
	}
	return "", false
}

func idTokenRole(ctx context.Context, id Identity, opts GateOptions) string {
	if opts.RoleFor != nil {
		if r := opts.RoleFor(ctx, id); r != "" {
			return r
		}
	}
	if id.Admin {
		return "admin"
	}
	return "user"
}

func deny(c *gin.Context, path string, opts GateOptions) {
	if hasAnyPrefix(path, opts.APIPrefixes) || c.Request.Method != http.MethodGet {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Redirect(http.StatusFound, opts.SignInPath)
	c.Abort()
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
