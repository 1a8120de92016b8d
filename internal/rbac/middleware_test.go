package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"sales-trainer/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveWithRole(role string, mw gin.HandlerFunc) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if role != "" {
			ctx := auth.WithIdentity(c.Request.Context(), "u", "u@x.com", role)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}, mw, func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAdmin_AdminPasses(t *testing.T) {
	if code := serveWithRole(RoleAdmin, RequireAdmin()); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	// legacy capitalised spelling
	if code := serveWithRole("Admin", RequireAdmin()); code != 200 {
		t.Fatalf("expected 200 for Admin, got %d", code)
	}
}

func TestRequireAdmin_UserForbidden(t *testing.T) {
	if code := serveWithRole(RoleUser, RequireAdmin()); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_MissingIdentity(t *testing.T) {
	if code := serveWithRole("", RequireAnyRole(RoleUser)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestNormalize(t *testing.T) {
	if Normalize(" ADMIN ") != RoleAdmin || Normalize("member") != RoleUser {
		t.Fatalf("unexpected normalization")
	}
}
