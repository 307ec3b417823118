package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testIssuer() *TokenIssuer {
	return NewTokenIssuer(testSecret, 15*time.Minute, 7*24*time.Hour)
}

func TestTokenIssuer_AccessRoundTrip(t *testing.T) {
	ti := testIssuer()
	tok, err := ti.IssueAccess("acc-1", "doctor")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := ti.VerifyAccess(tok)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "acc-1" {
		t.Errorf("subject = %q, want acc-1", claims.Subject)
	}
	if claims.Role != "doctor" {
		t.Errorf("role = %q, want doctor", claims.Role)
	}
}

func TestTokenIssuer_RefreshRoundTrip(t *testing.T) {
	ti := testIssuer()
	tok, err := ti.IssueRefresh("acc-2")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	sub, err := ti.VerifyRefresh(tok)
	if err != nil {
		t.Fatalf("VerifyRefresh: %v", err)
	}
	if sub != "acc-2" {
		t.Errorf("subject = %q, want acc-2", sub)
	}
}

func TestTokenIssuer_RejectsExpiredAccess(t *testing.T) {
	ti := NewTokenIssuer(testSecret, -time.Minute, time.Hour)
	tok, err := ti.IssueAccess("acc-3", "patient")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := ti.VerifyAccess(tok); err == nil {
		t.Error("expected expired token to fail verification")
	}
}

func TestTokenIssuer_RejectsWrongSecret(t *testing.T) {
	ti := testIssuer()
	tok, _ := ti.IssueAccess("acc-4", "lab")

	other := NewTokenIssuer([]byte("another-secret-another-secret-xx"), time.Minute, time.Hour)
	if _, err := other.VerifyAccess(tok); err == nil {
		t.Error("expected token signed with different secret to fail")
	}
}

func TestMiddleware_SetsContextValues(t *testing.T) {
	ti := testIssuer()
	tok, _ := ti.IssueAccess("acc-5", "patient")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(ti)(func(c echo.Context) error {
		ctx := c.Request().Context()
		if got := UserIDFromContext(ctx); got != "acc-5" {
			t.Errorf("user id = %q, want acc-5", got)
		}
		if got := RoleFromContext(ctx); got != "patient" {
			t.Errorf("role = %q, want patient", got)
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMiddleware_RejectsMissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(testIssuer())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestMiddleware_RejectsMalformedHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(testIssuer())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func requireRoleTest(t *testing.T, role string, allowed ...string) error {
	t.Helper()
	ti := testIssuer()
	tok, _ := ti.IssueAccess("acc-9", role)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(ti)(RequireRole(allowed...)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}))
	return handler(c)
}

func TestRequireRole_AllowsMatchingRole(t *testing.T) {
	if err := requireRoleTest(t, "doctor", "doctor", "lab"); err != nil {
		t.Errorf("expected doctor to pass, got %v", err)
	}
}

func TestRequireRole_RejectsOtherRole(t *testing.T) {
	err := requireRoleTest(t, "patient", "doctor")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}
