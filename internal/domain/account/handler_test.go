package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/healthlink/healthlink/internal/platform/apperr"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	e := echo.New()
	return NewHandler(svc), e
}

func TestHandlerRegister_Patient(t *testing.T) {
	h, e := newTestHandler()

	body := `{"role":"patient","name":"Asha Rao","phone":"9000000001","password":"secret1",
		"age":34,"abhaId":"ABHA-001","familyContact":"9000000002"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Account Account `json:"account"`
			Tokens  struct {
				AccessToken  string `json:"accessToken"`
				RefreshToken string `json:"refreshToken"`
			} `json:"tokens"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success || resp.Data.Account.Role != RolePatient || resp.Data.Tokens.AccessToken == "" {
		t.Errorf("unexpected response: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response leaks password fields")
	}
}

func TestHandlerRegister_UnknownRole(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"role":"admin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Register(c)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected Validation, got %v", err)
	}
}

func TestHandlerLogin_RoundTrip(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	if _, _, err := svc.Register(context.Background(), patientReg()); err != nil {
		t.Fatalf("seed Register: %v", err)
	}

	body := `{"role":"patient","identifier":"ABHA-001","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerRefresh_RequiresToken(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Refresh(c)
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected Validation, got %v", err)
	}
}
