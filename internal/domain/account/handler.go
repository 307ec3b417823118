package account

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthlink/healthlink/internal/platform/apperr"
	"github.com/healthlink/healthlink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public auth routes on public and the
// token-protected ones on authed.
func (h *Handler) RegisterRoutes(public, authed *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.Refresh)
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/me", h.Me)
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// registerPayload is the superset of the three registration shapes; the
// role field selects which shape is validated.
type registerPayload struct {
	Role string `json:"role"`

	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`

	Age           int    `json:"age"`
	AbhaID        string `json:"abhaId"`
	FamilyContact string `json:"familyContact"`

	LicenseID      string `json:"licenseId"`
	Hospital       string `json:"hospital"`
	Specialization string `json:"specialization"`

	LabID   string `json:"labId"`
	LabName string `json:"labName"`
	Address string `json:"address"`
}

func (p registerPayload) registration() (Registration, error) {
	role, err := ParseRole(p.Role)
	if err != nil {
		return nil, err
	}
	switch role {
	case RolePatient:
		return PatientRegistration{
			Name: p.Name, Phone: p.Phone, Password: p.Password,
			Age: p.Age, AbhaID: p.AbhaID, FamilyContact: p.FamilyContact,
		}, nil
	case RoleDoctor:
		return DoctorRegistration{
			Name: p.Name, Phone: p.Phone, Password: p.Password,
			LicenseID: p.LicenseID, Hospital: p.Hospital, Specialization: p.Specialization,
		}, nil
	default:
		return LabRegistration{
			Name: p.Name, Phone: p.Phone, Password: p.Password,
			LabID: p.LabID, LabName: p.LabName, Address: p.Address,
		}, nil
	}
}

type authResponse struct {
	Account *Account   `json:"account"`
	Tokens  *TokenPair `json:"tokens"`
}

func (h *Handler) Register(c echo.Context) error {
	var payload registerPayload
	if err := c.Bind(&payload); err != nil {
		return apperr.Validation("invalid request body")
	}
	reg, err := payload.registration()
	if err != nil {
		return err
	}
	a, tokens, err := h.svc.Register(c.Request().Context(), reg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: authResponse{Account: a, Tokens: tokens}})
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, tokens, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: authResponse{Account: a, Tokens: tokens}})
}

func (h *Handler) Refresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if req.RefreshToken == "" {
		return apperr.Validation("refreshToken is required")
	}
	tokens, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: tokens})
}

func (h *Handler) Logout(c echo.Context) error {
	id, err := callerID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Logout(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true})
}

func (h *Handler) Me(c echo.Context) error {
	id, err := callerID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Me(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: a})
}

func callerID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}
	return id, nil
}
