package triage

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

func (h *Handler) RegisterRoutes(authed *echo.Group) {
	patient := authed.Group("/patient/triage", auth.RequireRole("patient"))
	patient.POST("/start", h.Start)
	patient.POST("/message", h.Message)
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func (h *Handler) Start(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	session, err := h.svc.Start(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: session})
}

func (h *Handler) Message(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	var req struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return apperr.Validation("invalid sessionId")
	}

	session, err := h.svc.Message(c.Request().Context(), patientID, sessionID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: session})
}

func callerID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}
	return id, nil
}
