package report

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthlink/healthlink/internal/platform/apperr"
	"github.com/healthlink/healthlink/internal/platform/auth"
)

// ActiveTriageFunc supplies the patient's active triage session for the
// patient dashboard; nil means omitted.
type ActiveTriageFunc func(ctx context.Context, patientID uuid.UUID) (interface{}, error)

type Handler struct {
	svc          *Service
	activeTriage ActiveTriageFunc
}

func NewHandler(svc *Service, activeTriage ActiveTriageFunc) *Handler {
	return &Handler{svc: svc, activeTriage: activeTriage}
}

func (h *Handler) RegisterRoutes(authed *echo.Group) {
	lab := authed.Group("/lab", auth.RequireRole("lab"))
	lab.GET("/dashboard", h.LabDashboard)
	lab.POST("/reports/upload", h.Upload)
	lab.GET("/reports", h.ListLabReports)
	lab.GET("/patients/search", h.SearchPatients)

	doctor := authed.Group("/doctor", auth.RequireRole("doctor"))
	doctor.GET("/dashboard", h.DoctorDashboard)
	doctor.GET("/reports", h.DoctorReports)
	doctor.POST("/reports/feedback", h.Feedback)
	doctor.GET("/patients", h.DoctorPatients)
	doctor.POST("/patients", h.AddPatient)

	patient := authed.Group("/patient", auth.RequireRole("patient"))
	patient.GET("/dashboard", h.PatientDashboard)
	patient.GET("/reports", h.PatientReports)
	patient.POST("/reports/:id/share", h.Share)

	// Access is decided per request in the service, not by role.
	authed.GET("/report/:id", h.Get)
	authed.GET("/report/:id/file", h.GetFile)
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func (h *Handler) Upload(c echo.Context) error {
	labID, err := callerID(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return apperr.Validation("file is required")
	}
	patientID, err := uuid.Parse(c.FormValue("patientId"))
	if err != nil {
		return apperr.Validation("invalid patientId")
	}
	reportType, err := ParseType(c.FormValue("type"))
	if err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return apperr.Upstream(err, "opening uploaded file")
	}
	defer src.Close()

	rep, err := h.svc.Upload(c.Request().Context(), labID, UploadInput{
		PatientID:   patientID,
		Type:        reportType,
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     src,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: rep})
}

func (h *Handler) ListLabReports(c echo.Context) error {
	labID, err := callerID(c)
	if err != nil {
		return err
	}
	start, err := parseDateParam(c.QueryParam("startDate"))
	if err != nil {
		return err
	}
	end, err := parseDateParam(c.QueryParam("endDate"))
	if err != nil {
		return err
	}

	reports, err := h.svc.ListLabReports(c.Request().Context(), labID, start, end)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: orEmpty(reports)})
}

func (h *Handler) LabDashboard(c echo.Context) error {
	labID, err := callerID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.LabDashboard(c.Request().Context(), labID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: d})
}

func (h *Handler) SearchPatients(c echo.Context) error {
	patients, err := h.svc.SearchPatients(c.Request().Context(), c.QueryParam("query"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: patients})
}

func (h *Handler) Share(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid report id")
	}
	var req ShareRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	rep, err := h.svc.Share(c.Request().Context(), patientID, reportID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: rep})
}

func (h *Handler) AddPatient(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return err
	}
	var req struct {
		AbhaID string `json:"abhaId"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}

	rep, err := h.svc.AddPatient(c.Request().Context(), doctorID, req.AbhaID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope{Success: true, Data: rep})
}

func (h *Handler) Feedback(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return err
	}
	var req struct {
		ReportID string `json:"reportId"`
		Feedback string `json:"feedback"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	reportID, err := uuid.Parse(req.ReportID)
	if err != nil {
		return apperr.Validation("invalid reportId")
	}

	rep, err := h.svc.Feedback(c.Request().Context(), doctorID, reportID, req.Feedback)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: rep})
}

func (h *Handler) DoctorReports(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return err
	}
	reports, err := h.svc.DoctorReports(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: orEmpty(reports)})
}

func (h *Handler) DoctorDashboard(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.BuildDoctorDashboard(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: d})
}

func (h *Handler) DoctorPatients(c echo.Context) error {
	doctorID, err := callerID(c)
	if err != nil {
		return err
	}
	patients, err := h.svc.DoctorPatients(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: patients})
}

func (h *Handler) PatientReports(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	reports, err := h.svc.PatientReports(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: orEmpty(reports)})
}

func (h *Handler) PatientDashboard(c echo.Context) error {
	patientID, err := callerID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	d, err := h.svc.PatientDashboard(ctx, patientID)
	if err != nil {
		return err
	}

	data := map[string]interface{}{
		"reports": d.Reports,
		"counts":  d.Counts,
		"total":   d.Total,
	}
	if h.activeTriage != nil {
		session, err := h.activeTriage(ctx, patientID)
		if err != nil {
			return err
		}
		data["activeTriageSession"] = session
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func (h *Handler) Get(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid report id")
	}

	rep, err := h.svc.Get(c.Request().Context(), caller, reportID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: rep})
}

func (h *Handler) GetFile(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid report id")
	}

	rc, rep, err := h.svc.GetFile(c.Request().Context(), caller, reportID)
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rep.Title))
	return c.Stream(http.StatusOK, rep.FileType, rc)
}

func callerID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}
	return id, nil
}

func parseDateParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("invalid date: %q", v)
}

func orEmpty(reports []*Report) []*Report {
	if reports == nil {
		return []*Report{}
	}
	return reports
}
