package report

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/healthlink/healthlink/internal/domain/account"
	"github.com/healthlink/healthlink/internal/platform/apperr"
	"github.com/healthlink/healthlink/internal/platform/blobstore"
)

// AccountDirectory is the slice of the account repository the report
// service needs for patient and doctor resolution.
type AccountDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetByIdentifier(ctx context.Context, role account.Role, identifier string) (*account.Account, error)
	SearchPatients(ctx context.Context, query string) ([]*account.Account, error)
}

type Service struct {
	repo     Repository
	accounts AccountDirectory
	blobs    blobstore.Store
}

func NewService(repo Repository, accounts AccountDirectory, blobs blobstore.Store) *Service {
	return &Service{repo: repo, accounts: accounts, blobs: blobs}
}

// UploadInput carries the multipart fields of a lab upload.
type UploadInput struct {
	PatientID   uuid.UUID
	Type        Type
	Title       string
	Description string
	FileName    string
	ContentType string
	Content     io.Reader
}

// Upload stores the file and creates a delivered report for the patient.
// When persisting the report fails after the blob was written, blob
// cleanup is best-effort.
func (s *Service) Upload(ctx context.Context, labID uuid.UUID, in UploadInput) (*Report, error) {
	if in.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	patient, err := s.requireAccount(ctx, in.PatientID, account.RolePatient, "patient not found")
	if err != nil {
		return nil, err
	}
	if err := blobstore.ValidateContentType(in.ContentType); err != nil {
		return nil, apperr.Validation("unsupported file type: %s", in.ContentType)
	}

	id := uuid.New()
	key := "reports/" + id.String() + blobstore.ExtForContentType(in.ContentType)
	if _, err := s.blobs.Put(ctx, key, in.ContentType, in.Content); err != nil {
		if errors.Is(err, blobstore.ErrFileTooLarge) || errors.Is(err, blobstore.ErrInvalidContentType) {
			return nil, apperr.Validation("%s", err.Error())
		}
		return nil, apperr.Upstream(err, "storing report file")
	}

	rep := &Report{
		ID:        id,
		PatientID: patient.ID,
		LabID:     labID,
		Type:      in.Type,
		Title:     in.Title,
		FileKey:   key,
		FileType:  in.ContentType,
		Status:    StatusDelivered,
	}
	if in.Description != "" {
		rep.Description = &in.Description
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, err
	}
	return rep, nil
}

// ListLabReports returns the lab's reports, optionally restricted to a
// created-at range, newest first.
func (s *Service) ListLabReports(ctx context.Context, labID uuid.UUID, start, end *time.Time) ([]*Report, error) {
	return s.repo.ListByLab(ctx, labID, start, end)
}

// Dashboard is the lab and doctor dashboard payload.
type Dashboard struct {
	Reports []*Report      `json:"reports"`
	Counts  map[Status]int `json:"counts"`
	Total   int            `json:"total"`
}

func (s *Service) LabDashboard(ctx context.Context, labID uuid.UUID) (*Dashboard, error) {
	reports, err := s.repo.ListByLab(ctx, labID, nil, nil)
	if err != nil {
		return nil, err
	}
	return buildDashboard(reports), nil
}

func buildDashboard(reports []*Report) *Dashboard {
	counts := make(map[Status]int)
	for _, r := range reports {
		counts[r.Status]++
	}
	return &Dashboard{Reports: reports, Counts: counts, Total: len(reports)}
}

// SearchPatients matches patients by abhaId, phone or name substring.
func (s *Service) SearchPatients(ctx context.Context, query string) ([]*account.Account, error) {
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	return s.accounts.SearchPatients(ctx, query)
}

// ShareRequest identifies the doctor by id or license and the access
// level to grant.
type ShareRequest struct {
	DoctorID      string `json:"doctorId"`
	DoctorLicense string `json:"doctorLicense"`
	AccessLevel   string `json:"accessLevel"`
}

// Share grants or refreshes a doctor's access to the patient's report.
// Sharing twice with the same doctor updates the existing grant rather
// than adding a second entry.
func (s *Service) Share(ctx context.Context, patientID, reportID uuid.UUID, req ShareRequest) (*Report, error) {
	rep, err := s.get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if rep.Decide(patientID) != AccessPatientOwner {
		return nil, apperr.Forbidden("only the report owner can share it")
	}

	level, err := ParseAccessLevel(req.AccessLevel)
	if err != nil {
		return nil, err
	}
	doctor, err := s.resolveDoctor(ctx, req)
	if err != nil {
		return nil, err
	}

	grant := ShareGrant{DoctorID: doctor.ID, AccessLevel: level}
	if err := s.repo.UpsertShare(ctx, rep.ID, grant); err != nil {
		return nil, err
	}
	return s.get(ctx, reportID)
}

func (s *Service) resolveDoctor(ctx context.Context, req ShareRequest) (*account.Account, error) {
	if req.DoctorID != "" {
		id, err := uuid.Parse(req.DoctorID)
		if err != nil {
			return nil, apperr.Validation("invalid doctorId")
		}
		return s.requireAccount(ctx, id, account.RoleDoctor, "doctor not found")
	}
	if req.DoctorLicense != "" {
		doc, err := s.accounts.GetByIdentifier(ctx, account.RoleDoctor, req.DoctorLicense)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperr.NotFound("doctor not found")
			}
			return nil, err
		}
		return doc, nil
	}
	return nil, apperr.Validation("doctorId or doctorLicense is required")
}

const (
	placeholderTitle       = "Initial Consultation"
	placeholderDescription = "Patient added by doctor for consultation"
	placeholderFileKey     = "placeholder"
)

// AddPatient links a doctor to a patient by creating a placeholder
// pending report shared with the doctor. A second add for the same pair
// is a conflict.
func (s *Service) AddPatient(ctx context.Context, doctorID uuid.UUID, abhaID string) (*Report, error) {
	if abhaID == "" {
		return nil, apperr.Validation("abhaId is required")
	}
	patient, err := s.accounts.GetByIdentifier(ctx, account.RolePatient, abhaID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("patient not found")
		}
		return nil, err
	}

	linked, err := s.repo.LinkExists(ctx, doctorID, patient.ID)
	if err != nil {
		return nil, err
	}
	if linked {
		return nil, apperr.Conflict("patient already added")
	}

	desc := placeholderDescription
	rep := &Report{
		ID:          uuid.New(),
		PatientID:   patient.ID,
		LabID:       doctorID,
		Type:        TypeOther,
		Title:       placeholderTitle,
		Description: &desc,
		FileKey:     placeholderFileKey,
		FileType:    "application/pdf",
		Status:      StatusPending,
		SharedWith:  []ShareGrant{{DoctorID: doctorID, AccessLevel: AccessView}},
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return nil, err
	}
	return s.get(ctx, rep.ID)
}

// Feedback records the doctor's review and marks the report reviewed.
// A doctor outside the share list gets not-found, not forbidden, so the
// report's existence is not disclosed.
func (s *Service) Feedback(ctx context.Context, doctorID, reportID uuid.UUID, feedback string) (*Report, error) {
	if feedback == "" {
		return nil, apperr.Validation("feedback is required")
	}
	rep, err := s.get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if rep.Grant(doctorID) == nil {
		return nil, apperr.NotFound("report not found or not shared with you")
	}

	rep.DoctorFeedback = &feedback
	rep.ReviewedBy = &doctorID
	rep.Status = StatusReviewed
	if err := s.repo.UpdateReview(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Service) DoctorReports(ctx context.Context, doctorID uuid.UUID) ([]*Report, error) {
	return s.repo.ListSharedWithDoctor(ctx, doctorID)
}

// DoctorDashboard is the doctor's shared reports plus the not-yet-
// reviewed subset.
type DoctorDashboard struct {
	Reports []*Report      `json:"reports"`
	Pending []*Report      `json:"pending"`
	Counts  map[Status]int `json:"counts"`
	Total   int            `json:"total"`
}

func (s *Service) BuildDoctorDashboard(ctx context.Context, doctorID uuid.UUID) (*DoctorDashboard, error) {
	reports, err := s.repo.ListSharedWithDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	d := buildDashboard(reports)
	pending := []*Report{}
	for _, r := range reports {
		if r.Status != StatusReviewed {
			pending = append(pending, r)
		}
	}
	return &DoctorDashboard{Reports: reports, Pending: pending, Counts: d.Counts, Total: d.Total}, nil
}

// PatientSummary is one roster row for the doctor's patients view.
type PatientSummary struct {
	Patient      *account.Account `json:"patient"`
	ReportCount  int              `json:"reportCount"`
	LastReportAt time.Time        `json:"lastReportAt"`
}

// DoctorPatients aggregates the distinct patients behind the doctor's
// shared reports.
func (s *Service) DoctorPatients(ctx context.Context, doctorID uuid.UUID) ([]*PatientSummary, error) {
	reports, err := s.repo.ListSharedWithDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	byPatient := make(map[uuid.UUID]*PatientSummary)
	var order []uuid.UUID
	for _, r := range reports {
		sum, ok := byPatient[r.PatientID]
		if !ok {
			patient, err := s.accounts.GetByID(ctx, r.PatientID)
			if err != nil {
				return nil, err
			}
			sum = &PatientSummary{Patient: patient}
			byPatient[r.PatientID] = sum
			order = append(order, r.PatientID)
		}
		sum.ReportCount++
		if r.CreatedAt.After(sum.LastReportAt) {
			sum.LastReportAt = r.CreatedAt
		}
	}

	out := make([]*PatientSummary, 0, len(order))
	for _, id := range order {
		out = append(out, byPatient[id])
	}
	return out, nil
}

func (s *Service) PatientReports(ctx context.Context, patientID uuid.UUID) ([]*Report, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) PatientDashboard(ctx context.Context, patientID uuid.UUID) (*Dashboard, error) {
	reports, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return buildDashboard(reports), nil
}

// Get returns the report after the access decision. An account with no
// relationship to the report is refused even though the report exists.
func (s *Service) Get(ctx context.Context, callerID, reportID uuid.UUID) (*Report, error) {
	rep, err := s.get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if rep.Decide(callerID) == AccessNone {
		return nil, apperr.Forbidden("you do not have access to this report")
	}
	return rep, nil
}

// GetFile streams the report file after the same access decision as Get.
func (s *Service) GetFile(ctx context.Context, callerID, reportID uuid.UUID) (io.ReadCloser, *Report, error) {
	rep, err := s.Get(ctx, callerID, reportID)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.blobs.Get(ctx, rep.FileKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil, apperr.NotFound("report file not found")
		}
		return nil, nil, apperr.Upstream(err, "reading report file")
	}
	return rc, rep, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Report, error) {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("report not found")
		}
		return nil, err
	}
	return rep, nil
}

func (s *Service) requireAccount(ctx context.Context, id uuid.UUID, role account.Role, notFoundMsg string) (*account.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("%s", notFoundMsg)
		}
		return nil, err
	}
	if a.Role != role {
		return nil, apperr.NotFound("%s", notFoundMsg)
	}
	return a, nil
}
