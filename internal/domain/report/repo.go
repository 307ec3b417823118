package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the report persistence contract. All reads attach the
// report's share grants.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	// UpdateReview persists the feedback fields and status.
	UpdateReview(ctx context.Context, r *Report) error
	// UpsertShare inserts or refreshes a share grant; a doctor is never
	// listed twice for the same report.
	UpsertShare(ctx context.Context, reportID uuid.UUID, grant ShareGrant) error
	ListByLab(ctx context.Context, labID uuid.UUID, start, end *time.Time) ([]*Report, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Report, error)
	ListSharedWithDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Report, error)
	// LinkExists reports whether any report links the doctor (via a share
	// grant) to the patient.
	LinkExists(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)
}
