package triage

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the triage session persistence contract.
type Repository interface {
	// StartSession atomically deactivates the patient's active sessions
	// and creates s as the new active one with its seed messages.
	StartSession(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// FindActiveByPatient returns pgx.ErrNoRows when the patient has no
	// active session.
	FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Session, error)
	// SaveTurn persists the session's symptoms, risk assessment and
	// updated-at, and appends the messages from index firstNew onward.
	SaveTurn(ctx context.Context, s *Session, firstNew int) error
}
