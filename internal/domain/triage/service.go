package triage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/healthlink/healthlink/internal/platform/apperr"
)

type Service struct {
	repo     Repository
	assessor Assessor
}

func NewService(repo Repository, assessor Assessor) *Service {
	return &Service{repo: repo, assessor: assessor}
}

// Start opens a fresh active session for the patient, closing any
// previous active one, so a patient never has two active sessions.
func (s *Service) Start(ctx context.Context, patientID uuid.UUID) (*Session, error) {
	session := &Session{
		ID:        uuid.New(),
		PatientID: patientID,
		Symptoms:  []string{},
		IsActive:  true,
		Messages: []Message{{
			Role:      RoleAI,
			Content:   Greeting,
			Timestamp: time.Now(),
		}},
	}
	if err := s.repo.StartSession(ctx, session); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, session.ID)
}

// Message runs one triage turn: the patient's message is appended, the
// assessor is consulted with the full log, and on success the model
// reply, the reported symptoms and the fresh risk assessment are
// persisted together. An assessor failure leaves the stored session
// exactly as it was, the patient's message included.
func (s *Service) Message(ctx context.Context, patientID, sessionID uuid.UUID, text string) (*Session, error) {
	if text == "" {
		return nil, apperr.Validation("message is required")
	}

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("active session not found")
		}
		return nil, err
	}
	if session.PatientID != patientID || !session.IsActive {
		return nil, apperr.NotFound("active session not found")
	}

	firstNew := len(session.Messages)
	session.Messages = append(session.Messages, Message{
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})

	assessment, err := s.assessor.Assess(ctx, session.Messages)
	if err != nil {
		return nil, err
	}

	session.Messages = append(session.Messages, Message{
		Role:      RoleAI,
		Content:   assessment.Response,
		Timestamp: time.Now(),
	})
	session.Symptoms = append(session.Symptoms, assessment.Symptoms...)
	if assessment.Risk != nil {
		session.Risk = assessment.Risk
	}

	if err := s.repo.SaveTurn(ctx, session, firstNew); err != nil {
		return nil, err
	}
	return session, nil
}

// ActiveForPatient returns the patient's current active session.
func (s *Service) ActiveForPatient(ctx context.Context, patientID uuid.UUID) (*Session, error) {
	session, err := s.repo.FindActiveByPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no active session")
		}
		return nil, err
	}
	return session, nil
}
