package triage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthlink/healthlink/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) StartSession(ctx context.Context, s *Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `
			UPDATE triage_session SET is_active = FALSE, updated_at = NOW()
			WHERE patient_id = $1 AND is_active`, s.PatientID); err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO triage_session (id, patient_id, symptoms, is_active)
			VALUES ($1, $2, $3, TRUE)`,
			s.ID, s.PatientID, s.Symptoms); err != nil {
			return err
		}
		return r.insertMessages(ctx, s.ID, s.Messages, 0)
	})
}

func (r *repoPG) insertMessages(ctx context.Context, sessionID uuid.UUID, msgs []Message, startSeq int) error {
	for i, m := range msgs {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO triage_message (id, session_id, seq, role, content)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), sessionID, startSeq+i, m.Role, m.Content); err != nil {
			return err
		}
	}
	return nil
}

const sessionCols = `id, patient_id, symptoms,
	risk_level, risk_recommendations, risk_suggested_tests,
	is_active, created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var level *string
	var recommendations, tests []string
	err := row.Scan(&s.ID, &s.PatientID, &s.Symptoms,
		&level, &recommendations, &tests,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if level != nil {
		s.Risk = &RiskAssessment{
			Level:           RiskLevel(*level),
			Recommendations: recommendations,
			SuggestedTests:  tests,
		}
	}
	if s.Symptoms == nil {
		s.Symptoms = []string{}
	}
	return &s, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := scanSession(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sessionCols+` FROM triage_session WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachMessages(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repoPG) FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Session, error) {
	s, err := scanSession(r.conn(ctx).QueryRow(ctx, `
		SELECT `+sessionCols+` FROM triage_session
		WHERE patient_id = $1 AND is_active
		ORDER BY created_at DESC LIMIT 1`, patientID))
	if err != nil {
		return nil, err
	}
	if err := r.attachMessages(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repoPG) attachMessages(ctx context.Context, s *Session) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT role, content, created_at FROM triage_message
		WHERE session_id = $1 ORDER BY seq`, s.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	s.Messages = []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return err
		}
		s.Messages = append(s.Messages, m)
	}
	return rows.Err()
}

func (r *repoPG) SaveTurn(ctx context.Context, s *Session, firstNew int) error {
	var level *string
	var recommendations, tests []string
	if s.Risk != nil {
		l := string(s.Risk.Level)
		level = &l
		recommendations = s.Risk.Recommendations
		tests = s.Risk.SuggestedTests
	}
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `
			UPDATE triage_session SET symptoms = $2,
				risk_level = $3, risk_recommendations = $4, risk_suggested_tests = $5,
				updated_at = NOW()
			WHERE id = $1`,
			s.ID, s.Symptoms, level, recommendations, tests); err != nil {
			return err
		}
		return r.insertMessages(ctx, s.ID, s.Messages[firstNew:], firstNew)
	})
}
