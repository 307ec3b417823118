package report

import (
	"context"
	"fmt"
	"time"

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

const reportCols = `id, patient_id, lab_id, type, title, description,
	file_key, file_type, status, reviewed_by, doctor_feedback,
	created_at, updated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.PatientID, &rep.LabID, &rep.Type, &rep.Title, &rep.Description,
		&rep.FileKey, &rep.FileType, &rep.Status, &rep.ReviewedBy, &rep.DoctorFeedback,
		&rep.CreatedAt, &rep.UpdatedAt)
	return &rep, err
}

func (r *repoPG) Create(ctx context.Context, rep *Report) error {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO report (id, patient_id, lab_id, type, title, description,
			file_key, file_type, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rep.ID, rep.PatientID, rep.LabID, rep.Type, rep.Title, rep.Description,
		rep.FileKey, rep.FileType, rep.Status)
	if err != nil {
		return err
	}
	for _, g := range rep.SharedWith {
		if err := r.UpsertShare(ctx, rep.ID, g); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	rep, err := scanReport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM report WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.attachShares(ctx, []*Report{rep}); err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *repoPG) UpdateReview(ctx context.Context, rep *Report) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE report SET status = $2, reviewed_by = $3, doctor_feedback = $4, updated_at = NOW()
		WHERE id = $1`,
		rep.ID, rep.Status, rep.ReviewedBy, rep.DoctorFeedback)
	return err
}

func (r *repoPG) UpsertShare(ctx context.Context, reportID uuid.UUID, g ShareGrant) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO report_share (report_id, doctor_id, access_level, shared_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (report_id, doctor_id)
		DO UPDATE SET access_level = EXCLUDED.access_level, shared_at = NOW()`,
		reportID, g.DoctorID, g.AccessLevel)
	return err
}

func (r *repoPG) ListByLab(ctx context.Context, labID uuid.UUID, start, end *time.Time) ([]*Report, error) {
	query := `SELECT ` + reportCols + ` FROM report WHERE lab_id = $1`
	args := []interface{}{labID}
	idx := 2
	if start != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, idx)
		args = append(args, *start)
		idx++
	}
	if end != nil {
		query += fmt.Sprintf(` AND created_at <= $%d`, idx)
		args = append(args, *end)
	}
	query += ` ORDER BY created_at DESC`
	return r.list(ctx, query, args...)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Report, error) {
	return r.list(ctx,
		`SELECT `+reportCols+` FROM report WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
}

func (r *repoPG) ListSharedWithDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Report, error) {
	return r.list(ctx, `
		SELECT `+reportCols+` FROM report
		WHERE id IN (SELECT report_id FROM report_share WHERE doctor_id = $1)
		ORDER BY created_at DESC`,
		doctorID)
}

func (r *repoPG) LinkExists(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM report rep
			JOIN report_share s ON s.report_id = rep.id
			WHERE rep.patient_id = $1 AND s.doctor_id = $2
		)`, patientID, doctorID).Scan(&exists)
	return exists, err
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Report, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachShares(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repoPG) attachShares(ctx context.Context, reports []*Report) error {
	if len(reports) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Report, len(reports))
	ids := make([]uuid.UUID, 0, len(reports))
	for _, rep := range reports {
		rep.SharedWith = []ShareGrant{}
		byID[rep.ID] = rep
		ids = append(ids, rep.ID)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT report_id, doctor_id, access_level, shared_at
		FROM report_share WHERE report_id = ANY($1)
		ORDER BY shared_at`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var reportID uuid.UUID
		var g ShareGrant
		if err := rows.Scan(&reportID, &g.DoctorID, &g.AccessLevel, &g.SharedAt); err != nil {
			return err
		}
		if rep, ok := byID[reportID]; ok {
			rep.SharedWith = append(rep.SharedWith, g)
		}
	}
	return rows.Err()
}
