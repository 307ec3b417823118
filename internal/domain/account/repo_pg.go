package account

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

const accountCols = `id, role, name, phone, password_hash,
	age, abha_id, family_contact,
	license_id, hospital, specialization,
	lab_id, lab_name, address,
	refresh_token, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Role, &a.Name, &a.Phone, &a.PasswordHash,
		&a.Age, &a.AbhaID, &a.FamilyContact,
		&a.LicenseID, &a.Hospital, &a.Specialization,
		&a.LabID, &a.LabName, &a.Address,
		&a.RefreshToken, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO account (id, role, name, phone, password_hash,
			age, abha_id, family_contact,
			license_id, hospital, specialization,
			lab_id, lab_name, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		a.ID, a.Role, a.Name, a.Phone, a.PasswordHash,
		a.Age, a.AbhaID, a.FamilyContact,
		a.LicenseID, a.Hospital, a.Specialization,
		a.LabID, a.LabName, a.Address)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE id = $1`, id))
}

func (r *repoPG) GetByIdentifier(ctx context.Context, role Role, identifier string) (*Account, error) {
	var col string
	switch role {
	case RolePatient:
		col = "abha_id"
	case RoleDoctor:
		col = "license_id"
	case RoleLab:
		col = "lab_id"
	default:
		return nil, pgx.ErrNoRows
	}
	return scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE role = $1 AND `+col+` = $2`, role, identifier))
}

func (r *repoPG) SearchPatients(ctx context.Context, query string) ([]*Account, error) {
	pattern := "%" + query + "%"
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+accountCols+` FROM account
		WHERE role = 'patient'
		  AND (abha_id ILIKE $1 OR phone ILIKE $1 OR name ILIKE $1)
		ORDER BY name`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) UpdateRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE account SET refresh_token = $2, updated_at = NOW() WHERE id = $1`, id, token)
	return err
}
