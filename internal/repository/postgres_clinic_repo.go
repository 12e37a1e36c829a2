package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/clinicq/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pqUniqueViolation = "23505"

const clinicColumns = `id, name, domain, slug, plan, last_active_date, created_at`

// PostgresClinicRepo はPostgreSQLを使用したクリニックリポジトリ。
type PostgresClinicRepo struct {
	db *sql.DB
}

// NewPostgresClinicRepo はPostgresClinicRepoを生成する。
func NewPostgresClinicRepo(db *sql.DB) *PostgresClinicRepo {
	return &PostgresClinicRepo{db: db}
}

// FindByDomain はdomainでクリニックを取得する。見つからない場合はnilを返す。
func (r *PostgresClinicRepo) FindByDomain(ctx context.Context, domain string) (*model.Clinic, error) {
	clinic, err := scanClinic(r.db.QueryRowContext(ctx,
		`SELECT `+clinicColumns+` FROM clinics WHERE domain = $1`,
		domain,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find clinic by domain: %w", err)
	}
	return clinic, nil
}

// FindBySlug はslugでクリニックを取得する。見つからない場合はnilを返す。
func (r *PostgresClinicRepo) FindBySlug(ctx context.Context, slug string) (*model.Clinic, error) {
	clinic, err := scanClinic(r.db.QueryRowContext(ctx,
		`SELECT `+clinicColumns+` FROM clinics WHERE slug = $1`,
		slug,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find clinic by slug: %w", err)
	}
	return clinic, nil
}

// Create はクリニックを作成する。
func (r *PostgresClinicRepo) Create(ctx context.Context, clinic *model.Clinic) error {
	if clinic.ID == "" {
		clinic.ID = uuid.New().String()
	}
	if clinic.Plan == "" {
		clinic.Plan = model.DefaultPlan
	}
	now := time.Now()
	if clinic.LastActiveDate.IsZero() {
		clinic.LastActiveDate = now
	}
	if clinic.CreatedAt.IsZero() {
		clinic.CreatedAt = now
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clinics (`+clinicColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		clinic.ID, clinic.Name, clinic.Domain, clinic.Slug, clinic.Plan, clinic.LastActiveDate, clinic.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateDomain
		}
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	return nil
}

// TouchLastActive はlast_active_dateを更新する。
func (r *PostgresClinicRepo) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE clinics SET last_active_date = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to touch clinic last_active_date: %w", err)
	}
	return nil
}

// scanClinic は1行をmodel.Clinicに読み込む。行がない場合はnil, nilを返す。
func scanClinic(row *sql.Row) (*model.Clinic, error) {
	clinic := &model.Clinic{}
	var slug sql.NullString
	err := row.Scan(
		&clinic.ID, &clinic.Name, &clinic.Domain, &slug,
		&clinic.Plan, &clinic.LastActiveDate, &clinic.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if slug.Valid {
		clinic.Slug = &slug.String
	}
	return clinic, nil
}

// compile-time interface check
var _ ClinicRepository = (*PostgresClinicRepo)(nil)
