package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/clinicq/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したスタッフユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, clinic_id, email, name, created_at, updated_at FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByClinicAndEmail はクリニックとメールアドレスでユーザーを取得する。
// メールアドレスは大文字小文字を区別しない。
func (r *PostgresUserRepo) FindByClinicAndEmail(ctx context.Context, clinicID, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, clinic_id, email, name, created_at, updated_at
		 FROM users
		 WHERE clinic_id = $1 AND lower(email) = lower($2)`,
		clinicID, email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Upsert はクリニックとメールアドレスをキーにユーザーを作成し、既存なら名前を更新する。
// 確定したID・タイムスタンプはuserに書き戻す。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, clinic_id, email, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (clinic_id, email) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at, updated_at`,
		user.ID, user.ClinicID, user.Email, user.Name, now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.ClinicID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
