package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/clinicq/internal/model"
)

const tokenColumns = `id, clinic_id, number, issued_on, patient_name, status, issued_at, called_at, completed_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresTokenRepo はPostgreSQLを使用した受付番号リポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Issue は日次カウンタを進めて受付番号を作成する。
// カウンタ行のON CONFLICT DO UPDATEが同一クリニック・同一日の採番を直列化する。
func (r *PostgresTokenRepo) Issue(ctx context.Context, clinicID string, issuedOn time.Time, patientName string) (*model.Token, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var number int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO token_counters (clinic_id, issued_on, last_number)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (clinic_id, issued_on) DO UPDATE SET last_number = token_counters.last_number + 1
		 RETURNING last_number`,
		clinicID, dateParam(issuedOn),
	).Scan(&number)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate token number: %w", err)
	}

	token := &model.Token{
		ID:          uuid.New().String(),
		ClinicID:    clinicID,
		Number:      number,
		IssuedOn:    truncateDay(issuedOn),
		PatientName: patientName,
		Status:      model.TokenStatusWaiting,
		IssuedAt:    time.Now(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tokens (id, clinic_id, issued_on, number, patient_name, status, issued_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.ClinicID, dateParam(issuedOn), token.Number, token.PatientName, string(token.Status), token.IssuedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return token, nil
}

// FindByID は受付番号を取得する。見つからない場合はnilを返す。
// UUIDとして解釈できないIDは存在しないものとして扱う。
func (r *PostgresTokenRepo) FindByID(ctx context.Context, id string) (*model.Token, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	token, err := scanToken(r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	return token, nil
}

// ListActive はissuedOn日付のwaitingとcalledの受付番号を番号順に返す。
func (r *PostgresTokenRepo) ListActive(ctx context.Context, clinicID string, issuedOn time.Time) ([]*model.Token, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+`
		 FROM tokens
		 WHERE clinic_id = $1 AND issued_on = $2 AND status IN ('waiting', 'called')
		 ORDER BY number`,
		clinicID, dateParam(issuedOn),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*model.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tokens: %w", err)
	}
	return tokens, nil
}

// CountWaitingAhead はnumberより小さい番号のwaiting件数を返す。
func (r *PostgresTokenRepo) CountWaitingAhead(ctx context.Context, clinicID string, issuedOn time.Time, number int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM tokens
		 WHERE clinic_id = $1 AND issued_on = $2 AND status = 'waiting' AND number < $3`,
		clinicID, dateParam(issuedOn), number,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count waiting tokens: %w", err)
	}
	return count, nil
}

// CallNext は最小番号のwaitingをcalledに更新して返す。待ちがない場合はnilを返す。
func (r *PostgresTokenRepo) CallNext(ctx context.Context, clinicID string, issuedOn time.Time) (*model.Token, error) {
	token, err := scanToken(r.db.QueryRowContext(ctx,
		`UPDATE tokens SET status = 'called', called_at = now()
		 WHERE id = (
		     SELECT id FROM tokens
		     WHERE clinic_id = $1 AND issued_on = $2 AND status = 'waiting'
		     ORDER BY number
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+tokenColumns,
		clinicID, dateParam(issuedOn),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to call next token: %w", err)
	}
	return token, nil
}

// UpdateStatus はstatusがfromのときだけtoに更新する。
// calledへの遷移はcalled_atを、served・skipped・cancelledへの遷移はcompleted_atを記録する。
// waitingへ戻す場合は両方をクリアする。
func (r *PostgresTokenRepo) UpdateStatus(ctx context.Context, id string, from, to model.TokenStatus) (*model.Token, error) {
	token, err := scanToken(r.db.QueryRowContext(ctx,
		`UPDATE tokens SET
		     status = $3,
		     called_at = CASE WHEN $3 = 'called' THEN now() WHEN $3 = 'waiting' THEN NULL ELSE called_at END,
		     completed_at = CASE WHEN $3 IN ('served', 'skipped', 'cancelled') THEN now() ELSE NULL END
		 WHERE id = $1 AND status = $2
		 RETURNING `+tokenColumns,
		id, string(from), string(to),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update token status: %w", err)
	}
	return token, nil
}

// scanToken は1行をmodel.Tokenに読み込む。
func scanToken(row rowScanner) (*model.Token, error) {
	token := &model.Token{}
	var status string
	var calledAt, completedAt sql.NullTime
	err := row.Scan(
		&token.ID, &token.ClinicID, &token.Number, &token.IssuedOn, &token.PatientName,
		&status, &token.IssuedAt, &calledAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	token.Status = model.TokenStatus(status)
	if calledAt.Valid {
		token.CalledAt = &calledAt.Time
	}
	if completedAt.Valid {
		token.CompletedAt = &completedAt.Time
	}
	return token, nil
}

// dateParam はDATE列に渡す日付文字列を返す。
func dateParam(t time.Time) string {
	return t.Format("2006-01-02")
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
