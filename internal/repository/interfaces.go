// Package repository はデータ永続化のインターフェースと実装を定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/clinicq/internal/model"
)

// ErrDuplicateDomain はドメインが既に登録済みの場合に返される。
var ErrDuplicateDomain = errors.New("clinic domain already exists")

// ClinicRepository はクリニック（テナント）の永続化インターフェース。
// PostgreSQLとMongoDBの2実装があり、設定で切り替える。
type ClinicRepository interface {
	// FindByDomain はdomainの完全一致（大文字小文字を区別）でクリニックを取得する。
	// 見つからない場合はnilを返す。
	FindByDomain(ctx context.Context, domain string) (*model.Clinic, error)

	// FindBySlug は任意の別名キーslugでクリニックを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Clinic, error)

	// Create はクリニックを作成する。IDが空の場合は採番し、clinicに書き戻す。
	// domainが重複する場合はErrDuplicateDomainを返す。
	Create(ctx context.Context, clinic *model.Clinic) error

	// TouchLastActive はlast_active_dateを更新する。
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}

// UserRepository はスタッフユーザーの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByClinicAndEmail はクリニックとメールアドレスでユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByClinicAndEmail(ctx context.Context, clinicID, email string) (*model.User, error)

	// Upsert はクリニックとメールアドレスをキーにユーザーを作成または更新する。
	Upsert(ctx context.Context, user *model.User) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create はidentityを作成する。
	Create(ctx context.Context, identity *model.Identity) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// TokenRepository は受付番号の永続化インターフェース。
type TokenRepository interface {
	// Issue はクリニックのissuedOn日付の次の番号を採番し、waiting状態の受付番号を作成する。
	// 採番と作成は同一トランザクションで行う。
	Issue(ctx context.Context, clinicID string, issuedOn time.Time, patientName string) (*model.Token, error)

	// FindByID は受付番号を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Token, error)

	// ListActive はissuedOn日付のwaitingとcalledの受付番号を番号順に返す。
	ListActive(ctx context.Context, clinicID string, issuedOn time.Time) ([]*model.Token, error)

	// CountWaitingAhead はnumberより小さい番号のwaiting件数を返す。
	CountWaitingAhead(ctx context.Context, clinicID string, issuedOn time.Time, number int) (int, error)

	// CallNext は最小番号のwaitingをcalledに更新して返す。待ちがない場合はnilを返す。
	// 複数スタッフの同時呼び出しで同じ番号が選ばれないよう、行ロックをスキップして選択する。
	CallNext(ctx context.Context, clinicID string, issuedOn time.Time) (*model.Token, error)

	// UpdateStatus はstatusがfromのときだけtoに更新して返す。
	// 現在のstatusがfromでない場合（他スタッフが先に更新した場合）はnilを返す。
	UpdateStatus(ctx context.Context, id string, from, to model.TokenStatus) (*model.Token, error)
}
