// Package queue はクリニックの待ち行列の参照とスタッフによる呼び出し操作を提供する。
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/clinicq/internal/metrics"
	"github.com/hitoshi/clinicq/internal/model"
	"github.com/hitoshi/clinicq/internal/realtime"
	"github.com/hitoshi/clinicq/internal/repository"
)

// ClinicResolver はテナント識別子からクリニックを解決する。
type ClinicResolver interface {
	Resolve(ctx context.Context, domain string) (*model.Clinic, error)
	Touch(ctx context.Context, clinicID string)
}

// Snapshot は本日の待ち行列の状態。
type Snapshot struct {
	Clinic *model.Clinic
	// Tokens はwaitingとcalledの受付番号（番号順）。
	Tokens []*model.Token
	// NowServing は最後に呼び出された受付番号。いなければnil。
	NowServing *model.Token
}

// Service は待ち行列のサービス層。
type Service struct {
	clinics   ClinicResolver
	users     repository.UserRepository
	tokens    repository.TokenRepository
	publisher realtime.Publisher
	collector metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	clinics ClinicResolver,
	users repository.UserRepository,
	tokens repository.TokenRepository,
	publisher realtime.Publisher,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		clinics:   clinics,
		users:     users,
		tokens:    tokens,
		publisher: publisher,
		collector: collector,
		now:       time.Now,
	}
}

// List はテナントの本日の待ち行列を返す。
func (s *Service) List(ctx context.Context, tenant string) (*Snapshot, error) {
	clinic, err := s.clinics.Resolve(ctx, tenant)
	if err != nil {
		return nil, err
	}

	tokens, err := s.tokens.ListActive(ctx, clinic.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("待ち行列の取得に失敗しました: %w", err)
	}
	if tokens == nil {
		tokens = []*model.Token{}
	}

	return &Snapshot{Clinic: clinic, Tokens: tokens, NowServing: nowServing(tokens)}, nil
}

// nowServing はcalled_atが最も新しいcalledの受付番号を返す。
func nowServing(tokens []*model.Token) *model.Token {
	var latest *model.Token
	for _, t := range tokens {
		if t.Status != model.TokenStatusCalled || t.CalledAt == nil {
			continue
		}
		if latest == nil || t.CalledAt.After(*latest.CalledAt) {
			latest = t
		}
	}
	return latest
}

// CallNext は最小番号のwaitingを呼び出す。
func (s *Service) CallNext(ctx context.Context, tenant, userID string) (*model.Token, error) {
	clinic, err := s.authorize(ctx, tenant, userID)
	if err != nil {
		return nil, err
	}

	t, err := s.tokens.CallNext(ctx, clinic.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("呼び出しに失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewQueueEmptyError()
	}

	s.afterTransition(ctx, tenant, clinic.ID, userID, t)
	return t, nil
}

// UpdateStatus は受付番号の状態を変更する。
// 許可されない遷移、または他のスタッフが先に変更していた場合はINVALID_TRANSITIONを返す。
func (s *Service) UpdateStatus(ctx context.Context, tenant, userID, tokenID, status string) (*model.Token, error) {
	to, ok := model.ParseTokenStatus(status)
	if !ok {
		return nil, model.NewInvalidStatusError(status)
	}

	clinic, err := s.authorize(ctx, tenant, userID)
	if err != nil {
		return nil, err
	}

	current, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("受付番号の取得に失敗しました: %w", err)
	}
	if current == nil || current.ClinicID != clinic.ID {
		return nil, model.NewTokenNotFoundError(tokenID)
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, model.NewInvalidTransitionError(current.Status, to)
	}

	updated, err := s.tokens.UpdateStatus(ctx, tokenID, current.Status, to)
	if err != nil {
		return nil, fmt.Errorf("受付番号の更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewInvalidTransitionError(current.Status, to)
	}

	s.afterTransition(ctx, tenant, clinic.ID, userID, updated)
	return updated, nil
}

// authorize はuserIDのスタッフがテナントのクリニックに所属しているかを確認する。
func (s *Service) authorize(ctx context.Context, tenant, userID string) (*model.Clinic, error) {
	clinic, err := s.clinics.Resolve(ctx, tenant)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("スタッフの取得に失敗しました: %w", err)
	}
	if user == nil || user.ClinicID != clinic.ID {
		return nil, model.NewForbiddenError()
	}
	return clinic, nil
}

func (s *Service) afterTransition(ctx context.Context, tenant, clinicID, userID string, t *model.Token) {
	s.clinics.Touch(ctx, clinicID)
	s.collector.RecordQueueTransition(string(t.Status))

	typ := realtime.EventTokenUpdated
	if t.Status == model.TokenStatusCalled {
		typ = realtime.EventTokenCalled
	}
	if err := realtime.PublishToken(ctx, s.publisher, typ, tenant, t, s.now()); err != nil {
		slog.Warn("failed to publish token event",
			slog.String("tenant", tenant),
			slog.String("event", string(typ)),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("queue updated",
		slog.String("tenant", tenant),
		slog.String("user_id", userID),
		slog.Int("number", t.Number),
		slog.String("status", string(t.Status)),
	)
}
