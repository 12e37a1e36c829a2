// Package token は患者向けの受付番号の発行と照会のドメインロジックを提供する。
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/clinicq/internal/metrics"
	"github.com/hitoshi/clinicq/internal/model"
	"github.com/hitoshi/clinicq/internal/realtime"
	"github.com/hitoshi/clinicq/internal/repository"
	"github.com/hitoshi/clinicq/internal/security"
)

// ClinicResolver はテナント識別子からクリニックを解決する。
type ClinicResolver interface {
	Resolve(ctx context.Context, domain string) (*model.Clinic, error)
	Touch(ctx context.Context, clinicID string)
}

// IssuedToken は発行した受付番号とそのチケット。
type IssuedToken struct {
	Token  *model.Token
	Ticket string
}

// TokenStatus はチケットで照会した受付番号と、その前に待っている人数。
type TokenStatus struct {
	Token *model.Token
	Ahead int
}

// Service は受付番号のサービス層。
type Service struct {
	clinics   ClinicResolver
	tokens    repository.TokenRepository
	signer    *TicketSigner
	sanitizer security.TextSanitizerService
	publisher realtime.Publisher
	collector metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	clinics ClinicResolver,
	tokens repository.TokenRepository,
	signer *TicketSigner,
	sanitizer security.TextSanitizerService,
	publisher realtime.Publisher,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		clinics:   clinics,
		tokens:    tokens,
		signer:    signer,
		sanitizer: sanitizer,
		publisher: publisher,
		collector: collector,
		now:       time.Now,
	}
}

// Issue はテナントのクリニックに本日の受付番号を発行する。
// 患者名はHTMLを除去して保存する。
func (s *Service) Issue(ctx context.Context, tenant, patientName string) (*IssuedToken, error) {
	clinic, err := s.clinics.Resolve(ctx, tenant)
	if err != nil {
		return nil, err
	}

	now := s.now()
	name := s.sanitizer.Sanitize(patientName, security.MaxPatientNameLength)

	t, err := s.tokens.Issue(ctx, clinic.ID, now, name)
	if err != nil {
		return nil, fmt.Errorf("受付番号の発行に失敗しました: %w", err)
	}

	ticket, err := s.signer.Sign(tenant, t.ID, now)
	if err != nil {
		return nil, fmt.Errorf("受付チケットの発行に失敗しました: %w", err)
	}

	s.clinics.Touch(ctx, clinic.ID)
	s.collector.RecordTokenIssued(tenant)
	if err := realtime.PublishToken(ctx, s.publisher, realtime.EventTokenIssued, tenant, t, now); err != nil {
		slog.Warn("failed to publish token event",
			slog.String("tenant", tenant),
			slog.String("event", string(realtime.EventTokenIssued)),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("token issued",
		slog.String("tenant", tenant),
		slog.Int("number", t.Number),
	)
	return &IssuedToken{Token: t, Ticket: ticket}, nil
}

// Lookup はチケットから受付番号と待ち人数を返す。
// チケットのテナントがリクエストのテナントと異なる場合は無効なチケットとして扱う。
func (s *Service) Lookup(ctx context.Context, tenant, ticket string) (*TokenStatus, error) {
	claims, err := s.signer.Verify(ticket)
	if err != nil {
		if errors.Is(err, ErrInvalidTicket) {
			return nil, model.NewInvalidTicketError()
		}
		return nil, err
	}
	if claims.Tenant != tenant {
		return nil, model.NewInvalidTicketError()
	}

	clinic, err := s.clinics.Resolve(ctx, tenant)
	if err != nil {
		return nil, err
	}

	t, err := s.tokens.FindByID(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("受付番号の取得に失敗しました: %w", err)
	}
	if t == nil || t.ClinicID != clinic.ID {
		return nil, model.NewTokenNotFoundError(claims.TokenID)
	}

	ahead := 0
	if t.Status == model.TokenStatusWaiting {
		ahead, err = s.tokens.CountWaitingAhead(ctx, clinic.ID, t.IssuedOn, t.Number)
		if err != nil {
			return nil, fmt.Errorf("待ち人数の取得に失敗しました: %w", err)
		}
	}

	return &TokenStatus{Token: t, Ahead: ahead}, nil
}
