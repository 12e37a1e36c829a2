// Package clinic はテナント（クリニック）の参照と登録のドメインロジックを提供する。
package clinic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/clinicq/internal/model"
	"github.com/hitoshi/clinicq/internal/repository"
)

// Service はクリニックのサービス層。
type Service struct {
	repo repository.ClinicRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ClinicRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Resolve はテナント識別子（domain）に一致するクリニックを返す。
// 未登録の場合はCLINIC_NOT_FOUNDを返す。
func (s *Service) Resolve(ctx context.Context, domain string) (*model.Clinic, error) {
	c, err := s.repo.FindByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("クリニックの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewClinicNotFoundError(domain)
	}
	return c, nil
}

// FindBySlug は別名キーslugでクリニックを返す。domainは参照しない。
func (s *Service) FindBySlug(ctx context.Context, slug string) (*model.Clinic, error) {
	c, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("クリニックの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewClinicNotFoundError(slug)
	}
	return c, nil
}

// Touch はクリニックの最終利用日時を現在時刻に更新する。
// 失敗しても呼び出し元の処理は継続できるため、ログのみ出力する。
func (s *Service) Touch(ctx context.Context, clinicID string) {
	if err := s.repo.TouchLastActive(ctx, clinicID, s.now()); err != nil {
		slog.Warn("failed to update clinic last_active_date",
			slog.String("clinic_id", clinicID),
			slog.String("error", err.Error()),
		)
	}
}

// Ensure はdomainのクリニックを作成する。既に存在する場合は既存のクリニックを返す。
// created は新規作成した場合にtrueとなる。
func (s *Service) Ensure(ctx context.Context, c *model.Clinic) (clinic *model.Clinic, created bool, err error) {
	err = s.repo.Create(ctx, c)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicateDomain) {
		return nil, false, fmt.Errorf("クリニックの登録に失敗しました: %w", err)
	}

	existing, err := s.repo.FindByDomain(ctx, c.Domain)
	if err != nil {
		return nil, false, fmt.Errorf("既存クリニックの取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, false, fmt.Errorf("クリニック %q が重複していますが取得できません", c.Domain)
	}
	return existing, false, nil
}
