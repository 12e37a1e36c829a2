// Package auth はスタッフのOAuth認証フローとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/clinicq/internal/model"
	"github.com/hitoshi/clinicq/internal/repository"
)

// ProviderGoogle はGoogle IdPのプロバイダー名。
const ProviderGoogle = "google"

// ErrSessionNotFound はセッションが存在しないか期限切れの場合に返される。
var ErrSessionNotFound = errors.New("session not found or expired")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はスタッフ認証に関するビジネスロジックを提供する。
// ログインできるのは seed 等で事前登録されたスタッフのみで、未登録のメールアドレスは拒否する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、clinicIDのスタッフとしてセッションを発行する。
// 初回ログイン時は同じメールアドレスの登録済みスタッフにidentityを紐付ける。
func (s *Service) HandleCallback(ctx context.Context, clinicID, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if errors.Is(err, ErrEmailNotVerified) {
		slog.Warn("login rejected for unverified email", slog.String("clinic_id", clinicID))
		return nil, model.NewStaffNotRegisteredError("")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, err := s.resolveStaff(ctx, clinicID, userInfo)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("staff logged in",
		slog.String("user_id", user.ID),
		slog.String("clinic_id", clinicID),
		slog.String("provider", userInfo.Provider),
	)
	return session, nil
}

// resolveStaff はidentityまたはメールアドレスからclinicIDに所属するスタッフを特定する。
func (s *Service) resolveStaff(ctx context.Context, clinicID string, userInfo *OAuthUserInfo) (*model.User, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		user, err := s.userRepo.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil || user.ClinicID != clinicID {
			return nil, model.NewStaffNotRegisteredError(userInfo.Email)
		}
		return user, nil
	}

	email := strings.TrimSpace(userInfo.Email)
	if email == "" {
		return nil, model.NewStaffNotRegisteredError(email)
	}

	user, err := s.userRepo.FindByClinicAndEmail(ctx, clinicID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find staff by email: %w", err)
	}
	if user == nil {
		slog.Warn("login rejected for unregistered staff",
			slog.String("clinic_id", clinicID),
			slog.String("provider", userInfo.Provider),
		)
		return nil, model.NewStaffNotRegisteredError(email)
	}

	newIdentity := &model.Identity{
		UserID:         user.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      s.now(),
	}
	if err := s.identRepo.Create(ctx, newIdentity); err != nil {
		return nil, fmt.Errorf("failed to link identity: %w", err)
	}

	slog.Info("identity linked to staff",
		slog.String("user_id", user.ID),
		slog.String("provider", userInfo.Provider),
	)
	return user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("staff logged out")
	return nil
}

// GetCurrentUser はセッションから現在のスタッフを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
