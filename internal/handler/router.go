package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/clinicq/internal/metrics"
	"github.com/hitoshi/clinicq/internal/middleware"
	"github.com/hitoshi/clinicq/internal/tenant"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger  *slog.Logger
	Metrics metrics.MetricsCollector

	// ミドルウェア依存
	TenantStrategy tenant.Strategy
	Origins        middleware.OriginChecker
	SessionFinder  middleware.SessionFinder
	RateLimiter    *middleware.RateLimiter
	CSRFConfig     middleware.CSRFConfig

	// テナント
	TenantService TenantServiceInterface

	// 認証。GoogleLoginEnabled が false の場合はOAuthフローのルートを登録しない。
	AuthService        AuthServiceInterface
	AuthConfig         AuthHandlerConfig
	GoogleLoginEnabled bool

	// 受付番号・待ち行列
	TokenService TokenServiceInterface
	QueueService QueueServiceInterface

	// リアルタイム配信（GET /ws）
	Realtime http.Handler

	// 運用
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → RealIP → Tenant → Logging → CORS
//
// スタッフ用の状態変更ルートには Session → CSRF → RateLimit(General) を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewTenantMiddleware(deps.TenantStrategy, deps.Metrics))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.Origins))

	tenantHandler := NewTenantHandler(deps.TenantService)
	authHandler := NewAuthHandler(deps.AuthService, deps.TenantService, deps.AuthConfig)
	tokenHandler := NewTokenHandler(deps.TokenService)
	queueHandler := NewQueueHandler(deps.QueueService)

	// --- 認証不要のルート ---

	r.Get("/", Root)
	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	if deps.Realtime != nil {
		r.Method(http.MethodGet, "/ws", deps.Realtime)
	}

	r.Get("/tenant", tenantHandler.Current)
	r.Get("/tenant/{slug}", tenantHandler.BySlug)

	r.Route("/tokens", func(r chi.Router) {
		r.With(deps.RateLimiter.TokenIssueMiddleware()).Post("/", tokenHandler.Issue)
		r.Get("/{ticket}", tokenHandler.Get)
	})

	r.Get("/queue", queueHandler.List)

	// 認証ルート
	r.Route("/auth", func(r chi.Router) {
		if deps.GoogleLoginEnabled {
			r.Get("/google/login", authHandler.Login)
			r.Get("/google/callback", authHandler.Callback)
		}
		r.Get("/me", authHandler.Me)
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
		r.With(middleware.NewCSRFMiddleware(deps.CSRFConfig)).Post("/logout", authHandler.Logout)
	})

	// --- スタッフ用のルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/queue/next", queueHandler.CallNext)
		r.Put("/queue/{id}/status", queueHandler.UpdateStatus)
	})

	return r
}
