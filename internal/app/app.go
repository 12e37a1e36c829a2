package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/clinicq/internal/auth"
	"github.com/hitoshi/clinicq/internal/clinic"
	"github.com/hitoshi/clinicq/internal/config"
	"github.com/hitoshi/clinicq/internal/database"
	"github.com/hitoshi/clinicq/internal/handler"
	"github.com/hitoshi/clinicq/internal/logger"
	"github.com/hitoshi/clinicq/internal/metrics"
	"github.com/hitoshi/clinicq/internal/middleware"
	"github.com/hitoshi/clinicq/internal/queue"
	"github.com/hitoshi/clinicq/internal/realtime"
	"github.com/hitoshi/clinicq/internal/repository"
	"github.com/hitoshi/clinicq/internal/security"
	"github.com/hitoshi/clinicq/internal/tenant"
	"github.com/hitoshi/clinicq/internal/token"
	"github.com/hitoshi/clinicq/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンで処理中のリクエストを待つ上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "5000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.AppEnv),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("port", cfg.ServerPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(ctx, cfg, args[1:])
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// ストアへ接続し、全依存関係をワイヤリングしてHTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行い、開いた資源を逆順に閉じる。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	clinicRepo, closeStore, err := openClinicRepo(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リアルタイム配信
	hub := realtime.NewHub(collector, slog.Default())
	defer hub.Close()

	var publisher realtime.Publisher = hub
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(logger.ServiceName))
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer nc.Close()

		bridge := realtime.NewNATSBridge(nc, cfg.NATSSubjectPrefix, hub, slog.Default())
		if err := bridge.Start(); err != nil {
			return err
		}
		defer func() {
			if err := bridge.Close(); err != nil {
				slog.Warn("failed to close nats bridge", slog.String("error", err.Error()))
			}
		}()
		publisher = bridge
		slog.Info("nats fan-out enabled", slog.String("prefix", cfg.NATSSubjectPrefix))
	}

	origins, err := security.NewOriginPolicy(cfg.CORSAllowedOriginPatterns)
	if err != nil {
		return fmt.Errorf("invalid CORS_ALLOWED_ORIGIN_PATTERNS: %w", err)
	}
	strategy := tenant.NewLabelCountStrategy(cfg.TenantMinLabels)
	gateway := realtime.NewGateway(hub, strategy, origins, cfg.RealtimeSendBuffer, slog.Default())

	// 4. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	tokenRepo := repository.NewPostgresTokenRepo(db)

	// 5. ドメインサービスの初期化
	clinicService := clinic.NewService(clinicRepo)

	var oauthProvider auth.OAuthProvider
	if cfg.GoogleOAuthEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	} else {
		slog.Warn("google login is disabled: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URL are required")
	}
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	tokenService := token.NewService(
		clinicService, tokenRepo, token.NewTicketSigner(cfg.TicketSecret),
		security.NewTextSanitizer(), publisher, collector,
	)
	queueService := queue.NewService(clinicService, userRepo, tokenRepo, publisher, collector)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitTokenIssue),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:  slog.Default(),
		Metrics: collector,

		TenantStrategy: strategy,
		Origins:        origins,
		SessionFinder:  sessionRepo,
		RateLimiter:    rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		TenantService: clinicService,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		GoogleLoginEnabled: cfg.GoogleOAuthEnabled(),

		TokenService: tokenService,
		QueueService: queueService,

		Realtime: gateway,

		DB:             db,
		MetricsHandler: metrics.Handler(registry),
	})

	// 7. HTTPサーバーの起動
	// WebSocketはアップグレード時にサーバーのデッドラインを解除する。
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションと保持期間を過ぎた受付番号を定期的に削除する。
// ctxがキャンセルされると停止する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", cfg.TokenRetentionDays),
	)

	cleanup.NewCleanupJob(db, slog.Default(), cfg.TokenRetentionDays).Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
