package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hitoshi/clinicq/internal/config"
	"github.com/hitoshi/clinicq/internal/database"
	"github.com/hitoshi/clinicq/internal/repository"
)

// openClinicRepo はSTORE_BACKENDに応じたクリニックディレクトリを開く。
// TENANT_CACHE_TTL が正の場合はTTLキャッシュで包む。
// 返却するclose関数はMongoクライアントの切断を行う（Postgresの場合は何もしない）。
func openClinicRepo(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.ClinicRepository, func(), error) {
	repo, closeFn, err := openDirectory(ctx, cfg, db)
	if err != nil {
		return nil, nil, err
	}
	if cfg.TenantCacheTTL > 0 {
		return repository.NewCachedClinicRepo(repo, cfg.TenantCacheTTL), closeFn, nil
	}
	return repo, closeFn, nil
}

// openDirectory はキャッシュを挟まないクリニックディレクトリを開く。
func openDirectory(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.ClinicRepository, func(), error) {
	if cfg.StoreBackend != config.StoreBackendMongo {
		return repository.NewPostgresClinicRepo(db), func() {}, nil
	}

	client, err := database.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			slog.Warn("failed to disconnect mongodb", slog.String("error", err.Error()))
		}
	}

	repo := repository.NewMongoClinicRepo(client.Database(cfg.MongoDatabase))
	if err := repo.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}

	slog.Info("mongodb tenant directory connected", slog.String("database", cfg.MongoDatabase))
	return repo, closeFn, nil
}
