package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/clinicq/internal/middleware"
)

// healthCheckTimeout はヘルスチェックでのDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// Pinger はデータストアの疎通確認を行う。*sql.DB が実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Root はAPIの稼働確認に、解決したテナントを返す。
// GET /
func Root(w http.ResponseWriter, r *http.Request) {
	msg := "API running on main domain"
	if tenantID, ok := middleware.TenantFromContext(r.Context()); ok {
		msg = fmt.Sprintf("API running for clinic %q", tenantID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// NewHealthHandler はDBへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
