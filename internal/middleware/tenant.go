package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/clinicq/internal/metrics"
	"github.com/hitoshi/clinicq/internal/tenant"
)

// tenantContextKey はリクエストコンテキストにテナント識別子を格納するためのキー。
var tenantContextKey = contextKey("tenant")

// NewTenantMiddleware はHostヘッダからテナント識別子を解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 解決できない場合も後続のハンドラーは呼び出される（未解決は正常な状態）。
func NewTenantMiddleware(strategy tenant.Strategy, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := strategy.Resolve(r.Host)
			if !ok {
				collector.RecordTenantResolution(metrics.ResolutionUnresolved)
				next.ServeHTTP(w, r)
				return
			}

			collector.RecordTenantResolution(metrics.ResolutionResolved)
			next.ServeHTTP(w, r.WithContext(ContextWithTenant(r.Context(), id)))
		})
	}
}

// TenantFromContext はリクエストコンテキストからテナント識別子を取得する。
// テナントミドルウェアで解決できなかった場合は ok=false を返す。
func TenantFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantContextKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// ContextWithTenant はコンテキストにテナント識別子を注入する。
func ContextWithTenant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantContextKey, id)
}
