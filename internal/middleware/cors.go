package middleware

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/hitoshi/clinicq/internal/model"
	"github.com/hitoshi/clinicq/internal/security"
)

// OriginChecker はオリジンの許可判定を行う。security.OriginPolicy が実装する。
type OriginChecker interface {
	Allowed(origin string) bool
}

var _ OriginChecker = (*security.OriginPolicy)(nil)

// NewCORSMiddleware はオリジン許可ポリシーに基づくCORSミドルウェアを返す。
// Originヘッダを持ち、ポリシーに一致しないリクエストは403で拒否する。
// 許可されたオリジンにはcredentials付きのCORSヘッダを返し、
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(policy OriginChecker) func(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowOriginFunc:  policy.Allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", csrfHeaderName},
		AllowCredentials: true,
		MaxAge:           86400,
	})

	return func(next http.Handler) http.Handler {
		wrapped := c.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if !policy.Allowed(origin) {
				slog.Warn("origin rejected",
					slog.String("origin", origin),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     "ORIGIN_NOT_ALLOWED",
					Message:  "Not allowed by CORS",
					Category: "system",
					Action:   "許可されたオリジンからアクセスしてください。",
				})
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}
