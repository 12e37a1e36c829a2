// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/clinicq/internal/middleware"
	"github.com/hitoshi/clinicq/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// requireTenant はリクエストコンテキストからテナント識別子を取り出す。
// 解決できていない場合は400を書き込み ok=false を返す。
func requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.TenantFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewTenantNotResolvedError())
		return "", false
	}
	return id, true
}

// requireUser はセッションミドルウェアが注入したユーザーIDを取り出す。
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return "", false
	}
	return userID, true
}

// decodeJSON はリクエストボディをdstにデコードする。失敗した場合は400を書き込む。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外は詳細をログにのみ記録し、汎用の500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeTenantNotResolved, model.ErrCodeInvalidTicket,
		model.ErrCodeInvalidStatus, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeClinicNotFound, model.ErrCodeTokenNotFound, model.ErrCodeQueueEmpty:
		return http.StatusNotFound
	case model.ErrCodeInvalidTransition:
		return http.StatusConflict
	case model.ErrCodeForbidden, model.ErrCodeStaffNotRegistered:
		return http.StatusForbidden
	case model.ErrCodeUserNotFound:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
