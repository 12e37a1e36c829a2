package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/clinicq/internal/model"
)

// TenantServiceInterface はテナントハンドラーが必要とするサービスインターフェース。
// clinic.Service が実装する。
type TenantServiceInterface interface {
	// Resolve はdomainでクリニックを取得する。存在しない場合はCLINIC_NOT_FOUNDを返す。
	Resolve(ctx context.Context, domain string) (*model.Clinic, error)
	// FindBySlug はslugでクリニックを取得する。存在しない場合はCLINIC_NOT_FOUNDを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Clinic, error)
}

// TenantHandler はテナント情報のHTTPハンドラー。
type TenantHandler struct {
	service TenantServiceInterface
}

// NewTenantHandler はTenantHandlerを生成する。
func NewTenantHandler(service TenantServiceInterface) *TenantHandler {
	return &TenantHandler{service: service}
}

// publicClinicResponse はサブドメインで解決したクリニックの公開情報。
type publicClinicResponse struct {
	Name           string    `json:"name"`
	Domain         string    `json:"domain"`
	Plan           string    `json:"plan"`
	LastActiveDate time.Time `json:"last_active_date"`
}

// clinicResponse は保存されているクリニックの全項目。
type clinicResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Domain         string    `json:"domain"`
	Slug           *string   `json:"slug"`
	Plan           string    `json:"plan"`
	LastActiveDate time.Time `json:"last_active_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// Current はサブドメインから解決したクリニックを返す。
// GET /tenant
func (h *TenantHandler) Current(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	clinic, err := h.service.Resolve(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, publicClinicResponse{
		Name:           clinic.Name,
		Domain:         clinic.Domain,
		Plan:           clinic.Plan,
		LastActiveDate: clinic.LastActiveDate,
	})
}

// BySlug はslugでクリニックを返す。domainでは検索しない。
// GET /tenant/{slug}
func (h *TenantHandler) BySlug(w http.ResponseWriter, r *http.Request) {
	clinic, err := h.service.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, clinicResponse{
		ID:             clinic.ID,
		Name:           clinic.Name,
		Domain:         clinic.Domain,
		Slug:           clinic.Slug,
		Plan:           clinic.Plan,
		LastActiveDate: clinic.LastActiveDate,
		CreatedAt:      clinic.CreatedAt,
	})
}
