package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/clinicq/internal/middleware"
	"github.com/hitoshi/clinicq/internal/model"
)

// --- モック定義 ---

// mockTenantService はドメインとslugの両方でクリニックを引けるTenantServiceInterface。
type mockTenantService struct {
	byDomain map[string]*model.Clinic
	bySlug   map[string]*model.Clinic
	err      error
}

func (m *mockTenantService) Resolve(_ context.Context, domain string) (*model.Clinic, error) {
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.byDomain[domain]; ok {
		return c, nil
	}
	return nil, model.NewClinicNotFoundError(domain)
}

func (m *mockTenantService) FindBySlug(_ context.Context, slug string) (*model.Clinic, error) {
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.bySlug[slug]; ok {
		return c, nil
	}
	return nil, model.NewClinicNotFoundError(slug)
}

var testLastActive = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

// seededTenants はseedコマンドと同じ状態（slug未設定）のクリニックを返す。
func seededTenants() *mockTenantService {
	ravi := &model.Clinic{
		ID:             "c-ravi",
		Name:           "Ravi Hospital",
		Domain:         "ravihospital",
		Plan:           "basic",
		LastActiveDate: testLastActive,
		CreatedAt:      testLastActive.Add(-24 * time.Hour),
	}
	return &mockTenantService{
		byDomain: map[string]*model.Clinic{"ravihospital": ravi},
		bySlug:   map[string]*model.Clinic{},
	}
}

func withTenant(r *http.Request, id string) *http.Request {
	return r.WithContext(middleware.ContextWithTenant(r.Context(), id))
}

func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp middleware.ErrorResponseBody
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", body, err)
	}
	return resp.Code
}

// --- テスト ---

func TestTenantHandler_Current_ReturnsPublicFields(t *testing.T) {
	h := NewTenantHandler(seededTenants())

	req := withTenant(httptest.NewRequest(http.MethodGet, "/tenant", nil), "ravihospital")
	w := httptest.NewRecorder()
	h.Current(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["name"] != "Ravi Hospital" || body["domain"] != "ravihospital" || body["plan"] != "basic" {
		t.Errorf("unexpected body: %v", body)
	}
	if body["last_active_date"] != "2026-10-16T08:00:00Z" {
		t.Errorf("last_active_date = %v", body["last_active_date"])
	}
	if _, ok := body["id"]; ok {
		t.Error("public response must not expose id")
	}
}

func TestTenantHandler_Current_NoTenant_Returns400(t *testing.T) {
	h := NewTenantHandler(seededTenants())

	req := httptest.NewRequest(http.MethodGet, "/tenant", nil)
	w := httptest.NewRecorder()
	h.Current(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, w.Body.Bytes()); code != model.ErrCodeTenantNotResolved {
		t.Errorf("code = %q, want %q", code, model.ErrCodeTenantNotResolved)
	}
}

func TestTenantHandler_Current_UnknownClinic_Returns404(t *testing.T) {
	h := NewTenantHandler(seededTenants())

	req := withTenant(httptest.NewRequest(http.MethodGet, "/tenant", nil), "unknown")
	w := httptest.NewRecorder()
	h.Current(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestTenantHandler_Current_StoreError_Returns500WithoutDetail(t *testing.T) {
	svc := seededTenants()
	svc.err = errors.New("pq: password authentication failed for user \"clinicq\"")
	h := NewTenantHandler(svc)

	req := withTenant(httptest.NewRequest(http.MethodGet, "/tenant", nil), "ravihospital")
	w := httptest.NewRecorder()
	h.Current(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if code := decodeErrorCode(t, w.Body.Bytes()); code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", code)
	}
	if got := w.Body.String(); strings.Contains(got, "password") {
		t.Errorf("response leaks store error: %s", got)
	}
}

func TestTenantHandler_BySlug(t *testing.T) {
	slug := "ravi"
	svc := seededTenants()
	svc.bySlug["ravi"] = &model.Clinic{
		ID:             "c-ravi",
		Name:           "Ravi Hospital",
		Domain:         "ravihospital",
		Slug:           &slug,
		Plan:           "basic",
		LastActiveDate: testLastActive,
		CreatedAt:      testLastActive,
	}

	r := chi.NewRouter()
	r.Get("/tenant/{slug}", NewTenantHandler(svc).BySlug)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"slugで一致", "/tenant/ravi", http.StatusOK},
		{"domainと同じ値ではslug検索に一致しない", "/tenant/ravihospital", http.StatusNotFound},
		{"未登録", "/tenant/nowhere", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			for _, key := range []string{"id", "name", "domain", "slug", "plan", "last_active_date", "created_at"} {
				if _, ok := body[key]; !ok {
					t.Errorf("response is missing %q: %v", key, body)
				}
			}
		})
	}
}
