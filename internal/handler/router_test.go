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

	"github.com/hitoshi/clinicq/internal/config"
	"github.com/hitoshi/clinicq/internal/middleware"
	"github.com/hitoshi/clinicq/internal/model"
	"github.com/hitoshi/clinicq/internal/queue"
	"github.com/hitoshi/clinicq/internal/security"
	"github.com/hitoshi/clinicq/internal/tenant"
	"github.com/hitoshi/clinicq/internal/token"
)

// mockSessionFinderForRouter はRouter統合テスト用のSessionFinderモック。
type mockSessionFinderForRouter struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinderForRouter) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, nil
}

type fakePinger struct {
	err error
}

func (p *fakePinger) PingContext(context.Context) error { return p.err }

type routerFixture struct {
	router http.Handler
	pinger *fakePinger
}

// newTestRouter は開発環境の設定（3ラベル、*.lvh.me:3000 のオリジン）でルーターを構築する。
func newTestRouter(t *testing.T) *routerFixture {
	t.Helper()

	origins, err := security.NewOriginPolicy([]string{config.DevelopmentOriginPattern})
	if err != nil {
		t.Fatalf("NewOriginPolicy: %v", err)
	}
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(120, 2))
	t.Cleanup(rl.Stop)

	pinger := &fakePinger{}
	deps := &RouterDeps{
		TenantStrategy: tenant.NewLabelCountStrategy(3),
		Origins:        origins,
		SessionFinder: &mockSessionFinderForRouter{sessions: map[string]*model.Session{
			"valid-session": {ID: "valid-session", UserID: "u-1", ClinicDomain: "ravihospital", ExpiresAt: time.Now().Add(time.Hour)},
			"other-session": {ID: "other-session", UserID: "u-2", ClinicDomain: "otherclinic", ExpiresAt: time.Now().Add(time.Hour)},
		}},
		RateLimiter:   rl,
		CSRFConfig:    middleware.CSRFConfig{},
		TenantService: seededTenants(),
		AuthService: &mockAuthService{
			getLoginURLFn: func(state string) string {
				return "https://accounts.google.com/o/oauth2/auth?state=" + state
			},
		},
		AuthConfig: testAuthConfig,
		TokenService: &mockTokenService{
			issueFn: func(ctx context.Context, tenant, patientName string) (*token.IssuedToken, error) {
				return &token.IssuedToken{Token: waitingToken("t-1", 1), Ticket: "ticket"}, nil
			},
		},
		QueueService: &mockQueueService{
			listFn: func(ctx context.Context, tenant string) (*queue.Snapshot, error) {
				return &queue.Snapshot{Clinic: &model.Clinic{Name: "Ravi Hospital"}, Tokens: []*model.Token{}}, nil
			},
			callNextFn: func(ctx context.Context, tenant, userID string) (*model.Token, error) {
				tok := waitingToken("t-1", 1)
				tok.Status = model.TokenStatusCalled
				return tok, nil
			},
		},
		Realtime: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusSwitchingProtocols)
		}),
		DB: pinger,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# HELP\n"))
		}),
	}

	return &routerFixture{router: NewRouter(deps), pinger: pinger}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestNewRouter_TenantResolution(t *testing.T) {
	f := newTestRouter(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"ラベル数が不足するホスト", "http://lvh.me:3000/tenant", http.StatusBadRequest},
		{"localhost", "http://localhost:5000/tenant", http.StatusBadRequest},
		{"登録済みクリニック", "http://ravihospital.lvh.me:3000/tenant", http.StatusOK},
		{"ポートなしでも同じテナント", "http://ravihospital.lvh.me/tenant", http.StatusOK},
		{"未登録クリニック", "http://unknown.lvh.me:3000/tenant", http.StatusNotFound},
		{"slugルートはdomainを検索しない", "http://lvh.me:3000/tenant/ravihospital", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(httptest.NewRequest(http.MethodGet, tt.target, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("GET %s status = %d, want %d: %s", tt.target, w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestNewRouter_TenantNotFoundBody(t *testing.T) {
	f := newTestRouter(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "http://unknown.lvh.me:3000/tenant", nil))

	if code := decodeErrorCode(t, w.Body.Bytes()); code != model.ErrCodeClinicNotFound {
		t.Errorf("code = %q, want %q", code, model.ErrCodeClinicNotFound)
	}
	if !strings.Contains(w.Body.String(), "Clinic not found") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestNewRouter_OriginPolicy(t *testing.T) {
	f := newTestRouter(t)

	tests := []struct {
		name        string
		origin      string
		wantStatus  int
		wantCORSHdr bool
	}{
		{"Originなしは許可", "", http.StatusOK, false},
		{"許可されたオリジン", "http://ravihospital.lvh.me:3000", http.StatusOK, true},
		{"ポート違いは拒否", "http://ravihospital.lvh.me:4000", http.StatusForbidden, false},
		{"別ドメインは拒否", "https://evil.example.com", http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://ravihospital.lvh.me:3000/tenant", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := f.do(req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			gotHdr := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantCORSHdr {
				if gotHdr != tt.origin {
					t.Errorf("Access-Control-Allow-Origin = %q, want %q", gotHdr, tt.origin)
				}
				if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
					t.Error("Access-Control-Allow-Credentials should be true")
				}
			} else if gotHdr != "" {
				t.Errorf("Access-Control-Allow-Origin = %q, want empty", gotHdr)
			}
		})
	}
}

func TestNewRouter_RealtimeUpgradeHonoursOriginPolicy(t *testing.T) {
	f := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "http://ravihospital.lvh.me:3000/ws", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	if w := f.do(req); w.Code != http.StatusForbidden {
		t.Errorf("disallowed origin: status = %d, want %d", w.Code, http.StatusForbidden)
	}

	req = httptest.NewRequest(http.MethodGet, "http://ravihospital.lvh.me:3000/ws", nil)
	if w := f.do(req); w.Code != http.StatusSwitchingProtocols {
		t.Errorf("no origin: status = %d, want %d", w.Code, http.StatusSwitchingProtocols)
	}
}

func TestNewRouter_Root(t *testing.T) {
	f := newTestRouter(t)

	tests := []struct {
		target string
		want   string
	}{
		{"http://ravihospital.lvh.me:3000/", `API running for clinic "ravihospital"`},
		{"http://lvh.me:3000/", "API running on main domain"},
	}

	for _, tt := range tests {
		w := f.do(httptest.NewRequest(http.MethodGet, tt.target, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", tt.target, w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["message"] != tt.want {
			t.Errorf("GET %s message = %q, want %q", tt.target, body["message"], tt.want)
		}
	}
}

func TestNewRouter_Health(t *testing.T) {
	f := newTestRouter(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthy: status = %d, want %d", w.Code, http.StatusOK)
	}

	f.pinger.err = errors.New("dial tcp: connection refused")
	w = f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestNewRouter_MetricsAndSecurityHeaders(t *testing.T) {
	f := newTestRouter(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options should be nosniff")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("Cache-Control should be no-store")
	}
}

func TestNewRouter_GoogleRoutesDisabled(t *testing.T) {
	f := newTestRouter(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "http://ravihospital.lvh.me:3000/auth/google/login", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestNewRouter_PublicQueueAndTokens(t *testing.T) {
	f := newTestRouter(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "http://ravihospital.lvh.me:3000/queue", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /queue status = %d, want %d", w.Code, http.StatusOK)
	}

	w = f.do(httptest.NewRequest(http.MethodPost, "http://ravihospital.lvh.me:3000/tokens", strings.NewReader(`{}`)))
	if w.Code != http.StatusCreated {
		t.Errorf("POST /tokens status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestNewRouter_TokenIssueIsRateLimited(t *testing.T) {
	f := newTestRouter(t)

	issue := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "http://ravihospital.lvh.me:3000/tokens", nil)
		req.RemoteAddr = "203.0.113.7:51000"
		return f.do(req)
	}

	// バースト2件までは通る
	for i := 0; i < 2; i++ {
		if w := issue(); w.Code != http.StatusCreated {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusCreated)
		}
	}

	w := issue()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}
}

func TestNewRouter_StaffRoutes(t *testing.T) {
	f := newTestRouter(t)

	staffReq := func(session, cookieToken, headerToken string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "http://ravihospital.lvh.me:3000/queue/next", nil)
		if session != "" {
			req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: session})
		}
		if cookieToken != "" {
			req.AddCookie(&http.Cookie{Name: "csrf_token", Value: cookieToken})
		}
		if headerToken != "" {
			req.Header.Set("X-CSRF-Token", headerToken)
		}
		return req
	}

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
	}{
		{"セッションなし", staffReq("", "tok", "tok"), http.StatusUnauthorized},
		{"無効なセッション", staffReq("unknown", "tok", "tok"), http.StatusUnauthorized},
		{"他クリニックのセッション", staffReq("other-session", "tok", "tok"), http.StatusForbidden},
		{"CSRFトークンなし", staffReq("valid-session", "", ""), http.StatusForbidden},
		{"CSRFトークン不一致", staffReq("valid-session", "tok", "other"), http.StatusForbidden},
		{"正常", staffReq("valid-session", "tok", "tok"), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.do(tt.req); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestNewRouter_CSRFTokenEndpoint_NoAuthRequired(t *testing.T) {
	f := newTestRouter(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/csrf-token", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["token"] == "" {
		t.Error("expected a CSRF token")
	}
}
