package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGoogleOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://lvh.me:5000/auth/google/callback",
	})

	url := provider.GetLoginURL("test-state-value")
	if url == "" {
		t.Fatal("expected non-empty URL")
	}

	tests := []struct {
		name     string
		contains string
	}{
		{"client_id", "client_id=test-client-id"},
		{"redirect_uri", "redirect_uri="},
		{"state", "state=test-state-value"},
		{"response_type", "response_type=code"},
		{"scope email", "email"},
		{"scope profile", "profile"},
		{"共有端末向けのアカウント選択", "prompt=select_account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(url, tt.contains) {
				t.Errorf("URL should contain %q, got %q", tt.contains, url)
			}
		})
	}
}

// newGoogleStub はトークンエンドポイントとユーザー情報エンドポイントのスタブを立て、
// それらを向くプロバイダーを返す。userInfo が nil の場合はユーザー情報取得を401にする。
func newGoogleStub(t *testing.T, userInfo map[string]interface{}) *GoogleOAuthProvider {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// クライアント認証情報はリクエストボディで送られる
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request: %v", err)
		}
		if got := r.PostForm.Get("client_id"); got != "test-client-id" {
			t.Errorf("client_id = %q, want %q", got, "test-client-id")
		}
		if got := r.PostForm.Get("code"); got != "test-auth-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":             "invalid_grant",
				"error_description": "Code was already redeemed.",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(tokenServer.Close)

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" || userInfo == nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	}))
	t.Cleanup(userInfoServer.Close)

	return NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://lvh.me:5000/auth/google/callback",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	provider := newGoogleStub(t, map[string]interface{}{
		"sub":            "google-sub-12345",
		"email":          " Nurse@RaviHospital.example ",
		"email_verified": true,
		"name":           "Ravi Nurse",
	})

	userInfo, err := provider.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if userInfo.Provider != ProviderGoogle {
		t.Errorf("provider = %q, want %q", userInfo.Provider, ProviderGoogle)
	}
	if userInfo.ProviderUserID != "google-sub-12345" {
		t.Errorf("providerUserID = %q, want %q", userInfo.ProviderUserID, "google-sub-12345")
	}
	// スタッフ照合のためメールアドレスは正規化される
	if userInfo.Email != "nurse@ravihospital.example" {
		t.Errorf("email = %q, want %q", userInfo.Email, "nurse@ravihospital.example")
	}
	if userInfo.Name != "Ravi Nurse" {
		t.Errorf("name = %q, want %q", userInfo.Name, "Ravi Nurse")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Errors(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		userInfo map[string]interface{}
		wantErr  error
	}{
		{
			name:     "認可コードが無効",
			code:     "invalid-code",
			userInfo: map[string]interface{}{"sub": "s", "email": "a@example.com", "email_verified": true},
		},
		{
			name:     "ユーザー情報の取得に失敗",
			code:     "test-auth-code",
			userInfo: nil,
		},
		{
			name:     "subが空",
			code:     "test-auth-code",
			userInfo: map[string]interface{}{"sub": "", "email": "a@example.com", "email_verified": true},
		},
		{
			name:     "メールアドレスが未確認",
			code:     "test-auth-code",
			userInfo: map[string]interface{}{"sub": "s", "email": "a@example.com", "email_verified": false},
			wantErr:  ErrEmailNotVerified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newGoogleStub(t, tt.userInfo)

			info, err := provider.ExchangeCode(context.Background(), tt.code)
			if err == nil {
				t.Fatalf("expected error, got %+v", info)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
