package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/clinicq/internal/model"
	"github.com/hitoshi/clinicq/internal/realtime"
	"github.com/hitoshi/clinicq/internal/token"
)

// TokenServiceInterface は受付番号ハンドラーが必要とするサービスインターフェース。
type TokenServiceInterface interface {
	Issue(ctx context.Context, tenant, patientName string) (*token.IssuedToken, error)
	Lookup(ctx context.Context, tenant, ticket string) (*token.TokenStatus, error)
}

// TokenHandler は患者向けの受付番号HTTPハンドラー。
type TokenHandler struct {
	service TokenServiceInterface
}

// NewTokenHandler はTokenHandlerを生成する。
func NewTokenHandler(service TokenServiceInterface) *TokenHandler {
	return &TokenHandler{service: service}
}

// issueTokenRequest は受付番号発行リクエストのボディ。
type issueTokenRequest struct {
	PatientName string `json:"patient_name"`
}

// issuedTokenResponse は発行した受付番号とチケット。
type issuedTokenResponse struct {
	realtime.TokenPayload
	Ticket string `json:"ticket"`
}

// tokenStatusResponse はチケットで照会した受付番号と前に待っている人数。
type tokenStatusResponse struct {
	realtime.TokenPayload
	Ahead int `json:"ahead"`
}

// Issue は受付番号を発行する。ボディは省略できる。
// POST /tokens
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	issued, err := h.service.Issue(r.Context(), tenantID, req.PatientName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, issuedTokenResponse{
		TokenPayload: realtime.NewTokenPayload(issued.Token),
		Ticket:       issued.Ticket,
	})
}

// Get はチケットで受付番号を照会する。
// GET /tokens/{ticket}
func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	status, err := h.service.Lookup(r.Context(), tenantID, chi.URLParam(r, "ticket"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenStatusResponse{
		TokenPayload: realtime.NewTokenPayload(status.Token),
		Ahead:        status.Ahead,
	})
}
