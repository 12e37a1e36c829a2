package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/clinicq/internal/model"
	"github.com/hitoshi/clinicq/internal/queue"
	"github.com/hitoshi/clinicq/internal/realtime"
)

// QueueServiceInterface は待ち行列ハンドラーが必要とするサービスインターフェース。
type QueueServiceInterface interface {
	List(ctx context.Context, tenant string) (*queue.Snapshot, error)
	CallNext(ctx context.Context, tenant, userID string) (*model.Token, error)
	UpdateStatus(ctx context.Context, tenant, userID, tokenID, status string) (*model.Token, error)
}

// QueueHandler は待ち行列のHTTPハンドラー。
type QueueHandler struct {
	service QueueServiceInterface
}

// NewQueueHandler はQueueHandlerを生成する。
func NewQueueHandler(service QueueServiceInterface) *QueueHandler {
	return &QueueHandler{service: service}
}

// queueResponse は本日の待ち行列。
type queueResponse struct {
	Clinic     string                  `json:"clinic"`
	Tokens     []realtime.TokenPayload `json:"tokens"`
	NowServing *realtime.TokenPayload  `json:"now_serving"`
}

// updateStatusRequest はステータス変更リクエストのボディ。
type updateStatusRequest struct {
	Status string `json:"status"`
}

// List は本日の待ち行列を返す。認証不要。
// GET /queue
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	snap, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := queueResponse{
		Clinic: snap.Clinic.Name,
		Tokens: make([]realtime.TokenPayload, len(snap.Tokens)),
	}
	for i, t := range snap.Tokens {
		resp.Tokens[i] = realtime.NewTokenPayload(t)
	}
	if snap.NowServing != nil {
		p := realtime.NewTokenPayload(snap.NowServing)
		resp.NowServing = &p
	}

	writeJSON(w, http.StatusOK, resp)
}

// CallNext は次の患者を呼び出す。
// POST /queue/next
func (h *QueueHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	t, err := h.service.CallNext(r.Context(), tenantID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, realtime.NewTokenPayload(t))
}

// UpdateStatus は受付番号のステータスを変更する。
// PUT /queue/{id}/status
func (h *QueueHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.UpdateStatus(r.Context(), tenantID, userID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, realtime.NewTokenPayload(t))
}
