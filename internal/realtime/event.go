// Package realtime はテナント単位のWebSocket配信を提供する。
//
// Hub はテナントごとのルームを1つのgoroutineで管理し、Gateway はHTTP接続を
// WebSocketにアップグレードしてクライアントをルームに参加させる。
// 複数インスタンス構成では NATSBridge がイベントを中継する。
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/clinicq/internal/model"
)

// EventType はクライアントに配信するイベントの種類。
type EventType string

const (
	EventTokenIssued  EventType = "token.issued"
	EventTokenCalled  EventType = "token.called"
	EventTokenUpdated EventType = "token.updated"
)

// Event はサーバーからクライアントへ送るメッセージ。
type Event struct {
	Type   EventType       `json:"type"`
	Tenant string          `json:"tenant"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

// Publisher はイベントの配信先を抽象化する。
// 単一インスタンスでは Hub、複数インスタンスでは NATSBridge が実装する。
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// TokenPayload は受付番号の公開用JSON表現。
type TokenPayload struct {
	ID          string     `json:"id"`
	Number      int        `json:"number"`
	Status      string     `json:"status"`
	PatientName string     `json:"patient_name"`
	IssuedAt    time.Time  `json:"issued_at"`
	CalledAt    *time.Time `json:"called_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTokenPayload はmodel.Tokenから公開用の表現を作る。
func NewTokenPayload(t *model.Token) TokenPayload {
	return TokenPayload{
		ID:          t.ID,
		Number:      t.Number,
		Status:      string(t.Status),
		PatientName: t.PatientName,
		IssuedAt:    t.IssuedAt,
		CalledAt:    t.CalledAt,
		CompletedAt: t.CompletedAt,
	}
}

// NewTokenEvent は受付番号に関するイベントを生成する。
func NewTokenEvent(typ EventType, tenant string, t *model.Token, now time.Time) (Event, error) {
	data, err := json.Marshal(NewTokenPayload(t))
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal token payload: %w", err)
	}
	return Event{
		Type:   typ,
		Tenant: tenant,
		Data:   data,
		SentAt: now.UTC(),
	}, nil
}

// PublishToken は受付番号イベントを生成してpに発行する。pがnilの場合は何もしない。
func PublishToken(ctx context.Context, p Publisher, typ EventType, tenant string, t *model.Token, now time.Time) error {
	if p == nil {
		return nil
	}
	ev, err := NewTokenEvent(typ, tenant, t, now)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ev)
}
