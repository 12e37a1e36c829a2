package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/nats-io/nats.go"
)

// subjectTokenPattern はNATSサブジェクトの1トークンとして安全なテナント識別子。
var subjectTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// natsConn はNATSBridgeが使う*nats.Connのメソッド。
type natsConn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// NATSBridge はイベントを <prefix>.<tenant> に発行し、<prefix>.* の購読で受け取った
// イベントをローカルのHubに中継する。全インスタンスのクライアントに同じイベントが届く。
type NATSBridge struct {
	conn   natsConn
	prefix string
	hub    *Hub
	logger *slog.Logger
	sub    *nats.Subscription
}

// NewNATSBridge はNATSBridgeを生成する。購読はStartで開始する。
func NewNATSBridge(conn *nats.Conn, prefix string, hub *Hub, logger *slog.Logger) *NATSBridge {
	return newNATSBridge(conn, prefix, hub, logger)
}

func newNATSBridge(conn natsConn, prefix string, hub *Hub, logger *slog.Logger) *NATSBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSBridge{conn: conn, prefix: prefix, hub: hub, logger: logger}
}

// Subject はテナントのイベントを発行するサブジェクトを返す。
func (b *NATSBridge) Subject(tenant string) string {
	return b.prefix + "." + tenant
}

// Start は <prefix>.* を購読する。
func (b *NATSBridge) Start() error {
	sub, err := b.conn.Subscribe(b.prefix+".*", b.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe %s.*: %w", b.prefix, err)
	}
	b.sub = sub
	b.logger.Info("nats bridge subscribed", slog.String("subject", b.prefix+".*"))
	return nil
}

func (b *NATSBridge) handle(msg *nats.Msg) {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		b.logger.Error("failed to decode realtime event",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}
	if b.Subject(ev.Tenant) != msg.Subject {
		b.logger.Warn("realtime event tenant does not match subject",
			slog.String("subject", msg.Subject),
			slog.String("tenant", ev.Tenant),
		)
		return
	}
	if err := b.hub.publishRaw(context.Background(), ev.Tenant, msg.Data); err != nil {
		b.logger.Warn("failed to relay realtime event", slog.String("error", err.Error()))
	}
}

// Publish はイベントをNATSに発行する。ローカルのクライアントへは購読経由で届く。
func (b *NATSBridge) Publish(_ context.Context, ev Event) error {
	if !subjectTokenPattern.MatchString(ev.Tenant) {
		return fmt.Errorf("tenant %q cannot be used as a nats subject token", ev.Tenant)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.conn.Publish(b.Subject(ev.Tenant), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close は購読を解除する。
func (b *NATSBridge) Close() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Unsubscribe()
}

// compile-time interface check
var _ Publisher = (*NATSBridge)(nil)
