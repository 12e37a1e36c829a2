package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/clinicq/internal/metrics"
)

// ErrHubClosed はClose後のHubに対する操作で返される。
var ErrHubClosed = errors.New("realtime hub is closed")

type roomMessage struct {
	room    string
	payload []byte
}

type directMessage struct {
	client  *Client
	payload []byte
}

// Hub はテナントごとのルームとクライアントを管理する。
// ルームのmapはrunループのgoroutineだけが読み書きする。
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	direct     chan directMessage
	exec       chan func()

	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	collector metrics.MetricsCollector
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub はHubを生成し、runループを開始する。
func NewHub(collector metrics.MetricsCollector, logger *slog.Logger) *Hub {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage),
		direct:     make(chan directMessage),
		exec:       make(chan func()),
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		collector:  collector,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		for c := range h.clients {
			h.remove(c)
		}
	}()

	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			if c.Tenant != "" {
				room, ok := h.rooms[c.Tenant]
				if !ok {
					room = make(map[*Client]struct{})
					h.rooms[c.Tenant] = room
				}
				room[c] = struct{}{}
			}
			h.collector.RealtimeClientConnected()
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			for c := range h.rooms[msg.room] {
				h.deliver(c, msg.payload)
			}
		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.payload)
			}
		case fn := <-h.exec:
			fn()
		}
	}
}

// deliver は送信バッファに空きがあれば積み、満杯のクライアントは切断する。
func (h *Hub) deliver(c *Client, payload []byte) {
	select {
	case c.send <- payload:
		h.collector.RecordRealtimeMessage(true)
	default:
		h.collector.RecordRealtimeMessage(false)
		h.logger.Warn("realtime client send buffer full, disconnecting",
			slog.String("tenant", c.Tenant),
			slog.String("remote_addr", c.RemoteAddr),
		)
		h.remove(c)
	}
}

// remove はクライアントを登録から外し、送信チャネルを閉じる。二重に呼ばれても安全。
func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if room, ok := h.rooms[c.Tenant]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.Tenant)
		}
	}
	close(c.send)
	h.collector.RealtimeClientDisconnected()
}

// Register はクライアントをHubに参加させる。Close後はErrHubClosedを返す。
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

// Unregister はクライアントをHubから外す。
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Publish はイベントをテナントのルームに配信する。Publisherを実装する。
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return h.publishRaw(ctx, ev.Tenant, payload)
}

func (h *Hub) publishRaw(ctx context.Context, room string, payload []byte) error {
	select {
	case h.broadcast <- roomMessage{room: room, payload: payload}:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendTo は1クライアントにだけイベントを送る。OnConnectフックからの初期送信に使う。
func (h *Hub) SendTo(c *Client, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	select {
	case h.direct <- directMessage{client: c, payload: payload}:
		return nil
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

// clientCount はroomに参加中のクライアント数を返す。roomが空文字なら全クライアント数を返す。
func (h *Hub) clientCount(room string) int {
	result := make(chan int, 1)
	fn := func() {
		if room == "" {
			result <- len(h.clients)
			return
		}
		result <- len(h.rooms[room])
	}
	select {
	case h.exec <- fn:
		return <-result
	case <-h.ctx.Done():
		return 0
	}
}

// Close はrunループを停止し、全クライアントの送信チャネルを閉じる。
func (h *Hub) Close() {
	h.cancel()
	<-h.done
}

// compile-time interface check
var _ Publisher = (*Hub)(nil)
