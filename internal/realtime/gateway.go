package realtime

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/clinicq/internal/tenant"
)

// DefaultSendBuffer はクライアントごとの送信バッファの既定サイズ。
const DefaultSendBuffer = 64

// OriginChecker はWebSocketのOriginを検証する。HTTPのCORSと同じポリシーを渡す。
type OriginChecker interface {
	Allowed(origin string) bool
}

// Gateway はGET /ws をWebSocketにアップグレードし、Hostから解決したテナントのルームに参加させる。
type Gateway struct {
	hub        *Hub
	strategy   tenant.Strategy
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *slog.Logger

	mu    sync.RWMutex
	hooks []func(*Client)
}

// NewGateway はGatewayを生成する。sendBufferが0以下の場合はDefaultSendBufferを使う。
func NewGateway(hub *Hub, strategy tenant.Strategy, origins OriginChecker, sendBuffer int, logger *slog.Logger) *Gateway {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		hub:        hub,
		strategy:   strategy,
		sendBuffer: sendBuffer,
		logger:     logger,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origins.Allowed(origin) {
				return true
			}
			logger.Warn("realtime origin rejected", slog.String("origin", origin))
			return false
		},
	}
	return g
}

// OnConnect はクライアントがルームに参加した後に呼ばれるフックを登録する。
func (g *Gateway) OnConnect(fn func(*Client)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, fn)
}

// ServeHTTP はWebSocketへのアップグレードを行う。
// 許可されないOriginはアップグレード前に403で拒否される。
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader がエラーレスポンスを書き込み済み
		return
	}

	tenantID, _ := g.strategy.Resolve(r.Host)
	client := newClient(g.hub, conn, tenantID, r.RemoteAddr, g.sendBuffer)

	if err := g.hub.Register(client); err != nil {
		conn.Close()
		return
	}

	g.logger.Info("client connected",
		slog.String("tenant", tenantID),
		slog.String("remote_addr", client.RemoteAddr),
	)

	go client.writePump()
	go client.readPump(func() {
		g.logger.Info("client disconnected",
			slog.String("tenant", tenantID),
			slog.String("remote_addr", client.RemoteAddr),
		)
	})

	g.mu.RLock()
	hooks := append([]func(*Client){}, g.hooks...)
	g.mu.RUnlock()
	for _, fn := range hooks {
		fn(client)
	}
}
