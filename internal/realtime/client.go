package realtime

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait は1メッセージの書き込みに許す時間。
	writeWait = 10 * time.Second
	// pongWait はpongを待つ時間。これを超えると読み込みがタイムアウトする。
	pongWait = 60 * time.Second
	// pingPeriod はpingの送信間隔。pongWaitより短くする。
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize はクライアントから受け付ける最大メッセージサイズ。
	maxMessageSize = 512
)

// Client はWebSocket接続1本を表す。
// 書き込みはwritePump、読み込みはreadPumpのgoroutineだけが行う。
type Client struct {
	// Tenant は参加しているルーム。テナント未解決の接続では空文字。
	Tenant     string
	RemoteAddr string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, tenant, remoteAddr string, sendBuffer int) *Client {
	return &Client{
		Tenant:     tenant,
		RemoteAddr: remoteAddr,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
	}
}

// Send はこのクライアントにだけイベントを送る。
func (c *Client) Send(ev Event) error {
	return c.hub.SendTo(c, ev)
}

// readPump はクライアントからのメッセージを読み捨て、pongで読み込み期限を延長する。
// 接続が切れるとHubから外れる。
func (c *Client) readPump(onClose func()) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		onClose()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump は送信チャネルのメッセージを順に書き込み、定期的にpingを送る。
// Hubが送信チャネルを閉じるとcloseフレームを送って終了する。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
