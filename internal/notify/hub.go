// Package notify は認証状態の変化をWebSocket経由でクライアントへ配信する。
// 同一ユーザーが複数タブを開いている場合、全タブへ同じイベントが届く。
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 認証イベントの種別。
const (
	EventSignedIn  = "SIGNED_IN"
	EventSignedOut = "SIGNED_OUT"
)

// AuthEvent は配信される認証イベント。
type AuthEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// client はHubが管理する単一のWebSocket接続。
type client struct {
	userID string
	conn   *websocket.Conn
	send   chan AuthEvent
}

// Hub はユーザーごとのWebSocket接続を管理し、認証イベントを配信する。
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan AuthEvent
	done       chan struct{}
	logger     *slog.Logger
}

// NewHub はHubを生成する。Runを呼ぶまでイベントは処理されない。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan AuthEvent, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run はイベントループを開始する。ctxのキャンセルで停止する。
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// Publish は指定ユーザーの全接続へイベントを配信する。
// Hubが停止している場合は何もしない。
func (h *Hub) Publish(event AuthEvent) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

// Attach は接続をHubへ登録し、イベントの書き込みループを開始する。
// 接続の所有権はHubへ移り、切断時にHub側でクローズされる。
func (h *Hub) Attach(userID string, conn *websocket.Conn) {
	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan AuthEvent, 8),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writeLoop(c)
	go h.readLoop(c)
}

// ConnectionCount は指定ユーザーの現在の接続数を返す。
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.logger.Debug("websocket client registered", "user_id", c.userID)
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	h.logger.Debug("websocket client unregistered", "user_id", c.userID)
}

func (h *Hub) deliver(event AuthEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[event.UserID] {
		select {
		case c.send <- event:
		default:
			// 書き込みが詰まっている接続は切り捨てる
			h.logger.Warn("websocket send buffer full, dropping event",
				"user_id", event.UserID, "event", event.Type)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		for c := range conns {
			close(c.send)
		}
	}
	h.clients = make(map[string]map[*client]struct{})
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for event := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteJSON(event); err != nil {
			h.logger.Debug("websocket write failed", "user_id", c.userID, "error", err)
			return
		}
	}
}

// readLoop はクライアントからの受信を待ち、切断を検出する。
// クライアントからのメッセージは読み捨てる。
func (h *Hub) readLoop(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
