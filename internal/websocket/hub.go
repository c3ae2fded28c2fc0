package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"hydro-monitor/internal/models"
	"hydro-monitor/internal/state"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	messageTypeSnapshot = "snapshot"
	broadcastBuffer     = 64
)

// Message 推送给看板的消息
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub 维护在线看板连接并广播派生状态
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // Run 退出后关闭
	mu         sync.RWMutex

	latest   *state.Cell[models.SnapshotEnvelope]
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub 创建 Hub；新连接会先收到 latest 中的最新快照
func NewHub(latest *state.Cell[models.SnapshotEnvelope], logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		latest:     latest,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run 事件循环，ctx 取消时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered", zap.String("remote_addr", client.remoteAddr()))
			h.sendInitial(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("WebSocket client unregistered", zap.String("remote_addr", client.remoteAddr()))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 发送缓冲已满，视为掉线
					h.logger.Warn("WebSocket client send buffer full, removing",
						zap.String("remote_addr", client.remoteAddr()),
					)
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastSnapshot 广播一次派生状态；广播队列满时丢弃，不阻塞调用方
func (h *Hub) BroadcastSnapshot(env *models.SnapshotEnvelope) {
	messageBytes, err := encode(env)
	if err != nil {
		h.logger.Error("Failed to marshal snapshot for broadcast", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- messageBytes:
	default:
		h.logger.Warn("Broadcast queue full, dropping snapshot",
			zap.String("snapshot_id", env.SnapshotID),
		)
	}
}

// ClientCount 在线连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS 升级 HTTP 连接并注册客户端
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn)
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) sendInitial(client *Client) {
	env, ok := h.latest.Load()
	if !ok {
		return
	}
	messageBytes, err := encode(&env)
	if err != nil {
		h.logger.Error("Failed to marshal initial snapshot", zap.Error(err))
		return
	}
	select {
	case client.send <- messageBytes:
	default:
	}
}

func encode(env *models.SnapshotEnvelope) ([]byte, error) {
	return json.Marshal(Message{Type: messageTypeSnapshot, Payload: env})
}
