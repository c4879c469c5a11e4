// Package websocket 将邮箱事件推送给持有该邮箱的客户端。
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/events"
	"tempinbox/backend/internal/middleware"
	"tempinbox/backend/internal/monitoring"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 64
	maxReadBytes   = 4096
)

// OwnedEmailLookup 校验邮箱归属
type OwnedEmailLookup interface {
	GetOwned(ctx context.Context, address string, requester domain.Identity) (*domain.TemporaryEmail, error)
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

// Message 定义WebSocket消息结构，事件推送时 Type 为事件类型
type Message struct {
	Type      MessageType     `json:"type"`
	Address   string          `json:"address,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	id        string
	identity  domain.Identity
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	addresses map[string]bool // 订阅的邮箱地址，由 hub.mu 保护
	closeOnce sync.Once
}

// Hub 管理所有WebSocket连接
//
// 客户端按身份分组；事件只推送给所有者身份一致的客户端，
// email.created 推送给该身份的全部连接，其余事件只推送给订阅了该地址的连接。
type Hub struct {
	mu       sync.RWMutex
	byOwner  map[string]map[*Client]struct{}
	emails   OwnedEmailLookup
	upgrader websocket.Upgrader
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewHub 创建WebSocket Hub
//
// 参数:
//   - allowedOrigins: 允许的 Origin 列表，为空或包含 "*" 时允许所有来源
//   - emails: 用于校验订阅地址的归属
func NewHub(allowedOrigins []string, emails OwnedEmailLookup, metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		byOwner:  make(map[string]map[*Client]struct{}),
		emails:   emails,
		upgrader: upgraderFactory(allowedOrigins),
		metrics:  metrics,
		log:      log,
	}
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// 没有 Origin 的请求不是浏览器发起的跨域请求
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// Run 阻塞到 ctx 结束，然后关闭全部连接
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.log.Info("websocket hub stopped")
	h.closeAll()
}

// Handle 处理 GET /v1/ws?address=，需要身份中间件在前
func (h *Hub) Handle(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "需要身份令牌或会话令牌"})
		return
	}

	address := domain.NormalizeAddress(c.Query("address"))
	if address != "" {
		if _, err := h.emails.GetOwned(c.Request.Context(), address, identity); err != nil {
			status, msg := http.StatusNotFound, "邮箱不存在"
			switch {
			case errors.Is(err, domain.ErrForbidden):
				status, msg = http.StatusForbidden, "无权访问该邮箱"
			case errors.Is(err, domain.ErrExpired):
				status, msg = http.StatusGone, "邮箱已过期"
			case !errors.Is(err, domain.ErrNotFound):
				status, msg = http.StatusInternalServerError, "服务器内部错误"
			}
			c.AbortWithStatusJSON(status, gin.H{"code": status, "msg": msg})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection",
			zap.Error(err),
			zap.String("origin", c.Request.Header.Get("Origin")),
			zap.String("remote_addr", c.ClientIP()))
		return
	}

	client := &Client{
		id:        uuid.NewString(),
		identity:  identity,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		hub:       h,
		addresses: make(map[string]bool),
	}
	h.register(client)
	if address != "" {
		h.subscribe(client, address)
		client.reply(MessageTypeSubscribed, address, "")
	}

	go client.writePump()
	go client.readPump()
}

// HandleEvent 订阅事件总线，把事件转发给对应客户端
func (h *Hub) HandleEvent(_ context.Context, evt events.Event) {
	if evt.OwnerKey == "" {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("failed to marshal event", zap.Error(err))
		return
	}
	payload, err := json.Marshal(Message{
		Type:      MessageType(evt.Type),
		Address:   evt.Address,
		Data:      data,
		Timestamp: evt.At,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.byOwner[evt.OwnerKey] {
		if evt.Type != events.EmailCreated && !client.addresses[evt.Address] {
			continue
		}
		select {
		case client.send <- payload:
		default:
			h.log.Warn("client channel blocked, skipping", zap.String("client_id", client.id))
		}
		// 过期或删除的地址不会再有事件
		if evt.Type == events.EmailExpired || evt.Type == events.EmailDeleted {
			delete(client.addresses, evt.Address)
		}
	}
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	total := 0
	for _, clients := range h.byOwner {
		total += len(clients)
	}
	return total
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	key := client.identity.Key()
	if h.byOwner[key] == nil {
		h.byOwner[key] = make(map[*Client]struct{})
	}
	h.byOwner[key][client] = struct{}{}
	count := h.countLocked()
	h.mu.Unlock()

	h.updateGauge(count)
	h.log.Debug("client registered", zap.String("client_id", client.id), zap.String("identity", key))
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	key := client.identity.Key()
	clients, ok := h.byOwner[key]
	if ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.closeSend()
		}
		if len(clients) == 0 {
			delete(h.byOwner, key)
		}
	}
	count := h.countLocked()
	h.mu.Unlock()

	h.updateGauge(count)
}

func (h *Hub) subscribe(client *Client, address string) {
	h.mu.Lock()
	client.addresses[address] = true
	h.mu.Unlock()
}

func (h *Hub) unsubscribe(client *Client, address string) {
	h.mu.Lock()
	delete(client.addresses, address)
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for _, clients := range h.byOwner {
		for client := range clients {
			client.closeSend()
		}
	}
	h.byOwner = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	h.updateGauge(0)
}

func (h *Hub) updateGauge(count int) {
	if h.metrics != nil {
		h.metrics.UpdateWebsocketClients(count)
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// reply 向客户端发送控制消息，缓冲区已满时丢弃
func (c *Client) reply(msgType MessageType, address, errMsg string) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Address:   address,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.byOwner[c.identity.Key()][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// handleMessage 处理订阅与取消订阅
func (c *Client) handleMessage(msg *Message) {
	address := domain.NormalizeAddress(msg.Address)

	switch msg.Type {
	case MessageTypeSubscribe:
		if address == "" {
			c.reply(MessageTypeError, "", "address is required")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if _, err := c.hub.emails.GetOwned(ctx, address, c.identity); err != nil {
			c.reply(MessageTypeError, address, err.Error())
			return
		}
		c.hub.subscribe(c, address)
		c.reply(MessageTypeSubscribed, address, "")
	case MessageTypeUnsubscribe:
		c.hub.unsubscribe(c, address)
	default:
		c.reply(MessageTypeError, address, "unknown message type")
	}
}
