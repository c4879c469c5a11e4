// Package events 提供进程内的发布/订阅通知。
// 邮箱创建、过期、删除与新邮件到达都通过 Bus 显式发布，订阅者在协程池中执行。
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tempinbox/backend/internal/pool"
)

// Type 事件类型
type Type string

const (
	EmailCreated    Type = "email.created"
	EmailExpired    Type = "email.expired"
	EmailDeleted    Type = "email.deleted"
	MessageReceived Type = "message.received"
)

// MessageSummary 新邮件摘要，不包含正文与附件内容
type MessageSummary struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Preview    string    `json:"preview,omitempty"`
	HasHTML    bool      `json:"hasHtml"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Event 一次状态变化
type Event struct {
	Type      Type            `json:"type"`
	Address   string          `json:"address"`
	EmailID   string          `json:"emailId"`
	OwnerKey  string          `json:"-"`
	ExpiresAt time.Time       `json:"expiresAt,omitempty"`
	Message   *MessageSummary `json:"message,omitempty"`
	At        time.Time       `json:"at"`
}

// Handler 事件处理函数
type Handler func(ctx context.Context, evt Event)

// Publisher 发布事件
type Publisher interface {
	Publish(evt Event)
}

// Bus 事件总线
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	wildcard []Handler
	pool     *pool.WorkerPool
	log      *zap.Logger
}

var _ Publisher = (*Bus)(nil)

// NewBus 创建事件总线。workers 为 nil 时同步执行订阅者。
func NewBus(workers *pool.WorkerPool, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[Type][]Handler),
		pool:     workers,
		log:      log,
	}
}

// Subscribe 订阅指定类型的事件，不传类型表示订阅全部
func (b *Bus) Subscribe(handler Handler, types ...Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(types) == 0 {
		b.wildcard = append(b.wildcard, handler)
		return
	}
	for _, t := range types {
		b.handlers[t] = append(b.handlers[t], handler)
	}
}

// Publish 发布事件。协程池队列已满时丢弃并记录日志，发布方永远不会被订阅者阻塞。
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[evt.Type])+len(b.wildcard))
	handlers = append(handlers, b.handlers[evt.Type]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h := h
		task := func() { h(context.Background(), evt) }

		if b.pool == nil {
			task()
			continue
		}
		if !b.pool.TrySubmit(task) {
			b.log.Warn("event dropped, worker pool saturated",
				zap.String("type", string(evt.Type)),
				zap.String("address", evt.Address))
		}
	}
}

// Nop 不做任何事的发布者
type Nop struct{}

// Publish 实现 Publisher
func (Nop) Publish(Event) {}
