package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/events"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/security"
	"tempinbox/backend/internal/storage"
)

const previewLength = 120

// EmailLookup 按地址读取邮箱，过期与所有权语义与 EmailService 一致
type EmailLookup interface {
	Get(ctx context.Context, address string) (*domain.TemporaryEmail, error)
	GetOwned(ctx context.Context, address string, requester domain.Identity) (*domain.TemporaryEmail, error)
}

// PlanLookup 按名称查找套餐
type PlanLookup interface {
	Plan(name domain.PlanName) (domain.Plan, bool)
}

// InboundMessage 收信方（SMTP 或 webhook）交付的一封邮件
type InboundMessage struct {
	DeliveryID  string // 投递方消息ID，用于去重，可为空
	From        string
	To          string
	Subject     string
	Text        string
	HTML        string
	ReceivedAt  time.Time
	Attachments []domain.Attachment
}

// Outcome 投递结果
type Outcome string

const (
	OutcomeStored    Outcome = "stored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDiscarded Outcome = "discarded" // 套餐不保存邮件
)

// Delivery 一次投递的结果
type Delivery struct {
	Outcome            Outcome
	Email              *domain.TemporaryEmail
	Message            *domain.Message // Duplicate 时可能为 nil
	Evicted            int
	DroppedAttachments int
}

// MessageService 封装邮件投递与收件箱读取。
type MessageService struct {
	store    storage.MessageRepository
	emails   EmailLookup
	plans    PlanLookup
	screener *security.AttachmentScreener
	events   events.Publisher
	metrics  *monitoring.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// NewMessageService 创建邮件业务服务
func NewMessageService(store storage.MessageRepository, emails EmailLookup, plans PlanLookup, log *zap.Logger) *MessageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{
		store:    store,
		emails:   emails,
		plans:    plans,
		screener: security.NewAttachmentScreener(),
		events:   events.Nop{},
		log:      log,
		now:      time.Now,
	}
}

// SetPublisher 设置事件发布者
func (s *MessageService) SetPublisher(publisher events.Publisher) {
	if publisher == nil {
		publisher = events.Nop{}
	}
	s.events = publisher
}

// SetMetrics 设置指标收集器
func (s *MessageService) SetMetrics(metrics *monitoring.Metrics) {
	s.metrics = metrics
}

// SetClock 替换时钟，用于测试
func (s *MessageService) SetClock(now func() time.Time) {
	s.now = now
}

// AppendMessage 将一封邮件投递到地址对应的邮箱。
//
// 地址不存在或已过期时返回 domain.ErrNotFound / domain.ErrExpired，
// 包括读取之后、写入之前邮箱被清理的情况。
// 套餐不保存邮件时直接确认；附件先做安全检查，再按套餐预算依次保留，
// 超出预算的附件单独丢弃；超出收件箱容量时淘汰最旧的邮件。
func (s *MessageService) AppendMessage(ctx context.Context, address string, in InboundMessage) (*Delivery, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordEmailProcessingTime("append", time.Since(start))
		}
	}()

	email, err := s.emails.Get(ctx, address)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	plan, ok := s.plans.Plan(email.Plan)
	if !ok || !plan.StoresMessages() {
		s.record(OutcomeDiscarded)
		s.log.Debug("message discarded by plan",
			zap.String("address", email.Address),
			zap.String("plan", string(email.Plan)))
		return &Delivery{Outcome: OutcomeDiscarded, Email: email}, nil
	}

	message, dropped := s.buildMessage(in, plan)
	now := s.now()
	result, err := s.store.AppendMessage(ctx, email.Address, message, storage.AppendOptions{
		Now:         now,
		MaxMessages: plan.InboxStorage,
	})
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	delivery := &Delivery{
		Outcome:            OutcomeStored,
		Email:              result.Email,
		Message:            result.Message,
		Evicted:            result.Evicted,
		DroppedAttachments: dropped,
	}
	if delivery.Email == nil {
		delivery.Email = email
	}
	if result.Duplicate {
		delivery.Outcome = OutcomeDuplicate
		delivery.DroppedAttachments = 0
		s.record(OutcomeDuplicate)
		return delivery, nil
	}

	s.record(OutcomeStored)
	if s.metrics != nil {
		s.metrics.RecordMessagesEvicted(result.Evicted)
	}
	s.events.Publish(events.Event{
		Type:      events.MessageReceived,
		Address:   delivery.Email.Address,
		EmailID:   delivery.Email.ID,
		OwnerKey:  delivery.Email.OwnerKey,
		ExpiresAt: delivery.Email.ExpiresAt,
		Message:   summarize(message),
		At:        now.UTC(),
	})
	s.log.Info("message stored",
		zap.String("address", delivery.Email.Address),
		zap.String("message_id", message.ID),
		zap.Int("evicted", result.Evicted),
		zap.Int("dropped_attachments", dropped))
	return delivery, nil
}

// buildMessage 组装待存储的邮件，返回被丢弃的附件数
func (s *MessageService) buildMessage(in InboundMessage, plan domain.Plan) (*domain.Message, int) {
	now := s.now().UTC()
	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	message := &domain.Message{
		ID:         uuid.NewString(),
		From:       domain.TruncateRunes(in.From, domain.MaxHeaderAddrLength),
		To:         domain.TruncateRunes(in.To, domain.MaxHeaderAddrLength),
		Subject:    domain.TruncateRunes(in.Subject, domain.MaxSubjectLength),
		Text:       in.Text,
		HTML:       in.HTML,
		ReceivedAt: receivedAt.UTC(),
		CreatedAt:  now,
	}
	if id := strings.TrimSpace(in.DeliveryID); id != "" {
		id = domain.NormalizeDeliveryID(id)
		message.DeliveryID = &id
	}

	safe, rejected := s.screener.Filter(in.Attachments)
	for _, reason := range rejected {
		s.dropAttachment(reason)
	}
	dropped := len(rejected)

	var used int64
	for _, att := range safe {
		if att.Size <= 0 {
			att.Size = int64(len(att.Content))
		}
		if used+att.Size > plan.AttachmentBudget {
			dropped++
			s.dropAttachment("budget")
			continue
		}
		used += att.Size
		att.ID = uuid.NewString()
		att.Filename = domain.TruncateRunes(att.Filename, domain.MaxFilenameLength)
		att.ContentType = domain.TruncateRunes(att.ContentType, domain.MaxContentTypeLength)
		att.MessageID = message.ID
		message.Attachments = append(message.Attachments, att)
	}
	return message, dropped
}

// Inbox 返回请求者拥有的活跃邮箱中的邮件，最新在前
func (s *MessageService) Inbox(ctx context.Context, address string, requester domain.Identity) (*domain.TemporaryEmail, []domain.Message, error) {
	email, err := s.emails.GetOwned(ctx, address, requester)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.store.ListMessages(ctx, email.ID)
	if err != nil {
		return nil, nil, err
	}
	return email, messages, nil
}

// MarkRead 设置邮件的已读状态
func (s *MessageService) MarkRead(ctx context.Context, address, messageID string, requester domain.Identity, read bool) error {
	email, err := s.emails.GetOwned(ctx, address, requester)
	if err != nil {
		return err
	}
	return s.store.MarkMessageRead(ctx, email.ID, messageID, read)
}

// GetAttachment 返回附件内容
func (s *MessageService) GetAttachment(ctx context.Context, address, messageID, attachmentID string, requester domain.Identity) (*domain.Attachment, error) {
	_, messages, err := s.Inbox(ctx, address, requester)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		if messages[i].ID != messageID {
			continue
		}
		for j := range messages[i].Attachments {
			if messages[i].Attachments[j].ID == attachmentID {
				return &messages[i].Attachments[j], nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MessageService) record(outcome Outcome) {
	if s.metrics != nil {
		s.metrics.RecordMessage(string(outcome))
	}
}

func (s *MessageService) recordFailure(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrExpired):
		s.metrics.RecordMessage("expired")
	case errors.Is(err, domain.ErrNotFound):
		s.metrics.RecordMessage("not_found")
	default:
		s.metrics.RecordError("storage", "message")
	}
}

func (s *MessageService) dropAttachment(reason string) {
	if s.metrics != nil {
		s.metrics.RecordAttachmentDropped(reason)
	}
}

func summarize(message *domain.Message) *events.MessageSummary {
	preview := strings.Join(strings.Fields(message.Text), " ")
	if utf8.RuneCountInString(preview) > previewLength {
		preview = string([]rune(preview)[:previewLength])
	}
	return &events.MessageSummary{
		ID:         message.ID,
		From:       message.From,
		Subject:    message.Subject,
		Preview:    preview,
		HasHTML:    message.HTML != "",
		ReceivedAt: message.ReceivedAt,
	}
}
