package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/service"
)

// DomainChecker 判断域名是否由本服务接收
type DomainChecker interface {
	IsManagedDomain(ctx context.Context, name string) (bool, error)
}

// EmailLookup 按地址读取活跃邮箱
type EmailLookup interface {
	Get(ctx context.Context, address string) (*domain.TemporaryEmail, error)
}

// MessageAppender 投递邮件
type MessageAppender interface {
	AppendMessage(ctx context.Context, address string, in service.InboundMessage) (*service.Delivery, error)
}

// Options SMTP 后端参数
type Options struct {
	MaxMessageBytes int64
	Timeout         time.Duration // 单次存储操作超时
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 只接收邮件，不做中继：RCPT 阶段要求收件人域名由本服务管理，
// 且地址对应一个活跃的临时邮箱，否则返回 550。
type Backend struct {
	domains  DomainChecker
	emails   EmailLookup
	messages MessageAppender
	limiter  *ConnectionLimiter
	metrics  *monitoring.Metrics
	log      *zap.Logger
	opts     Options
}

// NewBackend 创建 SMTP Backend。limiter 与 metrics 可以为 nil。
func NewBackend(domains DomainChecker, emails EmailLookup, messages MessageAppender, limiter *ConnectionLimiter, metrics *monitoring.Metrics, log *zap.Logger, opts Options) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 30 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Backend{
		domains:  domains,
		emails:   emails,
		messages: messages,
		limiter:  limiter,
		metrics:  metrics,
		log:      log,
		opts:     opts,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	remoteIP := ""
	if c != nil && c.Conn() != nil {
		remoteIP = hostOf(c.Conn().RemoteAddr())
	}

	if b.limiter != nil {
		if !b.limiter.Acquire(remoteIP) {
			if b.metrics != nil {
				b.metrics.RecordRateLimitBlock("smtp")
			}
			b.log.Warn("smtp session rejected by limiter", zap.String("ip", remoteIP))
			return nil, &gosmtp.SMTPError{
				Code:         421,
				EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
				Message:      "too many connections, try again later",
			}
		}
	}

	return &session{backend: b, remoteIP: remoteIP}, nil
}

type session struct {
	backend    *Backend
	remoteIP   string
	from       string
	recipients []string
	released   bool
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.from = domain.NormalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 验证流程：地址格式、域名是否受管理、邮箱是否存在且未过期。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := domain.NormalizeAddress(to)
	_, recipientDomain, ok := domain.SplitAddress(addr)
	if !ok {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.opts.Timeout)
	defer cancel()

	managed, err := s.backend.domains.IsManagedDomain(ctx, recipientDomain)
	if err != nil {
		s.backend.log.Error("domain lookup failed", zap.String("domain", recipientDomain), zap.Error(err))
		return temporaryFailure()
	}
	if !managed {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied",
		}
	}

	if _, err := s.backend.emails.Get(ctx, addr); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrExpired) {
			return &gosmtp.SMTPError{
				Code:         550,
				EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
				Message:      "recipient mailbox not found",
			}
		}
		s.backend.log.Error("recipient lookup failed", zap.String("address", addr), zap.Error(err))
		return temporaryFailure()
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 处理邮件内容。
func (s *session) Data(r io.Reader) error {
	maxBytes := s.backend.opts.MaxMessageBytes
	raw, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return err
	}
	if int64(len(raw)) > maxBytes {
		return &gosmtp.SMTPError{
			Code:         552,
			EnhancedCode: gosmtp.EnhancedCode{5, 3, 4},
			Message:      "message too large",
		}
	}

	parsed, err := ParseEmail(raw)
	if err != nil {
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      fmt.Sprintf("malformed message: %v", err),
		}
	}

	from := parsed.From
	if from == "" {
		from = s.from
	}

	for _, rcpt := range s.recipients {
		ctx, cancel := context.WithTimeout(context.Background(), s.backend.opts.Timeout)
		delivery, err := s.backend.messages.AppendMessage(ctx, rcpt, service.InboundMessage{
			DeliveryID:  parsed.MessageID,
			From:        from,
			To:          rcpt,
			Subject:     parsed.Subject,
			Text:        parsed.Text,
			HTML:        parsed.HTML,
			ReceivedAt:  parsed.Date,
			Attachments: parsed.Attachments,
		})
		cancel()

		switch {
		case err == nil:
			s.backend.log.Debug("smtp message delivered",
				zap.String("to", rcpt),
				zap.String("outcome", string(delivery.Outcome)))
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrExpired):
			// 邮箱在 RCPT 之后过期或被删除，静默丢弃
			s.backend.log.Info("recipient vanished before delivery", zap.String("to", rcpt))
		default:
			s.backend.log.Error("smtp delivery failed", zap.String("to", rcpt), zap.Error(err))
			return temporaryFailure()
		}
	}
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	if s.backend.limiter != nil && !s.released {
		s.released = true
		s.backend.limiter.Release()
	}
	return nil
}

func temporaryFailure() error {
	return &gosmtp.SMTPError{
		Code:         451,
		EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
		Message:      "temporary failure, try again later",
	}
}

func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
