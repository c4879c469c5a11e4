package storage

import (
	"context"
	"time"

	"tempinbox/backend/internal/domain"
)

// 存储层统一返回 domain 包中的哨兵错误：
// domain.ErrNotFound、domain.ErrExpired、domain.ErrAddressConflict、domain.ErrDomainExists。

// AppendOptions 控制一次投递在存储层的落库策略。
type AppendOptions struct {
	// Now 判断邮箱是否过期使用的时间
	Now time.Time
	// MaxMessages 邮箱最多保留的邮件数，超出部分按插入顺序淘汰最旧的
	MaxMessages int
}

// AppendResult 描述一次投递的结果。
type AppendResult struct {
	Email     *domain.TemporaryEmail
	Message   *domain.Message
	Duplicate bool // DeliveryID 已存在，未重复写入
	Evicted   int  // 被淘汰的旧邮件数量
}

// EmailRepository 定义临时邮箱数据存取操作。
type EmailRepository interface {
	// InsertEmail 原子地检查地址并插入。
	// 地址被活跃记录占用时返回 domain.ErrAddressConflict；
	// 被已过期记录占用时在同一临界区内清除旧记录后复用地址。
	// 以 email.CreatedAt 作为判断过期的时间基准。
	InsertEmail(ctx context.Context, email *domain.TemporaryEmail) error
	// GetEmailByAddress 返回原始记录，不做过期判断。
	GetEmailByAddress(ctx context.Context, address string) (*domain.TemporaryEmail, error)
	// ListEmailsByOwner 返回所有者的全部记录（含已过期未清理的），按 CreatedAt、Seq 升序。
	ListEmailsByOwner(ctx context.Context, ownerKey string) ([]domain.TemporaryEmail, error)
	DeleteEmail(ctx context.Context, address string) error
	// DeleteExpiredEmails 删除 ExpiresAt <= now 的记录及其邮件，返回被删除的记录。
	DeleteExpiredEmails(ctx context.Context, now time.Time) ([]domain.TemporaryEmail, error)
	CountEmails(ctx context.Context) (int64, error)
}

// MessageRepository 定义邮件数据存取操作。
type MessageRepository interface {
	// AppendMessage 在一个临界区内完成：查找邮箱、过期判断、去重、写入与 FIFO 淘汰。
	AppendMessage(ctx context.Context, address string, message *domain.Message, opts AppendOptions) (*AppendResult, error)
	// ListMessages 按接收顺序倒序返回邮件（最新在前）。
	ListMessages(ctx context.Context, emailID string) ([]domain.Message, error)
	MarkMessageRead(ctx context.Context, emailID, messageID string, read bool) error
}

// UserPlanRepository 定义用户套餐数据存取操作。
type UserPlanRepository interface {
	SaveUserPlan(ctx context.Context, plan *domain.UserPlan) error
	GetUserPlan(ctx context.Context, userID string) (*domain.UserPlan, error)
}

// CustomDomainRepository 定义用户自定义域名数据存取操作。
type CustomDomainRepository interface {
	// CreateCustomDomain 插入新域名，域名已存在时返回 domain.ErrDomainExists。
	CreateCustomDomain(ctx context.Context, customDomain *domain.CustomDomain) error
	UpdateCustomDomain(ctx context.Context, customDomain *domain.CustomDomain) error
	GetCustomDomain(ctx context.Context, id string) (*domain.CustomDomain, error)
	GetCustomDomainByName(ctx context.Context, name string) (*domain.CustomDomain, error)
	ListCustomDomainsByUser(ctx context.Context, userID string) ([]domain.CustomDomain, error)
	ListVerifiedCustomDomains(ctx context.Context) ([]domain.CustomDomain, error)
	DeleteCustomDomain(ctx context.Context, id string) error
}

// Store 定义完整的存储接口。
type Store interface {
	EmailRepository
	MessageRepository
	UserPlanRepository
	CustomDomainRepository

	// 工具方法
	Close() error
	Health(ctx context.Context) error
}
