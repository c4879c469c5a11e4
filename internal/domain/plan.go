package domain

import (
	"fmt"
	"strings"
	"time"
)

// PlanName 套餐名称
type PlanName string

const (
	PlanAnonymous PlanName = "anonymous"
	PlanFree      PlanName = "free"
	PlanStandard  PlanName = "standard"
	PlanPremium   PlanName = "premium"
)

// Plan 套餐限制
type Plan struct {
	Name PlanName `json:"name"`
	// MaxActiveEmails 同时存活的临时邮箱上限，0 表示不允许创建
	MaxActiveEmails int `json:"maxActiveEmails"`
	// EmailLifetime 邮箱生存时间
	EmailLifetime time.Duration `json:"emailLifetime"`
	// InboxStorage 每个邮箱最多保存的邮件数，0 表示不保存任何邮件
	InboxStorage int `json:"inboxStorage"`
	// AttachmentBudget 单封邮件附件总字节数上限
	AttachmentBudget int64 `json:"attachmentBudget"`
}

// StoresMessages 判断套餐是否保存邮件
func (p Plan) StoresMessages() bool {
	return p.InboxStorage > 0
}

// AllowsCustomDomains 判断套餐是否可以绑定自定义域名
func (p Plan) AllowsCustomDomains() bool {
	return p.Name == PlanStandard || p.Name == PlanPremium
}

// DefaultPlans 返回内置的套餐表
func DefaultPlans() map[PlanName]Plan {
	return map[PlanName]Plan{
		PlanAnonymous: {
			Name:            PlanAnonymous,
			MaxActiveEmails: 2,
			EmailLifetime:   600 * time.Second,
		},
		PlanFree: {
			Name:            PlanFree,
			MaxActiveEmails: 5,
			EmailLifetime:   600 * time.Second,
		},
		PlanStandard: {
			Name:             PlanStandard,
			MaxActiveEmails:  10,
			EmailLifetime:    43200 * time.Second,
			InboxStorage:     50,
			AttachmentBudget: 5 << 20,
		},
		PlanPremium: {
			Name:             PlanPremium,
			MaxActiveEmails:  15,
			EmailLifetime:    86400 * time.Second,
			InboxStorage:     200,
			AttachmentBudget: 25 << 20,
		},
	}
}

// ParsePlanName 解析套餐名称（不区分大小写）
func ParsePlanName(value string) (PlanName, error) {
	switch name := PlanName(strings.ToLower(strings.TrimSpace(value))); name {
	case PlanAnonymous, PlanFree, PlanStandard, PlanPremium:
		return name, nil
	default:
		return "", fmt.Errorf("unknown plan %q", value)
	}
}

// UserPlan 计费服务推送的用户套餐
type UserPlan struct {
	UserID    string    `json:"userId" gorm:"primaryKey;type:varchar(64)"`
	Plan      PlanName  `json:"plan" gorm:"type:varchar(20);not null"`
	UpdatedAt time.Time `json:"updatedAt"`
}
