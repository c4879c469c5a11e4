package domain

import "time"

// DomainStatus 自定义域名状态
type DomainStatus string

const (
	// DomainStatusPending 待验证
	DomainStatusPending DomainStatus = "pending"
	// DomainStatusVerified 已验证
	DomainStatusVerified DomainStatus = "verified"
	// DomainStatusFailed 验证失败
	DomainStatusFailed DomainStatus = "failed"
)

// VerifyRecordPrefix DNS TXT 验证记录前缀
const VerifyRecordPrefix = "tempinbox-verify="

// CustomDomain 用户绑定的自定义域名
type CustomDomain struct {
	ID          string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string       `json:"userId" gorm:"type:varchar(64);index;not null"`
	Domain      string       `json:"domain" gorm:"uniqueIndex;type:varchar(253);not null"`
	Status      DomainStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	VerifyToken string       `json:"verifyToken" gorm:"type:varchar(64)"`
	VerifiedAt  *time.Time   `json:"verifiedAt,omitempty"`
	LastCheckAt *time.Time   `json:"lastCheckAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// TableName 指定表名
func (CustomDomain) TableName() string {
	return "custom_domains"
}

// IsVerified 判断域名是否已通过验证
func (d *CustomDomain) IsVerified() bool {
	return d.Status == DomainStatusVerified
}

// VerifyRecord 返回需要添加的 TXT 记录值
func (d *CustomDomain) VerifyRecord() string {
	return VerifyRecordPrefix + d.VerifyToken
}
