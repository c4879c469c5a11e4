package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// 邮件字段的存储宽度（按字符计），与表结构的 varchar 长度一致
const (
	MaxSubjectLength     = 998
	MaxHeaderAddrLength  = 320
	MaxDeliveryIDLength  = 255
	MaxFilenameLength    = 255
	MaxContentTypeLength = 100
)

// Message 表示一封临时邮箱内的邮件。
type Message struct {
	ID      string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EmailID string `json:"emailId" gorm:"type:varchar(36);index;uniqueIndex:idx_email_delivery,priority:1;not null"`
	// DeliveryID 投递方提供的消息ID，用于幂等去重；为空时不参与去重
	DeliveryID *string   `json:"deliveryId,omitempty" gorm:"type:varchar(255);uniqueIndex:idx_email_delivery,priority:2"`
	From       string    `json:"from" gorm:"type:varchar(320)"`
	To         string    `json:"to" gorm:"type:varchar(320)"`
	Subject    string    `json:"subject" gorm:"type:varchar(998)"`
	Text       string    `json:"text,omitempty" gorm:"type:text"`
	HTML       string    `json:"html,omitempty" gorm:"type:text"`
	IsRead     bool      `json:"isRead" gorm:"default:false"`
	ReceivedAt time.Time `json:"receivedAt"`
	CreatedAt  time.Time `json:"createdAt"`
	// Seq 插入序号，FIFO 淘汰按此字段排序
	Seq int64 `json:"-" gorm:"index"`

	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// AttachmentBytes 返回附件总字节数
func (m *Message) AttachmentBytes() int64 {
	var total int64
	for _, att := range m.Attachments {
		total += att.Size
	}
	return total
}

// TruncateRunes 按字符截断字符串，不会切断多字节字符
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// NormalizeDeliveryID 超长的投递ID替换为其 SHA-256 摘要，同一ID始终得到同一结果，去重不受影响
func NormalizeDeliveryID(id string) string {
	if utf8.RuneCountInString(id) <= MaxDeliveryIDLength {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return "sha256:" + hex.EncodeToString(sum[:])
}
