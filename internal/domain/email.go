package domain

import "time"

// TemporaryEmail 表示一个临时邮箱。
//
// 生命周期：Active -> Expired -> Purged。
// Active 到 Expired 只由时间推移触发；Expired 到 Purged 由清理任务或显式删除触发。
// 过期地址可以被重新签发为新的记录，但旧记录永远不会重新激活。
type TemporaryEmail struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address   string    `json:"address" gorm:"type:varchar(320);uniqueIndex;not null"`
	LocalPart string    `json:"localPart" gorm:"type:varchar(64);not null"`
	Domain    string    `json:"domain" gorm:"type:varchar(253);index;not null"`
	OwnerKey  string    `json:"-" gorm:"type:varchar(300);index:idx_owner_created,priority:1;not null"`
	Plan      PlanName  `json:"plan" gorm:"type:varchar(20);not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_owner_created,priority:2"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"index;not null"`
	// Seq 插入序号，用于 CreatedAt 相同时的稳定排序
	Seq int64 `json:"-" gorm:"index"`

	Messages []Message `json:"messages,omitempty" gorm:"-"`
}

// TableName 指定表名
func (TemporaryEmail) TableName() string {
	return "temporary_emails"
}

// IsExpired 是过期判断的唯一定义：now >= ExpiresAt 即视为过期。
// 读取路径、配额统计与清理任务都必须使用该函数。
func IsExpired(email *TemporaryEmail, now time.Time) bool {
	return !now.Before(email.ExpiresAt)
}

// Remaining 返回剩余存活时间，过期后为 0
func (e *TemporaryEmail) Remaining(now time.Time) time.Duration {
	if IsExpired(e, now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

// OwnedBy 判断邮箱是否属于指定身份
func (e *TemporaryEmail) OwnedBy(identity Identity) bool {
	return e.OwnerKey == identity.Key()
}

// Lifetime 返回邮箱配置的生存时长
func (e *TemporaryEmail) Lifetime() time.Duration {
	return e.ExpiresAt.Sub(e.CreatedAt)
}
