package domain

import (
	"fmt"
	"strings"
)

// IdentityKind 身份类型
type IdentityKind string

const (
	// IdentityAnonymous 匿名会话（客户端生成并保存的会话令牌）
	IdentityAnonymous IdentityKind = "anon"
	// IdentityUser 已认证用户
	IdentityUser IdentityKind = "user"
)

// Identity 表示配额归属的主体：匿名会话或已认证用户。
// 每个临时邮箱有且只有一个 Identity 作为所有者。
type Identity struct {
	Kind IdentityKind `json:"kind"`
	ID   string       `json:"id"`
}

// AnonymousIdentity 根据会话令牌构造匿名身份
func AnonymousIdentity(sessionToken string) Identity {
	return Identity{Kind: IdentityAnonymous, ID: sessionToken}
}

// UserIdentity 根据用户ID构造用户身份
func UserIdentity(userID string) Identity {
	return Identity{Kind: IdentityUser, ID: userID}
}

// IsUser 判断是否为已认证用户
func (i Identity) IsUser() bool {
	return i.Kind == IdentityUser
}

// IsZero 判断身份是否为空
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// Key 返回持久化使用的所有者键，例如 "anon:abc" 或 "user:42"。
func (i Identity) Key() string {
	return string(i.Kind) + ":" + i.ID
}

// String 实现 fmt.Stringer
func (i Identity) String() string {
	return i.Key()
}

// ParseIdentityKey 解析 Key() 生成的所有者键
func ParseIdentityKey(key string) (Identity, error) {
	kind, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return Identity{}, fmt.Errorf("invalid identity key %q", key)
	}
	switch IdentityKind(kind) {
	case IdentityAnonymous, IdentityUser:
		return Identity{Kind: IdentityKind(kind), ID: id}, nil
	default:
		return Identity{}, fmt.Errorf("invalid identity kind %q", kind)
	}
}
