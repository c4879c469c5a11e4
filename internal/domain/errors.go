package domain

import (
	"errors"
	"fmt"
	"time"
)

// 业务错误定义
var (
	// ErrQuotaExceeded 活跃邮箱数已达套餐上限，可在 ResetTime 之后重试
	ErrQuotaExceeded = errors.New("active email quota exceeded")
	// ErrAddressConflict 地址已被另一个活跃邮箱占用
	ErrAddressConflict = errors.New("address already in use")
	// ErrExpired 邮箱已过期（记录可能尚未被清理）
	ErrExpired = errors.New("email expired")
	// ErrNotFound 邮箱或邮件不存在
	ErrNotFound = errors.New("not found")
	// ErrForbidden 请求者不是邮箱所有者
	ErrForbidden = errors.New("forbidden")
	// ErrAddressExhausted 多次生成随机地址均冲突，属于瞬时错误
	ErrAddressExhausted = errors.New("could not allocate a unique address")
	// ErrInvalidLocalPart 自定义前缀不合法
	ErrInvalidLocalPart = errors.New("invalid local part")
	// ErrDomainNotAllowed 域名不在可用范围内
	ErrDomainNotAllowed = errors.New("domain not allowed")
	// ErrNoDomainAvailable 没有任何可用域名
	ErrNoDomainAvailable = errors.New("no domain available")
	// ErrInvalidDomain 域名格式无效
	ErrInvalidDomain = errors.New("invalid domain format")
	// ErrDomainExists 域名已被绑定
	ErrDomainExists = errors.New("domain already registered")
	// ErrDomainVerifyFailed 域名 TXT 记录校验失败
	ErrDomainVerifyFailed = errors.New("domain verification failed")
	// ErrPlanNotEligible 当前套餐不支持该功能
	ErrPlanNotEligible = errors.New("plan not eligible")
)

// QuotaExceededError 携带配额拒绝的上下文。
//
// ResetTime 为 nil 表示套餐本身不允许创建（MaxActiveEmails == 0），
// 调用方应提示升级套餐而不是倒计时。
type QuotaExceededError struct {
	Limit     int
	ResetTime *time.Time
}

func (e *QuotaExceededError) Error() string {
	if e.ResetTime == nil {
		return fmt.Sprintf("%s: limit %d, plan does not allow creation", ErrQuotaExceeded, e.Limit)
	}
	return fmt.Sprintf("%s: limit %d, next slot at %s", ErrQuotaExceeded, e.Limit, e.ResetTime.UTC().Format(time.RFC3339))
}

// Unwrap 使 errors.Is(err, ErrQuotaExceeded) 成立
func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}
