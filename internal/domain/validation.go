package domain

import (
	"regexp"
	"strings"
)

// 验证常量
const (
	// 自定义前缀长度限制
	MinLocalPartLength = 3
	MaxLocalPartLength = 30

	// RFC 1035 域名长度限制
	MaxDomainLength = 253
)

// 正则表达式
var (
	// 本地部分只允许字母、数字以及 . _ -
	localPartRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

	// 域名验证（支持子域名）
	domainRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?(\.[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?)*$`)
)

// ValidateLocalPart 验证用户请求的邮箱前缀
func ValidateLocalPart(localPart string) error {
	if len(localPart) < MinLocalPartLength || len(localPart) > MaxLocalPartLength {
		return ErrInvalidLocalPart
	}
	if !localPartRegex.MatchString(localPart) {
		return ErrInvalidLocalPart
	}
	return nil
}

// ValidateDomain 验证域名
func ValidateDomain(domain string) error {
	if domain == "" || len(domain) > MaxDomainLength {
		return ErrInvalidDomain
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}

	// 至少包含一个点，且每个标签不超过63字符
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return ErrInvalidDomain
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return ErrInvalidDomain
		}
	}
	return nil
}

// NormalizeDomain 规范化域名（去空白、小写、去掉末尾的点）
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// NormalizeAddress 规范化邮箱地址，去掉尖括号并统一小写
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.Trim(address, "<>")
	return strings.ToLower(address)
}

// BuildAddress 拼接规范化的邮箱地址
func BuildAddress(localPart, domain string) string {
	return strings.ToLower(localPart) + "@" + NormalizeDomain(domain)
}

// SplitAddress 拆分邮箱地址为本地部分和域名
func SplitAddress(address string) (localPart, domain string, ok bool) {
	address = NormalizeAddress(address)
	idx := strings.LastIndex(address, "@")
	if idx <= 0 || idx == len(address)-1 {
		return "", "", false
	}
	return address[:idx], address[idx+1:], true
}
