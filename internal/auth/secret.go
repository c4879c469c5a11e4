// Package auth 提供身份令牌之外的共享密钥校验。
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrSecretDisabled 未配置共享密钥
var ErrSecretDisabled = errors.New("shared secret not configured")

// SecretVerifier 使用 bcrypt 哈希校验 webhook 共享密钥，配置中只保存哈希
type SecretVerifier struct {
	hash []byte
}

// NewSecretVerifier 创建校验器，hash 为空表示禁用
func NewSecretVerifier(hash string) (*SecretVerifier, error) {
	if hash == "" {
		return &SecretVerifier{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid bcrypt hash: %w", err)
	}
	return &SecretVerifier{hash: []byte(hash)}, nil
}

// Enabled 是否配置了共享密钥
func (v *SecretVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

// Verify 校验密钥
func (v *SecretVerifier) Verify(secret string) error {
	if !v.Enabled() {
		return ErrSecretDisabled
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(secret))
}

// HashSecret 生成共享密钥的 bcrypt 哈希
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
