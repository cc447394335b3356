package security

import "errors"

var (
	// ErrMissingSecretKey 缺少签名密钥
	ErrMissingSecretKey = errors.New("security: secret_key is required")

	// ErrMissingToken 缺少 Token
	ErrMissingToken = errors.New("security: missing token")

	// ErrInvalidToken 无效的 Token
	ErrInvalidToken = errors.New("security: invalid token")

	// ErrTokenExpired Token 已过期
	ErrTokenExpired = errors.New("security: token expired")

	// ErrUnexpectedSigningMethod 非预期的签名算法
	ErrUnexpectedSigningMethod = errors.New("security: unexpected signing method")
)
