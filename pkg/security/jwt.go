// pkg/security/jwt.go
package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig JWT 配置
type JWTConfig struct {
	// 签名密钥（HS256 对称算法）
	SecretKey string `mapstructure:"secret_key" json:"secret_key" yaml:"secret_key"`

	// Token 过期时间（默认 24 小时）
	ExpiresIn time.Duration `mapstructure:"expires_in" json:"expires_in" yaml:"expires_in"`

	// 签发者
	Issuer string `mapstructure:"issuer" json:"issuer" yaml:"issuer"`

	// Token 前缀（默认 "Bearer "）
	TokenPrefix string `mapstructure:"token_prefix" json:"token_prefix" yaml:"token_prefix"`
}

// DefaultJWTConfig 返回默认 JWT 配置
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		ExpiresIn:   24 * time.Hour,
		Issuer:      "couriersync",
		TokenPrefix: "Bearer ",
	}
}

// Claims 会话 Claims，携带用户身份和角色
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// JWTManager JWT 管理器
type JWTManager struct {
	config *JWTConfig
}

// NewJWTManager 创建 JWT 管理器
func NewJWTManager(cfg *JWTConfig) (*JWTManager, error) {
	def := DefaultJWTConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.ExpiresIn <= 0 {
		cfg.ExpiresIn = def.ExpiresIn
	}
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.TokenPrefix == "" {
		cfg.TokenPrefix = def.TokenPrefix
	}
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}

	return &JWTManager{config: cfg}, nil
}

// GenerateToken 签发 Token
func (m *JWTManager) GenerateToken(userID, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.ExpiresIn)),
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// ValidateToken 验证 Token 并返回 Claims
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = m.stripPrefix(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedSigningMethod
		}
		return []byte(m.config.SecretKey), nil
	})
	if err != nil {
		return nil, wrapJWTError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// stripPrefix 去除 Token 前缀
func (m *JWTManager) stripPrefix(tokenString string) string {
	prefix := m.config.TokenPrefix
	if prefix != "" && strings.HasPrefix(tokenString, prefix) {
		return tokenString[len(prefix):]
	}
	return tokenString
}

// wrapJWTError 将 jwt 库错误映射为本包错误
func wrapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
