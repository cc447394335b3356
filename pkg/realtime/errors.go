// pkg/realtime/errors.go
package realtime

import "errors"

var (
	// 配置错误
	ErrInvalidURL = errors.New("realtime: invalid url")

	// 凭证错误
	ErrMissingCredentials = errors.New("realtime: user id and token are required")
	ErrInvalidRole        = errors.New("realtime: invalid role")
)
