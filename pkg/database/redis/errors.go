// pkg/database/redis/errors.go
package redis

import "errors"

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("redis: config is nil")

	// ErrKeyNotFound 键不存在
	ErrKeyNotFound = errors.New("redis: key not found")
)
