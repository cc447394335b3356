// pkg/database/postgres/errors.go
package postgres

import "errors"

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("postgres: config is nil")

	// ErrNoRows 查询无结果
	ErrNoRows = errors.New("postgres: no rows in result set")
)
