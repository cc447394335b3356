// app/tracker/internal/presence/presence.go
package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lk2023060901/couriersync/pkg/database/redis"
	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/realtime"
)

const (
	userKeyPrefix = "presence:user:"
	activeSetKey  = "presence:active"
)

// Config 在线状态配置
type Config struct {
	// TTL 心跳过期时间，超过未刷新即视为离线
	TTL time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl"`

	// SweepSpec 过期清理的 cron 表达式
	SweepSpec string `mapstructure:"sweep_spec" json:"sweep_spec" yaml:"sweep_spec"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		TTL:       30 * time.Second,
		SweepSpec: "@every 1m",
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.SweepSpec == "" {
		c.SweepSpec = def.SweepSpec
	}
	return nil
}

// Store 基于 Redis 的在线状态存储
type Store struct {
	rdb    *redis.Client
	cfg    *Config
	logger logger.Logger
}

// NewStore 创建在线状态存储
func NewStore(rdb *redis.Client, cfg *Config, l logger.Logger) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()

	return &Store{
		rdb:    rdb,
		cfg:    cfg,
		logger: l.Named("presence"),
	}
}

func userKey(userID string) string {
	return userKeyPrefix + userID
}

// MarkOnline 标记用户上线
func (s *Store) MarkOnline(ctx context.Context, userID string, role realtime.Role) error {
	now := time.Now()
	if err := s.rdb.HSet(ctx, userKey(userID),
		"role", string(role),
		"last_seen", strconv.FormatInt(now.Unix(), 10),
	); err != nil {
		return fmt.Errorf("failed to mark online: %w", err)
	}
	if err := s.rdb.Expire(ctx, userKey(userID), s.cfg.TTL); err != nil {
		return err
	}
	return s.rdb.ZAdd(ctx, activeSetKey, float64(now.Unix()), userID)
}

// Heartbeat 刷新用户心跳
func (s *Store) Heartbeat(ctx context.Context, userID string) error {
	now := time.Now()
	if err := s.rdb.HSet(ctx, userKey(userID),
		"last_seen", strconv.FormatInt(now.Unix(), 10),
	); err != nil {
		return err
	}
	if err := s.rdb.Expire(ctx, userKey(userID), s.cfg.TTL); err != nil {
		return err
	}
	return s.rdb.ZAdd(ctx, activeSetKey, float64(now.Unix()), userID)
}

// UpdateLocation 记录配送员最近一次上报的位置
func (s *Store) UpdateLocation(ctx context.Context, userID string, loc realtime.LatLng) error {
	return s.rdb.HSet(ctx, userKey(userID),
		"lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64),
		"lng", strconv.FormatFloat(loc.Lng, 'f', -1, 64),
	)
}

// MarkOffline 标记用户下线
func (s *Store) MarkOffline(ctx context.Context, userID string) error {
	if err := s.rdb.ZRem(ctx, activeSetKey, userID); err != nil {
		return err
	}
	return s.rdb.Del(ctx, userKey(userID))
}

// Online 查询用户是否在线
func (s *Store) Online(ctx context.Context, userID string) (bool, error) {
	fields, err := s.rdb.HGetAll(ctx, userKey(userID))
	if err != nil {
		return false, err
	}
	return len(fields) > 0, nil
}

// ActiveUsers 返回当前在线用户 ID 列表
func (s *Store) ActiveUsers(ctx context.Context) ([]string, error) {
	min := strconv.FormatInt(time.Now().Add(-s.cfg.TTL).Unix(), 10)
	return s.rdb.ZRangeByScore(ctx, activeSetKey, min, "+inf")
}

// Sweep 清除心跳过期的用户，返回清除数量
// 哈希键靠 Redis TTL 自行过期，这里只回收有序集合里的陈旧成员
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	max := strconv.FormatInt(time.Now().Add(-s.cfg.TTL).Unix(), 10)
	removed, err := s.rdb.ZRemRangeByScore(ctx, activeSetKey, "-inf", max)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep presence: %w", err)
	}
	if removed > 0 {
		s.logger.Info("swept stale presence entries", "removed", removed)
	}
	return removed, nil
}
