// app/tracker/internal/history/history.go
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/couriersync/pkg/database/postgres"
	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/realtime"
)

// 包裹状态流转的合法取值
const (
	StatusPending   = "PENDING"
	StatusPickedUp  = "PICKED UP"
	StatusInTransit = "IN TRANSIT"
	StatusDelivered = "DELIVERED"
	StatusFailed    = "FAILED"
)

// ValidStatus 校验状态取值
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusPickedUp, StatusInTransit, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// Entry 一条状态流转记录
type Entry struct {
	ParcelID  string           `json:"parcel_id"`
	Status    string           `json:"status"`
	ActorID   string           `json:"actor_id"`
	Location  *realtime.LatLng `json:"location,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Recorder 把状态流转落到 PostgreSQL
type Recorder struct {
	db     *postgres.Client
	logger logger.Logger
}

// NewRecorder 创建记录器
func NewRecorder(db *postgres.Client, l logger.Logger) *Recorder {
	return &Recorder{
		db:     db,
		logger: l.Named("history"),
	}
}

// EnsureSchema 初始化表结构
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS parcel_status_history (
    id         BIGSERIAL PRIMARY KEY,
    parcel_id  TEXT NOT NULL,
    status     TEXT NOT NULL,
    actor_id   TEXT NOT NULL,
    lat        DOUBLE PRECISION,
    lng        DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_parcel_status_history_parcel
    ON parcel_status_history (parcel_id, created_at DESC);
`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Record 写入一条状态流转
func (r *Recorder) Record(ctx context.Context, e *Entry) error {
	var lat, lng *float64
	if e.Location != nil {
		lat, lng = &e.Location.Lat, &e.Location.Lng
	}

	_, err := r.db.Exec(ctx, `
INSERT INTO parcel_status_history (parcel_id, status, actor_id, lat, lng, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ParcelID, e.Status, e.ActorID, lat, lng, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}
	return nil
}

// Recent 返回包裹最近的状态流转，按时间倒序
func (r *Recorder) Recent(ctx context.Context, parcelID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
SELECT parcel_id, status, actor_id, lat, lng, created_at
FROM parcel_status_history
WHERE parcel_id = $1
ORDER BY created_at DESC
LIMIT $2`,
		parcelID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var lat, lng *float64
		if err := rows.Scan(&e.ParcelID, &e.Status, &e.ActorID, &lat, &lng, &e.CreatedAt); err != nil {
			return nil, err
		}
		if lat != nil && lng != nil {
			e.Location = &realtime.LatLng{Lat: *lat, Lng: *lng}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
