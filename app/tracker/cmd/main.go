package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lk2023060901/couriersync/app/tracker/internal/firehose"
	"github.com/lk2023060901/couriersync/app/tracker/internal/handler"
	"github.com/lk2023060901/couriersync/app/tracker/internal/history"
	"github.com/lk2023060901/couriersync/app/tracker/internal/hub"
	"github.com/lk2023060901/couriersync/app/tracker/internal/metrics"
	"github.com/lk2023060901/couriersync/app/tracker/internal/presence"
	"github.com/lk2023060901/couriersync/pkg/app"
	"github.com/lk2023060901/couriersync/pkg/database/postgres"
	"github.com/lk2023060901/couriersync/pkg/database/redis"
	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/mq/kafka"
	"github.com/lk2023060901/couriersync/pkg/security"
	"github.com/lk2023060901/couriersync/pkg/web"
	webmetrics "github.com/lk2023060901/couriersync/pkg/web/metrics"
	"github.com/lk2023060901/couriersync/pkg/web/middleware"
)

// Config Tracker 服务配置
type Config struct {
	Log logger.Config `mapstructure:"log"`

	// Web 配置
	Web web.Config `mapstructure:"web"`

	// JWT 配置
	JWT security.JWTConfig `mapstructure:"jwt"`

	// Hub 广播协程池大小
	HubPoolSize int `mapstructure:"hub_pool_size"`

	// Redis 配置（可选，缺省时在线状态能力关闭）
	Redis *redis.Config `mapstructure:"redis"`

	// Presence 配置
	Presence presence.Config `mapstructure:"presence"`

	// Postgres 配置（可选，缺省时状态历史能力关闭）
	Postgres *postgres.Config `mapstructure:"postgres"`

	// Kafka 配置（可选，缺省时事件旁路关闭）
	Kafka      *kafka.Config `mapstructure:"kafka"`
	KafkaTopic string        `mapstructure:"kafka_topic"`
}

func main() {
	var cfg Config

	// 1. 加载配置
	if err := app.LoadConfig(&cfg); err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		return
	}

	// 2. 初始化日志
	l, err := logger.New(&cfg.Log)
	if err != nil {
		panic(err)
	}

	// 3. 初始化 JWT 管理器
	jwtMgr, err := security.NewJWTManager(&cfg.JWT)
	if err != nil {
		l.Error("failed to create jwt manager", "error", err)
		return
	}

	// 4. 创建应用
	application := app.NewBaseApp(
		app.WithName("tracker"),
		app.WithLogger(l),
	)

	// 5. 初始化 Hub
	h, err := hub.New(l, cfg.HubPoolSize)
	if err != nil {
		l.Error("failed to create hub", "error", err)
		return
	}
	application.AppendCloser(h)

	opts := handler.Options{}

	// 6. 可选：Redis 在线状态
	if cfg.Redis != nil {
		rdb, err := redis.NewClient(cfg.Redis)
		if err != nil {
			l.Error("failed to create redis client", "error", err)
			return
		}
		application.AppendCloser(rdb)

		store := presence.NewStore(rdb, &cfg.Presence, l)
		opts.Presence = store
		application.AppendServer(presence.NewSweeper(store, l))
	}

	// 7. 可选：PostgreSQL 状态历史
	if cfg.Postgres != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			cancel()
			l.Error("failed to create postgres client", "error", err)
			return
		}
		application.AppendCloser(db)

		recorder := history.NewRecorder(db, l)
		if err := recorder.EnsureSchema(ctx); err != nil {
			cancel()
			l.Error("failed to ensure schema", "error", err)
			return
		}
		cancel()
		opts.History = recorder
	}

	// 8. 可选：Kafka 事件旁路
	if cfg.Kafka != nil {
		topic := cfg.KafkaTopic
		if topic == "" {
			topic = "tracker.events"
		}
		producer, err := kafka.NewProducer(cfg.Kafka, topic)
		if err != nil {
			l.Error("failed to create kafka producer", "error", err)
			return
		}
		pub := firehose.NewPublisher(producer, l)
		opts.Firehose = pub
		application.AppendCloser(pub)
	}

	// 9. 初始化指标与 Web 服务
	metrics.Init(nil)
	webmetrics.InitMetrics(nil)

	srv := web.NewServer(&cfg.Web, l)
	srv.Router().Use(middleware.Metrics())
	srv.Router().GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.New(l, jwtMgr, h, opts).RegisterRoutes(srv.Router())
	application.AppendServer(srv)

	// 10. 运行
	if err := application.Run(); err != nil {
		l.Error("tracker exited with error", "error", err)
	}
}
