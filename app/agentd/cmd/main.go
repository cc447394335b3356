package main

import (
	"fmt"
	"time"

	"github.com/lk2023060901/couriersync/app/agentd/internal/position"
	"github.com/lk2023060901/couriersync/app/agentd/internal/reporter"
	"github.com/lk2023060901/couriersync/pkg/app"
	"github.com/lk2023060901/couriersync/pkg/logger"
	"github.com/lk2023060901/couriersync/pkg/realtime"
)

// Config Agentd 服务配置
type Config struct {
	Log logger.Config `mapstructure:"log"`

	// Realtime 实时会话配置
	Realtime realtime.Config `mapstructure:"realtime"`

	// Agent 身份
	AgentID string `mapstructure:"agent_id"`
	Token   string `mapstructure:"token"`

	// Parcels 要跟踪的包裹（配送单）列表
	Parcels []string `mapstructure:"parcels"`

	// Route 回放路径点
	Route          []realtime.LatLng `mapstructure:"route"`
	ReportInterval time.Duration     `mapstructure:"report_interval"`
	LoopRoute      bool              `mapstructure:"loop_route"`
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

	// 3. 建立实时会话
	session, err := realtime.NewSession(&cfg.Realtime, realtime.WithLogger(l))
	if err != nil {
		l.Error("failed to create session", "error", err)
		return
	}

	session.OnStateChange(func(old, new realtime.State) {
		l.Info("session state changed", "from", old, "to", new)
	})

	if err := session.Open(realtime.Credentials{
		UserID: cfg.AgentID,
		Role:   realtime.RoleAgent,
		Token:  cfg.Token,
	}); err != nil {
		l.Error("failed to open session", "error", err)
		return
	}

	// 4. 位置来源与上报器
	src := position.NewReplay(cfg.Route, cfg.ReportInterval, cfg.LoopRoute)
	rep := reporter.New(session, src, cfg.Parcels, l)

	// 5. 创建应用并运行
	application := app.NewBaseApp(
		app.WithName("agentd"),
		app.WithLogger(l),
	)
	application.AppendServer(rep)
	application.AppendCloser(closerFunc(func() error {
		session.Close()
		return nil
	}))

	if err := application.Run(); err != nil {
		l.Error("agentd exited with error", "error", err)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
