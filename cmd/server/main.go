// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/jacl-coder/SkyGuard-Server/config"
	"github.com/jacl-coder/SkyGuard-Server/internal/game"
	"github.com/jacl-coder/SkyGuard-Server/internal/policy"
	"github.com/jacl-coder/SkyGuard-Server/internal/sim"
	"github.com/jacl-coder/SkyGuard-Server/internal/stats"
	"github.com/jacl-coder/SkyGuard-Server/pkg/db"
)

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	issueToken := flag.String("issue-token", "", "为指定智能体签发令牌后退出")
	flag.Parse()

	// 加载配置
	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal("加载配置失败", "err", err)
	}
	cfg := &config.GlobalConfig

	setupLogger(cfg.Server)

	if *issueToken != "" {
		token, err := game.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).IssueToken(*issueToken)
		if err != nil {
			log.Fatal("签发令牌失败", "err", err)
		}
		fmt.Println(token)
		return
	}

	opts := []game.ServerOption{}
	recorders := stats.MultiRecorder{}

	// 初始化数据库连接
	if cfg.Database.Enabled {
		if err := db.InitPostgres(); err != nil {
			log.Fatal("初始化PostgreSQL失败", "err", err)
		}
		defer db.Close()
		store := stats.NewPostgresStore(db.DB)
		recorders = append(recorders, store)
		opts = append(opts, game.WithEpisodeStore(store))
	}

	// 初始化Redis连接
	if cfg.Redis.Enabled {
		if err := db.InitRedis(context.Background()); err != nil {
			log.Fatal("初始化Redis失败", "err", err)
		}
		defer db.CloseRedis()
		lb := stats.NewRedisLeaderboard(db.RedisClient, cfg.Redis.LeaderboardKeep)
		recorders = append(recorders, lb)
		opts = append(opts, game.WithLeaderboard(lb))
	}

	if len(recorders) > 0 {
		opts = append(opts, game.WithRecorder(recorders))
	}

	if cfg.Policy.WeightsPath != "" {
		mlp, err := policy.LoadMLP(cfg.Policy.WeightsPath, sim.ObservationSize(cfg.Observation.MaxDrones), cfg.Policy.HiddenSize)
		if err != nil {
			log.Fatal("加载策略网络失败", "path", cfg.Policy.WeightsPath, "err", err)
		}
		opts = append(opts, game.WithPolicy(mlp))
		log.Info("实时模式使用策略网络", "path", cfg.Policy.WeightsPath)
	}

	server := game.NewGameServer(cfg, opts...)
	if err := server.Start(); err != nil {
		log.Fatal("启动游戏服务器失败", "err", err)
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("接收到关闭信号，正在关闭服务器...")
	if err := server.Stop(); err != nil {
		log.Error("关闭服务器失败", "err", err)
	}
	log.Info("服务器已安全关闭")
}

// setupLogger 按配置设置日志级别
func setupLogger(cfg config.ServerConfig) {
	log.SetReportTimestamp(true)
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn("未知日志级别，使用 info", "level", cfg.LogLevel)
		level = log.InfoLevel
	}
	if cfg.Debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}
