package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"golang.org/x/sync/errgroup"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/handlers/chatserver"
	appKafka "social-go/internal/kafka"
	"social-go/internal/logging"
	"social-go/internal/metrics"
	"social-go/internal/realtime"
	appRedis "social-go/internal/redis"
	"social-go/internal/services"
	"social-go/internal/storage"
	"social-go/internal/websocket"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig(os.Getenv("SOCIAL_CONFIG"))
	if err != nil {
		slog.Error("无法加载配置", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("app", "chatserver")
	slog.SetDefault(logger)
	logger.Info("Chat 服务器配置加载成功", "version", cfg.AppVersion)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Chat 服务器异常退出", "error", err)
		os.Exit(1)
	}
	logger.Info("Chat 服务器已优雅关闭")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// 2. 初始化数据库连接 (表结构由 API 服务器迁移)
	db, err := storage.InitDB(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("无法初始化数据库: %w", err)
	}

	// 3. 实时通知: 没有 Redis 时只能看到本进程发送的消息
	feeds := realtime.NewHub(logger)
	var (
		blacklist auth.TokenBlacklist
		notifier  realtime.Notifier = feeds
		forwarder *realtime.RedisNotifier
	)
	if cfg.Redis.Enabled {
		client, err := appRedis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("无法连接到 Redis: %w", err)
		}
		defer client.Close()
		blacklist = appRedis.NewRedisTokenBlacklist(client)
		forwarder = realtime.NewRedisNotifier(client, logger)
		notifier = forwarder
	} else {
		logger.Warn("Redis 未启用: 看不到 API 服务器发送的消息")
	}

	// 4. Kafka 生产者 (可选), 活动事件由 API 服务器消费
	var producer appKafka.MessageProducer
	if cfg.Kafka.Enabled {
		p, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("无法创建 Kafka 生产者: %w", err)
		}
		defer p.Close()
		producer = p
	}

	// 5. Services
	userRepo := storage.NewGormUserRepository(db)
	friendRepo := storage.NewGormFriendRepository(db)
	convoRepo := storage.NewGormConversationRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)

	activityService := services.NewActivityService(userRepo, storage.NewGormActivityRepository(db), producer, cfg.Kafka.ActivityTopic, nil, time.Now, logger)
	userService := services.NewUserService(userRepo, friendRepo, logger)
	messageService := services.NewMessageService(db, userRepo, msgRepo, convoRepo, feeds, notifier, activityService, time.Now, logger)
	readTracker := services.NewReadTracker(msgRepo, notifier, logger)

	// 6. WebSocket 会话和处理器
	sessions := websocket.NewHub(logger)
	wsHandler := chatserver.NewWebSocketHandler(sessions, messageService, readTracker, userService, blacklist, cfg, logger)

	mux := http.NewServeMux()
	path := cfg.Server.WebSocketPath
	if path == "" {
		path = "/ws/chat"
	}
	path = strings.TrimSuffix(path, "/")
	mux.HandleFunc(path, wsHandler.ServeWS)
	mux.HandleFunc(path+"/", wsHandler.ServeWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, sessions.Count())
	})
	if cfg.Metrics.Enabled && cfg.Metrics.Path != "" {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// hijack 之后 WriteTimeout 不再生效, 连接由 pong 超时控制
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        handlers.ProxyHeaders(mux),
		ReadTimeout:    cfg.Server.ReadTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		feeds.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sessions.Run(gctx)
		return nil
	})
	if forwarder != nil {
		g.Go(func() error {
			if err := forwarder.Forward(gctx, feeds); err != nil {
				return fmt.Errorf("redis 通知转发失败: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Chat HTTP 服务器启动", "addr", srv.Addr, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("Chat 服务器启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Chat 服务器准备关闭...", "sessions", sessions.Count())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Shutdown 不会关闭已升级的连接, 它们由 sessions.Run 退出时取消
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
