package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"social-go/internal/activitylog"
	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/handlers/apiserver"
	appKafka "social-go/internal/kafka"
	kafkahandlers "social-go/internal/kafka/handlers"
	"social-go/internal/logging"
	"social-go/internal/realtime"
	appRedis "social-go/internal/redis"
	"social-go/internal/services"
	"social-go/internal/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig(os.Getenv("SOCIAL_CONFIG"))
	if err != nil {
		slog.Error("无法加载配置", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("app", "apiserver")
	slog.SetDefault(logger)
	logger.Info("API 服务器配置加载成功", "version", cfg.AppVersion)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("API 服务器异常退出", "error", err)
		os.Exit(1)
	}
	logger.Info("API 服务器已成功关闭")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("无法初始化数据库: %w", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		return fmt.Errorf("数据库表迁移失败: %w", err)
	}

	// 3. Redis: token 黑名单和跨进程的会话变更通知
	hub := realtime.NewHub(logger)
	var (
		redisClient *goredis.Client
		blacklist   auth.TokenBlacklist
		notifier    realtime.Notifier
		forwarder   *realtime.RedisNotifier
	)
	if cfg.Redis.Enabled {
		redisClient, err = appRedis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("无法连接到 Redis: %w", err)
		}
		defer redisClient.Close()
		blacklist = appRedis.NewRedisTokenBlacklist(redisClient)
		forwarder = realtime.NewRedisNotifier(redisClient, logger)
		notifier = forwarder
		logger.Info("成功连接到 Redis", "addr", cfg.Redis.Addr)
	} else {
		blacklist = auth.NewMemoryBlacklist(nil)
		logger.Warn("Redis 未启用: token 黑名单和实时通知仅限本进程")
	}

	// 4. 本地活动日志
	logStore, closeLogStore, err := openActivityStore(cfg.ActivityLog, logger)
	if err != nil {
		return err
	}
	defer closeLogStore()
	localLog := activitylog.New(logStore, time.Now, logger)

	// 5. Kafka 生产者 (可选)
	var producer appKafka.MessageProducer
	if cfg.Kafka.Enabled {
		p, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("无法创建 Kafka 生产者: %w", err)
		}
		defer p.Close()
		producer = p
	}

	// 6. Repositories 和 Services
	userRepo := storage.NewGormUserRepository(db)
	friendRepo := storage.NewGormFriendRepository(db)
	convoRepo := storage.NewGormConversationRepository(db)
	msgRepo := storage.NewGormMessageRepository(db)
	eventRepo := storage.NewGormEventRepository(db)
	activityRepo := storage.NewGormActivityRepository(db)

	activityService := services.NewActivityService(userRepo, activityRepo, producer, cfg.Kafka.ActivityTopic, localLog, time.Now, logger)
	authService := services.NewAuthService(userRepo, blacklist, cfg.Auth, activityService, time.Now, logger)
	userService := services.NewUserService(userRepo, friendRepo, logger)
	friendService := services.NewFriendService(db, userRepo, friendRepo, activityService, time.Now, logger)
	eventService := services.NewEventService(db, userRepo, eventRepo, activityService, time.Now, logger)
	conversationService := services.NewConversationService(userRepo, convoRepo, time.Now, logger)
	messageService := services.NewMessageService(db, userRepo, msgRepo, convoRepo, hub, notifier, activityService, time.Now, logger)
	readTracker := services.NewReadTracker(msgRepo, notifierOrHub(notifier, hub), logger)
	adminService := services.NewAdminService(db, userRepo, userService, friendService, activityService, logger)

	// 7. Handlers
	h := apiserver.Handlers{
		Auth:         apiserver.NewAuthHandler(authService, logger),
		User:         apiserver.NewUserHandler(userService, eventService, logger),
		Friend:       apiserver.NewFriendHandler(friendService, logger),
		Event:        apiserver.NewEventHandler(eventService, logger),
		Conversation: apiserver.NewConversationHandler(conversationService, messageService, readTracker, logger),
		Activity:     apiserver.NewActivityHandler(activityService, logger),
		Admin:        apiserver.NewAdminHandler(adminService, localLog, logger),
		Health:       healthCheck(db, redisClient),
	}
	switch cfg.Storage.Type {
	case "local":
		storageService, err := storage.NewLocalStorageService(cfg.Storage)
		if err != nil {
			return fmt.Errorf("无法初始化本地存储服务: %w", err)
		}
		h.Upload = apiserver.NewUploadHandler(storageService, cfg.Storage, logger)
	case "", "none":
		logger.Warn("文件上传已禁用")
	default:
		return fmt.Errorf("不支持的存储类型: %s", cfg.Storage.Type)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port),
		Handler:      apiserver.NewRouter(cfg, h, blacklist, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if forwarder != nil {
		g.Go(func() error {
			if err := forwarder.Forward(gctx, hub); err != nil {
				return fmt.Errorf("redis 通知转发失败: %w", err)
			}
			return nil
		})
	}

	// 8. Kafka 消费者: 把活动事件写入数据库
	if cfg.Kafka.Enabled {
		consumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("无法创建活动 Kafka 消费者: %w", err)
		}
		defer consumer.Close()
		logic := kafkahandlers.NewActivityConsumerLogic(activityService, logger)
		g.Go(func() error {
			topics := []string{cfg.Kafka.ActivityTopic}
			if err := consumer.Consume(gctx, topics, cfg.Kafka.ConsumerGroup, logic.HandleActivity); err != nil {
				return fmt.Errorf("活动消费者错误: %w", err)
			}
			return nil
		})
	}

	if cfg.Reconcile.Interval > 0 {
		g.Go(func() error {
			reconcileLoop(gctx, friendService, cfg.Reconcile.Interval, logger)
			return nil
		})
	}

	// 9. 启动 HTTP 服务器并实现优雅关闭
	g.Go(func() error {
		logger.Info("API 服务器启动", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API 服务器启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("正在关闭 API 服务器...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// notifierOrHub returns the cross-process notifier when Redis is on.
func notifierOrHub(n realtime.Notifier, hub *realtime.Hub) realtime.Notifier {
	if n != nil {
		return n
	}
	return hub
}

// healthCheck pings the database and, when configured, Redis.
func healthCheck(db *gorm.DB, redisClient *goredis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}

// openActivityStore opens the badger-backed log store, or an in-memory one.
func openActivityStore(cfg config.ActivityLogConfig, logger *slog.Logger) (activitylog.Store, func(), error) {
	if cfg.InMemory {
		return activitylog.NewMemoryStore(), func() {}, nil
	}
	store, err := activitylog.OpenBadger(activitylog.BadgerConfig{Path: cfg.Path, Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("无法打开活动日志存储 '%s': %w", cfg.Path, err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Error("关闭活动日志存储失败", "error", err)
		}
	}, nil
}

// reconcileLoop periodically repairs one-sided friend links.
func reconcileLoop(ctx context.Context, friends services.FriendService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// 修复结果由 Reconcile 自己记录, 这里只处理失败
		report, err := friends.Reconcile(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Error("好友关系修复失败", "error", err, "repaired", report.Repaired, "pruned", report.Pruned)
		}
	}
}
