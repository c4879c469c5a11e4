package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "tempinbox/backend/docs" // Swagger docs
	"tempinbox/backend/internal/auth"
	jwtpkg "tempinbox/backend/internal/auth/jwt"
	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/events"
	"tempinbox/backend/internal/health"
	"tempinbox/backend/internal/logger"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/pool"
	"tempinbox/backend/internal/reaper"
	"tempinbox/backend/internal/service"
	"tempinbox/backend/internal/smtp"
	"tempinbox/backend/internal/storage"
	"tempinbox/backend/internal/storage/hybrid"
	"tempinbox/backend/internal/storage/memory"
	"tempinbox/backend/internal/storage/redis"
	sqlstore "tempinbox/backend/internal/storage/sql"
	httptransport "tempinbox/backend/internal/transport/http"
	"tempinbox/backend/internal/websocket"
)

const version = "1.0.0"

// main 启动同时包含 HTTP API、SMTP 收信与过期清理的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(cfg.Log, "tempinbox")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting tempinbox server",
		zap.String("version", version),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Strings("shared_domains", cfg.Mailbox.SharedDomains),
	)

	// 初始化监控系统
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(log)

	// 初始化存储层
	store, closeStore, err := initializeStorage(cfg, healthChecker, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer closeStore()
	healthChecker.AddDependency("storage", store)

	// 事件总线在协程池中分发
	workers := pool.NewWorkerPool(8, 1024, log)
	bus := events.NewBus(workers, log)

	// 初始化服务层
	planService := service.NewPlanService(store, cfg.Plans, log)
	domainService := service.NewDomainService(store, cfg.Mailbox.SharedDomains, net.DefaultResolver, cfg.Mailbox.DomainCacheTTL, log)
	defer domainService.Close()

	emailService := service.NewEmailService(store, domainService, cfg.Mailbox, log)
	emailService.SetPublisher(bus)
	emailService.SetMetrics(metrics)

	messageService := service.NewMessageService(store, emailService, planService, log)
	messageService.SetPublisher(bus)
	messageService.SetMetrics(metrics)

	quotaTracker := service.NewQuotaTracker(emailService, metrics)

	// 身份令牌只做校验，签发由外部完成
	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	webhookSecret, err := auth.NewSecretVerifier(cfg.Webhook.SecretHash)
	if err != nil {
		log.Fatal("invalid webhook secret hash", zap.Error(err))
	}
	if !webhookSecret.Enabled() {
		log.Warn("webhook secret not configured, inbound and plan hooks are disabled")
	}

	// 创建 WebSocket Hub，订阅全部事件
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, emailService, metrics, log)
	bus.Subscribe(wsHub.HandleEvent)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		EmailService:   emailService,
		MessageService: messageService,
		QuotaTracker:   quotaTracker,
		PlanService:    planService,
		DomainService:  domainService,
		TokenVerifier:  jwtManager,
		WebhookSecret:  webhookSecret,
		WebSocketHub:   wsHub,
		Metrics:        metrics,
		Health:         healthChecker,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	// 创建 SMTP 服务器
	var smtpServer *gosmtp.Server
	if cfg.SMTP.Enabled {
		limiter := smtp.NewConnectionLimiter(200, cfg.SMTP.RatePerMinute)
		smtpBackend := smtp.NewBackend(domainService, emailService, messageService, limiter, metrics, log, smtp.Options{
			MaxMessageBytes: cfg.SMTP.MaxMessageBytes,
		})
		smtpServer = gosmtp.NewServer(smtpBackend)
		smtpServer.Addr = cfg.SMTP.BindAddr
		smtpServer.Domain = cfg.SMTP.Domain
		smtpServer.ReadTimeout = 30 * time.Second
		smtpServer.WriteTimeout = 30 * time.Second
		smtpServer.MaxMessageBytes = cfg.SMTP.MaxMessageBytes
		smtpServer.MaxRecipients = cfg.SMTP.MaxRecipients
	}

	expiredReaper := reaper.New(emailService, cfg.Mailbox.ReapInterval, metrics, log)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// 不绑定 groupCtx，关闭时由 workers.Stop() 排空队列
	workers.Start(context.Background())

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// SMTP 服务器 goroutine
	if smtpServer != nil {
		group.Go(func() error {
			log.Info("starting SMTP server",
				zap.String("address", cfg.SMTP.BindAddr),
				zap.String("domain", cfg.SMTP.Domain),
			)
			if err := smtpServer.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
				log.Error("SMTP server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// 过期邮箱清理 goroutine
	group.Go(func() error {
		return expiredReaper.Run(groupCtx)
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// 关闭 HTTP 服务器
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 关闭 SMTP 服务器
		if smtpServer != nil {
			if err := smtpServer.Close(); err != nil {
				log.Warn("SMTP server close warning", zap.Error(err))
			}
		}

		// 等待已提交的事件处理完成
		workers.Stop()

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择存储：内存、SQL，或 SQL + Redis 缓存
func initializeStorage(cfg *config.Config, checker *health.Checker, log *zap.Logger) (storage.Store, func(), error) {
	if !cfg.Database.UsesSQL() {
		log.Info("using memory storage (single instance only)")
		store := memory.NewStore()
		return store, func() { _ = store.Close() }, nil
	}

	log.Info("initializing database storage",
		zap.String("database_type", cfg.Database.Type),
		zap.String("redis_address", cfg.Redis.Address),
	)

	db, err := sqlstore.Open(&cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if !cfg.Redis.Enabled() {
		return db, func() { _ = db.Close() }, nil
	}

	client, err := redis.New(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	checker.AddDependency("redis", client)

	// 使用混合存储（SQL + Redis）
	store := hybrid.NewStore(db, redis.NewCache(client), log)
	closeAll := func() {
		_ = client.Close()
		_ = store.Close()
	}
	log.Info("hybrid storage initialized", zap.String("database_type", cfg.Database.Type))
	return store, closeAll, nil
}
