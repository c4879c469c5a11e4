package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"tempinbox/backend/internal/auth"
	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/health"
	"tempinbox/backend/internal/middleware"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/service"
	"tempinbox/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	EmailService   *service.EmailService
	MessageService *service.MessageService
	QuotaTracker   *service.QuotaTracker
	PlanService    *service.PlanService
	DomainService  *service.DomainService
	TokenVerifier  middleware.TokenVerifier
	WebhookSecret  *auth.SecretVerifier
	WebSocketHub   *websocket.Hub      // 可选
	Metrics        *monitoring.Metrics // 可选
	Health         *health.Checker     // 可选
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, log)
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		router.Use(monitor.HTTPMetrics())
	}

	// 入站 webhook 携带附件，全局限制取配置值
	router.Use(middleware.BodySizeLimit(deps.Config.Server.MaxBodyBytes))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderSessionToken},
		ExposeHeaders: []string{
			"Content-Length",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			break
		}
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		emails:   deps.EmailService,
		messages: deps.MessageService,
		quota:    deps.QuotaTracker,
		plans:    deps.PlanService,
		domains:  deps.DomainService,
		log:      log,
	}

	identity := middleware.NewIdentityResolver(deps.TokenVerifier, log).Require()
	webhookAuth := middleware.RequireWebhookSecret(deps.WebhookSecret, log)
	createLimit := middleware.NewIPRateLimiter("create_email", deps.Config.RateLimit.CreatePerMinute, deps.Config.RateLimit.Burst, deps.Metrics)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	router.GET("/health", handler.healthSummary(deps.Health))
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapH(deps.Health.LiveHandler()))
		router.GET("/health/ready", gin.WrapH(deps.Health.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Hook Routes（共享密钥） ==========
		hooks := v1.Group("/hooks", webhookAuth)
		{
			hooks.POST("/inbound", handler.receiveInbound)
			hooks.PUT("/plans/:userId", handler.setUserPlan)
		}

		// 以下路由都需要身份（身份令牌或匿名会话）
		authed := v1.Group("", identity)

		// ========== Email Routes ==========
		emails := authed.Group("/emails")
		{
			emails.POST("", createLimit.Middleware(), handler.createEmail)
			emails.GET("", handler.listEmails)
			emails.GET("/:address", handler.getEmail)
			emails.DELETE("/:address", handler.deleteEmail)
		}

		// ========== Inbox Routes ==========
		inbox := authed.Group("/inbox")
		{
			inbox.GET("/:address", handler.getInbox)
			inbox.POST("/:address/messages/:messageId/read", handler.markMessageRead)
			inbox.GET("/:address/messages/:messageId/attachments/:attachmentId", handler.downloadAttachment)
		}

		// ========== Domain Routes ==========
		authed.GET("/domains", handler.listDomains)
		userDomains := authed.Group("/user/domains")
		{
			userDomains.POST("", handler.addCustomDomain)
			userDomains.GET("", handler.listCustomDomains)
			userDomains.POST("/:id/verify", handler.verifyCustomDomain)
			userDomains.DELETE("/:id", handler.deleteCustomDomain)
		}

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			authed.GET("/ws", deps.WebSocketHub.Handle)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		NotFound(c, "接口不存在")
	})

	return router
}

// healthSummary 汇总依赖状态，任何依赖失败时返回 503
func (h *Handler) healthSummary(checker *health.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		results, healthy := checker.Check(c.Request.Context())
		status, code := "ok", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "checks": results})
	}
}
