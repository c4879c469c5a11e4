package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/middleware"
	"tempinbox/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	emails   *service.EmailService
	messages *service.MessageService
	quota    *service.QuotaTracker
	plans    *service.PlanService
	domains  *service.DomainService
	log      *zap.Logger
}

// caller 返回中间件解析出的身份及其套餐，失败时已写入响应
func (h *Handler) caller(c *gin.Context) (domain.Identity, domain.Plan, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return domain.Identity{}, domain.Plan{}, false
	}

	plan, err := h.plans.Resolve(c.Request.Context(), identity, middleware.TokenPlanFrom(c))
	if err != nil {
		h.respondError(c, err)
		return domain.Identity{}, domain.Plan{}, false
	}
	return identity, plan, true
}

// identity 只需要身份时使用
func (h *Handler) identity(c *gin.Context) (domain.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
	}
	return identity, ok
}

// addressParam 读取并规范化路径中的邮箱地址
func addressParam(c *gin.Context) (string, bool) {
	address := domain.NormalizeAddress(c.Param("address"))
	if _, _, ok := domain.SplitAddress(address); !ok {
		BadRequest(c, MsgInvalidAddress)
		return "", false
	}
	return address, true
}
