package httptransport

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/service"
)

// errorMapping 业务错误到 HTTP 状态码与中文消息
type errorMapping struct {
	target error
	status int
	msg    string
}

// 按顺序匹配，errors.Is 命中第一个即返回
var errorMappings = []errorMapping{
	{domain.ErrQuotaExceeded, http.StatusTooManyRequests, "活跃邮箱数量已达套餐上限"},
	{domain.ErrAddressConflict, http.StatusConflict, "该邮箱地址已被占用"},
	{domain.ErrInvalidLocalPart, http.StatusBadRequest, "邮箱前缀格式无效，只允许 3-30 位字母、数字、点、下划线和连字符"},
	{domain.ErrDomainNotAllowed, http.StatusBadRequest, "域名不在可用范围内"},
	{domain.ErrInvalidDomain, http.StatusBadRequest, "域名格式无效"},
	{domain.ErrAddressExhausted, http.StatusServiceUnavailable, "暂时无法分配邮箱地址，请稍后重试"},
	{domain.ErrNoDomainAvailable, http.StatusServiceUnavailable, "当前没有可用域名"},
	{domain.ErrExpired, http.StatusGone, "邮箱已过期"},
	{domain.ErrNotFound, http.StatusNotFound, "资源不存在"},
	{domain.ErrForbidden, http.StatusForbidden, "无权访问该资源"},
	{domain.ErrDomainExists, http.StatusConflict, "域名已被绑定"},
	{domain.ErrDomainVerifyFailed, http.StatusUnprocessableEntity, "域名验证失败，请检查DNS TXT记录"},
	{domain.ErrPlanNotEligible, http.StatusForbidden, "当前套餐不支持该功能"},
	{service.ErrInvalidPlan, http.StatusBadRequest, "套餐参数无效"},
}

// 通用错误消息
const (
	MsgInvalidRequest  = "请求参数格式错误"
	MsgAuthRequired    = "需要登录认证"
	MsgInternalError   = "服务器内部错误，请稍后重试"
	MsgInvalidAddress  = "邮箱地址格式无效"
	MsgMessageNotFound = "邮件不存在"
	MsgUserOnly        = "该功能仅对登录用户开放"
)

// quotaData 配额拒绝时的响应数据
type quotaData struct {
	Limit     int        `json:"limit"`
	ResetTime *time.Time `json:"resetTime"`
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}
	return MsgInternalError
}

// respondError 把业务错误写成统一响应，未知错误记录日志并返回 500
func (h *Handler) respondError(c *gin.Context, err error) {
	var quotaErr *domain.QuotaExceededError
	if errors.As(err, &quotaErr) {
		if quotaErr.ResetTime != nil {
			wait := time.Until(*quotaErr.ResetTime).Seconds()
			c.Header("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(wait)))))
		}
		ErrorWithData(c, http.StatusTooManyRequests, GetErrorMessage(err), quotaData{
			Limit:     quotaErr.Limit,
			ResetTime: quotaErr.ResetTime,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			Error(c, m.status, m.msg)
			return
		}
	}

	h.log.Error("request failed",
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()))
	InternalError(c, MsgInternalError)
}
