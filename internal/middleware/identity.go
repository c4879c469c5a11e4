package middleware

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempinbox/backend/internal/auth/jwt"
	"tempinbox/backend/internal/domain"
)

const (
	// HeaderSessionToken 匿名会话令牌请求头
	HeaderSessionToken = "X-Session-Token"

	contextIdentity  = "identity"
	contextTokenPlan = "tokenPlan"
)

// 会话令牌由客户端生成，限制字符集与长度
var sessionTokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)

// TokenVerifier 校验身份令牌
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// IdentityResolver 从请求中解析配额身份
//
// 优先使用 Authorization: Bearer 身份令牌，其次是 X-Session-Token 匿名会话。
// 浏览器 websocket 无法设置请求头，因此也接受 access_token 与 session 查询参数。
type IdentityResolver struct {
	verifier TokenVerifier
	log      *zap.Logger
}

// NewIdentityResolver 创建身份解析中间件
func NewIdentityResolver(verifier TokenVerifier, log *zap.Logger) *IdentityResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityResolver{verifier: verifier, log: log}
}

// Require 要求请求携带身份
func (r *IdentityResolver) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			claims, err := r.verifier.Verify(token)
			if err != nil {
				r.log.Debug("identity token rejected",
					zap.Error(err),
					zap.String("ip", c.ClientIP()))
				msg := "无效的身份令牌"
				if errors.Is(err, jwt.ErrExpiredToken) {
					msg = "身份令牌已过期"
				}
				abort(c, http.StatusUnauthorized, msg)
				return
			}
			c.Set(contextIdentity, domain.UserIdentity(claims.UserID()))
			c.Set(contextTokenPlan, domain.PlanName(claims.Plan))
			c.Next()
			return
		}

		session := c.GetHeader(HeaderSessionToken)
		if session == "" {
			session = c.Query("session")
		}
		if session == "" {
			abort(c, http.StatusUnauthorized, "需要身份令牌或会话令牌")
			return
		}
		if !sessionTokenRegex.MatchString(session) {
			abort(c, http.StatusBadRequest, "会话令牌格式无效")
			return
		}

		c.Set(contextIdentity, domain.AnonymousIdentity(session))
		c.Next()
	}
}

// IdentityFrom 返回中间件解析出的身份
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	value, ok := c.Get(contextIdentity)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

// TokenPlanFrom 返回身份令牌中声明的套餐，匿名会话为空
func TokenPlanFrom(c *gin.Context) domain.PlanName {
	if value, ok := c.Get(contextTokenPlan); ok {
		if plan, ok := value.(domain.PlanName); ok {
			return plan
		}
	}
	return ""
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("access_token")
}
