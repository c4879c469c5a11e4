package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempinbox/backend/internal/auth"
)

// HeaderWebhookSecret webhook 共享密钥请求头
const HeaderWebhookSecret = "X-Webhook-Secret"

// RequireWebhookSecret 校验收信方与计费方回调的共享密钥
func RequireWebhookSecret(verifier *auth.SecretVerifier, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if !verifier.Enabled() {
			abort(c, http.StatusServiceUnavailable, "webhook 未启用")
			return
		}

		secret := c.GetHeader(HeaderWebhookSecret)
		if secret == "" || verifier.Verify(secret) != nil {
			log.Warn("webhook secret rejected",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.FullPath()))
			abort(c, http.StatusUnauthorized, "webhook 密钥无效")
			return
		}
		c.Next()
	}
}
