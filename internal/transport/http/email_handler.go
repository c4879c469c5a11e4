package httptransport

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/service"
)

// CreateEmailRequest 创建临时邮箱请求，字段均可省略
type CreateEmailRequest struct {
	LocalPart string `json:"localPart"`
	Domain    string `json:"domain"`
}

// EmailResponse 临时邮箱信息
type EmailResponse struct {
	Address   string          `json:"address"`
	Plan      domain.PlanName `json:"plan"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func toEmailResponse(email *domain.TemporaryEmail) EmailResponse {
	return EmailResponse{
		Address:   email.Address,
		Plan:      email.Plan,
		CreatedAt: email.CreatedAt,
		ExpiresAt: email.ExpiresAt,
	}
}

// createEmail godoc
// @Summary 创建临时邮箱
// @Description 为当前身份创建临时邮箱，前缀与域名可选；超出套餐配额时返回下一个名额的释放时间
// @Tags Emails
// @Accept json
// @Produce json
// @Param request body CreateEmailRequest false "可选的前缀与域名"
// @Success 201 {object} Response{data=EmailResponse}
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Failure 429 {object} Response
// @Failure 503 {object} Response
// @Security SessionToken
// @Security BearerAuth
// @Router /v1/emails [post]
func (h *Handler) createEmail(c *gin.Context) {
	identity, plan, ok := h.caller(c)
	if !ok {
		return
	}

	var req CreateEmailRequest
	// 空请求体等价于 {}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	decision, err := h.quota.CheckAllowed(c.Request.Context(), identity, plan)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !decision.Allowed {
		h.respondError(c, decision.Err())
		return
	}

	email, err := h.emails.Create(c.Request.Context(), service.CreateEmailInput{
		Owner:     identity,
		Plan:      plan,
		LocalPart: req.LocalPart,
		Domain:    req.Domain,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAddressConflict) && !errors.Is(err, domain.ErrInvalidLocalPart) {
			h.log.Warn("failed to create email",
				zap.Error(err),
				zap.String("plan", string(plan.Name)))
		}
		h.respondError(c, err)
		return
	}

	Created(c, toEmailResponse(email))
}

// listEmails godoc
// @Summary 列出活跃邮箱
// @Description 返回当前身份所有未过期的临时邮箱，按创建时间升序
// @Tags Emails
// @Produce json
// @Success 200 {object} Response{data=[]EmailResponse}
// @Failure 401 {object} Response
// @Router /v1/emails [get]
func (h *Handler) listEmails(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	emails, err := h.emails.ListActive(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]EmailResponse, 0, len(emails))
	for i := range emails {
		items = append(items, toEmailResponse(&emails[i]))
	}
	Success(c, items)
}

// getEmail godoc
// @Summary 获取邮箱
// @Tags Emails
// @Produce json
// @Param address path string true "邮箱地址"
// @Success 200 {object} Response{data=EmailResponse}
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 410 {object} Response
// @Router /v1/emails/{address} [get]
func (h *Handler) getEmail(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	address, ok := addressParam(c)
	if !ok {
		return
	}

	email, err := h.emails.GetOwned(c.Request.Context(), address, identity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, toEmailResponse(email))
}

// deleteEmail godoc
// @Summary 删除邮箱
// @Description 立即删除邮箱及其全部邮件，释放配额名额
// @Tags Emails
// @Param address path string true "邮箱地址"
// @Success 204
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Router /v1/emails/{address} [delete]
func (h *Handler) deleteEmail(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	address, ok := addressParam(c)
	if !ok {
		return
	}

	if err := h.emails.Delete(c.Request.Context(), address, identity); err != nil {
		h.respondError(c, err)
		return
	}
	NoContent(c)
}
