package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/service"
)

// InboundAttachment 入站 webhook 中的附件，content 为 base64
type InboundAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

// InboundMailRequest 收信服务推送的一封邮件
type InboundMailRequest struct {
	MessageID   string              `json:"messageId"`
	To          string              `json:"to" binding:"required"`
	From        string              `json:"from"`
	Subject     string              `json:"subject"`
	TextBody    string              `json:"textBody"`
	HTMLBody    string              `json:"htmlBody"`
	ReceivedAt  *time.Time          `json:"receivedAt"`
	Attachments []InboundAttachment `json:"attachments"`
}

// InboundMailResponse 入站处理结果
type InboundMailResponse struct {
	Outcome   string `json:"outcome"`
	MessageID string `json:"messageId,omitempty"`
}

// 邮箱已过期或不存在时的结果，对调用方来说仍是成功
const outcomeRejected = "rejected"

// SetPlanRequest 计费服务推送的用户套餐
type SetPlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// receiveInbound godoc
// @Summary 入站邮件 webhook
// @Description 收信服务推送邮件。已保存、套餐不保存、地址已过期或不存在均返回 202，同一 messageId 只保存一次
// @Tags Hooks
// @Accept json
// @Produce json
// @Param X-Webhook-Secret header string true "共享密钥"
// @Param request body InboundMailRequest true "邮件内容"
// @Success 202 {object} Response{data=InboundMailResponse}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Router /v1/hooks/inbound [post]
func (h *Handler) receiveInbound(c *gin.Context) {
	var req InboundMailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if _, _, ok := domain.SplitAddress(req.To); !ok {
		BadRequest(c, MsgInvalidAddress)
		return
	}

	in := service.InboundMessage{
		DeliveryID: req.MessageID,
		From:       req.From,
		To:         domain.NormalizeAddress(req.To),
		Subject:    req.Subject,
		Text:       req.TextBody,
		HTML:       req.HTMLBody,
	}
	if req.ReceivedAt != nil {
		in.ReceivedAt = req.ReceivedAt.UTC()
	}
	for _, att := range req.Attachments {
		in.Attachments = append(in.Attachments, domain.Attachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        int64(len(att.Content)),
			Content:     att.Content,
		})
	}

	delivery, err := h.messages.AppendMessage(c.Request.Context(), in.To, in)
	switch {
	case err == nil:
		resp := InboundMailResponse{Outcome: string(delivery.Outcome)}
		if delivery.Message != nil {
			resp.MessageID = delivery.Message.ID
		}
		Accepted(c, resp)
	case errors.Is(err, domain.ErrExpired), errors.Is(err, domain.ErrNotFound):
		// 地址失效不是投递失败，避免收信方无限重试
		h.log.Debug("inbound mail for dead address",
			zap.String("to", in.To),
			zap.Error(err))
		Accepted(c, InboundMailResponse{Outcome: outcomeRejected})
	default:
		h.respondError(c, err)
	}
}

// setUserPlan godoc
// @Summary 更新用户套餐
// @Description 计费服务推送用户的当前套餐，立即影响后续配额检查
// @Tags Hooks
// @Accept json
// @Produce json
// @Param X-Webhook-Secret header string true "共享密钥"
// @Param userId path string true "用户ID"
// @Param request body SetPlanRequest true "套餐"
// @Success 200 {object} Response{data=domain.UserPlan}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Router /v1/hooks/plans/{userId} [put]
func (h *Handler) setUserPlan(c *gin.Context) {
	var req SetPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	name, err := domain.ParsePlanName(req.Plan)
	if err != nil {
		h.respondError(c, service.ErrInvalidPlan)
		return
	}

	userPlan, err := h.plans.SetUserPlan(c.Request.Context(), c.Param("userId"), name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, userPlan)
}
