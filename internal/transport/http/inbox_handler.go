package httptransport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tempinbox/backend/internal/domain"
)

// InboxResponse 收件箱内容
type InboxResponse struct {
	Address   string           `json:"address"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Messages  []domain.Message `json:"messages"`
}

// MarkReadRequest 已读状态切换请求，省略时视为标记已读
type MarkReadRequest struct {
	Read *bool `json:"read"`
}

// getInbox godoc
// @Summary 获取收件箱
// @Description 返回邮箱中的邮件，最新在前；免费套餐不保存邮件，列表为空
// @Tags Inbox
// @Produce json
// @Param address path string true "邮箱地址"
// @Success 200 {object} Response{data=InboxResponse}
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 410 {object} Response
// @Router /v1/inbox/{address} [get]
func (h *Handler) getInbox(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	address, ok := addressParam(c)
	if !ok {
		return
	}

	email, messages, err := h.messages.Inbox(c.Request.Context(), address, identity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 如果没有邮件，返回空数组而不是 null
	if messages == nil {
		messages = []domain.Message{}
	}
	Success(c, InboxResponse{
		Address:   email.Address,
		ExpiresAt: email.ExpiresAt,
		Messages:  messages,
	})
}

// markMessageRead godoc
// @Summary 切换邮件已读状态
// @Tags Inbox
// @Accept json
// @Param address path string true "邮箱地址"
// @Param messageId path string true "邮件ID"
// @Param request body MarkReadRequest false "read 默认为 true"
// @Success 204
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 410 {object} Response
// @Router /v1/inbox/{address}/messages/{messageId}/read [post]
func (h *Handler) markMessageRead(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	address, ok := addressParam(c)
	if !ok {
		return
	}

	var req MarkReadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}
	read := true
	if req.Read != nil {
		read = *req.Read
	}

	if err := h.messages.MarkRead(c.Request.Context(), address, c.Param("messageId"), identity, read); err != nil {
		h.respondError(c, err)
		return
	}
	NoContent(c)
}

// downloadAttachment godoc
// @Summary 下载附件
// @Tags Inbox
// @Produce octet-stream
// @Param address path string true "邮箱地址"
// @Param messageId path string true "邮件ID"
// @Param attachmentId path string true "附件ID"
// @Success 200 {file} binary
// @Failure 403 {object} Response
// @Failure 404 {object} Response
// @Failure 410 {object} Response
// @Router /v1/inbox/{address}/messages/{messageId}/attachments/{attachmentId} [get]
func (h *Handler) downloadAttachment(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	address, ok := addressParam(c)
	if !ok {
		return
	}

	att, err := h.messages.GetAttachment(c.Request.Context(), address, c.Param("messageId"), c.Param("attachmentId"), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, contentType, att.Content)
}
