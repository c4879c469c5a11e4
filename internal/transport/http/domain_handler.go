package httptransport

import (
	"github.com/gin-gonic/gin"

	"tempinbox/backend/internal/domain"
)

// AddCustomDomainRequest 绑定自定义域名请求
type AddCustomDomainRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// CustomDomainResponse 自定义域名及其验证记录
type CustomDomainResponse struct {
	domain.CustomDomain
	TXTRecord string `json:"txtRecord"`
}

func toCustomDomainResponse(d *domain.CustomDomain) CustomDomainResponse {
	return CustomDomainResponse{CustomDomain: *d, TXTRecord: d.VerifyRecord()}
}

// listDomains godoc
// @Summary 获取可用域名
// @Description 共享域名池加上当前用户已验证的自定义域名
// @Tags Domains
// @Produce json
// @Success 200 {object} Response{data=[]string}
// @Router /v1/domains [get]
func (h *Handler) listDomains(c *gin.Context) {
	identity, plan, ok := h.caller(c)
	if !ok {
		return
	}

	domains, err := h.domains.ListAvailableDomains(c.Request.Context(), identity, plan)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if domains == nil {
		domains = []string{}
	}
	Success(c, domains)
}

// userIdentity 自定义域名只对登录用户开放
func (h *Handler) userIdentity(c *gin.Context) (domain.Identity, bool) {
	identity, ok := h.identity(c)
	if !ok {
		return identity, false
	}
	if !identity.IsUser() {
		Forbidden(c, MsgUserOnly)
		return identity, false
	}
	return identity, true
}

// addCustomDomain godoc
// @Summary 绑定自定义域名
// @Description 付费套餐用户绑定域名，返回需要添加的 DNS TXT 记录
// @Tags User Domains
// @Accept json
// @Produce json
// @Param request body AddCustomDomainRequest true "域名"
// @Success 201 {object} Response{data=CustomDomainResponse}
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 409 {object} Response
// @Security BearerAuth
// @Router /v1/user/domains [post]
func (h *Handler) addCustomDomain(c *gin.Context) {
	identity, plan, ok := h.caller(c)
	if !ok {
		return
	}
	if !identity.IsUser() {
		Forbidden(c, MsgUserOnly)
		return
	}

	var req AddCustomDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	custom, err := h.domains.AddCustomDomain(c.Request.Context(), identity, plan, req.Domain)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Created(c, toCustomDomainResponse(custom))
}

// listCustomDomains godoc
// @Summary 列出自定义域名
// @Tags User Domains
// @Produce json
// @Success 200 {object} Response{data=[]CustomDomainResponse}
// @Security BearerAuth
// @Router /v1/user/domains [get]
func (h *Handler) listCustomDomains(c *gin.Context) {
	identity, ok := h.userIdentity(c)
	if !ok {
		return
	}

	domains, err := h.domains.ListCustomDomains(c.Request.Context(), identity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]CustomDomainResponse, 0, len(domains))
	for i := range domains {
		items = append(items, toCustomDomainResponse(&domains[i]))
	}
	Success(c, items)
}

// verifyCustomDomain godoc
// @Summary 验证自定义域名
// @Description 查询 DNS TXT 记录，匹配后域名加入可用列表
// @Tags User Domains
// @Produce json
// @Param id path string true "域名ID"
// @Success 200 {object} Response{data=CustomDomainResponse}
// @Failure 404 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /v1/user/domains/{id}/verify [post]
func (h *Handler) verifyCustomDomain(c *gin.Context) {
	identity, ok := h.userIdentity(c)
	if !ok {
		return
	}

	custom, err := h.domains.VerifyCustomDomain(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, toCustomDomainResponse(custom))
}

// deleteCustomDomain godoc
// @Summary 删除自定义域名
// @Tags User Domains
// @Param id path string true "域名ID"
// @Success 204
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /v1/user/domains/{id} [delete]
func (h *Handler) deleteCustomDomain(c *gin.Context) {
	identity, ok := h.userIdentity(c)
	if !ok {
		return
	}

	if err := h.domains.DeleteCustomDomain(c.Request.Context(), identity, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	NoContent(c)
}
