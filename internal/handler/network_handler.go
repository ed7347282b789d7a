package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/riskhub-protocol/riskhub/internal/service"
	"github.com/riskhub-protocol/riskhub/pkg/apperrors"
)

// NetworkHandler 网络注册表管理处理器
type NetworkHandler struct {
	networkSvc *service.NetworkService
	credSvc    *service.CredentialService
}

// NewNetworkHandler 创建网络管理处理器
func NewNetworkHandler(networkSvc *service.NetworkService, credSvc *service.CredentialService) *NetworkHandler {
	return &NetworkHandler{networkSvc: networkSvc, credSvc: credSvc}
}

// Create 注册网络
// POST /admin/v1/networks
func (h *NetworkHandler) Create(c *gin.Context) {
	var req service.CreateNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, apperrors.Wrap(apperrors.ErrMalformedEvent, err))
		return
	}

	network, err := h.networkSvc.Create(c.Request.Context(), &req)
	if err != nil {
		Fail(c, err)
		return
	}

	Created(c, network)
}

// Update 更新网络可变字段
// PUT /admin/v1/networks/:id
func (h *NetworkHandler) Update(c *gin.Context) {
	var req service.UpdateNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, apperrors.Wrap(apperrors.ErrMalformedEvent, err))
		return
	}

	network, err := h.networkSvc.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, network)
}

// Get 查询单个网络
// GET /admin/v1/networks/:id
func (h *NetworkHandler) Get(c *gin.Context) {
	network, err := h.networkSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, network)
}

// List 列出所有网络
// GET /admin/v1/networks
func (h *NetworkHandler) List(c *gin.Context) {
	networks, err := h.networkSvc.List(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, networks)
}

// IssueCredential 为网络签发索引器凭证
// POST /admin/v1/networks/:id/credentials
func (h *NetworkHandler) IssueCredential(c *gin.Context) {
	cred, err := h.credSvc.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}

	Created(c, cred)
}
