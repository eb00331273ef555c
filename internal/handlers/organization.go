package handlers

import (
	"ekko/internal/services"
	"ekko/pkg/pagination"
	"ekko/pkg/response"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateOrganizationRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type UpdateOrganizationRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type OrganizationHandler struct {
	service *services.OrganizationService
}

func NewOrganizationHandler(service *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{
		service: service,
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建组织
func (h *OrganizationHandler) Create(c *gin.Context) {
	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	org, err := h.service.Create(req.Code, req.Name)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "长度") || strings.Contains(errMsg, "只能") || errMsg == "组织代码已存在" {
			response.BadRequest(c, errMsg)
			return
		}
		response.ServerError(c, "创建失败")
		return
	}

	response.Success(c, org)
}

// GetByID 获取组织
func (h *OrganizationHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	org, err := h.service.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "组织不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, org)
}

// List 组织列表（支持分页和按状态筛选）
func (h *OrganizationHandler) List(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)
	status := c.Query("status")

	orgs, total, err := h.service.GetWithPage(status, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, orgs, pageInfo)
}

// Update 更新组织
func (h *OrganizationHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	org, err := h.service.Update(uint(id), req.Name, req.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "组织不存在")
			return
		}
		errMsg := err.Error()
		if strings.Contains(errMsg, "长度") || strings.Contains(errMsg, "状态只能") {
			response.BadRequest(c, errMsg)
			return
		}
		response.ServerError(c, "更新失败")
		return
	}

	response.Success(c, org)
}
