package handlers

import (
	"ekko/internal/services"
	"ekko/pkg/pagination"
	"ekko/pkg/response"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreatePermissionRequest struct {
	Name        string         `json:"name" binding:"required"`
	DisplayName string         `json:"display_name"`
	Description string         `json:"description"`
	Category    string         `json:"category" binding:"required"`
	Resource    string         `json:"resource" binding:"required"`
	Action      string         `json:"action" binding:"required"`
	Conditions  datatypes.JSON `json:"conditions"`
}

type UpdatePermissionRequest struct {
	DisplayName string         `json:"display_name"`
	Description string         `json:"description"`
	Conditions  datatypes.JSON `json:"conditions"`
	IsActive    *bool          `json:"is_active"`
}

type PermissionHandler struct {
	service *services.PermissionService
}

func NewPermissionHandler(service *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{
		service: service,
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建权限
func (h *PermissionHandler) Create(c *gin.Context) {
	var req CreatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	permission, err := h.service.Create(req.Name, req.DisplayName, req.Description, req.Category, req.Resource, req.Action, req.Conditions)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "长度") || strings.Contains(errMsg, "只能") || errMsg == "权限名称已存在" {
			response.BadRequest(c, errMsg)
			return
		}
		response.ServerError(c, "创建失败")
		return
	}

	response.Success(c, permission)
}

// GetByID 获取权限
func (h *PermissionHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	permission, err := h.service.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "权限不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, permission)
}

// List 权限列表（支持分页和按类别筛选）
func (h *PermissionHandler) List(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	category := c.Query("category")
	activeOnly := c.Query("active_only") == "true"

	permissions, total, err := h.service.GetWithPage(category, activeOnly, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, permissions, pageInfo)
}

// Update 更新权限（名称和资源三元组不可变）
func (h *PermissionHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req UpdatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	permission, err := h.service.Update(uint(id), req.DisplayName, req.Description, req.Conditions, req.IsActive)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "权限不存在")
			return
		}
		response.ServerError(c, "更新失败")
		return
	}

	response.Success(c, permission)
}
