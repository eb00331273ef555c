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

type CreateRoleRequest struct {
	OrganizationID *uint          `json:"organization_id"`
	Name           string         `json:"name" binding:"required"`
	DisplayName    string         `json:"display_name"`
	Description    string         `json:"description"`
	Level          int            `json:"level" binding:"required"`
	Type           string         `json:"type" binding:"required"`
	MaxUsers       *int           `json:"max_users"`
	Restrictions   datatypes.JSON `json:"restrictions"`
	PermissionIDs  []uint         `json:"permission_ids"`
	ParentIDs      []uint         `json:"parent_ids"`
}

type UpdateRoleRequest struct {
	DisplayName   *string        `json:"display_name"`
	Description   *string        `json:"description"`
	Level         *int           `json:"level"`
	MaxUsers      *int           `json:"max_users"`
	Restrictions  datatypes.JSON `json:"restrictions"`
	IsActive      *bool          `json:"is_active"`
	PermissionIDs []uint         `json:"permission_ids"`
	ParentIDs     []uint         `json:"parent_ids"`
}

type RoleHandler struct {
	service *services.RoleService
}

func NewRoleHandler(service *services.RoleService) *RoleHandler {
	return &RoleHandler{
		service: service,
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建角色
func (h *RoleHandler) Create(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	role, err := h.service.Create(services.CreateRoleParams{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		DisplayName:    req.DisplayName,
		Description:    req.Description,
		Level:          req.Level,
		Type:           req.Type,
		MaxUsers:       req.MaxUsers,
		Restrictions:   req.Restrictions,
		PermissionIDs:  req.PermissionIDs,
		ParentIDs:      req.ParentIDs,
	})
	if err != nil {
		if isRoleParamError(err.Error()) {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, "创建失败")
		return
	}

	response.Success(c, role)
}

// isRoleParamError 角色写操作失败中属于调用方参数问题的部分
// 子串必须与角色服务的错误文案保持同步，否则会错报为服务器错误
func isRoleParamError(msg string) bool {
	for _, token := range []string{
		"长度", "只能", "已存在", "不存在", "未知", "循环继承", "必须", "停用", "系统角色",
	} {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

// GetByID 获取角色（含权限和父角色）
func (h *RoleHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	role, err := h.service.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "角色不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, role)
}

// List 角色列表（组织角色 + 系统角色，支持分页）
func (h *RoleHandler) List(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	var orgID *uint
	if orgIDStr := c.Query("org_id"); orgIDStr != "" {
		parsed, err := strconv.ParseUint(orgIDStr, 10, 32)
		if err != nil {
			response.BadRequest(c, "组织ID格式错误")
			return
		}
		id := uint(parsed)
		orgID = &id
	}

	activeOnly := c.Query("active_only") == "true"

	roles, total, err := h.service.GetByOrganizationWithPage(orgID, activeOnly, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, roles, pageInfo)
}

// Update 更新角色
func (h *RoleHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	role, err := h.service.Update(uint(id), services.UpdateRoleParams{
		DisplayName:   req.DisplayName,
		Description:   req.Description,
		Level:         req.Level,
		MaxUsers:      req.MaxUsers,
		Restrictions:  req.Restrictions,
		IsActive:      req.IsActive,
		PermissionIDs: req.PermissionIDs,
		ParentIDs:     req.ParentIDs,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "角色不存在")
			return
		}

		if isRoleParamError(err.Error()) {
			response.BadRequest(c, err.Error())
			return
		}

		response.ServerError(c, "更新失败")
		return
	}

	response.Success(c, role)
}

// Delete 停用角色（软删除，既有授权立即失效）
func (h *RoleHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.service.Delete(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "角色不存在")
			return
		}
		if strings.Contains(err.Error(), "系统角色") {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, "删除失败")
		return
	}

	response.SuccessWithMessage(c, "角色已停用", nil)
}

// EffectivePermissions 角色的有效权限（沿继承链聚合）
func (h *RoleHandler) EffectivePermissions(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	permissions, level, err := h.service.EffectivePermissions(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "角色不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, gin.H{
		"permissions":     permissions,
		"effective_level": level,
	})
}
