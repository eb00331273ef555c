package handlers

import (
	"ekko/internal/services"
	"ekko/pkg/response"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	OrganizationID uint   `json:"organization_id" binding:"required"`
	Username       string `json:"username" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required"`
	Name           string `json:"name" binding:"required"`
}

type AssignRoleRequest struct {
	RoleID         uint           `json:"role_id" binding:"required"`
	OrganizationID *uint          `json:"organization_id"`
	ExpiresAt      *time.Time     `json:"expires_at"`
	Conditions     datatypes.JSON `json:"conditions"`
	Metadata       datatypes.JSON `json:"metadata"`
}

type RevokeRoleRequest struct {
	RoleID         uint  `json:"role_id" binding:"required"`
	OrganizationID *uint `json:"organization_id"`
}

type CheckPermissionRequest struct {
	Permissions    []string `json:"permissions" binding:"required"`
	OrganizationID *uint    `json:"organization_id"`
	RequireAll     bool     `json:"require_all"`
}

type UserHandler struct {
	userService       *services.UserService
	assignmentService *services.AssignmentService
	authz             *services.AuthorizationService
}

func NewUserHandler(userService *services.UserService, assignmentService *services.AssignmentService, authz *services.AuthorizationService) *UserHandler {
	return &UserHandler{
		userService:       userService,
		assignmentService: assignmentService,
		authz:             authz,
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建用户
func (h *UserHandler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, err := h.userService.Create(req.OrganizationID, req.Username, req.Email, req.Password, req.Name)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "长度") || strings.Contains(errMsg, "格式") ||
			strings.Contains(errMsg, "已存在") || strings.Contains(errMsg, "不存在") {
			response.BadRequest(c, errMsg)
			return
		}
		response.ServerError(c, "创建失败")
		return
	}

	response.Success(c, user)
}

// GetByID 获取用户
func (h *UserHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	user, err := h.userService.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "用户不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, user)
}

// ========== 角色授权方法 ==========

// AssignRole 给用户授予角色
func (h *UserHandler) AssignRole(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	assignment, err := h.assignmentService.AssignRole(services.AssignRoleParams{
		UserID:         uint(userID),
		RoleID:         req.RoleID,
		OrganizationID: req.OrganizationID,
		AssignedBy:     c.GetUint("user_id"),
		ExpiresAt:      req.ExpiresAt,
		Conditions:     req.Conditions,
		Metadata:       req.Metadata,
	})
	if err != nil {
		if isAssignRoleParamError(err.Error()) {
			response.BadRequest(c, err.Error())
			return
		}
		response.ServerError(c, "授权失败")
		return
	}

	response.Success(c, assignment)
}

// RevokeRole 撤销用户的角色
func (h *UserHandler) RevokeRole(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req RevokeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	if err := h.assignmentService.RevokeRole(uint(userID), req.RoleID, req.OrganizationID); err != nil {
		if strings.Contains(err.Error(), "未找到") {
			response.NotFound(c, err.Error())
			return
		}
		response.ServerError(c, "撤销失败")
		return
	}

	response.SuccessWithMessage(c, "角色已撤销", nil)
}

// GetRoles 用户的生效角色
func (h *UserHandler) GetRoles(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	orgID, err := parseOrgID(c)
	if err != nil {
		response.BadRequest(c, "组织ID格式错误")
		return
	}

	roles, err := h.assignmentService.GetUserRoles(uint(userID), orgID)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, roles)
}

// GetPermissions 用户的有效权限（含继承）
func (h *UserHandler) GetPermissions(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	orgID, err := parseOrgID(c)
	if err != nil {
		response.BadRequest(c, "组织ID格式错误")
		return
	}

	permissions, err := h.authz.UserPermissions(uint(userID), orgID)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, permissions)
}

// ========== 授权判定方法 ==========

// CheckPermission 判定用户是否持有指定权限
func (h *UserHandler) CheckPermission(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req CheckPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	decision, err := h.authz.AuthorizeAll(uint(userID), req.OrganizationID, req.Permissions, req.RequireAll)
	if err != nil {
		response.ServerError(c, "权限检查失败")
		return
	}

	response.Success(c, decision)
}

// CheckRole 判定用户是否持有指定角色（继承链上命中也算）
func (h *UserHandler) CheckRole(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	roleName := c.Param("role")
	orgID, err := parseOrgID(c)
	if err != nil {
		response.BadRequest(c, "组织ID格式错误")
		return
	}

	hasRole, err := h.authz.HasRole(uint(userID), orgID, roleName)
	if err != nil {
		response.ServerError(c, "角色检查失败")
		return
	}

	response.Success(c, gin.H{
		"role":     roleName,
		"has_role": hasRole,
	})
}

// isAssignRoleParamError 授权失败中属于调用方参数问题的部分
// 子串必须与授权服务的错误文案保持同步，否则会错报为服务器错误
func isAssignRoleParamError(msg string) bool {
	for _, token := range []string{"不存在", "已持有", "停用", "过期时间", "人数已达上限"} {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

// parseOrgID 解析可选的org_id查询参数
func parseOrgID(c *gin.Context) (*uint, error) {
	orgIDStr := c.Query("org_id")
	if orgIDStr == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(orgIDStr, 10, 32)
	if err != nil {
		return nil, err
	}
	id := uint(parsed)
	return &id, nil
}
