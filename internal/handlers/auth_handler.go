package handlers

import (
	"strings"
	"time"

	"ekko/internal/services"
	"ekko/pkg/jwt"
	"ekko/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService *services.UserService
	authz       *services.AuthorizationService
	jwtManager  *jwt.JWTManager
}

func NewAuthHandler(userService *services.UserService, authz *services.AuthorizationService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authz:       authz,
		jwtManager:  jwt.GetJWTManager(), // 使用全局JWT管理器
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expires_at"`
	User      UserInfo `json:"user"`
}

type UserInfo struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	OrganizationID uint   `json:"organization_id"`
	SuperAdmin     bool   `json:"super_admin"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	// 验证凭证（成功后刷新最后登录时间）
	user, err := h.userService.VerifyLogin(req.Username, req.Password)
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}

	// 生成Token
	token, err := h.jwtManager.GenerateToken(user.ID, user.OrganizationID, user.Username)
	if err != nil {
		response.ServerError(c, "生成Token失败")
		return
	}

	superAdmin, err := h.authz.IsSuperAdmin(user.ID)
	if err != nil {
		response.ServerError(c, "权限查询失败")
		return
	}

	// 计算过期时间
	expiresAt := time.Now().Add(h.jwtManager.GetTokenDuration()).Unix()

	resp := LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User: UserInfo{
			ID:             user.ID,
			Username:       user.Username,
			Email:          user.Email,
			Name:           user.Name,
			OrganizationID: user.OrganizationID,
			SuperAdmin:     superAdmin,
		},
	}

	response.Success(c, resp)
}

// RefreshToken 刷新Token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		response.Unauthorized(c, "认证头格式错误")
		return
	}

	newToken, err := h.jwtManager.RefreshToken(authHeader[7:])
	if err != nil {
		response.Unauthorized(c, "Token无效或已过期")
		return
	}

	expiresAt := time.Now().Add(h.jwtManager.GetTokenDuration()).Unix()
	response.Success(c, gin.H{
		"token":      newToken,
		"expires_at": expiresAt,
	})
}

// Me 获取当前用户信息（含有效权限）
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetUint("user_id")
	user, err := h.userService.GetByID(userID)
	if err != nil {
		response.NotFound(c, "用户不存在")
		return
	}

	orgID := user.OrganizationID
	superAdmin, err := h.authz.IsSuperAdmin(userID)
	if err != nil {
		response.ServerError(c, "权限查询失败")
		return
	}

	permissions, err := h.authz.UserPermissions(userID, &orgID)
	if err != nil {
		response.ServerError(c, "权限查询失败")
		return
	}

	level, err := h.authz.EffectiveLevel(userID, &orgID)
	if err != nil {
		response.ServerError(c, "权限查询失败")
		return
	}

	names := make([]string, 0, len(permissions))
	for _, perm := range permissions {
		names = append(names, perm.Name)
	}

	response.Success(c, gin.H{
		"user": UserInfo{
			ID:             user.ID,
			Username:       user.Username,
			Email:          user.Email,
			Name:           user.Name,
			OrganizationID: user.OrganizationID,
			SuperAdmin:     superAdmin,
		},
		"permissions":     names,
		"effective_level": level,
	})
}
