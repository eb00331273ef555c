package middleware

import (
	"ekko/internal/database"
	"ekko/internal/models"
	"ekko/internal/services"
	"ekko/pkg/jwt"
	"ekko/pkg/response"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 权限中间件
// 认证走JWT，授权走强制管道：认证 -> 组织 -> 时间窗口 -> IP白名单 -> [最低等级] -> 权限/角色
type AuthMiddleware struct {
	userService *services.UserService
	authz       *services.AuthorizationService
	jwtManager  *jwt.JWTManager
}

func NewAuthMiddleware() *AuthMiddleware {
	return &AuthMiddleware{
		userService: services.NewUserService(),
		authz:       services.NewAuthorizationService(),
		jwtManager:  jwt.GetJWTManager(), // 使用全局JWT管理器
	}
}

// RequireLogin 要求登录
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从Authorization头获取JWT token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.UnauthorizedWithCode(c, services.DenyAuthRequired, "请先登录")
			c.Abort()
			return
		}

		// 检查Bearer格式
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		// 提取token
		tokenString := authHeader[7:] // 去掉 "Bearer "

		// 验证token
		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		// 获取用户信息
		user, err := m.userService.GetByID(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "用户不存在")
			c.Abort()
			return
		}

		// 检查用户状态
		if !m.userService.IsActive(user) {
			response.Unauthorized(c, "用户已被禁用")
			c.Abort()
			return
		}

		// 将用户信息保存到上下文
		c.Set("user", user)
		c.Set("user_id", claims.UserID)
		c.Set("organization_id", claims.OrganizationID)
		c.Set("username", claims.Username)
		c.Set("claims", claims)

		c.Next()
	}
}

// RequirePermission 要求持有全部指定权限（AND）
func (m *AuthMiddleware) RequirePermission(permissions ...string) gin.HandlerFunc {
	return m.guard(permissions, true, 0, "")
}

// RequireAnyPermission 要求持有任意一个指定权限（OR）
func (m *AuthMiddleware) RequireAnyPermission(permissions ...string) gin.HandlerFunc {
	return m.guard(permissions, false, 0, "")
}

// RequireRole 要求持有指定角色（继承链上命中也算）
func (m *AuthMiddleware) RequireRole(roleName string) gin.HandlerFunc {
	return m.guard(nil, true, 0, roleName)
}

// RequireMinLevel 要求有效角色等级不低于指定值
func (m *AuthMiddleware) RequireMinLevel(level int) gin.HandlerFunc {
	return m.guard(nil, true, level, "")
}

// guard 构建并运行强制管道
func (m *AuthMiddleware) guard(permissions []string, requireAll bool, minLevel int, roleName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := m.buildGuardContext(c, permissions, requireAll)
		if err != nil {
			response.ServerError(c, "权限检查失败")
			c.Abort()
			return
		}

		stages := []services.GuardStage{
			services.AuthenticationStage(),
			services.OrganizationStage(),
			services.TimeWindowStage(),
			services.IPWhitelistStage(),
		}
		if minLevel > 0 {
			stages = append(stages, services.MinimumLevelStage(minLevel))
		}
		stages = append(stages, services.PermissionStage(func(gc *services.GuardContext) (*services.Decision, error) {
			return m.authz.AuthorizeAll(gc.UserID, gc.TargetOrgID, gc.RequiredPermissions, gc.RequireAll)
		}))
		if roleName != "" {
			stages = append(stages, services.RoleStage(roleName, func(gc *services.GuardContext) (bool, error) {
				return m.authz.HasRole(gc.UserID, gc.TargetOrgID, roleName)
			}))
		}

		pipeline := services.NewGuardPipeline(database.GetAuditSink(), stages...)
		denial, err := pipeline.Run(ctx)
		if err != nil {
			response.ServerError(c, "权限检查失败")
			c.Abort()
			return
		}
		if denial != nil {
			response.ForbiddenWithCode(c, denial.Code, denial.Reason)
			c.Abort()
			return
		}

		if ctx.Decision != nil {
			c.Set("decision", ctx.Decision)
		}
		c.Next()
	}
}

// buildGuardContext 从请求上下文组装管道输入
func (m *AuthMiddleware) buildGuardContext(c *gin.Context, permissions []string, requireAll bool) (*services.GuardContext, error) {
	ctx := &services.GuardContext{
		ClientIP:            c.ClientIP(),
		Now:                 time.Now(),
		Operation:           c.Request.Method + " " + c.FullPath(),
		RequiredPermissions: permissions,
		RequireAll:          requireAll,
	}

	userID, exists := c.Get("user_id")
	if !exists {
		// 未经RequireLogin的请求直接判为未认证，由认证阶段产出拒绝
		return ctx, nil
	}
	ctx.Authenticated = true
	ctx.UserID = userID.(uint)
	ctx.Username = c.GetString("username")

	if user, ok := c.Get("user"); ok {
		orgID := user.(*models.User).OrganizationID
		ctx.ActorOrgID = &orgID
	}

	// 目标组织：URL参数或查询参数，缺省为操作者组织
	ctx.TargetOrgID = ctx.ActorOrgID
	targetStr := c.Param("org_id")
	if targetStr == "" {
		targetStr = c.Query("org_id")
	}
	if targetStr != "" {
		target, err := strconv.ParseUint(targetStr, 10, 32)
		if err == nil {
			targetID := uint(target)
			ctx.TargetOrgID = &targetID
		}
	}

	superAdmin, err := m.authz.IsSuperAdmin(ctx.UserID)
	if err != nil {
		return nil, err
	}
	ctx.SuperAdmin = superAdmin
	if superAdmin {
		return ctx, nil
	}

	roles, err := m.authz.ActiveRoles(ctx.UserID, ctx.TargetOrgID)
	if err != nil {
		return nil, err
	}
	ctx.Roles = roles

	level, err := m.authz.EffectiveLevel(ctx.UserID, ctx.TargetOrgID)
	if err != nil {
		return nil, err
	}
	ctx.EffectiveLevel = level

	return ctx, nil
}
