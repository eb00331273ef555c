package router

import (
	"ekko/internal/handlers"
	"ekko/internal/middleware"
	"ekko/internal/models"
	"ekko/internal/services"
	"ekko/pkg/response"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter() *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 注册路由
	registerRoutes(router)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine) {

	auth := middleware.NewAuthMiddleware()
	authzService := services.NewAuthorizationService()

	// API路由组
	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// JWT认证路由（登录无需认证）
		authHandler := handlers.NewAuthHandler(services.NewUserService(), authzService)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.RefreshToken)
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
		}

		// 用户路由
		userHandler := handlers.NewUserHandler(services.NewUserService(), services.NewAssignmentService(), authzService)
		users := api.Group("/users")
		{
			users.POST("", auth.RequireLogin(), auth.RequirePermission("user:create"), userHandler.Create)
			users.GET("/:id", auth.RequireLogin(), auth.RequirePermission("user:read"), userHandler.GetByID)

			// 角色授权管理
			users.POST("/:id/roles", auth.RequireLogin(), auth.RequirePermission("user:manage"), userHandler.AssignRole)
			users.DELETE("/:id/roles", auth.RequireLogin(), auth.RequirePermission("user:manage"), userHandler.RevokeRole)
			users.GET("/:id/roles", auth.RequireLogin(), auth.RequirePermission("user:read"), userHandler.GetRoles)
			users.GET("/:id/permissions", auth.RequireLogin(), auth.RequirePermission("user:read"), userHandler.GetPermissions)

			// 授权判定
			users.POST("/:id/check-permission", auth.RequireLogin(), auth.RequirePermission("user:read"), userHandler.CheckPermission)
			users.GET("/:id/check-role/:role", auth.RequireLogin(), auth.RequirePermission("user:read"), userHandler.CheckRole)
		}

		// 组织路由（组织管理仅限super_admin）
		orgHandler := handlers.NewOrganizationHandler(services.NewOrganizationService())
		orgs := api.Group("/organizations")
		{
			orgs.POST("", auth.RequireLogin(), auth.RequireRole(models.RoleSuperAdmin), orgHandler.Create)
			orgs.GET("", auth.RequireLogin(), auth.RequirePermission("organization:read"), orgHandler.List)
			orgs.GET("/:id", auth.RequireLogin(), auth.RequirePermission("organization:read"), orgHandler.GetByID)
			orgs.PUT("/:id", auth.RequireLogin(), auth.RequireRole(models.RoleSuperAdmin), orgHandler.Update)
		}

		// 角色路由
		roleHandler := handlers.NewRoleHandler(services.NewRoleService())
		roles := api.Group("/roles")
		{
			roles.POST("", auth.RequireLogin(), auth.RequirePermission("role:create"), roleHandler.Create)
			roles.GET("", auth.RequireLogin(), auth.RequirePermission("role:read"), roleHandler.List)
			roles.GET("/:id", auth.RequireLogin(), auth.RequirePermission("role:read"), roleHandler.GetByID)
			roles.PUT("/:id", auth.RequireLogin(), auth.RequirePermission("role:update"), roleHandler.Update)
			roles.DELETE("/:id", auth.RequireLogin(), auth.RequirePermission("role:delete"), roleHandler.Delete)

			// 有效权限（沿继承链聚合）
			roles.GET("/:id/effective-permissions", auth.RequireLogin(), auth.RequirePermission("role:read"), roleHandler.EffectivePermissions)
		}

		// 权限目录路由（目录写操作额外要求角色等级50以上）
		permissionHandler := handlers.NewPermissionHandler(services.NewPermissionService())
		permissions := api.Group("/permissions")
		{
			permissions.POST("", auth.RequireLogin(), auth.RequireMinLevel(50), auth.RequirePermission("permission:create"), permissionHandler.Create)
			permissions.GET("", auth.RequireLogin(), auth.RequirePermission("permission:read"), permissionHandler.List)
			permissions.GET("/:id", auth.RequireLogin(), auth.RequirePermission("permission:read"), permissionHandler.GetByID)
			permissions.PUT("/:id", auth.RequireLogin(), auth.RequireMinLevel(50), auth.RequirePermission("permission:update"), permissionHandler.Update)
		}

		// 审计路由（仅限super_admin）
		auditHandler := handlers.NewAuditHandler()
		auditGroup := api.Group("/audit")
		{
			auditGroup.GET("/denials", auth.RequireLogin(), auth.RequireRole(models.RoleSuperAdmin), auditHandler.RecentDenials)
			auditGroup.GET("/denials/counters", auth.RequireLogin(), auth.RequireRole(models.RoleSuperAdmin), auditHandler.DenialCounters)
		}
	}
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "Ekko",
		"version":   "1.0.0",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
