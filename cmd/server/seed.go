package main

import (
	"ekko/internal/database"
	"ekko/internal/models"
	"ekko/pkg/logger"
	"fmt"

	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	db := database.GetDB()

	// 1. 创建默认组织
	if err := createDefaultOrganization(db); err != nil {
		return fmt.Errorf("创建默认组织失败: %v", err)
	}

	// 2. 初始化权限目录
	if err := initializePermissions(db); err != nil {
		return fmt.Errorf("初始化权限失败: %v", err)
	}

	// 3. 创建系统角色
	if err := createSystemRoles(db); err != nil {
		return fmt.Errorf("创建系统角色失败: %v", err)
	}

	// 4. 创建默认管理员用户
	if err := createDefaultAdmin(db); err != nil {
		return fmt.Errorf("创建默认管理员失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// createDefaultOrganization 创建默认组织
func createDefaultOrganization(db *gorm.DB) error {
	var count int64
	db.Model(&models.Organization{}).Where("code = ?", "default").Count(&count)
	if count > 0 {
		logger.GetLogger().Info("默认组织已存在，跳过创建")
		return nil
	}

	org := &models.Organization{
		Name:   "默认组织",
		Code:   "default",
		Status: models.OrganizationStatusActive,
	}

	if err := db.Create(org).Error; err != nil {
		return err
	}

	logger.GetLogger().Info("默认组织创建成功")
	return nil
}

// initializePermissions 初始化权限目录
func initializePermissions(db *gorm.DB) error {
	defaultPermissions := []models.Permission{
		// 组织管理权限
		{Name: "organization:create", DisplayName: "创建组织", Category: models.CategoryOrganization, Resource: "organization", Action: models.ActionCreate, Description: "创建新组织", IsActive: true},
		{Name: "organization:read", DisplayName: "查看组织", Category: models.CategoryOrganization, Resource: "organization", Action: models.ActionRead, Description: "查看组织信息", IsActive: true},
		{Name: "organization:update", DisplayName: "更新组织", Category: models.CategoryOrganization, Resource: "organization", Action: models.ActionUpdate, Description: "更新组织信息", IsActive: true},

		// 用户管理权限
		{Name: "user:create", DisplayName: "创建用户", Category: models.CategoryUser, Resource: "user", Action: models.ActionCreate, Description: "创建新用户", IsActive: true},
		{Name: "user:read", DisplayName: "查看用户", Category: models.CategoryUser, Resource: "user", Action: models.ActionRead, Description: "查看用户信息", IsActive: true},
		{Name: "user:update", DisplayName: "更新用户", Category: models.CategoryUser, Resource: "user", Action: models.ActionUpdate, Description: "更新用户信息", IsActive: true},
		{Name: "user:delete", DisplayName: "删除用户", Category: models.CategoryUser, Resource: "user", Action: models.ActionDelete, Description: "删除用户", IsActive: true},
		{Name: "user:manage", DisplayName: "管理用户授权", Category: models.CategoryUser, Resource: "user", Action: models.ActionManage, Description: "给用户授予和撤销角色", IsActive: true},

		// 角色管理权限
		{Name: "role:create", DisplayName: "创建角色", Category: models.CategorySystem, Resource: "role", Action: models.ActionCreate, Description: "创建新角色", IsActive: true},
		{Name: "role:read", DisplayName: "查看角色", Category: models.CategorySystem, Resource: "role", Action: models.ActionRead, Description: "查看角色信息", IsActive: true},
		{Name: "role:update", DisplayName: "更新角色", Category: models.CategorySystem, Resource: "role", Action: models.ActionUpdate, Description: "更新角色信息", IsActive: true},
		{Name: "role:delete", DisplayName: "删除角色", Category: models.CategorySystem, Resource: "role", Action: models.ActionDelete, Description: "停用角色", IsActive: true},

		// 权限目录管理权限
		{Name: "permission:create", DisplayName: "创建权限", Category: models.CategorySystem, Resource: "permission", Action: models.ActionCreate, Description: "在权限目录中登记权限", IsActive: true},
		{Name: "permission:read", DisplayName: "查看权限", Category: models.CategorySystem, Resource: "permission", Action: models.ActionRead, Description: "查看权限目录", IsActive: true},
		{Name: "permission:update", DisplayName: "更新权限", Category: models.CategorySystem, Resource: "permission", Action: models.ActionUpdate, Description: "更新权限元数据", IsActive: true},
	}

	for _, perm := range defaultPermissions {
		var count int64
		db.Model(&models.Permission{}).Where("name = ?", perm.Name).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&perm).Error; err != nil {
			return err
		}
	}

	logger.GetLogger().Info("权限目录初始化完成")
	return nil
}

// createSystemRoles 创建系统角色
// super_admin 绕过一切检查；org_admin 继承 org_member 的读权限
func createSystemRoles(db *gorm.DB) error {
	var count int64
	db.Model(&models.Role{}).Where("name = ? AND organization_id IS NULL", models.RoleSuperAdmin).Count(&count)
	if count > 0 {
		logger.GetLogger().Info("系统角色已存在，跳过创建")
		return nil
	}

	superAdmin := &models.Role{
		Name:        models.RoleSuperAdmin,
		DisplayName: "超级管理员",
		Description: "全局超级管理员，绕过组织和权限检查",
		Level:       models.RoleLevelMax,
		Type:        models.RoleTypeSystem,
		IsActive:    true,
	}
	if err := db.Create(superAdmin).Error; err != nil {
		return err
	}

	// org_member：基础读权限
	var readPerms []models.Permission
	if err := db.Where("action = ?", models.ActionRead).Find(&readPerms).Error; err != nil {
		return err
	}
	orgMember := &models.Role{
		Name:        models.RoleOrgMember,
		DisplayName: "组织成员",
		Description: "组织内普通成员",
		Level:       10,
		Type:        models.RoleTypeSystem,
		IsActive:    true,
		Permissions: readPerms,
	}
	if err := db.Create(orgMember).Error; err != nil {
		return err
	}

	// org_admin：继承org_member，外加写权限
	var writePerms []models.Permission
	if err := db.Where("action IN ?", []string{
		models.ActionCreate, models.ActionUpdate, models.ActionDelete, models.ActionManage,
	}).Find(&writePerms).Error; err != nil {
		return err
	}
	orgAdmin := &models.Role{
		Name:        models.RoleOrgAdmin,
		DisplayName: "组织管理员",
		Description: "组织内管理员，继承组织成员的全部权限",
		Level:       50,
		Type:        models.RoleTypeSystem,
		IsActive:    true,
		Permissions: writePerms,
		Parents:     []*models.Role{orgMember},
	}
	if err := db.Create(orgAdmin).Error; err != nil {
		return err
	}

	logger.GetLogger().Info("系统角色创建成功")
	return nil
}

// createDefaultAdmin 创建默认管理员用户（持有全局super_admin授权）
func createDefaultAdmin(db *gorm.DB) error {
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count > 0 {
		logger.GetLogger().Info("默认管理员已存在，跳过创建")
		return nil
	}

	var org models.Organization
	if err := db.Where("code = ?", "default").First(&org).Error; err != nil {
		return err
	}

	admin := &models.User{
		OrganizationID: org.ID,
		Username:       "admin",
		Email:          "admin@ekko.local",
		Name:           "系统管理员",
		Status:         models.UserStatusActive,
	}
	if err := admin.SetPassword("Admin@123"); err != nil {
		return err
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}

	var superAdmin models.Role
	if err := db.Where("name = ? AND organization_id IS NULL", models.RoleSuperAdmin).First(&superAdmin).Error; err != nil {
		return err
	}

	// 全局授权：organization_id为NULL
	assignment := &models.RoleAssignment{
		UserID:     admin.ID,
		RoleID:     superAdmin.ID,
		AssignedBy: admin.ID,
		IsActive:   true,
	}
	if err := db.Create(assignment).Error; err != nil {
		return err
	}

	logger.GetLogger().Info("默认管理员创建成功 (admin / Admin@123)")
	return nil
}
