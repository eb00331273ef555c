package services

import (
	"ekko/internal/database"
	"ekko/internal/models"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PermissionService struct {
	db *gorm.DB
}

func NewPermissionService() *PermissionService {
	return &PermissionService{
		db: database.GetDB(),
	}
}

// ========== 基础CRUD方法 ==========

// Create 创建权限
func (s *PermissionService) Create(name, displayName, description, category, resource, action string, conditions datatypes.JSON) (*models.Permission, error) {
	// 验证参数
	if err := s.ValidateCreateParams(name, category, resource, action); err != nil {
		return nil, err
	}

	// 检查权限名是否重复
	var count int64
	s.db.Model(&models.Permission{}).Where("name = ?", name).Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("权限名已存在")
	}

	permission := &models.Permission{
		Name:        name,
		DisplayName: displayName,
		Description: description,
		Category:    category,
		Resource:    resource,
		Action:      action,
		Conditions:  conditions,
		IsActive:    true,
	}

	err := s.db.Create(permission).Error
	return permission, err
}

// Update 更新权限（只允许调整展示信息、条件和启用状态，名称和三元组不可变）
func (s *PermissionService) Update(id uint, displayName, description string, conditions datatypes.JSON, isActive *bool) (*models.Permission, error) {
	var permission models.Permission
	err := s.db.First(&permission, id).Error
	if err != nil {
		return nil, err
	}

	if displayName != "" {
		permission.DisplayName = displayName
	}
	permission.Description = description
	if conditions != nil {
		permission.Conditions = conditions
	}
	if isActive != nil {
		// 软停用优先于物理删除，避免角色侧产生悬空引用
		permission.IsActive = *isActive
	}

	err = s.db.Save(&permission).Error
	return &permission, err
}

// GetByID 根据ID获取权限
func (s *PermissionService) GetByID(id uint) (*models.Permission, error) {
	var permission models.Permission
	err := s.db.First(&permission, id).Error
	return &permission, err
}

// GetByName 根据权限名获取权限
func (s *PermissionService) GetByName(name string) (*models.Permission, error) {
	var permission models.Permission
	err := s.db.Where("name = ?", name).First(&permission).Error
	return &permission, err
}

// GetWithPage 分页获取权限
func (s *PermissionService) GetWithPage(category string, activeOnly bool, page, pageSize int) ([]*models.Permission, int64, error) {
	var permissions []*models.Permission
	var total int64

	query := s.db.Model(&models.Permission{})

	// 按类别筛选
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	// 计算总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&permissions).Error
	if err != nil {
		return nil, 0, err
	}

	return permissions, total, nil
}

// ========== 验证方法 ==========

// ValidateCreateParams 验证创建权限的参数
func (s *PermissionService) ValidateCreateParams(name, category, resource, action string) error {
	if len(name) < 2 || len(name) > 100 {
		return fmt.Errorf("权限名长度必须在2-100个字符之间")
	}
	if !models.IsValidCategory(category) {
		return fmt.Errorf("权限类别必须是 system、organization、user、billing、analytics、support 或 api")
	}
	if len(resource) < 2 || len(resource) > 50 {
		return fmt.Errorf("资源标识长度必须在2-50个字符之间")
	}
	if !models.IsValidAction(action) {
		return fmt.Errorf("权限操作必须是 create、read、update、delete、manage 或 execute")
	}
	return nil
}
