package services

import (
	"ekko/internal/database"
	"ekko/internal/models"
	"fmt"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RoleService struct {
	db       *gorm.DB
	resolver *RoleResolver
}

func NewRoleService() *RoleService {
	db := database.GetDB()
	return &RoleService{
		db:       db,
		resolver: NewRoleResolver(NewDBRoleFetch(db)),
	}
}

// CreateRoleParams 创建角色的参数
type CreateRoleParams struct {
	OrganizationID *uint
	Name           string
	DisplayName    string
	Description    string
	Level          int
	Type           string
	MaxUsers       *int
	Restrictions   datatypes.JSON
	PermissionIDs  []uint
	ParentIDs      []uint
}

// ========== 基础CRUD方法 ==========

// Create 创建角色
func (s *RoleService) Create(params CreateRoleParams) (*models.Role, error) {
	// 验证参数
	if err := s.ValidateCreateParams(params); err != nil {
		return nil, err
	}

	// 检查角色名是否重复（同一组织内；系统角色全局唯一）
	query := s.db.Model(&models.Role{}).Where("name = ?", params.Name)
	if params.OrganizationID != nil {
		query = query.Where("organization_id = ?", *params.OrganizationID)
	} else {
		query = query.Where("organization_id IS NULL")
	}
	var count int64
	query.Count(&count)
	if count > 0 {
		return nil, fmt.Errorf("角色名已存在")
	}

	// 引用完整性：权限必须存在且启用
	permissions, err := s.loadActivePermissions(params.PermissionIDs)
	if err != nil {
		return nil, err
	}

	// 引用完整性：父角色必须存在且不构成环
	parents, err := s.loadParents(params.ParentIDs)
	if err != nil {
		return nil, err
	}

	role := &models.Role{
		OrganizationID: params.OrganizationID,
		Name:           params.Name,
		DisplayName:    params.DisplayName,
		Description:    params.Description,
		Level:          params.Level,
		Type:           params.Type,
		MaxUsers:       params.MaxUsers,
		Restrictions:   params.Restrictions,
		IsActive:       true,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(role).Error; err != nil {
			return err
		}
		if len(permissions) > 0 {
			if err := tx.Model(role).Association("Permissions").Replace(permissions); err != nil {
				return err
			}
		}
		if len(parents) > 0 {
			// 新角色尚无子节点，父链上不可能出现它自己，无需查环
			if err := tx.Model(role).Association("Parents").Replace(parents); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(role.ID)
}

// UpdateRoleParams 更新角色的参数（nil表示不修改）
type UpdateRoleParams struct {
	DisplayName   *string
	Description   *string
	Level         *int
	MaxUsers      *int
	Restrictions  datatypes.JSON
	IsActive      *bool
	PermissionIDs []uint // nil表示不修改权限集合
	ParentIDs     []uint // nil表示不修改父角色集合
}

// Update 更新角色
func (s *RoleService) Update(id uint, params UpdateRoleParams) (*models.Role, error) {
	var role models.Role
	err := s.db.First(&role, id).Error
	if err != nil {
		return nil, err
	}

	// 系统角色不允许改名、降级等破坏性变更
	if role.Type == models.RoleTypeSystem && params.IsActive != nil && !*params.IsActive {
		return nil, fmt.Errorf("系统角色不允许停用")
	}

	if params.DisplayName != nil {
		if !s.ValidateName(*params.DisplayName) {
			return nil, fmt.Errorf("角色名称长度必须在2-50个字符之间")
		}
		role.DisplayName = *params.DisplayName
	}
	if params.Description != nil {
		role.Description = *params.Description
	}
	if params.Level != nil {
		if *params.Level < models.RoleLevelMin || *params.Level > models.RoleLevelMax {
			return nil, fmt.Errorf("角色等级必须在1-100之间")
		}
		role.Level = *params.Level
	}
	if params.MaxUsers != nil {
		role.MaxUsers = params.MaxUsers
	}
	if params.Restrictions != nil {
		role.Restrictions = params.Restrictions
	}
	if params.IsActive != nil {
		role.IsActive = *params.IsActive
	}

	var permissions []models.Permission
	if params.PermissionIDs != nil {
		permissions, err = s.loadActivePermissions(params.PermissionIDs)
		if err != nil {
			return nil, err
		}
	}

	var parents []*models.Role
	if params.ParentIDs != nil {
		parents, err = s.loadParents(params.ParentIDs)
		if err != nil {
			return nil, err
		}
		// 环检测：从每个候选父角色出发沿继承链向上，不允许回到自己
		if err := s.checkInheritanceCycle(id, params.ParentIDs); err != nil {
			return nil, err
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&role).Error; err != nil {
			return err
		}
		if params.PermissionIDs != nil {
			if err := tx.Model(&role).Association("Permissions").Replace(permissions); err != nil {
				return err
			}
		}
		if params.ParentIDs != nil {
			if err := tx.Model(&role).Association("Parents").Replace(parents); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(id)
}

// Delete 删除角色（软删除：存在授权时只停用，保留审计历史）
func (s *RoleService) Delete(id uint) error {
	var role models.Role
	err := s.db.First(&role, id).Error
	if err != nil {
		return err
	}

	// 系统角色不能删除
	if role.Type == models.RoleTypeSystem {
		return fmt.Errorf("系统角色不允许删除")
	}

	return s.db.Model(&role).Update("is_active", false).Error
}

// GetByID 根据ID获取角色
func (s *RoleService) GetByID(id uint) (*models.Role, error) {
	var role models.Role
	err := s.db.Preload("Organization").Preload("Permissions").Preload("Parents").First(&role, id).Error
	return &role, err
}

// GetByOrganizationWithPage 分页获取组织角色（含系统级角色）
func (s *RoleService) GetByOrganizationWithPage(orgID *uint, activeOnly bool, page, pageSize int) ([]*models.Role, int64, error) {
	var roles []*models.Role
	var total int64

	query := s.db.Model(&models.Role{})
	if orgID != nil {
		query = query.Where("organization_id = ? OR organization_id IS NULL", *orgID)
	} else {
		query = query.Where("organization_id IS NULL")
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
	err := query.Preload("Permissions").Preload("Parents").Offset(offset).Limit(pageSize).Find(&roles).Error
	if err != nil {
		return nil, 0, err
	}

	return roles, total, nil
}

// EffectivePermissions 角色的有效权限闭包（含继承）和有效等级
func (s *RoleService) EffectivePermissions(roleID uint) ([]models.Permission, int, error) {
	resolved, err := s.resolver.Resolve(roleID)
	if err != nil {
		return nil, 0, err
	}

	permissions := make([]models.Permission, 0, len(resolved.Permissions))
	for _, perm := range resolved.Permissions {
		permissions = append(permissions, perm)
	}
	return permissions, resolved.Level, nil
}

// ========== 引用完整性 ==========

// loadActivePermissions 加载权限并校验存在性与启用状态
func (s *RoleService) loadActivePermissions(permissionIDs []uint) ([]models.Permission, error) {
	if len(permissionIDs) == 0 {
		return nil, nil
	}

	var permissions []models.Permission
	err := s.db.Where("id IN ?", permissionIDs).Find(&permissions).Error
	if err != nil {
		return nil, err
	}
	if len(permissions) != len(uniqueIDs(permissionIDs)) {
		return nil, fmt.Errorf("存在未知的权限ID")
	}
	for _, perm := range permissions {
		if !perm.IsActive {
			return nil, fmt.Errorf("权限 %s 已停用，不能授予角色", perm.Name)
		}
	}
	return permissions, nil
}

// loadParents 加载父角色并校验存在性
func (s *RoleService) loadParents(parentIDs []uint) ([]*models.Role, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	var parents []*models.Role
	err := s.db.Where("id IN ?", parentIDs).Find(&parents).Error
	if err != nil {
		return nil, err
	}
	if len(parents) != len(uniqueIDs(parentIDs)) {
		return nil, fmt.Errorf("存在未知的父角色ID")
	}
	return parents, nil
}

// checkInheritanceCycle 继承关系必须无环
// 从每个候选父角色出发沿inherits_from向上遍历（带访问集），命中roleID即为环
func (s *RoleService) checkInheritanceCycle(roleID uint, parentIDs []uint) error {
	visited := make(map[uint]bool)
	queue := append([]uint{}, parentIDs...)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == roleID {
			return fmt.Errorf("父角色设置会导致循环继承")
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		var links []models.RoleParent
		if err := s.db.Where("role_id = ?", current).Find(&links).Error; err != nil {
			return err
		}
		for _, link := range links {
			queue = append(queue, link.ParentID)
		}
	}
	return nil
}

// ========== 验证方法 ==========

// ValidateRoleName 验证角色名（代码）
func (s *RoleService) ValidateRoleName(name string) bool {
	if len(name) < 2 || len(name) > 50 {
		return false
	}
	// 只允许字母、数字和下划线
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_') {
			return false
		}
	}
	return true
}

// ValidateName 验证角色显示名称
func (s *RoleService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(name)
	return runeCount >= 2 && runeCount <= 50
}

// ValidateType 验证角色类型
func (s *RoleService) ValidateType(roleType string) bool {
	return roleType == models.RoleTypeSystem ||
		roleType == models.RoleTypeOrganization ||
		roleType == models.RoleTypeCustom
}

// ValidateCreateParams 验证创建角色的参数
func (s *RoleService) ValidateCreateParams(params CreateRoleParams) error {
	if !s.ValidateRoleName(params.Name) {
		return fmt.Errorf("角色名长度必须在2-50个字符之间，且只能包含字母、数字和下划线")
	}
	if !s.ValidateName(params.DisplayName) {
		return fmt.Errorf("角色名称长度必须在2-50个字符之间")
	}
	if params.Level < models.RoleLevelMin || params.Level > models.RoleLevelMax {
		return fmt.Errorf("角色等级必须在1-100之间")
	}
	if !s.ValidateType(params.Type) {
		return fmt.Errorf("角色类型只能是 system、organization 或 custom")
	}
	if params.Type != models.RoleTypeSystem && params.OrganizationID == nil {
		return fmt.Errorf("非系统角色必须归属组织")
	}
	return nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}
