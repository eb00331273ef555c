package services

import (
	"ekko/internal/database"
	"ekko/internal/models"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AssignmentService struct {
	db *gorm.DB
}

func NewAssignmentService() *AssignmentService {
	return &AssignmentService{
		db: database.GetDB(),
	}
}

// AssignRoleParams 角色授权参数
type AssignRoleParams struct {
	UserID         uint
	RoleID         uint
	OrganizationID *uint // nil表示全局授权
	AssignedBy     uint
	ExpiresAt      *time.Time
	Conditions     datatypes.JSON
	Metadata       datatypes.JSON
}

// AssignRole 给用户授予角色
func (s *AssignmentService) AssignRole(params AssignRoleParams) (*models.RoleAssignment, error) {
	// 引用完整性：用户、角色、组织必须存在
	var userCount int64
	s.db.Model(&models.User{}).Where("id = ?", params.UserID).Count(&userCount)
	if userCount == 0 {
		return nil, fmt.Errorf("用户不存在")
	}

	var role models.Role
	if err := s.db.First(&role, params.RoleID).Error; err != nil {
		return nil, fmt.Errorf("角色不存在")
	}
	if !role.IsActive {
		return nil, fmt.Errorf("角色已停用，不能授予")
	}

	if params.OrganizationID != nil {
		var orgCount int64
		s.db.Model(&models.Organization{}).Where("id = ?", *params.OrganizationID).Count(&orgCount)
		if orgCount == 0 {
			return nil, fmt.Errorf("组织不存在")
		}
	}

	// 过期时间必须在未来
	if params.ExpiresAt != nil && !params.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("过期时间必须晚于当前时间")
	}

	// 同一 (用户, 角色, 组织) 不允许重复的活跃授权
	dupQuery := s.db.Model(&models.RoleAssignment{}).
		Where("user_id = ? AND role_id = ? AND is_active = ?", params.UserID, params.RoleID, true)
	if params.OrganizationID != nil {
		dupQuery = dupQuery.Where("organization_id = ?", *params.OrganizationID)
	} else {
		dupQuery = dupQuery.Where("organization_id IS NULL")
	}
	var dupCount int64
	dupQuery.Count(&dupCount)
	if dupCount > 0 {
		return nil, fmt.Errorf("该用户已持有此角色的活跃授权")
	}

	// 角色授权人数上限
	if role.MaxUsers != nil {
		var activeCount int64
		s.db.Model(&models.RoleAssignment{}).
			Where("role_id = ? AND is_active = ?", params.RoleID, true).
			Count(&activeCount)
		if activeCount >= int64(*role.MaxUsers) {
			return nil, fmt.Errorf("角色 %s 的授权人数已达上限 %d", role.Name, *role.MaxUsers)
		}
	}

	assignment := &models.RoleAssignment{
		UserID:         params.UserID,
		RoleID:         params.RoleID,
		OrganizationID: params.OrganizationID,
		AssignedBy:     params.AssignedBy,
		ExpiresAt:      params.ExpiresAt,
		Conditions:     params.Conditions,
		Metadata:       params.Metadata,
		IsActive:       true,
	}

	if err := s.db.Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

// RevokeRole 撤销用户的角色授权（软撤销，保留历史供审计）
func (s *AssignmentService) RevokeRole(userID, roleID uint, orgID *uint) error {
	query := s.db.Model(&models.RoleAssignment{}).
		Where("user_id = ? AND role_id = ? AND is_active = ?", userID, roleID, true)
	if orgID != nil {
		query = query.Where("organization_id = ?", *orgID)
	} else {
		query = query.Where("organization_id IS NULL")
	}

	result := query.Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("未找到活跃的角色授权")
	}
	return nil
}

// GetUserAssignments 用户在指定组织的活跃授权（含全局授权），带角色详情
func (s *AssignmentService) GetUserAssignments(userID uint, orgID *uint) ([]models.RoleAssignment, error) {
	var assignments []models.RoleAssignment

	query := s.db.Preload("Role").Preload("Role.Permissions").
		Where("user_id = ? AND is_active = ?", userID, true)
	if orgID != nil {
		query = query.Where("organization_id = ? OR organization_id IS NULL", *orgID)
	} else {
		query = query.Where("organization_id IS NULL")
	}

	if err := query.Find(&assignments).Error; err != nil {
		return nil, err
	}

	// 过期的授权即使尚未被清理也视为不存在
	now := time.Now()
	effective := make([]models.RoleAssignment, 0, len(assignments))
	for _, a := range assignments {
		if a.IsEffective(now) {
			effective = append(effective, a)
		}
	}
	return effective, nil
}

// GetUserRoles 用户在指定组织的生效角色列表
func (s *AssignmentService) GetUserRoles(userID uint, orgID *uint) ([]*models.Role, error) {
	assignments, err := s.GetUserAssignments(userID, orgID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool)
	roles := make([]*models.Role, 0, len(assignments))
	for i := range assignments {
		a := &assignments[i]
		if a.Role == nil || !a.Role.IsActive || seen[a.RoleID] {
			continue
		}
		seen[a.RoleID] = true
		roles = append(roles, a.Role)
	}
	return roles, nil
}

// CleanupExpired 回收过期授权（由定时任务调用）
// 授权引擎本就把过期授权视为不存在，这里只是收尾，把行翻为非活跃
func (s *AssignmentService) CleanupExpired() (int64, error) {
	result := s.db.Model(&models.RoleAssignment{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, time.Now()).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}
