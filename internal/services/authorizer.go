package services

import (
	"ekko/internal/database"
	"ekko/internal/models"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Decision 授权判定结果
// 无论允许与否，Granted和Missing都会填充，便于观测
type Decision struct {
	Allowed bool     `json:"allowed"`
	Granted []string `json:"granted"`
	Missing []string `json:"missing"`
	Reason  string   `json:"reason"`
}

// AuthorizationService 授权判定引擎
// 纯读取、无副作用；每次调用加载自己的数据快照，不缓存判定结果
type AuthorizationService struct {
	db       *gorm.DB
	resolver *RoleResolver
}

// NewAuthorizationService 创建授权引擎
func NewAuthorizationService() *AuthorizationService {
	db := database.GetDB()
	return &AuthorizationService{
		db:       db,
		resolver: NewRoleResolver(NewDBRoleFetch(db)),
	}
}

// NewAuthorizationServiceWith 以指定依赖创建授权引擎
func NewAuthorizationServiceWith(db *gorm.DB, resolver *RoleResolver) *AuthorizationService {
	return &AuthorizationService{db: db, resolver: resolver}
}

// Resolver 暴露解析器（角色有效权限查询复用）
func (s *AuthorizationService) Resolver() *RoleResolver {
	return s.resolver
}

// Authorize 单权限判定
func (s *AuthorizationService) Authorize(userID uint, orgID *uint, permission string) (*Decision, error) {
	return s.AuthorizeAll(userID, orgID, []string{permission}, true)
}

// AuthorizeAny 多权限判定，满足任意一个即允许（OR，默认语义）
func (s *AuthorizationService) AuthorizeAny(userID uint, orgID *uint, permissions []string) (*Decision, error) {
	return s.AuthorizeAll(userID, orgID, permissions, false)
}

// AuthorizeAll 多权限判定
// requireAll=true 要求全部满足（AND）；false 满足任意一个即可（OR）
func (s *AuthorizationService) AuthorizeAll(userID uint, orgID *uint, permissions []string, requireAll bool) (*Decision, error) {
	assignments, err := s.loadAssignments(userID, orgID)
	if err != nil {
		return nil, err
	}
	return decide(assignments, s.resolver, time.Now(), permissions, requireAll)
}

// IsSuperAdmin 用户是否持有全局super_admin授权（继承链上命中也算）
func (s *AuthorizationService) IsSuperAdmin(userID uint) (bool, error) {
	assignments, err := s.loadAssignments(userID, nil)
	if err != nil {
		return false, err
	}
	return hasSuperAdmin(assignments, s.resolver, time.Now())
}

// ActiveRoles 用户在指定组织的生效角色（含全局授权的角色），用于限制评估
func (s *AuthorizationService) ActiveRoles(userID uint, orgID *uint) ([]*models.Role, error) {
	assignments, err := s.loadAssignments(userID, orgID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	seen := make(map[uint]bool)
	roles := make([]*models.Role, 0, len(assignments))
	for i := range assignments {
		a := &assignments[i]
		if !a.IsEffective(now) || a.Role == nil || !a.Role.IsActive {
			continue
		}
		if seen[a.RoleID] {
			continue
		}
		seen[a.RoleID] = true
		roles = append(roles, a.Role)
	}
	return roles, nil
}

// EffectiveLevel 用户在指定组织的最大有效等级（走继承闭包）
func (s *AuthorizationService) EffectiveLevel(userID uint, orgID *uint) (int, error) {
	resolved, err := s.resolveUser(userID, orgID)
	if err != nil {
		return 0, err
	}
	return resolved.Level, nil
}

// UserPermissions 用户在指定组织的全部有效权限（含继承）
func (s *AuthorizationService) UserPermissions(userID uint, orgID *uint) ([]models.Permission, error) {
	resolved, err := s.resolveUser(userID, orgID)
	if err != nil {
		return nil, err
	}

	permissions := make([]models.Permission, 0, len(resolved.Permissions))
	for _, perm := range resolved.Permissions {
		permissions = append(permissions, perm)
	}
	return permissions, nil
}

// HasRole 用户是否持有指定角色（orgID为nil时仅查全局授权；继承链上命中也算）
func (s *AuthorizationService) HasRole(userID uint, orgID *uint, roleName string) (bool, error) {
	resolved, err := s.resolveUser(userID, orgID)
	if err != nil {
		return false, err
	}
	return resolved.RoleNames[roleName], nil
}

// resolveUser 聚合用户全部生效授权的继承闭包
func (s *AuthorizationService) resolveUser(userID uint, orgID *uint) (*ResolvedRole, error) {
	assignments, err := s.loadAssignments(userID, orgID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	merged := NewResolvedRole()
	for i := range assignments {
		a := &assignments[i]
		if !a.IsEffective(now) {
			continue
		}
		resolved, err := s.resolver.Resolve(a.RoleID)
		if err != nil {
			return nil, err
		}
		merged.Merge(resolved)
	}
	return merged, nil
}

// loadAssignments 加载用户的活跃授权：指定组织的 + 全局的（组织为null）
// 过期判定交给decide在判定时刻做，避免加载和判定之间的时间差
func (s *AuthorizationService) loadAssignments(userID uint, orgID *uint) ([]models.RoleAssignment, error) {
	var assignments []models.RoleAssignment

	query := s.db.Preload("Role").Where("user_id = ? AND is_active = ?", userID, true)
	if orgID != nil {
		query = query.Where("organization_id = ? OR organization_id IS NULL", *orgID)
	} else {
		query = query.Where("organization_id IS NULL")
	}

	if err := query.Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

// ========== 判定核心（纯函数，便于测试） ==========

// decide 授权判定核心
// 步骤：过滤生效授权 -> super_admin短路 -> 聚合权限闭包 -> AND/OR判定
func decide(assignments []models.RoleAssignment, resolver *RoleResolver, now time.Time, permissions []string, requireAll bool) (*Decision, error) {
	superAdmin, err := hasSuperAdmin(assignments, resolver, now)
	if err != nil {
		return nil, err
	}
	if superAdmin {
		// 全局超级管理员先于其他一切逻辑短路放行
		return &Decision{
			Allowed: true,
			Granted: append([]string{}, permissions...),
			Missing: []string{},
			Reason:  "super_admin全局授权",
		}, nil
	}

	merged := NewResolvedRole()
	for i := range assignments {
		a := &assignments[i]
		if !a.IsEffective(now) {
			continue
		}
		resolved, err := resolver.Resolve(a.RoleID)
		if err != nil {
			return nil, err
		}
		merged.Merge(resolved)
	}

	granted := make([]string, 0, len(permissions))
	missing := make([]string, 0)
	for _, name := range permissions {
		if merged.HasPermission(name) {
			granted = append(granted, name)
		} else {
			missing = append(missing, name)
		}
	}

	decision := &Decision{Granted: granted, Missing: missing}
	if requireAll {
		decision.Allowed = len(missing) == 0
	} else {
		decision.Allowed = len(granted) > 0
	}

	if decision.Allowed {
		decision.Reason = "权限满足"
	} else {
		decision.Reason = fmt.Sprintf("缺少权限: %v", missing)
	}
	return decision, nil
}

// hasSuperAdmin 是否存在解析到super_admin的全局生效授权
func hasSuperAdmin(assignments []models.RoleAssignment, resolver *RoleResolver, now time.Time) (bool, error) {
	for i := range assignments {
		a := &assignments[i]
		if !a.IsGlobal() || !a.IsEffective(now) {
			continue
		}
		resolved, err := resolver.Resolve(a.RoleID)
		if err != nil {
			return false, err
		}
		if resolved.RoleNames[models.RoleSuperAdmin] {
			return true, nil
		}
	}
	return false, nil
}
