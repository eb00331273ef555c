package services

import (
	"ekko/internal/models"
	"errors"

	"gorm.io/gorm"
)

// RoleFetchFunc 按ID加载角色（需带Permissions和Parents）
// 角色不存在时返回 (nil, nil)，解析器将其视为"不贡献任何权限"
type RoleFetchFunc func(roleID uint) (*models.Role, error)

// ResolvedRole 角色继承闭包的解析结果
type ResolvedRole struct {
	Permissions map[string]models.Permission // 权限名 -> 权限（去重）
	RoleNames   map[string]bool              // 闭包内所有生效角色的角色名
	Level       int                          // 有效等级 = 闭包内所有生效角色等级的最大值
}

// NewResolvedRole 创建空的解析结果
func NewResolvedRole() *ResolvedRole {
	return &ResolvedRole{
		Permissions: make(map[string]models.Permission),
		RoleNames:   make(map[string]bool),
	}
}

// HasPermission 闭包内是否含有指定权限
func (r *ResolvedRole) HasPermission(name string) bool {
	_, ok := r.Permissions[name]
	return ok
}

// PermissionNames 闭包内的权限名列表
func (r *ResolvedRole) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for name := range r.Permissions {
		names = append(names, name)
	}
	return names
}

// Merge 合并另一个解析结果（用于聚合用户的多条授权）
func (r *ResolvedRole) Merge(other *ResolvedRole) {
	if other == nil {
		return
	}
	for name, perm := range other.Permissions {
		r.Permissions[name] = perm
	}
	for name := range other.RoleNames {
		r.RoleNames[name] = true
	}
	if other.Level > r.Level {
		r.Level = other.Level
	}
}

// RoleResolver 角色继承解析器
// 对inherits_from关系做带访问集的广度优先遍历，循环继承不会死循环，
// 菱形继承的共同祖先只贡献一次
type RoleResolver struct {
	fetch RoleFetchFunc
}

// NewRoleResolver 创建解析器
func NewRoleResolver(fetch RoleFetchFunc) *RoleResolver {
	return &RoleResolver{fetch: fetch}
}

// Resolve 计算角色的有效权限闭包和有效等级
// 未知角色返回空闭包和等级0而非错误；停用的角色被跳过且不再向上遍历
// （停用一个中间角色会切断它传递下来的全部权限）
func (r *RoleResolver) Resolve(roleID uint) (*ResolvedRole, error) {
	result := NewResolvedRole()

	visited := make(map[uint]bool)
	queue := []uint{roleID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		// 访问集判重，防止循环继承死循环
		if visited[current] {
			continue
		}
		visited[current] = true

		role, err := r.fetch(current)
		if err != nil {
			return nil, err
		}
		if role == nil {
			// 悬空引用（角色已被物理删除），视为不贡献任何权限
			continue
		}
		if !role.IsActive {
			// 停用角色：跳过且不继续展开其父角色
			continue
		}

		result.RoleNames[role.Name] = true
		if role.Level > result.Level {
			result.Level = role.Level
		}

		// 只累计启用中的权限，软停用的权限不参与判定
		for _, perm := range role.Permissions {
			if perm.IsActive {
				result.Permissions[perm.Name] = perm
			}
		}

		queue = append(queue, role.ParentIDs()...)
	}

	return result, nil
}

// ResolveAll 解析多个角色并合并结果
func (r *RoleResolver) ResolveAll(roleIDs []uint) (*ResolvedRole, error) {
	merged := NewResolvedRole()
	for _, id := range roleIDs {
		resolved, err := r.Resolve(id)
		if err != nil {
			return nil, err
		}
		merged.Merge(resolved)
	}
	return merged, nil
}

// NewDBRoleFetch 基于gorm的角色加载函数
func NewDBRoleFetch(db *gorm.DB) RoleFetchFunc {
	return func(roleID uint) (*models.Role, error) {
		var role models.Role
		err := db.Preload("Permissions").Preload("Parents").First(&role, roleID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &role, nil
	}
}
