package services

import (
	"ekko/internal/models"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRole 构造内存角色（测试用）
func buildRole(id uint, name string, level int, active bool, permNames []string, parents ...*models.Role) *models.Role {
	perms := make([]models.Permission, 0, len(permNames))
	for i, pn := range permNames {
		perm := models.Permission{
			Name:     pn,
			IsActive: true,
		}
		perm.ID = id*100 + uint(i)
		perms = append(perms, perm)
	}
	role := &models.Role{
		Name:        name,
		Level:       level,
		IsActive:    active,
		Permissions: perms,
		Parents:     parents,
	}
	role.ID = id
	return role
}

// mapFetch 基于map的角色加载函数
func mapFetch(roles ...*models.Role) RoleFetchFunc {
	index := make(map[uint]*models.Role, len(roles))
	for _, r := range roles {
		index[r.ID] = r
	}
	return func(roleID uint) (*models.Role, error) {
		return index[roleID], nil
	}
}

func TestResolveNoParents(t *testing.T) {
	viewer := buildRole(1, "viewer", 10, true, []string{"doc:read"})
	resolver := NewRoleResolver(mapFetch(viewer))

	resolved, err := resolver.Resolve(1)
	require.NoError(t, err)

	assert.True(t, resolved.HasPermission("doc:read"))
	assert.False(t, resolved.HasPermission("doc:write"))
	assert.True(t, resolved.RoleNames["viewer"])
	assert.Equal(t, 10, resolved.Level)
}

func TestResolveInheritanceChain(t *testing.T) {
	viewer := buildRole(1, "viewer", 10, true, []string{"doc:read"})
	editor := buildRole(2, "editor", 30, true, []string{"doc:write"}, viewer)
	admin := buildRole(3, "admin", 60, true, []string{"doc:delete"}, editor)
	resolver := NewRoleResolver(mapFetch(viewer, editor, admin))

	resolved, err := resolver.Resolve(3)
	require.NoError(t, err)

	// 闭包含自身和祖先的全部权限
	assert.True(t, resolved.HasPermission("doc:read"))
	assert.True(t, resolved.HasPermission("doc:write"))
	assert.True(t, resolved.HasPermission("doc:delete"))

	// 有效等级取闭包最大值
	assert.Equal(t, 60, resolved.Level)

	// 角色名闭包含全链
	assert.True(t, resolved.RoleNames["viewer"])
	assert.True(t, resolved.RoleNames["editor"])
	assert.True(t, resolved.RoleNames["admin"])
}

func TestResolveCycleTerminates(t *testing.T) {
	a := buildRole(1, "a", 10, true, []string{"perm:a"})
	b := buildRole(2, "b", 20, true, []string{"perm:b"}, a)
	// 人为制造 a -> b -> a 的循环
	a.Parents = []*models.Role{b}
	resolver := NewRoleResolver(mapFetch(a, b))

	resolved, err := resolver.Resolve(1)
	require.NoError(t, err)

	assert.True(t, resolved.HasPermission("perm:a"))
	assert.True(t, resolved.HasPermission("perm:b"))
	assert.Equal(t, 20, resolved.Level)
}

func TestResolveDiamond(t *testing.T) {
	base := buildRole(1, "base", 5, true, []string{"perm:base"})
	left := buildRole(2, "left", 10, true, []string{"perm:left"}, base)
	right := buildRole(3, "right", 15, true, []string{"perm:right"}, base)
	top := buildRole(4, "top", 20, true, nil, left, right)
	resolver := NewRoleResolver(mapFetch(base, left, right, top))

	resolved, err := resolver.Resolve(4)
	require.NoError(t, err)

	assert.True(t, resolved.HasPermission("perm:base"))
	assert.True(t, resolved.HasPermission("perm:left"))
	assert.True(t, resolved.HasPermission("perm:right"))
	assert.Equal(t, 20, resolved.Level)
	assert.Len(t, resolved.PermissionNames(), 3)
}

func TestResolveInactiveRoleSeversSubtree(t *testing.T) {
	grandparent := buildRole(1, "grandparent", 50, true, []string{"perm:gp"})
	parent := buildRole(2, "parent", 30, false, []string{"perm:p"}, grandparent) // 停用
	child := buildRole(3, "child", 10, true, []string{"perm:c"}, parent)
	resolver := NewRoleResolver(mapFetch(grandparent, parent, child))

	resolved, err := resolver.Resolve(3)
	require.NoError(t, err)

	// 停用的中间角色切断整条继承链
	assert.True(t, resolved.HasPermission("perm:c"))
	assert.False(t, resolved.HasPermission("perm:p"))
	assert.False(t, resolved.HasPermission("perm:gp"))
	assert.Equal(t, 10, resolved.Level)
	assert.False(t, resolved.RoleNames["parent"])
}

func TestResolveUnknownRole(t *testing.T) {
	resolver := NewRoleResolver(mapFetch())

	resolved, err := resolver.Resolve(999)
	require.NoError(t, err)

	assert.Empty(t, resolved.Permissions)
	assert.Equal(t, 0, resolved.Level)
}

func TestResolveInactivePermissionSkipped(t *testing.T) {
	role := buildRole(1, "viewer", 10, true, []string{"doc:read"})
	role.Permissions[0].IsActive = false
	resolver := NewRoleResolver(mapFetch(role))

	resolved, err := resolver.Resolve(1)
	require.NoError(t, err)

	assert.False(t, resolved.HasPermission("doc:read"))
	assert.True(t, resolved.RoleNames["viewer"])
}

func TestResolveFetchErrorPropagates(t *testing.T) {
	resolver := NewRoleResolver(func(roleID uint) (*models.Role, error) {
		return nil, fmt.Errorf("数据库连接失败")
	})

	_, err := resolver.Resolve(1)
	assert.Error(t, err)
}

func TestResolveAllMerges(t *testing.T) {
	viewer := buildRole(1, "viewer", 10, true, []string{"doc:read"})
	auditor := buildRole(2, "auditor", 40, true, []string{"audit:read"})
	resolver := NewRoleResolver(mapFetch(viewer, auditor))

	resolved, err := resolver.ResolveAll([]uint{1, 2})
	require.NoError(t, err)

	assert.True(t, resolved.HasPermission("doc:read"))
	assert.True(t, resolved.HasPermission("audit:read"))
	assert.Equal(t, 40, resolved.Level)
}
