package services

import (
	"ekko/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assignment(roleID uint, orgID *uint, expiresAt *time.Time, active bool) models.RoleAssignment {
	return models.RoleAssignment{
		UserID:         1,
		RoleID:         roleID,
		OrganizationID: orgID,
		ExpiresAt:      expiresAt,
		IsActive:       active,
	}
}

func uintPtr(v uint) *uint { return &v }

func TestDecideSinglePermission(t *testing.T) {
	viewer := buildRole(1, "viewer", 10, true, []string{"doc:read"})
	resolver := NewRoleResolver(mapFetch(viewer))
	now := time.Now()

	assignments := []models.RoleAssignment{assignment(1, uintPtr(7), nil, true)}

	decision, err := decide(assignments, resolver, now, []string{"doc:read"}, true)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, []string{"doc:read"}, decision.Granted)
	assert.Empty(t, decision.Missing)

	decision, err = decide(assignments, resolver, now, []string{"doc:write"}, true)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []string{"doc:write"}, decision.Missing)
}

func TestDecideRequireAllSemantics(t *testing.T) {
	editor := buildRole(1, "editor", 30, true, []string{"doc:read", "doc:write"})
	resolver := NewRoleResolver(mapFetch(editor))
	now := time.Now()
	assignments := []models.RoleAssignment{assignment(1, uintPtr(7), nil, true)}

	// AND：缺一个即拒绝，但granted仍然填充
	decision, err := decide(assignments, resolver, now, []string{"doc:read", "doc:delete"}, true)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []string{"doc:read"}, decision.Granted)
	assert.Equal(t, []string{"doc:delete"}, decision.Missing)

	// OR：命中一个即放行
	decision, err = decide(assignments, resolver, now, []string{"doc:read", "doc:delete"}, false)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestDecideExpiredAssignmentIgnored(t *testing.T) {
	viewer := buildRole(1, "viewer", 10, true, []string{"doc:read"})
	resolver := NewRoleResolver(mapFetch(viewer))
	now := time.Now()
	past := now.Add(-time.Hour)

	assignments := []models.RoleAssignment{assignment(1, uintPtr(7), &past, true)}

	decision, err := decide(assignments, resolver, now, []string{"doc:read"}, true)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestDecideInactiveAssignmentIgnored(t *testing.T) {
	viewer := buildRole(1, "viewer", 10, true, []string{"doc:read"})
	resolver := NewRoleResolver(mapFetch(viewer))
	now := time.Now()

	assignments := []models.RoleAssignment{assignment(1, uintPtr(7), nil, false)}

	decision, err := decide(assignments, resolver, now, []string{"doc:read"}, true)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestDecideSuperAdminBypass(t *testing.T) {
	super := buildRole(1, models.RoleSuperAdmin, 100, true, nil)
	resolver := NewRoleResolver(mapFetch(super))
	now := time.Now()

	// 全局授权（组织为nil）
	assignments := []models.RoleAssignment{assignment(1, nil, nil, true)}

	// 目录中根本不存在的权限也放行
	decision, err := decide(assignments, resolver, now, []string{"anything:at_all"}, true)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, []string{"anything:at_all"}, decision.Granted)
}

func TestDecideSuperAdminViaInheritance(t *testing.T) {
	super := buildRole(1, models.RoleSuperAdmin, 100, true, nil)
	deputy := buildRole(2, "deputy", 90, true, nil, super)
	resolver := NewRoleResolver(mapFetch(super, deputy))
	now := time.Now()

	// 继承链上命中super_admin同样触发短路
	assignments := []models.RoleAssignment{assignment(2, nil, nil, true)}

	decision, err := decide(assignments, resolver, now, []string{"billing:manage"}, true)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestDecideExpiredSuperAdminNoBypass(t *testing.T) {
	super := buildRole(1, models.RoleSuperAdmin, 100, true, nil)
	resolver := NewRoleResolver(mapFetch(super))
	now := time.Now()
	past := now.Add(-time.Minute)

	assignments := []models.RoleAssignment{assignment(1, nil, &past, true)}

	decision, err := decide(assignments, resolver, now, []string{"billing:manage"}, true)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestHasSuperAdminRequiresGlobalAssignment(t *testing.T) {
	super := buildRole(1, models.RoleSuperAdmin, 100, true, nil)
	resolver := NewRoleResolver(mapFetch(super))
	now := time.Now()

	// 组织范围内的super_admin授权不触发全局短路
	scoped := []models.RoleAssignment{assignment(1, uintPtr(7), nil, true)}
	ok, err := hasSuperAdmin(scoped, resolver, now)
	require.NoError(t, err)
	assert.False(t, ok)

	global := []models.RoleAssignment{assignment(1, nil, nil, true)}
	ok, err = hasSuperAdmin(global, resolver, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecideMergesMultipleAssignments(t *testing.T) {
	viewer := buildRole(1, "viewer", 10, true, []string{"doc:read"})
	auditor := buildRole(2, "auditor", 40, true, []string{"audit:read"})
	resolver := NewRoleResolver(mapFetch(viewer, auditor))
	now := time.Now()

	assignments := []models.RoleAssignment{
		assignment(1, uintPtr(7), nil, true),
		assignment(2, uintPtr(7), nil, true),
	}

	decision, err := decide(assignments, resolver, now, []string{"doc:read", "audit:read"}, true)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestDecideNoAssignments(t *testing.T) {
	resolver := NewRoleResolver(mapFetch())
	decision, err := decide(nil, resolver, time.Now(), []string{"doc:read"}, true)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, []string{"doc:read"}, decision.Missing)
}
