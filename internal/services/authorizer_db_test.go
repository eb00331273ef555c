package services

import (
	"ekko/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Permission{},
		&models.Role{},
		&models.RoleAssignment{},
	))
	return db
}

func createRoleRow(t *testing.T, db *gorm.DB, id uint, name string) {
	role := &models.Role{
		Name:        name,
		DisplayName: name,
		Level:       10,
		Type:        models.RoleTypeCustom,
		IsActive:    true,
	}
	role.ID = id
	require.NoError(t, db.Create(role).Error)
}

func createAssignmentRow(t *testing.T, db *gorm.DB, userID, roleID uint, orgID *uint, active bool) {
	// IsActive带default:true，零值false会被GORM的Create跳过而落为true，
	// 所以先按活跃插入，再显式Update翻转标志位
	a := &models.RoleAssignment{
		UserID:         userID,
		RoleID:         roleID,
		OrganizationID: orgID,
		AssignedBy:     userID,
		IsActive:       true,
	}
	require.NoError(t, db.Create(a).Error)
	if !active {
		require.NoError(t, db.Model(a).Update("is_active", false).Error)
	}
}

// 授权加载的组织范围语义：指定组织的授权 + 全局授权，其他组织的不可见
func TestLoadAssignmentsOrgScoping(t *testing.T) {
	db := openTestDB(t)
	org1, org2 := uint(1), uint(2)

	createRoleRow(t, db, 1, "editor")
	createRoleRow(t, db, 2, "viewer")
	createRoleRow(t, db, 3, "auditor")

	createAssignmentRow(t, db, 1, 1, &org1, true)  // u1在org1持有editor
	createAssignmentRow(t, db, 1, 2, &org2, true)  // u1在org2持有viewer
	createAssignmentRow(t, db, 1, 3, &org1, false) // 已撤销，SQL层过滤
	createAssignmentRow(t, db, 2, 3, nil, true)    // u2持有全局auditor

	svc := NewAuthorizationServiceWith(db, NewRoleResolver(mapFetch()))

	roleIDs := func(assignments []models.RoleAssignment) []uint {
		ids := make([]uint, 0, len(assignments))
		for _, a := range assignments {
			ids = append(ids, a.RoleID)
		}
		return ids
	}

	// org1只看到org1的活跃授权
	assignments, err := svc.loadAssignments(1, &org1)
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, roleIDs(assignments))

	// org2的授权不泄漏到org1，反之亦然
	assignments, err = svc.loadAssignments(1, &org2)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, roleIDs(assignments))

	// orgID为nil只加载全局授权
	assignments, err = svc.loadAssignments(1, nil)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	// 全局授权在任何组织范围内可见
	assignments, err = svc.loadAssignments(2, &org1)
	require.NoError(t, err)
	assert.Equal(t, []uint{3}, roleIDs(assignments))
}

// 端到端：同一用户在不同组织的判定互相隔离
func TestAuthorizeOrgIsolation(t *testing.T) {
	db := openTestDB(t)
	org1, org2 := uint(1), uint(2)

	createRoleRow(t, db, 1, "editor")
	createRoleRow(t, db, 2, "viewer")
	createRoleRow(t, db, 3, "auditor")

	createAssignmentRow(t, db, 1, 1, &org1, true)
	createAssignmentRow(t, db, 1, 2, &org2, true)
	createAssignmentRow(t, db, 2, 3, nil, true)

	editor := buildRole(1, "editor", 30, true, []string{"doc:read", "doc:write"})
	viewer := buildRole(2, "viewer", 10, true, []string{"doc:read"})
	auditor := buildRole(3, "auditor", 40, true, []string{"audit:read"})
	svc := NewAuthorizationServiceWith(db, NewRoleResolver(mapFetch(editor, viewer, auditor)))

	// u1在org1是editor：可写
	decision, err := svc.Authorize(1, &org1, "doc:write")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// u1在org2只是viewer：org1的editor授权不跨组织生效
	decision, err = svc.Authorize(1, &org2, "doc:write")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	decision, err = svc.Authorize(1, &org2, "doc:read")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// 全局授权在任意组织生效
	decision, err = svc.Authorize(2, &org1, "audit:read")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = svc.Authorize(2, &org2, "audit:read")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
