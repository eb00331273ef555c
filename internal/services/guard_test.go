package services

import (
	"ekko/internal/models"
	"ekko/pkg/audit"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink 内存审计Sink（测试用）
type memorySink struct {
	records []*audit.DenialRecord
	failing bool
}

func (s *memorySink) RecordDenial(record *audit.DenialRecord) error {
	if s.failing {
		return fmt.Errorf("redis不可用")
	}
	s.records = append(s.records, record)
	return nil
}

func authenticatedContext() *GuardContext {
	orgID := uint(7)
	return &GuardContext{
		Authenticated:       true,
		UserID:              1,
		Username:            "alice",
		ActorOrgID:          &orgID,
		TargetOrgID:         &orgID,
		EffectiveLevel:      30,
		ClientIP:            "203.0.113.5",
		Now:                 time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC),
		Operation:           "GET /api/v1/roles",
		RequiredPermissions: []string{"role:read"},
		RequireAll:          true,
	}
}

func allowJudge(granted ...string) func(*GuardContext) (*Decision, error) {
	return func(ctx *GuardContext) (*Decision, error) {
		return &Decision{Allowed: true, Granted: granted, Missing: []string{}}, nil
	}
}

func denyJudge(missing ...string) func(*GuardContext) (*Decision, error) {
	return func(ctx *GuardContext) (*Decision, error) {
		return &Decision{Allowed: false, Granted: []string{}, Missing: missing, Reason: fmt.Sprintf("缺少权限: %v", missing)}, nil
	}
}

func standardStages(judge func(*GuardContext) (*Decision, error)) []GuardStage {
	return []GuardStage{
		AuthenticationStage(),
		OrganizationStage(),
		TimeWindowStage(),
		IPWhitelistStage(),
		PermissionStage(judge),
	}
}

func TestPipelineStageOrdering(t *testing.T) {
	pipeline := NewGuardPipeline(nil, standardStages(allowJudge())...)
	assert.Equal(t, []string{
		StageAuthentication,
		StageOrganization,
		StageTimeWindow,
		StageIPWhitelist,
		StagePermission,
	}, pipeline.Stages())
}

func TestPipelineAllPass(t *testing.T) {
	sink := &memorySink{}
	pipeline := NewGuardPipeline(sink, standardStages(allowJudge("role:read"))...)

	ctx := authenticatedContext()
	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Nil(t, denial)
	assert.Empty(t, sink.records)
	require.NotNil(t, ctx.Decision)
	assert.True(t, ctx.Decision.Allowed)
}

func TestPipelineUnauthenticated(t *testing.T) {
	sink := &memorySink{}
	pipeline := NewGuardPipeline(sink, standardStages(allowJudge())...)

	ctx := authenticatedContext()
	ctx.Authenticated = false
	ctx.UserID = 0

	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenyAuthRequired, denial.Code)
	require.Len(t, sink.records, 1)
	assert.Equal(t, DenyAuthRequired, sink.records[0].Code)
}

func TestPipelineWrongOrganizationShortCircuits(t *testing.T) {
	judgeCalled := false
	judge := func(ctx *GuardContext) (*Decision, error) {
		judgeCalled = true
		return &Decision{Allowed: true}, nil
	}
	pipeline := NewGuardPipeline(nil, standardStages(judge)...)

	ctx := authenticatedContext()
	otherOrg := uint(99)
	ctx.TargetOrgID = &otherOrg

	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenyWrongOrganization, denial.Code)

	// 首个拒绝短路，后续阶段不执行
	assert.False(t, judgeCalled)
}

func TestPipelineTimeWindowDenial(t *testing.T) {
	pipeline := NewGuardPipeline(nil, standardStages(allowJudge())...)

	ctx := authenticatedContext()
	ctx.Roles = []*models.Role{restrictedRole("night_shift",
		`{"time_restrictions":{"allowed_hours":{"start":22,"end":23}}}`)}

	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenyHourNotAllowed, denial.Code)
}

func TestPipelineIPDenial(t *testing.T) {
	pipeline := NewGuardPipeline(nil, standardStages(allowJudge())...)

	ctx := authenticatedContext()
	ctx.Roles = []*models.Role{restrictedRole("office_only",
		`{"ip_whitelist":["198.51.100.7"]}`)}

	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenyIPNotAllowed, denial.Code)
}

func TestPipelineMinimumLevelDenial(t *testing.T) {
	stages := []GuardStage{
		AuthenticationStage(),
		MinimumLevelStage(50),
	}
	pipeline := NewGuardPipeline(nil, stages...)

	ctx := authenticatedContext() // EffectiveLevel=30
	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenyInsufficientLevel, denial.Code)
}

func TestPipelinePermissionDenial(t *testing.T) {
	sink := &memorySink{}
	pipeline := NewGuardPipeline(sink, standardStages(denyJudge("role:read"))...)

	ctx := authenticatedContext()
	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenyInsufficientPerms, denial.Code)
	require.NotNil(t, denial.Decision)
	assert.Equal(t, []string{"role:read"}, denial.Decision.Missing)

	// 审计记录携带操作和所需权限
	require.Len(t, sink.records, 1)
	record := sink.records[0]
	assert.Equal(t, "GET /api/v1/roles", record.Operation)
	assert.Equal(t, []string{"role:read"}, record.RequiredPermissions)
	assert.Equal(t, "alice", record.Username)
	assert.NotEmpty(t, record.EventID)
}

func TestPipelinePermissionStageSkippedWhenNoneRequired(t *testing.T) {
	pipeline := NewGuardPipeline(nil, standardStages(denyJudge())...)

	ctx := authenticatedContext()
	ctx.RequiredPermissions = nil

	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Nil(t, denial)
}

func TestPipelineRoleStage(t *testing.T) {
	stages := []GuardStage{
		AuthenticationStage(),
		RoleStage("approver", func(ctx *GuardContext) (bool, error) {
			return false, nil
		}),
	}
	pipeline := NewGuardPipeline(nil, stages...)

	denial, err := pipeline.Run(authenticatedContext())
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenyMissingRole, denial.Code)
}

func TestPipelineSuperAdminSkipsAllButAuthentication(t *testing.T) {
	pipeline := NewGuardPipeline(nil, standardStages(denyJudge("role:read"))...)

	ctx := authenticatedContext()
	ctx.SuperAdmin = true
	// 带会拒绝的时间和IP限制，super_admin应全部豁免
	ctx.Roles = []*models.Role{restrictedRole("office_only",
		`{"ip_whitelist":["198.51.100.7"]}`)}
	otherOrg := uint(99)
	ctx.TargetOrgID = &otherOrg

	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Nil(t, denial)
}

func TestPipelineSuperAdminStillRequiresAuthentication(t *testing.T) {
	pipeline := NewGuardPipeline(nil, standardStages(allowJudge())...)

	ctx := authenticatedContext()
	ctx.SuperAdmin = true
	ctx.Authenticated = false
	ctx.UserID = 0

	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenyAuthRequired, denial.Code)
}

func TestPipelineAuditFailureSwallowed(t *testing.T) {
	sink := &memorySink{failing: true}
	pipeline := NewGuardPipeline(sink, standardStages(denyJudge("role:read"))...)

	// 审计写入失败不影响拒绝结果，也不返回错误
	denial, err := pipeline.Run(authenticatedContext())
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenyInsufficientPerms, denial.Code)
}

func TestPipelineStageErrorPropagates(t *testing.T) {
	stages := []GuardStage{
		AuthenticationStage(),
		PermissionStage(func(ctx *GuardContext) (*Decision, error) {
			return nil, fmt.Errorf("数据库连接失败")
		}),
	}
	pipeline := NewGuardPipeline(&memorySink{}, stages...)

	denial, err := pipeline.Run(authenticatedContext())
	assert.Error(t, err)
	assert.Nil(t, denial)
}

func TestOrganizationStageGlobalTargetPasses(t *testing.T) {
	pipeline := NewGuardPipeline(nil, AuthenticationStage(), OrganizationStage())

	ctx := authenticatedContext()
	ctx.TargetOrgID = nil

	denial, err := pipeline.Run(ctx)
	require.NoError(t, err)
	assert.Nil(t, denial)
}
