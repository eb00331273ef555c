package services

import (
	"ekko/internal/models"
	"ekko/pkg/audit"
	"ekko/pkg/logger"
	"time"

	"github.com/google/uuid"
)

// GuardContext 一次受保护操作的执行上下文
// 由调用方（HTTP中间件或测试）在运行管道前填充
type GuardContext struct {
	Authenticated bool
	UserID        uint
	Username      string
	ActorOrgID    *uint // 操作者所属组织
	TargetOrgID   *uint // 本次操作的目标组织（缺省为操作者组织）

	SuperAdmin     bool           // 是否持有全局super_admin授权
	Roles          []*models.Role // 生效角色（直接授权），限制评估器的输入
	EffectiveLevel int            // 继承闭包的最大角色等级

	ClientIP string
	Now      time.Time

	Operation           string // 形如 "POST /api/v1/roles"
	RequiredPermissions []string
	RequireAll          bool
	Metadata            map[string]interface{}

	Decision *Decision // 权限判定阶段填充
}

// Denial 管道某阶段产生的拒绝
type Denial struct {
	Code     string    `json:"code"`
	Reason   string    `json:"reason"`
	Decision *Decision `json:"decision,omitempty"`
}

// GuardStage 管道中的一个检查阶段
type GuardStage struct {
	Name  string
	Check func(ctx *GuardContext) (*Denial, error)
}

// 阶段名常量
const (
	StageAuthentication = "authentication"
	StageOrganization   = "organization"
	StageTimeWindow     = "time_window"
	StageIPWhitelist    = "ip_whitelist"
	StageMinimumLevel   = "minimum_level"
	StagePermission     = "permission"
	StageRole           = "role"
)

// GuardPipeline 按序执行的强制管道
// 阶段是数据（有序列表）而非嵌套回调，首个失败阶段短路整条链；
// 拒绝时写审计，审计失败只记日志、绝不影响授权结果
type GuardPipeline struct {
	stages []GuardStage
	sink   audit.Sink
}

// NewGuardPipeline 组装管道
func NewGuardPipeline(sink audit.Sink, stages ...GuardStage) *GuardPipeline {
	return &GuardPipeline{stages: stages, sink: sink}
}

// Stages 管道的阶段名序列（用于观测和测试）
func (p *GuardPipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, stage := range p.stages {
		names = append(names, stage.Name)
	}
	return names
}

// Run 依序执行各阶段，返回首个拒绝；全部通过返回nil
// 持有super_admin的操作者除身份校验外豁免一切阶段（包括限制评估器）
func (p *GuardPipeline) Run(ctx *GuardContext) (*Denial, error) {
	for _, stage := range p.stages {
		if ctx.SuperAdmin && stage.Name != StageAuthentication {
			continue
		}
		denial, err := stage.Check(ctx)
		if err != nil {
			return nil, err
		}
		if denial != nil {
			p.recordDenial(ctx, denial)
			return denial, nil
		}
	}
	return nil, nil
}

// recordDenial 拒绝写入审计Sink，失败吞掉只记日志
func (p *GuardPipeline) recordDenial(ctx *GuardContext, denial *Denial) {
	if p.sink == nil {
		return
	}

	record := &audit.DenialRecord{
		EventID:             uuid.New().String(),
		UserID:              ctx.UserID,
		Username:            ctx.Username,
		OrganizationID:      ctx.TargetOrgID,
		Operation:           ctx.Operation,
		RequiredPermissions: ctx.RequiredPermissions,
		Code:                denial.Code,
		Reason:              denial.Reason,
		ClientIP:            ctx.ClientIP,
		Metadata:            ctx.Metadata,
		OccurredAt:          ctx.Now,
	}

	if err := p.sink.RecordDenial(record); err != nil {
		logger.GetLogger().Errorf("审计记录写入失败: %v", err)
	}
}

// ========== 标准阶段 ==========

// AuthenticationStage 认证前置条件：操作者身份必须存在
func AuthenticationStage() GuardStage {
	return GuardStage{
		Name: StageAuthentication,
		Check: func(ctx *GuardContext) (*Denial, error) {
			if !ctx.Authenticated || ctx.UserID == 0 {
				return &Denial{Code: DenyAuthRequired, Reason: "请先登录"}, nil
			}
			return nil, nil
		},
	}
}

// OrganizationStage 组织归属检查：目标组织必须等于操作者组织
// （super_admin在Run层面豁免，无需在此处理）
func OrganizationStage() GuardStage {
	return GuardStage{
		Name: StageOrganization,
		Check: func(ctx *GuardContext) (*Denial, error) {
			if ctx.TargetOrgID == nil {
				// 无目标组织的操作（全局资源），交给后续权限判定
				return nil, nil
			}
			if ctx.ActorOrgID == nil || *ctx.ActorOrgID != *ctx.TargetOrgID {
				return &Denial{Code: DenyWrongOrganization, Reason: "无权访问其他组织的数据"}, nil
			}
			return nil, nil
		},
	}
}

// TimeWindowStage 时间窗口限制
func TimeWindowStage() GuardStage {
	return GuardStage{
		Name: StageTimeWindow,
		Check: func(ctx *GuardContext) (*Denial, error) {
			result := EvaluateTimeRestrictions(ctx.Roles, ctx.Now)
			if !result.Allowed {
				return &Denial{Code: result.Code, Reason: result.Reason}, nil
			}
			return nil, nil
		},
	}
}

// IPWhitelistStage IP白名单限制
func IPWhitelistStage() GuardStage {
	return GuardStage{
		Name: StageIPWhitelist,
		Check: func(ctx *GuardContext) (*Denial, error) {
			result := EvaluateIPRestriction(ctx.Roles, ctx.ClientIP)
			if !result.Allowed {
				return &Denial{Code: result.Code, Reason: result.Reason}, nil
			}
			return nil, nil
		},
	}
}

// MinimumLevelStage 最低角色等级限制
func MinimumLevelStage(requiredLevel int) GuardStage {
	return GuardStage{
		Name: StageMinimumLevel,
		Check: func(ctx *GuardContext) (*Denial, error) {
			result := EvaluateMinimumLevel(ctx.EffectiveLevel, requiredLevel)
			if !result.Allowed {
				return &Denial{Code: result.Code, Reason: result.Reason}, nil
			}
			return nil, nil
		},
	}
}

// PermissionStage 权限判定阶段，judge由调用方注入（生产环境为授权引擎）
func PermissionStage(judge func(ctx *GuardContext) (*Decision, error)) GuardStage {
	return GuardStage{
		Name: StagePermission,
		Check: func(ctx *GuardContext) (*Denial, error) {
			if len(ctx.RequiredPermissions) == 0 {
				return nil, nil
			}
			decision, err := judge(ctx)
			if err != nil {
				return nil, err
			}
			ctx.Decision = decision
			if !decision.Allowed {
				return &Denial{Code: DenyInsufficientPerms, Reason: decision.Reason, Decision: decision}, nil
			}
			return nil, nil
		},
	}
}

// RoleStage 要求持有指定角色
func RoleStage(roleName string, hasRole func(ctx *GuardContext) (bool, error)) GuardStage {
	return GuardStage{
		Name: StageRole,
		Check: func(ctx *GuardContext) (*Denial, error) {
			ok, err := hasRole(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				return &Denial{Code: DenyMissingRole, Reason: "缺少必需角色: " + roleName}, nil
			}
			return nil, nil
		},
	}
}
