package models

import (
	"time"

	"gorm.io/datatypes"
)

// RoleAssignment 用户-角色-组织授权关系
type RoleAssignment struct {
	BaseModel
	UserID         uint           `gorm:"not null;index:idx_assignment_lookup" json:"user_id"`
	RoleID         uint           `gorm:"not null;index" json:"role_id"`
	OrganizationID *uint          `gorm:"index:idx_assignment_lookup" json:"organization_id"` // null表示全局授权
	AssignedBy     uint           `gorm:"not null" json:"assigned_by"`                        // 授权人
	ExpiresAt      *time.Time     `gorm:"index" json:"expires_at"`                            // 过期时间（可选）
	Conditions     datatypes.JSON `gorm:"type:json" json:"conditions,omitempty"`              // 透传条件，引擎不解释
	Metadata       datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`                // 附加元数据
	IsActive       bool           `gorm:"default:true;index:idx_assignment_lookup" json:"is_active"`

	// 关联
	User     *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role     *Role         `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	Org      *Organization `gorm:"foreignKey:OrganizationID" json:"org,omitempty"`
	Assigner *User         `gorm:"foreignKey:AssignedBy" json:"assigner,omitempty"`
}

// TableName 表名
func (a *RoleAssignment) TableName() string {
	return "role_assignments"
}

// IsExpired 授权是否已过期
func (a *RoleAssignment) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

// IsEffective 授权当前是否生效
// 过期的授权即使尚未被清理任务回收也视为不存在
func (a *RoleAssignment) IsEffective(now time.Time) bool {
	return a.IsActive && !a.IsExpired(now)
}

// IsGlobal 是否全局授权（不限组织）
func (a *RoleAssignment) IsGlobal() bool {
	return a.OrganizationID == nil
}
