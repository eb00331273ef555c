package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Role 角色模型
type Role struct {
	BaseModel
	OrganizationID *uint          `gorm:"index" json:"organization_id"`              // 所属组织（null表示系统级角色）
	Name           string         `gorm:"size:100;not null;index" json:"name"`       // 角色名，如 "org_admin"
	DisplayName    string         `gorm:"size:100;not null" json:"display_name"`     // 角色名称，如 "组织管理员"
	Description    string         `gorm:"size:255" json:"description"`               // 角色描述
	Level          int            `gorm:"not null;default:1" json:"level"`           // 角色等级 1-100，越大权限越高
	Type           string         `gorm:"size:20;not null" json:"type"`              // 角色类型：system, organization, custom
	MaxUsers       *int           `gorm:"" json:"max_users"`                         // 并发授权人数上限（可选）
	Restrictions   datatypes.JSON `gorm:"type:json" json:"restrictions,omitempty"`   // 上下文限制（时间窗口、IP白名单）
	IsActive       bool           `gorm:"default:true;index" json:"is_active"`       // 是否启用

	// 关联关系
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Permissions  []Permission  `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
	Parents      []*Role       `gorm:"many2many:role_parents;joinForeignKey:RoleID;joinReferences:ParentID" json:"parents,omitempty"` // 继承的父角色
}

// TableName 表名
func (r *Role) TableName() string {
	return "roles"
}

// 角色类型常量
const (
	RoleTypeSystem       = "system"
	RoleTypeOrganization = "organization"
	RoleTypeCustom       = "custom"
)

// 系统预定义角色常量
const (
	RoleSuperAdmin = "super_admin" // 超级管理员（全局授权时短路所有检查）
	RoleOrgAdmin   = "org_admin"   // 组织管理员
	RoleOrgMember  = "org_member"  // 组织普通成员
)

// 角色等级边界
const (
	RoleLevelMin = 1
	RoleLevelMax = 100
)

// RolePermission 角色权限关联表
type RolePermission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RoleID       uint      `gorm:"not null;index" json:"role_id"`
	PermissionID uint      `gorm:"not null;index" json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoleParent 角色继承关联表（role继承parent的权限）
type RoleParent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoleID    uint      `gorm:"not null;index" json:"role_id"`
	ParentID  uint      `gorm:"not null;index" json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ========== 上下文限制 ==========

// HourWindow 小时窗口，半开区间 [Start, End)
type HourWindow struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// TimeRestriction 时间限制
// AllowedDays 取值 0=周日 .. 6=周六
type TimeRestriction struct {
	AllowedDays  []int       `json:"allowed_days,omitempty"`
	AllowedHours *HourWindow `json:"allowed_hours,omitempty"`
}

// IsEmpty 是否未配置任何时间约束
func (t *TimeRestriction) IsEmpty() bool {
	return t == nil || (len(t.AllowedDays) == 0 && t.AllowedHours == nil)
}

// RoleRestrictions 角色上下文限制的结构化形式
type RoleRestrictions struct {
	TimeRestrictions *TimeRestriction `json:"time_restrictions,omitempty"`
	IPWhitelist      []string         `json:"ip_whitelist,omitempty"`
}

// ParseRestrictions 解析角色的限制配置
// 未配置时返回零值结构而非错误
func (r *Role) ParseRestrictions() (*RoleRestrictions, error) {
	restrictions := &RoleRestrictions{}
	if len(r.Restrictions) == 0 {
		return restrictions, nil
	}
	if err := json.Unmarshal(r.Restrictions, restrictions); err != nil {
		return nil, err
	}
	return restrictions, nil
}

// ParentIDs 父角色ID列表
func (r *Role) ParentIDs() []uint {
	ids := make([]uint, 0, len(r.Parents))
	for _, parent := range r.Parents {
		if parent != nil {
			ids = append(ids, parent.ID)
		}
	}
	return ids
}
