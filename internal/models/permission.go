package models

import "gorm.io/datatypes"

// Permission 权限模型
type Permission struct {
	BaseModel
	Name        string         `gorm:"uniqueIndex;size:100;not null" json:"name"` // 权限名，如 "content:update"
	DisplayName string         `gorm:"size:100;not null" json:"display_name"`     // 权限名称，如 "更新内容"
	Description string         `gorm:"size:255" json:"description"`               // 权限描述
	Category    string         `gorm:"size:50;not null;index" json:"category"`    // 所属类别，如 "billing"
	Resource    string         `gorm:"size:50;not null" json:"resource"`          // 资源标识，2-50字符
	Action      string         `gorm:"size:50;not null" json:"action"`            // 操作类型，如 "create"
	Conditions  datatypes.JSON `gorm:"type:json" json:"conditions,omitempty"`     // 透传条件，引擎不解释
	IsActive    bool           `gorm:"default:true;index" json:"is_active"`       // 是否启用
}

// TableName 表名
func (p *Permission) TableName() string {
	return "permissions"
}

// 权限类别常量
const (
	CategorySystem       = "system"       // 系统管理
	CategoryOrganization = "organization" // 组织管理
	CategoryUser         = "user"         // 用户管理
	CategoryBilling      = "billing"      // 计费
	CategoryAnalytics    = "analytics"    // 分析
	CategorySupport      = "support"      // 客服
	CategoryAPI          = "api"          // 开放接口
)

// 权限操作常量
const (
	ActionCreate  = "create"  // 创建
	ActionRead    = "read"    // 读取
	ActionUpdate  = "update"  // 更新
	ActionDelete  = "delete"  // 删除
	ActionManage  = "manage"  // 托管
	ActionExecute = "execute" // 执行
)

// ValidCategories 权限类别全集
var ValidCategories = []string{
	CategorySystem, CategoryOrganization, CategoryUser,
	CategoryBilling, CategoryAnalytics, CategorySupport, CategoryAPI,
}

// ValidActions 权限操作全集
var ValidActions = []string{
	ActionCreate, ActionRead, ActionUpdate,
	ActionDelete, ActionManage, ActionExecute,
}

// IsValidCategory 检查类别合法性
func IsValidCategory(category string) bool {
	for _, c := range ValidCategories {
		if c == category {
			return true
		}
	}
	return false
}

// IsValidAction 检查操作合法性
func IsValidAction(action string) bool {
	for _, a := range ValidActions {
		if a == action {
			return true
		}
	}
	return false
}
