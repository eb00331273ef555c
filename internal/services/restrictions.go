package services

import (
	"ekko/internal/models"
	"fmt"
	"strings"
	"time"
)

// 拒绝码常量（机器可读，审计与前端依赖其稳定性）
const (
	DenyAuthRequired      = "AUTH_REQUIRED"
	DenyWrongOrganization = "WRONG_ORGANIZATION"
	DenyDayNotAllowed     = "DAY_NOT_ALLOWED"
	DenyHourNotAllowed    = "HOUR_NOT_ALLOWED"
	DenyIPNotAllowed      = "IP_NOT_ALLOWED"
	DenyInsufficientLevel = "INSUFFICIENT_ROLE_LEVEL"
	DenyInsufficientPerms = "INSUFFICIENT_PERMISSIONS"
	DenyMissingRole       = "MISSING_REQUIRED_ROLE"
)

// RestrictionResult 单项限制检查结果
type RestrictionResult struct {
	Allowed bool   `json:"allowed"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func restrictionAllowed() RestrictionResult {
	return RestrictionResult{Allowed: true}
}

func restrictionDenied(code, reason string) RestrictionResult {
	return RestrictionResult{Allowed: false, Code: code, Reason: reason}
}

// ========== 限制评估器（无状态，只读） ==========

// EvaluateTimeRestrictions 时间窗口检查
// 对每个配置了时间限制的角色取交集语义：任何一个角色的窗口不含当前时刻即拒绝，
// 即使其他角色的窗口允许。天数编码 0=周日 .. 6=周六；小时为半开区间 [start, end)
func EvaluateTimeRestrictions(roles []*models.Role, now time.Time) RestrictionResult {
	weekday := int(now.Weekday())
	hour := now.Hour()

	for _, role := range roles {
		restrictions, err := role.ParseRestrictions()
		if err != nil {
			// 配置损坏按无限制处理，合法性由写入侧校验兜底
			continue
		}
		tr := restrictions.TimeRestrictions
		if tr.IsEmpty() {
			continue
		}

		if len(tr.AllowedDays) > 0 && !containsInt(tr.AllowedDays, weekday) {
			return restrictionDenied(DenyDayNotAllowed,
				fmt.Sprintf("角色 %s 不允许在当前日期访问", role.Name))
		}

		if tr.AllowedHours != nil {
			if hour < tr.AllowedHours.Start || hour >= tr.AllowedHours.End {
				return restrictionDenied(DenyHourNotAllowed,
					fmt.Sprintf("角色 %s 仅允许 %d:00-%d:00 访问", role.Name, tr.AllowedHours.Start, tr.AllowedHours.End))
			}
		}
	}

	return restrictionAllowed()
}

// EvaluateIPRestriction IP白名单检查
// 配置了白名单的每个角色都必须至少命中一条；仅做精确字符串匹配，
// 含 "/" 的CIDR条目不会命中任何IP（刻意保留的扩展点）
func EvaluateIPRestriction(roles []*models.Role, clientIP string) RestrictionResult {
	for _, role := range roles {
		restrictions, err := role.ParseRestrictions()
		if err != nil {
			continue
		}
		if len(restrictions.IPWhitelist) == 0 {
			continue
		}

		matched := false
		for _, entry := range restrictions.IPWhitelist {
			if strings.Contains(entry, "/") {
				// CIDR暂不支持，永不匹配
				continue
			}
			if entry == clientIP {
				matched = true
				break
			}
		}
		if !matched {
			return restrictionDenied(DenyIPNotAllowed,
				fmt.Sprintf("IP %s 不在角色 %s 的白名单内", clientIP, role.Name))
		}
	}

	return restrictionAllowed()
}

// EvaluateMinimumLevel 最低角色等级检查
// effectiveLevel 为用户全部角色继承闭包的最大等级
func EvaluateMinimumLevel(effectiveLevel, requiredLevel int) RestrictionResult {
	if effectiveLevel < requiredLevel {
		return restrictionDenied(DenyInsufficientLevel,
			fmt.Sprintf("角色等级不足：当前 %d，要求 %d", effectiveLevel, requiredLevel))
	}
	return restrictionAllowed()
}

func containsInt(values []int, target int) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
