package services

import (
	"ekko/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

// restrictedRole 构造带限制配置的角色
func restrictedRole(name, restrictions string) *models.Role {
	role := &models.Role{
		Name:     name,
		IsActive: true,
	}
	if restrictions != "" {
		role.Restrictions = datatypes.JSON(restrictions)
	}
	return role
}

// 2024-03-13 是周三（weekday=3）
var wednesday = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

func atHour(hour int) time.Time {
	return time.Date(2024, 3, 13, hour, 30, 0, 0, time.UTC)
}

func TestTimeRestrictionsUnrestricted(t *testing.T) {
	roles := []*models.Role{restrictedRole("viewer", "")}
	result := EvaluateTimeRestrictions(roles, wednesday)
	assert.True(t, result.Allowed)
}

func TestTimeRestrictionsDayAllowed(t *testing.T) {
	roles := []*models.Role{restrictedRole("weekday_only",
		`{"time_restrictions":{"allowed_days":[1,2,3,4,5]}}`)}
	result := EvaluateTimeRestrictions(roles, wednesday)
	assert.True(t, result.Allowed)
}

func TestTimeRestrictionsDayDenied(t *testing.T) {
	roles := []*models.Role{restrictedRole("weekday_only",
		`{"time_restrictions":{"allowed_days":[1,2,3,4,5]}}`)}

	// 2024-03-16 是周六（weekday=6）
	saturday := time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC)
	result := EvaluateTimeRestrictions(roles, saturday)
	assert.False(t, result.Allowed)
	assert.Equal(t, DenyDayNotAllowed, result.Code)
}

func TestTimeRestrictionsHourHalfOpen(t *testing.T) {
	roles := []*models.Role{restrictedRole("business_hours",
		`{"time_restrictions":{"allowed_hours":{"start":9,"end":17}}}`)}

	// [9, 17)：9点和16点允许，8点和17点拒绝
	assert.True(t, EvaluateTimeRestrictions(roles, atHour(9)).Allowed)
	assert.True(t, EvaluateTimeRestrictions(roles, atHour(16)).Allowed)

	denied := EvaluateTimeRestrictions(roles, atHour(8))
	assert.False(t, denied.Allowed)
	assert.Equal(t, DenyHourNotAllowed, denied.Code)

	denied = EvaluateTimeRestrictions(roles, atHour(17))
	assert.False(t, denied.Allowed)
	assert.Equal(t, DenyHourNotAllowed, denied.Code)
}

func TestTimeRestrictionsConjunctiveAcrossRoles(t *testing.T) {
	// 一个角色允许当前时刻，另一个不允许：整体拒绝
	roles := []*models.Role{
		restrictedRole("always", ""),
		restrictedRole("morning_only",
			`{"time_restrictions":{"allowed_hours":{"start":6,"end":9}}}`),
	}
	result := EvaluateTimeRestrictions(roles, atHour(10))
	assert.False(t, result.Allowed)
	assert.Equal(t, DenyHourNotAllowed, result.Code)
}

func TestTimeRestrictionsCorruptConfigIgnored(t *testing.T) {
	roles := []*models.Role{restrictedRole("broken", `{invalid json`)}
	result := EvaluateTimeRestrictions(roles, wednesday)
	assert.True(t, result.Allowed)
}

func TestIPRestrictionExactMatch(t *testing.T) {
	roles := []*models.Role{restrictedRole("office_only",
		`{"ip_whitelist":["203.0.113.5","198.51.100.7"]}`)}

	assert.True(t, EvaluateIPRestriction(roles, "203.0.113.5").Allowed)

	denied := EvaluateIPRestriction(roles, "203.0.113.6")
	assert.False(t, denied.Allowed)
	assert.Equal(t, DenyIPNotAllowed, denied.Code)
}

func TestIPRestrictionNoWhitelist(t *testing.T) {
	roles := []*models.Role{restrictedRole("viewer", "")}
	assert.True(t, EvaluateIPRestriction(roles, "203.0.113.5").Allowed)
}

func TestIPRestrictionCIDRNeverMatches(t *testing.T) {
	roles := []*models.Role{restrictedRole("office_only",
		`{"ip_whitelist":["203.0.113.0/24"]}`)}

	// CIDR条目不做前缀匹配，网段内的IP同样被拒绝
	denied := EvaluateIPRestriction(roles, "203.0.113.5")
	assert.False(t, denied.Allowed)
	assert.Equal(t, DenyIPNotAllowed, denied.Code)
}

func TestIPRestrictionEveryRestrictedRoleMustMatch(t *testing.T) {
	roles := []*models.Role{
		restrictedRole("office_a", `{"ip_whitelist":["203.0.113.5"]}`),
		restrictedRole("office_b", `{"ip_whitelist":["198.51.100.7"]}`),
	}

	// 只命中其中一个角色的白名单：拒绝
	denied := EvaluateIPRestriction(roles, "203.0.113.5")
	assert.False(t, denied.Allowed)
}

func TestMinimumLevel(t *testing.T) {
	assert.True(t, EvaluateMinimumLevel(50, 50).Allowed)
	assert.True(t, EvaluateMinimumLevel(60, 50).Allowed)

	denied := EvaluateMinimumLevel(49, 50)
	assert.False(t, denied.Allowed)
	assert.Equal(t, DenyInsufficientLevel, denied.Code)
}
