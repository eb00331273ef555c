package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestParseRestrictionsEmpty(t *testing.T) {
	role := &Role{}
	restrictions, err := role.ParseRestrictions()
	require.NoError(t, err)
	assert.True(t, restrictions.TimeRestrictions.IsEmpty())
	assert.Empty(t, restrictions.IPWhitelist)
}

func TestParseRestrictionsFull(t *testing.T) {
	role := &Role{
		Restrictions: datatypes.JSON(`{
			"time_restrictions": {"allowed_days": [1,2,3,4,5], "allowed_hours": {"start": 9, "end": 17}},
			"ip_whitelist": ["203.0.113.5"]
		}`),
	}

	restrictions, err := role.ParseRestrictions()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, restrictions.TimeRestrictions.AllowedDays)
	require.NotNil(t, restrictions.TimeRestrictions.AllowedHours)
	assert.Equal(t, 9, restrictions.TimeRestrictions.AllowedHours.Start)
	assert.Equal(t, 17, restrictions.TimeRestrictions.AllowedHours.End)
	assert.Equal(t, []string{"203.0.113.5"}, restrictions.IPWhitelist)
}

func TestParseRestrictionsInvalidJSON(t *testing.T) {
	role := &Role{Restrictions: datatypes.JSON(`{broken`)}
	_, err := role.ParseRestrictions()
	assert.Error(t, err)
}

func TestAssignmentEffectiveness(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	active := RoleAssignment{IsActive: true}
	assert.True(t, active.IsEffective(now))

	revoked := RoleAssignment{IsActive: false}
	assert.False(t, revoked.IsEffective(now))

	expiring := RoleAssignment{IsActive: true, ExpiresAt: &future}
	assert.True(t, expiring.IsEffective(now))

	expired := RoleAssignment{IsActive: true, ExpiresAt: &past}
	assert.False(t, expired.IsEffective(now))
	assert.True(t, expired.IsExpired(now))

	// 过期边界：恰好等于过期时刻视为已过期
	boundary := RoleAssignment{IsActive: true, ExpiresAt: &now}
	assert.True(t, boundary.IsExpired(now))
}

func TestAssignmentIsGlobal(t *testing.T) {
	orgID := uint(7)
	assert.True(t, (&RoleAssignment{}).IsGlobal())
	assert.False(t, (&RoleAssignment{OrganizationID: &orgID}).IsGlobal())
}

func TestUserPasswordHashing(t *testing.T) {
	user := &User{}
	require.NoError(t, user.SetPassword("S3cret!pass"))

	assert.NotEqual(t, "S3cret!pass", user.PasswordHash)
	assert.True(t, user.CheckPassword("S3cret!pass"))
	assert.False(t, user.CheckPassword("wrong"))
}
