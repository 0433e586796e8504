package access

import (
	"testing"

	"gatekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		roles    models.RoleSet
		expected []Capability
		absent   []Capability
	}{
		{
			name:     "no roles",
			roles:    models.NewRoleSet(),
			expected: []Capability{CapabilityNone},
			absent:   []Capability{CapabilityUser, CapabilityModerator},
		},
		{
			name:     "plain user",
			roles:    models.NewRoleSet(models.RoleUser),
			expected: []Capability{CapabilityUser},
			absent:   []Capability{CapabilityNone, CapabilityModerator, CapabilityAdmin},
		},
		{
			name:     "moderator",
			roles:    models.NewRoleSet(models.RoleUser, models.RoleModerator),
			expected: []Capability{CapabilityUser, CapabilityModerator},
			absent:   []Capability{CapabilityAdmin, CapabilitySuperAdmin},
		},
		{
			name:     "admin is also moderator tier",
			roles:    models.NewRoleSet(models.RoleAdmin),
			expected: []Capability{CapabilityModerator, CapabilityAdmin},
			absent:   []Capability{CapabilitySuperAdmin, CapabilityUser},
		},
		{
			name:     "super admin alone",
			roles:    models.NewRoleSet(models.RoleSuperAdmin),
			expected: []Capability{CapabilitySuperAdmin},
			absent:   []Capability{CapabilityModerator, CapabilityAdmin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := Resolve(tt.roles)
			for _, c := range tt.expected {
				assert.True(t, caps.Has(c), "expected %s", c)
			}
			for _, c := range tt.absent {
				assert.False(t, caps.Has(c), "unexpected %s", c)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	t.Parallel()

	err := Require(models.NewRoleSet(models.RoleUser), CapabilityModerator)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	assert.NoError(t, Require(models.NewRoleSet(models.RoleModerator), CapabilityModerator))
	assert.NoError(t, Require(models.NewRoleSet(models.RoleAdmin), CapabilitySuperAdmin, CapabilityAdmin))
}

func TestCheckGrant(t *testing.T) {
	t.Parallel()

	admin := models.NewRoleSet(models.RoleAdmin)
	moderator := models.NewRoleSet(models.RoleModerator)
	superAdmin := models.NewRoleSet(models.RoleSuperAdmin)

	assert.NoError(t, CheckGrant(admin, models.RoleAdmin))
	assert.NoError(t, CheckGrant(admin, models.RoleModerator))
	assert.Error(t, CheckGrant(admin, models.RoleSuperAdmin))

	assert.NoError(t, CheckGrant(moderator, models.RoleModerator))
	assert.Error(t, CheckGrant(moderator, models.RoleAdmin))

	err := CheckGrant(superAdmin, models.RoleModerator)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeForbidden))
	assert.Contains(t, err.Error(), "ROLE_MODERATOR")
}

func TestAssignableRoles_HighestTierWins(t *testing.T) {
	t.Parallel()
	roles := models.NewRoleSet(models.RoleModerator, models.RoleAdmin)
	assert.Equal(t, AdminAssignable, AssignableRoles(roles))
	assert.Nil(t, AssignableRoles(models.NewRoleSet(models.RoleUser)))
}
