// Package access resolves a principal's role set into capability tiers and
// guards operations that require them.
package access

import (
	"strings"

	"gatekeeper/internal/models"
)

// Capability is a named permission level derived from one or more roles.
type Capability string

const (
	CapabilityNone       Capability = "NONE"
	CapabilityUser       Capability = "USER_TIER"
	CapabilityModerator  Capability = "MODERATOR_TIER"
	CapabilityAdmin      Capability = "ADMIN_TIER"
	CapabilitySuperAdmin Capability = "SUPER_ADMIN_TIER"
)

// capabilityRoles lists, per capability, the roles that confer it.
var capabilityRoles = map[Capability][]models.Role{
	CapabilityUser:       {models.RoleUser},
	CapabilityModerator:  {models.RoleAdmin, models.RoleModerator},
	CapabilityAdmin:      {models.RoleAdmin},
	CapabilitySuperAdmin: {models.RoleSuperAdmin},
}

// Allow-lists of roles a grantor may hand out, keyed by the grantor's tier.
var (
	AdminAssignable     = []models.Role{models.RoleAdmin, models.RoleModerator}
	ModeratorAssignable = []models.Role{models.RoleModerator}
)

// CapabilitySet is the resolved set of capabilities for one actor.
type CapabilitySet map[Capability]struct{}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Resolve computes every capability conferred by roles.
func Resolve(roles models.RoleSet) CapabilitySet {
	set := CapabilitySet{}
	for capability, granting := range capabilityRoles {
		if roles.HasAny(granting...) {
			set[capability] = struct{}{}
		}
	}
	if len(set) == 0 {
		set[CapabilityNone] = struct{}{}
	}
	return set
}

// HasCapability reports whether roles confer c.
func HasCapability(roles models.RoleSet, c Capability) bool {
	return roles.HasAny(capabilityRoles[c]...)
}

// Require returns a Forbidden error unless roles confer at least one of caps.
func Require(roles models.RoleSet, caps ...Capability) error {
	for _, c := range caps {
		if HasCapability(roles, c) {
			return nil
		}
	}
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return models.NewForbiddenError("Access denied: requires " + strings.Join(names, " or "))
}

// AssignableRoles returns the roles a grantor holding roles may assign.
// The highest tier wins; only admins and moderators may grant anything.
func AssignableRoles(roles models.RoleSet) []models.Role {
	switch {
	case roles.Has(models.RoleAdmin):
		return AdminAssignable
	case roles.Has(models.RoleModerator):
		return ModeratorAssignable
	default:
		return nil
	}
}

// CheckGrant fails with Forbidden when role is outside the grantor's allow-list.
func CheckGrant(grantor models.RoleSet, role models.Role) error {
	for _, allowed := range AssignableRoles(grantor) {
		if allowed == role {
			return nil
		}
	}
	return models.NewForbiddenError("You don't have permission to assign the role: " + string(role))
}
