package models

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Role is an authorization tag held by a user.
type Role string

const (
	RoleUser       Role = "ROLE_USER"
	RoleModerator  Role = "ROLE_MODERATOR"
	RoleAdmin      Role = "ROLE_ADMIN"
	RoleSuperAdmin Role = "ROLE_SUPER_ADMIN"
)

// DefaultRole is assigned to users that register without roles.
const DefaultRole = RoleUser

const roleDelimiter = ","

// ParseRole normalizes a role tag, accepting the short form ("admin") too.
func ParseRole(raw string) (Role, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	if !strings.HasPrefix(s, "ROLE_") {
		s = "ROLE_" + s
	}
	switch r := Role(s); r {
	case RoleUser, RoleModerator, RoleAdmin, RoleSuperAdmin:
		return r, true
	}
	return "", false
}

// RoleSet is an unordered set of roles. It is stored as a delimited string
// and only becomes a string at the database boundary.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// ParseRoleSet parses the storage form. Unknown tags are dropped.
func ParseRoleSet(raw string) RoleSet {
	set := RoleSet{}
	for _, part := range strings.Split(raw, roleDelimiter) {
		if r, ok := ParseRole(part); ok {
			set[r] = struct{}{}
		}
	}
	return set
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// HasAny reports whether at least one of roles is in the set.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Add returns a copy of the set with r included.
func (s RoleSet) Add(r Role) RoleSet {
	out := make(RoleSet, len(s)+1)
	for k := range s {
		out[k] = struct{}{}
	}
	out[r] = struct{}{}
	return out
}

// Remove returns a copy of the set without r.
func (s RoleSet) Remove(r Role) RoleSet {
	out := make(RoleSet, len(s))
	for k := range s {
		if k != r {
			out[k] = struct{}{}
		}
	}
	return out
}

// Slice returns the roles in stable order.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the storage form.
func (s RoleSet) String() string {
	roles := s.Slice()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, roleDelimiter)
}

// Value implements driver.Valuer.
func (s RoleSet) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *RoleSet) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = RoleSet{}
	case string:
		*s = ParseRoleSet(v)
	case []byte:
		*s = ParseRoleSet(string(v))
	default:
		return fmt.Errorf("unsupported roles column type %T", value)
	}
	return nil
}

// MarshalText keeps JSON output in the familiar "ROLE_A,ROLE_B" shape.
func (s RoleSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the delimited form.
func (s *RoleSet) UnmarshalText(b []byte) error {
	*s = ParseRoleSet(string(b))
	return nil
}

// User is a registered account.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserName  string    `gorm:"uniqueIndex;not null;size:64" json:"user_name"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Active    bool      `gorm:"not null" json:"active"`
	Roles     RoleSet   `gorm:"type:varchar(255);not null;default:''" json:"roles" swaggertype:"string" example:"ROLE_MODERATOR,ROLE_USER"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
