package service

import (
	"context"
	"testing"

	"gatekeeper/internal/models"
	"gatekeeper/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		in       RegisterInput
		wantCode string
		wantMsg  string
	}{
		{"Missing password", RegisterInput{UserName: "alice"}, models.CodeValidation, MsgCredentialsRequired},
		{"Missing username", RegisterInput{Password: "password1"}, models.CodeValidation, MsgCredentialsRequired},
		{"Bad username", RegisterInput{UserName: "a b", Password: "password1"}, models.CodeValidation, ""},
		{"Short password", RegisterInput{UserName: "alice", Password: "pw"}, models.CodeValidation, ""},
		{"Success", RegisterInput{UserName: "alice", Password: "password1"}, "", ""},
		{"Duplicate", RegisterInput{UserName: "alice", Password: "password2"}, models.CodeValidation, "User already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := f.userSvc.Register(ctx, tt.in)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, models.HasCode(err, tt.wantCode))
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, err.Error())
				}
				return
			}
			require.NoError(t, err)
			assert.True(t, user.Active)
			assert.Equal(t, []models.Role{models.RoleUser}, user.Roles.Slice())
			assert.NotEqual(t, tt.in.Password, user.Password)
		})
	}
	assert.Equal(t, "Hi alice, welcome to the group!", WelcomeMessage("alice"))
}

func TestUserService_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.userSvc.Register(ctx, RegisterInput{UserName: "alice", Password: "password1"})
	require.NoError(t, err)

	got, err := f.userSvc.Authenticate(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.userSvc.Authenticate(ctx, "alice", "wrong-password")
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	_, err = f.userSvc.Authenticate(ctx, "nobody", "password1")
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	got, err = f.userSvc.ResolveBearer(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserName)

	_, err = f.userSvc.ResolveBearer(ctx, 999)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))
	assert.Equal(t, "User no longer exists", err.Error())

	require.NoError(t, f.userSvc.SetActive(ctx, user.ID, false))
	_, err = f.userSvc.Authenticate(ctx, "alice", "password1")
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))
	_, err = f.userSvc.ResolveBearer(ctx, user.ID)
	assert.Equal(t, "Account is disabled", err.Error())
}

func TestUserService_GrantRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target, err := f.userSvc.Register(ctx, RegisterInput{UserName: "carol", Password: "password1"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		grantor  Actor
		userID   uint
		role     string
		wantCode string
	}{
		{"Plain user cannot grant", alice, target.ID, "ROLE_MODERATOR", models.CodeForbidden},
		{"Super admin alone cannot grant", superAdmin, target.ID, "ROLE_MODERATOR", models.CodeForbidden},
		{"Moderator cannot grant admin", moderator, target.ID, "ROLE_ADMIN", models.CodeForbidden},
		{"Admin cannot grant super admin", admin, target.ID, "ROLE_SUPER_ADMIN", models.CodeForbidden},
		{"Unknown role", admin, target.ID, "ROLE_WIZARD", models.CodeForbidden},
		{"Unknown user", admin, 999, "ROLE_MODERATOR", models.CodeNotFound},
		{"Moderator grants moderator", moderator, target.ID, "ROLE_MODERATOR", ""},
		{"Admin grants admin", admin, target.ID, "ROLE_ADMIN", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, msg, err := f.userSvc.GrantRole(ctx, tt.grantor, tt.userID, tt.role)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, models.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			role, _ := models.ParseRole(tt.role)
			assert.True(t, user.Roles.Has(role))
			assert.Equal(t, RoleGrantedMessage("carol", role, tt.grantor.UserName), msg)
		})
	}

	stored, err := f.userSvc.ResolveBearer(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "ROLE_ADMIN,ROLE_MODERATOR,ROLE_USER", stored.Roles.String())
	assert.Contains(t, f.events.types(), notifications.EventRoleGranted)

	_, _, err = f.userSvc.GrantRole(ctx, moderator, target.ID, "ROLE_ADMIN")
	assert.Equal(t, "You don't have permission to assign the role: ROLE_ADMIN", err.Error())
	_, _, err = f.userSvc.GrantRole(ctx, admin, 999, "ROLE_ADMIN")
	assert.Equal(t, "User with ID 999 not found.", err.Error())
}

func TestUserService_RevokeAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.userSvc.CreateUser(ctx, "dave", "password1", models.NewRoleSet(models.RoleUser, models.RoleAdmin))
	require.NoError(t, err)

	_, err = f.userSvc.RevokeRole(ctx, user.ID, "ROLE_USER")
	assert.True(t, models.HasCode(err, models.CodeValidation))

	updated, err := f.userSvc.RevokeRole(ctx, user.ID, "admin")
	require.NoError(t, err)
	assert.False(t, updated.Roles.Has(models.RoleAdmin))

	_, err = f.userSvc.ListUsers(ctx, moderator, 10, 0)
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	users, err := f.userSvc.ListUsers(ctx, admin, 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "dave", users[0].UserName)
}

func TestUserService_AssignRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.userSvc.CreateUser(ctx, "erin", "password1", models.NewRoleSet(models.RoleUser))
	require.NoError(t, err)

	updated, err := f.userSvc.AssignRole(ctx, user.ID, "super_admin")
	require.NoError(t, err)
	assert.True(t, updated.Roles.Has(models.RoleSuperAdmin))
	assert.Contains(t, f.events.types(), notifications.EventRoleGranted)

	_, err = f.userSvc.AssignRole(ctx, user.ID, "ROLE_OWNER")
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = f.userSvc.AssignRole(ctx, 404, "ROLE_ADMIN")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}
