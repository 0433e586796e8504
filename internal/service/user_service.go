package service

import (
	"context"
	"strings"

	"gatekeeper/internal/access"
	"gatekeeper/internal/models"
	"gatekeeper/internal/notifications"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/repository"
	"gatekeeper/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo repository.UserRepository
	events   EventPublisher
	cost     int
}

type RegisterInput struct {
	UserName string
	Password string
}

func NewUserService(userRepo repository.UserRepository, events EventPublisher) *UserService {
	return &UserService{userRepo: userRepo, events: events, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.cost = cost
	return s
}

// Register creates an active account holding only ROLE_USER.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.UserName)
	if name == "" || in.Password == "" {
		return nil, models.NewValidationError(MsgCredentialsRequired)
	}
	if err := validation.ValidateUsername(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	return s.create(ctx, name, in.Password, models.NewRoleSet(models.DefaultRole))
}

// CreateUser provisions an account with explicit roles. It bypasses grant
// rules and is reserved for operator tooling.
func (s *UserService) CreateUser(ctx context.Context, userName, password string, roles models.RoleSet) (*models.User, error) {
	name := strings.TrimSpace(userName)
	if name == "" || password == "" {
		return nil, models.NewValidationError(MsgCredentialsRequired)
	}
	if len(roles) == 0 {
		roles = models.NewRoleSet(models.DefaultRole)
	}
	return s.create(ctx, name, password, roles)
}

func (s *UserService) create(ctx context.Context, name, password string, roles models.RoleSet) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		UserName: name,
		Password: string(hash),
		Active:   true,
		Roles:    roles,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks a username and password pair.
func (s *UserService) Authenticate(ctx context.Context, userName, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUserName(ctx, strings.TrimSpace(userName))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if !user.Active {
		return nil, models.NewUnauthorizedError("Account is disabled")
	}
	return user, nil
}

// ResolveBearer loads the subject of a verified token. A deleted or disabled
// account is Unauthorized, not NotFound.
func (s *UserService) ResolveBearer(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("User no longer exists")
		}
		return nil, err
	}
	if !user.Active {
		return nil, models.NewUnauthorizedError("Account is disabled")
	}
	return user, nil
}

// ListUsers requires ADMIN_TIER.
func (s *UserService) ListUsers(ctx context.Context, actor Actor, limit, offset int) ([]models.User, error) {
	if err := access.Require(actor.Roles, access.CapabilityAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.List(ctx, limit, offset)
}

// GrantRole adds rawRole to the target user. The grantor needs
// MODERATOR_TIER and the role must be in the grantor's allow-list.
func (s *UserService) GrantRole(ctx context.Context, grantor Actor, userID uint, rawRole string) (*models.User, string, error) {
	span, ctx := observability.StartServiceSpan(ctx, "UserService", "GrantRole",
		attribute.Int64("user.id", int64(userID)),
		attribute.String("role", rawRole))
	defer span.End()

	if err := access.Require(grantor.Roles, access.CapabilityModerator); err != nil {
		observability.RecordRoleGrant(roleLabel(rawRole), err)
		return nil, "", err
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, "", err
	}

	role, ok := models.ParseRole(rawRole)
	if !ok {
		err := models.NewForbiddenError("You don't have permission to assign the role: " + rawRole)
		observability.RecordRoleGrant("unknown", err)
		return nil, "", err
	}
	if err := access.CheckGrant(grantor.Roles, role); err != nil {
		observability.RecordRoleGrant(string(role), err)
		return nil, "", err
	}

	user, _, err := s.userRepo.ChangeRoles(ctx, userID, func(current models.RoleSet) models.RoleSet {
		return current.Add(role)
	})
	if err != nil {
		span.SetError(err)
		return nil, "", err
	}
	observability.RecordRoleGrant(string(role), nil)
	publish(ctx, s.events, notifications.ModerationEvent{
		Type:   notifications.EventRoleGranted,
		UserID: user.ID,
		Actor:  grantor.UserName,
		Role:   string(role),
	})

	return user, RoleGrantedMessage(user.UserName, role, grantor.UserName), nil
}

// AssignRole adds role to the user outside the grant rules. It backs operator
// tooling that runs with direct database access.
func (s *UserService) AssignRole(ctx context.Context, userID uint, rawRole string) (*models.User, error) {
	role, ok := models.ParseRole(rawRole)
	if !ok {
		return nil, models.NewValidationError("Unknown role: " + rawRole)
	}
	user, changed, err := s.userRepo.ChangeRoles(ctx, userID, func(current models.RoleSet) models.RoleSet {
		return current.Add(role)
	})
	if err != nil || !changed {
		return user, err
	}
	publish(ctx, s.events, notifications.ModerationEvent{
		Type:   notifications.EventRoleGranted,
		UserID: user.ID,
		Actor:  "operator",
		Role:   string(role),
	})
	return user, nil
}

// RevokeRole removes role from the user. It is an operator action and is not
// subject to grant rules; ROLE_USER is never removed.
func (s *UserService) RevokeRole(ctx context.Context, userID uint, rawRole string) (*models.User, error) {
	role, ok := models.ParseRole(rawRole)
	if !ok {
		return nil, models.NewValidationError("Unknown role: " + rawRole)
	}
	if role == models.DefaultRole {
		return nil, models.NewValidationError("ROLE_USER cannot be revoked")
	}
	user, changed, err := s.userRepo.ChangeRoles(ctx, userID, func(current models.RoleSet) models.RoleSet {
		return current.Remove(role)
	})
	if err != nil || !changed {
		return user, err
	}
	publish(ctx, s.events, notifications.ModerationEvent{
		Type:   notifications.EventRoleRevoked,
		UserID: user.ID,
		Role:   string(role),
	})
	return user, nil
}

// SetActive enables or disables an account.
func (s *UserService) SetActive(ctx context.Context, userID uint, active bool) error {
	return s.userRepo.SetActive(ctx, userID, active)
}

func roleLabel(raw string) string {
	if role, ok := models.ParseRole(raw); ok {
		return string(role)
	}
	return "unknown"
}
