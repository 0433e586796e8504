package repository

import (
	"context"
	"errors"

	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRoles(ctx context.Context, id uint, roles models.RoleSet) error
	ChangeRoles(ctx context.Context, id uint, fn func(current models.RoleSet) models.RoleSet) (*models.User, bool, error)
	SetActive(ctx context.Context, id uint, active bool) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

// GetByID always reads the primary: roles are authorization state and must
// not lag behind a grant.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	defer observability.TrackQuery("get", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByUserName returns nil, nil when no user has that name.
func (r *userRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	defer observability.TrackQuery("get_by_name", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).Where("user_name = ?", userName).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("create", "users")()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("User already exists")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"user_id": user.ID, "user_name": user.UserName})
	return nil
}

func (r *userRepository) UpdateRoles(ctx context.Context, id uint, roles models.RoleSet) error {
	defer observability.TrackQuery("update_roles", "users")()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("roles", roles)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.log.LogUpdate(ctx, map[string]any{"user_id": id, "roles": roles.String()})
	return nil
}

// ChangeRoles locks the user row and writes fn's result in the same
// transaction, so concurrent grants to one user serialize instead of
// overwriting each other. The bool reports whether the stored set changed.
func (r *userRepository) ChangeRoles(ctx context.Context, id uint, fn func(current models.RoleSet) models.RoleSet) (*models.User, bool, error) {
	defer observability.TrackQuery("change_roles", "users")()

	var user models.User
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return err
		}
		roles := fn(user.Roles)
		if roles.String() == user.Roles.String() {
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", id).Update("roles", roles).Error; err != nil {
			return err
		}
		user.Roles = roles
		changed = true
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, false, err
		}
		r.log.LogError(ctx, err, "change_roles")
		return nil, false, models.NewInternalError(err)
	}
	if changed {
		r.log.LogUpdate(ctx, map[string]any{"user_id": id, "roles": user.Roles.String()})
	}
	return &user, changed, nil
}

func (r *userRepository) SetActive(ctx context.Context, id uint, active bool) error {
	defer observability.TrackQuery("set_active", "users")()

	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.log.LogUpdate(ctx, map[string]any{"user_id": id, "active": active})
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	defer observability.TrackQuery("list", "users")()

	if limit <= 0 || limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
