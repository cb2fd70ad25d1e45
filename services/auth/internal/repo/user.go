package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/sst_backend/services/auth/internal/models"
	"gorm.io/gorm"
)

func (r *GormRepo) withRoles(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Preload("Roles.Permissions")
}

// FindUserByEmail matches the email exactly, case included.
func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.withRoles(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r *GormRepo) LoadUserWithRolesAndPermissions(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.withRoles(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return mapErr(r.DB.WithContext(ctx).Create(u).Error)
}

func (r *GormRepo) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("hashed_password", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) SetUserActive(ctx context.Context, id uint, active bool) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}
