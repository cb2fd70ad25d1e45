package repo

import (
	"context"

	"github.com/Skotchmaster/sst_backend/services/auth/internal/models"
)

func (r *GormRepo) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.DB.WithContext(ctx).Preload("Permissions").Order("id").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *GormRepo) GetRole(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	if err := r.DB.WithContext(ctx).Preload("Permissions").Where("id = ?", id).First(&role).Error; err != nil {
		return nil, mapErr(err)
	}
	return &role, nil
}

func (r *GormRepo) CreateRole(ctx context.Context, role *models.Role) error {
	return mapErr(r.DB.WithContext(ctx).Omit("Permissions").Create(role).Error)
}

func (r *GormRepo) UpdateRole(ctx context.Context, role *models.Role) error {
	res := r.DB.WithContext(ctx).Model(&models.Role{}).
		Where("id = ?", role.ID).
		Select("name", "code", "description").
		Updates(map[string]any{
			"name":        role.Name,
			"code":        role.Code,
			"description": role.Description,
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) FindRolesByCodes(ctx context.Context, codes []string) ([]models.Role, error) {
	var roles []models.Role
	if len(codes) == 0 {
		return roles, nil
	}
	if err := r.DB.WithContext(ctx).Where("code IN ?", codes).Order("id").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// ReplaceUserRoles makes roles exactly the user's role set.
func (r *GormRepo) ReplaceUserRoles(ctx context.Context, userID uint, roles []models.Role) error {
	user := models.User{ID: userID}
	assoc := r.DB.WithContext(ctx).Model(&user).Association("Roles")
	if len(roles) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(roles)
}

func (r *GormRepo) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	if err := r.DB.WithContext(ctx).Order("code").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *GormRepo) CreatePermission(ctx context.Context, perm *models.Permission) error {
	return mapErr(r.DB.WithContext(ctx).Create(perm).Error)
}

func (r *GormRepo) FindPermissionsByCodes(ctx context.Context, codes []string) ([]models.Permission, error) {
	var perms []models.Permission
	if len(codes) == 0 {
		return perms, nil
	}
	if err := r.DB.WithContext(ctx).Where("code IN ?", codes).Order("id").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// ReplaceRolePermissions makes perms exactly the role's permission set.
func (r *GormRepo) ReplaceRolePermissions(ctx context.Context, roleID uint, perms []models.Permission) error {
	role := models.Role{ID: roleID}
	assoc := r.DB.WithContext(ctx).Model(&role).Association("Permissions")
	if len(perms) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(perms)
}
