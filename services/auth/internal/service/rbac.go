package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Skotchmaster/sst_backend/pkg/logging"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/models"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/repo"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/transport"
)

func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repo.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrConflict, op)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (s *AuthService) ListRoles(ctx context.Context) ([]models.Role, error) {
	roles, err := s.Repo.ListRoles(ctx)
	if err != nil {
		return nil, storeErr("list roles", err)
	}
	return roles, nil
}

func (s *AuthService) GetRole(ctx context.Context, id uint) (*models.Role, error) {
	role, err := s.Repo.GetRole(ctx, id)
	if err != nil {
		return nil, storeErr("get role", err)
	}
	return role, nil
}

func validateRole(in transport.RoleRequest) (transport.RoleRequest, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" || in.Code == "" {
		return in, fmt.Errorf("%w: role name and code are required", ErrBadRequest)
	}
	return in, nil
}

func (s *AuthService) CreateRole(ctx context.Context, in transport.RoleRequest) (*models.Role, error) {
	in, err := validateRole(in)
	if err != nil {
		return nil, err
	}

	var id uint
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		role := &models.Role{Name: in.Name, Code: in.Code, Description: in.Description}
		if err := tx.CreateRole(ctx, role); err != nil {
			return storeErr("role code "+in.Code, err)
		}
		id = role.ID
		if len(in.PermissionCodes) == 0 {
			return nil
		}
		return s.syncRolePermissions(ctx, tx, role.ID, in.PermissionCodes)
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("role_created", "role_id", id, "code", in.Code)
	return s.GetRole(ctx, id)
}

// UpdateRole overwrites name, code and description. Permissions change only when PermissionCodes is non-nil.
func (s *AuthService) UpdateRole(ctx context.Context, id uint, in transport.RoleRequest) (*models.Role, error) {
	in, err := validateRole(in)
	if err != nil {
		return nil, err
	}

	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.UpdateRole(ctx, &models.Role{ID: id, Name: in.Name, Code: in.Code, Description: in.Description}); err != nil {
			return storeErr("role code "+in.Code, err)
		}
		if in.PermissionCodes == nil {
			return nil
		}
		return s.syncRolePermissions(ctx, tx, id, in.PermissionCodes)
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("role_updated", "role_id", id, "code", in.Code)
	return s.GetRole(ctx, id)
}

// AssignPermissions replaces the role's permission set with codes.
func (s *AuthService) AssignPermissions(ctx context.Context, roleID uint, codes []string) (*models.Role, error) {
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.GetRole(ctx, roleID); err != nil {
			return storeErr("get role", err)
		}
		return s.syncRolePermissions(ctx, tx, roleID, codes)
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("role_permissions_assigned", "role_id", roleID, "count", len(codes))
	return s.GetRole(ctx, roleID)
}

func (s *AuthService) syncRolePermissions(ctx context.Context, tx *repo.GormRepo, roleID uint, codes []string) error {
	perms, err := s.resolvePermissions(ctx, tx, codes)
	if err != nil {
		return err
	}
	if err := tx.ReplaceRolePermissions(ctx, roleID, perms); err != nil {
		return storeErr("replace role permissions", err)
	}
	return nil
}

// resolvePermissions drops unknown codes, or rejects them when strict mode is on.
func (s *AuthService) resolvePermissions(ctx context.Context, r *repo.GormRepo, codes []string) ([]models.Permission, error) {
	want := uniq(codes)
	perms, err := r.FindPermissionsByCodes(ctx, want)
	if err != nil {
		return nil, storeErr("find permissions", err)
	}
	if len(perms) == len(want) {
		return perms, nil
	}

	known := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		known[p.Code] = struct{}{}
	}
	var unknown []string
	for _, c := range want {
		if _, ok := known[c]; !ok {
			unknown = append(unknown, c)
		}
	}
	if s.Cfg.StrictPermissionCodes {
		return nil, fmt.Errorf("%w: unknown permission codes %s", ErrBadRequest, strings.Join(unknown, ", "))
	}
	logging.FromContext(ctx).Warn("permission_codes_ignored", "codes", unknown)
	return perms, nil
}

func (s *AuthService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	perms, err := s.Repo.ListPermissions(ctx)
	if err != nil {
		return nil, storeErr("list permissions", err)
	}
	return perms, nil
}

func (s *AuthService) CreatePermission(ctx context.Context, in transport.PermissionRequest) (*models.Permission, error) {
	perm := &models.Permission{
		Code:        strings.TrimSpace(in.Code),
		Module:      strings.TrimSpace(in.Module),
		Action:      strings.TrimSpace(in.Action),
		Description: in.Description,
	}
	if perm.Code == "" || perm.Module == "" || perm.Action == "" {
		return nil, fmt.Errorf("%w: permission code, module and action are required", ErrBadRequest)
	}
	if err := s.Repo.CreatePermission(ctx, perm); err != nil {
		return nil, storeErr("permission code "+perm.Code, err)
	}
	logging.FromContext(ctx).Info("permission_created", "code", perm.Code)
	return perm, nil
}

// AssignRolesToUser replaces the user's roles with those codes that resolve. At least one must.
func (s *AuthService) AssignRolesToUser(ctx context.Context, userID uint, codes []string) (*transport.UserProfile, error) {
	var profile transport.UserProfile
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.GetUserByID(ctx, userID); err != nil {
			return storeErr("get user", err)
		}
		roles, err := tx.FindRolesByCodes(ctx, uniq(codes))
		if err != nil {
			return storeErr("find roles", err)
		}
		if len(roles) == 0 {
			return fmt.Errorf("%w: no matching roles", ErrBadRequest)
		}
		if err := tx.ReplaceUserRoles(ctx, userID, roles); err != nil {
			return storeErr("replace user roles", err)
		}
		user, err := tx.LoadUserWithRolesAndPermissions(ctx, userID)
		if err != nil {
			return storeErr("load user", err)
		}
		profile = Profile(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("user_roles_assigned", "user_id", userID, "roles", profile.Roles)
	return &profile, nil
}

func uniq(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
