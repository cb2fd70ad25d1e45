// Package repotest builds throwaway sqlite databases seeded with auth fixtures.
package repotest

import (
	"context"
	"fmt"
	"testing"

	"github.com/Skotchmaster/sst_backend/pkg/db"
	"github.com/Skotchmaster/sst_backend/pkg/hash"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/models"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/repo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const DemoPassword = "12345678"

func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.Open(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(context.Background(), gdb))

	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

type Fixture struct {
	Repo  *repo.GormRepo
	Perms map[string]models.Permission
	Roles map[string]models.Role
}

// Seed loads the stock SST roles and permissions.
func Seed(t *testing.T, gdb *gorm.DB) *Fixture {
	t.Helper()
	ctx := context.Background()
	r := repo.New(gdb)

	f := &Fixture{
		Repo:  r,
		Perms: map[string]models.Permission{},
		Roles: map[string]models.Role{},
	}

	for _, p := range []models.Permission{
		{Code: "training.view", Module: "training", Action: "view"},
		{Code: "training.progress", Module: "training", Action: "progress"},
		{Code: "checklist.view", Module: "checklist", Action: "view"},
		{Code: "checklist.manage", Module: "checklist", Action: "manage"},
		{Code: "roles.manage", Module: "roles", Action: "manage"},
		{Code: "users.manage", Module: "users", Action: "manage"},
		{Code: "training.manage", Module: "training", Action: "manage"},
		{Code: "training.assign", Module: "training", Action: "assign"},
		{Code: "training.monitor", Module: "training", Action: "monitor"},
	} {
		p := p
		require.NoError(t, r.CreatePermission(ctx, &p))
		f.Perms[p.Code] = p
	}

	grants := map[string][]string{
		"superadmin":   {"training.view", "training.progress", "checklist.view", "checklist.manage", "roles.manage", "users.manage", "training.manage", "training.assign", "training.monitor"},
		"leader":       {"training.view", "checklist.manage", "training.monitor"},
		"collaborator": {"training.view", "training.progress", "checklist.view"},
		"admin":        {"training.view", "training.progress", "checklist.view", "checklist.manage", "roles.manage"},
	}
	for _, code := range []string{"superadmin", "leader", "collaborator", "admin"} {
		role := models.Role{Name: code, Code: code}
		require.NoError(t, r.CreateRole(ctx, &role))

		perms := make([]models.Permission, 0, len(grants[code]))
		for _, pc := range grants[code] {
			perms = append(perms, f.Perms[pc])
		}
		require.NoError(t, r.ReplaceRolePermissions(ctx, role.ID, perms))
		role.Permissions = perms
		f.Roles[code] = role
	}
	return f
}

// User creates an active user holding roleCodes, password DemoPassword.
func (f *Fixture) User(t *testing.T, email string, twoFactor bool, roleCodes ...string) *models.User {
	t.Helper()
	ctx := context.Background()

	pw, err := hash.HashPassword(DemoPassword)
	require.NoError(t, err)

	u := &models.User{
		Email:            email,
		Name:             "User " + email,
		PasswordHash:     pw,
		IsActive:         true,
		TwoFactorEnabled: twoFactor,
	}
	require.NoError(t, f.Repo.CreateUser(ctx, u))
	// gorm skips zero-value bools that carry a default tag on insert
	require.NoError(t, f.Repo.DB.Model(u).Update("two_factor_enabled", twoFactor).Error)

	roles := make([]models.Role, 0, len(roleCodes))
	for _, rc := range roleCodes {
		roles = append(roles, f.Roles[rc])
	}
	require.NoError(t, f.Repo.ReplaceUserRoles(ctx, u.ID, roles))
	return u
}
