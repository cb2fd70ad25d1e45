package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/sst_backend/pkg/tokens"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/repo"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/transport"
	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller as currently stored, not as the token remembers it.
type Principal struct {
	Profile transport.UserProfile

	roles map[string]struct{}
	perms map[string]struct{}
}

func NewPrincipal(p transport.UserProfile) *Principal {
	pr := &Principal{
		Profile: p,
		roles:   make(map[string]struct{}, len(p.Roles)),
		perms:   make(map[string]struct{}, len(p.Permissions)),
	}
	for _, r := range p.Roles {
		pr.roles[r] = struct{}{}
	}
	for _, c := range p.Permissions {
		pr.perms[c] = struct{}{}
	}
	return pr
}

func (p *Principal) UserID() uint { return p.Profile.ID }

func (p *Principal) HasRole(code string) bool {
	_, ok := p.roles[code]
	return ok
}

func (p *Principal) HasPermission(code string) bool {
	_, ok := p.perms[code]
	return ok
}

// Authenticate resolves an access token to the live user record.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.Codec.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := s.Repo.LoadUserWithRolesAndPermissions(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	return NewPrincipal(Profile(user)), nil
}

func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*transport.UserProfile, error) {
	p, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &p.Profile, nil
}

// RequireRoles passes when the principal holds any of codes.
func RequireRoles(p *Principal, codes ...string) error {
	if p == nil {
		return ErrUnauthorized
	}
	for _, c := range codes {
		if p.HasRole(c) {
			return nil
		}
	}
	return ErrForbidden
}

// RequirePermissions passes only when the principal holds every one of codes.
func RequirePermissions(p *Principal, codes ...string) error {
	if p == nil {
		return ErrUnauthorized
	}
	for _, c := range codes {
		if !p.HasPermission(c) {
			return fmt.Errorf("%w: missing %s", ErrForbidden, c)
		}
	}
	return nil
}

func jwtSubject(userID uint) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: tokens.Subject(userID)}
}
