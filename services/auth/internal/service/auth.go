package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Skotchmaster/sst_backend/pkg/hash"
	"github.com/Skotchmaster/sst_backend/pkg/logging"
	"github.com/Skotchmaster/sst_backend/pkg/metrics"
	"github.com/Skotchmaster/sst_backend/pkg/tokens"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/audit"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/models"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/notify"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/repo"
	"github.com/Skotchmaster/sst_backend/services/auth/internal/transport"
)

const (
	OTPSubject = "Codigo de acceso SST"
	tokenType  = "bearer"

	outcomeChallenge = "challenge"
)

type Config struct {
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	OTPTTL                time.Duration
	StrictPermissionCodes bool
}

func DefaultConfig() Config {
	return Config{
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 15 * 24 * time.Hour,
		OTPTTL:     5 * time.Minute,
	}
}

// AuthService holds only immutable collaborators and is safe for concurrent use.
type AuthService struct {
	Repo     *repo.GormRepo
	Codec    *tokens.Codec
	Notifier notify.Notifier
	Audit    audit.Sink
	Metrics  *metrics.Registry
	Cfg      Config
	Now      func() time.Time
}

type Option func(*AuthService)

func WithAudit(s audit.Sink) Option {
	return func(a *AuthService) { a.Audit = s }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(a *AuthService) { a.Metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *AuthService) { a.Now = now }
}

func New(r *repo.GormRepo, codec *tokens.Codec, n notify.Notifier, cfg Config, opts ...Option) *AuthService {
	s := &AuthService{
		Repo:     r,
		Codec:    codec,
		Notifier: n,
		Audit:    audit.Nop{},
		Cfg:      cfg,
		Now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *AuthService) now() time.Time {
	return s.Now().UTC()
}

func (s *AuthService) record(ctx context.Context, event string, userID uint, email, outcome string, err error) {
	s.Metrics.AuthEvent(event, outcome)

	ev := audit.Event{
		Type:    event,
		UserID:  userID,
		Email:   email,
		IP:      audit.ClientIP(ctx),
		Outcome: outcome,
		Reason:  reason(err),
		At:      s.now(),
	}
	if aerr := s.Audit.Record(ctx, ev); aerr != nil {
		logging.FromContext(ctx).Warn("audit_failed", "event", event, "error", aerr)
	}
}

// Login checks credentials and either finishes authentication or opens an OTP challenge.
func (s *AuthService) Login(ctx context.Context, email, password string) (*transport.LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", MaskEmail(email))

	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil || !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid_credentials")
		s.record(ctx, audit.EventLogin, 0, email, metrics.OutcomeFailure, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		l.Warn("login_failed", "status", 403, "reason", "account_disabled", "user_id", user.ID)
		s.record(ctx, audit.EventLogin, user.ID, email, metrics.OutcomeFailure, ErrAccountDisabled)
		return nil, ErrAccountDisabled
	}

	if !user.TwoFactorEnabled {
		var resp *transport.AuthResponse
		err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
			if err := tx.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
				return err
			}
			var err error
			resp, err = s.buildAuthResponse(ctx, tx, user)
			return err
		})
		if err != nil {
			l.Error("login_failed", "status", 500, "user_id", user.ID, "error", err)
			return nil, err
		}
		s.record(ctx, audit.EventLogin, user.ID, email, metrics.OutcomeSuccess, nil)
		return &transport.LoginResult{Auth: resp}, nil
	}

	challenge, err := s.openChallenge(ctx, user)
	if err != nil {
		l.Error("login_failed", "status", 500, "user_id", user.ID, "reason", reason(err), "error", err)
		s.record(ctx, audit.EventLogin, user.ID, email, metrics.OutcomeFailure, err)
		return nil, err
	}
	s.record(ctx, audit.EventLogin, user.ID, email, outcomeChallenge, nil)
	return &transport.LoginResult{Challenge: challenge}, nil
}

func (s *AuthService) openChallenge(ctx context.Context, user *models.User) (*transport.OTPChallenge, error) {
	l := logging.FromContext(ctx).With("svc", "auth.otp", "user_id", user.ID)
	now := s.now()

	if n, err := s.Repo.PurgeExpiredOTP(ctx, user.ID, models.PurposeLogin, now); err != nil {
		l.Warn("otp_purge_failed", "error", err)
	} else if n > 0 {
		l.Debug("otp_purged", "count", n)
	}

	code, err := tokens.NewOTPCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	otp := &models.TwoFactorCode{
		UserID:    user.ID,
		Code:      hash.Sha256Hex(code),
		Purpose:   models.PurposeLogin,
		SentTo:    user.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.Cfg.OTPTTL),
	}
	if err := s.Repo.CreateOTP(ctx, otp); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	minutes := int(s.Cfg.OTPTTL / time.Minute)
	body := fmt.Sprintf("Tu codigo OTP es: %s. Expira en %d minutos.", code, minutes)
	if err := s.Notifier.Send(ctx, user.Email, OTPSubject, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotificationFailure, err)
	}
	l.Info("otp_sent", "otp_id", otp.ID)

	pending, _, err := s.Codec.Issue(&tokens.PendingClaims{
		OTPID: otp.ID,
		RegisteredClaims: jwtSubject(user.ID),
	}, s.Cfg.OTPTTL)
	if err != nil {
		return nil, fmt.Errorf("issue pending token: %w", err)
	}

	return &transport.OTPChallenge{
		PendingToken: pending,
		OTPExpiresIn: int64(s.Cfg.OTPTTL / time.Second),
		MaskedEmail:  MaskEmail(user.Email),
	}, nil
}

// VerifyOTP completes a challenge. A code is accepted at most once.
func (s *AuthService) VerifyOTP(ctx context.Context, pendingToken, code string) (*transport.AuthResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.verify_otp")

	resp, userID, err := s.verifyOTP(ctx, pendingToken, code)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrExpired) || errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrNotFound) {
			l.Warn("otp_verify_failed", "user_id", userID, "reason", reason(err))
		} else {
			l.Error("otp_verify_failed", "status", 500, "user_id", userID, "error", err)
		}
		s.record(ctx, audit.EventOTPVerify, userID, "", metrics.OutcomeFailure, err)
		return nil, err
	}
	s.record(ctx, audit.EventOTPVerify, userID, resp.User.Email, metrics.OutcomeSuccess, nil)
	return resp, nil
}

func (s *AuthService) verifyOTP(ctx context.Context, pendingToken, code string) (*transport.AuthResponse, uint, error) {
	claims, err := s.Codec.VerifyPending(pendingToken)
	if err != nil {
		return nil, 0, ErrUnauthorized
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, 0, ErrUnauthorized
	}

	otp, err := s.Repo.FindOTP(ctx, claims.OTPID, userID, models.PurposeLogin)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, userID, ErrUnauthorized
	}
	if err != nil {
		return nil, userID, fmt.Errorf("load otp: %w", err)
	}

	now := s.now()
	if !otp.Usable(now) {
		return nil, userID, ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(hash.Sha256Hex(code))) != 1 {
		return nil, userID, ErrInvalidCode
	}

	var resp *transport.AuthResponse
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		ok, err := tx.ConsumeOTP(ctx, otp.ID, now)
		if err != nil {
			return fmt.Errorf("consume otp: %w", err)
		}
		if !ok {
			return ErrExpired
		}

		user, err := tx.LoadUserWithRolesAndPermissions(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if err := tx.TouchLastLogin(ctx, user.ID, now); err != nil {
			return fmt.Errorf("touch last login: %w", err)
		}
		resp, err = s.buildAuthResponse(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, userID, err
	}
	return resp, userID, nil
}

// RefreshSession rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*transport.AuthResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	resp, userID, err := s.refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			l.Warn("refresh_failed", "status", 401, "user_id", userID)
		} else {
			l.Error("refresh_failed", "status", 500, "user_id", userID, "error", err)
		}
		s.record(ctx, audit.EventRefresh, userID, "", metrics.OutcomeFailure, err)
		return nil, err
	}
	l.Info("refresh_rotated", "user_id", userID)
	s.record(ctx, audit.EventRefresh, userID, resp.User.Email, metrics.OutcomeSuccess, nil)
	return resp, nil
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string) (*transport.AuthResponse, uint, error) {
	if refreshToken == "" {
		return nil, 0, ErrUnauthorized
	}

	row, err := s.Repo.FindActiveRefreshByHash(ctx, hash.Sha256Hex(refreshToken))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, 0, ErrUnauthorized
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load refresh token: %w", err)
	}

	now := s.now()
	if row.ExpiresAt.Before(now) {
		if _, err := s.Repo.RevokeRefresh(ctx, row.ID); err != nil {
			return nil, row.UserID, fmt.Errorf("revoke expired refresh token: %w", err)
		}
		return nil, row.UserID, ErrUnauthorized
	}

	user, err := s.Repo.LoadUserWithRolesAndPermissions(ctx, row.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, row.UserID, ErrUnauthorized
	}
	if err != nil {
		return nil, row.UserID, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, user.ID, ErrUnauthorized
	}

	var resp *transport.AuthResponse
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		ok, err := tx.RevokeRefresh(ctx, row.ID)
		if err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		if !ok {
			return ErrUnauthorized
		}
		resp, err = s.buildAuthResponse(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, user.ID, err
	}
	return resp, user.ID, nil
}

// LogOut revokes the presented refresh token. Unknown, revoked and empty tokens are no-ops.
func (s *AuthService) LogOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	n, err := s.Repo.RevokeRefreshByHash(ctx, hash.Sha256Hex(refreshToken))
	if err != nil {
		logging.FromContext(ctx).Error("logout_failed", "status", 500, "error", err)
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if n > 0 {
		s.record(ctx, audit.EventLogout, 0, "", metrics.OutcomeSuccess, nil)
	}
	return nil
}

// ChangePassword swaps the stored hash and ends every session of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password", "user_id", userID)

	err := s.changePassword(ctx, userID, current, next)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrBadRequest) || errors.Is(err, ErrNotFound) {
			l.Warn("password_change_failed", "reason", reason(err))
		} else {
			l.Error("password_change_failed", "status", 500, "error", err)
		}
		s.record(ctx, audit.EventPasswordChange, userID, "", metrics.OutcomeFailure, err)
		return err
	}
	l.Info("password_changed")
	s.record(ctx, audit.EventPasswordChange, userID, "", metrics.OutcomeSuccess, nil)
	return nil
}

func (s *AuthService) changePassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.Repo.GetUserByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !hash.CheckPassword(user.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := hash.ValidatePasswordPolicy(next); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	pw, err := hash.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if err := tx.UpdatePasswordHash(ctx, userID, pw); err != nil {
			return fmt.Errorf("store password: %w", err)
		}
		if _, err := tx.RevokeAllRefreshForUser(ctx, userID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return nil
	})
}

// buildAuthResponse issues an access token and a fresh refresh token, persisting the latter's hash through r.
func (s *AuthService) buildAuthResponse(ctx context.Context, r *repo.GormRepo, user *models.User) (*transport.AuthResponse, error) {
	profile := Profile(user)

	access, _, err := s.Codec.Issue(&tokens.AccessClaims{
		Roles:            profile.Roles,
		Permissions:      profile.Permissions,
		Name:             user.Name,
		RegisteredClaims: jwtSubject(user.ID),
	}, s.Cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	raw, err := tokens.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now()
	if err := r.CreateRefresh(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     hash.Sha256Hex(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.Cfg.RefreshTTL),
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &transport.AuthResponse{
		User: profile,
		Tokens: transport.TokenPair{
			AccessToken:  access,
			RefreshToken: raw,
			TokenType:    tokenType,
			ExpiresIn:    int64(s.Cfg.AccessTTL / time.Second),
		},
	}, nil
}

// Profile lists role codes and the deduplicated union of their permission codes, both sorted.
func Profile(user *models.User) transport.UserProfile {
	roles := make([]string, 0, len(user.Roles))
	seen := make(map[string]struct{})
	perms := make([]string, 0)
	for _, role := range user.Roles {
		roles = append(roles, role.Code)
		for _, p := range role.Permissions {
			if _, ok := seen[p.Code]; ok {
				continue
			}
			seen[p.Code] = struct{}{}
			perms = append(perms, p.Code)
		}
	}
	sort.Strings(roles)
	sort.Strings(perms)

	return transport.UserProfile{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Roles:       roles,
		Permissions: perms,
	}
}

// MaskEmail keeps the first and last character of the local part.
func MaskEmail(email string) string {
	local, domain, _ := strings.Cut(email, "@")
	r := []rune(local)
	if len(r) <= 2 {
		return "***@" + domain
	}
	return string(r[0]) + "***" + string(r[len(r)-1]) + "@" + domain
}
