package transport

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyOTPRequest struct {
	PendingToken string `json:"pending_token"`
	Code         string `json:"code"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// RoleRequest is shared by create and update. A nil PermissionCodes leaves
// the role's permissions untouched on update; an empty list clears them.
type RoleRequest struct {
	Name            string   `json:"name"`
	Code            string   `json:"code"`
	Description     string   `json:"description"`
	PermissionCodes []string `json:"permission_codes"`
}

type PermissionRequest struct {
	Code        string `json:"code"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

type AssignPermissionsRequest struct {
	PermissionCodes []string `json:"permission_codes"`
}

type AssignRolesRequest struct {
	RoleCodes []string `json:"role_codes"`
}

type UserProfile struct {
	ID          uint     `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthResponse struct {
	User   UserProfile `json:"user"`
	Tokens TokenPair   `json:"tokens"`
}

type OTPChallenge struct {
	PendingToken string `json:"pending_token"`
	OTPExpiresIn int64  `json:"otp_expires_in"`
	MaskedEmail  string `json:"masked_email"`
}

// LoginResult carries exactly one of Challenge or Auth.
type LoginResult struct {
	Challenge *OTPChallenge
	Auth      *AuthResponse
}

type MeResponse struct {
	User UserProfile `json:"user"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
