package service

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"musicfiles/internal/model"
	"musicfiles/pkg/apierror"
)

// IdentityStore is the persistence contract the account workflows need.
// *repository.UserRepository satisfies it; tests use an in-memory fake.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByPublicID(ctx context.Context, publicID string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User, role model.Role) (model.User, error)
	ListRoles(ctx context.Context, userID int64) ([]model.Role, error)
	SetRefreshToken(ctx context.Context, publicID string, token string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, publicID string, previous string, next string, expiresAt time.Time) (bool, error)
	ClearRefreshToken(ctx context.Context, publicID string) error
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{5,20}$`)

// AccountService orchestrates registration, login, logout, token refresh and
// the existence probes. All authentication failures collapse into the same
// generic error after the same fixed delay.
type AccountService struct {
	store     IdentityStore
	creds     *CredentialValidator
	tokens    *TokenService
	failDelay time.Duration
}

func NewAccountService(store IdentityStore, creds *CredentialValidator, tokens *TokenService, failDelay time.Duration) *AccountService {
	return &AccountService{
		store:     store,
		creds:     creds,
		tokens:    tokens,
		failDelay: failDelay,
	}
}

// Register creates a user with the requested role. It never issues tokens;
// registration and login are separate steps so an email-verification gate
// can be added in front of login later.
func (s *AccountService) Register(ctx context.Context, req model.RegisterRequest) error {
	if err := validateRegistration(req); err != nil {
		return err
	}

	role, ok := model.ParseRole(req.UserType)
	if !ok || !role.SelfRegistrable() {
		return apierror.Validation("userType must be Customer or Publisher", "userType")
	}

	taken, err := s.store.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if taken {
		// Matches the timing of a failed login so a registration probe
		// cannot be told apart from one.
		s.failSleep(ctx)
		return model.ErrEmailTaken
	}

	hash, err := s.creds.Hash(req.Password)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user := model.User{
		PublicID:     uuid.NewString(),
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.store.Create(ctx, user, role); err != nil {
		return err
	}

	slog.Info("user registered", "public_id", user.PublicID, "role", role)
	return nil
}

// Login authenticates by username or email and issues a token pair. The
// identifier is treated as an email exactly when it contains '@'; usernames
// can never contain one. rememberMe is accepted for wire compatibility but
// has no effect on the stateless token flow.
func (s *AccountService) Login(ctx context.Context, usernameOrEmail string, password string, rememberMe bool) (model.TokenPair, error) {
	_ = rememberMe

	identifier := strings.TrimSpace(usernameOrEmail)

	var user model.User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = s.store.FindByEmail(ctx, identifier)
	} else {
		user, err = s.store.FindByUsername(ctx, identifier)
	}
	if err != nil {
		// Burn a hash comparison so the not-found path costs the same
		// as a wrong password, then fail generically.
		s.creds.DecoyCheck(password)
		s.failSleep(ctx)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	if !s.creds.Verify(user.PasswordHash, password) {
		s.failSleep(ctx)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	roles, err := s.store.ListRoles(ctx, user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}

	pair, err := s.tokens.CreateToken(user.PublicID, roles)
	if err != nil {
		return model.TokenPair{}, err
	}

	// Tokens that are not durably stored must never reach the caller, so a
	// persistence failure here is an authentication failure, not a 500.
	if err := s.store.SetRefreshToken(ctx, user.PublicID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		slog.Error("persist refresh token failed", "public_id", user.PublicID, "error", err)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	slog.Info("user logged in", "public_id", user.PublicID)
	return pair, nil
}

// Logout clears the stored refresh token so the next access-token expiry
// forces a full login. The access token itself stays valid until it expires;
// it is never persisted or revoked.
func (s *AccountService) Logout(ctx context.Context, publicUserID string) error {
	return s.store.ClearRefreshToken(ctx, publicUserID)
}

// RefreshAccessToken exchanges an expired-but-valid access token plus the
// current refresh token for a new pair. The exchanged refresh token becomes
// permanently unusable: rotation is a compare-and-swap against the stored
// value, so of two racing requests exactly one wins.
func (s *AccountService) RefreshAccessToken(ctx context.Context, accessToken string, refreshToken string) (model.TokenPair, error) {
	if strings.TrimSpace(accessToken) == "" || strings.TrimSpace(refreshToken) == "" {
		return model.TokenPair{}, apierror.BadRequest("token and refreshToken are required")
	}

	// Signature, algorithm, issuer and audience must all still check out;
	// only the expiry is ignored.
	claims, err := s.tokens.ValidateToken(accessToken, true)
	if err != nil {
		return model.TokenPair{}, model.ErrTokenInvalid
	}

	if claims.Subject == "" || uuid.Validate(claims.Subject) != nil {
		return model.TokenPair{}, apierror.BadRequest("token subject is missing or malformed")
	}

	user, err := s.store.FindByPublicID(ctx, claims.Subject)
	if err != nil {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	if !refreshTokenMatches(user, refreshToken) {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	roles, err := s.store.ListRoles(ctx, user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}

	pair, err := s.tokens.CreateToken(user.PublicID, roles)
	if err != nil {
		return model.TokenPair{}, err
	}

	rotated, err := s.store.RotateRefreshToken(ctx, user.PublicID, refreshToken, pair.RefreshToken, pair.RefreshExpiresAt)
	if err != nil {
		slog.Error("rotate refresh token failed", "public_id", user.PublicID, "error", err)
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if !rotated {
		// A concurrent refresh won the swap; this token is already spent.
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	return pair, nil
}

// IsEmailRegistered reports whether an account exists for the email. An
// enumeration vector by definition; rate limiting is applied upstream.
func (s *AccountService) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	return s.store.ExistsByEmail(ctx, email)
}

// IsUsernameRegistered reports whether an account exists for the username.
func (s *AccountService) IsUsernameRegistered(ctx context.Context, username string) (bool, error) {
	return s.store.ExistsByUsername(ctx, username)
}

// failSleep blocks the current request for the fixed anti-enumeration delay.
// It holds no locks or shared resources while waiting.
func (s *AccountService) failSleep(ctx context.Context) {
	if s.failDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.failDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func refreshTokenMatches(user model.User, presented string) bool {
	if user.RefreshToken == nil || user.RefreshTokenExpiresAt == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) != 1 {
		return false
	}
	return user.RefreshTokenExpiresAt.After(time.Now())
}

func validateRegistration(req model.RegisterRequest) error {
	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" || len(firstName) > 50 {
		return apierror.Validation("firstName is required and must be at most 50 characters", "firstName")
	}

	lastName := strings.TrimSpace(req.LastName)
	if lastName == "" || len(lastName) > 50 {
		return apierror.Validation("lastName is required and must be at most 50 characters", "lastName")
	}

	if !usernamePattern.MatchString(strings.TrimSpace(req.Username)) {
		return apierror.Validation("username must be 5-20 characters of letters, numbers, underscores, hyphens, and periods", "username")
	}

	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return apierror.Validation("email must be a valid email address", "email")
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" || !isDigitsOnly(phone) {
		return apierror.Validation("phone is required and may only contain numbers", "phone")
	}

	if err := validatePassword(req.Password); err != nil {
		return err
	}

	if req.Password != req.ConfirmPassword {
		return apierror.Validation("password and confirmPassword do not match", "confirmPassword")
	}

	return nil
}

func validatePassword(password string) error {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if len(password) < 6 || !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return apierror.Validation(
			"password must be at least 6 characters and contain an uppercase letter, a lowercase letter, a digit, and a symbol",
			"password")
	}
	return nil
}

func isDigitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
