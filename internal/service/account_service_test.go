package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"musicfiles/internal/model"
	"musicfiles/pkg/apierror"
)

const testFailDelay = 30 * time.Millisecond

// fakeIdentityStore is an in-memory IdentityStore. RotateRefreshToken does
// its compare-and-swap under the mutex, matching the atomicity the SQL
// update provides.
type fakeIdentityStore struct {
	mu             sync.Mutex
	nextID         int64
	users          map[string]*model.User // keyed by public id
	roles          map[int64][]model.Role
	failSetRefresh bool
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{
		users: map[string]*model.User{},
		roles: map[int64][]model.Role{},
	}
}

func (f *fakeIdentityStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return *u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeIdentityStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Username, username) {
			return *u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeIdentityStore) FindByPublicID(_ context.Context, publicID string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[publicID]; ok {
		return *u, nil
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeIdentityStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.FindByEmail(ctx, email)
	return err == nil, nil
}

func (f *fakeIdentityStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := f.FindByUsername(ctx, username)
	return err == nil, nil
}

func (f *fakeIdentityStore) Create(_ context.Context, u model.User, role model.Role) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.User{}, model.ErrEmailTaken
		}
		if strings.EqualFold(existing.Username, u.Username) {
			return model.User{}, model.ErrUsernameTaken
		}
	}
	f.nextID++
	u.ID = f.nextID
	stored := u
	f.users[u.PublicID] = &stored
	f.roles[u.ID] = []model.Role{role}
	return u, nil
}

func (f *fakeIdentityStore) ListRoles(_ context.Context, userID int64) ([]model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Role(nil), f.roles[userID]...), nil
}

func (f *fakeIdentityStore) SetRefreshToken(_ context.Context, publicID string, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetRefresh {
		return assert.AnError
	}
	u, ok := f.users[publicID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.RefreshToken = &token
	u.RefreshTokenExpiresAt = &expiresAt
	return nil
}

func (f *fakeIdentityStore) RotateRefreshToken(_ context.Context, publicID string, previous string, next string, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[publicID]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != previous {
		return false, nil
	}
	u.RefreshToken = &next
	u.RefreshTokenExpiresAt = &expiresAt
	return true, nil
}

func (f *fakeIdentityStore) ClearRefreshToken(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[publicID]; ok {
		u.RefreshToken = nil
		u.RefreshTokenExpiresAt = nil
	}
	return nil
}

func (f *fakeIdentityStore) setRefreshExpiry(publicID string, expiresAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[publicID].RefreshTokenExpiresAt = &expiresAt
}

func newTestAccountService(t *testing.T) (*AccountService, *fakeIdentityStore) {
	t.Helper()
	store := newFakeIdentityStore()
	accounts := NewAccountService(store, NewCredentialValidator(), newTestTokenService(t), testFailDelay)
	return accounts, store
}

func validRegistration() model.RegisterRequest {
	return model.RegisterRequest{
		FirstName:       "Clara",
		LastName:        "Schumann",
		Username:        "clara_s",
		Email:           "clara@example.com",
		Phone:           "5551234567",
		Password:        "Sonata1!",
		ConfirmPassword: "Sonata1!",
		UserType:        "Publisher",
	}
}

func registerTestUser(t *testing.T, accounts *AccountService) model.RegisterRequest {
	t.Helper()
	req := validRegistration()
	require.NoError(t, accounts.Register(context.Background(), req))
	return req
}

func TestRegister_RejectsNonRegistrableRoles(t *testing.T) {
	accounts, store := newTestAccountService(t)

	for _, userType := range []string{"Admin", "Superuser", ""} {
		req := validRegistration()
		req.UserType = userType

		err := accounts.Register(context.Background(), req)

		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr, "userType=%q", userType)
		assert.Equal(t, 400, apiErr.HTTPStatus)
		assert.Empty(t, store.users, "user must not be persisted")
	}
}

func TestRegister_AssignsExactlyRequestedRole(t *testing.T) {
	accounts, store := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	user, err := store.FindByEmail(context.Background(), req.Email)
	require.NoError(t, err)

	roles, err := store.ListRoles(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Role{model.RolePublisher}, roles)

	// The password is stored hashed, never verbatim.
	assert.NotEqual(t, req.Password, user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)))

	// Registration never issues tokens.
	assert.Nil(t, user.RefreshToken)
}

func TestRegister_DuplicateEmailDelayed(t *testing.T) {
	accounts, _ := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	dup := validRegistration()
	dup.Username = "clara_two"
	dup.Email = req.Email

	started := time.Now()
	err := accounts.Register(context.Background(), dup)
	elapsed := time.Since(started)

	assert.ErrorIs(t, err, model.ErrEmailTaken)
	assert.GreaterOrEqual(t, elapsed, testFailDelay)
}

func TestRegister_FieldValidation(t *testing.T) {
	accounts, store := newTestAccountService(t)

	cases := []struct {
		name   string
		mutate func(*model.RegisterRequest)
	}{
		{"blank first name", func(r *model.RegisterRequest) { r.FirstName = " " }},
		{"short username", func(r *model.RegisterRequest) { r.Username = "ab" }},
		{"username with at sign", func(r *model.RegisterRequest) { r.Username = "clara@s" }},
		{"bad email", func(r *model.RegisterRequest) { r.Email = "not-an-email" }},
		{"phone with letters", func(r *model.RegisterRequest) { r.Phone = "555-CALL" }},
		{"weak password", func(r *model.RegisterRequest) { r.Password = "abc"; r.ConfirmPassword = "abc" }},
		{"password without symbol", func(r *model.RegisterRequest) { r.Password = "Sonata12"; r.ConfirmPassword = "Sonata12" }},
		{"mismatched confirmation", func(r *model.RegisterRequest) { r.ConfirmPassword = "Different1!" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRegistration()
			tc.mutate(&req)

			err := accounts.Register(context.Background(), req)

			var apiErr *apierror.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, 400, apiErr.HTTPStatus)
			assert.Empty(t, store.users)
		})
	}
}

func TestLogin_FailuresAreUniform(t *testing.T) {
	accounts, _ := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	started := time.Now()
	_, unknownErr := accounts.Login(context.Background(), "nobody@example.com", "Sonata1!", false)
	unknownElapsed := time.Since(started)

	started = time.Now()
	_, wrongErr := accounts.Login(context.Background(), req.Email, "WrongPass1!", false)
	wrongElapsed := time.Since(started)

	// Both failure paths return the identical error after at least the
	// fixed delay; nothing distinguishes unknown identifier from wrong
	// password.
	assert.ErrorIs(t, unknownErr, model.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, model.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.GreaterOrEqual(t, unknownElapsed, testFailDelay)
	assert.GreaterOrEqual(t, wrongElapsed, testFailDelay)
}

func TestLogin_ByEmailAndUsername(t *testing.T) {
	accounts, store := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	byEmail, err := accounts.Login(context.Background(), req.Email, req.Password, false)
	require.NoError(t, err)
	assert.NotEmpty(t, byEmail.AccessToken)
	assert.NotEmpty(t, byEmail.RefreshToken)
	assert.True(t, byEmail.RefreshExpiresAt.After(time.Now()))

	byUsername, err := accounts.Login(context.Background(), req.Username, req.Password, false)
	require.NoError(t, err)

	// The second login rotated the stored refresh token.
	user, err := store.FindByEmail(context.Background(), req.Email)
	require.NoError(t, err)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, byUsername.RefreshToken, *user.RefreshToken)
	assert.NotEqual(t, byEmail.RefreshToken, byUsername.RefreshToken)
}

func TestLogin_PersistenceFailureIsAuthFailure(t *testing.T) {
	accounts, store := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	store.failSetRefresh = true
	_, err := accounts.Login(context.Background(), req.Email, req.Password, false)

	// No token may reach the caller unless it is durably stored.
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestRefresh_RejectsEmptyInputs(t *testing.T) {
	accounts, _ := newTestAccountService(t)

	for _, tc := range [][2]string{{"", "refresh"}, {"access", ""}, {"", ""}} {
		_, err := accounts.RefreshAccessToken(context.Background(), tc[0], tc[1])
		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 400, apiErr.HTTPStatus)
	}
}

func TestRefresh_AcceptsExpiredAccessToken(t *testing.T) {
	accounts, store := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	pair, err := accounts.Login(context.Background(), req.Email, req.Password, false)
	require.NoError(t, err)

	user, err := store.FindByEmail(context.Background(), req.Email)
	require.NoError(t, err)

	expiredAccess := signTestClaims(t, testClaims(user.PublicID, testIssuer, testAudience, time.Now().Add(-time.Hour)))

	renewed, err := accounts.RefreshAccessToken(context.Background(), expiredAccess, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, renewed.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, renewed.RefreshToken)

	// The new refresh token is what the store now holds.
	user, err = store.FindByEmail(context.Background(), req.Email)
	require.NoError(t, err)
	require.NotNil(t, user.RefreshToken)
	assert.Equal(t, renewed.RefreshToken, *user.RefreshToken)
}

func TestRefresh_RotatedTokenIsSingleUse(t *testing.T) {
	accounts, _ := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	pair, err := accounts.Login(context.Background(), req.Email, req.Password, false)
	require.NoError(t, err)

	_, err = accounts.RefreshAccessToken(context.Background(), pair.AccessToken, pair.RefreshToken)
	require.NoError(t, err)

	// Re-presenting the exchanged token always fails, even though its
	// original expiry has not elapsed.
	_, err = accounts.RefreshAccessToken(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestRefresh_ExpiredRefreshTokenRejected(t *testing.T) {
	accounts, store := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	pair, err := accounts.Login(context.Background(), req.Email, req.Password, false)
	require.NoError(t, err)

	user, err := store.FindByEmail(context.Background(), req.Email)
	require.NoError(t, err)
	store.setRefreshExpiry(user.PublicID, time.Now().Add(-time.Second))

	_, err = accounts.RefreshAccessToken(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestRefresh_WrongRefreshTokenRejected(t *testing.T) {
	accounts, _ := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	pair, err := accounts.Login(context.Background(), req.Email, req.Password, false)
	require.NoError(t, err)

	_, err = accounts.RefreshAccessToken(context.Background(), pair.AccessToken, "bm90LXRoZS1yaWdodC10b2tlbg==")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestRefresh_ConcurrentDuplicateRequests(t *testing.T) {
	accounts, _ := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	pair, err := accounts.Login(context.Background(), req.Email, req.Password, false)
	require.NoError(t, err)

	const racers = 8
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := accounts.RefreshAccessToken(context.Background(), pair.AccessToken, pair.RefreshToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// Exactly one of the racing requests rotates successfully.
	successes := 0
	for err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, model.ErrInvalidCredentials)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestLogout_ClearsStoredRefreshToken(t *testing.T) {
	accounts, store := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	pair, err := accounts.Login(context.Background(), req.Email, req.Password, false)
	require.NoError(t, err)

	user, err := store.FindByEmail(context.Background(), req.Email)
	require.NoError(t, err)

	require.NoError(t, accounts.Logout(context.Background(), user.PublicID))

	user, err = store.FindByEmail(context.Background(), req.Email)
	require.NoError(t, err)
	assert.Nil(t, user.RefreshToken)

	_, err = accounts.RefreshAccessToken(context.Background(), pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestExistenceProbes(t *testing.T) {
	accounts, _ := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	registered, err := accounts.IsEmailRegistered(context.Background(), req.Email)
	require.NoError(t, err)
	assert.True(t, registered)

	registered, err = accounts.IsEmailRegistered(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, registered)

	registered, err = accounts.IsUsernameRegistered(context.Background(), req.Username)
	require.NoError(t, err)
	assert.True(t, registered)

	registered, err = accounts.IsUsernameRegistered(context.Background(), "stranger")
	require.NoError(t, err)
	assert.False(t, registered)
}

func uuidMustParse(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

func TestRegister_PublicIDIsValidUUID(t *testing.T) {
	accounts, store := newTestAccountService(t)
	req := registerTestUser(t, accounts)

	user, err := store.FindByEmail(context.Background(), req.Email)
	require.NoError(t, err)
	uuidMustParse(t, user.PublicID)
}
