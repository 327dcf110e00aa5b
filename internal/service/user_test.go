package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"backend/internal/cache"
	"backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCodeStore struct {
	values map[string]string
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{values: map[string]string{}}
}

func (f *fakeCodeStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCodeStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.values[key] = value
	return nil
}

// expire simulates the TTL lapsing.
func (f *fakeCodeStore) expire(key string) {
	delete(f.values, key)
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeSender struct {
	sent []sentMail
}

func (f *fakeSender) Send(_ context.Context, to, subject, htmlBody string) error {
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

type fakeUserRepo struct {
	users     []*models.User
	nextID    int64
	createErr error
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1}
}

func (f *fakeUserRepo) CreateUser(user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	f.users = append(f.users, user)
	return nil
}

func (f *fakeUserRepo) GetUserByUsername(username string, isAdmin bool) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username && u.IsAdmin == isAdmin {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) GetAnyUserByUsername(username string) (*models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) GetUserByID(id int64, isAdmin bool) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id && u.IsAdmin == isAdmin {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) GetUserInfoByID(id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) UpdatePasswordHash(id int64, hash string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	u, err := f.GetUserInfoByID(id)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUserRepo) UpdateUser(user *models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return nil
}

func (f *fakeUserRepo) FreezeUser(id int64) error {
	u, err := f.GetUserInfoByID(id)
	if err != nil {
		return err
	}
	u.IsFrozen = true
	return nil
}

func (f *fakeUserRepo) ListUsers(page, pageSize int, username, nickname, email string) ([]models.User, int64, error) {
	out := []models.User{}
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func newTestUserService(t *testing.T) (UserService, *fakeUserRepo, *fakeCodeStore, *fakeSender, *TokenManager) {
	t.Helper()
	repo := newFakeUserRepo()
	codes := newFakeCodeStore()
	sender := &fakeSender{}
	tm := NewTokenManager("test-secret", time.Minute, time.Hour)
	svc := NewUserService(repo, codes, sender, tm, zap.NewNop())
	return svc, repo, codes, sender, tm
}

func seedUser(t *testing.T, repo *fakeUserRepo, username, password string, isAdmin bool, roles ...models.Role) *models.User {
	t.Helper()
	hash, err := hashPassword(password)
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Nickname:     username,
		Email:        username + "@example.com",
		IsAdmin:      isAdmin,
		Roles:        roles,
	}
	require.NoError(t, repo.CreateUser(user))
	return user
}

var codePattern = regexp.MustCompile(`\d{6}`)

func TestSendCode(t *testing.T) {
	svc, _, codes, sender, _ := newTestUserService(t)
	ctx := context.Background()

	require.NoError(t, svc.SendCode(ctx, CodePurposeRegister, "new@example.com"))

	stored := codes.values["captcha_new@example.com"]
	require.Len(t, stored, 6)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "new@example.com", sender.sent[0].to)
	assert.Equal(t, stored, codePattern.FindString(sender.sent[0].body))
}

func TestSendCode_LatestCodeWins(t *testing.T) {
	svc, _, codes, sender, _ := newTestUserService(t)
	ctx := context.Background()

	require.NoError(t, svc.SendCode(ctx, CodePurposeRegister, "new@example.com"))
	require.NoError(t, svc.SendCode(ctx, CodePurposeRegister, "new@example.com"))

	require.Len(t, sender.sent, 2)
	// Only the code from the most recent email is the stored one.
	stored := codes.values["captcha_new@example.com"]
	assert.Equal(t, stored, codePattern.FindString(sender.sent[1].body))
}

func TestRegister_Success(t *testing.T) {
	svc, _, codes, _, _ := newTestUserService(t)
	ctx := context.Background()

	codes.values["captcha_li@example.com"] = "123456"

	user, err := svc.Register(ctx, RegisterInput{
		Username: "lisi",
		Password: "p4ssword",
		Nickname: "Si Li",
		Email:    "li@example.com",
		Code:     "123456",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.True(t, verifyPassword(user.PasswordHash, "p4ssword"))

	// A fresh registration carries no roles, so the claim set has no
	// permissions.
	logged, err := svc.Login("lisi", "p4ssword", false)
	require.NoError(t, err)
	assert.Empty(t, models.NewClaims(logged).Permissions)
}

func TestRegister_CodeMismatch(t *testing.T) {
	svc, _, codes, _, _ := newTestUserService(t)

	codes.values["captcha_li@example.com"] = "123456"

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "lisi", Password: "p4ssword", Nickname: "Si Li",
		Email: "li@example.com", Code: "654321",
	})
	assert.ErrorIs(t, err, ErrCodeMismatch)
}

func TestRegister_CodeExpired(t *testing.T) {
	svc, _, codes, _, _ := newTestUserService(t)
	ctx := context.Background()

	// No code was ever requested for this address.
	_, err := svc.Register(ctx, RegisterInput{
		Username: "lisi", Password: "p4ssword", Nickname: "Si Li",
		Email: "li@example.com", Code: "123456",
	})
	assert.ErrorIs(t, err, ErrCodeExpired)

	// A code that existed but lapsed is the same failure.
	codes.values["captcha_li@example.com"] = "123456"
	codes.expire("captcha_li@example.com")
	_, err = svc.Register(ctx, RegisterInput{
		Username: "lisi", Password: "p4ssword", Nickname: "Si Li",
		Email: "li@example.com", Code: "123456",
	})
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestRegister_UserAlreadyExists(t *testing.T) {
	svc, repo, codes, _, _ := newTestUserService(t)

	seedUser(t, repo, "lisi", "whatever1", false)
	codes.values["captcha_other@example.com"] = "123456"

	// Username is the uniqueness key, not email.
	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "lisi", Password: "p4ssword", Nickname: "Si Li",
		Email: "other@example.com", Code: "123456",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestRegister_UsernameHeldByAdmin(t *testing.T) {
	svc, repo, codes, _, _ := newTestUserService(t)

	// The uniqueness check spans both login surfaces, so a username held
	// by an admin account is not available for registration.
	seedUser(t, repo, "zhangsan", "whatever1", true)
	codes.values["captcha_new@example.com"] = "123456"

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "zhangsan", Password: "p4ssword", Nickname: "San Zhang",
		Email: "new@example.com", Code: "123456",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestRegister_PersistenceFailure(t *testing.T) {
	svc, repo, codes, _, _ := newTestUserService(t)

	codes.values["captcha_li@example.com"] = "123456"
	repo.createErr = errors.New("connection reset")

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "lisi", Password: "p4ssword", Nickname: "Si Li",
		Email: "li@example.com", Code: "123456",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCodeExpired)
	assert.NotErrorIs(t, err, ErrCodeMismatch)
	assert.Contains(t, err.Error(), "failed to create user")
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, repo, _, _, _ := newTestUserService(t)

	seedUser(t, repo, "lisi", "correct-pass", false)

	_, err := svc.Login("lisi", "wrong-pass", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_WrongSurface(t *testing.T) {
	svc, repo, _, _, _ := newTestUserService(t)

	// The username exists only on the admin surface.
	seedUser(t, repo, "admin", "correct-pass", true)

	_, err := svc.Login("admin", "correct-pass", false)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Login("admin", "correct-pass", true)
	assert.NoError(t, err)
}

func TestLogin_PermissionDeduplication(t *testing.T) {
	svc, repo, _, _, _ := newTestUserService(t)

	roleA := models.Role{ID: 1, Name: "role-a", Permissions: []models.Permission{
		{Code: "aaa"}, {Code: "bbb"},
	}}
	roleB := models.Role{ID: 2, Name: "role-b", Permissions: []models.Permission{
		{Code: "bbb"},
	}}
	seedUser(t, repo, "lisi", "p4ssword", false, roleA, roleB)

	user, err := svc.Login("lisi", "p4ssword", false)
	require.NoError(t, err)

	claims := models.NewClaims(user)
	assert.Equal(t, []string{"aaa", "bbb"}, claims.Permissions)
	assert.Equal(t, []string{"role-a", "role-b"}, claims.Roles)
}

func TestRefresh_ReflectsCurrentState(t *testing.T) {
	svc, repo, _, _, tm := newTestUserService(t)

	role := models.Role{ID: 1, Name: "role-a", Permissions: []models.Permission{{Code: "aaa"}}}
	user := seedUser(t, repo, "lisi", "p4ssword", false, role)

	refreshToken, err := tm.IssueRefreshToken(models.NewClaims(user))
	require.NoError(t, err)

	// Grant an extra permission after the token was issued.
	user.Roles[0].Permissions = append(user.Roles[0].Permissions, models.Permission{Code: "ccc"})

	accessToken, newRefreshToken, err := svc.Refresh(refreshToken, false)
	require.NoError(t, err)
	require.NotEmpty(t, newRefreshToken)

	claims, err := tm.Verify(accessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "ccc"}, claims.Permissions)
}

func TestRefresh_InvalidToken(t *testing.T) {
	svc, _, _, _, _ := newTestUserService(t)

	_, _, err := svc.Refresh("garbage", false)
	assert.ErrorIs(t, err, ErrRefreshFailed)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	svc, repo, _, _, _ := newTestUserService(t)

	user := seedUser(t, repo, "lisi", "p4ssword", false)

	expiredTM := NewTokenManager("test-secret", time.Minute, -time.Second)
	refreshToken, err := expiredTM.IssueRefreshToken(models.NewClaims(user))
	require.NoError(t, err)

	_, _, err = svc.Refresh(refreshToken, false)
	assert.ErrorIs(t, err, ErrRefreshFailed)
}

func TestUpdatePassword(t *testing.T) {
	svc, repo, codes, _, _ := newTestUserService(t)
	ctx := context.Background()

	user := seedUser(t, repo, "lisi", "old-password", false)
	codes.values["update_password_captcha_li@example.com"] = "123456"

	err := svc.UpdatePassword(ctx, user.ID, UpdatePasswordInput{
		Password: "new-password",
		Email:    "li@example.com",
		Code:     "123456",
	})
	require.NoError(t, err)

	_, err = svc.Login("lisi", "old-password", false)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("lisi", "new-password", false)
	assert.NoError(t, err)
}

func TestUpdatePassword_CodeGate(t *testing.T) {
	svc, repo, codes, _, _ := newTestUserService(t)
	ctx := context.Background()

	user := seedUser(t, repo, "lisi", "old-password", false)

	err := svc.UpdatePassword(ctx, user.ID, UpdatePasswordInput{
		Password: "new-password", Email: "li@example.com", Code: "123456",
	})
	assert.ErrorIs(t, err, ErrCodeExpired)

	codes.values["update_password_captcha_li@example.com"] = "123456"
	err = svc.UpdatePassword(ctx, user.ID, UpdatePasswordInput{
		Password: "new-password", Email: "li@example.com", Code: "999999",
	})
	assert.ErrorIs(t, err, ErrCodeMismatch)
}

func TestUpdateUser_PartialPatch(t *testing.T) {
	svc, repo, codes, _, _ := newTestUserService(t)
	ctx := context.Background()

	user := seedUser(t, repo, "lisi", "p4ssword", false)
	user.Nickname = "original nickname"
	user.PhoneNumber = "12345678901"
	codes.values["update_user_captcha_li@example.com"] = "123456"

	err := svc.UpdateUser(ctx, user.ID, UpdateUserInput{
		Avatar: "avatar.png",
		Email:  "li@example.com",
		Code:   "123456",
	})
	require.NoError(t, err)

	// Only the present fields changed.
	assert.Equal(t, "avatar.png", user.Avatar)
	assert.Equal(t, "original nickname", user.Nickname)
	assert.Equal(t, "12345678901", user.PhoneNumber)
	assert.Equal(t, "lisi", user.Username)
}

func TestUpdateUser_PersistenceFailure(t *testing.T) {
	svc, repo, codes, _, _ := newTestUserService(t)
	ctx := context.Background()

	user := seedUser(t, repo, "lisi", "p4ssword", false)
	codes.values["update_user_captcha_li@example.com"] = "123456"
	repo.updateErr = errors.New("connection reset")

	err := svc.UpdateUser(ctx, user.ID, UpdateUserInput{
		Nickname: "new", Email: "li@example.com", Code: "123456",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update user")
}

func TestListUsers_InvalidPage(t *testing.T) {
	svc, repo, _, _, _ := newTestUserService(t)

	seedUser(t, repo, "lisi", "p4ssword", false)

	_, _, err := svc.List(0, 10, "", "", "")
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, _, err = svc.List(-1, 10, "", "", "")
	assert.ErrorIs(t, err, ErrInvalidPage)

	users, total, err := svc.List(1, 10, "", "", "")
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, int64(1), total)
}

func TestFreeze(t *testing.T) {
	svc, repo, _, _, tm := newTestUserService(t)

	user := seedUser(t, repo, "lisi", "p4ssword", false)
	token, err := tm.IssueAccessToken(models.NewClaims(user))
	require.NoError(t, err)

	require.NoError(t, svc.Freeze(user.ID))
	assert.True(t, user.IsFrozen)

	// Freezing stops nothing retroactively: issued tokens stay valid
	// until natural expiry.
	_, err = tm.Verify(token)
	assert.NoError(t, err)
}

// CodeStore interface compliance for the fake.
var _ cache.CodeStore = (*fakeCodeStore)(nil)
