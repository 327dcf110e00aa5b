package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"backend/internal/cache"
	"backend/internal/email"
	"backend/internal/models"
	"backend/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrCodeExpired        = errors.New("verification code has expired")
	ErrCodeMismatch       = errors.New("verification code is incorrect")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshFailed      = errors.New("refresh token is invalid or expired")
)

// CodePurpose selects the cache-key prefix and email copy for a
// verification code.
type CodePurpose string

const (
	CodePurposeRegister       CodePurpose = "captcha"
	CodePurposeUpdatePassword CodePurpose = "update_password_captcha"
	CodePurposeUpdateUser     CodePurpose = "update_user_captcha"
)

var codeSubjects = map[CodePurpose]string{
	CodePurposeRegister:       "Registration verification code",
	CodePurposeUpdatePassword: "Password change verification code",
	CodePurposeUpdateUser:     "Profile update verification code",
}

type RegisterInput struct {
	Username string
	Password string
	Nickname string
	Email    string
	Code     string
}

type UpdatePasswordInput struct {
	Password string
	Email    string
	Code     string
}

// UpdateUserInput is a partial patch: empty fields are left unchanged.
type UpdateUserInput struct {
	Avatar      string
	Nickname    string
	PhoneNumber string
	Username    string
	Email       string
	Code        string
}

type UserService interface {
	SendCode(ctx context.Context, purpose CodePurpose, address string) error
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(username, password string, isAdmin bool) (*models.User, error)
	Refresh(refreshToken string, isAdmin bool) (accessToken, newRefreshToken string, err error)
	UpdatePassword(ctx context.Context, userID int64, input UpdatePasswordInput) error
	UpdateUser(ctx context.Context, userID int64, input UpdateUserInput) error
	Freeze(userID int64) error
	GetInfo(userID int64) (*models.User, error)
	List(page, pageSize int, username, nickname, emailAddr string) ([]models.User, int64, error)
}

type userService struct {
	repo   repository.UserRepository
	codes  cache.CodeStore
	mailer email.Sender
	tokens *TokenManager
	logger *zap.Logger
}

func NewUserService(repo repository.UserRepository, codes cache.CodeStore, mailer email.Sender, tokens *TokenManager, logger *zap.Logger) UserService {
	return &userService{
		repo:   repo,
		codes:  codes,
		mailer: mailer,
		tokens: tokens,
		logger: logger,
	}
}

// SendCode issues a fresh 6-digit code for the (purpose, address) pair,
// overwriting any previous one, and emails it. The code lives for five
// minutes.
func (s *userService) SendCode(ctx context.Context, purpose CodePurpose, address string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate verification code: %w", err)
	}

	if err := s.codes.Set(ctx, cache.CodeKey(string(purpose), address), code, cache.CodeTTL); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	subject := codeSubjects[purpose]
	body := fmt.Sprintf("<p>Your verification code is %s</p>", code)
	if err := s.mailer.Send(ctx, address, subject, body); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	s.logger.Info("Verification code sent",
		zap.String("purpose", string(purpose)),
		zap.String("address", address))
	return nil
}

// checkCode compares the supplied code against the stored one. An absent or
// expired key and a mismatched value are distinct failures so callers can
// message the user precisely. Codes are compared only, never consumed.
func (s *userService) checkCode(ctx context.Context, purpose CodePurpose, address, supplied string) error {
	stored, ok, err := s.codes.Get(ctx, cache.CodeKey(string(purpose), address))
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeExpired
	}
	if supplied != stored {
		return ErrCodeMismatch
	}
	return nil
}

func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if err := s.checkCode(ctx, CodePurposeRegister, input.Email, input.Code); err != nil {
		return nil, err
	}

	// Username is the uniqueness key, not email, and it is checked across
	// both login surfaces: a username held by an admin account cannot be
	// registered again.
	_, err := s.repo.GetAnyUserByUsername(input.Username)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("Failed to look up user by username", zap.Error(err))
		return nil, fmt.Errorf("failed to check existing users: %w", err)
	}

	passwordHash, err := hashPassword(input.Password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		PasswordHash: passwordHash,
		Nickname:     input.Nickname,
		Email:        input.Email,
	}

	if err := s.repo.CreateUser(user); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("username", user.Username))
	return user, nil
}

// Login authenticates against the (username, isAdmin) pair. The admin and
// user surfaces are partitioned by the is_admin flag, so an account is only
// reachable through its own surface.
func (s *userService) Login(username, password string, isAdmin bool) (*models.User, error) {
	user, err := s.repo.GetUserByUsername(username, isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("Failed to get user by username", zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !verifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("User logged in", zap.String("username", user.Username), zap.Bool("isAdmin", isAdmin))
	return user, nil
}

// Refresh verifies the refresh token, re-reads the user so the new tokens
// reflect current roles and permissions, and re-issues both tokens.
func (s *userService) Refresh(refreshToken string, isAdmin bool) (string, string, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		s.logger.Info("Refresh token rejected", zap.Error(err))
		return "", "", ErrRefreshFailed
	}

	user, err := s.repo.GetUserByID(claims.UserID, isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", ErrRefreshFailed
		}
		s.logger.Error("Failed to get user for refresh", zap.Error(err))
		return "", "", fmt.Errorf("failed to retrieve user: %w", err)
	}

	fresh := models.NewClaims(user)
	accessToken, err := s.tokens.IssueAccessToken(fresh)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err := s.tokens.IssueRefreshToken(fresh)
	if err != nil {
		return "", "", err
	}

	return accessToken, newRefreshToken, nil
}

func (s *userService) UpdatePassword(ctx context.Context, userID int64, input UpdatePasswordInput) error {
	if err := s.checkCode(ctx, CodePurposeUpdatePassword, input.Email, input.Code); err != nil {
		return err
	}

	passwordHash, err := hashPassword(input.Password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePasswordHash(userID, passwordHash); err != nil {
		s.logger.Error("Failed to update password", zap.Int64("userId", userID), zap.Error(err))
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("Password updated", zap.Int64("userId", userID))
	return nil
}

// UpdateUser applies the non-empty fields of the patch; absent fields keep
// their stored values.
func (s *userService) UpdateUser(ctx context.Context, userID int64, input UpdateUserInput) error {
	if err := s.checkCode(ctx, CodePurposeUpdateUser, input.Email, input.Code); err != nil {
		return err
	}

	user, err := s.repo.GetUserInfoByID(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		s.logger.Error("Failed to get user for update", zap.Error(err))
		return fmt.Errorf("failed to retrieve user: %w", err)
	}

	if input.Avatar != "" {
		user.Avatar = input.Avatar
	}
	if input.Nickname != "" {
		user.Nickname = input.Nickname
	}
	if input.PhoneNumber != "" {
		user.PhoneNumber = input.PhoneNumber
	}
	if input.Username != "" {
		user.Username = input.Username
	}

	if err := s.repo.UpdateUser(user); err != nil {
		s.logger.Error("Failed to update user", zap.Int64("userId", userID), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info("User updated", zap.Int64("userId", userID))
	return nil
}

// Freeze sets the user's frozen flag. There is no unfreeze operation, and
// existing tokens stay valid until natural expiry.
func (s *userService) Freeze(userID int64) error {
	if err := s.repo.FreezeUser(userID); err != nil {
		s.logger.Error("Failed to freeze user", zap.Int64("userId", userID), zap.Error(err))
		return fmt.Errorf("failed to freeze user: %w", err)
	}
	s.logger.Info("User frozen", zap.Int64("userId", userID))
	return nil
}

func (s *userService) GetInfo(userID int64) (*models.User, error) {
	user, err := s.repo.GetUserInfoByID(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

func (s *userService) List(page, pageSize int, username, nickname, emailAddr string) ([]models.User, int64, error) {
	if page < 1 {
		return nil, 0, ErrInvalidPage
	}

	users, totalCount, err := s.repo.ListUsers(page, pageSize, username, nickname, emailAddr)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, totalCount, nil
}

// generateCode returns a uniformly random 6-digit numeric code,
// left-padded with zeros.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
