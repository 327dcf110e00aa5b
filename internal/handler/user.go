package handler

import (
	"errors"
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/models"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	users  service.UserService
	tokens *service.TokenManager
	log    *zap.Logger
}

func NewUserHandler(users service.UserService, tokens *service.TokenManager, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, tokens: tokens, log: log}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"required,email"`
	Captcha  string `json:"captcha" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
	Email    string `json:"email" binding:"required,email"`
	Captcha  string `json:"captcha" binding:"required"`
}

type UpdateUserRequest struct {
	Avatar      string `json:"avatar"`
	Nickname    string `json:"nickname"`
	PhoneNumber string `json:"phoneNumber"`
	Username    string `json:"username"`
	Email       string `json:"email" binding:"required,email"`
	Captcha     string `json:"captcha" binding:"required"`
}

type LoginResponse struct {
	UserInfo     *models.Claims `json:"userInfo"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Nickname: req.Nickname,
		Email:    req.Email,
		Code:     req.Captcha,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeExpired),
			errors.Is(err, service.ErrCodeMismatch):
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserAlreadyExists):
			fail(c, http.StatusBadRequest, err.Error())
		default:
			h.log.Error("Failed to register user", zap.Error(err))
			fail(c, http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	created(c, gin.H{"id": user.ID, "username": user.Username})
}

// RegisterCaptcha sends a registration verification code to the address
// given in the query string.
func (h *UserHandler) RegisterCaptcha(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		fail(c, http.StatusBadRequest, "address is required")
		return
	}

	if err := h.users.SendCode(c.Request.Context(), service.CodePurposeRegister, address); err != nil {
		h.log.Error("Failed to send registration code", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to send verification code")
		return
	}

	ok(c, "Verification code sent")
}

// UpdatePasswordCaptcha and UpdateUserCaptcha send codes to the logged-in
// user's own email, taken from the verified claim set.
func (h *UserHandler) UpdatePasswordCaptcha(c *gin.Context) {
	h.sendIdentityCode(c, service.CodePurposeUpdatePassword)
}

func (h *UserHandler) UpdateUserCaptcha(c *gin.Context) {
	h.sendIdentityCode(c, service.CodePurposeUpdateUser)
}

func (h *UserHandler) sendIdentityCode(c *gin.Context, purpose service.CodePurpose) {
	claims, ok2 := middleware.Identity(c)
	if !ok2 {
		fail(c, http.StatusUnauthorized, "Login required")
		return
	}

	if err := h.users.SendCode(c.Request.Context(), purpose, claims.Email); err != nil {
		h.log.Error("Failed to send verification code", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to send verification code")
		return
	}

	ok(c, "Verification code sent")
}

// Login serves the user surface; AdminLogin the admin surface. They differ
// only in the is_admin partition used for the lookup.
func (h *UserHandler) Login(c *gin.Context) {
	h.login(c, false)
}

func (h *UserHandler) AdminLogin(c *gin.Context) {
	h.login(c, true)
}

func (h *UserHandler) login(c *gin.Context, isAdmin bool) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.Login(req.Username, req.Password, isAdmin)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound),
			errors.Is(err, service.ErrInvalidCredentials):
			fail(c, http.StatusBadRequest, err.Error())
		default:
			h.log.Error("Failed to login user", zap.Error(err))
			fail(c, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	claims := models.NewClaims(user)
	accessToken, err := h.tokens.IssueAccessToken(claims)
	if err != nil {
		h.log.Error("Failed to issue access token", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Login failed")
		return
	}
	refreshToken, err := h.tokens.IssueRefreshToken(claims)
	if err != nil {
		h.log.Error("Failed to issue refresh token", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Login failed")
		return
	}

	ok(c, LoginResponse{
		UserInfo:     claims,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

func (h *UserHandler) Refresh(c *gin.Context) {
	h.refresh(c, false)
}

func (h *UserHandler) AdminRefresh(c *gin.Context) {
	h.refresh(c, true)
}

func (h *UserHandler) refresh(c *gin.Context, isAdmin bool) {
	refreshToken := c.Query("refreshToken")
	if refreshToken == "" {
		fail(c, http.StatusBadRequest, "refreshToken is required")
		return
	}

	accessToken, newRefreshToken, err := h.users.Refresh(refreshToken, isAdmin)
	if err != nil {
		if errors.Is(err, service.ErrRefreshFailed) {
			fail(c, http.StatusUnauthorized, "Token expired, please log in again")
			return
		}
		h.log.Error("Failed to refresh tokens", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Refresh failed")
		return
	}

	ok(c, RefreshResponse{AccessToken: accessToken, RefreshToken: newRefreshToken})
}

func (h *UserHandler) Info(c *gin.Context) {
	claims, ok2 := middleware.Identity(c)
	if !ok2 {
		fail(c, http.StatusUnauthorized, "Login required")
		return
	}

	user, err := h.users.GetInfo(claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			fail(c, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("Failed to get user info", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to get user info")
		return
	}

	ok(c, user)
}

func (h *UserHandler) UpdatePassword(c *gin.Context) {
	claims, ok2 := middleware.Identity(c)
	if !ok2 {
		fail(c, http.StatusUnauthorized, "Login required")
		return
	}

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.users.UpdatePassword(c.Request.Context(), claims.UserID, service.UpdatePasswordInput{
		Password: req.Password,
		Email:    req.Email,
		Code:     req.Captcha,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeExpired),
			errors.Is(err, service.ErrCodeMismatch):
			fail(c, http.StatusBadRequest, err.Error())
		default:
			h.log.Error("Failed to update password", zap.Error(err))
			fail(c, http.StatusInternalServerError, "Password update failed")
		}
		return
	}

	ok(c, "Password updated")
}

func (h *UserHandler) Update(c *gin.Context) {
	claims, ok2 := middleware.Identity(c)
	if !ok2 {
		fail(c, http.StatusUnauthorized, "Login required")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.users.UpdateUser(c.Request.Context(), claims.UserID, service.UpdateUserInput{
		Avatar:      req.Avatar,
		Nickname:    req.Nickname,
		PhoneNumber: req.PhoneNumber,
		Username:    req.Username,
		Email:       req.Email,
		Code:        req.Captcha,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeExpired),
			errors.Is(err, service.ErrCodeMismatch):
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			fail(c, http.StatusNotFound, err.Error())
		default:
			h.log.Error("Failed to update user", zap.Error(err))
			fail(c, http.StatusInternalServerError, "User update failed")
		}
		return
	}

	ok(c, "User updated")
}

func (h *UserHandler) Freeze(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "id must be an integer")
		return
	}

	if err := h.users.Freeze(id); err != nil {
		h.log.Error("Failed to freeze user", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Freeze failed")
		return
	}

	ok(c, "User frozen")
}

type UserListResponse struct {
	Users      []models.User `json:"users"`
	TotalCount int64         `json:"totalCount"`
}

func (h *UserHandler) List(c *gin.Context) {
	page := queryInt(c, "pageNum", 1)
	pageSize := queryInt(c, "pageSize", 10)

	users, totalCount, err := h.users.List(page, pageSize,
		c.Query("username"), c.Query("nickname"), c.Query("email"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidPage) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("Failed to list users", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to list users")
		return
	}

	ok(c, UserListResponse{Users: users, TotalCount: totalCount})
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
