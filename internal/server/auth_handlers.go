package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tripsplit/tripsplit/internal/apiresponse"
	"github.com/tripsplit/tripsplit/internal/auth"
	"github.com/tripsplit/tripsplit/internal/database"
	"github.com/tripsplit/tripsplit/internal/models"
)

// RegisterRequest represents a sign-up request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required" validate:"max=100"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *UserDetail `json:"user"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func userDetail(user *models.User) *UserDetail {
	return &UserDetail{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}
}

// @Summary Register
// @Description Create an account and sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Register request"
// @Success 201 {object} LoginResponse
// @Failure 400 {object} apiresponse.Response[any]
// @Failure 409 {object} apiresponse.Response[any]
// @Router /api/auth/register [post]
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Invalid request body", err.Error())
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Validation failed", err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to check existing user")
		apiresponse.Fail(c, http.StatusInternalServerError, apiresponse.CodeInternal, "Internal server error", "")
		return
	}
	if count > 0 {
		apiresponse.Fail(c, http.StatusConflict, apiresponse.CodeConflict, "Email is already registered", "")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Invalid password", err.Error())
		return
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(req.Name),
	}
	if err := s.db.Create(user).Error; err != nil {
		// Lost a race with a concurrent registration for the same email
		if database.IsUniqueViolation(err) {
			apiresponse.Fail(c, http.StatusConflict, apiresponse.CodeConflict, "Email is already registered", "")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to create user")
		apiresponse.Fail(c, http.StatusInternalServerError, apiresponse.CodeInternal, "Failed to create user", "")
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")

	resp, ok := s.issueToken(c, user)
	if !ok {
		return
	}
	apiresponse.OK(c, http.StatusCreated, "Account created", resp)
}

// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} apiresponse.Response[any]
// @Failure 401 {object} apiresponse.Response[any]
// @Router /api/auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponse.Fail(c, http.StatusBadRequest, apiresponse.CodeValidation, "Invalid request body", err.Error())
		return
	}

	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apiresponse.Fail(c, http.StatusUnauthorized, apiresponse.CodeUnauthorized, "Invalid email or password", "")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		apiresponse.Fail(c, http.StatusInternalServerError, apiresponse.CodeInternal, "Internal server error", "")
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		apiresponse.Fail(c, http.StatusUnauthorized, apiresponse.CodeUnauthorized, "Invalid email or password", "")
		return
	}

	resp, ok := s.issueToken(c, &user)
	if !ok {
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")
	apiresponse.OK(c, http.StatusOK, "Logged in", resp)
}

// @Summary Logout
// @Description Revoke the token used for this request
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} apiresponse.Response[any]
// @Router /api/auth/logout [post]
func (s *Server) logout(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	if s.revoker != nil {
		if err := s.revoker.Revoke(c.Request.Context(), sessionData.TokenID, sessionData.ExpiresAt); err != nil {
			s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to revoke token")
			apiresponse.Fail(c, http.StatusInternalServerError, apiresponse.CodeInternal, "Failed to log out", "")
			return
		}
	}

	s.logger.Info().Str("user_id", sessionData.UserID).Msg("User logged out")
	apiresponse.OK(c, http.StatusOK, "Logged out", gin.H{})
}

// @Summary Get current user
// @Description Get information about the currently authenticated user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserDetail
// @Failure 401 {object} apiresponse.Response[any]
// @Router /api/auth/me [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		apiresponse.Fail(c, http.StatusUnauthorized, apiresponse.CodeUnauthorized, "Unauthorized", "")
		return
	}

	var user models.User
	if err := models.FindByID(s.db, sessionData.UserID, &user); err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		apiresponse.Fail(c, http.StatusInternalServerError, apiresponse.CodeInternal, "Internal server error", "")
		return
	}

	apiresponse.OK(c, http.StatusOK, "Current user", userDetail(&user))
}

func (s *Server) issueToken(c *gin.Context, user *models.User) (*LoginResponse, bool) {
	token, claims, err := auth.GenerateToken(user.ID, user.Email, s.config.Auth.TokenTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		apiresponse.Fail(c, http.StatusInternalServerError, apiresponse.CodeInternal, "Failed to generate token", "")
		return nil, false
	}

	return &LoginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      userDetail(user),
	}, true
}
