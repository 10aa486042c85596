package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ailawyer-pro/ailawyer/internal/auth"
	"github.com/ailawyer-pro/ailawyer/internal/models"
)

// SignUpRequest represents an email/password registration
type SignUpRequest struct {
	Email    string `json:"email" binding:"required" validate:"required,email,max=254"`
	Password string `json:"password" binding:"required" validate:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required" validate:"required,max=100"`
}

// SignInRequest represents an email/password credential exchange
type SignInRequest struct {
	Email    string `json:"email" binding:"required" validate:"required,email"`
	Password string `json:"password" binding:"required" validate:"required"`
}

// AuthResponse is returned by sign-up and sign-in
type AuthResponse struct {
	Token   string         `json:"token"`
	User    *UserDetail    `json:"user"`
	Session *SessionDetail `json:"session"`
}

// SessionResponse is returned by get-session when a session exists
type SessionResponse struct {
	Session *SessionDetail `json:"session"`
	User    *UserDetail    `json:"user"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionDetail represents session information returned in responses
type SessionDetail struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserDetail(u *models.User) *UserDetail {
	if u == nil {
		return nil
	}
	return &UserDetail{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func newSessionDetail(s *models.Session) *SessionDetail {
	if s == nil {
		return nil
	}
	return &SessionDetail{
		ID:        s.ID,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
}

// @Summary Sign up
// @Description Creates an account. The configured admin email receives the admin role.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Sign-up request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/auth/sign-up/email [post]
func (s *Server) signUp(c *gin.Context) {
	if !s.checkAuthOrigin(c) {
		return
	}

	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		s.logger.Warn().Err(err).Msg("Sign-up validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	result, err := s.provider.SignUp(c.Request.Context(), auth.SignUpParams{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}
		if errors.Is(err, auth.ErrPasswordTooLong) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to sign up")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	s.respondWithSession(c, result)
}

// @Summary Sign in
// @Description Exchanges email and password for a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Sign-in request"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/sign-in/email [post]
func (s *Server) signIn(c *gin.Context) {
	if !s.checkAuthOrigin(c) {
		return
	}

	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	result, err := s.provider.SignIn(c.Request.Context(), auth.SignInParams{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to sign in")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication error"})
		return
	}

	s.respondWithSession(c, result)
}

// @Summary Sign out
// @Description Revokes the current session and clears the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/sign-out [post]
func (s *Server) signOut(c *gin.Context) {
	if !s.checkAuthOrigin(c) {
		return
	}

	token := s.provider.TokenFromRequest(c.Request)
	if err := s.provider.SignOut(c.Request.Context(), token); err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign out")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication error", "message": err.Error()})
		return
	}

	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Get session
// @Description Returns the current session and user, or null
// @Tags auth
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /api/auth/get-session [get]
func (s *Server) getSession(c *gin.Context) {
	token := s.provider.TokenFromRequest(c.Request)
	if token == "" {
		c.JSON(http.StatusOK, nil)
		return
	}

	identity, err := s.provider.GetSession(c.Request.Context(), token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("get-session found no live session")
		c.JSON(http.StatusOK, nil)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		Session: newSessionDetail(identity.Session),
		User:    newUserDetail(identity.User),
	})
}

func (s *Server) respondWithSession(c *gin.Context, result *auth.AuthResult) {
	s.setSessionCookie(c, result.Token, result.Session.ExpiresAt)
	c.JSON(http.StatusOK, AuthResponse{
		Token:   result.Token,
		User:    newUserDetail(result.User),
		Session: newSessionDetail(result.Session),
	})
}

// checkAuthOrigin rejects state-changing auth calls from untrusted browser
// origins, even when CORS is running with the wildcard fallback.
func (s *Server) checkAuthOrigin(c *gin.Context) bool {
	origin := c.GetHeader("Origin")
	if origin == "" || s.origins.Trusted(origin) || strings.EqualFold(origin, requestOrigin(c)) {
		return true
	}
	s.logger.Warn().Str("origin", origin).Str("path", c.Request.URL.Path).Msg("Auth request from untrusted origin")
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid origin"})
	return false
}

func (s *Server) setSessionCookie(c *gin.Context, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge <= 0 {
		maxAge = int(s.provider.SessionTTL().Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.provider.CookieName(), token, maxAge, "/", "", s.secureCookies(c), true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.provider.CookieName(), "", -1, "/", "", s.secureCookies(c), true)
}

func (s *Server) secureCookies(c *gin.Context) bool {
	return c.Request.TLS != nil ||
		strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") ||
		strings.HasPrefix(s.config.Auth.BaseURL, "https://")
}

// requestOrigin is the scheme://host the request was addressed to
func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
