package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) authURL() string {
	if s.config.Auth.BaseURL == "" {
		return "not set"
	}
	return s.config.Auth.BaseURL
}

// @Router /api/health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
		"version":   s.version,
		"auth": gin.H{
			"configured": s.config.Auth.SecretConfigured,
			"url":        s.authURL(),
		},
	})
}

// @Router /ping [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now().UnixMilli(),
		"env": gin.H{
			"hasDatabase":      s.db != nil,
			"hasAuthSecret":    s.config.Auth.SecretConfigured,
			"hasAdminEmail":    s.config.Auth.AdminEmail != "",
			"demoFallback":     s.config.Auth.DemoFallbackEnabled,
			"corsWildcard":     s.config.CORS.WildcardFallback,
			"sessionStore":     s.config.Auth.SessionStore,
			"authUrl":          s.authURL(),
			"backgroundWorker": s.enqueuer != nil,
		},
	})
}

// @Router /protected [get]
// @Security SessionAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
func (s *Server) protected(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "ok", "timestamp": time.Now().UnixMilli()})
}

// @Summary Get current user
// @Description Get information about the currently authenticated user
// @Tags auth
// @Produce json
// @Security SessionAuth
// @Success 200 {object} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /me [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	rc := GetRequestContext(c)
	if rc.User == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgNotAuthenticated})
		return
	}
	c.JSON(http.StatusOK, newUserDetail(rc.User))
}
