package server

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ailawyer-pro/ailawyer/internal/auth"
	"github.com/ailawyer-pro/ailawyer/internal/models"
)

const (
	requestContextKey = "request_context"

	msgNotAuthenticated = "You are not authenticated"
	msgForbiddenRole    = "Forbidden: insufficient role"
)

// RequestContext is what the auth gate publishes for every request. User
// and Session are nil when no session resolved.
type RequestContext struct {
	User    *models.User
	Session *models.Session
	DB      *gorm.DB
}

// Authenticated reports whether a session is attached
func (rc *RequestContext) Authenticated() bool {
	return rc.Session != nil
}

// GetRequestContext returns the gate's context. Requests that bypassed the
// gate get an empty, unauthenticated context, never nil.
func GetRequestContext(c *gin.Context) *RequestContext {
	if v, ok := c.Get(requestContextKey); ok {
		if rc, ok := v.(*RequestContext); ok && rc != nil {
			return rc
		}
	}
	return &RequestContext{}
}

// AuthGate resolves the session for every request. Resolution failures are
// logged and treated as "no session"; the gate never aborts the chain.
func AuthGate(resolver auth.IdentityResolver, db *gorm.DB, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "auth_gate").Logger()

	return func(c *gin.Context) {
		rc := &RequestContext{}
		if db != nil {
			rc.DB = db.WithContext(c.Request.Context())
		}

		identity, err := resolveIdentity(c, resolver)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Session resolution failed, continuing without session")
		case identity == nil || identity.Session == nil:
			log.Debug().Str("path", c.Request.URL.Path).Msg("No session")
		default:
			rc.User = identity.User
			rc.Session = identity.Session
			log.Debug().
				Str("path", c.Request.URL.Path).
				Str("session_id", identity.Session.ID).
				Str("user_id", identity.Session.UserID).
				Msg("Session resolved")
		}

		c.Set(requestContextKey, rc)
		c.Next()
	}
}

// resolveIdentity converts a resolver panic into an error
func resolveIdentity(c *gin.Context, resolver auth.IdentityResolver) (identity *auth.Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			identity, err = nil, fmt.Errorf("identity resolver panicked: %v", r)
		}
	}()
	return resolver.Resolve(c.Request.Context(), c.Request)
}

// AuthenticatedOnly rejects requests without a session with 401
func AuthenticatedOnly(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetRequestContext(c).Authenticated() {
			log.Info().Str("path", c.Request.URL.Path).Msg("Unauthorized access attempt")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgNotAuthenticated})
			return
		}
		c.Next()
	}
}

// RequireRole rejects requests without a session (401) or whose user lacks
// role (403). Authentication is checked first.
func RequireRole(role string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := GetRequestContext(c)
		if !rc.Authenticated() {
			log.Info().Str("path", c.Request.URL.Path).Msg("Unauthorized access attempt")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgNotAuthenticated})
			return
		}

		if rc.User == nil || rc.User.Role != role {
			userRole := ""
			if rc.User != nil {
				userRole = rc.User.Role
			}
			log.Info().
				Str("path", c.Request.URL.Path).
				Str("required_role", role).
				Str("user_role", userRole).
				Msg("Insufficient role")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": msgForbiddenRole})
			return
		}

		c.Next()
	}
}

// RequireAdmin ensures the authenticated user is an admin
func RequireAdmin(log zerolog.Logger) gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, log)
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if rc := GetRequestContext(c); rc.User != nil {
			event = event.Str("user_id", rc.User.ID)
		}
		event.Msg("HTTP request")
	}
}

// recoveryMiddleware turns panics into a generic 500. Only the panic
// message reaches the client; the stack goes to the log.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		s.logger.Error().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("panic", fmt.Sprint(recovered)).
			Bytes("stack", debug.Stack()).
			Msg("Unhandled error")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error",
			"message": "An unexpected error occurred",
			"details": fmt.Sprint(recovered),
		})
	})
}
