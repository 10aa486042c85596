package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ailawyer-pro/ailawyer/internal/tasks"
	"github.com/ailawyer-pro/ailawyer/internal/workers"
)

// @Summary List users
// @Description List all users (admin only)
// @Tags admin
// @Produce json
// @Security SessionAuth
// @Success 200 {array} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/admin/users [get]
func (s *Server) listUsers(c *gin.Context) {
	users, err := s.provider.ListUsers(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	userDetails := make([]*UserDetail, len(users))
	for i := range users {
		userDetails[i] = newUserDetail(&users[i])
	}

	c.JSON(http.StatusOK, userDetails)
}

// @Summary Purge expired sessions
// @Description Enqueues a purge on the worker, or runs it inline when no worker queue is configured (admin only)
// @Tags admin
// @Produce json
// @Security SessionAuth
// @Success 200 {object} map[string]interface{}
// @Success 202 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/admin/sessions/purge [post]
func (s *Server) purgeSessions(c *gin.Context) {
	rc := GetRequestContext(c)

	if s.enqueuer == nil {
		removed, err := s.provider.PurgeExpired(c.Request.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to purge expired sessions")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purge sessions"})
			return
		}
		s.logger.Info().Int64("removed", removed).Str("requested_by", rc.User.ID).Msg("Expired sessions purged")
		c.JSON(http.StatusOK, gin.H{"removed": removed})
		return
	}

	now := time.Now()
	info, err := workers.EnqueuePurge(s.enqueuer, now, rc.User.ID, s.logger)
	if errors.Is(err, workers.ErrPurgePending) {
		c.JSON(http.StatusAccepted, gin.H{
			"task_id": tasks.PurgeTaskID(now, workers.PurgeWindow),
			"queue":   tasks.QueueLow,
			"pending": true,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to schedule purge"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
}
