package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"leadflow/internal/authz"
	"leadflow/internal/middleware"
	"leadflow/internal/models"
	"leadflow/internal/workflow"
)

// более устойчиво к типам (int / int64 / float64 / string)
func getInt64FromCtx(c *gin.Context, key string) (int64, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getUserAndRole(c *gin.Context) (userID int64, roleID int) {
	if id, ok := getInt64FromCtx(c, middleware.CtxUserID); ok {
		userID = id
	}
	if id, ok := getInt64FromCtx(c, middleware.CtxRoleID); ok {
		roleID = int(id)
	}
	return
}

// actorFromCtx: the automation service account acts as the system.
func actorFromCtx(c *gin.Context) (actor models.Actor, automated bool) {
	userID, roleID := getUserAndRole(c)
	if authz.IsAutomation(roleID) {
		return models.SystemActor, true
	}
	return models.UserActor(userID), false
}

func parseLeadID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// writeError разносит ошибки workflow по статус-кодам.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		unknown  *models.UnknownStageError
		invalid  *workflow.InvalidTransitionError
		reason   *workflow.ReasonPolicyError
		conflict *workflow.ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &invalid):
		allowed := invalid.Allowed
		if allowed == nil {
			allowed = []models.Stage{}
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   invalid.Error(),
			"reason":  invalid.Reason,
			"from":    invalid.From,
			"to":      invalid.To,
			"allowed": allowed,
		})
	case errors.As(err, &unknown), errors.As(err, &reason):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrLeadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "lead not found"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error()})
	default:
		logger.Error("workflow request failed", slog.String("path", c.FullPath()), slog.Any("error", err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
