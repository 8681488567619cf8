package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"leadflow/internal/logging"
	"leadflow/internal/realtime"
)

type NotificationHandler struct {
	Hub    *realtime.Hub
	logger *slog.Logger
}

func NewNotificationHandler(hub *realtime.Hub, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NotificationHandler{Hub: hub, logger: logger}
}

// @Summary      Поток уведомлений (websocket)
// @Description  Upgrades to a websocket streaming notifications for high-salience stage changes. Browsers pass the token as access_token.
// @Tags         Workflow
// @Param        lead_id       query  int     false  "Only this lead"
// @Param        access_token  query  string  false  "JWT when headers are not available"
// @Success      101
// @Failure      400  {object}  map[string]string
// @Router       /workflow/notifications/ws [get]
func (h *NotificationHandler) Stream(c *gin.Context) {
	var leadID int64
	if s := c.Query("lead_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lead_id"})
			return
		}
		leadID = id
	}
	if err := h.Hub.ServeWS(c.Writer, c.Request, leadID); err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
	}
}
