package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"CampusHub/logger"
)

// HandlePresence serves GET /ws/presence/:user_id from the backplane
// mirror, so it answers for connections on any gateway process. Best
// effort by design: a connect or disconnect may not be mirrored yet.
func (g *Gateway) HandlePresence(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	conns, err := g.presence.UserConnections(c.Request.Context(), userID.String())
	if err != nil {
		logger.Error("presence lookup failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "presence lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID.String(),
		"online":      len(conns) > 0,
		"connections": len(conns),
	})
}

// HandleStats serves GET /ws/stats with process-local registry counters.
// Debugging surface, not part of the delivery path.
func (g *Gateway) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connections": g.mgr.ConnectionCount(),
		"users":       g.mgr.UserCount(),
	})
}
