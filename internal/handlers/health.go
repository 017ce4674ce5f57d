package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports process liveness. Upstream reachability is deliberately not
// probed; a down directory surfaces per-request instead.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
