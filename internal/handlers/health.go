package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/uniauth/internal/monitoring"
)

// Health reports readiness. Any probe that is not up turns the response into a 503.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))

		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
