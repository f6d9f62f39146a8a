package handlers

import (
	"net/http"
	"time"

	"github.com/Ayash-Bera/calypso/backend/internal/orchestrator"
	"github.com/Ayash-Bera/calypso/backend/internal/provider"
	"github.com/Ayash-Bera/calypso/backend/internal/stats"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type StatusHandler struct {
	orch    *orchestrator.Orchestrator
	tracker *stats.Tracker
	logger  *logrus.Logger
}

func NewStatusHandler(orch *orchestrator.Orchestrator, tracker *stats.Tracker, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		orch:    orch,
		tracker: tracker,
		logger:  logger,
	}
}

var startTime = time.Now()

// HandleHealth reports overall service health from the provider
// registry's last recorded probes.
func (h *StatusHandler) HandleHealth(c *gin.Context) {
	providers := h.orch.HealthSummary()

	overall := "healthy"
	for _, p := range providers {
		if p.Status == provider.StatusUnhealthy {
			overall = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    overall,
		"providers": providers,
		"uptime":    time.Since(startTime).Round(time.Second).String(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleStats exposes the rolling usage snapshot together with the
// current provider health.
func (h *StatusHandler) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":     h.tracker.Summary(),
		"providers": h.orch.HealthSummary(),
	})
}
