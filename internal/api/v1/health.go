package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/repository"
)

type HealthHandler struct {
	backend *repository.Backend
	logger  *logger.Logger
}

func NewHealthHandler(
	backend *repository.Backend,
	logger *logger.Logger,
) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		logger:  logger,
	}
}

// @Summary Health check
// @Description Reports whether the service and its store are reachable
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.backend.Ping(c.Request.Context()); err != nil {
		h.logger.Errorw("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "storage": string(h.backend.Type)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "storage": string(h.backend.Type)})
}
