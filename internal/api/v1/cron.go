package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/service"
)

// CronHandler exposes the periodic jobs so an external scheduler can trigger them
type CronHandler struct {
	ledger service.LedgerService
	log    *logger.Logger
}

func NewCronHandler(ledger service.LedgerService, log *logger.Logger) *CronHandler {
	return &CronHandler{
		ledger: ledger,
		log:    log,
	}
}

// @Summary Expire points
// @Description Debit every earned credit whose expiry date has passed
// @Tags Cron
// @Produce json
// @Success 200 {object} dto.ExpirePointsResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /cron/points/expire [post]
func (h *CronHandler) ExpirePoints(c *gin.Context) {
	start := time.Now()

	resp, err := h.ledger.ExpireDuePoints(c.Request.Context(), start.UTC())
	if err != nil {
		h.log.Errorw("points expiry failed", "error", err)
		c.Error(err)
		return
	}

	h.log.Infow("points expiry completed",
		"expired", resp.Expired,
		"points_expired", resp.PointsExpired,
		"skipped", resp.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	c.JSON(http.StatusOK, resp)
}
