package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/service"
	"github.com/innkeep/loyalty/internal/types"
)

type ReportHandler struct {
	service service.ReportService
	log     *logger.Logger
}

func NewReportHandler(service service.ReportService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		log:     log,
	}
}

// @Summary Program stats
// @Description Points issued and redeemed in the window, balances, tier distribution and the most active members
// @Tags Reports
// @Produce json
// @Param filter query types.ReportFilter false "Filter"
// @Success 200 {object} dto.StatsResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /reports/stats [get]
func (h *ReportHandler) GetStats(c *gin.Context) {
	var filter types.ReportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.GetStats(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
