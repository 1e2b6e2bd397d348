package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/service"
	"github.com/innkeep/loyalty/internal/types"
)

type TransactionHandler struct {
	ledger service.LedgerService
	log    *logger.Logger
}

func NewTransactionHandler(ledger service.LedgerService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		ledger: ledger,
		log:    log,
	}
}

// @Summary List transactions
// @Description Ledger entries across members, filtered by date range, type and guest
// @Tags Transactions
// @Produce json
// @Param filter query types.TransactionFilter false "Filter"
// @Success 200 {object} dto.ListTransactionsResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	var filter types.TransactionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.ledger.ListTransactions(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
