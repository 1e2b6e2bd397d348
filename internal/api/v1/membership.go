package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/innkeep/loyalty/internal/api/dto"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/service"
	"github.com/innkeep/loyalty/internal/types"
	"github.com/samber/lo"
)

type MembershipHandler struct {
	service service.MembershipService
	ledger  service.LedgerService
	log     *logger.Logger
}

func NewMembershipHandler(
	service service.MembershipService,
	ledger service.LedgerService,
	log *logger.Logger,
) *MembershipHandler {
	return &MembershipHandler{
		service: service,
		ledger:  ledger,
		log:     log,
	}
}

// @Summary Enroll a guest
// @Description Create a loyalty membership for a guest, starting at silver with no points
// @Tags Memberships
// @Accept json
// @Produce json
// @Param membership body dto.EnrollMembershipRequest true "Membership"
// @Success 201 {object} dto.MembershipResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /memberships [post]
func (h *MembershipHandler) Enroll(c *gin.Context) {
	var req dto.EnrollMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.Enroll(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a membership
// @Tags Memberships
// @Produce json
// @Param id path string true "Membership ID"
// @Success 200 {object} dto.MembershipResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /memberships/{id} [get]
func (h *MembershipHandler) Get(c *gin.Context) {
	resp, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a guest's membership
// @Tags Memberships
// @Produce json
// @Param guest_id path string true "Guest ID"
// @Success 200 {object} dto.MembershipResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /memberships/guest/{guest_id} [get]
func (h *MembershipHandler) GetByGuestID(c *gin.Context) {
	resp, err := h.service.GetByGuestID(c.Request.Context(), c.Param("guest_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List memberships
// @Tags Memberships
// @Produce json
// @Param filter query types.MembershipFilter false "Filter"
// @Success 200 {object} dto.ListMembershipsResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /memberships [get]
func (h *MembershipHandler) List(c *gin.Context) {
	var filter types.MembershipFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Change membership status
// @Description Suspended and cancelled memberships keep their points but cannot earn or spend them
// @Tags Memberships
// @Accept json
// @Produce json
// @Param id path string true "Membership ID"
// @Param status body dto.UpdateMembershipStatusRequest true "Status"
// @Success 200 {object} dto.MembershipResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /memberships/{id}/status [put]
func (h *MembershipHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateMembershipStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Delete a membership
// @Description Removes the membership together with its transactions, redemptions and rule executions
// @Tags Memberships
// @Produce json
// @Param id path string true "Membership ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /memberships/{id} [delete]
func (h *MembershipHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "membership deleted"})
}

// @Summary Adjust points
// @Description Manual correction of a member's balance, positive or negative
// @Tags Memberships
// @Accept json
// @Produce json
// @Param id path string true "Membership ID"
// @Param adjustment body dto.AdjustPointsRequest true "Adjustment"
// @Success 200 {object} dto.TransactionResultResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /memberships/{id}/adjust [post]
func (h *MembershipHandler) AdjustPoints(c *gin.Context) {
	var req dto.AdjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.AdjustPoints(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Points history
// @Description Most recent transactions of a membership, newest first
// @Tags Memberships
// @Produce json
// @Param id path string true "Membership ID"
// @Param limit query int false "Number of transactions"
// @Success 200 {object} dto.ListTransactionsResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /memberships/{id}/history [get]
func (h *MembershipHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.Error(ierr.WithError(err).
				WithHint("Limit must be a number").
				Mark(ierr.ErrValidation))
			return
		}
		limit = n
	}

	resp, err := h.ledger.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Export transactions
// @Description All transactions of a membership as CSV, oldest first, with the balance after each
// @Tags Memberships
// @Produce text/csv
// @Param id path string true "Membership ID"
// @Success 200 {file} file
// @Failure 404 {object} middleware.ErrorResponse
// @Router /memberships/{id}/transactions/export [get]
func (h *MembershipHandler) ExportTransactions(c *gin.Context) {
	id := c.Param("id")

	// 404 for unknown members rather than an empty file
	if _, err := h.service.Get(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	filter := types.NewNoLimitTransactionFilter()
	filter.MembershipID = lo.ToPtr(id)
	filter.Order = lo.ToPtr(types.OrderAsc)

	data, err := h.ledger.ExportTransactionsCSV(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s-transactions.csv", id))
	c.Data(http.StatusOK, "text/csv", data)
}
