package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/innkeep/loyalty/internal/api/dto"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/service"
	"github.com/innkeep/loyalty/internal/types"
)

type RewardHandler struct {
	service service.RewardService
	log     *logger.Logger
}

func NewRewardHandler(service service.RewardService, log *logger.Logger) *RewardHandler {
	return &RewardHandler{
		service: service,
		log:     log,
	}
}

// @Summary Create a reward
// @Tags Rewards
// @Accept json
// @Produce json
// @Param reward body dto.CreateRewardRequest true "Reward"
// @Success 201 {object} dto.RewardResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /rewards [post]
func (h *RewardHandler) CreateReward(c *gin.Context) {
	var req dto.CreateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateReward(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a reward
// @Tags Rewards
// @Produce json
// @Param id path string true "Reward ID"
// @Success 200 {object} dto.RewardResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /rewards/{id} [get]
func (h *RewardHandler) GetReward(c *gin.Context) {
	resp, err := h.service.GetReward(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List rewards
// @Tags Rewards
// @Produce json
// @Param filter query types.RewardFilter false "Filter"
// @Success 200 {object} dto.ListRewardsResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /rewards [get]
func (h *RewardHandler) ListRewards(c *gin.Context) {
	var filter types.RewardFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.ListRewards(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update a reward
// @Tags Rewards
// @Accept json
// @Produce json
// @Param id path string true "Reward ID"
// @Param reward body dto.UpdateRewardRequest true "Reward"
// @Success 200 {object} dto.RewardResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /rewards/{id} [put]
func (h *RewardHandler) UpdateReward(c *gin.Context) {
	var req dto.UpdateRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateReward(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Retire a reward
// @Description The reward becomes inactive, existing redemptions are kept
// @Tags Rewards
// @Produce json
// @Param id path string true "Reward ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /rewards/{id} [delete]
func (h *RewardHandler) DeleteReward(c *gin.Context) {
	if err := h.service.DeleteReward(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "reward deleted"})
}

// @Summary Redeem a reward
// @Description Spend a guest's points on one unit of the reward
// @Tags Rewards
// @Accept json
// @Produce json
// @Param id path string true "Reward ID"
// @Param redemption body dto.RedeemRewardRequest true "Redemption"
// @Success 201 {object} dto.RedeemRewardResponse
// @Success 200 {object} dto.RedeemRewardResponse "Replayed by idempotency key"
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /rewards/{id}/redeem [post]
func (h *RewardHandler) Redeem(c *gin.Context) {
	var req dto.RedeemRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.Redeem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	if resp.Replayed {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary List redemptions
// @Tags Rewards
// @Produce json
// @Param filter query types.RedemptionFilter false "Filter"
// @Success 200 {object} dto.ListRedemptionsResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /redemptions [get]
func (h *RewardHandler) ListRedemptions(c *gin.Context) {
	var filter types.RedemptionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.ListRedemptions(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
