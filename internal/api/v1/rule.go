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

type RuleHandler struct {
	service service.RuleService
	log     *logger.Logger
}

func NewRuleHandler(service service.RuleService, log *logger.Logger) *RuleHandler {
	return &RuleHandler{
		service: service,
		log:     log,
	}
}

// @Summary Create a rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param rule body dto.CreateRuleRequest true "Rule"
// @Success 201 {object} dto.RuleResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /rules [post]
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req dto.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateRule(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a rule
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} dto.RuleResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /rules/{id} [get]
func (h *RuleHandler) GetRule(c *gin.Context) {
	resp, err := h.service.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List rules
// @Tags Rules
// @Produce json
// @Param filter query types.RuleFilter false "Filter"
// @Success 200 {object} dto.ListRulesResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /rules [get]
func (h *RuleHandler) ListRules(c *gin.Context) {
	var filter types.RuleFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.ListRules(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Update a rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param rule body dto.UpdateRuleRequest true "Rule"
// @Success 200 {object} dto.RuleResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /rules/{id} [put]
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	var req dto.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateRule(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Delete a rule
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /rules/{id} [delete]
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	if err := h.service.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "rule deleted"})
}

// @Summary Dry-run a rule
// @Description Evaluate a rule against a sample payload without touching any balance
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param sample body dto.TestRuleRequest true "Sample event"
// @Success 200 {object} dto.TestRuleResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /rules/{id}/test [post]
func (h *RuleHandler) TestRule(c *gin.Context) {
	var req dto.TestRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.TestRule(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List rule executions
// @Description Audit trail of every rule the engine applied, skipped or failed
// @Tags Rules
// @Produce json
// @Param filter query types.RuleExecutionFilter false "Filter"
// @Success 200 {object} dto.ListRuleExecutionsResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /rules/executions [get]
func (h *RuleHandler) ListExecutions(c *gin.Context) {
	var filter types.RuleExecutionFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	resp, err := h.service.ListExecutions(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
