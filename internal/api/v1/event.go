package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/innkeep/loyalty/internal/api/dto"
	ierr "github.com/innkeep/loyalty/internal/errors"
	"github.com/innkeep/loyalty/internal/logger"
	"github.com/innkeep/loyalty/internal/service"
)

type EventHandler struct {
	ruleService  service.RuleService
	eventService service.EventService
	log          *logger.Logger
}

func NewEventHandler(ruleService service.RuleService, eventService service.EventService, log *logger.Logger) *EventHandler {
	return &EventHandler{
		ruleService:  ruleService,
		eventService: eventService,
		log:          log,
	}
}

// @Summary Process a loyalty event
// @Description Run every active rule for the trigger now and return what each one did
// @Tags Events
// @Accept json
// @Produce json
// @Param event body dto.LoyaltyEventRequest true "Event"
// @Success 200 {object} dto.ProcessEventResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /events [post]
func (h *EventHandler) ProcessEvent(c *gin.Context) {
	var req dto.LoyaltyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	resp, err := h.ruleService.ProcessEvent(c.Request.Context(), req.ToEvent())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Publish a loyalty event
// @Description Queue the event on the event bus, rules are applied by the consumer
// @Tags Events
// @Accept json
// @Produce json
// @Param event body dto.LoyaltyEventRequest true "Event"
// @Success 202 {object} dto.PublishEventResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /events/publish [post]
func (h *EventHandler) PublishEvent(c *gin.Context) {
	var req dto.LoyaltyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.eventService.PublishEvent(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}
