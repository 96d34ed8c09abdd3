// Package handler exposes the orders module over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/service"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/transport"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/httpkit"
)

// Handler handles order HTTP requests.
type Handler struct {
	intake *service.Intake
	reader *service.Reader
}

// New creates the orders handler.
func New(intake *service.Intake, reader *service.Reader) *Handler {
	return &Handler{intake: intake, reader: reader}
}

// PhoneIntake registers a phone or manual order attempt.
func (h *Handler) PhoneIntake(c *gin.Context) {
	var req transport.PhoneIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.intake.RegisterOrder(c.Request.Context(), service.IntakeRequest{
		ExternalCallID: req.ExternalCallID,
		Phone:          req.Phone,
		Quantity:       req.Quantity,
		AgentID:        req.AgentID,
		PaymentMethod:  req.PaymentMethod,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	httpkit.JSON(c, status, transport.IntakeResponse{
		Order:    transport.NewOrderResponse(result.Order),
		Replayed: result.Replayed,
	})
}

// GetByID returns one committed order.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("order id must be a UUID"))
		return
	}

	order, err := h.reader.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewOrderResponse(order))
}
