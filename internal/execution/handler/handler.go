// Package handler exposes route start and delivery finalization over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jotavsevla/agua-viva-oop-sub000/internal/execution/service"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/execution/transport"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/idempotency"
	"github.com/jotavsevla/agua-viva-oop-sub000/internal/orders/domain"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/httpkit"
)

// Handler handles execution HTTP requests.
type Handler struct {
	svc       *service.Service
	processor *idempotency.Processor
}

// New creates the execution handler.
func New(svc *service.Service, processor *idempotency.Processor) *Handler {
	return &Handler{svc: svc, processor: processor}
}

// StartRoute starts one specific route.
func (h *Handler) StartRoute(c *gin.Context) {
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("route id must be a UUID"))
		return
	}

	var req transport.StartRouteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	result, err := h.svc.StartRoute(c.Request.Context(), routeID, req.DriverID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewStartRouteResponse(result))
}

// StartNextRoute is the driver's one-click start.
func (h *Handler) StartNextRoute(c *gin.Context) {
	driverID, err := uuid.Parse(c.Param("driverId"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("driver id must be a UUID"))
		return
	}

	result, err := h.svc.StartNextReadyRoute(c.Request.Context(), driverID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewStartRouteResponse(result))
}

// Finalize finishes one delivery. With an externalEventId the call is
// deduplicated across retries and replays the original response.
func (h *Handler) Finalize(c *gin.Context) {
	deliveryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("delivery id must be a UUID"))
		return
	}

	var req transport.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	svcReq := service.FinalizeRequest{
		DeliveryID:     deliveryID,
		Target:         domain.DeliveryStatus(req.Outcome),
		Motive:         req.Motive,
		ChargeCents:    req.ChargeCents,
		ActingDriverID: req.DriverID,
	}

	if req.ExternalEventID == "" {
		result, err := h.svc.Finalize(c.Request.Context(), svcReq)
		if err != nil && !result.VoucherSettlementFailed {
			httpkit.HandleError(c, err)
			return
		}
		httpkit.OK(c, transport.NewFinalizeResponse(result))
		return
	}

	hash, err := idempotency.Hash(req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	result, err := h.processor.Process(c.Request.Context(), req.ExternalEventID, hash, "DELIVERY_FINALIZE", "delivery", deliveryID.String(),
		func(ctx context.Context, tx pgx.Tx) (any, error) {
			res, err := h.svc.FinalizeInTx(ctx, tx, svcReq)
			if err != nil {
				return nil, err
			}
			return transport.NewFinalizeResponse(res), nil
		})
	if httpkit.HandleError(c, err) {
		return
	}
	c.Data(http.StatusOK, "application/json", result.Response)
}
