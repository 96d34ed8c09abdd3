// Package solver is the HTTP client for the external routing optimizer.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
)

// Coordinates is a geographic point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DriverInput is one vehicle offered to the optimizer.
type DriverInput struct {
	DriverID uuid.UUID `json:"driverId"`
	Capacity int       `json:"capacity"`
}

// OrderInput is one stop candidate.
type OrderInput struct {
	OrderID     uuid.UUID  `json:"orderId"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Quantity    int        `json:"quantity"`
	WindowType  string     `json:"windowType"`
	WindowStart *time.Time `json:"windowStart,omitempty"`
	WindowEnd   *time.Time `json:"windowEnd,omitempty"`
	Priority    int        `json:"priority"`
}

// PlanRequest is the optimizer's input.
type PlanRequest struct {
	Depot      Coordinates   `json:"depot"`
	Drivers    []DriverInput `json:"drivers"`
	ShiftStart string        `json:"shiftStart"`
	ShiftEnd   string        `json:"shiftEnd"`
	Orders     []OrderInput  `json:"orders"`
}

// Stop is one scheduled visit within a planned route.
type Stop struct {
	OrderID       uuid.UUID  `json:"orderId"`
	ScheduledTime *time.Time `json:"scheduledTime"`
}

// PlannedRoute is one route in the optimizer's answer.
type PlannedRoute struct {
	DriverID uuid.UUID `json:"driverId"`
	Sequence int       `json:"sequence"`
	Stops    []Stop    `json:"stops"`
}

// PlanResponse is the optimizer's output.
type PlanResponse struct {
	Routes     []PlannedRoute `json:"routes"`
	Unassigned []uuid.UUID    `json:"unassigned"`
}

// Client calls the optimizer synchronously. Any transport error or
// non-success status is fatal for the planning cycle.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a solver client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Plan submits one optimization request.
func (c *Client) Plan(ctx context.Context, req PlanRequest) (PlanResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return PlanResponse{}, fmt.Errorf("marshal solver request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/solve", bytes.NewReader(body))
	if err != nil {
		return PlanResponse{}, fmt.Errorf("build solver request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return PlanResponse{}, apperr.Internal("solver unreachable: " + err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return PlanResponse{}, apperr.Internal("read solver response: " + err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return PlanResponse{}, apperr.Internal(fmt.Sprintf("solver returned status %d", resp.StatusCode))
	}

	var planResp PlanResponse
	if err := json.Unmarshal(raw, &planResp); err != nil {
		return PlanResponse{}, apperr.Internal("decode solver response: " + err.Error())
	}
	return planResp, nil
}
