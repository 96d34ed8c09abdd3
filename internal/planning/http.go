package planning

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jotavsevla/agua-viva-oop-sub000/platform/apperr"
	"github.com/jotavsevla/agua-viva-oop-sub000/platform/httpkit"
)

// RunRequest triggers a manual planning cycle.
type RunRequest struct {
	CapacityPolicy string `json:"capacityPolicy" binding:"omitempty,oneof=FULL REMAINING"`
}

// RunResponse reports a manual planning cycle.
type RunResponse struct {
	Skipped          bool   `json:"skipped"`
	PlanVersion      int64  `json:"planVersion,omitempty"`
	JobID            string `json:"jobId,omitempty"`
	JobStatus        string `json:"jobStatus,omitempty"`
	EligibleOrders   int    `json:"eligibleOrders"`
	RoutesCreated    int    `json:"routesCreated"`
	StopsCreated     int    `json:"stopsCreated"`
	UnassignedOrders int    `json:"unassignedOrders"`
	RoutesSuperseded int64  `json:"routesSuperseded"`
}

func newRunResponse(r PlanResult) RunResponse {
	resp := RunResponse{
		Skipped:          r.Skipped,
		PlanVersion:      r.PlanVersion,
		JobStatus:        r.JobStatus,
		EligibleOrders:   r.EligibleOrders,
		RoutesCreated:    r.RoutesCreated,
		StopsCreated:     r.StopsCreated,
		UnassignedOrders: r.UnassignedOrders,
		RoutesSuperseded: r.RoutesSuperseded,
	}
	if r.JobID != uuid.Nil {
		resp.JobID = r.JobID.String()
	}
	return resp
}

// JobResponse is one solver job on the wire.
type JobResponse struct {
	JobID           string          `json:"jobId"`
	PlanVersion     int64           `json:"planVersion"`
	Status          string          `json:"status"`
	CancelRequested bool            `json:"cancelRequested"`
	RequestPayload  json.RawMessage `json:"requestPayload,omitempty"`
	ResponsePayload json.RawMessage `json:"responsePayload,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	FinishedAt      *time.Time      `json:"finishedAt,omitempty"`
}

func newJobResponse(j SolverJob) JobResponse {
	return JobResponse{
		JobID:           j.JobID.String(),
		PlanVersion:     j.PlanVersion,
		Status:          j.Status,
		CancelRequested: j.CancelRequested,
		RequestPayload:  j.RequestPayload,
		ResponsePayload: j.ResponsePayload,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		FinishedAt:      j.FinishedAt,
	}
}

// handleRun triggers a planning cycle by hand. A busy planner yields 202
// with skipped set rather than an error.
func (m *Module) handleRun(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	policy := CapacityRemaining
	if req.CapacityPolicy == string(CapacityFull) {
		policy = CapacityFull
	}

	result, err := m.coordinator.PlanPendingRoutes(c.Request.Context(), policy)
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if result.Skipped {
		status = http.StatusAccepted
	}
	httpkit.JSON(c, status, newRunResponse(result))
}

// handleGetJob returns one solver job.
func (m *Module) handleGetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("job id must be a UUID"))
		return
	}

	job, err := m.repo.GetJob(c.Request.Context(), m.pool, jobID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, newJobResponse(job))
}

// handleCancelJob requests cancellation of an in-flight solver job. Terminal
// jobs come back unchanged; the status tells the caller whether the cancel
// landed in time.
func (m *Module) handleCancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.Validation("job id must be a UUID"))
		return
	}

	job, err := m.repo.RequestCancel(c.Request.Context(), m.pool, jobID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, newJobResponse(job))
}
