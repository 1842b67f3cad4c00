package queue

import (
	"net/http"
	"strings"

	"stallbook/internal/shared/apperr"
	"stallbook/internal/shared/utils/response"
	"stallbook/internal/stallkey"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// Controller serves /api/queue with bare JSON bodies plus the admin views.
type Controller struct {
	coordinator Coordinator
	jobs        *JobProcessor
	clock       clockwork.Clock
}

func NewController(coordinator Coordinator, jobs *JobProcessor, clock clockwork.Clock) *Controller {
	return &Controller{coordinator: coordinator, jobs: jobs, clock: clock}
}

func invalidRequest(ctx *gin.Context, err error) {
	response.RespondBareError(ctx, apperr.Validation("queue.request", "%s", err.Error()))
}

// GetQueue answers a single user's status when userId is given, otherwise the whole line.
func (c *Controller) GetQueue(ctx *gin.Context) {
	var q QueueQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		invalidRequest(ctx, err)
		return
	}
	key, err := stallkey.New(q.StallID, q.BookingDate)
	if err != nil {
		response.RespondBareError(ctx, err)
		return
	}

	if q.UserID != "" {
		status, err := c.coordinator.Status(ctx.Request.Context(), key, q.UserID)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				ctx.JSON(http.StatusNotFound, gin.H{
					"queueStatus": nil,
					"error":       err.Error(),
					"kind":        apperr.KindNotFound,
				})
				return
			}
			response.RespondBareError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, QueueStatusEnvelope{QueueStatus: ToQueueStatusResponse(status)})
		return
	}

	entries, err := c.coordinator.ListQueue(ctx.Request.Context(), key)
	if err != nil {
		response.RespondBareError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, ToQueueListResponse(entries, c.clock.Now()))
}

func (c *Controller) Enqueue(ctx *gin.Context) {
	var req EnqueueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		invalidRequest(ctx, err)
		return
	}
	key, err := stallkey.New(req.StallID, req.BookingDate)
	if err != nil {
		response.RespondBareError(ctx, err)
		return
	}

	status, err := c.coordinator.Enqueue(ctx.Request.Context(), key, req.UserID, req.UserName)
	if err != nil {
		response.RespondBareError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, ToEnqueueResponse(status))
}

func (c *Controller) UpdateTicket(ctx *gin.Context) {
	var req TicketActionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		invalidRequest(ctx, err)
		return
	}

	switch strings.ToUpper(strings.TrimSpace(req.Action)) {
	case ActionAccept:
		if _, err := c.coordinator.Accept(ctx.Request.Context(), req.QueueID); err != nil {
			response.RespondBareError(ctx, err)
			return
		}
		status, err := c.coordinator.Ticket(ctx.Request.Context(), req.QueueID)
		if err != nil {
			response.RespondBareError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, QueueStatusEnvelope{QueueStatus: ToQueueStatusResponse(status)})

	case ActionReject:
		next, err := c.coordinator.Reject(ctx.Request.Context(), req.QueueID)
		if err != nil {
			response.RespondBareError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, NextInQueueResponse{NextInQueue: ToEntryResponse(next, c.clock.Now())})

	default:
		response.RespondBareError(ctx, apperr.Validation("queue.update", "invalid action %q, expected ACCEPT or REJECT", req.Action))
	}
}

func (c *Controller) Leave(ctx *gin.Context) {
	var req LeaveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		invalidRequest(ctx, err)
		return
	}

	next, err := c.coordinator.Leave(ctx.Request.Context(), req.QueueID)
	if err != nil {
		response.RespondBareError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, NextInQueueResponse{NextInQueue: ToEntryResponse(next, c.clock.Now())})
}

// Admin handlers

func (c *Controller) GetQueueStats(ctx *gin.Context) {
	var q QueueQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}
	key, err := stallkey.New(q.StallID, q.BookingDate)
	if err != nil {
		response.RespondError(ctx, "Invalid stall key", err)
		return
	}

	stats, err := c.coordinator.Stats(ctx.Request.Context(), key)
	if err != nil {
		response.RespondError(ctx, "Failed to get queue stats", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Queue stats retrieved successfully", stats, nil)
}

func (c *Controller) GetJobStatus(ctx *gin.Context) {
	if c.jobs == nil {
		response.RespondJSON(ctx, "success", http.StatusOK, "Background jobs disabled", gin.H{"status": "disabled"}, nil)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Job status retrieved successfully", c.jobs.GetJobStatus(), nil)
}

// RunSweep triggers one sweep immediately.
func (c *Controller) RunSweep(ctx *gin.Context) {
	if c.jobs == nil {
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Background jobs disabled", nil, nil)
		return
	}
	report := c.jobs.RunOnce(ctx.Request.Context())
	response.RespondJSON(ctx, "success", http.StatusOK, "Sweep completed", report, nil)
}
