package reservations

import (
	"net/http"

	"stallbook/internal/shared/apperr"
	"stallbook/internal/shared/utils/response"
	"stallbook/internal/stallkey"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

type Controller struct {
	manager Manager
	clock   clockwork.Clock
}

func NewController(manager Manager, clock clockwork.Clock) *Controller {
	return &Controller{manager: manager, clock: clock}
}

func (c *Controller) Reserve(ctx *gin.Context) {
	var req ReserveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	key, err := stallkey.New(req.StallID, req.BookingDate)
	if err != nil {
		response.RespondError(ctx, "Invalid stall key", err)
		return
	}

	slot, err := c.manager.Reserve(ctx.Request.Context(), key, req.SessionID, 0)
	if err != nil {
		response.RespondError(ctx, "Failed to reserve stall", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Stall reserved successfully", ToHoldResponse(slot, c.clock.Now()), nil)
}

func (c *Controller) Release(ctx *gin.Context) {
	var req ReleaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	key, err := stallkey.New(req.StallID, req.BookingDate)
	if err != nil {
		response.RespondError(ctx, "Invalid stall key", err)
		return
	}

	if err := c.manager.Release(ctx.Request.Context(), key, req.SessionID); err != nil {
		response.RespondError(ctx, "Failed to release stall", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Hold released successfully", nil, nil)
}

func (c *Controller) GetHold(ctx *gin.Context) {
	var q HoldQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	key, err := stallkey.New(q.StallID, q.BookingDate)
	if err != nil {
		response.RespondError(ctx, "Invalid stall key", err)
		return
	}

	slot, err := c.manager.Get(ctx.Request.Context(), key)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		response.RespondError(ctx, "Failed to read hold", err)
		return
	}

	out := HoldStatusResponse{}
	if slot != nil {
		out.HeldByOther = !slot.HeldBy(q.SessionID)
		// other sessions only learn that the stall is taken, not by whom
		if !out.HeldByOther {
			out.Reservation = ToHoldResponse(slot, c.clock.Now())
		}
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Hold status retrieved successfully", out, nil)
}
