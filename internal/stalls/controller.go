package stalls

import (
	"net/http"

	"stallbook/internal/shared/utils/response"
	"stallbook/internal/stallkey"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

type Controller struct {
	catalog   Catalog
	selection SelectionService
	clock     clockwork.Clock
}

func NewController(catalog Catalog, selection SelectionService, clock clockwork.Clock) *Controller {
	return &Controller{catalog: catalog, selection: selection, clock: clock}
}

// GetStallMap handles GET /api/v1/stalls?zone=&date=&sessionId=
func (c *Controller) GetStallMap(ctx *gin.Context) {
	var q MapQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	entries, err := c.selection.Map(ctx.Request.Context(), q.Zone, q.Date, q.SessionID)
	if err != nil {
		response.RespondError(ctx, "Failed to load stall map", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Stalls retrieved successfully", ToStallMapResponse(q.Zone, q.Date, entries), nil)
}

// GetStall handles GET /api/v1/stalls/:code
func (c *Controller) GetStall(ctx *gin.Context) {
	stall, err := c.catalog.FindByCode(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		response.RespondError(ctx, "Failed to get stall", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Stall retrieved successfully", ToStallResponse(stall), nil)
}

// Select handles POST /api/v1/stalls/select
func (c *Controller) Select(ctx *gin.Context) {
	var req SelectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}
	key, err := stallkey.New(req.StallID, req.BookingDate)
	if err != nil {
		response.RespondError(ctx, "Invalid stall key", err)
		return
	}

	result, err := c.selection.Select(ctx.Request.Context(), key, req.SessionID, req.UserID, req.UserName)
	if err != nil {
		response.RespondError(ctx, "Failed to select stall", err)
		return
	}

	message := "Stall reserved successfully"
	if result.Mode == SelectionQueued {
		message = "Stall is taken, joined the waiting queue"
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, message, ToSelectResponse(result, c.clock.Now()), nil)
}

// UpsertStall handles PUT /api/v1/admin/stalls/:code
func (c *Controller) UpsertStall(ctx *gin.Context) {
	var req UpsertStallRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	stall := &Stall{
		Code:        ctx.Param("code"),
		Zone:        req.Zone,
		Size:        req.Size,
		PricePerDay: req.PricePerDay,
		Status:      req.Status,
	}
	if stall.Status == "" {
		stall.Status = StallActive
	}
	if err := c.catalog.Save(ctx.Request.Context(), stall); err != nil {
		response.RespondError(ctx, "Failed to save stall", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Stall saved successfully", ToStallResponse(stall), nil)
}
