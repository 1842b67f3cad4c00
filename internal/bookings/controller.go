package bookings

import (
	"net/http"

	"stallbook/internal/shared/apperr"
	"stallbook/internal/shared/utils/response"
	"stallbook/internal/stallkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service   Service
	finalizer Finalizer
}

func NewController(service Service, finalizer Finalizer) *Controller {
	return &Controller{service: service, finalizer: finalizer}
}

func bookingID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, "Invalid booking ID", apperr.Validation("bookings", "booking id must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

// Finalize handles POST /api/v1/bookings/finalize
func (c *Controller) Finalize(ctx *gin.Context) {
	var req FinalizeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	var proof Proof
	switch {
	case req.SessionID != "" && req.QueueID != "":
		response.RespondError(ctx, "Invalid request data", apperr.Validation("bookings.finalize", "send either sessionId or queueId, not both"))
		return
	case req.SessionID != "":
		proof = ReservationProof{SessionID: req.SessionID}
	case req.QueueID != "":
		proof = QueueProof{TicketID: req.QueueID}
	default:
		response.RespondError(ctx, "Invalid request data", apperr.Validation("bookings.finalize", "sessionId or queueId is required"))
		return
	}

	key, err := stallkey.New(req.StallID, req.BookingDate)
	if err != nil {
		response.RespondError(ctx, "Invalid stall key", err)
		return
	}

	booking, err := c.finalizer.Finalize(ctx.Request.Context(), key, proof, CustomerDetails{
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		response.RespondError(ctx, "Failed to finalize booking", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Booking created successfully", ToBookingResponse(booking), nil)
}

// GetBooking handles GET /api/v1/bookings/:id
func (c *Controller) GetBooking(ctx *gin.Context) {
	id, ok := bookingID(ctx)
	if !ok {
		return
	}
	booking, err := c.service.GetBooking(ctx.Request.Context(), id)
	if err != nil {
		response.RespondError(ctx, "Failed to get booking", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", ToBookingResponse(booking), nil)
}

// SubmitPaymentSlip handles POST /api/v1/bookings/:id/payment-slip
func (c *Controller) SubmitPaymentSlip(ctx *gin.Context) {
	id, ok := bookingID(ctx)
	if !ok {
		return
	}
	var req PaymentSlipRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	intent, err := c.service.SubmitPaymentSlip(ctx.Request.Context(), id, req.CustomerID, req.SlipReference)
	if err != nil {
		response.RespondError(ctx, "Failed to submit payment slip", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Payment slip submitted", ToPaymentIntentResponse(intent), nil)
}

// ListBookings handles GET /api/v1/admin/bookings
func (c *Controller) ListBookings(ctx *gin.Context) {
	var q ListBookingsQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	query := q.ToListQuery()
	bookings, total, err := c.service.ListBookings(ctx.Request.Context(), query)
	if err != nil {
		response.RespondError(ctx, "Failed to list bookings", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", ToBookingListResponse(bookings, total, query), nil)
}

// ModerateBooking handles PATCH /api/v1/admin/bookings/:id
func (c *Controller) ModerateBooking(ctx *gin.Context) {
	id, ok := bookingID(ctx)
	if !ok {
		return
	}
	var req ModerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	booking, err := c.service.Moderate(ctx.Request.Context(), id, Action(req.Action))
	if err != nil {
		response.RespondError(ctx, "Failed to update booking", err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Booking updated successfully", ToBookingResponse(booking), nil)
}
