package bookings

import (
	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures the customer-facing booking routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller) {
	bookings := rg.Group("/bookings")
	{
		bookings.POST("/finalize", controller.Finalize)                  // POST /api/v1/bookings/finalize
		bookings.GET("/:id", controller.GetBooking)                      // GET /api/v1/bookings/:id
		bookings.POST("/:id/payment-slip", controller.SubmitPaymentSlip) // POST /api/v1/bookings/:id/payment-slip
	}
}

// SetupBookingAdminRoutes expects admin to already require the ADMIN role
func SetupBookingAdminRoutes(admin *gin.RouterGroup, controller *Controller) {
	bookings := admin.Group("/bookings")
	{
		bookings.GET("", controller.ListBookings)          // GET /api/v1/admin/bookings
		bookings.PATCH("/:id", controller.ModerateBooking) // PATCH /api/v1/admin/bookings/:id
	}
}

// Finalize flow:
// 1. Customer gets a hold (POST /stalls/select or /reservations) or accepts a
//    queue offer (PATCH /api/queue).
// 2. POST /bookings/finalize with sessionId or queueId writes a pending booking
//    and a payment intent, then retires the hold or claim.
// 3. Customer uploads a bank slip with POST /bookings/:id/payment-slip.
// 4. Admin approves (confirmed + paid), rejects, or completes the booking.
