package response

import (
	"net/http"
	"strconv"

	"stallbook/internal/shared/apperr"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps a classified error onto the standard envelope
func RespondError(c *gin.Context, message string, err error) {
	code := apperr.HTTPStatus(err)
	markServerError(c, code, err)
	if apperr.Retryable(err) {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	RespondJSON(c, "error", code, message, nil, ErrorDetail{
		Kind:   string(apperr.KindOf(err)),
		Detail: err.Error(),
	})
}

// RespondBareError writes {error, kind} for endpoints that return bare JSON bodies
func RespondBareError(c *gin.Context, err error) {
	code := apperr.HTTPStatus(err)
	markServerError(c, code, err)
	if apperr.Retryable(err) {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	c.JSON(code, BareError{Error: err.Error(), Kind: string(apperr.KindOf(err))})
}

const retryAfterSeconds = 2

// markServerError attaches 5xx causes to the context for the request logger.
func markServerError(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
}
