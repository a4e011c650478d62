package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StatusFor maps an error code onto an HTTP status
func StatusFor(code domain.Code) int {
	switch code {
	case domain.CodeInvalidAmount, domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeNotAuthenticated:
		return http.StatusUnauthorized
	case domain.CodeNotAuthorized:
		return http.StatusForbidden
	case domain.CodeProjectNotFound, domain.CodeInvestmentNotFound:
		return http.StatusNotFound
	case domain.CodeProjectNotFundable,
		domain.CodeInvalidTransition,
		domain.CodeProjectHasInvestments,
		domain.CodeConcurrentUpdateConflict:
		return http.StatusConflict
	case domain.CodeIdempotencyKeyReused:
		return http.StatusUnprocessableEntity
	case domain.CodeInvestmentFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as an error envelope. Errors without a code are
// reported as INTERNAL and their text is not exposed.
func RespondError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorEnvelope{Error: APIError{
			Code:    string(domain.CodeInvestmentFailed),
			Message: "request cancelled",
		}})
		return
	}

	code := domain.CodeOf(err)
	msg := "internal error"
	var de *domain.Error
	if code != domain.CodeInternal && errors.As(err, &de) {
		msg = de.Message
	}
	if code == domain.CodeInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(StatusFor(code), ErrorEnvelope{Error: APIError{Code: string(code), Message: msg}})
}

// RespondInvalid reports a malformed request
func RespondInvalid(c *gin.Context, code domain.Code, msg string) {
	c.AbortWithStatusJSON(StatusFor(code), ErrorEnvelope{Error: APIError{Code: string(code), Message: msg}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
