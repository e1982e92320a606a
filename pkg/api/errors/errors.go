package errors

import (
	"log"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/verdantdigital/expressbuild/pkg/models"
)

// Messages returned to clients. They match what the storefront already displays.
const (
	MsgMissingFields    = "Missing required fields"
	MsgInvalidAmount    = "Invalid amount"
	MsgMethodNotAllowed = "Method not allowed"
	MsgProcessorError   = "Payment processor error"
)

// InvalidRequest returns 400 for a malformed body or missing fields
func InvalidRequest(c echo.Context, err error) error {
	log.Printf("[INVALID REQUEST] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: MsgMissingFields,
	})
}

// InvalidAmount returns 400 when the client-supplied amount does not match the fixed price
func InvalidAmount(c echo.Context, got int64) error {
	log.Printf("[INVALID AMOUNT] Path: %s, Amount: %d, IP: %s", c.Request().URL.Path, got, c.RealIP())

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: MsgInvalidAmount,
	})
}

// SignatureInvalid returns 400 in plain text so the processor records the failed delivery
func SignatureInvalid(c echo.Context, err error) error {
	log.Printf("[SIGNATURE INVALID] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.String(http.StatusBadRequest, "Webhook Error: "+err.Error())
}

// PaymentProcessorError returns 500 for failures reported by the payment processor
func PaymentProcessorError(c echo.Context, err error) error {
	log.Printf("[PROCESSOR ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
	capture(c, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   MsgProcessorError,
		Message: "We could not reach the payment processor. Please try again.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
	capture(c, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// MethodNotAllowed returns 405
func MethodNotAllowed(c echo.Context) error {
	return c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{
		Error: MsgMethodNotAllowed,
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: "The requested resource was not found.",
	})
}

// HTTPErrorHandler renders Echo's own errors (unknown route, wrong method, oversized body)
// in the same JSON shape as handler errors.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he, ok := err.(*echo.HTTPError)
	if !ok {
		_ = InternalError(c, err)
		return
	}

	switch he.Code {
	case http.StatusMethodNotAllowed:
		_ = MethodNotAllowed(c)
	case http.StatusNotFound:
		_ = NotFoundError(c, c.Request().URL.Path)
	case http.StatusInternalServerError:
		_ = InternalError(c, err)
	default:
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		_ = c.JSON(he.Code, models.ErrorResponse{Error: msg})
	}
}

// capture forwards err to Sentry through the request hub when the middleware is installed
func capture(c echo.Context, err error) {
	if hub := sentryecho.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
		return
	}
	if sentry.CurrentHub().Client() != nil {
		sentry.CaptureException(err)
	}
}
