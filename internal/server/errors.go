package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/cloudnest/internal/auth/domain"
	catalogdomain "github.com/smallbiznis/cloudnest/internal/catalog/domain"
	invoicedomain "github.com/smallbiznis/cloudnest/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/cloudnest/internal/order/domain"
	paymentdomain "github.com/smallbiznis/cloudnest/internal/payment/domain"
	"github.com/smallbiznis/cloudnest/internal/pricing"
	provisioningdomain "github.com/smallbiznis/cloudnest/internal/provisioning/domain"
	"github.com/smallbiznis/cloudnest/internal/ratelimit"
	"github.com/smallbiznis/cloudnest/internal/scheduler"
	settingsdomain "github.com/smallbiznis/cloudnest/internal/settings/domain"
	supportdomain "github.com/smallbiznis/cloudnest/internal/support/domain"
	userdomain "github.com/smallbiznis/cloudnest/internal/user/domain"
	walletdomain "github.com/smallbiznis/cloudnest/internal/wallet/domain"
	"github.com/smallbiznis/cloudnest/pkg/db"
	"github.com/smallbiznis/cloudnest/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isStateError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_state",
			Message: stateErrorCode(err),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrMissingToken),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrUnknownUser):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, userdomain.ErrEmailTaken),
		errors.Is(err, catalogdomain.ErrSlugTaken),
		errors.Is(err, invoicedomain.ErrDuplicate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, db.ErrTransient):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	switch {
	case len(payload.Errors) > 0:
		code = payload.Errors[0].Code
	case payload.Type == "invalid_state":
		code = payload.Message
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	pagination.ErrInvalidPageToken,
	pricing.ErrInvalidBillingCycle,
	userdomain.ErrInvalidID,
	userdomain.ErrInvalidEmail,
	userdomain.ErrInvalidName,
	userdomain.ErrInvalidRole,
	catalogdomain.ErrInvalidID,
	catalogdomain.ErrInvalidName,
	catalogdomain.ErrInvalidPlanType,
	catalogdomain.ErrInvalidPrice,
	catalogdomain.ErrInvalidCategory,
	catalogdomain.ErrInvalidBillingCycle,
	catalogdomain.ErrInvalidLocation,
	walletdomain.ErrInvalidAmount,
	walletdomain.ErrInvalidPaymentMethod,
	walletdomain.ErrInvalidTopUpID,
	invoicedomain.ErrInvalidID,
	invoicedomain.ErrInvalidAmount,
	invoicedomain.ErrInvalidStatus,
	invoicedomain.ErrInvalidReference,
	orderdomain.ErrInvalidID,
	orderdomain.ErrInvalidPaymentMethod,
	orderdomain.ErrInvalidStatus,
	provisioningdomain.ErrInvalidID,
	provisioningdomain.ErrInvalidCredentials,
	provisioningdomain.ErrInvalidPayment,
	provisioningdomain.ErrInvalidAction,
	supportdomain.ErrInvalidID,
	supportdomain.ErrInvalidSubject,
	supportdomain.ErrInvalidMessage,
	supportdomain.ErrInvalidPriority,
	supportdomain.ErrInvalidStatus,
	paymentdomain.ErrInvalidStatus,
	paymentdomain.ErrInvalidMethod,
	settingsdomain.ErrInvalidCompanyName,
	settingsdomain.ErrInvalidEmail,
	settingsdomain.ErrInvalidName,
	settingsdomain.ErrInvalidSubject,
	settingsdomain.ErrInvalidMessage,
	scheduler.ErrUnknownJob,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Business rules the request broke by arriving in the wrong state.
var stateErrors = []error{
	walletdomain.ErrInsufficientBalance,
	walletdomain.ErrTopUpAlreadyReviewed,
	catalogdomain.ErrAddOnUnavailable,
	invoicedomain.ErrInvalidTransition,
	orderdomain.ErrInvalidTransition,
	orderdomain.ErrNotPaid,
	orderdomain.ErrOrderActive,
	provisioningdomain.ErrInvalidTransition,
	provisioningdomain.ErrServerExists,
	provisioningdomain.ErrOrderNotPaid,
	provisioningdomain.ErrOrderNotPending,
	provisioningdomain.ErrInvoiceMismatch,
	provisioningdomain.ErrNotOverdue,
	provisioningdomain.ErrSuspensionTooShort,
	paymentdomain.ErrNotPayable,
	paymentdomain.ErrAlreadyPaid,
}

func isStateError(err error) bool {
	return stateErrorCode(err) != ""
}

func stateErrorCode(err error) string {
	for _, target := range stateErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, catalogdomain.ErrPlanNotFound),
		errors.Is(err, catalogdomain.ErrAddOnNotFound),
		errors.Is(err, catalogdomain.ErrDataCenterNotFound),
		errors.Is(err, walletdomain.ErrNotFound),
		errors.Is(err, walletdomain.ErrTopUpNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, provisioningdomain.ErrNotFound),
		errors.Is(err, supportdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
