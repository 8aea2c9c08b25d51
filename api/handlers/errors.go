package handlers

import (
	"errors"
	"net/http"

	"github.com/vilonda/portal/internal/apperrors"
	"github.com/vilonda/portal/internal/commission"
	"github.com/vilonda/portal/internal/httputil"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/service"
	"github.com/vilonda/portal/internal/session"
	"go.uber.org/zap"
)

// responder renders service results and failures.
type responder struct {
	logger *zap.Logger
}

func newResponder(logger *zap.Logger) responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return responder{logger: logger}
}

// fail maps a service error onto the API error envelope. Unknown errors become a 500
// and are logged with the request they belong to.
func (h responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	appErr := classify(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	appErr.WriteHTTP(w)
}

func classify(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validation *service.ValidationError
	var amount *commission.ValidationError
	var insufficient *commission.InsufficientCommissionError
	switch {
	case errors.As(err, &validation):
		return apperrors.ValidationError(validation.Error())
	case errors.As(err, &amount):
		return apperrors.ValidationError(amount.Error())
	case errors.As(err, &insufficient):
		return apperrors.ValidationError(insufficient.Error())

	case errors.Is(err, session.ErrNoSession):
		return apperrors.Unauthorized("authentication required")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.Unauthorized("invalid email or password")
	case errors.Is(err, service.ErrInvalidToken):
		return apperrors.Unauthorized("invalid or expired token")
	case errors.Is(err, service.ErrAccountLocked),
		errors.Is(err, service.ErrAccountInactive),
		errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotDirectChild):
		return apperrors.Forbidden(err.Error())

	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NotFound("user")
	case errors.Is(err, service.ErrCompanyNotFound):
		return apperrors.NotFound("company")
	case errors.Is(err, service.ErrBrokerNotFound):
		return apperrors.NotFound("broker")
	case errors.Is(err, service.ErrInviteNotFound):
		return apperrors.NotFound("invitation")
	case errors.Is(err, service.ErrVehicleNotFound):
		return apperrors.NotFound("vehicle")
	case errors.Is(err, service.ErrVehicleRequestNotFound):
		return apperrors.NotFound("vehicle request")
	case errors.Is(err, service.ErrSettingNotFound):
		return apperrors.NotFound("setting")

	case errors.Is(err, repository.ErrLedgerConflict):
		return apperrors.Conflict("the broker ledger was changed by another request, reload and try again")
	case errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrCompanyExists),
		errors.Is(err, service.ErrBrokerLinked),
		errors.Is(err, service.ErrInviteNotPending),
		errors.Is(err, service.ErrRequestNotPending),
		errors.Is(err, service.ErrAlreadyVerified):
		return apperrors.Conflict(err.Error())

	case errors.Is(err, service.ErrInviteExpired),
		errors.Is(err, service.ErrVerificationInvalid),
		errors.Is(err, service.ErrBrokerInactive),
		errors.Is(err, service.ErrNoPrice):
		return apperrors.ValidationError(err.Error())

	default:
		return apperrors.Internal("an unexpected error occurred").WithInternal(err)
	}
}

// decode reads the JSON body into dst, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(r.Body, dst); err != nil {
		apperrors.BadRequest("Invalid request body").WithInternal(err).WriteHTTP(w)
		return false
	}
	return true
}

// caller returns the session placed by the auth middleware.
func caller(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := session.FromContext(r.Context())
	if err != nil {
		apperrors.Unauthorized("user context missing").WriteHTTP(w)
		return nil, false
	}
	return sess, true
}
