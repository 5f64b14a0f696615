// Package errs is the error taxonomy shared by the services and the HTTP layer.
package errs

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindBusy
	KindUpstream
)

// Error is a classified error. Sentinels below are *Error values; services
// wrap them with fmt.Errorf("%w ...") to add detail.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

var (
	ErrInvalidInput      = New(KindValidation, "invalid input")
	ErrInsufficientStock = New(KindValidation, "not enough stock")
	ErrInvalidState      = New(KindValidation, "invalid order state")
	ErrAlreadyActive     = New(KindValidation, "you already have an active delivery")
	ErrUnauthenticated   = New(KindAuthentication, "authentication required")
	ErrSignature         = New(KindAuthentication, "webhook signature verification failed")
	ErrForbidden         = New(KindAuthorization, "not authorized")
	ErrProductNotFound   = New(KindNotFound, "product not found")
	ErrOrderNotFound     = New(KindNotFound, "order not found")
	ErrOrderNotAvailable = New(KindNotFound, "order not available for delivery")
	ErrDeliveryNotFound  = New(KindNotFound, "delivery not found")
	ErrUserNotFound      = New(KindNotFound, "user not found")
	ErrBusy              = New(KindBusy, "please retry")
	ErrUpstreamPayment   = New(KindUpstream, "payment provider error")
)

// KindOf returns the kind of the first classified error in the chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		if errors.Is(err, ErrSignature) {
			return http.StatusBadRequest
		}
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindBusy:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message safe to show a client. Internal errors are
// replaced by a generic message; upstream messages pass through.
func Public(err error) string {
	if KindOf(err) == KindInternal {
		return "Server error"
	}
	return err.Error()
}
