package errutil

import "net/http"

// CoreStatus is the transport-agnostic error class carried by BaseError.
type CoreStatus string

const (
	StatusUnknown              CoreStatus = "Unknown"
	StatusUnauthorized         CoreStatus = "Unauthorized"
	StatusForbidden            CoreStatus = "Forbidden"
	StatusNotFound             CoreStatus = "Not found"
	StatusTimeout              CoreStatus = "Timeout"
	StatusGatewayTimeout       CoreStatus = "Gateway timeout"
	StatusUnsupportedMediaType CoreStatus = "Unsupported media type"
	StatusUnprocessableEntity  CoreStatus = "Unprocessable entity"
	StatusConflict             CoreStatus = "Conflict"
	StatusTooManyRequests      CoreStatus = "Too many requests"
	StatusBadRequest           CoreStatus = "Bad request"
	StatusValidationFailed     CoreStatus = "Validation failed"
	StatusClientClosedRequest  CoreStatus = "Client closed request"
	StatusNotImplemented       CoreStatus = "Not implemented"
	StatusBadGateway           CoreStatus = "Bad gateway"
	StatusServiceUnavailable   CoreStatus = "Service unavailable"
	StatusInternal             CoreStatus = "Internal"
)

// HTTPStatus maps the CoreStatus to its HTTP status code equivalent.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusTimeout:
		return http.StatusRequestTimeout
	case StatusGatewayTimeout:
		return http.StatusGatewayTimeout
	case StatusUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case StatusUnprocessableEntity, StatusValidationFailed:
		return http.StatusUnprocessableEntity
	case StatusConflict:
		return http.StatusConflict
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusClientClosedRequest:
		return 499
	case StatusNotImplemented:
		return http.StatusNotImplemented
	case StatusBadGateway:
		return http.StatusBadGateway
	case StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
