// Package result defines the SafeResult type: the single success/failure
// channel used by every component of the dispatch engine. Handlers, hooks,
// and auth strategies return SafeResult values instead of raising errors;
// only genuine configuration mistakes are allowed to escape as Go errors.
package result

import "fmt"

// ErrorID categorizes a failed result. The set is closed: adapters map these
// tags to transport codes and must never string-match messages.
type ErrorID string

const (
	// ErrIDServiceNotFound means the requested service name is not in the catalog.
	ErrIDServiceNotFound ErrorID = "service-not-found"

	// ErrIDActionNotFound means the service exists but the action does not.
	ErrIDActionNotFound ErrorID = "action-not-found"

	// ErrIDAuthFailed means a credential was missing, invalid, or expired.
	ErrIDAuthFailed ErrorID = "auth-failed"

	// ErrIDNoAuthHandler means no authentication strategy could serve the call.
	ErrIDNoAuthHandler ErrorID = "no-auth-handler"

	// ErrIDValidationFailed means the payload failed the action's schema.
	ErrIDValidationFailed ErrorID = "validation-failed"

	// ErrIDExecutionError means the action handler or its hook pipeline failed.
	ErrIDExecutionError ErrorID = "execution-error"

	// ErrIDRateLimited means the caller exceeded the configured request budget.
	ErrIDRateLimited ErrorID = "rate-limited"
)

// SafeResult is a two-variant discriminated union.
//
// INVARIANT: IsOk == !IsError == Status, enforced by the Ok/Err constructors.
// Construct values only through them.
type SafeResult struct {
	Status  bool   `json:"status"`
	IsOk    bool   `json:"isOk"`
	IsError bool   `json:"isError"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorData is the Data payload of every Err value.
type ErrorData struct {
	ErrorID       ErrorID `json:"error_id"`
	CorrelationID string  `json:"correlation_id,omitempty"`
	Fields        any     `json:"fields,omitempty"`
}

// Response is the transport-facing projection of a SafeResult. The internal
// discriminants (IsOk/IsError) are stripped; only status, message, and data
// cross the wire.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Ok builds a success result.
func Ok(message string, data any) SafeResult {
	return SafeResult{Status: true, IsOk: true, Message: message, Data: data}
}

// Err builds a failure result tagged with the given error id.
func Err(message string, id ErrorID) SafeResult {
	return SafeResult{IsError: true, Message: message, Data: ErrorData{ErrorID: id}}
}

// ErrWith builds a failure result carrying extra error data (field-level
// validation detail, correlation ids).
func ErrWith(message string, data ErrorData) SafeResult {
	return SafeResult{IsError: true, Message: message, Data: data}
}

// Errf is Err with printf formatting.
func Errf(id ErrorID, format string, args ...any) SafeResult {
	return Err(fmt.Sprintf(format, args...), id)
}

// ErrorID returns the error tag of a failed result, or "" for success.
// Works on results that crossed a serialization boundary (Data as map).
func (r SafeResult) ErrorID() ErrorID {
	if r.IsOk {
		return ""
	}
	switch d := r.Data.(type) {
	case ErrorData:
		return d.ErrorID
	case *ErrorData:
		return d.ErrorID
	case map[string]any:
		if id, ok := d["error_id"].(string); ok {
			return ErrorID(id)
		}
	}
	return ""
}

// Response projects the result for transport.
func (r SafeResult) Response() Response {
	return Response{Status: r.Status, Message: r.Message, Data: r.Data}
}
