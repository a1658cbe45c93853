// Package apierror maps bridge errors to coded API errors.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
)

// Error codes
const (
	// Connection errors (100xxx)
	CodeConnectError          = "100001"
	CodeRetryableConnectError = "100002"

	// Statement errors (200xxx)
	CodeStatementError = "200001"

	// Configuration errors (300xxx)
	CodeConfigurationError = "300001"

	// Unsupported operations (400xxx)
	CodeUnsupported = "400001"

	// System errors (000xxx)
	CodeInternalError    = "000001"
	CodeInvalidParameter = "000002"
	CodeObjectNotFound   = "000003"
)

// SQLState represents SQL standard error states.
const (
	SQLStateSuccess           = "00000"
	SQLStateConnectionFailure = "08001"
	SQLStateSyntaxError       = "42000"
	SQLStateFeatureNotSupport = "0A000"
	SQLStateGeneralError      = "HY000"
)

// GetSQLState returns the SQL state for a given error code
func GetSQLState(code string) string {
	mapping := map[string]string{
		CodeConnectError:          SQLStateConnectionFailure,
		CodeRetryableConnectError: SQLStateConnectionFailure,
		CodeStatementError:        SQLStateSyntaxError,
		CodeUnsupported:           SQLStateFeatureNotSupport,
	}

	if state, ok := mapping[code]; ok {
		return state
	}
	return SQLStateGeneralError
}

// HTTPStatus returns the response status for a given error code.
func HTTPStatus(code string) int {
	switch code {
	case CodeInvalidParameter, CodeConfigurationError:
		return http.StatusBadRequest
	case CodeObjectNotFound:
		return http.StatusNotFound
	case CodeStatementError:
		return http.StatusUnprocessableEntity
	case CodeConnectError, CodeRetryableConnectError:
		return http.StatusServiceUnavailable
	case CodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// APIError is an error as reported to gateway clients.
type APIError struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	SQLState string         `json:"sqlState,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// MarshalJSON implements custom JSON marshaling.
func (e *APIError) MarshalJSON() ([]byte, error) {
	type Alias APIError
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	})
}

// WithData adds data to the error.
func (e *APIError) WithData(key string, value any) *APIError {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// Is checks if this error matches another error by code.
func (e *APIError) Is(target error) bool {
	var apiErr *APIError
	if errors.As(target, &apiErr) {
		return e.Code == apiErr.Code
	}
	return false
}

// ErrorResponse represents the JSON response structure for errors.
type ErrorResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Code     string         `json:"code"`
	SQLState string         `json:"sqlState,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// ToResponse converts the APIError to an ErrorResponse.
func (e *APIError) ToResponse() *ErrorResponse {
	data := make(map[string]any, len(e.Data))
	for k, v := range e.Data {
		data[k] = v
	}

	return &ErrorResponse{
		Success:  false,
		Message:  e.Message,
		Code:     e.Code,
		SQLState: e.SQLState,
		Data:     data,
	}
}

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:     code,
		Message:  message,
		SQLState: GetSQLState(code),
		Data:     make(map[string]any),
	}
}

// NewInvalidParameterError creates an invalid parameter error.
func NewInvalidParameterError(paramName, reason string) *APIError {
	return NewAPIError(CodeInvalidParameter, fmt.Sprintf("Invalid parameter '%s': %s", paramName, reason)).
		WithData("paramName", paramName)
}

// NewObjectNotFoundError creates an object not found error.
func NewObjectNotFoundError(objectType, objectName string) *APIError {
	return NewAPIError(CodeObjectNotFound, fmt.Sprintf("Object not found: %s '%s'", objectType, objectName)).
		WithData("objectType", objectType).
		WithData("objectName", objectName)
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *APIError {
	return NewAPIError(CodeInternalError, message)
}

var kindCodes = map[dberror.Kind]string{
	dberror.KindConnect:          CodeConnectError,
	dberror.KindRetryableConnect: CodeRetryableConnectError,
	dberror.KindStatement:        CodeStatementError,
	dberror.KindConfiguration:    CodeConfigurationError,
	dberror.KindUnsupported:      CodeUnsupported,
}

// FromError converts an error to an APIError.
// An APIError is returned as-is and a bridge error keeps its kind and the
// failing statement. Anything else is an internal error.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var dbErr *dberror.Error
	if errors.As(err, &dbErr) {
		code, ok := kindCodes[dbErr.Kind]
		if !ok {
			code = CodeInternalError
		}
		e := NewAPIError(code, dbErr.Error())
		if dbErr.SQL != "" {
			e.WithData("sql", dbErr.SQL)
		}
		return e
	}

	return NewInternalError(err.Error())
}
