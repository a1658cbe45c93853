package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
)

// TestAPIError_Error tests error message formatting.
func TestAPIError_Error(t *testing.T) {
	err := NewAPIError(CodeStatementError, "Code: 62. Syntax error")
	if got, want := err.Error(), "[200001] Code: 62. Syntax error"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// TestAPIError_MarshalJSON tests JSON serialization.
func TestAPIError_MarshalJSON(t *testing.T) {
	err := NewAPIError(CodeConnectError, "connect failed").WithData("host", "bh.example")

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("Marshal() error = %v", marshalErr)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := map[string]any{
		"code":     "100001",
		"message":  "connect failed",
		"sqlState": "08001",
		"data":     map[string]any{"host": "bh.example"},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewAPIError(CodeUnsupported, "x"))
	if !errors.Is(err, NewAPIError(CodeUnsupported, "other message")) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, NewAPIError(CodeInternalError, "x")) {
		t.Error("errors.Is matched a different code")
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantState string
		wantSQL   any
	}{
		{
			name:      "Statement",
			err:       dberror.NewStatementError("select x", errors.New("Code: 47. Missing columns")),
			wantCode:  CodeStatementError,
			wantState: SQLStateSyntaxError,
			wantSQL:   "select x",
		},
		{
			name:      "RetryableConnect",
			err:       fmt.Errorf("open: %w", dberror.NewRetryableConnectError("dial", errors.New("connection refused"))),
			wantCode:  CodeRetryableConnectError,
			wantState: SQLStateConnectionFailure,
		},
		{
			name:      "Configuration",
			err:       dberror.NewConfigurationError("database must be omitted"),
			wantCode:  CodeConfigurationError,
			wantState: SQLStateGeneralError,
		},
		{
			name:      "Unsupported",
			err:       dberror.NewUnsupportedError("time column conversion"),
			wantCode:  CodeUnsupported,
			wantState: SQLStateFeatureNotSupport,
		},
		{
			name:      "Plain",
			err:       errors.New("boom"),
			wantCode:  CodeInternalError,
			wantState: SQLStateGeneralError,
		},
		{
			name:      "AlreadyAPIError",
			err:       NewInvalidParameterError("sql", "required"),
			wantCode:  CodeInvalidParameter,
			wantState: SQLStateGeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.SQLState != tt.wantState {
				t.Errorf("SQLState = %q, want %q", got.SQLState, tt.wantState)
			}
			if got.Data["sql"] != tt.wantSQL {
				t.Errorf("Data[sql] = %v, want %v", got.Data["sql"], tt.wantSQL)
			}
		})
	}

	if FromError(nil) != nil {
		t.Error("FromError(nil) should be nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[string]int{
		CodeInvalidParameter:      http.StatusBadRequest,
		CodeConfigurationError:    http.StatusBadRequest,
		CodeObjectNotFound:        http.StatusNotFound,
		CodeStatementError:        http.StatusUnprocessableEntity,
		CodeConnectError:          http.StatusServiceUnavailable,
		CodeRetryableConnectError: http.StatusServiceUnavailable,
		CodeUnsupported:           http.StatusNotImplemented,
		CodeInternalError:         http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestToResponse(t *testing.T) {
	err := NewObjectNotFoundError("warehouse", "wh_a")
	resp := err.ToResponse()
	if resp.Success {
		t.Error("Success should be false")
	}
	want := map[string]any{"objectType": "warehouse", "objectName": "wh_a"}
	if diff := cmp.Diff(want, resp.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}

	resp.Data["extra"] = true
	if _, ok := err.Data["extra"]; ok {
		t.Error("ToResponse must copy Data")
	}
}
