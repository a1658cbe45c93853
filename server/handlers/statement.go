package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/query"
	"github.com/nnnkkk7/bytehouse-bridge/server/apierror"
	"github.com/nnnkkk7/bytehouse-bridge/server/types"
)

const statusOK = "OK"

// SubmitStatement handles POST /v1/statements.
//
// Fetch mode returns the normalized table. Command mode returns the first
// cell as the scalar. DDL is always run in command mode.
func (h *Handler) SubmitStatement(w http.ResponseWriter, r *http.Request) {
	var req types.StatementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, apierror.NewInvalidParameterError("body", "invalid JSON"))
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		sendError(w, apierror.NewInvalidParameterError("sql", "statement is required"))
		return
	}
	fetch := req.Fetch && !query.IsDDL(req.SQL)

	queryID := uuid.NewString()
	logger := h.logger.With(
		slog.String("query_id", queryID),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	start := time.Now()
	table, scalar, err := h.dispatch(r.Context(), req.SQL, fetch)
	elapsed := time.Since(start)

	if err != nil {
		logger.Warn("statement failed", slog.String("error", err.Error()))
		sendError(w, apierror.FromError(err).WithData("queryId", queryID))
		return
	}
	logger.Debug("statement done", slog.Bool("fetch", fetch), slog.Duration("elapsed", elapsed))

	sendJSON(w, http.StatusOK, types.StatementResponse{
		Success: true,
		Data: &types.StatementData{
			QueryID:   queryID,
			Status:    statusOK,
			ElapsedMs: elapsed.Milliseconds(),
			Columns:   columnMetadata(table),
			Rows:      jsonRows(table.Rows),
			Scalar:    jsonValue(scalar),
		},
	})
}

func columnMetadata(t *query.Table) []types.ColumnMetadata {
	cols := make([]types.ColumnMetadata, len(t.Columns))
	for i, name := range t.Columns {
		cols[i] = types.ColumnMetadata{Name: name}
		if i < len(t.Types) {
			cols[i].Type = t.Types[i]
		}
	}
	return cols
}

// jsonRows converts engine values that do not encode as JSON scalars.
func jsonRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		conv := make([]any, len(row))
		for j, v := range row {
			conv[j] = jsonValue(v)
		}
		out[i] = conv
	}
	return out
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// dispatch runs one statement while holding the session lock.
func (h *Handler) dispatch(ctx context.Context, sql string, fetch bool) (*query.Table, any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if fetch {
		table, err := h.dispatcher.Query(ctx, sql)
		return table, nil, err
	}
	scalar, err := h.dispatcher.Command(ctx, sql)
	return query.Normalize(nil), scalar, err
}
