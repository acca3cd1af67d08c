package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/studycycle-api/internal/platform/logger"
)

func TestRespondWithJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data any
		want string
	}{
		{name: "object", data: map[string]int{"count": 3}, want: `{"count":3}`},
		{name: "empty object", data: map[string]any{}, want: `{}`},
		{name: "nil", data: nil, want: `null`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			RespondWithJSON(w, req, http.StatusOK, tc.data)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tc.want, w.Body.String())
		})
	}
}

func TestRespondWithJSONEncodingFailure(t *testing.T) {
	t.Parallel()

	log, buf := logger.NewTestLogger(t)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(logger.WithLogger(req.Context(), log))
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, w.Code)
	_, found := buf.Find("failed to encode JSON response")
	assert.True(t, found)
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		opts      []ResponseOption
		wantLevel string
	}{
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "ERROR"},
		{name: "bad gateway", status: http.StatusBadGateway, wantLevel: "ERROR"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantLevel: "WARN"},
		{name: "client error", status: http.StatusBadRequest, wantLevel: "DEBUG"},
		{
			name:      "elevated client error",
			status:    http.StatusNotFound,
			opts:      []ResponseOption{WithElevatedLogLevel()},
			wantLevel: "WARN",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			log, buf := logger.NewTestLogger(t)
			ctx := SetTraceID(logger.WithLogger(context.Background(), log))
			req := httptest.NewRequest(http.MethodPost, "/api/ml/events", nil).WithContext(ctx)
			w := httptest.NewRecorder()

			RespondWithErrorAndLog(w, req, tc.status, "Something went wrong",
				errors.New("query failed: postgres://admin:hunter2@db:5432/app"), tc.opts...)

			require.Equal(t, tc.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "Something went wrong", body.Error)
			assert.Equal(t, GetTraceID(ctx), body.TraceID)
			assert.NotContains(t, w.Body.String(), "hunter2")

			entry, found := buf.Find("API error response")
			require.True(t, found)
			assert.Equal(t, tc.wantLevel, entry["level"])
			assert.Equal(t, body.TraceID, entry["trace_id"])
			assert.NotContains(t, entry["error"], "hunter2")
		})
	}
}

func TestRespondWithErrorWithoutCause(t *testing.T) {
	t.Parallel()

	log, buf := logger.NewTestLogger(t)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = req.WithContext(logger.WithLogger(req.Context(), log))
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusBadRequest, "Invalid userID")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid userID"}`, w.Body.String())
	entry, found := buf.Find("API error response")
	require.True(t, found)
	assert.NotContains(t, entry, "error")
}
