package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/stretchr/testify/require"
)

func testAdapter(t *testing.T, handler http.HandlerFunc) (*Adapter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := Config{
		GetScheduleURL:    server.URL,
		UpdateScheduleURL: server.URL,
		UpdateClinicalURL: server.URL,
		UpdateSummaryURL:  server.URL,
		GetNoteReportURL:  server.URL,
		WebhookURL:        server.URL,
		Timeout:           2 * time.Second,
		MaxRetries:        2,
	}
	return New(cfg), server
}

func TestGetScheduleStartedSuccess(t *testing.T) {
	adapter, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scheduleId":"s1","shiftAllow":true}`))
	})
	out, err := adapter.GetScheduleStarted(context.Background(), "+5511999999999")
	require.NoError(t, err)
	require.Equal(t, "s1", out.ScheduleID)
	require.True(t, out.ShiftAllow)
}

func TestPermanentErrorDoesNotRetry(t *testing.T) {
	attempts := 0
	adapter, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	})
	err := adapter.UpdateWorkScheduleResponse(context.Background(), "s1", "confirmado")
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindBackendPermanent))
	require.Equal(t, 1, attempts)
}

func TestTransientErrorRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	adapter, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	})
	err := adapter.UpdateWorkScheduleResponse(context.Background(), "s1", "confirmado")
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestWebhookInjectsSessionID(t *testing.T) {
	var captured map[string]any
	adapter, _ := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		captured = body
		w.Write([]byte(`{}`))
	})
	err := adapter.PostWorkflowWebhook(context.Background(), "sess-123", map[string]any{"clinicalNote": "tudo bem"})
	require.NoError(t, err)
	require.Equal(t, "sess-123", captured["sessionID"])
}
