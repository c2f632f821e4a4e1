package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/stretchr/testify/require"
)

func TestMemory_MarkCompleted_PreservesSettlementFields(t *testing.T) {
	m := NewMemory()
	m.Put("lnk-1", json.RawMessage(`{"status":"active","paid":true,"settlement":"card","balance":12.5}`))

	err := m.MarkCompleted(context.Background(), "lnk-1")
	require.NoError(t, err)

	rec, err := m.GetRecord(context.Background(), "lnk-1")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec, &doc))
	require.Equal(t, "completed", doc["status"])
	require.Equal(t, true, doc["paid"])
	require.Equal(t, "card", doc["settlement"])
	require.Equal(t, 12.5, doc["balance"])
}

func TestMemory_MarkCompleted_Idempotent(t *testing.T) {
	m := NewMemory()
	m.Put("lnk-1", json.RawMessage(`{"status":"active","paid":false}`))

	require.NoError(t, m.MarkCompleted(context.Background(), "lnk-1"))
	first, err := m.GetRecord(context.Background(), "lnk-1")
	require.NoError(t, err)

	require.NoError(t, m.MarkCompleted(context.Background(), "lnk-1"))
	second, err := m.GetRecord(context.Background(), "lnk-1")
	require.NoError(t, err)

	require.JSONEq(t, string(first), string(second))
}

func TestBuildStatusPatch_MinimalPatch(t *testing.T) {
	patch, err := buildStatusPatch(json.RawMessage(`{"status":"active","paid":true}`), StatusCompleted)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"completed"}`, string(patch))
}

func TestBuildStatusPatch_NoopWhenCompleted(t *testing.T) {
	patch, err := buildStatusPatch(json.RawMessage(`{"status":"completed"}`), StatusCompleted)
	require.NoError(t, err)
	require.Nil(t, patch)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Debug(string, ...interface{}) {}

func TestHTTPClient_MarkCompleted(t *testing.T) {
	record := json.RawMessage(`{"status":"active","paid":true,"settlement":"cash"}`)
	var patched json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/records/lnk-9", r.URL.Path)

		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			w.Write(record)
		case http.MethodPatch:
			require.Equal(t, "application/merge-patch+json", r.Header.Get("Content-Type"))
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			out, err := jsonpatch.MergePatch(record, body)
			require.NoError(t, err)
			patched = out
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second, nopLogger{})
	require.NoError(t, c.MarkCompleted(context.Background(), "lnk-9"))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(patched, &doc))
	require.Equal(t, "completed", doc["status"])
	require.Equal(t, true, doc["paid"])
	require.Equal(t, "cash", doc["settlement"])
}
