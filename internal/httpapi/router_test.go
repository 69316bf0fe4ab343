package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/classpilot/tool-runtime/internal/config"
	"github.com/classpilot/tool-runtime/internal/gate"
	"github.com/classpilot/tool-runtime/internal/store"
	"github.com/classpilot/tool-runtime/internal/tools"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "httpapi_test.sqlite")
	sqlStore, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	if err := sqlStore.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	registry := tools.NewRegistry()
	auto := &tools.MockTool{NameVal: "echo", ExecFunc: func(ctx context.Context, args json.RawMessage) (string, error) {
		return "echoed " + string(args), nil
	}}
	gated := &tools.MockTool{NameVal: "send_message", Confirm: true}
	for _, tool := range []tools.Tool{auto, gated} {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	callGate := gate.New(registry, map[string]gate.ExecFunc{
		"send_message": func(ctx context.Context, args json.RawMessage) (string, error) {
			return "sent", nil
		},
	}, gate.Options{PendingStore: sqlStore, Logger: slog.New(slog.DiscardHandler)})

	handler := NewRouter(Dependencies{
		Config:   config.Config{Environment: "test"},
		Store:    sqlStore,
		Registry: registry,
		Gate:     callGate,
		Logger:   slog.New(slog.DiscardHandler),
	})
	return handler
}

func doJSONRequest(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	decoded := map[string]any{}
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response: %v (%s)", err, recorder.Body.String())
		}
	}
	return recorder, decoded
}

func TestToolCallImmediateResult(t *testing.T) {
	handler := newTestRouter(t)
	recorder, payload := doJSONRequest(t, handler, http.MethodPost, "/api/v1/toolcalls", `{"tool":"echo","arguments":{"x":1}}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	if result, _ := payload["result"].(string); !strings.HasPrefix(result, "echoed ") {
		t.Errorf("unexpected result: %v", payload["result"])
	}
}

func TestToolCallUnknownTool(t *testing.T) {
	handler := newTestRouter(t)
	recorder, _ := doJSONRequest(t, handler, http.MethodPost, "/api/v1/toolcalls", `{"tool":"ghost"}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestToolCallRequiresToolName(t *testing.T) {
	handler := newTestRouter(t)
	recorder, _ := doJSONRequest(t, handler, http.MethodPost, "/api/v1/toolcalls", `{"arguments":{}}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestToolCallDeferredThenApproved(t *testing.T) {
	handler := newTestRouter(t)

	recorder, payload := doJSONRequest(t, handler, http.MethodPost, "/api/v1/toolcalls", `{"tool":"send_message","arguments":{"text":"hi"}}`)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	pendingID, _ := payload["pending_id"].(string)
	if pendingID == "" {
		t.Fatal("expected a pending id")
	}

	recorder, listPayload := doJSONRequest(t, handler, http.MethodGet, "/api/v1/confirmations", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 listing confirmations, got %d", recorder.Code)
	}
	if count, _ := listPayload["count"].(float64); count != 1 {
		t.Fatalf("expected 1 open confirmation, got %v", listPayload["count"])
	}

	recorder, approvePayload := doJSONRequest(t, handler, http.MethodPost, "/api/v1/confirmations/approve", `{"pending_id":"`+pendingID+`"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 on approve, got %d (%s)", recorder.Code, recorder.Body.String())
	}
	if approvePayload["result"] != "sent" {
		t.Errorf("unexpected approve result: %v", approvePayload["result"])
	}

	// Exactly-once: a second approve must conflict.
	recorder, _ = doJSONRequest(t, handler, http.MethodPost, "/api/v1/confirmations/approve", `{"pending_id":"`+pendingID+`"}`)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double approve, got %d", recorder.Code)
	}
}

func TestToolCallDenied(t *testing.T) {
	handler := newTestRouter(t)

	_, payload := doJSONRequest(t, handler, http.MethodPost, "/api/v1/toolcalls", `{"tool":"send_message","arguments":{}}`)
	pendingID, _ := payload["pending_id"].(string)

	recorder, denyPayload := doJSONRequest(t, handler, http.MethodPost, "/api/v1/confirmations/deny", `{"pending_id":"`+pendingID+`"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 on deny, got %d", recorder.Code)
	}
	if denyPayload["result"] != gate.DeniedResult {
		t.Errorf("unexpected deny result: %v", denyPayload["result"])
	}
}

func TestResolveUnknownPendingIs404(t *testing.T) {
	handler := newTestRouter(t)
	recorder, _ := doJSONRequest(t, handler, http.MethodPost, "/api/v1/confirmations/approve", `{"pending_id":"conf-missing"}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestToolsListing(t *testing.T) {
	handler := newTestRouter(t)
	recorder, payload := doJSONRequest(t, handler, http.MethodGet, "/api/v1/tools", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if count, _ := payload["count"].(float64); count != 2 {
		t.Fatalf("expected 2 tools, got %v", payload["count"])
	}
}

func TestHealthAndReady(t *testing.T) {
	handler := newTestRouter(t)
	recorder, _ := doJSONRequest(t, handler, http.MethodGet, "/healthz", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", recorder.Code)
	}
	recorder, _ = doJSONRequest(t, handler, http.MethodGet, "/readyz", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", recorder.Code)
	}
}

func TestTasksListing(t *testing.T) {
	handler := newTestRouter(t)
	recorder, payload := doJSONRequest(t, handler, http.MethodGet, "/api/v1/tasks", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if count, _ := payload["count"].(float64); count != 0 {
		t.Fatalf("expected empty task list, got %v", payload["count"])
	}
}
