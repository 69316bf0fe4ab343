package cli

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func runCommand(t *testing.T, apiURL string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TOOL_RUNTIME_API_URL", apiURL)

	root := NewRoot(slog.New(slog.DiscardHandler))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCallCommandPrintsImmediateResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/toolcalls" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"[{\"id\":1}]"}`))
	}))
	defer server.Close()

	out, err := runCommand(t, server.URL, "call", "fetch_classes", "--args", `{"classIds":"1"}`)
	if err != nil {
		t.Fatalf("call command: %v", err)
	}
	if !strings.Contains(out, `[{"id":1}]`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCallCommandPrintsPendingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"pending_id":"conf-1","tool":"send_guardian_message","expires_at_unix":1730000000}`))
	}))
	defer server.Close()

	out, err := runCommand(t, server.URL, "call", "send_guardian_message", "--args", `{"studentId":"1","message":"hi"}`)
	if err != nil {
		t.Fatalf("call command: %v", err)
	}
	if !strings.Contains(out, "conf-1") {
		t.Errorf("expected pending id in output, got: %s", out)
	}
}

func TestApproveCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/confirmations/approve" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"sent"}`))
	}))
	defer server.Close()

	out, err := runCommand(t, server.URL, "approve", "conf-1")
	if err != nil {
		t.Fatalf("approve command: %v", err)
	}
	if !strings.Contains(out, "sent") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestPendingCommandEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[],"count":0}`))
	}))
	defer server.Close()

	out, err := runCommand(t, server.URL, "pending")
	if err != nil {
		t.Fatalf("pending command: %v", err)
	}
	if !strings.Contains(out, "no pending confirmations") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "http://127.0.0.1:0", "version")
	if err != nil {
		t.Fatalf("version command: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("expected version in output, got: %s", out)
	}
}
