package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/classpilot/tool-runtime/internal/config"
	"github.com/classpilot/tool-runtime/internal/gate"
	"github.com/classpilot/tool-runtime/internal/schedule"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		Environment:          "test",
		HTTPAddr:             "127.0.0.1:0",
		DataDir:              dir,
		DBPath:               filepath.Join(dir, "meta.sqlite"),
		SchoolAPIURL:         "http://127.0.0.1:0",
		SchoolAPITimeoutSec:  1,
		PendingTTLSeconds:    600,
		DispatcherPollSec:    1,
		HTTPShutdownGraceSec: 1,
	}
	runtime, err := New(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(func() { _ = runtime.Close() })
	return runtime
}

func TestNewRuntimeRegistersToolSet(t *testing.T) {
	runtime := newTestRuntime(t)

	want := []string{
		"fetch_classes", "fetch_schools", "fetch_students", "fetch_subjects",
		"schedule_task", "search_students", "send_guardian_message", "student_detail",
	}
	got := runtime.registry.List()
	if len(got) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(got))
	}
	for i, tool := range got {
		if tool.Name() != want[i] {
			t.Errorf("tool %d: expected %s, got %s", i, want[i], tool.Name())
		}
	}
}

func TestGuardianMessageNeedsApproval(t *testing.T) {
	runtime := newTestRuntime(t)

	outcome, err := runtime.gate.Dispatch(context.Background(), "send_guardian_message",
		json.RawMessage(`{"studentId":"42","message":"field trip tomorrow"}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !outcome.Deferred() {
		t.Fatal("guardian messages must wait for approval")
	}

	result, err := runtime.gate.Resolve(context.Background(), outcome.Pending.ID, gate.DecisionApprove)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(result, "42") {
		t.Errorf("expected delivery confirmation naming the student, got %q", result)
	}
}

func TestScheduleToolPersistsTask(t *testing.T) {
	runtime := newTestRuntime(t)

	outcome, err := runtime.gate.Dispatch(context.Background(), "schedule_task",
		json.RawMessage(`{"type":"delayed","delayInSeconds":30,"description":"sync rosters"}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Deferred() {
		t.Fatal("schedule_task must auto-execute")
	}
	if !strings.Contains(outcome.Result, "30") {
		t.Errorf("expected trigger value in result, got %q", outcome.Result)
	}
}

func TestTaskRunnerRejectsUnknownAction(t *testing.T) {
	runner := newTaskRunner(slog.New(slog.DiscardHandler))
	if err := runner.Run(context.Background(), "dropTables", "x"); err == nil {
		t.Fatal("expected error for unknown action")
	}
	if err := runner.Run(context.Background(), schedule.ActionExecuteTask, "remind the class"); err != nil {
		t.Fatalf("executeTask run: %v", err)
	}
}

func TestRuntimeRunStopsOnCancel(t *testing.T) {
	runtime := newTestRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runtime.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop after cancel")
	}
}
