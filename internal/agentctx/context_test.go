package agentctx

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/classpilot/tool-runtime/internal/schedule"
	"github.com/classpilot/tool-runtime/internal/store"
)

type recordingStore struct {
	created []store.CreateScheduledTaskInput
	err     error
}

func (r *recordingStore) CreateScheduledTask(ctx context.Context, input store.CreateScheduledTaskInput) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, input)
	return nil
}

func TestScheduleDelayedTask(t *testing.T) {
	recorder := &recordingStore{}
	agent := New(recorder, slog.New(slog.DiscardHandler))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	agent.now = func() time.Time { return base }

	trigger := schedule.Trigger{Type: schedule.TriggerDelayed, DelayInSeconds: 30}
	if err := agent.Schedule(context.Background(), trigger, "executeTask", "sync rosters"); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if len(recorder.created) != 1 {
		t.Fatalf("expected 1 persisted task, got %d", len(recorder.created))
	}
	created := recorder.created[0]
	if !strings.HasPrefix(created.ID, "sched-") {
		t.Errorf("unexpected task id: %s", created.ID)
	}
	if created.TriggerType != "delayed" || created.TriggerValue != "30" {
		t.Errorf("unexpected trigger persisted: %s %s", created.TriggerType, created.TriggerValue)
	}
	if created.ActionName != "executeTask" {
		t.Errorf("unexpected action name: %s", created.ActionName)
	}
	if !created.NextRunAt.Equal(base.Add(30 * time.Second)) {
		t.Errorf("expected next run at base+30s, got %v", created.NextRunAt)
	}
}

func TestScheduleScheduledTaskUsesLiteralDate(t *testing.T) {
	recorder := &recordingStore{}
	agent := New(recorder, slog.New(slog.DiscardHandler))

	trigger := schedule.Trigger{Type: schedule.TriggerScheduled, Date: "2025-09-01T08:00:00Z"}
	if err := agent.Schedule(context.Background(), trigger, "executeTask", "first day of term"); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	created := recorder.created[0]
	want := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	if !created.NextRunAt.Equal(want) {
		t.Errorf("expected next run %v, got %v", want, created.NextRunAt)
	}
	if created.TriggerValue != "2025-09-01T08:00:00Z" {
		t.Errorf("expected literal date trigger value, got %s", created.TriggerValue)
	}
}

func TestScheduleRejectsUnresolvableTrigger(t *testing.T) {
	agent := New(&recordingStore{}, slog.New(slog.DiscardHandler))
	trigger := schedule.Trigger{Type: schedule.TriggerNone}
	if err := agent.Schedule(context.Background(), trigger, "executeTask", ""); err == nil {
		t.Fatal("expected error for unresolvable trigger")
	}
}
