package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPendingConfirmationLifecycle(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	createdAt := time.Now().UTC()
	if err := sqlStore.CreatePendingConfirmation(ctx, CreatePendingConfirmationInput{
		ID:        "pending-1",
		ToolName:  "send_message",
		Arguments: `{"to":"class-3a","text":"hello"}`,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("create pending confirmation: %v", err)
	}

	open, err := sqlStore.ListOpenPendingConfirmations(ctx, 10)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected 1 open pending, got %d", len(open))
	}
	if open[0].ToolName != "send_message" {
		t.Errorf("unexpected tool name: %s", open[0].ToolName)
	}

	if err := sqlStore.ResolvePendingConfirmation(ctx, "pending-1", PendingStatusApproved, "message sent", time.Now().UTC()); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	loaded, err := sqlStore.LookupPendingConfirmation(ctx, "pending-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if loaded.Status != PendingStatusApproved {
		t.Errorf("expected approved status, got %s", loaded.Status)
	}
	if loaded.Result != "message sent" {
		t.Errorf("unexpected result: %q", loaded.Result)
	}

	// Second resolution must not transition an already-closed row.
	err = sqlStore.ResolvePendingConfirmation(ctx, "pending-1", PendingStatusDenied, "", time.Now().UTC())
	if !errors.Is(err, ErrPendingConfirmationNotFound) {
		t.Fatalf("expected ErrPendingConfirmationNotFound on double resolve, got %v", err)
	}
}

func TestExpirePendingConfirmations(t *testing.T) {
	sqlStore := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := sqlStore.CreatePendingConfirmation(ctx, CreatePendingConfirmationInput{
		ID:        "pending-stale",
		ToolName:  "send_message",
		Arguments: `{}`,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-30 * time.Minute),
	}); err != nil {
		t.Fatalf("create stale pending: %v", err)
	}
	if err := sqlStore.CreatePendingConfirmation(ctx, CreatePendingConfirmationInput{
		ID:        "pending-fresh",
		ToolName:  "send_message",
		Arguments: `{}`,
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("create fresh pending: %v", err)
	}

	expired, err := sqlStore.ExpirePendingConfirmations(ctx, now)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired row, got %d", expired)
	}

	open, err := sqlStore.ListOpenPendingConfirmations(ctx, 10)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].ID != "pending-fresh" {
		t.Fatalf("expected only the fresh pending to stay open, got %+v", open)
	}

	stale, err := sqlStore.LookupPendingConfirmation(ctx, "pending-stale")
	if err != nil {
		t.Fatalf("lookup stale: %v", err)
	}
	if stale.Status != PendingStatusExpired {
		t.Errorf("expected expired status, got %s", stale.Status)
	}
}
