package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classpilot/tool-runtime/internal/store"
	"github.com/classpilot/tool-runtime/internal/toolerr"
	"github.com/classpilot/tool-runtime/internal/tools"
)

// ExecFunc runs a confirmation-gated tool once an operator approves it.
type ExecFunc func(ctx context.Context, args json.RawMessage) (string, error)

// DeniedResult is the canonical rejection returned to the model on deny.
const DeniedResult = "Tool call denied by the operator."

const defaultPendingTTL = 10 * time.Minute

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

// Pending is a confirmation-gated call waiting for an operator decision.
type Pending struct {
	ID        string
	ToolName  string
	Args      json.RawMessage
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Outcome is the dispatch result: an immediate tool result, or a deferred
// pending confirmation.
type Outcome struct {
	Result  string
	Pending *Pending
}

func (o Outcome) Deferred() bool { return o.Pending != nil }

// PendingStore mirrors pending lifecycle changes for operator visibility and
// restart recovery.
type PendingStore interface {
	CreatePendingConfirmation(ctx context.Context, input store.CreatePendingConfirmationInput) error
	ResolvePendingConfirmation(ctx context.Context, id, status, result string, resolvedAt time.Time) error
	ExpirePendingConfirmations(ctx context.Context, cutoff time.Time) (int, error)
	ListOpenPendingConfirmations(ctx context.Context, limit int) ([]store.PendingConfirmation, error)
	LookupPendingConfirmation(ctx context.Context, id string) (store.PendingConfirmation, error)
}

const restoreBatchLimit = 500

type pendingEntry struct {
	Pending
	resolved bool
	expired  bool
}

// Gate routes validated tool calls to immediate execution or deferred human
// approval. It performs no I/O of its own; executor side effects belong to
// the executors.
type Gate struct {
	registry         *tools.Registry
	confirmExecutors map[string]ExecFunc
	pendingStore     PendingStore
	logger           *slog.Logger
	ttl              time.Duration
	now              func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingEntry
}

type Options struct {
	// PendingStore is optional; without it pendings live only in memory.
	PendingStore PendingStore
	TTL          time.Duration
	Logger       *slog.Logger
}

func New(registry *tools.Registry, confirmExecutors map[string]ExecFunc, opts Options) *Gate {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if confirmExecutors == nil {
		confirmExecutors = map[string]ExecFunc{}
	}
	return &Gate{
		registry:         registry,
		confirmExecutors: confirmExecutors,
		pendingStore:     opts.PendingStore,
		logger:           logger,
		ttl:              ttl,
		now:              func() time.Time { return time.Now().UTC() },
		pending:          map[string]*pendingEntry{},
	}
}

// Verify checks the registry against the confirmation-executor table: every
// confirmation-gated tool needs exactly one executor entry, every auto tool
// none, and every executor entry a registered tool. A mismatch is a
// configuration defect, reported before serving any call.
func (g *Gate) Verify() error {
	var problems []error
	seen := map[string]bool{}
	for _, tool := range g.registry.List() {
		name := tool.Name()
		seen[name] = true
		_, hasExecutor := g.confirmExecutors[name]
		gated := tools.RequiresConfirmation(tool)
		if gated && !hasExecutor {
			problems = append(problems, fmt.Errorf("%w: tool %s is confirmation-gated", toolerr.ErrMissingExecutor, name))
		}
		if !gated && hasExecutor {
			problems = append(problems, fmt.Errorf("tool %s auto-executes but has a confirmation executor", name))
		}
	}
	for name := range g.confirmExecutors {
		if !seen[name] {
			problems = append(problems, fmt.Errorf("confirmation executor %s has no registered tool", name))
		}
	}
	return errors.Join(problems...)
}

// Dispatch validates the call and either runs it immediately or parks it for
// operator approval. Validation always happens first; invalid input produces
// no side effects.
func (g *Gate) Dispatch(ctx context.Context, toolName string, rawArgs json.RawMessage) (Outcome, error) {
	validated, err := g.registry.Validate(toolName, rawArgs)
	if err != nil {
		return Outcome{}, err
	}
	tool, _ := g.registry.Get(toolName)

	if !tools.RequiresConfirmation(tool) {
		result, err := tool.Execute(ctx, validated)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Result: result}, nil
	}

	now := g.now()
	pending := Pending{
		ID:        "conf-" + uuid.NewString(),
		ToolName:  toolName,
		Args:      validated,
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}

	g.mu.Lock()
	g.sweepLocked(now)
	g.pending[pending.ID] = &pendingEntry{Pending: pending}
	g.mu.Unlock()
	g.expireStored(ctx, now)

	if g.pendingStore != nil {
		if err := g.pendingStore.CreatePendingConfirmation(ctx, store.CreatePendingConfirmationInput{
			ID:        pending.ID,
			ToolName:  pending.ToolName,
			Arguments: string(pending.Args),
			CreatedAt: pending.CreatedAt,
			ExpiresAt: pending.ExpiresAt,
		}); err != nil {
			g.mu.Lock()
			delete(g.pending, pending.ID)
			g.mu.Unlock()
			return Outcome{}, fmt.Errorf("persist pending confirmation: %w", err)
		}
	}

	g.logger.Info("tool call awaiting confirmation", "pending_id", pending.ID, "tool", toolName)
	return Outcome{Pending: &pending}, nil
}

// Restore hydrates the in-memory pending map from the mirror's open rows so
// confirmations issued before a restart stay resolvable. Call it once at
// boot, before serving traffic.
func (g *Gate) Restore(ctx context.Context) (int, error) {
	if g.pendingStore == nil {
		return 0, nil
	}
	rows, err := g.pendingStore.ListOpenPendingConfirmations(ctx, restoreBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("restore pending confirmations: %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	restored := 0
	for _, row := range rows {
		if _, exists := g.pending[row.ID]; exists {
			continue
		}
		g.pending[row.ID] = &pendingEntry{Pending: pendingFromRow(row)}
		restored++
	}
	return restored, nil
}

// Resolve consumes a pending confirmation exactly once. Approve invokes the
// executor-table entry with the stored validated arguments; Deny returns the
// canonical rejection without invoking anything.
func (g *Gate) Resolve(ctx context.Context, pendingID string, decision Decision) (string, error) {
	now := g.now()

	g.mu.Lock()
	entry, ok := g.pending[pendingID]
	if !ok {
		g.mu.Unlock()
		adopted, err := g.adoptStored(ctx, pendingID)
		if err != nil {
			return "", err
		}
		g.mu.Lock()
		if racing, exists := g.pending[pendingID]; exists {
			entry = racing
		} else {
			entry = adopted
			g.pending[pendingID] = entry
		}
	}
	if entry.expired {
		g.mu.Unlock()
		return "", fmt.Errorf("%w: %s", toolerr.ErrPendingExpired, pendingID)
	}
	if entry.resolved {
		g.mu.Unlock()
		return "", fmt.Errorf("%w: %s", toolerr.ErrAlreadyResolved, pendingID)
	}
	if now.After(entry.ExpiresAt) {
		entry.resolved = true
		entry.expired = true
		g.mu.Unlock()
		g.recordResolution(ctx, pendingID, store.PendingStatusExpired, "", now)
		return "", fmt.Errorf("%w: %s", toolerr.ErrPendingExpired, pendingID)
	}
	entry.resolved = true
	claimed := entry.Pending
	g.mu.Unlock()

	switch decision {
	case DecisionDeny:
		g.recordResolution(ctx, pendingID, store.PendingStatusDenied, DeniedResult, now)
		g.logger.Info("tool call denied", "pending_id", pendingID, "tool", claimed.ToolName)
		return DeniedResult, nil
	case DecisionApprove:
		executor, exists := g.confirmExecutors[claimed.ToolName]
		if !exists {
			g.recordResolution(ctx, pendingID, store.PendingStatusApproved, "", now)
			return "", fmt.Errorf("%w: %s", toolerr.ErrMissingExecutor, claimed.ToolName)
		}
		result, err := executor(ctx, claimed.Args)
		if err != nil {
			g.recordResolution(ctx, pendingID, store.PendingStatusApproved, "error: "+err.Error(), now)
			g.logger.Error("approved tool call failed", "pending_id", pendingID, "tool", claimed.ToolName, "error", err)
			return "", err
		}
		g.recordResolution(ctx, pendingID, store.PendingStatusApproved, result, now)
		g.logger.Info("tool call approved", "pending_id", pendingID, "tool", claimed.ToolName)
		return result, nil
	default:
		// Unknown decision must not consume the entry.
		g.mu.Lock()
		entry.resolved = false
		g.mu.Unlock()
		return "", fmt.Errorf("unknown decision %q", decision)
	}
}

// Open returns the pending confirmations still awaiting a decision.
func (g *Gate) Open() []Pending {
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	open := make([]Pending, 0, len(g.pending))
	for _, entry := range g.pending {
		if entry.resolved || now.After(entry.ExpiresAt) {
			continue
		}
		open = append(open, entry.Pending)
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	return open
}

// sweepLocked tombstones entries whose TTL passed, so a late resolve still
// reports the expired condition instead of not-found, and drops entries one
// extra TTL after expiry to keep the map bounded. Callers hold g.mu; store
// expiry happens outside the lock.
func (g *Gate) sweepLocked(now time.Time) {
	for id, entry := range g.pending {
		switch {
		case now.After(entry.ExpiresAt.Add(g.ttl)):
			delete(g.pending, id)
		case !entry.resolved && now.After(entry.ExpiresAt):
			entry.resolved = true
			entry.expired = true
		}
	}
}

// adoptStored recovers a pending confirmation from the mirror when the
// in-memory map misses it, which happens after a process restart. Rows that
// already left the open state map back onto the resolution error taxonomy.
func (g *Gate) adoptStored(ctx context.Context, pendingID string) (*pendingEntry, error) {
	if g.pendingStore == nil {
		return nil, fmt.Errorf("%w: %s", toolerr.ErrPendingNotFound, pendingID)
	}
	row, err := g.pendingStore.LookupPendingConfirmation(ctx, pendingID)
	if errors.Is(err, store.ErrPendingConfirmationNotFound) {
		return nil, fmt.Errorf("%w: %s", toolerr.ErrPendingNotFound, pendingID)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup pending confirmation: %w", err)
	}
	switch row.Status {
	case store.PendingStatusOpen:
		return &pendingEntry{Pending: pendingFromRow(row)}, nil
	case store.PendingStatusExpired:
		return nil, fmt.Errorf("%w: %s", toolerr.ErrPendingExpired, pendingID)
	default:
		return nil, fmt.Errorf("%w: %s", toolerr.ErrAlreadyResolved, pendingID)
	}
}

func pendingFromRow(row store.PendingConfirmation) Pending {
	return Pending{
		ID:        row.ID,
		ToolName:  row.ToolName,
		Args:      json.RawMessage(row.Arguments),
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}
}

func (g *Gate) expireStored(ctx context.Context, cutoff time.Time) {
	if g.pendingStore == nil {
		return
	}
	expired, err := g.pendingStore.ExpirePendingConfirmations(ctx, cutoff)
	if err != nil {
		g.logger.Error("expire stored confirmations failed", "error", err)
		return
	}
	if expired > 0 {
		g.logger.Info("expired stale confirmations", "count", expired)
	}
}

func (g *Gate) recordResolution(ctx context.Context, id, status, result string, resolvedAt time.Time) {
	if g.pendingStore == nil {
		return
	}
	if err := g.pendingStore.ResolvePendingConfirmation(ctx, id, status, result, resolvedAt); err != nil {
		g.logger.Error("persist confirmation resolution failed", "pending_id", id, "error", err)
	}
}
