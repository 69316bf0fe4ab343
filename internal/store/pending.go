package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrPendingConfirmationNotFound = errors.New("pending confirmation not found")

const (
	PendingStatusOpen     = "open"
	PendingStatusApproved = "approved"
	PendingStatusDenied   = "denied"
	PendingStatusExpired  = "expired"
)

type PendingConfirmation struct {
	ID         string
	ToolName   string
	Arguments  string
	Status     string
	Decision   string
	Result     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ResolvedAt time.Time
}

type CreatePendingConfirmationInput struct {
	ID        string
	ToolName  string
	Arguments string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Store) CreatePendingConfirmation(ctx context.Context, input CreatePendingConfirmationInput) error {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return fmt.Errorf("pending confirmation id is required")
	}
	if strings.TrimSpace(input.ToolName) == "" {
		return fmt.Errorf("pending confirmation tool name is required")
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO pending_confirmations (
			id, tool_name, arguments, status, created_at_unix, expires_at_unix
		) VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(input.ToolName),
		input.Arguments,
		PendingStatusOpen,
		createdAt.UTC().Unix(),
		input.ExpiresAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("create pending confirmation: %w", err)
	}
	return nil
}

// ResolvePendingConfirmation closes an open entry with the operator decision.
// Only open rows transition; resolving twice reports not found so callers can
// surface the already-resolved condition from their own state.
func (s *Store) ResolvePendingConfirmation(ctx context.Context, id, status, result string, resolvedAt time.Time) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrPendingConfirmationNotFound
	}
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE pending_confirmations
		 SET status = ?,
		     decision = ?,
		     result = ?,
		     resolved_at_unix = ?
		 WHERE id = ? AND status = ?`,
		status,
		status,
		nullIfEmpty(result),
		resolvedAt.UTC().Unix(),
		id,
		PendingStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("resolve pending confirmation: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err == nil && rowsAffected == 0 {
		return ErrPendingConfirmationNotFound
	}
	return nil
}

// ExpirePendingConfirmations retires open entries whose deadline passed.
func (s *Store) ExpirePendingConfirmations(ctx context.Context, cutoff time.Time) (int, error) {
	if cutoff.IsZero() {
		cutoff = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE pending_confirmations
		 SET status = ?, resolved_at_unix = ?
		 WHERE status = ? AND expires_at_unix <= ?`,
		PendingStatusExpired,
		cutoff.UTC().Unix(),
		PendingStatusOpen,
		cutoff.UTC().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("expire pending confirmations: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(rowsAffected), nil
}

func (s *Store) ListOpenPendingConfirmations(ctx context.Context, limit int) ([]PendingConfirmation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		pendingConfirmationSelect+`
		 WHERE status = ?
		 ORDER BY created_at_unix ASC
		 LIMIT ?`,
		PendingStatusOpen,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list open pending confirmations: %w", err)
	}
	defer rows.Close()

	var pendings []PendingConfirmation
	for rows.Next() {
		pending, err := scanPendingConfirmation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending confirmation: %w", err)
		}
		pendings = append(pendings, pending)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending confirmations: %w", err)
	}
	return pendings, nil
}

func (s *Store) LookupPendingConfirmation(ctx context.Context, id string) (PendingConfirmation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PendingConfirmation{}, ErrPendingConfirmationNotFound
	}
	row := s.db.QueryRowContext(ctx, pendingConfirmationSelect+` WHERE id = ?`, id)
	pending, err := scanPendingConfirmation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingConfirmation{}, ErrPendingConfirmationNotFound
	}
	if err != nil {
		return PendingConfirmation{}, fmt.Errorf("lookup pending confirmation: %w", err)
	}
	return pending, nil
}

const pendingConfirmationSelect = `
	SELECT id, tool_name, arguments, status, decision, result,
	       created_at_unix, expires_at_unix, resolved_at_unix
	  FROM pending_confirmations`

func scanPendingConfirmation(row rowScanner) (PendingConfirmation, error) {
	var pending PendingConfirmation
	var decision sql.NullString
	var result sql.NullString
	var createdAtUnix int64
	var expiresAtUnix int64
	var resolvedAtUnix sql.NullInt64
	if err := row.Scan(
		&pending.ID,
		&pending.ToolName,
		&pending.Arguments,
		&pending.Status,
		&decision,
		&result,
		&createdAtUnix,
		&expiresAtUnix,
		&resolvedAtUnix,
	); err != nil {
		return PendingConfirmation{}, err
	}
	pending.Decision = decision.String
	pending.Result = result.String
	pending.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	pending.ExpiresAt = time.Unix(expiresAtUnix, 0).UTC()
	pending.ResolvedAt = timeFromUnix(resolvedAtUnix)
	return pending, nil
}
