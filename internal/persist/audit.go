package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// AuditRow is one persisted resolution outcome.
type AuditRow struct {
	ActorID    string    `json:"actor_id"`
	Strategy   string    `json:"strategy"`
	Found      bool      `json:"found"`
	Region     string    `json:"region,omitempty"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Z          int       `json:"z"`
	ElapsedUS  int64     `json:"elapsed_us"`
	ResolvedAt time.Time `json:"resolved_at"`
}

var auditColumns = []string{"actor_id", "strategy", "found", "region", "x", "y", "z", "elapsed_us", "resolved_at"}

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// WriteBatch bulk-inserts rows with COPY.
func (r *AuditRepo) WriteBatch(ctx context.Context, rows []AuditRow) error {
	if len(rows) == 0 {
		return nil
	}
	n, err := r.db.Pool.CopyFrom(ctx,
		pgx.Identifier{"resolution_audit"},
		auditColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			if !row.Found {
				return []any{row.ActorID, row.Strategy, false, nil, nil, nil, nil, row.ElapsedUS, row.ResolvedAt}, nil
			}
			return []any{row.ActorID, row.Strategy, true, row.Region, row.X, row.Y, row.Z, row.ElapsedUS, row.ResolvedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("audit copy: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("audit copy: wrote %d of %d rows", n, len(rows))
	}
	return nil
}

// Prune deletes rows resolved before cutoff and returns how many were removed.
func (r *AuditRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM resolution_audit WHERE resolved_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *AuditRepo) Close() error { return nil }
