package diag

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ostium-io/ostium/internal/ostium/types"
)

// CycleEntry is one decision cycle as seen locally. Outcome mirrors the
// audit outcome for cycles that reached a verdict; short-circuited cycles
// use OutcomeSkipped / OutcomeFault, which never appear in the remote
// audit log.
type CycleEntry struct {
	CycleID      string    `json:"cycle_id"`
	Epoch        int64     `json:"epoch"`
	Identifier   string    `json:"identifier"`
	Identity     string    `json:"identity,omitempty"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	ActivityKind string    `json:"activity_kind,omitempty"`
	Escalated    bool      `json:"escalated"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Local-only outcome values for cycles that never reached a verdict.
const (
	OutcomeSkipped = "skipped"
	OutcomeFault   = "fault"
)

type Journal struct {
	db    *sql.DB
	queue *WriteQueue
}

func NewJournal(db *sql.DB, queue *WriteQueue) *Journal {
	return &Journal{db: db, queue: queue}
}

func (j *Journal) AppendCycle(ctx context.Context, e CycleEntry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	escalated := 0
	if e.Escalated {
		escalated = 1
	}
	return j.queue.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cycles(
  cycle_id, epoch, identifier, identity, outcome, reason,
  activity_kind, escalated, recorded_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			e.CycleID, e.Epoch, e.Identifier, e.Identity, e.Outcome, e.Reason,
			e.ActivityKind, escalated, e.RecordedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("AppendCycle insert: %w", err)
		}
		return nil
	})
}

func (j *Journal) AppendFault(ctx context.Context, rec types.FaultRecord) error {
	return j.queue.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO faults(epoch, fault_type, detail, recorded_at_ms)
VALUES (?, ?, ?, ?);
`,
			rec.Epoch, rec.Type, rec.Detail, time.Now().UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("AppendFault insert: %w", err)
		}
		return nil
	})
}

// RecentCycles returns up to limit entries, newest first. Serves the
// diagnostic HTTP surface.
func (j *Journal) RecentCycles(ctx context.Context, limit int) ([]CycleEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT cycle_id, epoch, identifier, identity, outcome, reason,
       activity_kind, escalated, recorded_at_ms
FROM cycles ORDER BY id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentCycles query: %w", err)
	}
	defer rows.Close()

	var out []CycleEntry
	for rows.Next() {
		var (
			e          CycleEntry
			identity   sql.NullString
			reason     sql.NullString
			kind       sql.NullString
			escalated  int
			recordedMs int64
		)
		if err := rows.Scan(&e.CycleID, &e.Epoch, &e.Identifier, &identity,
			&e.Outcome, &reason, &kind, &escalated, &recordedMs); err != nil {
			return nil, fmt.Errorf("RecentCycles scan: %w", err)
		}
		e.Identity = identity.String
		e.Reason = reason.String
		e.ActivityKind = kind.String
		e.Escalated = escalated != 0
		e.RecordedAt = time.UnixMilli(recordedMs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneOlderThan deletes journal rows recorded before cutoff and reports
// how many were removed.
func (j *Journal) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := j.queue.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cutoffMs := cutoff.UTC().UnixMilli()
		res, err := tx.ExecContext(ctx, "DELETE FROM cycles WHERE recorded_at_ms < ?;", cutoffMs)
		if err != nil {
			return fmt.Errorf("prune cycles: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += n

		res, err = tx.ExecContext(ctx, "DELETE FROM faults WHERE recorded_at_ms < ?;", cutoffMs)
		if err != nil {
			return fmt.Errorf("prune faults: %w", err)
		}
		n, _ = res.RowsAffected()
		deleted += n
		return nil
	})
	return deleted, err
}
