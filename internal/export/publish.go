package export

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ostium-io/ostium/internal/ostium/types"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		identifier TEXT NOT NULL,
		identity   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		identity     TEXT NOT NULL,
		display_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		identity         TEXT   NOT NULL,
		activity_ref     TEXT   NOT NULL,
		attempts_used    INT    NOT NULL,
		last_entry_epoch BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		ref        TEXT NOT NULL,
		kind       TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		identity      TEXT   NOT NULL,
		epoch         BIGINT NOT NULL,
		event_date    TEXT   NOT NULL,
		event_time    TEXT   NOT NULL,
		outcome       TEXT   NOT NULL,
		activity_kind TEXT   NOT NULL,
		reason        TEXT   NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS faults (
		epoch      BIGINT NOT NULL,
		event_date TEXT   NOT NULL,
		event_time TEXT   NOT NULL,
		fault_type TEXT   NOT NULL,
		detail     TEXT   NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fault_counters (
		fault_type TEXT   NOT NULL,
		count      BIGINT NOT NULL
	)`,
}

// Publisher reloads the warehouse tables from a snapshot. Each table is
// replaced inside its own transaction, so a mid-run failure leaves earlier
// tables fully reloaded and later ones untouched from the previous run.
type Publisher struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPublisher(ctx context.Context, dsn string, logger *zap.Logger) (*Publisher, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	p := &Publisher{pool: pool, log: logger}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() {
	p.pool.Close()
}

func (p *Publisher) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure warehouse schema: %w", err)
		}
	}
	return nil
}

func (p *Publisher) Publish(ctx context.Context, snap *Snapshot) error {
	tables := []struct {
		name    string
		columns []string
		rows    [][]any
	}{
		{"credentials", []string{"identifier", "identity"}, credentialValues(snap.Credentials)},
		{"profiles", []string{"identity", "display_name"}, profileValues(snap.Profiles)},
		{"reservations", []string{"identity", "activity_ref", "attempts_used", "last_entry_epoch"}, reservationValues(snap.Reservations)},
		{"activities", []string{"ref", "kind", "start_time", "end_time"}, activityValues(snap.Activities)},
		{"audit_log", []string{"identity", "epoch", "event_date", "event_time", "outcome", "activity_kind", "reason"}, auditValues(snap.AuditLog)},
		{"faults", []string{"epoch", "event_date", "event_time", "fault_type", "detail"}, faultValues(snap.Faults)},
		{"fault_counters", []string{"fault_type", "count"}, faultCounterValues(snap.FaultCounters)},
	}

	for _, t := range tables {
		if err := p.reload(ctx, t.name, t.columns, t.rows); err != nil {
			return err
		}
		p.log.Info("table reloaded", zap.String("table", t.name), zap.Int("rows", len(t.rows)))
	}
	return nil
}

func (p *Publisher) reload(ctx context.Context, table string, columns []string, rows [][]any) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reload of %s: %w", table, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE "+table); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy into %s: %w", table, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reload of %s: %w", table, err)
	}
	return nil
}

func credentialValues(rows []CredentialRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Identifier, r.Identity})
	}
	return out
}

func profileValues(rows []ProfileRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Identity, r.DisplayName})
	}
	return out
}

func reservationValues(rows []ReservationRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Identity, r.ActivityRef, r.AttemptsUsed, r.LastEntryEpoch})
	}
	return out
}

func activityValues(rows []ActivityRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Ref, r.Kind, r.StartTime, r.EndTime})
	}
	return out
}

func auditValues(rows []types.AuditRecord) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Identity, r.Epoch, r.Date, r.Time, string(r.Outcome), string(r.ActivityKind), r.Reason})
	}
	return out
}

func faultValues(rows []types.FaultRecord) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Epoch, r.Date, r.Time, r.Type, r.Detail})
	}
	return out
}

func faultCounterValues(rows []FaultCounterRow) [][]any {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.FaultType, r.Count})
	}
	return out
}
