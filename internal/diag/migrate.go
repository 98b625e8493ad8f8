package diag

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// schemaStep is one versioned DDL step, named NNNN_description.sql.
// SQLite's user_version pragma records the highest step applied, so a
// restart only replays what the on-flash database is missing.
type schemaStep struct {
	version int
	name    string
	ddl     string
}

// Migrate brings the journal schema up to the newest step. It runs on
// every open; an up-to-date database is a no-op.
func Migrate(ctx context.Context, db *sql.DB) error {
	steps, err := loadSchemaSteps()
	if err != nil {
		return err
	}

	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, s := range steps {
		if s.version <= current {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("schema step %s begin: %w", s.name, err)
		}
		if _, err := tx.ExecContext(ctx, s.ddl); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("schema step %s: %w", s.name, err)
		}
		// PRAGMA does not take placeholders; the version comes from the
		// embedded filename, not external input.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d;", s.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("schema step %s stamp: %w", s.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("schema step %s commit: %w", s.name, err)
		}
		current = s.version
	}

	return nil
}

func loadSchemaSteps() ([]schemaStep, error) {
	names, err := fs.Glob(schemaFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list schema steps: %w", err)
	}

	steps := make([]schemaStep, 0, len(names))
	for _, name := range names {
		num, _, ok := strings.Cut(path.Base(name), "_")
		if !ok {
			return nil, fmt.Errorf("schema step %s: want NNNN_description.sql", name)
		}
		v, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("schema step %s: %w", name, err)
		}
		b, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("schema step %s: %w", name, err)
		}
		steps = append(steps, schemaStep{version: v, name: path.Base(name), ddl: string(b)})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}
