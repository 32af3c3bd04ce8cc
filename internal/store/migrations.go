package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		revision    INTEGER NOT NULL DEFAULT 1,
		has_cycles  INTEGER NOT NULL DEFAULT 0,
		has_errors  INTEGER NOT NULL DEFAULT 0,
		step_count  INTEGER NOT NULL DEFAULT 0,
		definition  TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS invocations (
		id            TEXT PRIMARY KEY,
		workflow_id   TEXT NOT NULL,
		workflow_name TEXT NOT NULL,
		history_id    TEXT NOT NULL DEFAULT '',
		history_name  TEXT NOT NULL DEFAULT '',
		new_history   INTEGER NOT NULL DEFAULT 0,
		state         TEXT NOT NULL DEFAULT 'QUEUED',
		assignment    TEXT NOT NULL DEFAULT '{}',
		step_args     TEXT NOT NULL DEFAULT '{}',
		replacements  TEXT NOT NULL DEFAULT '{}',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_workflows_name ON workflows(name)`,
	`CREATE INDEX IF NOT EXISTS idx_invocations_workflow_id ON invocations(workflow_id)`,
	`CREATE INDEX IF NOT EXISTS idx_invocations_state ON invocations(state)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "invocations",
		column:   "message",
		alterSQL: "ALTER TABLE invocations ADD COLUMN message TEXT NOT NULL DEFAULT ''",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
