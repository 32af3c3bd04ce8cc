package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/me/flowgraph/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Workflow CRUD ---

// CreateWorkflow inserts wf as revision 1. An empty ID is filled with a
// new UUID.
func (s *SQLiteStore) CreateWorkflow(ctx context.Context, wf *model.StoredWorkflow) error {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	if wf.Revision == 0 {
		wf.Revision = 1
	}
	s.logger.Debug("sql", "op", "insert", "table", "workflows", "id", wf.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, revision, has_cycles, has_errors, step_count, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.Name, wf.Revision, wf.HasCycles, wf.HasErrors, wf.StepCount, string(wf.Definition),
		wf.CreatedAt.Format(time.RFC3339Nano), wf.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// GetWorkflow returns nil, nil when no workflow has the id.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, id string) (*model.StoredWorkflow, error) {
	s.logger.Debug("sql", "op", "select", "table", "workflows", "id", id)
	return scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT id, name, revision, has_cycles, has_errors, step_count, definition, created_at, updated_at
		 FROM workflows WHERE id = ?`, id))
}

// ListWorkflows returns a page of workflows, most recently updated first,
// along with the total matching count. Definitions are not loaded.
func (s *SQLiteStore) ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.StoredWorkflow, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "workflows", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := ""
	var args []any
	if opts.Name != "" {
		where = " WHERE name LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLike(opts.Name)+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, revision, has_cycles, has_errors, step_count, '', created_at, updated_at
		 FROM workflows`+where+` ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var workflows []*model.StoredWorkflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, 0, err
		}
		wf.Definition = nil
		workflows = append(workflows, wf)
	}
	return workflows, total, rows.Err()
}

// UpdateWorkflow saves a new revision of wf and sets wf.Revision to it.
func (s *SQLiteStore) UpdateWorkflow(ctx context.Context, wf *model.StoredWorkflow) error {
	s.logger.Debug("sql", "op", "update", "table", "workflows", "id", wf.ID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET name=?, revision=revision+1, has_cycles=?, has_errors=?, step_count=?,
		 definition=?, updated_at=? WHERE id=?`,
		wf.Name, wf.HasCycles, wf.HasErrors, wf.StepCount, string(wf.Definition),
		wf.UpdatedAt.Format(time.RFC3339Nano), wf.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("workflow %s not found", wf.ID)
	}
	return s.db.QueryRowContext(ctx, `SELECT revision FROM workflows WHERE id = ?`, wf.ID).Scan(&wf.Revision)
}

// DeleteWorkflow removes a workflow and its invocations in one transaction.
func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "workflows", "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("workflow %s not found", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invocations WHERE workflow_id = ?`, id); err != nil {
		return fmt.Errorf("delete invocations: %w", err)
	}
	return tx.Commit()
}

// --- Invocation operations ---

const invocationColumns = `id, workflow_id, workflow_name, history_id, history_name, new_history,
		 state, assignment, step_args, replacements, message, created_at, updated_at`

func (s *SQLiteStore) CreateInvocation(ctx context.Context, inv *model.Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = inv.CreatedAt
	}
	s.logger.Debug("sql", "op", "insert", "table", "invocations", "id", inv.ID)

	assignmentJSON, err := json.Marshal(inv.Assignment)
	if err != nil {
		return fmt.Errorf("marshal assignment: %w", err)
	}
	stepArgsJSON, err := json.Marshal(inv.StepArgs)
	if err != nil {
		return fmt.Errorf("marshal step args: %w", err)
	}
	replacementsJSON, err := json.Marshal(inv.Replacements)
	if err != nil {
		return fmt.Errorf("marshal replacements: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invocations (`+invocationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.WorkflowID, inv.WorkflowName, inv.HistoryID, inv.HistoryName, inv.NewHistory,
		string(inv.State), string(assignmentJSON), string(stepArgsJSON), string(replacementsJSON),
		inv.Message, inv.CreatedAt.Format(time.RFC3339Nano), inv.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// GetInvocation returns nil, nil when no invocation has the id.
func (s *SQLiteStore) GetInvocation(ctx context.Context, id string) (*model.Invocation, error) {
	s.logger.Debug("sql", "op", "select", "table", "invocations", "id", id)
	return scanInvocation(s.db.QueryRowContext(ctx,
		`SELECT `+invocationColumns+` FROM invocations WHERE id = ?`, id))
}

// ListInvocations returns a page of invocations, oldest first. An empty
// workflowID lists invocations of every workflow.
func (s *SQLiteStore) ListInvocations(ctx context.Context, workflowID string, opts model.ListOptions) ([]*model.Invocation, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "invocations", "workflow_id", workflowID, "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := ""
	var args []any
	if workflowID != "" {
		where = " WHERE workflow_id = ?"
		args = append(args, workflowID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invocations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invocationColumns+` FROM invocations`+where+` ORDER BY created_at, id LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invs, err := scanInvocations(rows)
	return invs, total, err
}

func (s *SQLiteStore) ListInvocationsByState(ctx context.Context, state model.InvocationState) ([]*model.Invocation, error) {
	s.logger.Debug("sql", "op", "list_by_state", "table", "invocations", "state", state)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invocationColumns+` FROM invocations WHERE state = ? ORDER BY created_at, id`, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanInvocations(rows)
}

func (s *SQLiteStore) UpdateInvocationState(ctx context.Context, id string, state model.InvocationState, message string) error {
	s.logger.Debug("sql", "op", "update", "table", "invocations", "id", id, "state", state)

	result, err := s.db.ExecContext(ctx,
		`UPDATE invocations SET state=?, message=?, updated_at=? WHERE id=?`,
		string(state), message, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("invocation %s not found", id)
	}
	return nil
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row scanner) (*model.StoredWorkflow, error) {
	var wf model.StoredWorkflow
	var definition, createdAt, updatedAt string

	err := row.Scan(&wf.ID, &wf.Name, &wf.Revision, &wf.HasCycles, &wf.HasErrors, &wf.StepCount,
		&definition, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if definition != "" {
		wf.Definition = json.RawMessage(definition)
	}
	wf.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	wf.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &wf, nil
}

func scanInvocation(row scanner) (*model.Invocation, error) {
	var inv model.Invocation
	var state, assignmentJSON, stepArgsJSON, replacementsJSON, createdAt, updatedAt string

	err := row.Scan(
		&inv.ID, &inv.WorkflowID, &inv.WorkflowName, &inv.HistoryID, &inv.HistoryName, &inv.NewHistory,
		&state, &assignmentJSON, &stepArgsJSON, &replacementsJSON, &inv.Message, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	inv.State = model.InvocationState(state)
	if err := json.Unmarshal([]byte(assignmentJSON), &inv.Assignment); err != nil {
		return nil, fmt.Errorf("unmarshal assignment: %w", err)
	}
	if err := json.Unmarshal([]byte(stepArgsJSON), &inv.StepArgs); err != nil {
		return nil, fmt.Errorf("unmarshal step args: %w", err)
	}
	if err := json.Unmarshal([]byte(replacementsJSON), &inv.Replacements); err != nil {
		return nil, fmt.Errorf("unmarshal replacements: %w", err)
	}
	inv.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	inv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &inv, nil
}

func scanInvocations(rows *sql.Rows) ([]*model.Invocation, error) {
	var invs []*model.Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
