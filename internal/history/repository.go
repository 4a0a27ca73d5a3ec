package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists the command log.
type Repository interface {
	// InsertCommand stores cmd and, when non-nil, its outcome atomically.
	// It returns the insertion sequence.
	InsertCommand(ctx context.Context, cmd DeviceCommand, action *HistoryAction) (int64, error)

	// InsertHistory stores an outcome for an already stored command.
	InsertHistory(ctx context.Context, action HistoryAction) error

	// List returns every entry ordered by issued_at, then sequence.
	List(ctx context.Context) ([]Entry, error)
}

// SQLiteRepository implements Repository over device_commands and history_actions.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// InsertCommand stores the command and optional outcome in one transaction.
func (r *SQLiteRepository) InsertCommand(ctx context.Context, cmd DeviceCommand, action *HistoryAction) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	res, err := tx.ExecContext(ctx,
		`INSERT INTO device_commands (command_id, device_id, action, issued_at, issued_by)
		 VALUES (?, ?, ?, ?, ?)`,
		cmd.ID, cmd.DeviceID, cmd.Action, cmd.IssuedAt.UnixNano(), cmd.IssuedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting command: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading command sequence: %w", err)
	}

	if action != nil {
		if err := insertHistory(ctx, tx, *action); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing command: %w", err)
	}
	return seq, nil
}

// InsertHistory stores an outcome.
func (r *SQLiteRepository) InsertHistory(ctx context.Context, action HistoryAction) error {
	return insertHistory(ctx, r.db, action)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertHistory(ctx context.Context, db execer, action HistoryAction) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO history_actions (command_id, result, completed_at, detail) VALUES (?, ?, ?, ?)`,
		action.CommandID, string(action.Result), action.CompletedAt.UnixNano(), action.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting history: %w", err)
	}
	return nil
}

// List returns the whole log in order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.seq, c.command_id, c.device_id, c.action, c.issued_at, c.issued_by,
		       h.result, h.completed_at, h.detail
		FROM device_commands c
		LEFT JOIN history_actions h ON h.command_id = c.command_id
		ORDER BY c.issued_at, c.seq`)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e           Entry
			issuedAt    int64
			result      sql.NullString
			completedAt sql.NullInt64
			detail      sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.Command.ID, &e.Command.DeviceID, &e.Command.Action,
			&issuedAt, &e.Command.IssuedBy, &result, &completedAt, &detail); err != nil {
			return nil, fmt.Errorf("scanning command log row: %w", err)
		}
		e.Command.IssuedAt = time.Unix(0, issuedAt).UTC()
		if result.Valid {
			e.History = &HistoryAction{
				CommandID:   e.Command.ID,
				Result:      Result(result.String),
				CompletedAt: time.Unix(0, completedAt.Int64).UTC(),
				Detail:      detail.String,
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}
	return out, nil
}
