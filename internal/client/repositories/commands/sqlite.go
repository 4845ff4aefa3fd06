package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/listbuffer/internal/client/models"
	"github.com/dmitrijs2005/listbuffer/internal/common"
	"github.com/dmitrijs2005/listbuffer/internal/dbx"
)

const columns = `seq, action, table_name, type_name, item_id, parameters, state, created, priority, attempts, last_error`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, c *models.Command) error {
	var last int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM commands`).Scan(&last); err != nil {
		return fmt.Errorf("failed to read last sequence: %w", err)
	}

	params := c.Parameters
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	if c.State == "" {
		c.State = models.StatePending
	}
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}

	seq := last + 1
	_, err = r.db.ExecContext(ctx, `INSERT INTO commands (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seq, string(c.Action), c.TableName, c.TypeName, nullableID(c.ItemID), string(raw), string(c.State),
		c.Created.UnixNano(), c.Priority, c.Attempts, c.LastError)
	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}

	c.Seq = seq
	return nil
}

func (r *SQLiteRepository) Read(ctx context.Context) ([]models.Command, error) {
	return r.query(ctx, `SELECT `+columns+` FROM commands ORDER BY seq`)
}

func (r *SQLiteRepository) Get(ctx context.Context, seq int64) (*models.Command, error) {
	return r.one(ctx, `SELECT `+columns+` FROM commands WHERE seq = ?`, seq)
}

func (r *SQLiteRepository) Next(ctx context.Context) (*models.Command, error) {
	c, err := r.one(ctx, `SELECT `+columns+` FROM commands WHERE state IN (?, ?) ORDER BY seq LIMIT 1`,
		string(models.StatePending), string(models.StateFailed))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return c, err
}

// UpdateState refuses to move a command out of Succeeded.
func (r *SQLiteRepository) UpdateState(ctx context.Context, c *models.Command) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE commands SET state = ?, attempts = ?, last_error = ? WHERE seq = ? AND state <> ?`,
		string(c.State), c.Attempts, c.LastError, c.Seq, string(models.StateSucceeded))
	if err != nil {
		return fmt.Errorf("failed to update command: %w", err)
	}
	return expectOne(res, c.Seq)
}

func (r *SQLiteRepository) Delete(ctx context.Context, seq int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM commands WHERE seq = ?`, seq)
	if err != nil {
		return fmt.Errorf("failed to delete command: %w", err)
	}
	return expectOne(res, seq)
}

func (r *SQLiteRepository) Empty(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM commands`); err != nil {
		return fmt.Errorf("failed to empty queue: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CollectGarbage(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM commands WHERE state = ?`, string(models.StateSucceeded))
	if err != nil {
		return 0, fmt.Errorf("failed to collect succeeded commands: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) RewriteItemID(ctx context.Context, typeName string, oldID, newID int) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE commands SET item_id = ? WHERE type_name = ? AND item_id = ? AND state IN (?, ?)`,
		newID, typeName, oldID, string(models.StatePending), string(models.StateFailed))
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite command item ids: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) HasOpen(ctx context.Context, typeName string, action models.Action, itemID int) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM commands WHERE type_name = ? AND action = ? AND item_id = ? AND state IN (?, ?)`,
		typeName, string(action), itemID, string(models.StatePending), string(models.StateFailed)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up open commands: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Disable(ctx context.Context, seq int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE commands SET state = ? WHERE seq = ? AND state <> ?`,
		string(models.StateDisabled), seq, string(models.StateSucceeded))
	if err != nil {
		return fmt.Errorf("failed to disable command: %w", err)
	}
	return expectOne(res, seq)
}

func (r *SQLiteRepository) Stats(ctx context.Context) (Stats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM commands GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count commands: %w", err)
	}
	defer rows.Close()

	stats := Stats{}
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		stats[models.State(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *SQLiteRepository) one(ctx context.Context, query string, args ...any) (*models.Command, error) {
	list, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: command", common.ErrorNotFound)
	}
	return &list[0], nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]models.Command, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select commands: %w", err)
	}
	defer rows.Close()

	var result []models.Command
	for rows.Next() {
		var (
			c       models.Command
			action  string
			state   string
			itemID  sql.NullInt64
			params  string
			created int64
		)
		err := rows.Scan(&c.Seq, &action, &c.TableName, &c.TypeName, &itemID, &params, &state,
			&created, &c.Priority, &c.Attempts, &c.LastError)
		if err != nil {
			return nil, err
		}
		c.Action = models.Action(action)
		c.State = models.State(state)
		c.Created = time.Unix(0, created).UTC()
		if itemID.Valid {
			c.ItemID = models.IntPtr(int(itemID.Int64))
		}
		if err := json.Unmarshal([]byte(params), &c.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters of command %d: %w", c.Seq, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func expectOne(res sql.Result, seq int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: command %d", common.ErrorNotFound, seq)
	}
	return nil
}

func nullableID(id *int) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
