package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"db-local-sync/internal/logger"
	"db-local-sync/internal/snapshot"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Source reads full snapshots from either side of a Pair.
type Source struct {
	pair *Pair
}

func NewSource(pair *Pair) *Source {
	return &Source{pair: pair}
}

// Fetch enumerates every base table of id's database, then reads every row of
// every table inside one read-only transaction.
func (s *Source) Fetch(ctx context.Context, id Identity) (*snapshot.Snapshot, error) {
	db, err := s.pair.For(id)
	if err != nil {
		return nil, err
	}

	snap := snapshot.Empty(db.Config.Database)
	err = db.ReadTx(ctx, func(tx *sql.Tx) error {
		tables, err := listTables(ctx, tx)
		if err != nil {
			return err
		}
		for _, name := range tables {
			t, err := readTable(ctx, tx, name)
			if err != nil {
				return err
			}
			snap.Tables = append(snap.Tables, *t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot of %s: %w", id, Classify(err))
	}

	logger.Log.Debug("Fetched snapshot",
		zap.String("role", id.Name),
		zap.Int("tables", len(snap.Tables)),
		zap.Int64("rows", snap.RowCount()),
	)
	return snap, nil
}

// listTables returns base table names; views are not part of a snapshot.
func listTables(ctx context.Context, q queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SHOW FULL TABLES WHERE Table_type = 'BASE TABLE'")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func readTable(ctx context.Context, q queryer, name string) (*snapshot.Table, error) {
	t := &snapshot.Table{Name: name}

	var ignored string
	if err := q.QueryRowContext(ctx, "SHOW CREATE TABLE "+snapshot.QuoteIdent(name)).Scan(&ignored, &t.CreateStatement); err != nil {
		return nil, fmt.Errorf("failed to read definition of %s: %w", name, err)
	}

	rows, err := q.QueryContext(ctx, "SELECT * FROM "+snapshot.QuoteIdent(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t.Columns = cols

	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", name, err)
		}
		row := make(snapshot.Row, len(cols))
		for i, c := range cols {
			if values[i].Valid {
				row[c] = snapshot.Value(values[i].String)
			} else {
				row[c] = nil
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}
