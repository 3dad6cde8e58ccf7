package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"db-local-sync/internal/logger"
	"db-local-sync/internal/snapshot"
)

// maxPlaceholders is MySQL's limit on bound parameters per statement.
const maxPlaceholders = 65535

// Mutator performs the destructive operations of a sync: backup, replace and
// the one-time validation relaxation.
type Mutator struct {
	pair      *Pair
	batchSize int
}

func NewMutator(pair *Pair, batchSize int) *Mutator {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Mutator{pair: pair, batchSize: batchSize}
}

// withConn pins one connection for the duration of fn so session settings
// such as USE and FOREIGN_KEY_CHECKS apply to every statement. Foreign key
// checks are switched back on before the connection returns to the pool.
func (m *Mutator) withConn(ctx context.Context, id Identity, fn func(conn *sql.Conn) error) error {
	db, err := m.pair.For(id)
	if err != nil {
		return err
	}
	conn, err := db.DB.Conn(ctx)
	if err != nil {
		return Classify(err)
	}
	defer conn.Close()
	defer conn.ExecContext(context.WithoutCancel(ctx), "SET FOREIGN_KEY_CHECKS=1")

	if err := fn(conn); err != nil {
		return Classify(err)
	}
	return nil
}

// Backup copies the current content of source's database into backupName on
// the same server. Any previous backup is dropped first.
func (m *Mutator) Backup(ctx context.Context, source Identity, backupName string) error {
	if backupName == source.Database {
		return fmt.Errorf("backup name %q equals source database", backupName)
	}

	err := m.withConn(ctx, source, func(conn *sql.Conn) error {
		src := snapshot.QuoteIdent(source.Database)
		dst := snapshot.QuoteIdent(backupName)

		if err := execAll(ctx, conn,
			"SET FOREIGN_KEY_CHECKS=0",
			"DROP DATABASE IF EXISTS "+dst,
			"CREATE DATABASE "+dst,
		); err != nil {
			return err
		}

		tables, err := listTables(ctx, conn)
		if err != nil {
			return err
		}
		for _, t := range tables {
			name := snapshot.QuoteIdent(t)
			if err := execAll(ctx, conn,
				fmt.Sprintf("CREATE TABLE %s.%s LIKE %s.%s", dst, name, src, name),
				fmt.Sprintf("INSERT INTO %s.%s SELECT * FROM %s.%s", dst, name, src, name),
			); err != nil {
				return fmt.Errorf("failed to back up table %s: %w", t, err)
			}
		}

		logger.Log.Info("Backed up database",
			zap.String("source", source.Database),
			zap.String("backup", backupName),
			zap.Int("tables", len(tables)),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("backup of %s into %s failed: %w", source, backupName, err)
	}
	return nil
}

// Replace drops and recreates target's database and loads snap into it.
func (m *Mutator) Replace(ctx context.Context, target Identity, snap *snapshot.Snapshot) error {
	err := m.withConn(ctx, target, func(conn *sql.Conn) error {
		db := snapshot.QuoteIdent(target.Database)
		if err := execAll(ctx, conn,
			"SET FOREIGN_KEY_CHECKS=0",
			"DROP DATABASE IF EXISTS "+db,
			"CREATE DATABASE "+db,
			"USE "+db,
		); err != nil {
			return err
		}

		for _, t := range snap.Tables {
			if _, err := conn.ExecContext(ctx, t.CreateStatement); err != nil {
				return fmt.Errorf("failed to create table %s: %w", t.Name, err)
			}
			if err := m.insertRows(ctx, conn, t); err != nil {
				return err
			}
		}

		logger.Log.Info("Replaced database content",
			zap.String("target", target.Database),
			zap.Int("tables", len(snap.Tables)),
			zap.Int64("rows", snap.RowCount()),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace of %s failed: %w", target, err)
	}
	return nil
}

func (m *Mutator) insertRows(ctx context.Context, conn *sql.Conn, t snapshot.Table) error {
	if len(t.Rows) == 0 || len(t.Columns) == 0 {
		return nil
	}

	batch := batchRows(m.batchSize, len(t.Columns))

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = snapshot.QuoteIdent(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", snapshot.QuoteIdent(t.Name), strings.Join(cols, ", "))
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ",") + ")"

	for start := 0; start < len(t.Rows); start += batch {
		end := start + batch
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		rows := t.Rows[start:end]

		tuples := make([]string, len(rows))
		args := make([]any, 0, len(rows)*len(t.Columns))
		for i, row := range rows {
			tuples[i] = tuple
			for _, c := range t.Columns {
				args = append(args, row[c])
			}
		}

		if _, err := conn.ExecContext(ctx, prefix+strings.Join(tuples, ","), args...); err != nil {
			return fmt.Errorf("failed to insert rows into %s: %w", t.Name, err)
		}
	}
	return nil
}

// batchRows caps batchSize so one INSERT stays within maxPlaceholders. It is
// never below one row.
func batchRows(batchSize, columns int) int {
	if limit := maxPlaceholders / columns; batchSize > limit {
		batchSize = limit
	}
	if batchSize < 1 {
		return 1
	}
	return batchSize
}

// RelaxValidation removes strict SQL modes on target's server so that rows
// accepted by the remote server load locally. It applies to the pinned
// session and to sessions opened later.
func (m *Mutator) RelaxValidation(ctx context.Context, target Identity) error {
	const relaxed = "REPLACE(REPLACE(@@%s.sql_mode, 'STRICT_TRANS_TABLES', ''), 'STRICT_ALL_TABLES', '')"
	err := m.withConn(ctx, target, func(conn *sql.Conn) error {
		return execAll(ctx, conn,
			"SET GLOBAL sql_mode = "+fmt.Sprintf(relaxed, "GLOBAL"),
			"SET SESSION sql_mode = "+fmt.Sprintf(relaxed, "SESSION"),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to relax sql_mode on %s: %w", target, err)
	}
	logger.Log.Info("Relaxed server validation mode", zap.String("target", target.String()))
	return nil
}

func execAll(ctx context.Context, conn *sql.Conn, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}
