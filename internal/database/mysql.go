package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"db-local-sync/internal/config"
	"db-local-sync/internal/logger"
)

// Identity names one of the two managed databases. Credentials stay with the
// connection.
type Identity struct {
	Name     string // "local" or "remote"
	Host     string
	Port     int
	Database string
}

func IdentityOf(name string, cfg config.DatabaseConnection) Identity {
	return Identity{Name: name, Host: cfg.Host, Port: cfg.Port, Database: cfg.Database}
}

func (i Identity) String() string {
	return fmt.Sprintf("%s %s:%d/%s", i.Name, i.Host, i.Port, i.Database)
}

type Database struct {
	DB       *sql.DB
	Config   config.DatabaseConnection
	Identity Identity
}

// DSN builds the driver connection string for cfg.
func DSN(cfg config.DatabaseConnection) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.Timeout = 10 * time.Second
	return mc.FormatDSN()
}

// NewDatabase opens the long-lived connection for one side of the pair.
// Every step of a sync cycle runs sequentially, so a single connection is
// enough.
func NewDatabase(name string, cfg config.DatabaseConnection) (*Database, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", name, Classify(err))
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("Connected to database",
		zap.String("role", name),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return &Database{
		DB:       db,
		Config:   cfg,
		Identity: IdentityOf(name, cfg),
	}, nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}

// ReadTx runs fn inside a read-only repeatable-read transaction so that every
// query sees the same point in time.
func (d *Database) ReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Pair holds the local and remote connections.
type Pair struct {
	Local  *Database
	Remote *Database
}

// OpenPair connects to both databases, closing the first if the second fails.
func OpenPair(cfg config.DatabasesConfig) (*Pair, error) {
	local, err := NewDatabase("local", cfg.Local)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to local db: %w", err)
	}

	remote, err := NewDatabase("remote", cfg.Remote)
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("failed to connect to remote db: %w", err)
	}

	return &Pair{Local: local, Remote: remote}, nil
}

// For returns the connection serving id.
func (p *Pair) For(id Identity) (*Database, error) {
	switch id.Name {
	case p.Local.Identity.Name:
		return p.Local, nil
	case p.Remote.Identity.Name:
		return p.Remote, nil
	}
	return nil, fmt.Errorf("no connection for %s", id)
}

func (p *Pair) Close() {
	p.Local.Close()
	p.Remote.Close()
}
