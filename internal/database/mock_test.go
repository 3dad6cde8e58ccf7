package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"db-local-sync/internal/config"
)

var (
	localShop  = Identity{Name: "local", Host: "127.0.0.1", Port: 3306, Database: "shop"}
	remoteShop = Identity{Name: "remote", Host: "db.example.com", Port: 3306, Database: "shop"}
)

// newMockPair returns a pair whose local side is backed by sqlmock. Statements
// must match exactly and in order.
func newMockPair(t *testing.T) (*Pair, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	pair := &Pair{
		Local:  &Database{DB: db, Config: config.DatabaseConnection{Database: "shop"}, Identity: localShop},
		Remote: &Database{Identity: remoteShop},
	}
	return pair, mock
}

// expectExecs expects each statement in turn, without arguments.
func expectExecs(mock sqlmock.Sqlmock, stmts ...string) {
	for _, stmt := range stmts {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
}
