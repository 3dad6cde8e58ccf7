package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-local-sync/internal/config"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"server rejection", &mysql.MySQLError{Number: 1146, Message: "Table 'shop.users' doesn't exist"}, ErrQuery},
		{"wrapped server rejection", fmt.Errorf("select: %w", &mysql.MySQLError{Number: 1064}), ErrQuery},
		{"bad connection", driver.ErrBadConn, ErrConnectivity},
		{"invalid connection", mysql.ErrInvalidConn, ErrConnectivity},
		{"dial failure", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ErrConnectivity},
		{"deadline", context.DeadlineExceeded, ErrConnectivity},
		{"unknown", errors.New("something odd"), ErrQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "original error must stay reachable")
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	assert.Nil(t, Classify(nil))

	once := Classify(driver.ErrBadConn)
	twice := Classify(fmt.Errorf("fetch: %w", once))
	assert.ErrorIs(t, twice, ErrConnectivity)
	assert.NotErrorIs(t, twice, ErrQuery)
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConnection{
		Host: "db.internal", Port: 3307, User: "sync", Password: "p@ss", Database: "shop",
	})

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sync", parsed.User)
	assert.Equal(t, "p@ss", parsed.Passwd)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "shop", parsed.DBName)
	assert.False(t, parsed.MultiStatements)
}

func TestIdentity(t *testing.T) {
	id := IdentityOf("local", config.DatabaseConnection{Host: "127.0.0.1", Port: 3306, Database: "shop"})
	assert.Equal(t, "local 127.0.0.1:3306/shop", id.String())
}

func TestPairFor(t *testing.T) {
	local := &Database{Identity: Identity{Name: "local", Database: "shop"}}
	remote := &Database{Identity: Identity{Name: "remote", Database: "shop"}}
	pair := &Pair{Local: local, Remote: remote}

	got, err := pair.For(Identity{Name: "remote"})
	require.NoError(t, err)
	assert.Same(t, remote, got)

	got, err = pair.For(local.Identity)
	require.NoError(t, err)
	assert.Same(t, local, got)

	_, err = pair.For(Identity{Name: "staging"})
	assert.Error(t, err)
}
