package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceFetch(t *testing.T) {
	pair, mock := newMockPair(t)

	mock.ExpectBegin()
	mock.ExpectQuery(showTables).WillReturnRows(
		sqlmock.NewRows([]string{"Tables_in_shop", "Table_type"}).AddRow("items", "BASE TABLE"),
	)
	mock.ExpectQuery("SHOW CREATE TABLE `items`").WillReturnRows(
		sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow("items", "CREATE TABLE `items` (`id` int, `label` blob)"),
	)
	mock.ExpectQuery("SELECT * FROM `items`").WillReturnRows(
		sqlmock.NewRows([]string{"id", "label"}).
			AddRow("1", []byte("apple")).
			AddRow("2", nil).
			AddRow("3", []byte{0xff, 0x00, 0x01}),
	)
	mock.ExpectCommit()

	snap, err := NewSource(pair).Fetch(context.Background(), localShop)
	require.NoError(t, err)

	assert.Equal(t, "shop", snap.Database)
	require.Len(t, snap.Tables, 1)
	tbl := snap.Tables[0]
	assert.Equal(t, "items", tbl.Name)
	assert.Equal(t, "CREATE TABLE `items` (`id` int, `label` blob)", tbl.CreateStatement)
	assert.Equal(t, []string{"id", "label"}, tbl.Columns)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "apple", *tbl.Rows[0]["label"])
	assert.Nil(t, tbl.Rows[1]["label"])
	assert.Equal(t, "\xff\x00\x01", *tbl.Rows[2]["label"])
}

func TestSourceFetch_RollsBackOnFailure(t *testing.T) {
	pair, mock := newMockPair(t)

	mock.ExpectBegin()
	mock.ExpectQuery(showTables).WillReturnRows(
		sqlmock.NewRows([]string{"Tables_in_shop", "Table_type"}).AddRow("items", "BASE TABLE"),
	)
	mock.ExpectQuery("SHOW CREATE TABLE `items`").WillReturnError(errors.New("Error 1146: Table 'shop.items' doesn't exist"))
	mock.ExpectRollback()

	_, err := NewSource(pair).Fetch(context.Background(), localShop)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuery))
	assert.Contains(t, err.Error(), "local")
}

func TestListTables_SkipsViews(t *testing.T) {
	pair, mock := newMockPair(t)

	// The server filters views out; only base tables come back.
	mock.ExpectQuery(showTables).WillReturnRows(
		sqlmock.NewRows([]string{"Tables_in_shop", "Table_type"}).
			AddRow("items", "BASE TABLE").
			AddRow("orders", "BASE TABLE"),
	)

	names, err := listTables(context.Background(), pair.Local.DB)
	require.NoError(t, err)
	assert.Equal(t, []string{"items", "orders"}, names)
}

func TestReadTable_EmptyTable(t *testing.T) {
	pair, mock := newMockPair(t)

	mock.ExpectQuery("SHOW CREATE TABLE `log`").WillReturnRows(
		sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow("log", "CREATE TABLE `log` (`msg` text)"),
	)
	mock.ExpectQuery("SELECT * FROM `log`").WillReturnRows(sqlmock.NewRows([]string{"msg"}))

	tbl, err := readTable(context.Background(), pair.Local.DB, "log")
	require.NoError(t, err)
	assert.Equal(t, []string{"msg"}, tbl.Columns)
	assert.Empty(t, tbl.Rows)
}
