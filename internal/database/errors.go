package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrConnectivity means the server could not be reached or the connection
	// dropped mid-operation.
	ErrConnectivity = errors.New("connectivity failure")
	// ErrQuery means the server was reached but rejected the operation.
	ErrQuery = errors.New("query failure")
)

// Classify wraps err with ErrConnectivity or ErrQuery. Errors that already
// carry a classification are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConnectivity) || errors.Is(err, ErrQuery) {
		return err
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return fmt.Errorf("%w: %w", ErrQuery, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}

	return fmt.Errorf("%w: %w", ErrQuery, err)
}
