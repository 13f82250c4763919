package cachedemo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
)

// failingSQLDriver opens connections that fail schema creation or ping.
type failingSQLDriver struct {
	execErr error
	pingErr error
}

func (d failingSQLDriver) Open(string) (driver.Conn, error) {
	return failingSQLConn(d), nil
}

type failingSQLConn struct {
	execErr error
	pingErr error
}

var errSQLUnsupported = errors.New("unsupported by failing sql driver")

func (failingSQLConn) Prepare(string) (driver.Stmt, error) { return nil, errSQLUnsupported }
func (failingSQLConn) Begin() (driver.Tx, error)           { return nil, errSQLUnsupported }
func (failingSQLConn) Close() error                        { return nil }

func (c failingSQLConn) Ping(context.Context) error { return c.pingErr }

func (c failingSQLConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	if c.execErr != nil {
		return nil, c.execErr
	}
	return driver.RowsAffected(0), nil
}

func (failingSQLConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return emptyRows{}, nil
}

type emptyRows struct{}

func (emptyRows) Columns() []string         { return nil }
func (emptyRows) Close() error              { return nil }
func (emptyRows) Next([]driver.Value) error { return io.EOF }

func init() {
	sql.Register("sqlexecfail", failingSQLDriver{execErr: errors.New("exec boom")})
	sql.Register("sqlpingfail", failingSQLDriver{pingErr: errors.New("ping boom")})
}
