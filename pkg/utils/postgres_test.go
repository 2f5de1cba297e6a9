package utils

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
)

// txRecorder counts transaction outcomes observed by the stub driver.
type txRecorder struct {
	commits   int
	rollbacks int
}

type stubDriver struct{ rec *txRecorder }

func (d stubDriver) Open(string) (driver.Conn, error) { return stubConn{rec: d.rec}, nil }

type stubConn struct{ rec *txRecorder }

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)         { return stubTx{rec: c.rec}, nil }

type stubTx struct{ rec *txRecorder }

func (t stubTx) Commit() error   { t.rec.commits++; return nil }
func (t stubTx) Rollback() error { t.rec.rollbacks++; return nil }

func openStub(t *testing.T, name string) (*sql.DB, *txRecorder) {
	t.Helper()
	rec := &txRecorder{}
	sql.Register(name, stubDriver{rec: rec})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, rec
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, rec := openStub(t, "withtx-commit")

	ran := false
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("with tx: %v", err)
	}
	if !ran {
		t.Fatal("fn never ran")
	}
	if rec.commits != 1 || rec.rollbacks != 0 {
		t.Fatalf("expected 1 commit, 0 rollbacks, got %+v", rec)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, rec := openStub(t, "withtx-error")

	boom := errors.New("boom")
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error back, got %v", err)
	}
	if rec.commits != 0 || rec.rollbacks != 1 {
		t.Fatalf("expected 0 commits, 1 rollback, got %+v", rec)
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db, rec := openStub(t, "withtx-panic")

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
			panic("boom")
		})
	}()
	if rec.commits != 0 || rec.rollbacks != 1 {
		t.Fatalf("expected 0 commits, 1 rollback, got %+v", rec)
	}
}
