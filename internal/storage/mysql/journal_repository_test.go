package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync/atomic"
	"testing"

	"OpenMCP-Arbitrum/internal/journal"
)

func TestJournalRepositorySave(t *testing.T) {
	t.Parallel()

	db, driver := newMockDB(t, []mockOperation{
		execOp(insertEntrySQL, mockResult{rowsAffected: 1}),
	})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &JournalRepository{db: db}
	entry := journal.NewEntry("transfer")
	entry.Status = journal.StatusSucceeded
	entry.Params = json.RawMessage(`{"amount":"1"}`)
	if err := repo.Save(context.Background(), entry); err != nil {
		t.Fatalf("save failed: %v", err)
	}
}

func TestJournalRepositoryListLatest(t *testing.T) {
	t.Parallel()

	rows := mockRowsData{
		columns: []string{"id", "action", "source", "message", "params", "status", "code", "text", "content", "chain", "tx_hash", "duration_ms", "created_at"},
		values: [][]driver.Value{
			{"b", "swap", "direct", "swap 1 eth", []byte(`{"amount":"1"}`), "failed", "NO_ROUTE", "Swap failed: No routes found", nil, "arbitrum", "", int64(12), int64(20)},
			{"a", "getBalance", "", "", nil, "succeeded", "", "Balance of 0x1 on arbitrum:\nETH: 1", []byte(`{"chain":"arbitrum"}`), "arbitrum", "", int64(3), int64(10)},
		},
	}

	db, driver := newMockDB(t, []mockOperation{
		queryOp(selectEntriesSQL, rows),
	})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &JournalRepository{db: db}
	list, err := repo.ListLatest(context.Background(), 2)
	if err != nil {
		t.Fatalf("list latest failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[0].Status != journal.StatusFailed {
		t.Fatalf("unexpected list: %+v", list)
	}
	if string(list[0].Params) != `{"amount":"1"}` || list[0].Content != nil {
		t.Fatalf("unexpected json columns: %+v", list[0])
	}
	if string(list[1].Content) != `{"chain":"arbitrum"}` {
		t.Fatalf("unexpected content: %s", list[1].Content)
	}
}

func TestJournalRepositoryQueryError(t *testing.T) {
	t.Parallel()

	db, driver := newMockDB(t, []mockOperation{
		{typ: opQuery, query: selectEntriesSQL, err: fmt.Errorf("boom")},
	})
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &JournalRepository{db: db}
	if _, err := repo.ListLatest(context.Background(), 5); err == nil {
		t.Fatalf("expected query error")
	}
}

func TestJournalRepositoryRunMigrations(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(createMigrationTableSQL, mockResult{}),
		queryOp(selectMigrationsSQL, mockRowsData{
			columns: []string{"version", "checksum"},
			values:  [][]driver.Value{{"0001", migrationChecksum("0001_create_action_journal.sql")}},
		}),
		beginOp(),
		execOp(readMigrationStatement("0002_index_action_journal_tx_hash.sql"), mockResult{}),
		execOp(insertMigrationSQL, mockResult{rowsAffected: 1}),
		commitOp(),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &JournalRepository{db: db}
	if err := repo.runMigrations(context.Background()); err != nil {
		t.Fatalf("run migrations failed: %v", err)
	}
}

func TestJournalRepositoryMigrationChecksumMismatch(t *testing.T) {
	t.Parallel()

	ops := []mockOperation{
		execOp(createMigrationTableSQL, mockResult{}),
		queryOp(selectMigrationsSQL, mockRowsData{
			columns: []string{"version", "checksum"},
			values:  [][]driver.Value{{"0001", "stale"}},
		}),
	}
	db, driver := newMockDB(t, ops)
	defer driver.assertConsumed(t)
	defer db.Close()

	repo := &JournalRepository{db: db}
	err := repo.runMigrations(context.Background())
	if err == nil || !strings.Contains(err.Error(), "0001_create_action_journal.sql") {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestMigrationFilesAreOrdered(t *testing.T) {
	files, err := loadMigrationFiles()
	if err != nil {
		t.Fatalf("load migrations failed: %v", err)
	}
	if len(files) != 2 || files[0].version != "0001" || files[1].version != "0002" {
		t.Fatalf("unexpected migrations: %+v", files)
	}
	if len(files[0].checksum) != 64 {
		t.Fatalf("unexpected checksum %q", files[0].checksum)
	}
}

func TestSplitSQLStatementsSkipsComments(t *testing.T) {
	stmts := splitSQLStatements("-- header; not a statement\nCREATE TABLE a (id INT);\n\n-- trailing\nDROP TABLE b;")
	if len(stmts) != 2 || stmts[0] != "CREATE TABLE a (id INT)" || stmts[1] != "DROP TABLE b" {
		t.Fatalf("unexpected statements: %q", stmts)
	}
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("user:pass@tcp(localhost:3306)/arbitrum")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("parseTime not forced: %s", dsn)
	}
	if _, err := normalizeDSN(""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
	if _, err := normalizeDSN("not a dsn"); err == nil {
		t.Fatalf("expected error for malformed dsn")
	}
}

func migrationChecksum(name string) string {
	content, err := fs.ReadFile(embeddedMigrations, name)
	if err != nil {
		panic(fmt.Sprintf("failed to read migration: %v", err))
	}
	return checksum(content)
}

func readMigrationStatement(name string) string {
	content, err := fs.ReadFile(embeddedMigrations, name)
	if err != nil {
		panic(fmt.Sprintf("failed to read migration: %v", err))
	}
	statements := splitSQLStatements(string(content))
	if len(statements) == 0 {
		panic("no statements in migration")
	}
	return statements[0]
}

type operationType int

const (
	opExec operationType = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

type mockOperation struct {
	typ    operationType
	query  string
	result mockResult
	rows   mockRowsData
	err    error
}

type mockResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r mockResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type mockRowsData struct {
	columns []string
	values  [][]driver.Value
}

type queueDriver struct {
	ops []mockOperation
	idx int32
}

var driverSeq atomic.Int32

func newMockDB(t *testing.T, ops []mockOperation) (*sql.DB, *queueDriver) {
	t.Helper()

	drv := &queueDriver{ops: ops}
	name := fmt.Sprintf("mock-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open mock db failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, drv
}

func execOp(query string, result mockResult) mockOperation {
	return mockOperation{typ: opExec, query: query, result: result}
}

func queryOp(query string, rows mockRowsData) mockOperation {
	return mockOperation{typ: opQuery, query: query, rows: rows}
}

func beginOp() mockOperation { return mockOperation{typ: opBegin} }

func commitOp() mockOperation { return mockOperation{typ: opCommit} }

func (d *queueDriver) assertConsumed(t *testing.T) {
	t.Helper()

	if int(atomic.LoadInt32(&d.idx)) != len(d.ops) {
		t.Fatalf("not all operations consumed: %d/%d", atomic.LoadInt32(&d.idx), len(d.ops))
	}
}

func (d *queueDriver) Open(name string) (driver.Conn, error) {
	return &mockConn{driver: d}, nil
}

type mockConn struct {
	driver *queueDriver
}

func (c *mockConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *mockConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	op, err := c.next(opBegin, "")
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockTx{driver: c.driver}, nil
}

func (c *mockConn) Exec(query string, args []driver.Value) (driver.Result, error) {
	return c.ExecContext(context.Background(), query, named(args))
}

func (c *mockConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	op, err := c.next(opExec, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *mockConn) Query(query string, args []driver.Value) (driver.Rows, error) {
	return c.QueryContext(context.Background(), query, named(args))
}

func (c *mockConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	op, err := c.next(opQuery, query)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &mockRows{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *mockConn) Ping(ctx context.Context) error { return nil }

func (c *mockConn) next(expected operationType, query string) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&c.driver.idx))
	if idx >= len(c.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &c.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&c.driver.idx, 1)
	if op.query != "" {
		expectedSQL := normalizeSQL(op.query)
		actualSQL := normalizeSQL(query)
		if expectedSQL != actualSQL {
			return nil, fmt.Errorf("unexpected query. want %q got %q", expectedSQL, actualSQL)
		}
	}
	return op, nil
}

type mockTx struct {
	driver *queueDriver
}

func (t *mockTx) Commit() error {
	op, err := t.next(opCommit)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) Rollback() error {
	op, err := t.next(opRollback)
	if err != nil {
		return err
	}
	return op.err
}

func (t *mockTx) next(expected operationType) (*mockOperation, error) {
	idx := int(atomic.LoadInt32(&t.driver.idx))
	if idx >= len(t.driver.ops) {
		return nil, fmt.Errorf("unexpected operation: %v", expected)
	}
	op := &t.driver.ops[idx]
	if op.typ != expected {
		return nil, fmt.Errorf("expected operation %v, got %v", expected, op.typ)
	}
	atomic.AddInt32(&t.driver.idx, 1)
	return op, nil
}

type mockRows struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *mockRows) Columns() []string { return r.columns }
func (r *mockRows) Close() error      { return nil }

func (r *mockRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func named(args []driver.Value) []driver.NamedValue {
	namedArgs := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		namedArgs[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return namedArgs
}

func normalizeSQL(query string) string {
	fields := strings.Fields(query)
	return strings.Join(fields, " ")
}
