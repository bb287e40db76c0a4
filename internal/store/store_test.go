package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestOpenSQLiteInMemory(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	if _, err := st.DB.ExecContext(ctx, "CREATE TABLE t (id TEXT PRIMARY KEY, n INTEGER)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Exec(ctx, st.DB, "INSERT INTO t (id, n) VALUES (?1, ?2)", "a", 1); err != nil {
		t.Fatalf("insert: %v", err)
	}

	row, err := QueryRow(ctx, st.DB, "SELECT id, n FROM t WHERE id = ?1", "a")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if row["id"] != "a" || row["n"] != int64(1) {
		t.Fatalf("row = %v", row)
	}

	if _, err := QueryRow(ctx, st.DB, "SELECT id FROM t WHERE id = ?1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParamBuilders(t *testing.T) {
	pg := (&PostgresDialect{}).NewParamBuilder()
	if ph := pg.Add("x"); ph != "$1" {
		t.Fatalf("pg placeholder = %q", ph)
	}
	if ph := pg.Add("y"); ph != "$2" {
		t.Fatalf("pg placeholder = %q", ph)
	}

	sq := (&SQLiteDialect{}).NewParamBuilder()
	if ph := sq.Add("x"); ph != "?1" {
		t.Fatalf("sqlite placeholder = %q", ph)
	}
	if len(sq.Params()) != 1 || sq.Count() != 1 {
		t.Fatalf("params bookkeeping broken")
	}
}

func TestSQLiteMapError(t *testing.T) {
	d := &SQLiteDialect{}

	err := d.MapError(fmt.Errorf("constraint failed: UNIQUE constraint failed: t.name"))
	if !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("unique: %v", err)
	}
	err = d.MapError(fmt.Errorf("FOREIGN KEY constraint failed"))
	if !errors.Is(err, ErrForeignKeyViolation) {
		t.Fatalf("fk: %v", err)
	}
	plain := fmt.Errorf("disk I/O error")
	if got := d.MapError(plain); got != plain {
		t.Fatalf("unrelated errors must pass through, got %v", got)
	}
}

func TestPostgresMapError(t *testing.T) {
	d := &PostgresDialect{}

	err := d.MapError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}))
	if !errors.Is(err, ErrUniqueViolation) {
		t.Fatalf("unique: %v", err)
	}
	err = d.MapError(&pgconn.PgError{Code: "23503"})
	if !errors.Is(err, ErrForeignKeyViolation) {
		t.Fatalf("fk: %v", err)
	}
	if got := d.MapError(&pgconn.PgError{Code: "42P01"}); errors.Is(got, ErrUniqueViolation) || errors.Is(got, ErrForeignKeyViolation) {
		t.Fatalf("unrelated codes must pass through")
	}
}

func TestNormalizeBooleans(t *testing.T) {
	rows := []map[string]any{
		{"is_active": int64(1), "name": "a", "count": int64(3)},
		{"is_active": int64(0), "name": "b", "count": int64(4)},
	}
	NormalizeBooleans(rows, []string{"is_active"})

	if rows[0]["is_active"] != true || rows[1]["is_active"] != false {
		t.Fatalf("bool fix-up failed: %v", rows)
	}
	if rows[0]["count"] != int64(3) {
		t.Fatalf("non-bool column touched: %v", rows[0])
	}
}

func TestDialectSelection(t *testing.T) {
	if NewDialect("sqlite").Name() != "sqlite" {
		t.Fatalf("expected sqlite dialect")
	}
	if NewDialect("postgres").Name() != "postgres" {
		t.Fatalf("expected postgres dialect")
	}
	// unknown drivers default to postgres
	if NewDialect("").Name() != "postgres" {
		t.Fatalf("expected postgres default")
	}
}
