package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrate_RejectsUnknownDriver(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	st := New(db, "oracle")
	if err := st.Migrate(context.Background()); err == nil {
		t.Fatal("expected an error for an unsupported driver")
	}
}

// The DDL must stay inside the portable subset all three backends
// accept: MySQL rejects TEXT/BLOB key columns without a prefix length,
// and every backend spells auto-increment differently, so the schema
// may use neither.
func TestSchema_StaysWithinPortableDDLSubset(t *testing.T) {
	for _, stmt := range schemaStatements {
		upper := strings.ToUpper(stmt)
		if strings.Contains(upper, "AUTOINCREMENT") || strings.Contains(upper, "AUTO_INCREMENT") || strings.Contains(upper, "SERIAL") {
			t.Errorf("schema statement uses a dialect-specific identity column:\n%s", stmt)
		}
		for _, line := range strings.Split(stmt, "\n") {
			if strings.Contains(strings.ToUpper(line), "TEXT PRIMARY KEY") {
				t.Errorf("TEXT key column (MySQL error 1170): %s", strings.TrimSpace(line))
			}
		}
	}

	// Composite-key columns must be VARCHAR for the same reason.
	for _, stmt := range schemaStatements {
		upper := strings.ToUpper(stmt)
		start := strings.Index(upper, "PRIMARY KEY (")
		if start < 0 {
			continue
		}
		cols := stmt[start+len("PRIMARY KEY (") : start+strings.Index(upper[start:], ")")]
		for _, col := range strings.Split(cols, ",") {
			col = strings.TrimSpace(col)
			decl := declarationOf(stmt, col)
			if decl == "" {
				t.Errorf("key column %q has no declaration in:\n%s", col, stmt)
				continue
			}
			if !strings.Contains(strings.ToUpper(decl), "VARCHAR") && !strings.Contains(strings.ToUpper(decl), "INTEGER") {
				t.Errorf("key column %q is not VARCHAR/INTEGER: %s", col, decl)
			}
		}
	}
}

func declarationOf(stmt, col string) string {
	for _, line := range strings.Split(stmt, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, col+" ") {
			return trimmed
		}
	}
	return ""
}

func TestRebind_PostgresPlaceholders(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	pg := New(db, "postgres")
	got := pg.rebind("INSERT INTO t (a, b) VALUES (?, ?)")
	want := "INSERT INTO t (a, b) VALUES ($1, $2)"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	lite := New(db, "sqlite3")
	if lite.rebind("SELECT ?") != "SELECT ?" {
		t.Error("sqlite rebind must leave ? placeholders untouched")
	}
}

func TestUpsertQuery_DialectForms(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	cols := []string{"k", "v"}
	update := []string{"v"}

	my := New(db, "mysql").upsertQuery("t", cols, "k", update)
	if !strings.Contains(my, "ON DUPLICATE KEY UPDATE v = VALUES(v)") {
		t.Errorf("mysql upsert = %q, want ON DUPLICATE KEY UPDATE form", my)
	}

	pg := New(db, "postgres").upsertQuery("t", cols, "k", update)
	if !strings.Contains(pg, "ON CONFLICT(k) DO UPDATE SET v = excluded.v") {
		t.Errorf("postgres upsert = %q, want ON CONFLICT form", pg)
	}

	lite := New(db, "sqlite3").upsertQuery("t", cols, "k", update)
	if !strings.Contains(lite, "ON CONFLICT(k) DO UPDATE SET v = excluded.v") {
		t.Errorf("sqlite upsert = %q, want ON CONFLICT form", lite)
	}
}
