package parser

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

var mariaDSN = "root:static@tcp(127.0.0.1:3306)/classbench"

func seedRules(t *testing.T, db *sql.DB, table string) {
	t.Helper()
	rows := []struct{ ruleset, rule string }{
		{"edge", "nw_proto=6,nw_src=10.0.0.0/8,tp_dst=80"},
		{"edge", "actions=drop"},
		{"core", "nw_proto=17,tp_dst=53"},
		{"edge", "nw_proto=6,nw_dst=192.168.0.0/16"},
	}
	for _, r := range rows {
		if _, err := db.Exec("INSERT INTO "+table+" (ruleset, rule) VALUES (?, ?)", r.ruleset, r.rule); err != nil {
			t.Fatalf("failed to insert rule: %v", err)
		}
	}
}

func TestSQLiteSourceLoadsRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.db")
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE of_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ruleset TEXT NOT NULL,
		rule TEXT NULL
	)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	seedRules(t, db, "of_rules")

	src, err := NewSQLSource(DriverSQLite, path, "", "")
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	defer src.Close()

	p := NewOpenFlowParser(nil)
	if err := src.Load(context.Background(), p); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(p.Rules) != 3 || p.Omitted != 1 {
		t.Fatalf("expected 3 rules and 1 omission, got %d/%d", len(p.Rules), p.Omitted)
	}

	filtered, err := NewSQLSource(DriverSQLite, path, "of_rules", "edge")
	if err != nil {
		t.Fatalf("failed to create filtered source: %v", err)
	}
	defer filtered.Close()

	p = NewOpenFlowParser(nil)
	if err := filtered.Load(context.Background(), p); err != nil {
		t.Fatalf("failed to load filtered: %v", err)
	}
	if len(p.Rules) != 2 {
		t.Fatalf("expected 2 edge rules, got %d", len(p.Rules))
	}
	if p.Rules[0].Protocol() != 6 || p.Rules[1].DstLength() != 16 {
		t.Fatalf("expected rules in id order, got %s / %s", p.Rules[0], p.Rules[1])
	}
}

func TestSQLSourceRejectsBadTableNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.db")
	if _, err := NewSQLSource(DriverSQLite, path, "rules; DROP TABLE x", ""); err == nil {
		t.Errorf("expected error for invalid table name")
	}
}

func TestSQLSourceMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	src, err := NewSQLSource(DriverSQLite, path, "", "")
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	defer src.Close()
	if err := src.Load(context.Background(), NewOpenFlowParser(nil)); err == nil {
		t.Errorf("expected error when the rule table does not exist")
	}
}

func TestSQLSourceRequiresIDColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noid.db")
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE of_rules (ruleset TEXT NOT NULL, rule TEXT NULL)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	seedRules(t, db, "of_rules")

	src, err := NewSQLSource(DriverSQLite, path, "", "")
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	defer src.Close()
	p := NewOpenFlowParser(nil)
	if err := src.Load(context.Background(), p); err == nil {
		t.Fatalf("expected error for a table without an id column")
	}
	if len(p.Rules) != 0 {
		t.Fatalf("expected no rules on failed load, got %d", len(p.Rules))
	}
}

func TestNewSQLSourceErrors(t *testing.T) {
	if _, err := NewSQLSource(DriverMariaDB, "invalid-dsn", "", ""); err == nil {
		t.Errorf("expected error for invalid DSN")
	}
}

func TestMariaDBSourceLoadsRules(t *testing.T) {
	db, err := sql.Open(DriverMariaDB, mariaDSN)
	if err != nil {
		t.Skipf("failed to connect to MariaDB: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("MariaDB not reachable: %v", err)
	}

	db.Exec("DROP TABLE IF EXISTS of_rules")
	if _, err := db.Exec(`CREATE TABLE of_rules (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		ruleset VARCHAR(64) NOT NULL,
		rule LONGTEXT NULL
	)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	seedRules(t, db, "of_rules")

	src, err := NewSQLSource(DriverMariaDB, mariaDSN, "of_rules", "core")
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	defer src.Close()

	p := NewOpenFlowParser(nil)
	if err := src.Load(context.Background(), p); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(p.Rules) != 1 || p.Rules[0].Protocol() != 17 {
		t.Fatalf("expected the single core rule, got %d rules", len(p.Rules))
	}
}
