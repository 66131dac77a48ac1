package parser

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverMariaDB = "mysql"
	DriverSQLite  = "sqlite3"

	DefaultTable = "of_rules"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLSource loads rule lines from a table with an integer "id" column that
// orders the rows, a text column "rule" and a "ruleset" column used when a
// ruleset filter is set.
type SQLSource struct {
	db      *sql.DB
	driver  string
	table   string
	ruleset string
}

func NewSQLSource(driver, dsn, table, ruleset string) (*SQLSource, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLSource{
		db:      db,
		driver:  driver,
		table:   table,
		ruleset: ruleset,
	}, nil
}

func (s *SQLSource) Close() {
	s.db.Close()
}

// Load feeds every stored rule line to p.
func (s *SQLSource) Load(ctx context.Context, p *OpenFlowParser) error {
	query := fmt.Sprintf("SELECT rule FROM %s", s.table)
	var args []any
	if s.ruleset != "" {
		query += " WHERE ruleset = ?"
		args = append(args, s.ruleset)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var line sql.NullString
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("failed to scan rule: %w", err)
		}
		p.ParseLine(line.String)
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}
	slog.Debug("Loaded rule rows", "driver", s.driver, "table", s.table, "rows", count)
	return nil
}
