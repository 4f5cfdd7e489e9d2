// Package store persists scenario verdicts to a SQL database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres

	"api-path-tester/internal/config"
	"api-path-tester/internal/scenario"
)

// Supported dialects, named after their database/sql driver
const (
	DialectPostgres  = "postgres"
	DialectMySQL     = "mysql"
	DialectSQLServer = "sqlserver"
)

var columns = []string{
	"run_id", "suite_id", "description", "kind", "path", "use_invalid_data",
	"expected", "actual", "matched", "reason", "duration_ms", "details", "created_at",
}

// VerdictStore writes scenario outcomes to the scenario_verdicts table
type VerdictStore struct {
	db      *sql.DB
	dialect string
}

// DSN builds the driver connection string for the configured database
func DSN(cfg config.StoreConfig) (string, error) {
	switch cfg.Type {
	case DialectPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database), nil
	case DialectMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database), nil
	case DialectSQLServer:
		return fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database), nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Open connects to the configured database and checks the connection
func Open(ctx context.Context, cfg config.StoreConfig) (*VerdictStore, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Type, dsn)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}

	return New(db, cfg.Type)
}

// New wraps an open database handle
func New(db *sql.DB, dialect string) (*VerdictStore, error) {
	switch dialect {
	case DialectPostgres, DialectMySQL, DialectSQLServer:
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dialect)
	}
	return &VerdictStore{db: db, dialect: dialect}, nil
}

// Close closes the database handle
func (s *VerdictStore) Close() error {
	return s.db.Close()
}

// Migrate creates the scenario_verdicts table if it does not exist
func (s *VerdictStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("failed to create scenario_verdicts table: %w", err)
	}
	return nil
}

// Save inserts a single outcome
func (s *VerdictStore) Save(ctx context.Context, suiteID string, outcome scenario.Outcome) error {
	args, err := rowArgs(suiteID, outcome)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.insertSQL(), args...); err != nil {
		return fmt.Errorf("failed to save verdict %s: %w", outcome.RunID, err)
	}
	return nil
}

// SaveAll inserts every outcome of a suite in one transaction
func (s *VerdictStore) SaveAll(ctx context.Context, suiteID string, outcomes []scenario.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, outcome := range outcomes {
		args, err := rowArgs(suiteID, outcome)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to save verdict %s: %w", outcome.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit verdicts: %w", err)
	}
	return nil
}

func rowArgs(suiteID string, o scenario.Outcome) ([]interface{}, error) {
	details, err := json.Marshal(o.Verdict.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step details: %w", err)
	}
	return []interface{}{
		o.RunID,
		suiteID,
		o.Scenario.Description,
		string(o.Scenario.Kind),
		o.Scenario.Path.String(),
		o.Scenario.UseInvalidData,
		string(o.Scenario.Expected),
		string(o.Verdict.Status),
		o.Matched(),
		o.Verdict.Reason,
		o.Duration.Milliseconds(),
		string(details),
		time.Now().UTC(),
	}, nil
}

func (s *VerdictStore) placeholder(n int) string {
	switch s.dialect {
	case DialectPostgres:
		return fmt.Sprintf("$%d", n)
	case DialectSQLServer:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

func (s *VerdictStore) insertSQL() string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = s.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO scenario_verdicts (%s) VALUES (%s)",
		strings.Join(columns, ", "), strings.Join(placeholders, ", "))
}

func (s *VerdictStore) createTableSQL() string {
	text, boolean, timestamp := "TEXT", "BOOLEAN", "TIMESTAMP"
	switch s.dialect {
	case DialectSQLServer:
		text, boolean, timestamp = "NVARCHAR(MAX)", "BIT", "DATETIME2"
	case DialectMySQL:
		timestamp = "DATETIME"
	}

	body := fmt.Sprintf(`scenario_verdicts (
	run_id VARCHAR(36) PRIMARY KEY,
	suite_id VARCHAR(36) NOT NULL,
	description %[1]s NOT NULL,
	kind VARCHAR(32) NOT NULL,
	path %[1]s NOT NULL,
	use_invalid_data %[2]s NOT NULL,
	expected VARCHAR(16) NOT NULL,
	actual VARCHAR(16) NOT NULL,
	matched %[2]s NOT NULL,
	reason %[1]s,
	duration_ms BIGINT NOT NULL,
	details %[1]s,
	created_at %[3]s NOT NULL
)`, text, boolean, timestamp)

	if s.dialect == DialectSQLServer {
		return "IF OBJECT_ID(N'scenario_verdicts', N'U') IS NULL CREATE TABLE " + body
	}
	return "CREATE TABLE IF NOT EXISTS " + body
}
