// Package risingwave submits compiled statements to a live RisingWave
// instance over the Postgres wire protocol. Statements execute strictly
// in compiler order; the first failure aborts the remaining sequence, and
// the already-applied prefix is not rolled back.
package risingwave

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/risingwavelabs/risingwave-pipelines/internal/connector"
)

const defaultPort = 4566

// Params are the destination connection parameters. They come from CLI
// flags, with RISINGWAVE_* environment variables as defaults.
type Params struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ParamsFromEnv reads connection defaults from the environment.
func ParamsFromEnv() Params {
	p := Params{
		Host:     os.Getenv("RISINGWAVE_HOST"),
		Port:     defaultPort,
		Database: os.Getenv("RISINGWAVE_DATABASE"),
		User:     os.Getenv("RISINGWAVE_USER"),
		Password: os.Getenv("RISINGWAVE_PASSWORD"),
	}
	if v := os.Getenv("RISINGWAVE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Port = n
		}
	}
	return p
}

// Missing lists required connection parameters that are still unset.
func (p Params) Missing() []string {
	var missing []string
	if p.Host == "" {
		missing = append(missing, "host")
	}
	if p.Database == "" {
		missing = append(missing, "database")
	}
	if p.User == "" {
		missing = append(missing, "user")
	}
	return missing
}

// DSN renders the key=value connection string for the pgx driver.
func (p Params) DSN() string {
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s sslmode=disable", p.Host, port, p.Database, p.User)
	if p.Password != "" {
		dsn += " password=" + p.Password
	}
	return dsn
}

// SubmissionError wraps a database error for one statement, identified by
// its index in the compiled sequence.
type SubmissionError struct {
	Index     int
	Statement string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("executing statement %d (%s): %v", e.Index, firstLine(e.Statement), e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func firstLine(sql string) string {
	for i, r := range sql {
		if r == '\n' {
			return sql[:i] + " ..."
		}
	}
	return sql
}

// Submit executes statements in order against RisingWave. Connectivity
// failures surface before the first statement; once DDL starts applying
// there are no retries, since later statements depend on earlier objects.
func Submit(ctx context.Context, params Params, stmts []connector.Statement, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("pgx", params.DSN())
	if err != nil {
		return fmt.Errorf("opening RisingWave connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connecting to RisingWave at %s:%d: %w", params.Host, params.Port, err)
	}

	for i, s := range stmts {
		logger.Info("executing statement",
			zap.Int("index", i),
			zap.String("kind", string(s.Kind)),
			zap.String("name", s.Name),
		)
		if _, err := db.ExecContext(ctx, s.SQL); err != nil {
			return &SubmissionError{Index: i, Statement: s.SQL, Err: err}
		}
	}

	logger.Info("all statements applied", zap.Int("count", len(stmts)))
	return nil
}
