package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLSink mirrors audit entries to a MySQL table, for installations
// that centralize audit logs across hosts instead of relying on the
// local flat file alone. It is optional: coshell runs fully without one
// configured.
type MySQLSink struct {
	db *sql.DB
}

// NewMySQLSink opens dsn and verifies connectivity with a short-lived
// ping. Callers should Close the sink on shutdown.
func NewMySQLSink(dsn string) (*MySQLSink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open mysql sink: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: mysql sink unreachable: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLSink{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	const stmt = `CREATE TABLE IF NOT EXISTS coshell_audit (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		recorded_at DATETIME NOT NULL,
		correlation_id VARCHAR(64) NOT NULL,
		verdict VARCHAR(16) NOT NULL,
		class VARCHAR(64) NOT NULL,
		reason TEXT NOT NULL,
		command TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("audit: ensure mysql schema: %w", err)
	}
	return nil
}

// Record inserts entry as a row. Errors are the caller's to decide how
// to handle; Record itself never falls back to the local file (that
// remains the always-on path, written independently via Record in
// logger.go).
func (s *MySQLSink) Record(ctx context.Context, entry Entry) error {
	verdict := "allowed"
	if !entry.Allowed {
		verdict = "blocked"
	}
	const stmt = `INSERT INTO coshell_audit
		(recorded_at, correlation_id, verdict, class, reason, command)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, time.Now(), entry.CorrelationID, verdict, entry.Class, entry.Reason, entry.Command)
	if err != nil {
		return fmt.Errorf("audit: insert mysql row: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *MySQLSink) Close() error {
	return s.db.Close()
}
