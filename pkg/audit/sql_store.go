package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLStore is an optional Store backend for deployments that already run
// Postgres or SQLite for other state, rather than a bare file. It is never
// constructed unless a project's logging config explicitly names a DSN;
// FileStore remains the default per §4.5.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore opens db (already connected via lib/pq or modernc.org/sqlite)
// and ensures the audit_events table exists.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("audit: sql store migrate: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS audit_events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	role TEXT NOT NULL,
	operation TEXT NOT NULL,
	path TEXT NOT NULL,
	result TEXT NOT NULL,
	reason TEXT,
	rule_triggered TEXT,
	content_hash TEXT,
	prev_hash TEXT
)`)
	if err != nil && s.driver == "postgres" {
		// Postgres has no AUTOINCREMENT; retry with its serial syntax.
		_, err = s.db.Exec(`
CREATE TABLE IF NOT EXISTS audit_events (
	seq SERIAL PRIMARY KEY,
	timestamp TEXT NOT NULL,
	role TEXT NOT NULL,
	operation TEXT NOT NULL,
	path TEXT NOT NULL,
	result TEXT NOT NULL,
	reason TEXT,
	rule_triggered TEXT,
	content_hash TEXT,
	prev_hash TEXT
)`)
	}
	return err
}

func (s *SQLStore) Append(e Event) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_events (timestamp, role, operation, path, result, reason, rule_triggered, content_hash, prev_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		e.Role, e.Operation, e.Path, string(e.Result), e.Reason, e.RuleTriggered, e.ContentHash, e.PrevHash,
	)
	return err
}

func (s *SQLStore) Tail() ([]Event, error) {
	rows, err := s.db.Query(`SELECT timestamp, role, operation, path, result, reason, rule_triggered, content_hash, prev_hash FROM audit_events ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts, reason, rule, contentHash, prevHash sql.NullString
		if err := rows.Scan(&ts, &e.Role, &e.Operation, &e.Path, &e.Result, &reason, &rule, &contentHash, &prevHash); err != nil {
			return nil, err
		}
		e.Reason = reason.String
		e.RuleTriggered = rule.String
		e.ContentHash = contentHash.String
		e.PrevHash = prevHash.String
		if ts.Valid {
			_ = json.Unmarshal([]byte(`"`+ts.String+`"`), &e.Timestamp)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
