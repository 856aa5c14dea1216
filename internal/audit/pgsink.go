package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

var _ Sink = (*PGSink)(nil)

// PGSink persists audit entries to PostgreSQL. It is wired as the store's
// asynchronous sink; the in-memory log remains the source of truth for the
// running process.
type PGSink struct {
	db *sql.DB
}

// NewPGSink wraps an open database handle (pgx stdlib driver).
func NewPGSink(db *sql.DB) *PGSink {
	return &PGSink{db: db}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (s *PGSink) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		create table if not exists audit_log (
			id text primary key,
			ts timestamptz not null,
			user_id text,
			action text not null,
			resource text not null,
			ip text,
			user_agent text,
			success boolean not null,
			details jsonb
		)`)
	return err
}

// Append inserts one entry. Errors are reported to the caller; the store
// decides whether they matter.
func (s *PGSink) Append(ctx context.Context, entry Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into audit_log(id, ts, user_id, action, resource, ip, user_agent, success, details)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.Timestamp, nullable(entry.UserID), string(entry.Action), entry.Resource,
		nullable(entry.IP), nullable(entry.UserAgent), entry.Success, details,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
