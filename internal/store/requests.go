package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MaxLoggedResponse is how much of a response body is kept per request.
const MaxLoggedResponse = 1000

type RequestLog struct {
	ID         string `json:"id"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	IP         string `json:"ip"`
	CreatedAt  string `json:"created_at"`
	MSEmail    string `json:"ms_email,omitempty"`
	Response   string `json:"response"`
}

// LogRequest records entry, filling ID and CreatedAt when empty.
func (s *Store) LogRequest(ctx context.Context, entry *RequestLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = s.now().Format(timeLayout)
	}
	if len(entry.Response) > MaxLoggedResponse {
		entry.Response = entry.Response[:MaxLoggedResponse]
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_logs (id, method, path, status_code, ip, created_at, ms_email, response)
		 VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)`,
		entry.ID, entry.Method, entry.Path, entry.StatusCode, entry.IP, entry.CreatedAt, entry.MSEmail, entry.Response)
	return errors.Wrap(err, "inserting request log")
}

// RecentRequests returns up to limit entries, newest first.
func (s *Store) RecentRequests(ctx context.Context, limit int) ([]RequestLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, path, status_code, ip, created_at, ms_email, response
		 FROM request_logs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying request logs")
	}
	defer rows.Close()

	var out []RequestLog
	for rows.Next() {
		var r RequestLog
		var email sql.NullString
		if err := rows.Scan(&r.ID, &r.Method, &r.Path, &r.StatusCode, &r.IP, &r.CreatedAt, &email, &r.Response); err != nil {
			return nil, errors.Wrap(err, "scanning request log")
		}
		r.MSEmail = email.String
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterating request logs")
}
