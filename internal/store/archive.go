package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/mailspider/internal/model"
)

// FileName is the name of the database file inside the archive directory.
const FileName = "mailspider.db"

var (
	// ErrNotFound is returned when a session is not in the archive.
	ErrNotFound = errors.New("session not found in archive")

	// ErrHarvestRunning is returned when saving a harvest that has not
	// finished. Only terminated sessions are archived.
	ErrHarvestRunning = errors.New("harvest is still running")
)

// Archive stores finished harvests in SQLite.
type Archive struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// path is the path to the SQLite database file.
	path string
}

// Options configures Archive behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default archive options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive in dir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dir string, opts Options) (*Archive, error) {
	path := filepath.Join(dir, FileName)

	var dsn string
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
		dsn = path + "?mode=rwc"
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("archive not found at %s: %w", path, err)
		}
		dsn = path + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	a := &Archive{db: db, path: path}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := a.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return a, nil
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createTables(ctx context.Context) error {
	schema := `
	-- One row per archived session
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		link_count INTEGER NOT NULL DEFAULT 0,
		email_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		harvest_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	-- Emails are duplicated out of harvest_json for searching
	CREATE TABLE IF NOT EXISTS emails (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		address TEXT NOT NULL,
		page TEXT NOT NULL,
		found_at TEXT NOT NULL,
		UNIQUE(session_id, address)
	);

	CREATE INDEX IF NOT EXISTS idx_emails_address ON emails(address);
	`
	_, err := a.db.ExecContext(ctx, schema)
	return err
}

// SaveHarvest stores a finished harvest, replacing any earlier copy of the
// same session.
func (a *Archive) SaveHarvest(ctx context.Context, h *model.Harvest) (err error) {
	if !h.Finished() {
		return ErrHarvestRunning
	}

	harvestJSON, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to serialize harvest: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	s := h.Summary()
	_, err = tx.ExecContext(ctx, `
	INSERT INTO sessions (session_id, seed, started_at, finished_at, status, link_count, email_count, failure_count, harvest_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		seed = excluded.seed,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		status = excluded.status,
		link_count = excluded.link_count,
		email_count = excluded.email_count,
		failure_count = excluded.failure_count,
		harvest_json = excluded.harvest_json
	`,
		s.SessionID,
		s.Seed,
		formatTimestamp(s.StartedAt),
		formatTimestamp(s.FinishedAt),
		string(s.Status),
		s.LinkCount,
		s.EmailCount,
		s.FailureCount,
		string(harvestJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM emails WHERE session_id = ?`, h.SessionID); err != nil {
		return fmt.Errorf("failed to replace emails: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO emails (session_id, address, page, found_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare email insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range h.Emails {
		if _, err = stmt.ExecContext(ctx, h.SessionID, e.Address, e.Page, formatTimestamp(e.FoundAt)); err != nil {
			return fmt.Errorf("failed to save email %s: %w", e.Address, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit harvest: %w", err)
	}
	return nil
}

// GetHarvest loads the harvest of sessionID.
func (a *Archive) GetHarvest(ctx context.Context, sessionID string) (*model.Harvest, error) {
	var harvestJSON string
	err := a.db.QueryRowContext(ctx, `SELECT harvest_json FROM sessions WHERE session_id = ?`, sessionID).Scan(&harvestJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get harvest: %w", err)
	}

	var h model.Harvest
	if err := json.Unmarshal([]byte(harvestJSON), &h); err != nil {
		return nil, fmt.Errorf("failed to parse harvest: %w", err)
	}
	return &h, nil
}

// ListSummaries returns archived sessions, newest first. A limit of 0
// returns all of them.
func (a *Archive) ListSummaries(ctx context.Context, limit int) ([]model.Summary, error) {
	query := `
	SELECT session_id, seed, started_at, finished_at, status, link_count, email_count, failure_count
	FROM sessions
	ORDER BY started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	summaries := make([]model.Summary, 0)
	for rows.Next() {
		var s model.Summary
		var started string
		var finished sql.NullString
		var status string

		if err := rows.Scan(&s.SessionID, &s.Seed, &started, &finished, &status, &s.LinkCount, &s.EmailCount, &s.FailureCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		if finished.Valid {
			s.FinishedAt = parseTimestamp(finished.String)
		}
		s.Status = model.Status(status)
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// EmailHit is an archived email together with the session it came from.
type EmailHit struct {
	model.Email

	SessionID string `json:"session_id"`
	Seed      string `json:"seed"`
}

// SearchEmails returns archived emails whose address contains substr,
// ignoring ASCII case, oldest first. A blank substr returns every email.
func (a *Archive) SearchEmails(ctx context.Context, substr string) ([]EmailHit, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(substr)) + "%"

	rows, err := a.db.QueryContext(ctx, `
	SELECT e.address, e.page, e.found_at, e.session_id, s.seed
	FROM emails e
	JOIN sessions s ON s.session_id = e.session_id
	WHERE e.address LIKE ? ESCAPE '\'
	ORDER BY e.found_at, e.id
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}
	defer rows.Close()

	hits := make([]EmailHit, 0)
	for rows.Next() {
		var hit EmailHit
		var foundAt string
		if err := rows.Scan(&hit.Address, &hit.Page, &foundAt, &hit.SessionID, &hit.Seed); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		hit.FoundAt = parseTimestamp(foundAt)
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// DeleteSession removes a session and its emails.
func (a *Archive) DeleteSession(ctx context.Context, sessionID string) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		err = fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM emails WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete emails: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE wildcards in s.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// storedTimeFormat is RFC 3339 with fixed-width fractional seconds, so
// that text ordering of UTC values matches time ordering.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp stores times in UTC. The zero time is stored as an empty
// string.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimeFormat)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
