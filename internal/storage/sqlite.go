package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/moodrelay/internal/conversation"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryDSN opens a private in-memory database that lives as long as the store.
const MemoryDSN = ":memory:"

// SQLiteStore keeps histories in a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	maxRecords int
}

var _ conversation.Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) a SQLite database at dsn and runs pending
// migrations. Pass MemoryDSN for a database that disappears with the process.
func OpenSQLite(dsn string, maxRecords int) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	if dsn != MemoryDSN && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: avoids "database is locked" and keeps a :memory: database
	// alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, maxRecords: maxRecords}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that haven't been run yet.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

func (s *SQLiteStore) History(ctx context.Context, userID string) ([]conversation.Interaction, bool, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE user_id = ?", userID).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("looking up user: %w", err)
	}
	if exists == 0 {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, role, content, record_id, recorded_at, user_message, emotion_score
		FROM interactions WHERE user_id = ? ORDER BY seq ASC`, userID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	history := []conversation.Interaction{}
	for rows.Next() {
		var (
			i          conversation.Interaction
			kind       string
			recordedAt string
		)
		if err := rows.Scan(&kind, &i.Role, &i.Content, &i.ID, &recordedAt, &i.UserMessage, &i.EmotionScore); err != nil {
			return nil, false, err
		}
		i.Kind = conversation.Kind(kind)
		if recordedAt != "" {
			t, err := time.Parse(conversation.TimestampLayout, recordedAt)
			if err != nil {
				return nil, false, fmt.Errorf("parsing recorded_at: %w", err)
			}
			i.Timestamp = t
		}
		history = append(history, i)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return history, true, nil
}

func (s *SQLiteStore) Append(ctx context.Context, userID string, records ...conversation.Interaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (user_id, created_at) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING`,
		userID, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	for _, r := range records {
		var recordedAt string
		if !r.Timestamp.IsZero() {
			recordedAt = r.Timestamp.Format(conversation.TimestampLayout)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO interactions (user_id, kind, role, content, record_id, recorded_at, user_message, emotion_score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, string(r.Kind), r.Role, r.Content, r.ID, recordedAt, r.UserMessage, r.EmotionScore,
		); err != nil {
			return fmt.Errorf("inserting interaction: %w", err)
		}
	}

	if s.maxRecords > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM interactions WHERE user_id = ? AND seq NOT IN (
				SELECT seq FROM interactions WHERE user_id = ? ORDER BY seq DESC LIMIT ?
			)`, userID, userID, s.maxRecords,
		); err != nil {
			return fmt.Errorf("trimming history: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Users(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
