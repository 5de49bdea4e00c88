package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/scratch/internal/checksum"
	"github.com/starford/scratch/internal/resource"
	"github.com/starford/scratch/internal/workingcopy"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS backups (
	id         TEXT PRIMARY KEY,
	resource   TEXT NOT NULL,
	type_id    TEXT NOT NULL,
	content    BLOB NOT NULL,
	checksum   TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_backups_resource ON backups(resource);
`

// SQLite stores backups in a single table.
type SQLite struct {
	conn *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("backup: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("backup: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("backup: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Put upserts the backup. Rows whose checksum already matches are left alone.
func (s *SQLite) Put(ctx context.Context, id workingcopy.Identifier, content io.Reader) error {
	data, sum, err := checksum.ReadAll(content)
	if err != nil {
		return fmt.Errorf("backup: put %s: %w", id.Resource, err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO backups (id, resource, type_id, content, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content    = excluded.content,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
		WHERE backups.checksum != excluded.checksum
	`, id.String(), id.Resource.String(), string(id.TypeID), data, sum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("backup: put %s: %w", id.Resource, err)
	}
	return nil
}

// Resolve returns the stored backup for id, or nil when there is none.
func (s *SQLite) Resolve(ctx context.Context, id workingcopy.Identifier) (*workingcopy.Backup, error) {
	var content []byte
	err := s.conn.QueryRowContext(ctx, `SELECT content FROM backups WHERE id = ?`, id.String()).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("backup: resolve %s: %w", id.Resource, err)
	}
	return &workingcopy.Backup{Value: bytes.NewReader(content)}, nil
}

// Discard deletes the row for id.
func (s *SQLite) Discard(ctx context.Context, id workingcopy.Identifier) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM backups WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("backup: discard %s: %w", id.Resource, err)
	}
	return nil
}

// List returns the identities of all stored backups ordered by resource.
func (s *SQLite) List(ctx context.Context) ([]workingcopy.Identifier, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT resource, type_id FROM backups ORDER BY resource`)
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	defer rows.Close()

	var out []workingcopy.Identifier
	for rows.Next() {
		var raw, typeID string
		if err := rows.Scan(&raw, &typeID); err != nil {
			return nil, err
		}
		res, err := resource.Parse(raw)
		if err != nil {
			continue
		}
		out = append(out, workingcopy.Identifier{TypeID: workingcopy.TypeID(typeID), Resource: res})
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
