package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Postgres backs the entity store and the replication spool with a
// single database. Collections live as whole JSONB documents so a
// replace-all write is one upsert.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres connects and prepares the schema.
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.migrate(); err != nil {
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name       TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS replication_spool (
		id         BIGSERIAL PRIMARY KEY,
		sheet_name TEXT NOT NULL,
		payload    JSONB NOT NULL,
		last_error TEXT NOT NULL DEFAULT '',
		attempts   INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`
	_, err := p.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// List returns the raw JSON array for a collection, "[]" if absent.
func (p *Postgres) List(ctx context.Context, collection string) (json.RawMessage, error) {
	var data []byte
	err := p.db.GetContext(ctx, &data, "SELECT data FROM collections WHERE name = $1", collection)
	if err == sql.ErrNoRows {
		return json.RawMessage("[]"), nil
	}
	if err != nil {
		return nil, &PersistenceError{Collection: collection, Err: err}
	}
	return data, nil
}

// ReplaceAll overwrites one collection in a single upsert.
func (p *Postgres) ReplaceAll(ctx context.Context, collection string, data json.RawMessage) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO collections (name, data, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, []byte(data))
	if err != nil {
		return &PersistenceError{Collection: collection, Err: err}
	}
	return nil
}

// ReplaceMany overwrites several collections in one transaction.
func (p *Postgres) ReplaceMany(ctx context.Context, collections map[string]json.RawMessage) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return &PersistenceError{Collection: "collections", Err: err}
	}
	defer tx.Rollback()

	for name, data := range collections {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO collections (name, data, updated_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
			name, []byte(data))
		if err != nil {
			return &PersistenceError{Collection: name, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Collection: "collections", Err: err}
	}
	return nil
}

// Enqueue appends a spool entry.
func (p *Postgres) Enqueue(ctx context.Context, entry *SpoolEntry) error {
	return p.db.GetContext(ctx, &entry.ID,
		`INSERT INTO replication_spool (sheet_name, payload, last_error, attempts)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		entry.SheetName, []byte(entry.Payload), entry.LastError, entry.Attempts)
}

// Pending returns all spooled entries, oldest first.
func (p *Postgres) Pending(ctx context.Context) ([]SpoolEntry, error) {
	var entries []SpoolEntry
	err := p.db.SelectContext(ctx, &entries,
		"SELECT * FROM replication_spool ORDER BY id")
	return entries, err
}

// Delete removes a delivered entry.
func (p *Postgres) Delete(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM replication_spool WHERE id = $1", id)
	return err
}

// MarkFailed records another failed delivery attempt.
func (p *Postgres) MarkFailed(ctx context.Context, id int64, lastError string) error {
	_, err := p.db.ExecContext(ctx,
		"UPDATE replication_spool SET last_error = $1, attempts = attempts + 1 WHERE id = $2",
		lastError, id)
	return err
}
