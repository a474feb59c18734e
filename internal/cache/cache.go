// Package cache persists assembled timelines to a local SQLite database so
// a reopened channel session renders immediately while the first fetch is
// in flight. The cache is best-effort: write failures are logged by callers
// and never block the sync path.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"chatsync/internal/migrations"
	"chatsync/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

type Cache struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Cache, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid cache path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close cache file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Cache{db: db, encryptor: enc}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// SaveSnapshot replaces the cached timeline for a channel with the given
// messages. The whole replacement runs in one transaction so readers never
// observe a partial snapshot.
func (c *Cache) SaveSnapshot(ctx context.Context, channelID string, messages []models.Message) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, DeleteSnapshotQuery, channelID); err != nil {
		return fmt.Errorf("failed to clear previous snapshot: %w", err)
	}

	now := time.Now().UTC()
	for _, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message %s: %w", msg.ID, err)
		}
		encrypted, err := c.encryptor.EncryptIfEnabled(string(payload))
		if err != nil {
			return fmt.Errorf("failed to encrypt message %s: %w", msg.ID, err)
		}
		if _, err := tx.ExecContext(ctx, InsertSnapshotRowQuery,
			channelID, msg.ID, msg.CreatedAt.UTC(), encrypted, now); err != nil {
			return fmt.Errorf("failed to insert snapshot row: %w", err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot returns the cached timeline for a channel in ascending
// CreatedAt order. Rows that fail to decode are skipped, not fatal.
func (c *Cache) LoadSnapshot(ctx context.Context, channelID string) ([]models.Message, error) {
	rows, err := c.db.QueryContext(ctx, SelectSnapshotQuery, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		decrypted, err := c.encryptor.DecryptIfEnabled(payload)
		if err != nil {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(decrypted), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CleanupOldChannels drops snapshots that haven't been refreshed within the
// retention window.
func (c *Cache) CleanupOldChannels(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return fmt.Errorf("retention days must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	_, err := c.db.ExecContext(ctx, DeleteStaleSnapshotsQuery, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup stale snapshots: %w", err)
	}
	return nil
}
