package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// InitDB initializes the database connection. It takes the database path as input.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open the SQLite database. It will be created if it doesn't exist.
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ping the database to verify the connection.
	if err = db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close() // Close the connection if table creation fails
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Println("Successfully connected to the database at", dbPath)
	return db, nil
}

// createTables creates the hash tables if they don't exist.
func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS image_hashes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            guild_id INTEGER NOT NULL,
            channel_id INTEGER NOT NULL,
            message_id INTEGER NOT NULL,
            attachment_id INTEGER NOT NULL DEFAULT 0,
            hash INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS hash_channels (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            guild_id INTEGER NOT NULL,
            channel_id INTEGER NOT NULL,
            reaction_limit INTEGER NOT NULL DEFAULT 5,
            UNIQUE(guild_id, channel_id)
        );`,
		`CREATE TABLE IF NOT EXISTS hash_config (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        );`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	// Indexes back the exact-hash fast path and the delete-by-message path.
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_channel_hash ON image_hashes(guild_id, channel_id, hash);",
		"CREATE INDEX IF NOT EXISTS idx_guild_message ON image_hashes(guild_id, message_id);",
		"CREATE INDEX IF NOT EXISTS idx_guild_attachment ON image_hashes(guild_id, attachment_id);",
	}

	for _, indexQuery := range indexes {
		if _, err := db.Exec(indexQuery); err != nil {
			log.Printf("Warning: failed to create index: %v", err)
		}
	}

	return nil
}
