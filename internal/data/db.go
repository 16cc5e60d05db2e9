package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// sqlite connection options, applied to every pooled connection
const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"

// OpenDB opens the bot database and creates its schema
func OpenDB(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS triggers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pattern TEXT NOT NULL,
			match_type TEXT NOT NULL,
			response TEXT NOT NULL,
			use_action INTEGER NOT NULL DEFAULT 0,
			author TEXT,
			created_at INTEGER
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create triggers table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_triggers_pattern ON triggers(pattern)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_triggers_match_type ON triggers(match_type)`)

	// Full-text index over trigger text. Tokens are word runs plus ':;=' so
	// emoticons like ':3' and ';_;' survive as terms.
	_, err = db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS triggers_fts USING fts5(
			pattern,
			content='triggers',
			content_rowid='id',
			tokenize="unicode61 remove_diacritics 0 tokenchars '_:;='"
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create triggers_fts table: %w", err)
	}

	// Term dictionary used for edit-distance expansion
	_, err = db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS triggers_vocab USING fts5vocab(triggers_fts, 'row')`)
	if err != nil {
		return fmt.Errorf("failed to create triggers_vocab table: %w", err)
	}

	// Create triggers for FTS sync
	_, err = db.Exec(`
		CREATE TRIGGER IF NOT EXISTS triggers_ai AFTER INSERT ON triggers BEGIN
			INSERT INTO triggers_fts(rowid, pattern) VALUES (new.id, new.pattern);
		END
	`)
	if err != nil {
		return fmt.Errorf("failed to create insert trigger: %w", err)
	}
	_, err = db.Exec(`
		CREATE TRIGGER IF NOT EXISTS triggers_ad AFTER DELETE ON triggers BEGIN
			INSERT INTO triggers_fts(triggers_fts, rowid, pattern) VALUES ('delete', old.id, old.pattern);
		END
	`)
	if err != nil {
		return fmt.Errorf("failed to create delete trigger: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}
