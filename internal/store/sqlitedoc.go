package store

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// SQLiteDocument stores a named document as one row of the notes table.
type SQLiteDocument struct {
	db   *sql.DB
	name string

	mu     sync.Mutex
	staged *staged
}

// OpenSQLiteDocument opens (creating if needed) the database at path and
// binds the document called name.
func OpenSQLiteDocument(path, name string) (*SQLiteDocument, error) {
	path = ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteDocument{db: db, name: name}, nil
}

func (d *SQLiteDocument) Close() error {
	return d.db.Close()
}

// ReadRaw returns the stored text, or "" when the note has no row yet.
func (d *SQLiteDocument) ReadRaw() (string, error) {
	var text string
	err := d.db.QueryRow("SELECT text FROM notes WHERE name = ?", d.name).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return text, err
}

func (d *SQLiteDocument) WriteRaw(text, previewPlain, previewHTML string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged = &staged{text: text, plain: previewPlain, html: previewHTML}
	return nil
}

func (d *SQLiteDocument) NotifyChanged() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.staged == nil {
		return nil
	}
	_, err := d.db.Exec(`
		INSERT INTO notes (name, text, preview_plain, preview_html, revision, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			text = excluded.text,
			preview_plain = excluded.preview_plain,
			preview_html = excluded.preview_html,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`, d.name, d.staged.text, d.staged.plain, d.staged.html, newULID(), timeNow())
	if err != nil {
		return err
	}
	d.staged = nil
	return nil
}

// Previews returns the previews stored with the last save.
func (d *SQLiteDocument) Previews() (plain, html string, err error) {
	err = d.db.QueryRow("SELECT preview_plain, preview_html FROM notes WHERE name = ?", d.name).Scan(&plain, &html)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	return plain, html, err
}

// Revision returns the revision id of the last save.
func (d *SQLiteDocument) Revision() (string, error) {
	var rev string
	err := d.db.QueryRow("SELECT revision FROM notes WHERE name = ?", d.name).Scan(&rev)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return rev, err
}
