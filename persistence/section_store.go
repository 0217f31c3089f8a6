package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.lsp.dev/protocol"
)

// SectionRecord is the extraction result for one document version.
type SectionRecord struct {
	URI         protocol.DocumentURI `json:"uri"`
	Language    string               `json:"language"`
	ContentHash string               `json:"content_hash"`
	Sections    []protocol.Range     `json:"sections"`
	IndexedAt   time.Time            `json:"indexed_at"`
}

// SectionStore persists extracted sections between runs.
type SectionStore interface {
	Save(ctx context.Context, record *SectionRecord) error
	// Lookup returns the record for uri only when it was stored for contentHash.
	Lookup(ctx context.Context, uri protocol.DocumentURI, contentHash string) (*SectionRecord, bool, error)
	List(ctx context.Context) ([]SectionRecord, error)
	Delete(ctx context.Context, uri protocol.DocumentURI) error
	Close() error
}

// SQLiteSectionStore keeps section records in a SQLite database.
type SQLiteSectionStore struct {
	db *sql.DB
}

// NewSQLiteSectionStore opens/creates the database at dbPath.
func NewSQLiteSectionStore(dbPath string) (*SQLiteSectionStore, error) {
	if dbPath == "" {
		return nil, errors.New("section store path required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteSectionStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteSectionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		uri TEXT PRIMARY KEY,
		language TEXT,
		content_hash TEXT NOT NULL,
		section_count INTEGER,
		indexed_at TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS sections (
		uri TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		start_line INTEGER,
		start_col INTEGER,
		end_line INTEGER,
		end_col INTEGER,
		PRIMARY KEY(uri, ordinal),
		FOREIGN KEY(uri) REFERENCES documents(uri) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *SQLiteSectionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces any earlier record for the same URI.
func (s *SQLiteSectionStore) Save(ctx context.Context, record *SectionRecord) error {
	if record == nil {
		return errors.New("section record required")
	}
	if record.URI == "" {
		return errors.New("section record uri required")
	}
	if record.IndexedAt.IsZero() {
		record.IndexedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := saveRecord(ctx, tx, record); err != nil {
		tx.Rollback()
		return fmt.Errorf("save sections for %s: %w", record.URI, err)
	}
	return tx.Commit()
}

func saveRecord(ctx context.Context, tx *sql.Tx, record *SectionRecord) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE uri = ?`, record.URI); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
	INSERT INTO documents (uri, language, content_hash, section_count, indexed_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(uri) DO UPDATE SET
		language=excluded.language,
		content_hash=excluded.content_hash,
		section_count=excluded.section_count,
		indexed_at=excluded.indexed_at
	`, record.URI, record.Language, record.ContentHash, len(record.Sections), record.IndexedAt); err != nil {
		return err
	}
	if len(record.Sections) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sections (
		uri, ordinal, start_line, start_col, end_line, end_col
	) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range record.Sections {
		if _, err := stmt.ExecContext(ctx, record.URI, i,
			r.Start.Line, r.Start.Character, r.End.Line, r.End.Character); err != nil {
			return err
		}
	}
	return nil
}

// Lookup implements SectionStore.
func (s *SQLiteSectionStore) Lookup(ctx context.Context, uri protocol.DocumentURI, contentHash string) (*SectionRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT uri, language, content_hash, indexed_at
		FROM documents WHERE uri = ? AND content_hash = ?`, uri, contentHash)
	record, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if record.Sections, err = s.sectionsFor(ctx, record.URI); err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// List returns every record ordered by URI.
func (s *SQLiteSectionStore) List(ctx context.Context) ([]SectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uri, language, content_hash, indexed_at
		FROM documents ORDER BY uri`)
	if err != nil {
		return nil, err
	}
	var records []SectionRecord
	for rows.Next() {
		record, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range records {
		if records[i].Sections, err = s.sectionsFor(ctx, records[i].URI); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Delete removes the record and its sections.
func (s *SQLiteSectionStore) Delete(ctx context.Context, uri protocol.DocumentURI) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE uri = ?`, uri)
	return err
}

func (s *SQLiteSectionStore) sectionsFor(ctx context.Context, uri protocol.DocumentURI) ([]protocol.Range, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT start_line, start_col, end_line, end_col
		FROM sections WHERE uri = ? ORDER BY ordinal`, uri)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sections := []protocol.Range{}
	for rows.Next() {
		var r protocol.Range
		if err := rows.Scan(&r.Start.Line, &r.Start.Character, &r.End.Line, &r.End.Character); err != nil {
			return nil, err
		}
		sections = append(sections, r)
	}
	return sections, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*SectionRecord, error) {
	var (
		record   SectionRecord
		language sql.NullString
		indexed  sql.NullTime
	)
	if err := row.Scan(&record.URI, &language, &record.ContentHash, &indexed); err != nil {
		return nil, err
	}
	record.Language = language.String
	if indexed.Valid {
		record.IndexedAt = indexed.Time
	}
	return &record, nil
}
