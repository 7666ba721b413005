package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteSink keeps documents and the link graph in a single database file.
// Rows carry the run id so one file can hold several crawls.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

func OpenSQLite(ctx context.Context, path, runID string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	s := &SQLiteSink{db: db, runID: runID}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		doc_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		headers TEXT,
		text TEXT,
		wave INTEGER,
		score REAL,
		crawled_at DATETIME,
		UNIQUE(run_id, url)
	);

	CREATE TABLE IF NOT EXISTS raw_html (
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		html TEXT,
		PRIMARY KEY(run_id, url)
	);

	-- kind is 'out' or 'in'
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		url TEXT NOT NULL,
		target TEXT NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_links_url ON links(run_id, kind, url);

	CREATE TABLE IF NOT EXISTS urls (
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		crawled INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY(run_id, url)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteSink) WriteDocument(ctx context.Context, doc Document) error {
	headers, err := json.Marshal(doc.Header)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO documents (run_id, doc_id, url, title, headers, text, wave, score, crawled_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		doc_id = excluded.doc_id,
		title = excluded.title,
		headers = excluded.headers,
		text = excluded.text`,
		s.runID, doc.ID, doc.URL, doc.Title, string(headers), doc.Text, doc.Wave, doc.Score, doc.CrawledAt)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.URL, err)
	}
	return nil
}

func (s *SQLiteSink) WriteRawHTML(ctx context.Context, page RawPage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO raw_html (run_id, url, html) VALUES (?, ?, ?)`,
		s.runID, page.URL, page.HTML)
	if err != nil {
		return fmt.Errorf("insert raw html %s: %w", page.URL, err)
	}
	return nil
}

func (s *SQLiteSink) WriteOutLinks(ctx context.Context, links LinkSet) error {
	return s.insertLinks(ctx, "out", []LinkSet{links})
}

func (s *SQLiteSink) WriteInLinks(ctx context.Context, sets []LinkSet) error {
	return s.insertLinks(ctx, "in", sets)
}

func (s *SQLiteSink) WriteCrawled(ctx context.Context, urls []string) error {
	return s.upsertURLs(ctx, urls, `
	INSERT INTO urls (run_id, url, crawled) VALUES (?, ?, 1)
	ON CONFLICT(run_id, url) DO UPDATE SET crawled = 1`)
}

func (s *SQLiteSink) WriteDiscovered(ctx context.Context, urls []string) error {
	return s.upsertURLs(ctx, urls, `
	INSERT INTO urls (run_id, url, crawled) VALUES (?, ?, 0)
	ON CONFLICT(run_id, url) DO NOTHING`)
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) insertLinks(ctx context.Context, kind string, sets []LinkSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO links (run_id, kind, url, target, position) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, set := range sets {
		for i, target := range set.Links {
			if _, err := stmt.ExecContext(ctx, s.runID, kind, set.URL, target, i); err != nil {
				return fmt.Errorf("insert %s-link %s: %w", kind, set.URL, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLiteSink) upsertURLs(ctx context.Context, urls []string, query string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, u := range urls {
		if _, err := stmt.ExecContext(ctx, s.runID, u); err != nil {
			return fmt.Errorf("insert url %s: %w", u, err)
		}
	}
	return tx.Commit()
}

// OutLinks returns the recorded out-links of url in document order.
func (s *SQLiteSink) OutLinks(ctx context.Context, url string) ([]string, error) {
	return s.links(ctx, "out", url)
}

// InLinks returns the recorded in-links of url.
func (s *SQLiteSink) InLinks(ctx context.Context, url string) ([]string, error) {
	return s.links(ctx, "in", url)
}

func (s *SQLiteSink) links(ctx context.Context, kind, url string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target FROM links WHERE run_id = ? AND kind = ? AND url = ? ORDER BY position`,
		s.runID, kind, url)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountURLs returns (crawled, discovered) for the run.
func (s *SQLiteSink) CountURLs(ctx context.Context) (int, int, error) {
	var crawled, total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(crawled), 0), COUNT(*) FROM urls WHERE run_id = ?`, s.runID).Scan(&crawled, &total)
	return crawled, total, err
}
