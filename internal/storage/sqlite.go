package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kamoku/internal/keyword"
	"github.com/hyperjump/kamoku/internal/models"
)

// catalogVersion changes whenever the catalog schema does.
const catalogVersion = 1

// Manifest describes the snapshot a catalog belongs to.
type Manifest struct {
	Version       int       `json:"version"`
	Fingerprint   string    `json:"fingerprint"`
	Size          int       `json:"size"`
	Dimensions    int       `json:"dimensions"`
	Embedder      string    `json:"embedder"`
	SemanticIndex string    `json:"semantic_index"`
	LexicalIndex  string    `json:"lexical_index"`
	BuildID       string    `json:"build_id"`
	BuiltAt       time.Time `json:"built_at"`
}

// Catalog is the SQLite side of a snapshot: manifest, course metadata in
// record order and BM25 statistics.
type Catalog struct {
	db *sql.DB
}

// createCatalog creates a new catalog database at path, which must not exist.
func createCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// OpenCatalog opens an existing catalog read-only. A missing file yields an
// error wrapping os.ErrNotExist.
func OpenCatalog(path string) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &models.StaleArtifactError{Artifact: path, Reason: err.Error()}
	}
	return &Catalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS manifest (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		corpus_size INTEGER NOT NULL,
		dimensions INTEGER NOT NULL,
		embedder TEXT NOT NULL,
		semantic_index TEXT NOT NULL,
		lexical_index TEXT NOT NULL,
		build_id TEXT NOT NULL,
		built_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS courses (
		record_index INTEGER PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		department TEXT NOT NULL,
		description TEXT NOT NULL,
		instructor TEXT NOT NULL,
		meeting_times TEXT NOT NULL,
		prerequisites TEXT NOT NULL,
		source TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_courses_department ON courses(department);

	CREATE TABLE IF NOT EXISTS lexical_docs (
		record_index INTEGER PRIMARY KEY,
		length INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lexical_postings (
		term TEXT NOT NULL,
		record_index INTEGER NOT NULL,
		tf INTEGER NOT NULL,
		PRIMARY KEY (term, record_index)
	) WITHOUT ROWID;
	`
	_, err := db.Exec(schema)
	return err
}

// write stores the whole catalog in one transaction. stats may be nil when
// the lexical backend persists itself.
func (c *Catalog) write(ctx context.Context, m *Manifest, courses []models.Course, stats *keyword.Stats) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO manifest (id, version, fingerprint, corpus_size, dimensions, embedder, semantic_index, lexical_index, build_id, built_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Version, m.Fingerprint, m.Size, m.Dimensions, m.Embedder, m.SemanticIndex, m.LexicalIndex, m.BuildID, m.BuiltAt,
	); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	courseStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO courses (record_index, code, title, department, description, instructor, meeting_times, prerequisites, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer courseStmt.Close()
	for i := range courses {
		cr := &courses[i]
		if _, err := courseStmt.ExecContext(ctx, i, cr.Code, cr.Title, cr.Department, cr.Description,
			cr.Instructor, cr.MeetingTimes, cr.Prerequisites, string(cr.Source)); err != nil {
			return fmt.Errorf("write course %s: %w", cr.Code, err)
		}
	}

	if stats != nil {
		docStmt, err := tx.PrepareContext(ctx, `INSERT INTO lexical_docs (record_index, length) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer docStmt.Close()
		for i, l := range stats.DocLengths {
			if _, err := docStmt.ExecContext(ctx, i, l); err != nil {
				return fmt.Errorf("write lexical doc %d: %w", i, err)
			}
		}
		postStmt, err := tx.PrepareContext(ctx, `INSERT INTO lexical_postings (term, record_index, tf) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer postStmt.Close()
		for term, list := range stats.Postings {
			for _, p := range list {
				if _, err := postStmt.ExecContext(ctx, term, p.Doc, p.TF); err != nil {
					return fmt.Errorf("write posting %q: %w", term, err)
				}
			}
		}
	}
	return tx.Commit()
}

// Manifest returns the catalog manifest.
func (c *Catalog) Manifest(ctx context.Context) (*Manifest, error) {
	var m Manifest
	err := c.db.QueryRowContext(ctx,
		`SELECT version, fingerprint, corpus_size, dimensions, embedder, semantic_index, lexical_index, build_id, built_at
		 FROM manifest WHERE id = 1`,
	).Scan(&m.Version, &m.Fingerprint, &m.Size, &m.Dimensions, &m.Embedder, &m.SemanticIndex, &m.LexicalIndex, &m.BuildID, &m.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.StaleArtifactError{Artifact: "catalog", Reason: "no manifest"}
	}
	if err != nil {
		return nil, &models.StaleArtifactError{Artifact: "catalog", Reason: err.Error()}
	}
	return &m, nil
}

// CountCourses returns the number of course rows.
func (c *Catalog) CountCourses(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&n)
	return n, err
}

// Courses returns every course in record order.
func (c *Catalog) Courses(ctx context.Context) ([]models.Course, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT record_index, code, title, department, description, instructor, meeting_times, prerequisites, source
		 FROM courses ORDER BY record_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		var (
			idx int
			cr  models.Course
			src string
		)
		if err := rows.Scan(&idx, &cr.Code, &cr.Title, &cr.Department, &cr.Description,
			&cr.Instructor, &cr.MeetingTimes, &cr.Prerequisites, &src); err != nil {
			return nil, err
		}
		if idx != len(courses) {
			return nil, &models.StaleArtifactError{Artifact: "catalog", Reason: fmt.Sprintf("record index gap at %d", len(courses))}
		}
		cr.Source = models.Source(src)
		courses = append(courses, cr)
	}
	return courses, rows.Err()
}

// LexicalStats reads the BM25 statistics for a corpus of the given size.
func (c *Catalog) LexicalStats(ctx context.Context, size int) (*keyword.Stats, error) {
	stats := &keyword.Stats{
		DocLengths: make([]int, size),
		Postings:   make(map[string][]keyword.Posting),
	}
	rows, err := c.db.QueryContext(ctx, `SELECT record_index, length FROM lexical_docs ORDER BY record_index`)
	if err != nil {
		return nil, err
	}
	n := 0
	for rows.Next() {
		var idx, length int
		if err := rows.Scan(&idx, &length); err != nil {
			rows.Close()
			return nil, err
		}
		if idx != n || idx >= size {
			rows.Close()
			return nil, &models.StaleArtifactError{Artifact: "lexical index", Reason: fmt.Sprintf("unexpected document row %d", idx)}
		}
		stats.DocLengths[idx] = length
		n++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n != size {
		return nil, &models.StaleArtifactError{Artifact: "lexical index", Reason: fmt.Sprintf("has %d documents, corpus has %d", n, size)}
	}

	rows, err = c.db.QueryContext(ctx, `SELECT term, record_index, tf FROM lexical_postings ORDER BY term, record_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			term string
			p    keyword.Posting
		)
		if err := rows.Scan(&term, &p.Doc, &p.TF); err != nil {
			return nil, err
		}
		stats.Postings[term] = append(stats.Postings[term], p)
	}
	return stats, rows.Err()
}

// finish leaves the file in rollback-journal mode so read-only opens never
// need a WAL index, then closes it.
func (c *Catalog) finish() error {
	if _, err := c.db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		_ = c.db.Close()
		return fmt.Errorf("failed to checkpoint catalog: %w", err)
	}
	return c.db.Close()
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}
