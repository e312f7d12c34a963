package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"archifc/internal/converter/models"
)

// ============================================================
// SQLite Repository
// ============================================================

var ErrNotFound = errors.New("document not found")

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init запускает миграции.
func (r *Repository) Init(ctx context.Context, migrationsPath string) error {
	if err := r.runMigrations(ctx, migrationsPath); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create сохраняет документ, его scene JSON и диагностику одной транзакцией.
func (r *Repository) Create(ctx context.Context, doc models.Document, scene []byte, diags []models.Diagnostic) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO documents (id, name, source_file, backend, objects, skipped, duplicates, scene, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, doc.ID, doc.Name, doc.SourceFile, doc.Backend, doc.Objects, doc.Skipped, doc.Duplicates,
		string(scene), doc.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	for _, d := range diags {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO diagnostics (document_id, entity_id, type, message)
            VALUES (?, ?, ?, ?)
        `, doc.ID, d.EntityID, d.Type, d.Message)
		if err != nil {
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Repository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, name, source_file, backend, objects, skipped, duplicates, created_at
        FROM documents
        WHERE id = ?
    `, id)
	return scanDocument(row)
}

// List возвращает документы, новые первыми.
func (r *Repository) List(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, name, source_file, backend, objects, skipped, duplicates, created_at
        FROM documents
        ORDER BY created_at DESC, id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *Repository) Scene(ctx context.Context, id string) ([]byte, error) {
	var scene string
	err := r.db.QueryRowContext(ctx, `SELECT scene FROM documents WHERE id = ?`, id).Scan(&scene)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(scene), nil
}

func (r *Repository) Diagnostics(ctx context.Context, id string) ([]models.Diagnostic, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT entity_id, type, message
        FROM diagnostics
        WHERE document_id = ?
        ORDER BY id
    `, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Diagnostic{}
	for rows.Next() {
		var d models.Diagnostic
		if err := rows.Scan(&d.EntityID, &d.Type, &d.Message); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM diagnostics WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("delete diagnostics: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var d models.Document
	var created string
	if err := row.Scan(&d.ID, &d.Name, &d.SourceFile, &d.Backend, &d.Objects, &d.Skipped, &d.Duplicates, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("document %s: created_at: %w", d.ID, err)
	}
	d.CreatedAt = t
	return &d, nil
}

// ============================================================
// Migrations
// ============================================================

func (r *Repository) runMigrations(ctx context.Context, migrationsPath string) error {
	data, err := os.ReadFile(migrationsPath)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// OpenSQLite открывает sqlite по указанному пути.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000&_pragma=foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
