package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archifc/internal/converter/models"
)

const migrations = "../../../migrations/001_init_documents.sql"

func newRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "converter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := New(db)
	require.NoError(t, repo.Init(context.Background(), migrations))
	return repo
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Ping(ctx))

	older := models.Document{
		ID: uuid.NewString(), Name: "house", SourceFile: "house.ifc", Backend: "internal",
		Objects: 5, Skipped: 3, CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	newer := models.Document{
		ID: uuid.NewString(), Name: "office", SourceFile: "office.ifc", Backend: "internal",
		Objects: 2, Duplicates: 1, CreatedAt: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
	}
	diags := []models.Diagnostic{
		{EntityID: 41, Type: "IfcBuildingElementProxy", Message: "no geometry"},
		{EntityID: 7, Message: "cyclic relation"},
	}
	require.NoError(t, repo.Create(ctx, older, []byte(`{"name":"house"}`), diags))
	require.NoError(t, repo.Create(ctx, newer, []byte(`{"name":"office"}`), nil))

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetByID(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, older, *got)
	})

	t.Run("list newest first", func(t *testing.T) {
		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, older.ID, list[1].ID)
	})

	t.Run("scene and diagnostics", func(t *testing.T) {
		scene, err := repo.Scene(ctx, newer.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"office"}`, string(scene))

		got, err := repo.Diagnostics(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, diags, got)

		none, err := repo.Diagnostics(ctx, newer.ID)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("duplicate id", func(t *testing.T) {
		assert.Error(t, repo.Create(ctx, older, []byte(`{}`), nil))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, older.ID))
		_, err := repo.GetByID(ctx, older.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, older.ID), ErrNotFound)

		left, err := repo.Diagnostics(ctx, older.ID)
		require.NoError(t, err)
		assert.Empty(t, left)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.Scene(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInitErrors(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer db.Close()
	assert.Error(t, New(db).Init(context.Background(), "testdata/missing.sql"))
}
