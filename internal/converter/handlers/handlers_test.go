package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archifc/internal/common/config"
	"archifc/internal/converter/mapper"
	"archifc/internal/converter/models"
	"archifc/internal/converter/repository"
	"archifc/internal/converter/service"
	"archifc/internal/document"
	"archifc/internal/exporter"
	"archifc/internal/geom"
	"archifc/internal/ifc/schema"
	"archifc/internal/importer"
)

const (
	migrations = "../../../migrations/001_init_documents.sql"
	houseIFC   = "../../importer/testdata/house.ifc"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	return newAppWithStorage(t, t.TempDir())
}

func newAppWithStorage(t *testing.T, storageDir string) *fiber.App {
	t.Helper()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "converter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := repository.New(db)
	require.NoError(t, repo.Init(t.Context(), migrations))

	prefs := config.DefaultPreferences()
	prefs.ForceInternalParser = true
	prefs.SeparateOpenings = true

	h := NewDocumentHandler(repo, service.NewFileStorage(storageDir), prefs,
		importer.Options{LoadSchema: func() (*schema.Schema, error) { return schema.Core(), nil }},
		exporter.Options{Application: "test"})

	app := fiber.New()
	app.Get("/health/live", Liveness)
	app.Get("/health/ready", Readiness(repo))
	app.Get("/docs", APIDocs)
	app.Get("/docs/openapi.yaml", APISpec("../../../docs/converter.openapi.yaml"))
	h.Register(app)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 10 * time.Second})
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func upload(t *testing.T, filename string, data []byte, query string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/import"+query, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, path string, v any) *http.Request {
	data, _ := json.Marshal(v)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	app := newApp(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestDocs(t *testing.T) {
	app := newApp(t)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/docs/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/documents/{id}/plan.svg:")

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/docs", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "/docs/openapi.yaml")
}

func TestImportAndExport(t *testing.T) {
	app := newApp(t)
	house, err := os.ReadFile(houseIFC)
	require.NoError(t, err)

	resp, body := do(t, app, upload(t, "house.ifc", house, "?scene=true"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var imported models.ImportResponse
	require.NoError(t, json.Unmarshal(body, &imported))
	id := imported.Document.ID
	require.NotEmpty(t, id)
	assert.Equal(t, "house", imported.Document.Name)
	assert.Equal(t, "house.ifc", imported.Document.SourceFile)
	assert.Equal(t, "internal", imported.Document.Backend)
	assert.Positive(t, imported.Document.Objects)
	require.NotNil(t, imported.Scene)
	assert.NotEmpty(t, imported.Scene.Floors)

	t.Run("list and get", func(t *testing.T) {
		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/documents", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var docs []models.Document
		require.NoError(t, json.Unmarshal(body, &docs))
		require.Len(t, docs, 1)
		assert.Equal(t, id, docs[0].ID)

		resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got struct {
			Document    models.Document     `json:"document"`
			Diagnostics []models.Diagnostic `json:"diagnostics"`
		}
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, imported.Document.Objects, got.Document.Objects)
		assert.Len(t, got.Diagnostics, len(imported.Diagnostics))
	})

	t.Run("scene and plan", func(t *testing.T) {
		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/documents/"+id+"/scene", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var scene models.Scene
		require.NoError(t, json.Unmarshal(body, &scene))
		assert.Equal(t, len(imported.Scene.Objects), len(scene.Objects))

		resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/documents/"+id+"/plan.svg", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
		assert.Contains(t, string(body), "<polygon")

		resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/documents/"+id+"/plan.svg?floor=Attic", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("export stored document", func(t *testing.T) {
		resp, body := do(t, app, jsonRequest(http.MethodPost, "/export", models.ExportRequest{DocumentID: id}))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Equal(t, "application/x-step", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "house.ifc")
		assert.NotEqual(t, "0", resp.Header.Get("X-Exported-Objects"))
		text := string(body)
		assert.True(t, strings.HasPrefix(text, "ISO-10303-21;"))
		assert.Contains(t, text, "FILE_SCHEMA(('IFC2X3'));")
		assert.Contains(t, text, "IFCWALL")
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := do(t, app, httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil))
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/documents/"+id, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestExportInlineScene(t *testing.T) {
	app := newApp(t)

	doc := document.New("shed")
	slab := doc.MakeStructure(nil, "Slab")
	slab.Role = "Slab"
	require.NoError(t, slab.SetExtrusion(geom.Extrusion{
		Profile: geom.Polygon(true, geom.V(0, 0, 0), geom.V(3000, 0, 0), geom.V(3000, 2000, 0), geom.V(0, 2000, 0)),
		Vector:  geom.V(0, 0, 200),
	}))
	doc.MakeBuilding("Shed", doc.MakeFloor("Level 0", slab))

	scale := 0.001
	resp, body := do(t, app, jsonRequest(http.MethodPost, "/export", models.ExportRequest{
		Scene:         mapper.FromDocument(doc),
		ScalingFactor: &scale,
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "1", resp.Header.Get("X-Exported-Objects"))
	assert.Contains(t, string(body), "IFCSLAB(")
	assert.Contains(t, string(body), "'Level 0'")
}

func TestExportDocumentIDStaysInStorage(t *testing.T) {
	base := t.TempDir()
	storage := filepath.Join(base, "storage")
	app := newAppWithStorage(t, storage)

	doc := document.New("shed")
	doc.MakeFloor("Level 0")
	scene := mapper.FromDocument(doc)

	for _, id := range []string{"../escaped", "..", "a/b", "/tmp/abs"} {
		t.Run(id, func(t *testing.T) {
			resp, body := do(t, app, jsonRequest(http.MethodPost, "/export", models.ExportRequest{DocumentID: id, Scene: scene}))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}
	_, err := os.Stat(filepath.Join(base, "escaped"))
	assert.True(t, os.IsNotExist(err), "nothing is written next to the storage root")

	resp, body := do(t, app, jsonRequest(http.MethodPost, "/export", models.ExportRequest{DocumentID: uuid.NewString(), Scene: scene}))
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestErrors(t *testing.T) {
	app := newApp(t)

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"no file", httptest.NewRequest(http.MethodPost, "/import", nil), http.StatusBadRequest},
		{"wrong extension", upload(t, "plan.svg", []byte("<svg/>"), ""), http.StatusBadRequest},
		{"unreadable ifc", upload(t, "broken.ifc", []byte("not a step file"), ""), http.StatusUnprocessableEntity},
		{"empty export", httptest.NewRequest(http.MethodPost, "/export", nil), http.StatusBadRequest},
		{"bad json", httptest.NewRequest(http.MethodPost, "/export", strings.NewReader("{")), http.StatusBadRequest},
		{"nothing to export", jsonRequest(http.MethodPost, "/export", models.ExportRequest{}), http.StatusBadRequest},
		{"unknown document", jsonRequest(http.MethodPost, "/export", models.ExportRequest{DocumentID: uuid.NewString()}), http.StatusNotFound},
		{"malformed document id", jsonRequest(http.MethodPost, "/export", models.ExportRequest{DocumentID: "nope"}), http.StatusBadRequest},
		{"unknown object", jsonRequest(http.MethodPost, "/export", models.ExportRequest{
			Scene: &models.Scene{Name: "x"}, Objects: []string{"Ghost"},
		}), http.StatusBadRequest},
		{"cyclic scene", jsonRequest(http.MethodPost, "/export", models.ExportRequest{Scene: &models.Scene{Name: "x", Objects: []models.Object{
			{Name: "Top", Kind: "Wall", Additions: []string{"A"}},
			{Name: "A", Kind: "Wall", Additions: []string{"A"}},
		}}}), http.StatusBadRequest},
		{"get missing", httptest.NewRequest(http.MethodGet, "/documents/nope", nil), http.StatusNotFound},
		{"scene missing", httptest.NewRequest(http.MethodGet, "/documents/nope/scene", nil), http.StatusNotFound},
		{"delete missing", httptest.NewRequest(http.MethodDelete, "/documents/nope", nil), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, app, tc.req)
			assert.Equal(t, tc.status, resp.StatusCode, string(body))
		})
	}
}
