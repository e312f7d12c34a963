package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func must(t *testing.T) func(string, error) string {
	return func(p string, err error) string {
		t.Helper()
		require.NoError(t, err)
		return p
	}
}

func TestFileStorage(t *testing.T) {
	root := t.TempDir()
	s := NewFileStorage(root)

	t.Run("paths stay inside the document dir", func(t *testing.T) {
		assert.Equal(t, filepath.Join(root, "d1", "source", "house.ifc"), must(t)(s.SourcePath("d1", "house.ifc")))
		assert.Equal(t, filepath.Join(root, "d1", "source", "passwd"), must(t)(s.SourcePath("d1", "../../etc/passwd")))
		assert.Equal(t, filepath.Join(root, "d1", "source", "evil.ifc"), must(t)(s.SourcePath("d1", `C:\tmp\evil.ifc`)))
		assert.Equal(t, filepath.Join(root, "d1", "source", "model.ifc"), must(t)(s.SourcePath("d1", "")))
	})

	t.Run("export names end in .ifc", func(t *testing.T) {
		assert.Equal(t, filepath.Join(root, "d1", "exports", "plan.ifc"), must(t)(s.ExportPath("d1", "plan.json")))
		assert.Equal(t, filepath.Join(root, "d1", "exports", "export.ifc"), must(t)(s.ExportPath("d1", "")))
	})

	t.Run("document ids cannot leave the root", func(t *testing.T) {
		for _, id := range []string{"", ".", "..", "../escaped", "a/b", "/abs", "x/../../y"} {
			_, err := s.DocumentDir(id)
			assert.ErrorIs(t, err, ErrInvalidDocumentID, id)
			_, err = s.ExportPath(id, "plan.ifc")
			assert.ErrorIs(t, err, ErrInvalidDocumentID, id)
			assert.ErrorIs(t, s.Remove(id), ErrInvalidDocumentID, id)
		}
		_, err := os.Stat(filepath.Join(filepath.Dir(root), "escaped"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("save and remove", func(t *testing.T) {
		target := must(t)(s.SourcePath("d2", "a.ifc"))
		require.NoError(t, s.SaveFile(target, []byte("ISO-10303-21;")))
		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "ISO-10303-21;", string(data))

		require.NoError(t, s.Remove("d2"))
		_, err = os.Stat(must(t)(s.DocumentDir("d2")))
		assert.True(t, os.IsNotExist(err))
	})
}
