package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"
)

// DefaultURL - откуда скачивается схема IFC, если локальной копии нет.
const DefaultURL = "http://www.steptools.com/support/stdev_docs/ifcbim/ifc4.exp"

var ErrSchemaNotFound = errors.New("schema: no IFC schema could be found or downloaded")

type LocateOptions struct {
	// CustomPath используется, если указывает на существующий файл.
	CustomPath string
	// CacheDir хранит скачанные схемы.
	CacheDir string
	URL      string
	Client   *http.Client
	Debug    bool
}

// Locate возвращает путь к файлу схемы: сначала custom, затем копия
// в кэше, затем свежая загрузка в каталог кэша.
func Locate(ctx context.Context, opts LocateOptions) (string, error) {
	if opts.CustomPath != "" {
		if _, err := os.Stat(opts.CustomPath); err == nil {
			if opts.Debug {
				log.Printf("[SCHEMA] Using custom schema: %s", filepath.Base(opts.CustomPath))
			}
			return opts.CustomPath, nil
		}
		log.Printf("[SCHEMA] Custom schema %s not found, ignoring", opts.CustomPath)
	}

	url := opts.URL
	if url == "" {
		url = DefaultURL
	}
	if opts.CacheDir == "" {
		return "", ErrSchemaNotFound
	}
	cached := filepath.Join(opts.CacheDir, path.Base(url))
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}

	if err := download(ctx, opts.Client, url, cached); err != nil {
		log.Printf("[SCHEMA] Download failed: %v", err)
		return "", fmt.Errorf("%w: %v", ErrSchemaNotFound, err)
	}
	log.Printf("[SCHEMA] Downloaded %s to %s", url, cached)
	return cached, nil
}

func download(ctx context.Context, client *http.Client, url, dest string) error {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".schema-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write schema: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}

// Load разбирает файл схемы по path.
func Load(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %s: %w", path, err)
	}
	defer f.Close()
	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// LocateAndLoad объединяет Locate и Load.
func LocateAndLoad(ctx context.Context, opts LocateOptions) (*Schema, error) {
	p, err := Locate(ctx, opts)
	if err != nil {
		return nil, err
	}
	return Load(p)
}
