// Package catalog - Catalog persistence
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/logging"
)

// Store loads the active catalog. Implementations must fail with a
// CATALOG_ERROR when the backing resource is absent.
type Store interface {
	Load(ctx context.Context) (*Catalog, error)
}

// FileStore reads and writes a catalog file in JSON or HCL, chosen by extension.
// Writes are atomic (temp file + rename), so concurrent readers observe either
// the old or the new catalog, never a partial file.
type FileStore struct {
	path        string
	versionsDir string
	mu          sync.Mutex
	now         func() time.Time
}

// NewFileStore creates a file-backed catalog store.
// versionsDir may be empty to disable versioned backups.
func NewFileStore(path, versionsDir string) *FileStore {
	return &FileStore{
		path:        path,
		versionsDir: versionsDir,
		now:         time.Now,
	}
}

// Path returns the catalog file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the catalog file
func (s *FileStore) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.Catalog("cost catalog not found: "+s.path, err)
		}
		return nil, ferrors.Catalog("read cost catalog", err)
	}

	c, err := Decode(data, s.path)
	if err != nil {
		return nil, ferrors.Catalog("malformed cost catalog", err)
	}
	return c, nil
}

// Save validates c, keeps a timestamped copy under the versions directory and
// atomically replaces the active catalog. It returns the backup path, if any.
func (s *FileStore) Save(ctx context.Context, c *Catalog) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.Validate(); err != nil {
		return "", ferrors.Wrap(ferrors.TypeInput, "invalid cost catalog", err)
	}

	data, err := encode(c, s.path)
	if err != nil {
		return "", ferrors.Catalog("encode cost catalog", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var backup string
	if s.versionsDir != "" {
		backup = filepath.Join(s.versionsDir,
			fmt.Sprintf("cost_catalog_%s%s", s.now().UTC().Format("20060102_150405"), filepath.Ext(s.path)))
		if err := writeAtomic(backup, data); err != nil {
			return "", ferrors.Catalog("write catalog version", err)
		}
	}

	if err := writeAtomic(s.path, data); err != nil {
		return "", ferrors.Catalog("write cost catalog", err)
	}

	logging.Info("cost catalog replaced",
		zap.String("path", s.path),
		zap.String("version", c.Version),
		zap.String("fingerprint", c.Fingerprint().Short()),
		zap.String("backup", backup))

	return backup, nil
}

// Decode parses catalog bytes, using the filename extension to pick the format
func Decode(data []byte, filename string) (*Catalog, error) {
	if isHCL(filename) {
		return DecodeHCL(data, filename)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func encode(c *Catalog, filename string) ([]byte, error) {
	if isHCL(filename) {
		return EncodeHCL(c), nil
	}
	return json.MarshalIndent(c, "", "  ")
}

func isHCL(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".hcl")
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// StaticStore serves a fixed in-memory catalog
type StaticStore struct {
	Catalog *Catalog
}

// Load returns the fixed catalog
func (s StaticStore) Load(ctx context.Context) (*Catalog, error) {
	if s.Catalog == nil {
		return nil, ferrors.Catalog("no cost catalog configured", nil)
	}
	return s.Catalog, nil
}
