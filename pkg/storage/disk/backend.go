package disk

import (
	"errors"
	"io"
	"io/fs"
	"os"
	p "path"
	"path/filepath"
	"strings"

	"github.com/ashdowne/gallery-sync-server/pkg/e"
	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

// Backend stores cached images as plain files under BaseDir, keyed by their
// cache pathname. URLs are relative /images/ paths served by the web layer.
type Backend struct {
	BaseDir string
}

func New(connectionString string) (*Backend, error) {
	if _, err := os.Stat(connectionString); os.IsNotExist(err) {
		return nil, errors.New("path does not exist")
	}

	backend := Backend{BaseDir: connectionString}
	return &backend, nil
}

func (b *Backend) Setup() error {
	return nil
}

func (b *Backend) Type() string {
	return "disk"
}

// keyPath maps a cache pathname to a filesystem path, rejecting anything
// that escapes BaseDir. The prefix check includes the separator so sibling
// directories sharing a name prefix are rejected too.
func (b *Backend) keyPath(pathname string) (string, error) {
	base := strings.TrimSuffix(b.BaseDir, "/")
	filePath := p.Clean(p.Join(base, pathname))
	if !strings.HasPrefix(filePath, base+"/") {
		return "", e.ErrNotFound
	}
	return filePath, nil
}

func (b *Backend) List(prefix string) ([]s.CachedBlob, error) {
	blobs := make([]s.CachedBlob, 0)

	err := filepath.WalkDir(b.BaseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(b.BaseDir, path)
		if err != nil {
			return err
		}
		pathname := filepath.ToSlash(rel)
		if strings.HasPrefix(pathname, prefix) {
			blobs = append(blobs, s.CachedBlob{Pathname: pathname, URL: "/images/" + pathname})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return blobs, nil
}

func (b *Backend) Upload(pathname string, r io.Reader) (s.CachedBlob, error) {
	filePath, err := b.keyPath(pathname)
	if err != nil {
		return s.CachedBlob{}, err
	}

	if err = os.MkdirAll(p.Dir(filePath), 0o755); err != nil {
		return s.CachedBlob{}, err
	}

	fp, err := os.OpenFile(filePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return s.CachedBlob{}, err
	}

	_, err = io.Copy(fp, r)
	_ = fp.Close()

	if err != nil {
		_ = os.Remove(filePath)
		return s.CachedBlob{}, err
	}

	return s.CachedBlob{Pathname: pathname, URL: "/images/" + pathname}, nil
}

func (b *Backend) Delete(pathname string) error {
	filePath, err := b.keyPath(pathname)
	if err != nil {
		return err
	}
	return os.Remove(filePath)
}

func (b *Backend) GetFilePath(key string) (string, error) {
	filePath, err := b.keyPath(key)
	if err != nil {
		return "", err
	}
	if _, err = os.Stat(filePath); os.IsNotExist(err) {
		return "", e.ErrNotFound
	}

	return filePath, nil
}
