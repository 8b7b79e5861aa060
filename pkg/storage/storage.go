package storage

import (
	"errors"
	"io"

	s3 "github.com/ashdowne/gallery-sync-server/pkg/storage/aws-s3"
	"github.com/ashdowne/gallery-sync-server/pkg/storage/disk"

	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

// Backend stores cached image copies addressed by a deterministic path key.
// Upload overwrites silently, re-uploading the same key is idempotent.
type Backend interface {
	Setup() error
	Type() string
	List(prefix string) ([]s.CachedBlob, error)
	Upload(pathname string, r io.Reader) (s.CachedBlob, error)
	Delete(pathname string) error
	GetFilePath(key string) (string, error)
}

func GetStorageBackend(backend, connectionString string) (Backend, error) {
	var b Backend
	var err error

	switch backend {
	case "disk":
		b, err = disk.New(connectionString)
	case "s3":
		b, err = s3.New(connectionString)
	default:
		return nil, errors.New("invalid storage backend")
	}

	if err != nil {
		return nil, err
	}

	if err := b.Setup(); err != nil {
		return nil, err
	}

	return b, nil
}
