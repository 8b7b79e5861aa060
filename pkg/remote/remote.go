// Package remote abstracts the content source holding the studio's images.
package remote

import (
	"context"

	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

// Source lists and fetches image files from the remote content source.
// Listing a missing or empty folder returns an empty slice, not an error;
// callers treat "no remote files" as a valid, syncable state.
type Source interface {
	// ListCategories returns the names of the portfolio category folders
	// under the configured portfolio root.
	ListCategories(ctx context.Context) ([]string, error)

	// ListCategoryFiles returns the image files directly inside the named
	// category folder. The folder is resolved by exact name first, then
	// case-insensitively.
	ListCategoryFiles(ctx context.Context, category string) ([]s.RemoteFile, error)

	// ListHeroFiles returns the image files in the fixed hero folder.
	ListHeroFiles(ctx context.Context) ([]s.RemoteFile, error)

	// FetchFile downloads one file's full content into memory.
	FetchFile(ctx context.Context, id string) ([]byte, error)

	// Client folder lifecycle, used by the admin client management surface.
	CreateClientFolder(ctx context.Context, name string) (string, error)
	FindClientFolder(ctx context.Context, name string) (string, error)
	RenameClientFolder(ctx context.Context, folderID, newName string) error
	DeleteClientFolder(ctx context.Context, folderID string) error
	ListClientFiles(ctx context.Context, folderID string) ([]s.RemoteFile, error)
}
