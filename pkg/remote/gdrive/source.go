// Package gdrive implements the remote content source on Google Drive.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ashdowne/gallery-sync-server/pkg/e"
	"github.com/ashdowne/gallery-sync-server/pkg/retry"
	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Config holds the Drive folder ids the source operates on.
type Config struct {
	PortfolioFolderID string
	HeroFolderID      string
	ClientFolderID    string
}

type Source struct {
	svc *drive.Service
	cfg Config
}

// New builds a Drive-backed source from service account credentials JSON.
func New(ctx context.Context, credentialsJSON []byte, cfg Config) (*Source, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(drive.DriveScope))
	if err != nil {
		return nil, err
	}

	return &Source{svc: svc, cfg: cfg}, nil
}

// escapeQuery escapes a value for use inside a Drive query string literal.
// Backslashes go first so quote escapes cannot be smuggled through.
func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}

func (g *Source) listAll(ctx context.Context, query, label string) ([]*drive.File, error) {
	files := make([]*drive.File, 0)
	pageToken := ""

	for {
		resp, err := retry.DoWithResult(ctx, label, func() (*drive.FileList, error) {
			call := g.svc.Files.List().Context(ctx).Q(query).
				Fields("nextPageToken, files(id, name)").PageSize(200)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			return call.Do()
		})
		if err != nil {
			return nil, err
		}

		files = append(files, resp.Files...)
		if resp.NextPageToken == "" {
			return files, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (g *Source) listSubfolders(ctx context.Context, parentID string) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(parentID), folderMimeType)
	return g.listAll(ctx, query, "drive.listSubfolders")
}

// findFolder resolves a folder by name under parentID: exact match first,
// then a case-insensitive pass over all subfolders.
func (g *Source) findFolder(ctx context.Context, parentID, name string) (string, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType = '%s' and name = '%s' and trashed = false",
		escapeQuery(parentID), folderMimeType, escapeQuery(name))
	folders, err := g.listAll(ctx, query, "drive.findFolder")
	if err != nil {
		return "", err
	}
	if len(folders) > 0 {
		return folders[0].Id, nil
	}

	folders, err = g.listSubfolders(ctx, parentID)
	if err != nil {
		return "", err
	}
	for _, folder := range folders {
		if strings.EqualFold(folder.Name, name) {
			return folder.Id, nil
		}
	}

	return "", e.ErrFolderNotFound
}

func (g *Source) listImageFiles(ctx context.Context, folderID string) ([]s.RemoteFile, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType contains 'image/' and trashed = false",
		escapeQuery(folderID))
	files, err := g.listAll(ctx, query, "drive.listImageFiles")
	if err != nil {
		return nil, err
	}

	result := make([]s.RemoteFile, 0, len(files))
	for _, file := range files {
		if file.Id == "" || file.Name == "" {
			log.Warn().Str("folder", folderID).Msg("Skipping remote file with missing id or name")
			continue
		}
		result = append(result, s.RemoteFile{ID: file.Id, Name: file.Name})
	}
	return result, nil
}

func (g *Source) ListCategories(ctx context.Context) ([]string, error) {
	if g.cfg.PortfolioFolderID == "" {
		return nil, e.ErrRootNotConfigured
	}

	folders, err := g.listSubfolders(ctx, g.cfg.PortfolioFolderID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(folders))
	for _, folder := range folders {
		names = append(names, folder.Name)
	}
	return names, nil
}

func (g *Source) ListCategoryFiles(ctx context.Context, category string) ([]s.RemoteFile, error) {
	if g.cfg.PortfolioFolderID == "" {
		return nil, e.ErrRootNotConfigured
	}

	folderID, err := g.findFolder(ctx, g.cfg.PortfolioFolderID, category)
	if err != nil {
		if errors.Is(err, e.ErrFolderNotFound) {
			// Absent folder is a valid, empty state.
			return []s.RemoteFile{}, nil
		}
		return nil, err
	}

	return g.listImageFiles(ctx, folderID)
}

func (g *Source) ListHeroFiles(ctx context.Context) ([]s.RemoteFile, error) {
	if g.cfg.HeroFolderID == "" {
		return nil, e.ErrRootNotConfigured
	}
	return g.listImageFiles(ctx, g.cfg.HeroFolderID)
}

func (g *Source) FetchFile(ctx context.Context, id string) ([]byte, error) {
	return retry.DoWithResult(ctx, "drive.fetchFile", func() ([]byte, error) {
		resp, err := g.svc.Files.Get(id).Context(ctx).Download()
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	})
}

func (g *Source) CreateClientFolder(ctx context.Context, name string) (string, error) {
	if g.cfg.ClientFolderID == "" {
		return "", e.ErrRootNotConfigured
	}

	folder, err := retry.DoWithResult(ctx, "drive.createClientFolder", func() (*drive.File, error) {
		return g.svc.Files.Create(&drive.File{
			Name:     name,
			MimeType: folderMimeType,
			Parents:  []string{g.cfg.ClientFolderID},
		}).Context(ctx).Fields("id").Do()
	})
	if err != nil {
		return "", err
	}
	return folder.Id, nil
}

func (g *Source) FindClientFolder(ctx context.Context, name string) (string, error) {
	if g.cfg.ClientFolderID == "" {
		return "", e.ErrRootNotConfigured
	}
	return g.findFolder(ctx, g.cfg.ClientFolderID, name)
}

func (g *Source) RenameClientFolder(ctx context.Context, folderID, newName string) error {
	return retry.Do(ctx, "drive.renameClientFolder", func() error {
		_, err := g.svc.Files.Update(folderID, &drive.File{Name: newName}).Context(ctx).Do()
		return err
	})
}

func (g *Source) DeleteClientFolder(ctx context.Context, folderID string) error {
	err := retry.Do(ctx, "drive.deleteClientFolder", func() error {
		return g.svc.Files.Delete(folderID).Context(ctx).Do()
	})

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 404 {
		// Folder already removed remotely, treat as done.
		log.Warn().Str("folder", folderID).Msg("Client folder already absent on delete")
		return nil
	}
	return err
}

func (g *Source) ListClientFiles(ctx context.Context, folderID string) ([]s.RemoteFile, error) {
	return g.listImageFiles(ctx, folderID)
}
