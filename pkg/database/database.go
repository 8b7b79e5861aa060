package database

import (
	"errors"

	"github.com/ashdowne/gallery-sync-server/pkg/database/postgres"
	"github.com/ashdowne/gallery-sync-server/pkg/database/sqlite"
	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

// Backend persists sync ledgers (one per sync domain) and client records.
type Backend interface {
	Type() string

	// LoadLedger returns the ledger for a domain, or an empty ledger if the
	// domain has never been synced.
	LoadLedger(domain string) (s.SyncLedger, error)
	// SaveLedger replaces the domain's entries and last-sync timestamp.
	SaveLedger(domain string, ledger s.SyncLedger) error

	CreateClient(username, passwordHash, folderID string) (s.Client, error)
	GetClient(id int) (s.Client, error)
	GetClientByUsername(username string) (s.Client, error)
	ListClients() ([]s.Client, error)
	UpdateClientFolder(id int, folderID string) error
	UpdateClientUsername(id int, username string) error
	DeleteClient(id int) error
}

func GetBackend(backend, connectionString string) (Backend, error) {
	switch backend {
	case "sqlite":
		return sqlite.NewSQLiteBackend(connectionString)
	case "postgres":
		return postgres.NewPostgresBackend(connectionString)
	default:
		return nil, errors.New("invalid database backend")
	}
}
