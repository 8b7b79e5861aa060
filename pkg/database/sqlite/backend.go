package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	gomigratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/ashdowne/gallery-sync-server/pkg/e"
	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

//go:embed migrations/*.sql
var fs embed.FS

type Backend struct {
	db *sql.DB
}

func NewSQLiteBackend(connectionString string) (*Backend, error) {
	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return &Backend{}, err
	}

	backend := Backend{
		db: db,
	}

	if err = backend.Migrate(); err != nil {
		return &Backend{}, err
	}

	return &backend, nil
}

func (b *Backend) Type() string { return "sqlite" }

func (b *Backend) Migrate() error {
	driver, err := gomigratesqlite.WithInstance(b.db, &gomigratesqlite.Config{})
	if err != nil {
		return err
	}

	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return err
	}

	log.Info().Msg("Starting database migrations")
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	log.Info().Msg("Finished database migrations")

	return nil
}

func (b *Backend) LoadLedger(domain string) (s.SyncLedger, error) {
	ledger := s.NewSyncLedger()

	var lastSync string
	err := b.db.QueryRow(GetDomainLastSync, domain).Scan(&lastSync)
	if err != nil && err != sql.ErrNoRows {
		return s.SyncLedger{}, err
	} else if err == nil {
		if ledger.LastSync, err = time.Parse(time.RFC3339, lastSync); err != nil {
			return s.SyncLedger{}, err
		}
	}

	rows, err := b.db.Query(GetDomainEntries, domain)
	if err != nil {
		return s.SyncLedger{}, err
	}
	defer rows.Close()

	for rows.Next() {
		entry := s.SyncLedgerEntry{}
		if err = rows.Scan(&entry.Pathname, &entry.RemoteID, &entry.Fingerprint); err != nil {
			return s.SyncLedger{}, err
		}
		ledger.Entries[entry.Pathname] = entry
	}
	if err = rows.Err(); err != nil {
		return s.SyncLedger{}, err
	}

	return ledger, nil
}

func (b *Backend) SaveLedger(domain string, ledger s.SyncLedger) error {
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err = tx.Exec(UpsertDomain, domain, ledger.LastSync.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err = tx.Exec(ClearDomainEntries, domain); err != nil {
		return err
	}
	for _, entry := range ledger.Entries {
		if _, err = tx.Exec(InsertDomainEntry, domain, entry.Pathname, entry.RemoteID, entry.Fingerprint); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (b *Backend) CreateClient(username, passwordHash, folderID string) (s.Client, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	var clientID int64
	err := b.db.QueryRow(InsertClient, username, passwordHash, folderID, now).Scan(&clientID)
	if err != nil {
		var sqliteErr sqlite.Error
		if errors.As(err, &sqliteErr) {
			if errors.Is(sqliteErr.ExtendedCode, sqlite.ErrConstraintUnique) {
				return s.Client{}, e.ErrClientExists
			}
		}
		return s.Client{}, err
	}

	log.Debug().Int64("client_id", clientID).Str("username", username).Msg("Created new client")

	return s.Client{
		ID:           int(clientID),
		Username:     username,
		PasswordHash: passwordHash,
		FolderID:     folderID,
		CreatedDate:  now,
	}, nil
}

func (b *Backend) scanClient(row *sql.Row) (s.Client, error) {
	client := s.Client{}
	err := row.Scan(&client.ID, &client.Username, &client.PasswordHash, &client.FolderID, &client.CreatedDate)
	if err == sql.ErrNoRows {
		return s.Client{}, e.ErrNoClientFound
	} else if err != nil {
		return s.Client{}, err
	}
	return client, nil
}

func (b *Backend) GetClient(id int) (s.Client, error) {
	return b.scanClient(b.db.QueryRow(GetClientByID, id))
}

func (b *Backend) GetClientByUsername(username string) (s.Client, error) {
	return b.scanClient(b.db.QueryRow(GetClientByUsername, username))
}

func (b *Backend) ListClients() ([]s.Client, error) {
	rows, err := b.db.Query(ListAllClients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]s.Client, 0)
	for rows.Next() {
		client := s.Client{}
		if err = rows.Scan(&client.ID, &client.Username, &client.PasswordHash, &client.FolderID, &client.CreatedDate); err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return clients, nil
}

func (b *Backend) UpdateClientFolder(id int, folderID string) error {
	result, err := b.db.Exec(SetClientFolder, folderID, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return e.ErrNoClientFound
	}
	return nil
}

func (b *Backend) UpdateClientUsername(id int, username string) error {
	result, err := b.db.Exec(SetClientUsername, username, id)
	if err != nil {
		var sqliteErr sqlite.Error
		if errors.As(err, &sqliteErr) && errors.Is(sqliteErr.ExtendedCode, sqlite.ErrConstraintUnique) {
			return e.ErrClientExists
		}
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return e.ErrNoClientFound
	}
	return nil
}

func (b *Backend) DeleteClient(id int) error {
	result, err := b.db.Exec(RemoveClient, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return e.ErrNoClientFound
	}
	return nil
}
