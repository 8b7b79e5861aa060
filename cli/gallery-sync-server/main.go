package main

import (
	"context"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"

	"github.com/ashdowne/gallery-sync-server/pkg/database"
	"github.com/ashdowne/gallery-sync-server/pkg/remote/gdrive"
	"github.com/ashdowne/gallery-sync-server/pkg/storage"
	"github.com/ashdowne/gallery-sync-server/pkg/sync"
	"github.com/ashdowne/gallery-sync-server/pkg/utils/logging"
	"github.com/ashdowne/gallery-sync-server/pkg/web"
)

var cli struct {
	// Database backends
	DBSqlite   string `env:"DB_SQLITE" required:"" xor:"db" help:"SQLite filepath e.g. /tmp/gallery.sqlite"`
	DBPostgres string `env:"DB_POSTGRES" required:"" xor:"db" help:"Postgres URI e.g. postgresql://blah"`

	// Storage backends
	StorageDisk string `env:"STORAGE_DISK" required:"" xor:"storage" help:"Use disk storage for cached images e.g. /var/lib/gallery"`
	StorageS3   string `env:"STORAGE_S3" required:"" xor:"storage" name:"storage-s3" help:"Use S3 storage for cached images e.g. s3://bucket"`

	// Google Drive
	DriveCredentialsFile   string `env:"DRIVE_CREDENTIALS_FILE" required:"" help:"Path to a Google service account credentials JSON file"`
	DrivePortfolioFolderID string `env:"DRIVE_PORTFOLIO_FOLDER_ID" required:"" help:"Drive folder holding one subfolder per portfolio category"`
	DriveHeroFolderID      string `env:"DRIVE_HERO_FOLDER_ID" required:"" help:"Drive folder holding the hero slideshow images"`
	DriveClientFolderID    string `env:"DRIVE_CLIENT_FOLDER_ID" help:"Drive folder holding per-client delivery folders"`

	// Sync behaviour
	SyncCooldown time.Duration `env:"SYNC_COOLDOWN" default:"24h" help:"Minimum time between sync attempts for the same domain"`
	BuildMode    bool          `env:"BUILD_MODE" help:"Short-circuit all syncs, for hermetic static builds"`

	// Auth
	AdminUsername string `env:"ADMIN_USERNAME" required:"" help:"Admin panel username"`
	AdminPassword string `env:"ADMIN_PASSWORD" required:"" help:"Admin panel password"`
	JWTSecret     string `env:"JWT_SECRET" required:"" help:"Secret used to sign admin session tokens"`
	CronSecret    string `env:"CRON_SECRET" required:"" help:"Shared secret for the scheduled sync endpoints"`

	// Misc
	LogLevel             string `env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error"`
	ListenAddress        string `env:"LISTEN_ADDR" default:"0.0.0.0:8080" help:"Listen address e.g. 0.0.0.0:8080"`
	MetricsListenAddress string `env:"METRICS_LISTEN_ADDR" default:"0.0.0.0:9102" help:"Listen address for prometheus metrics e.g. 0.0.0.0:9102"`
}

func main() {
	kong.Parse(&cli)

	logging.SetupLogging(cli.LogLevel)

	var databaseBackendName, dbConnectionString string
	if cli.DBSqlite != "" {
		databaseBackendName = "sqlite"
		dbConnectionString = cli.DBSqlite
	}
	if cli.DBPostgres != "" {
		databaseBackendName = "postgres"
		dbConnectionString = cli.DBPostgres
	}

	var storageBackendName, storageConnectionString string
	if cli.StorageDisk != "" {
		storageBackendName = "disk"
		storageConnectionString = cli.StorageDisk
	}
	if cli.StorageS3 != "" {
		storageBackendName = "s3"
		storageConnectionString = cli.StorageS3
	}

	dbBackend, err := database.GetBackend(databaseBackendName, dbConnectionString)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initiate database backend")
	}

	storageBackend, err := storage.GetStorageBackend(storageBackendName, storageConnectionString)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initiate storage backend")
	}

	credentials, err := os.ReadFile(cli.DriveCredentialsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read Drive credentials")
	}

	source, err := gdrive.New(context.Background(), credentials, gdrive.Config{
		PortfolioFolderID: cli.DrivePortfolioFolderID,
		HeroFolderID:      cli.DriveHeroFolderID,
		ClientFolderID:    cli.DriveClientFolderID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initiate Drive source")
	}

	syncer := sync.New(source, storageBackend, dbBackend, sync.Config{
		Cooldown:  cli.SyncCooldown,
		BuildMode: cli.BuildMode,
	})

	handlers := web.Handlers{
		Database: dbBackend,
		Storage:  storageBackend,
		Remote:   source,
		Syncer:   syncer,

		AdminUsername: cli.AdminUsername,
		AdminPassword: cli.AdminPassword,
		JWTSecret:     []byte(cli.JWTSecret),
		CronSecret:    cli.CronSecret,
	}

	router := web.GetRouter(cli.MetricsListenAddress, handlers, true)

	log.Info().Msgf("Listening on %s", cli.ListenAddress)
	if err = router.Run(cli.ListenAddress); err != nil {
		log.Fatal().Err(err).Msg("Failed HTTP server loop")
	}
}
