// Package sync reconciles remote image folders against the cache store,
// one independently locked and cooled-down domain at a time.
package sync

import (
	"bytes"
	"context"
	"strings"
	stdsync "sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashdowne/gallery-sync-server/pkg/database"
	"github.com/ashdowne/gallery-sync-server/pkg/metrics"
	"github.com/ashdowne/gallery-sync-server/pkg/remote"
	"github.com/ashdowne/gallery-sync-server/pkg/s"
	"github.com/ashdowne/gallery-sync-server/pkg/storage"
	"github.com/ashdowne/gallery-sync-server/pkg/utils"
)

const heroDomain = "hero"

// Config tunes the orchestrator.
type Config struct {
	// Cooldown is the minimum time between the start of two sync attempts
	// for the same domain.
	Cooldown time.Duration

	// BuildMode short-circuits every sync call to an immediate success
	// without touching remote services or the cache, keeping static builds
	// hermetic.
	BuildMode bool
}

// domainState gates concurrent and overly-frequent runs for one domain.
// It lives for the lifetime of the process and is never persisted.
type domainState struct {
	running     bool
	lastAttempt time.Time
}

// Syncer owns the per-domain run state and performs reconciliation runs.
// The in-memory lock only covers a single process; a multi-instance
// deployment needs a shared lease instead.
type Syncer struct {
	remote remote.Source
	store  storage.Backend
	db     database.Backend
	cfg    Config

	now func() time.Time

	mu      stdsync.Mutex
	domains map[string]*domainState
}

func New(src remote.Source, store storage.Backend, db database.Backend, cfg Config) *Syncer {
	return &Syncer{
		remote:  src,
		store:   store,
		db:      db,
		cfg:     cfg,
		now:     time.Now,
		domains: make(map[string]*domainState),
	}
}

// tryAcquire admits a run for the domain if it is idle and outside the
// cooldown window. The attempt timestamp is taken on admission, so a failed
// run still counts against the cooldown.
func (sy *Syncer) tryAcquire(domain string) bool {
	sy.mu.Lock()
	defer sy.mu.Unlock()

	state, ok := sy.domains[domain]
	if !ok {
		state = &domainState{}
		sy.domains[domain] = state
	}

	now := sy.now()
	if state.running {
		log.Info().Str("domain", domain).Msg("Sync already in progress, skipping")
		return false
	}
	if now.Sub(state.lastAttempt) < sy.cfg.Cooldown {
		log.Info().Str("domain", domain).Time("last_attempt", state.lastAttempt).
			Dur("cooldown", sy.cfg.Cooldown).Msg("Sync cooldown in effect, skipping")
		return false
	}

	state.running = true
	state.lastAttempt = now
	return true
}

func (sy *Syncer) release(domain string) {
	sy.mu.Lock()
	defer sy.mu.Unlock()
	sy.domains[domain].running = false
}

// SyncHero reconciles the fixed hero folder. True means the run completed
// (or was a legitimate no-op); false means skipped or failed.
func (sy *Syncer) SyncHero(ctx context.Context) bool {
	return sy.syncDomain(ctx, heroDomain, HeroPrefix+"/", "", sy.remote.ListHeroFiles)
}

// SyncPortfolio reconciles one portfolio category, or every category when
// category is empty. Each category is its own domain with its own lock and
// cooldown; with an empty category the result is true only if all
// categories completed.
func (sy *Syncer) SyncPortfolio(ctx context.Context, category string) bool {
	if category != "" {
		return sy.syncCategory(ctx, category)
	}

	if sy.cfg.BuildMode {
		log.Info().Msg("Build mode, skipping portfolio sync")
		return true
	}

	categories, err := sy.remote.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list portfolio categories")
		return false
	}

	ok := true
	for _, cat := range categories {
		if !sy.syncCategory(ctx, cat) {
			ok = false
		}
	}
	return ok
}

func (sy *Syncer) syncCategory(ctx context.Context, category string) bool {
	cat := strings.ToLower(category)
	domain := "portfolio/" + cat
	prefix := PortfolioPrefix + "/" + cat + "/"

	return sy.syncDomain(ctx, domain, prefix, cat, func(ctx context.Context) ([]s.RemoteFile, error) {
		return sy.remote.ListCategoryFiles(ctx, category)
	})
}

// syncDomain runs the Idle -> Running -> Idle state machine for one domain.
func (sy *Syncer) syncDomain(ctx context.Context, domain, prefix, category string,
	list func(context.Context) ([]s.RemoteFile, error)) bool {
	if sy.cfg.BuildMode {
		log.Info().Str("domain", domain).Msg("Build mode, skipping sync")
		return true
	}

	if !sy.tryAcquire(domain) {
		metrics.SyncRuns.WithLabelValues(domain, "skipped").Inc()
		return false
	}
	defer sy.release(domain)

	started := sy.now()
	log.Info().Str("domain", domain).Msg("Starting sync")

	files, err := list(ctx)
	if err != nil {
		// Structural failure: abort without touching the ledger.
		log.Error().Err(err).Str("domain", domain).Msg("Failed to list remote files")
		metrics.SyncRuns.WithLabelValues(domain, "failed").Inc()
		return false
	}

	report, err := sy.reconcile(ctx, domain, prefix, category, files)
	if err != nil {
		log.Error().Err(err).Str("domain", domain).Msg("Sync failed")
		metrics.SyncRuns.WithLabelValues(domain, "failed").Inc()
		return false
	}

	metrics.SyncRuns.WithLabelValues(domain, "completed").Inc()
	metrics.SyncUploads.WithLabelValues(domain).Add(float64(report.Uploaded))
	metrics.SyncDeletes.WithLabelValues(domain).Add(float64(report.Deleted))
	metrics.SyncFileFailures.WithLabelValues(domain).Add(float64(report.Failed))

	log.Info().Str("domain", domain).Int("uploaded", report.Uploaded).
		Int("deleted", report.Deleted).Int("unchanged", report.Unchanged).
		Int("failed", report.Failed).Dur("duration", sy.now().Sub(started)).
		Msg("Sync completed")
	return true
}

// reconcile diffs the remote listing against the ledger and the cache
// store's current contents, uploads what is new or changed, deletes what is
// stale and persists the updated ledger. Per-file failures are isolated;
// failures loading state or persisting the ledger abort the run.
func (sy *Syncer) reconcile(ctx context.Context, domain, prefix, category string,
	files []s.RemoteFile) (s.SyncReport, error) {
	report := s.SyncReport{Domain: domain}

	ledger, err := sy.db.LoadLedger(domain)
	if err != nil {
		return report, err
	}

	existing, err := sy.store.List(prefix)
	if err != nil {
		return report, err
	}
	existingMap := make(map[string]s.CachedBlob, len(existing))
	for _, blob := range existing {
		existingMap[blob.Pathname] = blob
	}

	root := PortfolioPrefix
	if category == "" {
		root = HeroPrefix
	}

	remoteMap := make(map[string]string, len(files))
	for _, file := range files {
		key := CachePathKey(root, category, file)
		remoteMap[key] = file.ID

		entry, hasEntry := ledger.Entries[key]
		_, inStore := existingMap[key]

		// Upload when the ledger has never seen this key, the remote id
		// behind the key changed, or the ledger and store disagree.
		if hasEntry && entry.RemoteID == file.ID && inStore {
			report.Unchanged++
			continue
		}

		data, err := sy.remote.FetchFile(ctx, file.ID)
		if err != nil {
			log.Error().Err(err).Str("domain", domain).Str("file", file.Name).
				Str("remote_id", file.ID).Msg("Failed to fetch remote file")
			// Drop the entry so the next run retries this file.
			delete(ledger.Entries, key)
			report.Failed++
			continue
		}

		if _, err = sy.store.Upload(key, bytes.NewReader(data)); err != nil {
			log.Error().Err(err).Str("domain", domain).Str("pathname", key).
				Msg("Failed to upload to cache store")
			delete(ledger.Entries, key)
			report.Failed++
			continue
		}

		ledger.Entries[key] = s.SyncLedgerEntry{
			Pathname:    key,
			RemoteID:    file.ID,
			Fingerprint: utils.Fingerprint(data),
		}
		report.Uploaded++
		log.Debug().Str("domain", domain).Str("pathname", key).Str("remote_id", file.ID).Msg("Uploaded")
	}

	// Stale-content cleanup: cached keys no longer backed by a remote file.
	for key := range existingMap {
		if _, ok := remoteMap[key]; ok {
			continue
		}
		if err := sy.store.Delete(key); err != nil {
			log.Warn().Err(err).Str("domain", domain).Str("pathname", key).
				Msg("Failed to delete stale cached file")
			report.Failed++
		} else {
			report.Deleted++
			log.Debug().Str("domain", domain).Str("pathname", key).Msg("Deleted stale cached file")
		}
		delete(ledger.Entries, key)
	}

	// Prune ledger entries with neither a remote file nor a cached blob.
	for key := range ledger.Entries {
		if _, ok := remoteMap[key]; !ok {
			delete(ledger.Entries, key)
		}
	}

	ledger.LastSync = sy.now()
	if err = sy.db.SaveLedger(domain, ledger); err != nil {
		return report, err
	}

	return report, nil
}
