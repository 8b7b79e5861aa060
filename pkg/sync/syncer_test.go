package sync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/ashdowne/gallery-sync-server/pkg/e"
	"github.com/ashdowne/gallery-sync-server/pkg/s"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	if _, exists := os.LookupEnv("DEBUG"); exists {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	os.Exit(m.Run())
}

// fakeSource is an in-memory remote.Source.
type fakeSource struct {
	hero       []s.RemoteFile
	categories map[string][]s.RemoteFile
	content    map[string][]byte
	fetchErr   map[string]error
	listErr    error

	listStarted chan struct{}
	listRelease chan struct{}

	listCalls  int
	fetchCalls int
}

func (f *fakeSource) ListCategories(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.categories))
	for name := range f.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeSource) ListCategoryFiles(ctx context.Context, category string) ([]s.RemoteFile, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.categories[category], nil
}

func (f *fakeSource) ListHeroFiles(ctx context.Context) ([]s.RemoteFile, error) {
	f.listCalls++
	if f.listStarted != nil {
		f.listStarted <- struct{}{}
		<-f.listRelease
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.hero, nil
}

func (f *fakeSource) FetchFile(ctx context.Context, id string) ([]byte, error) {
	f.fetchCalls++
	if err, ok := f.fetchErr[id]; ok {
		return nil, err
	}
	data, ok := f.content[id]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (f *fakeSource) CreateClientFolder(ctx context.Context, name string) (string, error) {
	return "", e.ErrNotImplemented
}

func (f *fakeSource) FindClientFolder(ctx context.Context, name string) (string, error) {
	return "", e.ErrNotImplemented
}

func (f *fakeSource) RenameClientFolder(ctx context.Context, folderID, newName string) error {
	return e.ErrNotImplemented
}

func (f *fakeSource) DeleteClientFolder(ctx context.Context, folderID string) error {
	return e.ErrNotImplemented
}

func (f *fakeSource) ListClientFiles(ctx context.Context, folderID string) ([]s.RemoteFile, error) {
	return nil, e.ErrNotImplemented
}

// fakeStore is an in-memory storage.Backend.
type fakeStore struct {
	blobs     map[string][]byte
	uploadErr map[string]error
	deleteErr map[string]error

	uploads int
	deletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blobs:     make(map[string][]byte),
		uploadErr: make(map[string]error),
		deleteErr: make(map[string]error),
	}
}

func (f *fakeStore) Setup() error { return nil }

func (f *fakeStore) Type() string { return "fake" }

func (f *fakeStore) List(prefix string) ([]s.CachedBlob, error) {
	blobs := make([]s.CachedBlob, 0)
	for pathname := range f.blobs {
		if len(pathname) >= len(prefix) && pathname[:len(prefix)] == prefix {
			blobs = append(blobs, s.CachedBlob{Pathname: pathname, URL: "/images/" + pathname})
		}
	}
	return blobs, nil
}

func (f *fakeStore) Upload(pathname string, r io.Reader) (s.CachedBlob, error) {
	if err, ok := f.uploadErr[pathname]; ok {
		return s.CachedBlob{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return s.CachedBlob{}, err
	}
	f.blobs[pathname] = data
	f.uploads++
	return s.CachedBlob{Pathname: pathname, URL: "/images/" + pathname}, nil
}

func (f *fakeStore) Delete(pathname string) error {
	if err, ok := f.deleteErr[pathname]; ok {
		return err
	}
	if _, ok := f.blobs[pathname]; !ok {
		return errors.New("no such blob")
	}
	delete(f.blobs, pathname)
	f.deletes++
	return nil
}

func (f *fakeStore) GetFilePath(key string) (string, error) { return "", e.ErrNotImplemented }

func (f *fakeStore) keys() []string {
	keys := make([]string, 0, len(f.blobs))
	for key := range f.blobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// fakeDB persists ledgers in memory, copying on load and save the way a
// real backend would.
type fakeDB struct {
	ledgers map[string]s.SyncLedger
	saveErr error
	loadErr error
	saves   int
}

func newFakeDB() *fakeDB {
	return &fakeDB{ledgers: make(map[string]s.SyncLedger)}
}

func copyLedger(ledger s.SyncLedger) s.SyncLedger {
	cp := s.SyncLedger{LastSync: ledger.LastSync, Entries: make(map[string]s.SyncLedgerEntry, len(ledger.Entries))}
	for key, entry := range ledger.Entries {
		cp.Entries[key] = entry
	}
	return cp
}

func (f *fakeDB) Type() string { return "fake" }

func (f *fakeDB) LoadLedger(domain string) (s.SyncLedger, error) {
	if f.loadErr != nil {
		return s.SyncLedger{}, f.loadErr
	}
	ledger, ok := f.ledgers[domain]
	if !ok {
		return s.NewSyncLedger(), nil
	}
	return copyLedger(ledger), nil
}

func (f *fakeDB) SaveLedger(domain string, ledger s.SyncLedger) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.ledgers[domain] = copyLedger(ledger)
	f.saves++
	return nil
}

func (f *fakeDB) CreateClient(username, passwordHash, folderID string) (s.Client, error) {
	return s.Client{}, e.ErrNotImplemented
}
func (f *fakeDB) GetClient(id int) (s.Client, error) { return s.Client{}, e.ErrNotImplemented }
func (f *fakeDB) GetClientByUsername(username string) (s.Client, error) {
	return s.Client{}, e.ErrNotImplemented
}
func (f *fakeDB) ListClients() ([]s.Client, error)                 { return nil, e.ErrNotImplemented }
func (f *fakeDB) UpdateClientFolder(id int, folderID string) error { return e.ErrNotImplemented }
func (f *fakeDB) UpdateClientUsername(id int, username string) error {
	return e.ErrNotImplemented
}
func (f *fakeDB) DeleteClient(id int) error { return e.ErrNotImplemented }

func newTestSyncer(src *fakeSource, store *fakeStore, db *fakeDB, cfg Config) *Syncer {
	return New(src, store, db, cfg)
}

func TestSyncSingleCategoryScenario(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{"wedding": {{ID: "a1", Name: "p1.jpg"}}},
		content:    map[string][]byte{"a1": []byte("photo-bytes")},
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Expected sync to succeed")
	}

	want := []string{"portfolio_images/wedding/a1.jpg"}
	if diff := cmp.Diff(want, store.keys()); diff != "" {
		t.Fatalf("Cache store mismatch (-want +got):\n%s", diff)
	}

	ledger := db.ledgers["portfolio/wedding"]
	entry, ok := ledger.Entries["portfolio_images/wedding/a1.jpg"]
	if !ok {
		t.Fatal("Expected ledger entry for uploaded file")
	}
	if entry.RemoteID != "a1" {
		t.Fatalf("Expected remote id a1, got %q", entry.RemoteID)
	}
	if ledger.LastSync.IsZero() {
		t.Fatal("Expected last sync timestamp to be set")
	}
}

func TestSyncIdempotent(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{
			"wedding": {{ID: "a1", Name: "p1.jpg"}, {ID: "b2", Name: "p2.png"}},
		},
		content: map[string][]byte{"a1": []byte("one"), "b2": []byte("two")},
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("First sync failed")
	}
	if store.uploads != 2 {
		t.Fatalf("Expected 2 uploads on first run, got %d", store.uploads)
	}

	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Second sync failed")
	}
	if store.uploads != 2 || store.deletes != 0 {
		t.Fatalf("Expected no-op second run, got uploads=%d deletes=%d", store.uploads, store.deletes)
	}
	if src.fetchCalls != 2 {
		t.Fatalf("Expected no fetches on second run, got %d total", src.fetchCalls)
	}
	if db.saves != 2 {
		t.Fatalf("Expected ledger persisted on both runs, got %d saves", db.saves)
	}
}

func TestSyncConvergesFromArbitraryState(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{"wedding": {{ID: "a1", Name: "p1.jpg"}}},
		content:    map[string][]byte{"a1": []byte("current")},
	}
	store := newFakeStore()
	store.blobs["portfolio_images/wedding/zz.jpg"] = []byte("junk")
	store.blobs["portfolio_images/wedding/old.png"] = []byte("older junk")
	db := newFakeDB()
	stale := s.NewSyncLedger()
	stale.Entries["portfolio_images/wedding/zz.jpg"] = s.SyncLedgerEntry{Pathname: "portfolio_images/wedding/zz.jpg", RemoteID: "zz"}
	stale.Entries["portfolio_images/wedding/ghost.jpg"] = s.SyncLedgerEntry{Pathname: "portfolio_images/wedding/ghost.jpg", RemoteID: "gh"}
	db.ledgers["portfolio/wedding"] = stale

	sy := newTestSyncer(src, store, db, Config{})
	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Expected sync to succeed")
	}

	want := []string{"portfolio_images/wedding/a1.jpg"}
	if diff := cmp.Diff(want, store.keys()); diff != "" {
		t.Fatalf("Store did not converge to remote listing (-want +got):\n%s", diff)
	}

	ledger := db.ledgers["portfolio/wedding"]
	if len(ledger.Entries) != 1 {
		t.Fatalf("Expected exactly one ledger entry, got %d", len(ledger.Entries))
	}
}

func TestSyncPartialFailureIsolation(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{
			"wedding": {{ID: "a1", Name: "p1.jpg"}, {ID: "b2", Name: "p2.jpg"}},
		},
		content:  map[string][]byte{"b2": []byte("fine")},
		fetchErr: map[string]error{"a1": errors.New("socket closed mid flight")},
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Run with a per-file failure should still report success")
	}

	want := []string{"portfolio_images/wedding/b2.jpg"}
	if diff := cmp.Diff(want, store.keys()); diff != "" {
		t.Fatalf("Expected only the healthy file cached (-want +got):\n%s", diff)
	}

	ledger := db.ledgers["portfolio/wedding"]
	if _, ok := ledger.Entries["portfolio_images/wedding/a1.jpg"]; ok {
		t.Fatal("Failed file must not have a ledger entry")
	}
	if _, ok := ledger.Entries["portfolio_images/wedding/b2.jpg"]; !ok {
		t.Fatal("Healthy file must have a ledger entry")
	}
}

func TestSyncDetectsReplacedContent(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{"wedding": {{ID: "a1", Name: "p1.jpg"}}},
		content:    map[string][]byte{"a1": []byte("v1"), "b2": []byte("v2")},
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Initial sync failed")
	}

	// The file is replaced in the remote source: same name, new id.
	src.categories["wedding"] = []s.RemoteFile{{ID: "b2", Name: "p1.jpg"}}

	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Second sync failed")
	}

	want := []string{"portfolio_images/wedding/b2.jpg"}
	if diff := cmp.Diff(want, store.keys()); diff != "" {
		t.Fatalf("Expected replaced file re-cached (-want +got):\n%s", diff)
	}
	ledger := db.ledgers["portfolio/wedding"]
	if entry := ledger.Entries["portfolio_images/wedding/b2.jpg"]; entry.RemoteID != "b2" {
		t.Fatalf("Expected ledger to track new remote id, got %q", entry.RemoteID)
	}
}

func TestSyncRepairsLedgerIDMismatch(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{"wedding": {{ID: "a1", Name: "p1.jpg"}}},
		content:    map[string][]byte{"a1": []byte("current")},
	}
	store := newFakeStore()
	store.blobs["portfolio_images/wedding/a1.jpg"] = []byte("unknown vintage")
	db := newFakeDB()
	seeded := s.NewSyncLedger()
	seeded.Entries["portfolio_images/wedding/a1.jpg"] = s.SyncLedgerEntry{
		Pathname: "portfolio_images/wedding/a1.jpg", RemoteID: "stale-id",
	}
	db.ledgers["portfolio/wedding"] = seeded

	sy := newTestSyncer(src, store, db, Config{})
	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Expected sync to succeed")
	}

	if store.uploads != 1 {
		t.Fatalf("Expected re-upload for mismatched ledger id, got %d uploads", store.uploads)
	}
	ledger := db.ledgers["portfolio/wedding"]
	if entry := ledger.Entries["portfolio_images/wedding/a1.jpg"]; entry.RemoteID != "a1" {
		t.Fatalf("Expected ledger remote id updated to a1, got %q", entry.RemoteID)
	}
}

func TestSyncSelfHealsMissingBlob(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{"wedding": {{ID: "a1", Name: "p1.jpg"}}},
		content:    map[string][]byte{"a1": []byte("current")},
	}
	store := newFakeStore() // ledger says synced, store says nothing
	db := newFakeDB()
	seeded := s.NewSyncLedger()
	seeded.Entries["portfolio_images/wedding/a1.jpg"] = s.SyncLedgerEntry{
		Pathname: "portfolio_images/wedding/a1.jpg", RemoteID: "a1",
	}
	db.ledgers["portfolio/wedding"] = seeded

	sy := newTestSyncer(src, store, db, Config{})
	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Expected sync to succeed")
	}
	if store.uploads != 1 {
		t.Fatalf("Expected stale-cache re-upload, got %d uploads", store.uploads)
	}
}

func TestSyncEmptyRemoteClearsCache(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{"wedding": {{ID: "a1", Name: "p1.jpg"}}},
		content:    map[string][]byte{"a1": []byte("img")},
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Initial sync failed")
	}

	src.categories["wedding"] = []s.RemoteFile{}

	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Sync of empty remote folder should succeed")
	}

	if len(store.blobs) != 0 {
		t.Fatalf("Expected empty cache store, got %v", store.keys())
	}
	ledger := db.ledgers["portfolio/wedding"]
	if len(ledger.Entries) != 0 {
		t.Fatalf("Expected empty ledger, got %d entries", len(ledger.Entries))
	}
	if ledger.LastSync.IsZero() {
		t.Fatal("Expected last sync timestamp updated")
	}
}

func TestSyncLockExclusivity(t *testing.T) {
	src := &fakeSource{
		hero:        []s.RemoteFile{{ID: "h1", Name: "banner.jpg"}},
		categories:  map[string][]s.RemoteFile{"wedding": {{ID: "a1", Name: "p1.jpg"}}},
		content:     map[string][]byte{"h1": []byte("hero"), "a1": []byte("img")},
		listStarted: make(chan struct{}),
		listRelease: make(chan struct{}),
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	done := make(chan bool)
	go func() {
		done <- sy.SyncHero(context.Background())
	}()
	<-src.listStarted // first run is now mid-flight

	if sy.SyncHero(context.Background()) {
		t.Fatal("Second hero sync should be rejected while one is in flight")
	}

	// A different domain is unaffected.
	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Different domain should sync concurrently")
	}

	close(src.listRelease)
	if !<-done {
		t.Fatal("First hero sync should complete successfully")
	}
}

func TestSyncCooldownEnforced(t *testing.T) {
	src := &fakeSource{
		hero:    []s.RemoteFile{{ID: "h1", Name: "banner.jpg"}},
		content: map[string][]byte{"h1": []byte("hero")},
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{Cooldown: 24 * time.Hour})

	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	sy.now = func() time.Time { return current }

	if !sy.SyncHero(context.Background()) {
		t.Fatal("First sync should run")
	}

	current = current.Add(time.Hour)
	if sy.SyncHero(context.Background()) {
		t.Fatal("Second sync within cooldown should be skipped")
	}

	current = current.Add(24 * time.Hour)
	if !sy.SyncHero(context.Background()) {
		t.Fatal("Sync after cooldown should run")
	}
}

func TestSyncBuildModeShortCircuits(t *testing.T) {
	src := &fakeSource{
		hero:    []s.RemoteFile{{ID: "h1", Name: "banner.jpg"}},
		content: map[string][]byte{"h1": []byte("hero")},
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{BuildMode: true})

	if !sy.SyncHero(context.Background()) {
		t.Fatal("Build mode sync should report success")
	}
	if !sy.SyncPortfolio(context.Background(), "") {
		t.Fatal("Build mode portfolio sync should report success")
	}

	if src.listCalls != 0 || src.fetchCalls != 0 {
		t.Fatalf("Build mode must not contact remote services, got %d list %d fetch calls",
			src.listCalls, src.fetchCalls)
	}
	if len(store.blobs) != 0 || db.saves != 0 {
		t.Fatal("Build mode must not mutate cache or ledger")
	}
}

func TestSyncStructuralErrorAborts(t *testing.T) {
	src := &fakeSource{listErr: errors.New("drive unreachable")}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	if sy.SyncHero(context.Background()) {
		t.Fatal("Listing failure should fail the run")
	}
	if db.saves != 0 {
		t.Fatal("Ledger must not be written on structural failure")
	}
}

func TestSyncLedgerSaveFailureFailsRun(t *testing.T) {
	src := &fakeSource{
		hero:    []s.RemoteFile{{ID: "h1", Name: "banner.jpg"}},
		content: map[string][]byte{"h1": []byte("hero")},
	}
	store := newFakeStore()
	db := newFakeDB()
	db.saveErr = errors.New("disk full")
	sy := newTestSyncer(src, store, db, Config{})

	if sy.SyncHero(context.Background()) {
		t.Fatal("Run should fail when the ledger cannot be persisted")
	}
}

func TestSyncAllCategories(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{
			"wedding":  {{ID: "a1", Name: "p1.jpg"}},
			"portrait": {{ID: "c3", Name: "p3.jpg"}},
		},
		content: map[string][]byte{"a1": []byte("one"), "c3": []byte("three")},
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	if !sy.SyncPortfolio(context.Background(), "") {
		t.Fatal("Expected all-category sync to succeed")
	}

	want := []string{
		"portfolio_images/portrait/c3.jpg",
		"portfolio_images/wedding/a1.jpg",
	}
	if diff := cmp.Diff(want, store.keys()); diff != "" {
		t.Fatalf("Cache store mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncDeleteFailureDoesNotAbort(t *testing.T) {
	src := &fakeSource{
		categories: map[string][]s.RemoteFile{"wedding": {{ID: "a1", Name: "p1.jpg"}}},
		content:    map[string][]byte{"a1": []byte("img")},
	}
	store := newFakeStore()
	store.blobs["portfolio_images/wedding/gone.jpg"] = []byte("stale")
	store.deleteErr["portfolio_images/wedding/gone.jpg"] = errors.New("permission denied")
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	if !sy.SyncPortfolio(context.Background(), "wedding") {
		t.Fatal("Delete failure should not fail the run")
	}
	if _, ok := store.blobs["portfolio_images/wedding/a1.jpg"]; !ok {
		t.Fatal("Upload phase should still complete")
	}
}

func TestSyncFingerprintRecorded(t *testing.T) {
	content := []byte("photo-bytes")
	src := &fakeSource{
		hero:    []s.RemoteFile{{ID: "h1", Name: "banner.jpg"}},
		content: map[string][]byte{"h1": content},
	}
	store := newFakeStore()
	db := newFakeDB()
	sy := newTestSyncer(src, store, db, Config{})

	if !sy.SyncHero(context.Background()) {
		t.Fatal("Sync failed")
	}

	entry := db.ledgers["hero"].Entries["hero_images/h1.jpg"]
	if entry.Fingerprint == "" {
		t.Fatal("Expected content fingerprint recorded in ledger")
	}
	if !bytes.Equal(store.blobs["hero_images/h1.jpg"], content) {
		t.Fatal("Stored content mismatch")
	}
}
