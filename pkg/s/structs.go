package s

import "time"

// RemoteFile is a file in the remote content source. ID is stable across
// renames, Name determines the cache path and file extension.
type RemoteFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CachedBlob is a stored copy of a remote file in the cache store.
type CachedBlob struct {
	Pathname string `json:"pathname"`
	URL      string `json:"url"`
}

// SyncLedgerEntry records which remote file version backs a cached path.
type SyncLedgerEntry struct {
	Pathname    string `json:"pathname"`
	RemoteID    string `json:"remoteId"`
	Fingerprint string `json:"fingerprint"`
}

// SyncLedger is the persisted sync state for one domain (hero images or a
// single portfolio category).
type SyncLedger struct {
	LastSync time.Time
	Entries  map[string]SyncLedgerEntry
}

// NewSyncLedger returns an empty ledger, used when a domain has never been
// synced before.
func NewSyncLedger() SyncLedger {
	return SyncLedger{Entries: make(map[string]SyncLedgerEntry)}
}

// SyncReport summarises a single reconciliation run.
type SyncReport struct {
	Domain    string
	Uploaded  int
	Deleted   int
	Unchanged int
	Failed    int
}

// Client is a gallery client with password-gated access to their own
// remote folder.
type Client struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	FolderID     string `json:"folderId"`
	CreatedDate  string `json:"createdDate"` // 2021-11-02T23:02:58Z
}
