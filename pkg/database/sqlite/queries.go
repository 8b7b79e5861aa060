package sqlite

const (
	GetDomainLastSync = `SELECT last_sync FROM sync_domains WHERE domain = ?;`
	UpsertDomain      = `INSERT INTO sync_domains ("domain", "last_sync") VALUES (?, ?)
ON CONFLICT("domain") DO UPDATE SET last_sync = excluded.last_sync;`
	GetDomainEntries   = `SELECT pathname, remote_id, fingerprint FROM sync_entries WHERE domain = ?;`
	ClearDomainEntries = `DELETE FROM sync_entries WHERE domain = ?;`
	InsertDomainEntry  = `INSERT INTO sync_entries ("domain", "pathname", "remote_id", "fingerprint") VALUES (?, ?, ?, ?);`

	InsertClient        = `INSERT INTO clients ("username", "password_hash", "folder_id", "created_date") VALUES (?, ?, ?, ?) RETURNING "id";`
	GetClientByID       = `SELECT id, username, password_hash, folder_id, created_date FROM clients WHERE id = ?;`
	GetClientByUsername = `SELECT id, username, password_hash, folder_id, created_date FROM clients WHERE username = ?;`
	ListAllClients      = `SELECT id, username, password_hash, folder_id, created_date FROM clients ORDER BY username;`
	SetClientFolder     = `UPDATE clients SET folder_id = ? WHERE id = ?;`
	SetClientUsername   = `UPDATE clients SET username = ? WHERE id = ?;`
	RemoveClient        = `DELETE FROM clients WHERE id = ?;`
)
