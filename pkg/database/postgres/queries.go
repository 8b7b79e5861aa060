package postgres

const (
	GetDomainLastSync = `SELECT last_sync FROM sync_domains WHERE domain = $1;`
	UpsertDomain      = `INSERT INTO sync_domains ("domain", "last_sync") VALUES ($1, $2)
ON CONFLICT ("domain") DO UPDATE SET last_sync = excluded.last_sync;`
	GetDomainEntries   = `SELECT pathname, remote_id, fingerprint FROM sync_entries WHERE domain = $1;`
	ClearDomainEntries = `DELETE FROM sync_entries WHERE domain = $1;`
	InsertDomainEntry  = `INSERT INTO sync_entries ("domain", "pathname", "remote_id", "fingerprint") VALUES ($1, $2, $3, $4);`

	InsertClient        = `INSERT INTO clients ("username", "password_hash", "folder_id", "created_date") VALUES ($1, $2, $3, $4) RETURNING "id";`
	GetClientByID       = `SELECT id, username, password_hash, folder_id, created_date FROM clients WHERE id = $1;`
	GetClientByUsername = `SELECT id, username, password_hash, folder_id, created_date FROM clients WHERE username = $1;`
	ListAllClients      = `SELECT id, username, password_hash, folder_id, created_date FROM clients ORDER BY username;`
	SetClientFolder     = `UPDATE clients SET folder_id = $1 WHERE id = $2;`
	SetClientUsername   = `UPDATE clients SET username = $1 WHERE id = $2;`
	RemoveClient        = `DELETE FROM clients WHERE id = $1;`
)
