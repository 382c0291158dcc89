package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create chats and messages",
		SQL: `
			CREATE TABLE chats (
				id          TEXT PRIMARY KEY,
				title       TEXT NOT NULL DEFAULT '',
				bot_id      TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE messages (
				chat_id     TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
				position    INTEGER NOT NULL,
				body        TEXT NOT NULL,
				PRIMARY KEY (chat_id, position)
			);
		`,
	},
	{
		Version: 2,
		Name:    "create attachment blobs",
		SQL: `
			CREATE TABLE attachments (
				key           TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				content_type  TEXT NOT NULL DEFAULT '',
				content       BLOB NOT NULL,
				created_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
