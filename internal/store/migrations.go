package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	super_admin   INTEGER NOT NULL DEFAULT 0 CHECK(super_admin IN (0, 1)),
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS workspaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	slug       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS members (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	display_name TEXT NOT NULL,
	role         TEXT NOT NULL DEFAULT 'member' CHECK(role IN ('admin', 'member')),
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(workspace_id, user_id)
);

CREATE TABLE IF NOT EXISTS services (
	id                      TEXT PRIMARY KEY,
	workspace_id            TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	name                    TEXT NOT NULL,
	description             TEXT NOT NULL DEFAULT '',
	is_routinary            INTEGER NOT NULL DEFAULT 0 CHECK(is_routinary IN (0, 1)),
	routinary_frequency     TEXT CHECK(routinary_frequency IN ('daily', 'weekly', 'monthly')),
	routinary_start_date    DATETIME,
	routinary_next_run_date DATETIME,
	routinary_last_run_date DATETIME,
	checklist_template      TEXT NOT NULL DEFAULT '[]',
	created_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS task_counter (
	id    INTEGER PRIMARY KEY CHECK(id = 1),
	value INTEGER NOT NULL
);
INSERT INTO task_counter (id, value) VALUES (1, 0);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	service_id   TEXT REFERENCES services(id) ON DELETE SET NULL,
	number       INTEGER NOT NULL UNIQUE,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'BACKLOG'
		CHECK(status IN ('BACKLOG', 'TODO', 'IN_PROGRESS', 'IN_REVIEW', 'DONE', 'ARCHIVED')),
	assignee_id  TEXT REFERENCES members(id) ON DELETE SET NULL,
	reviewer_id  TEXT REFERENCES members(id) ON DELETE SET NULL,
	due_date     DATETIME,
	overdue      INTEGER NOT NULL DEFAULT 0 CHECK(overdue IN (0, 1)),
	created_by   TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS checklist_items (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	checked    INTEGER NOT NULL DEFAULT 0 CHECK(checked IN (0, 1)),
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS task_messages (
	id           TEXT PRIMARY KEY,
	task_id      TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	workspace_id TEXT NOT NULL,
	author_id    TEXT NOT NULL,
	content      TEXT NOT NULL,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	type         TEXT NOT NULL
		CHECK(type IN ('MENTION', 'TASK_ASSIGNED', 'REVIEWER_ASSIGNED', 'SYSTEM')),
	title        TEXT NOT NULL,
	message      TEXT NOT NULL,
	task_id      TEXT,
	message_id   TEXT,
	mentioner_id TEXT,
	read         INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	read_at      DATETIME,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id           TEXT PRIMARY KEY,
	task_id      TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	workspace_id TEXT NOT NULL,
	file_name    TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size_bytes   INTEGER NOT NULL DEFAULT 0,
	storage_key  TEXT NOT NULL,
	uploaded_by  TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_members_workspace ON members(workspace_id);
CREATE INDEX IF NOT EXISTS idx_services_workspace ON services(workspace_id);
CREATE INDEX IF NOT EXISTS idx_services_next_run
	ON services(routinary_next_run_date) WHERE is_routinary = 1;
CREATE INDEX IF NOT EXISTS idx_tasks_workspace ON tasks(workspace_id);
CREATE INDEX IF NOT EXISTS idx_tasks_service ON tasks(service_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
CREATE INDEX IF NOT EXISTS idx_messages_task ON task_messages(task_id);
CREATE INDEX IF NOT EXISTS idx_notifications_recipient
	ON notifications(recipient_id, workspace_id);
CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);
CREATE INDEX IF NOT EXISTS idx_attachments_task ON attachments(task_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_tasks_overdue_sweep
	ON tasks(overdue, status, due_date);

CREATE INDEX IF NOT EXISTS idx_notifications_task
	ON notifications(task_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
