package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Timestamps are stored as epoch milliseconds. Nested values that are only
// ever read and written with their parent (locations, recurrence, cost split,
// cancelled dates, notification payloads, chat readers, template defaults)
// are stored as JSON text.
const schema = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    creator_id TEXT NOT NULL,
    locations TEXT NOT NULL DEFAULT '[]',
    start_ms INTEGER NOT NULL,
    end_ms INTEGER NOT NULL,
    all_day INTEGER NOT NULL DEFAULT 0,
    time_zone TEXT NOT NULL DEFAULT '',
    is_recurring INTEGER NOT NULL DEFAULT 0,
    recurrence TEXT,
    status TEXT NOT NULL,
    cost_total REAL NOT NULL DEFAULT 0,
    cost_type TEXT NOT NULL DEFAULT 'equal',
    cost_per_user TEXT NOT NULL DEFAULT '{}',
    cancelled TEXT NOT NULL DEFAULT '[]',
    chat_id TEXT NOT NULL DEFAULT '',
    created_ms INTEGER NOT NULL,
    updated_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS event_invites (
    event_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    status TEXT NOT NULL,
    roles TEXT NOT NULL DEFAULT '[]',
    cost REAL,
    responded_ms INTEGER,
    PRIMARY KEY (event_id, user_id),
    FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS friends (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    friend_id TEXT NOT NULL,
    status TEXT NOT NULL,
    created_ms INTEGER NOT NULL,
    UNIQUE (user_id, friend_id)
);

CREATE TABLE IF NOT EXISTS friend_groups (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    color TEXT NOT NULL,
    created_ms INTEGER NOT NULL,
    updated_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS friend_group_members (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    group_id TEXT NOT NULL,
    friend_id TEXT NOT NULL,
    UNIQUE (group_id, friend_id),
    FOREIGN KEY (group_id) REFERENCES friend_groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS budgets (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    month TEXT NOT NULL,
    limit_amount REAL NOT NULL DEFAULT 0,
    spent REAL NOT NULL DEFAULT 0,
    created_ms INTEGER NOT NULL,
    updated_ms INTEGER NOT NULL,
    UNIQUE (user_id, month)
);

CREATE TABLE IF NOT EXISTS budget_events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    budget_id TEXT NOT NULL,
    event_id TEXT NOT NULL,
    event_title TEXT NOT NULL,
    cost REAL NOT NULL,
    date_ms INTEGER NOT NULL,
    FOREIGN KEY (budget_id) REFERENCES budgets(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}',
    read INTEGER NOT NULL DEFAULT 0,
    created_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL UNIQUE,
    participants TEXT NOT NULL DEFAULT '[]',
    created_ms INTEGER NOT NULL,
    updated_ms INTEGER NOT NULL,
    FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL,
    sender_id TEXT NOT NULL,
    content TEXT NOT NULL,
    read_by TEXT NOT NULL DEFAULT '[]',
    sent_ms INTEGER NOT NULL,
    FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS event_templates (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    default_duration INTEGER NOT NULL,
    default_locations TEXT NOT NULL DEFAULT '[]',
    default_roles TEXT NOT NULL DEFAULT '[]',
    creator_id TEXT NOT NULL,
    is_public INTEGER NOT NULL DEFAULT 0,
    created_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
    user_id TEXT PRIMARY KEY,
    language TEXT NOT NULL,
    notify_new_invite INTEGER NOT NULL,
    notify_event_update INTEGER NOT NULL,
    notify_chat_message INTEGER NOT NULL,
    notify_event_reminder INTEGER NOT NULL,
    default_calendar_view TEXT NOT NULL,
    timezone TEXT NOT NULL DEFAULT '',
    updated_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_creator_id ON events(creator_id);
CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
CREATE INDEX IF NOT EXISTS idx_event_invites_user_id ON event_invites(user_id);
CREATE INDEX IF NOT EXISTS idx_friends_friend_id ON friends(friend_id);
CREATE INDEX IF NOT EXISTS idx_friend_groups_user_id ON friend_groups(user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_budget_events_event ON budget_events(budget_id, event_id);
CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id, created_ms);
CREATE INDEX IF NOT EXISTS idx_chat_messages_chat_id ON chat_messages(chat_id, sent_ms);
CREATE INDEX IF NOT EXISTS idx_event_templates_creator_id ON event_templates(creator_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
