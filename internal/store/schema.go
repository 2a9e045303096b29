package store

// sqliteSchema mirrors the Postgres schema in internal/db. Booleans are 0/1
// integers and timestamps unix seconds.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS shows (
  id         TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  label      TEXT NOT NULL UNIQUE,
  created_at INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE TABLE IF NOT EXISTS users (
  id               TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  notify_new_shows INTEGER NOT NULL DEFAULT 0 CHECK (notify_new_shows IN (0,1)),
  created_at       INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE TABLE IF NOT EXISTS show_subscriptions (
  show_id TEXT NOT NULL REFERENCES shows(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  kind    TEXT NOT NULL CHECK (kind IN ('live','premiere','replay')),
  enabled INTEGER NOT NULL DEFAULT 1 CHECK (enabled IN (0,1)),
  PRIMARY KEY (show_id, user_id, kind)
);
CREATE TABLE IF NOT EXISTS user_tokens (
  user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  token_id   TEXT NOT NULL DEFAULT (lower(hex(randomblob(16)))),
  token      TEXT NOT NULL,
  created_at INTEGER NOT NULL DEFAULT (unixepoch()),
  PRIMARY KEY (user_id, token_id)
);
CREATE INDEX IF NOT EXISTS idx_user_tokens_token ON user_tokens(token);
CREATE TABLE IF NOT EXISTS notifications_sent (
  entry_id   TEXT PRIMARY KEY,
  show_label TEXT NOT NULL DEFAULT '',
  sent_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_sent_at ON notifications_sent(sent_at);
`
