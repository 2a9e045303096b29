package db

// EventsChannel is the LISTEN/NOTIFY channel for store events. Operators can
// also request an immediate cycle with:
//
//	SELECT pg_notify('rocketpush_events', '{"event":"check"}');
const EventsChannel = "rocketpush_events"

// schema is applied by Migrate. Idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS shows (
  id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
  label      TEXT NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS users (
  id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
  notify_new_shows BOOLEAN NOT NULL DEFAULT false,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_notify_new_shows ON users(id) WHERE notify_new_shows;
CREATE TABLE IF NOT EXISTS show_subscriptions (
  show_id TEXT NOT NULL REFERENCES shows(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  kind    TEXT NOT NULL CHECK (kind IN ('live','premiere','replay')),
  enabled BOOLEAN NOT NULL DEFAULT true,
  PRIMARY KEY (show_id, user_id, kind)
);
CREATE TABLE IF NOT EXISTS user_tokens (
  user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  token_id   TEXT NOT NULL DEFAULT gen_random_uuid()::text,
  token      TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (user_id, token_id)
);
CREATE INDEX IF NOT EXISTS idx_user_tokens_token ON user_tokens(token);
CREATE TABLE IF NOT EXISTS notifications_sent (
  entry_id   TEXT PRIMARY KEY,
  show_label TEXT NOT NULL DEFAULT '',
  sent_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_sent_at ON notifications_sent(sent_at);

CREATE OR REPLACE FUNCTION rocketpush_shows_changed() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify('` + EventsChannel + `', '{"event":"shows_changed"}');
  RETURN NULL;
END;
$$ LANGUAGE plpgsql;
DROP TRIGGER IF EXISTS trg_shows_changed ON shows;
CREATE TRIGGER trg_shows_changed AFTER INSERT OR UPDATE OR DELETE ON shows
  FOR EACH STATEMENT EXECUTE FUNCTION rocketpush_shows_changed();
DROP TRIGGER IF EXISTS trg_show_subscriptions_changed ON show_subscriptions;
CREATE TRIGGER trg_show_subscriptions_changed AFTER INSERT OR UPDATE OR DELETE ON show_subscriptions
  FOR EACH STATEMENT EXECUTE FUNCTION rocketpush_shows_changed();
`
