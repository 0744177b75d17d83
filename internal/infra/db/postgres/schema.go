package postgres

// Schema is the DDL applied by cmd/seed. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id               UUID PRIMARY KEY,
    telegram_id      BIGINT NOT NULL UNIQUE,
    username         TEXT NOT NULL DEFAULT '',
    role             TEXT NOT NULL DEFAULT 'free',
    is_premium       BOOLEAN NOT NULL DEFAULT FALSE,
    premium_until    TIMESTAMPTZ,
    is_sudo          BOOLEAN NOT NULL DEFAULT FALSE,
    banned           BOOLEAN NOT NULL DEFAULT FALSE,
    ban_reason       TEXT NOT NULL DEFAULT '',
    first_seen_at    TIMESTAMPTZ NOT NULL,
    last_active_at   TIMESTAMPTZ NOT NULL,
    notify_on_view   BOOLEAN NOT NULL DEFAULT TRUE,
    protect_content  BOOLEAN NOT NULL DEFAULT FALSE,
    show_forward_tag BOOLEAN NOT NULL DEFAULT TRUE,
    shares_created   BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS shares (
    id                TEXT PRIMARY KEY,
    access_token      TEXT,
    sender_id         BIGINT NOT NULL,
    recipient_id      BIGINT NOT NULL DEFAULT 0,
    scope             TEXT NOT NULL,
    kind              TEXT NOT NULL,
    origin_chat_id    BIGINT NOT NULL DEFAULT 0,
    origin_msg_id     INTEGER NOT NULL DEFAULT 0,
    payload           TEXT NOT NULL DEFAULT '',
    protected         BOOLEAN NOT NULL DEFAULT FALSE,
    show_forward_tag  BOOLEAN NOT NULL DEFAULT FALSE,
    status            TEXT NOT NULL DEFAULT 'active',
    created_at        TIMESTAMPTZ NOT NULL,
    expires_at        TIMESTAMPTZ,
    destruct_mins     INTEGER NOT NULL DEFAULT 0,
    view_count        INTEGER NOT NULL DEFAULT 0,
    max_views         INTEGER NOT NULL DEFAULT 0,
    viewed_at         TIMESTAMPTZ,
    viewed_by         BIGINT NOT NULL DEFAULT 0,
    delivered_chat_id BIGINT NOT NULL DEFAULT 0,
    delivered_msg_id  INTEGER NOT NULL DEFAULT 0,
    destruct_at       TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS shares_access_token_idx
    ON shares (access_token) WHERE access_token IS NOT NULL;
CREATE INDEX IF NOT EXISTS shares_sender_created_idx
    ON shares (sender_id, created_at DESC);
CREATE INDEX IF NOT EXISTS shares_status_idx ON shares (status);
CREATE INDEX IF NOT EXISTS shares_expires_idx
    ON shares (expires_at) WHERE expires_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS shares_destruct_idx
    ON shares (destruct_at) WHERE destruct_at IS NOT NULL;
`
