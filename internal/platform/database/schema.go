package database

import (
	"database/sql"
	"fmt"
)

// Migrate applies the schema. Idempotent: every statement uses IF NOT EXISTS
// or ON CONFLICT DO NOTHING, so it is safe to run on every startup.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL,
    email         TEXT NOT NULL,
    first_name    TEXT NOT NULL DEFAULT '',
    last_name     TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_users_username ON users (username);
CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users (email);

CREATE TABLE IF NOT EXISTS roles (
    name TEXT PRIMARY KEY
);

INSERT INTO roles (name) VALUES ('USER'), ('ADMIN') ON CONFLICT DO NOTHING;

CREATE TABLE IF NOT EXISTS user_roles (
    user_id   TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    role_name TEXT NOT NULL REFERENCES roles (name),
    PRIMARY KEY (user_id, role_name)
);

CREATE TABLE IF NOT EXISTS polls (
    id                   BIGSERIAL PRIMARY KEY,
    question             TEXT NOT NULL,
    expiration_date_time TIMESTAMPTZ NOT NULL,
    created_by           TEXT NOT NULL REFERENCES users (id),
    updated_by           TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_polls_created_by ON polls (created_by);
CREATE INDEX IF NOT EXISTS idx_polls_created_at ON polls (created_at DESC);

CREATE TABLE IF NOT EXISTS choices (
    id      BIGSERIAL PRIMARY KEY,
    poll_id BIGINT NOT NULL REFERENCES polls (id) ON DELETE CASCADE,
    text    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_choices_poll_id ON choices (poll_id);

CREATE TABLE IF NOT EXISTS votes (
    id         BIGSERIAL PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users (id),
    poll_id    BIGINT NOT NULL REFERENCES polls (id) ON DELETE CASCADE,
    choice_id  BIGINT NOT NULL REFERENCES choices (id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_votes_user_poll UNIQUE (user_id, poll_id)
);

CREATE INDEX IF NOT EXISTS idx_votes_user_created ON votes (user_id, created_at DESC);
`
