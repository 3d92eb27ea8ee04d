package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS organizations (
    id        TEXT PRIMARY KEY,
    name      TEXT NOT NULL,
    plan      TEXT NOT NULL DEFAULT 'free' CHECK (plan IN ('free', 'team', 'enterprise')),
    is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS users (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    email           TEXT NOT NULL,
    role            TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    locale          TEXT NOT NULL DEFAULT '',
    organization_id TEXT NOT NULL DEFAULT '',
    password_hash   TEXT NOT NULL DEFAULT '',
    email_verified  INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS companies (
    id                  TEXT PRIMARY KEY,
    legal_name          TEXT NOT NULL,
    brand_name          TEXT NOT NULL DEFAULT '',
    registration_number TEXT NOT NULL DEFAULT '',
    tax_id              TEXT NOT NULL DEFAULT '',
    vat_number          TEXT NOT NULL DEFAULT '',
    currency            TEXT NOT NULL DEFAULT '',
    timezone            TEXT NOT NULL DEFAULT '',
    organization_id     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS warehouses (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    code            TEXT NOT NULL,
    is_active       INTEGER NOT NULL DEFAULT 1,
    company_id      TEXT NOT NULL DEFAULT '',
    organization_id TEXT NOT NULL DEFAULT '',
    address         TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_warehouses_code ON warehouses(code COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS uom (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    category      TEXT NOT NULL CHECK (category IN ('unit', 'weight', 'volume', 'length', 'time')),
    is_base       INTEGER NOT NULL DEFAULT 0,
    ratio_to_base TEXT NOT NULL DEFAULT '1'
);

CREATE TABLE IF NOT EXISTS products (
    id            TEXT PRIMARY KEY,
    sku           TEXT NOT NULL,
    name          TEXT NOT NULL,
    tracking      TEXT NOT NULL DEFAULT 'none' CHECK (tracking IN ('none', 'lot', 'serial')),
    base_uom_id   TEXT NOT NULL DEFAULT '',
    pack_uom_id   TEXT NOT NULL DEFAULT '',
    standard_cost TEXT NOT NULL DEFAULT '0',
    active        INTEGER NOT NULL DEFAULT 1,
    has_image     INTEGER NOT NULL DEFAULT 0,
    image         BLOB,
    image_mime    TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku ON products(sku COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS lots (
    id               TEXT PRIMARY KEY,
    product_id       TEXT NOT NULL,
    lot_number       TEXT NOT NULL,
    manufacture_date TEXT NOT NULL DEFAULT '',
    expiration_date  TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'released', 'quarantined', 'expired')),
    qc_state         TEXT NOT NULL DEFAULT 'pending' CHECK (qc_state IN ('pending', 'passed', 'failed'))
);

CREATE TABLE IF NOT EXISTS invitations (
    id              TEXT PRIMARY KEY,
    email           TEXT NOT NULL,
    role            TEXT NOT NULL CHECK (role IN ('admin', 'manager', 'user')),
    status          TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'revoked', 'expired')),
    sender_id       TEXT NOT NULL DEFAULT '',
    organization_id TEXT NOT NULL DEFAULT '',
    expires_at      DATETIME,
    used_at         DATETIME
);

CREATE TABLE IF NOT EXISTS account_tokens (
    token_hash TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    purpose    TEXT NOT NULL CHECK (purpose IN ('refresh', 'verify_email', 'reset_password')),
    expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_account_tokens_user ON account_tokens(user_id, purpose);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sqlx.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
