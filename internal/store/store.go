// Package store persists OAuth credentials in a per-user SQLite database so
// restarts do not force a fresh login.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/strumcli/strum/internal/shared"
	"golang.org/x/oauth2"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	access_token TEXT NOT NULL,
	token_type TEXT NOT NULL DEFAULT 'Bearer',
	refresh_token TEXT NOT NULL,
	expiry TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// CredentialStore reads and writes the single credential record.
type CredentialStore struct {
	db *sql.DB
}

// Open opens (or creates) the credential database at path and ensures the schema.
func Open(path string) (*CredentialStore, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create credentials schema: %w", err)
	}

	return &CredentialStore{db: db}, nil
}

// Close closes the underlying database.
func (s *CredentialStore) Close() error {
	return s.db.Close()
}

// Save upserts the credential record. Called after every successful refresh
// or initial authorization.
func (s *CredentialStore) Save(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidInput)
	}

	query := `
	INSERT INTO credentials (id, access_token, token_type, refresh_token, expiry, updated_at)
	VALUES (1, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		access_token = excluded.access_token,
		token_type = excluded.token_type,
		refresh_token = excluded.refresh_token,
		expiry = excluded.expiry,
		updated_at = excluded.updated_at;`

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	if _, err := s.db.ExecContext(ctx, query,
		tok.AccessToken, tokenType, tok.RefreshToken, tok.Expiry.UTC(), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Load reads the stored credential. Returns [shared.ErrNotAuthorized] when no
// credential has ever been saved.
func (s *CredentialStore) Load(ctx context.Context) (*oauth2.Token, error) {
	query := `SELECT access_token, token_type, refresh_token, expiry FROM credentials WHERE id = 1;`

	var tok oauth2.Token
	row := s.db.QueryRowContext(ctx, query)
	if err := row.Scan(&tok.AccessToken, &tok.TokenType, &tok.RefreshToken, &tok.Expiry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotAuthorized
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	return &tok, nil
}

// Clear removes the stored credential (used when the session is revoked).
func (s *CredentialStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = 1;`); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
