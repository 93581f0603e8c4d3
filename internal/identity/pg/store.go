// Package pg implementa el Principal Store sobre Postgres (pgx).
package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/restin-ai/authcore/internal/identity"
)

type Store struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const principalCols = `
	id, venue_id, role, display_name, email, linked_emails,
	federated_subject, provider, avatar_url, pin_hash, password_hash,
	allowed_venue_ids, default_venue_id, last_login_at, created_at
`

func (s *Store) FindByID(ctx context.Context, id string) (*identity.Principal, error) {
	const query = `SELECT ` + principalCols + ` FROM principal WHERE id = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, id))
}

func (s *Store) FindByFederatedSubject(ctx context.Context, sub string) (*identity.Principal, error) {
	const query = `SELECT ` + principalCols + ` FROM principal WHERE federated_subject = $1 LIMIT 1`
	return s.scanOne(s.pool.QueryRow(ctx, query, sub))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	const query = `SELECT ` + principalCols + ` FROM principal WHERE lower(email) = lower($1) LIMIT 1`
	return s.scanOne(s.pool.QueryRow(ctx, query, email))
}

func (s *Store) FindByLinkedEmail(ctx context.Context, email string) (*identity.Principal, error) {
	const query = `
		SELECT ` + principalCols + `
		FROM principal
		WHERE EXISTS (
			SELECT 1 FROM unnest(linked_emails) le WHERE lower(le) = lower($1)
		)
		LIMIT 1
	`
	return s.scanOne(s.pool.QueryRow(ctx, query, email))
}

func (s *Store) UpdateOnFederatedLogin(ctx context.Context, principalID string, login identity.FederatedLogin) error {
	// Upsert idempotente de los campos del login federado: linked_emails
	// acumula sin duplicar, avatar solo pisa si viene informado.
	const query = `
		UPDATE principal SET
			federated_subject = $2,
			provider          = COALESCE(NULLIF($3, ''), provider),
			avatar_url        = COALESCE(NULLIF($4, ''), avatar_url),
			linked_emails     = CASE
				WHEN $5 = '' OR $5 ILIKE ANY(linked_emails) THEN linked_emails
				ELSE array_append(linked_emails, $5)
			END,
			last_login_at     = $6
		WHERE id = $1
	`
	avatar := ""
	if login.AvatarURL != nil {
		avatar = *login.AvatarURL
	}
	tag, err := s.pool.Exec(ctx, query,
		principalID, login.FederatedSubject, login.Provider, avatar, login.Email, login.LastLoginAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return identity.ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *Store) ClearFederatedSubject(ctx context.Context, principalID string) error {
	const query = `
		UPDATE principal SET
			federated_subject = NULL,
			provider = CASE WHEN pin_hash IS NOT NULL OR password_hash IS NOT NULL
				THEN 'local' ELSE provider END
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, principalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

// Insert da de alta un principal. Lo usa el seed tool, no el core.
func (s *Store) Insert(ctx context.Context, p *identity.Principal) error {
	const query = `
		INSERT INTO principal (
			id, venue_id, role, display_name, email, linked_emails,
			federated_subject, provider, avatar_url, pin_hash, password_hash,
			allowed_venue_ids, default_venue_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
	`
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.VenueID, p.Role, p.DisplayName, p.Email, p.LinkedEmails,
		p.FederatedSubject, p.Provider, p.AvatarURL, p.PINHash, p.PasswordHash,
		p.AllowedVenueIDs, p.DefaultVenueID)
	return err
}

func (s *Store) scanOne(row pgx.Row) (*identity.Principal, error) {
	var p identity.Principal
	err := row.Scan(
		&p.ID, &p.VenueID, &p.Role, &p.DisplayName, &p.Email, &p.LinkedEmails,
		&p.FederatedSubject, &p.Provider, &p.AvatarURL, &p.PINHash, &p.PasswordHash,
		&p.AllowedVenueIDs, &p.DefaultVenueID, &p.LastLoginAt, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
