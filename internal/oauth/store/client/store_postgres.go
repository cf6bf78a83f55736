package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	"stride/pkg/platform/sentinel"
	txcontext "stride/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists clients in the clients table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Client) error {
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO clients (id, client_id, client_secret, redirect_uris)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, c.ID.String(), c.ClientID, c.SecretHash, pq.Array(c.RedirectURIs)).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("client %s already registered: %w", c.ClientID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	return s.findOne(ctx, `
		SELECT id, client_id, client_secret, redirect_uris, created_at, updated_at
		FROM clients WHERE id = $1
	`, clientID.String())
}

func (s *PostgresStore) FindByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	return s.findOne(ctx, `
		SELECT id, client_id, client_secret, redirect_uris, created_at, updated_at
		FROM clients WHERE client_id = $1
	`, clientID)
}

func (s *PostgresStore) Delete(ctx context.Context, clientID id.ClientID) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, clientID.String())
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete client rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Client, error) {
	var (
		c        models.Client
		rawID    string
		redirect []string
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, arg).
		Scan(&rawID, &c.ClientID, &c.SecretHash, pq.Array(&redirect), &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("client not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find client: %w", err)
	}
	parsed, err := id.ParseClientID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse client id: %w", err)
	}
	c.ID = parsed
	c.RedirectURIs = redirect
	return &c, nil
}
