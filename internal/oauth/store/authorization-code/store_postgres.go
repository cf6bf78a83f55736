package authorizationcode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	"stride/pkg/platform/sentinel"
	txcontext "stride/pkg/platform/tx"
)

// PostgresStore persists authorization codes. Delete is a conditional
// DELETE whose rows-affected count is the single-use linearization point.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, authCode *models.AuthorizationCode) error {
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO authorization_codes (code, client_id, athlete_id, redirect_uri)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, authCode.Code, authCode.ClientID.String(), authCode.AthleteID.String(), authCode.RedirectURI).
		Scan(&authCode.CreatedAt, &authCode.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("authorization code collision: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert authorization code: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	var (
		rec                 models.AuthorizationCode
		rawClient, rawAthl string
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT code, client_id, athlete_id, redirect_uri, created_at, updated_at
		FROM authorization_codes WHERE code = $1
	`, code).Scan(&rec.Code, &rawClient, &rawAthl, &rec.RedirectURI, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find authorization code: %w", err)
	}
	if rec.ClientID, err = id.ParseClientID(rawClient); err != nil {
		return nil, fmt.Errorf("parse client id: %w", err)
	}
	if rec.AthleteID, err = id.ParseAthleteID(rawAthl); err != nil {
		return nil, fmt.Errorf("parse athlete id: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, code string) error {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `DELETE FROM authorization_codes WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete authorization code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete authorization code rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("authorization code not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `DELETE FROM authorization_codes WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired authorization codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired authorization codes rows affected: %w", err)
	}
	return int(n), nil
}
