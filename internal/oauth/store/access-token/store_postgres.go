package accesstoken

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

// PostgresStore persists access tokens. athlete_id is NULL for tokens
// minted by the client-credentials grant.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, token *models.AccessToken) error {
	var athleteID sql.NullString
	if token.AthleteID != nil {
		athleteID = sql.NullString{String: token.AthleteID.String(), Valid: true}
	}
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO access_tokens (token, client_id, athlete_id)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, token.Token, token.ClientID.String(), athleteID).Scan(&token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("access token collision: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*models.AccessToken, error) {
	var (
		rec       models.AccessToken
		rawClient string
		rawAthl   sql.NullString
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT token, client_id, athlete_id, created_at, updated_at
		FROM access_tokens WHERE token = $1
	`, token).Scan(&rec.Token, &rawClient, &rawAthl, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("access token not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find access token: %w", err)
	}
	if rec.ClientID, err = id.ParseClientID(rawClient); err != nil {
		return nil, fmt.Errorf("parse client id: %w", err)
	}
	if rawAthl.Valid {
		athleteID, err := id.ParseAthleteID(rawAthl.String)
		if err != nil {
			return nil, fmt.Errorf("parse athlete id: %w", err)
		}
		rec.AthleteID = &athleteID
	}
	return &rec, nil
}
