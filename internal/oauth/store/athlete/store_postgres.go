package athlete

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

// PostgresStore persists athletes in the athletes table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Athlete) error {
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO athletes (id, user_name, password)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, a.ID.String(), a.UserName, a.PasswordHash).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("athlete %s already exists: %w", a.UserName, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert athlete: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, athleteID id.AthleteID) (*models.Athlete, error) {
	return s.findOne(ctx, `
		SELECT id, user_name, password, created_at, updated_at
		FROM athletes WHERE id = $1
	`, athleteID.String())
}

func (s *PostgresStore) FindByUserName(ctx context.Context, userName string) (*models.Athlete, error) {
	return s.findOne(ctx, `
		SELECT id, user_name, password, created_at, updated_at
		FROM athletes WHERE user_name = $1
	`, userName)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Athlete, error) {
	var (
		a     models.Athlete
		rawID string
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, arg).
		Scan(&rawID, &a.UserName, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("athlete not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find athlete: %w", err)
	}
	parsed, err := id.ParseAthleteID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse athlete id: %w", err)
	}
	a.ID = parsed
	return &a, nil
}
