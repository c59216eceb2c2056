package profiles

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/dbx"
	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the profile; an account holds at most one, a second insert
// yields *common.ConflictError{Field: "user_id"}.
func (r *PostgresRepository) Create(ctx context.Context, profile *models.Profile) error {
	query :=
		`INSERT INTO profiles (user_id, age, height, weight, goal)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		profile.UserID, profile.Age, profile.Height, profile.Weight, profile.Goal).Scan(&profile.CreatedAt)

	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok && constraint == "profiles_pkey" {
			return &common.ConflictError{Field: "user_id"}
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
