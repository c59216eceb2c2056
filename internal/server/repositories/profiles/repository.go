// Package profiles stores the fitness profile attached to an account.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, profile *models.Profile) error
}
