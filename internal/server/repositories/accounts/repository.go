// Package accounts resolves and stores account identities. It is the only
// component of the authentication core that performs I/O.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
)

// Repository is the identity resolver contract.
//
// Lookups return common.ErrorNotFound when nothing matches; any other error
// means the query itself failed and must not be read as "absent".
type Repository interface {
	ExistsBy(ctx context.Context, field models.Field, value string) (bool, error)
	FindByExternalID(ctx context.Context, providerUserID string) (*models.AccountRef, error)
	FindForLogin(ctx context.Context, kind models.IdentifierKind, value string) (*models.LoginView, error)
	GetWithProfile(ctx context.Context, accountID string) (*models.AccountWithProfile, error)
	Create(ctx context.Context, account *models.Account) error
}
