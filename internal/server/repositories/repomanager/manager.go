package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/fitaccounts/internal/dbx"
	"github.com/dmitrijs2005/fitaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/fitaccounts/internal/server/repositories/profiles"
)

// RepositoryManager vends repositories bound to a connection or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Profiles(db dbx.DBTX) profiles.Repository
}
