package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/dbx"
	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
)

// constraint name -> conflicting field, see migrations/00001_create_accounts.sql
var uniqueConstraints = map[string]models.Field{
	"accounts_pkey":            models.FieldAccountID,
	"accounts_email_key":       models.FieldEmail,
	"accounts_phone_key":       models.FieldPhone,
	"accounts_nickname_key":    models.FieldNickname,
	"accounts_external_id_key": models.FieldExternalID,
}

var existsQueries = map[models.Field]string{
	models.FieldEmail:     `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`,
	models.FieldPhone:     `SELECT EXISTS(SELECT 1 FROM accounts WHERE phone = $1)`,
	models.FieldNickname:  `SELECT EXISTS(SELECT 1 FROM accounts WHERE nickname = $1)`,
	models.FieldAccountID: `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`,
}

var loginQueries = map[models.IdentifierKind]string{
	models.IdentifierEmail: `SELECT id, email, phone, nickname, password_hash, external_id FROM accounts
		 WHERE email = $1
		 `,
	models.IdentifierPhone: `SELECT id, email, phone, nickname, password_hash, external_id FROM accounts
		 WHERE phone = $1
		 `,
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ExistsBy(ctx context.Context, field models.Field, value string) (bool, error) {
	query, ok := existsQueries[field]
	if !ok {
		return false, fmt.Errorf("exists by unsupported field %q", field)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) FindByExternalID(ctx context.Context, providerUserID string) (*models.AccountRef, error) {
	query :=
		`SELECT id, nickname FROM accounts
		 WHERE external_id = $1
		 `

	ref := &models.AccountRef{}
	err := r.db.QueryRowContext(ctx, query, providerUserID).Scan(&ref.ID, &ref.Nickname)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ref, nil
}

func (r *PostgresRepository) FindForLogin(ctx context.Context, kind models.IdentifierKind, value string) (*models.LoginView, error) {
	query, ok := loginQueries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedIdentifier, kind)
	}

	var (
		view       models.LoginView
		hash       sql.NullString
		externalID sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, value).
		Scan(&view.AccountID, &view.Email, &view.Phone, &view.Nickname, &hash, &externalID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	view.PasswordHash = hash.String
	view.ExternalID = externalID.String

	return &view, nil
}

func (r *PostgresRepository) GetWithProfile(ctx context.Context, accountID string) (*models.AccountWithProfile, error) {
	query :=
		`SELECT a.id, a.email, a.phone, a.nickname, p.age, p.height, p.weight, p.goal, p.created_at
		 FROM accounts a
		 LEFT JOIN profiles p ON p.user_id = a.id
		 WHERE a.id = $1
		 `

	var (
		acc       models.AccountWithProfile
		age       sql.NullInt64
		height    sql.NullFloat64
		weight    sql.NullFloat64
		goal      sql.NullString
		createdAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, accountID).
		Scan(&acc.ID, &acc.Email, &acc.Phone, &acc.Nickname, &age, &height, &weight, &goal, &createdAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if age.Valid {
		acc.Profile = &models.Profile{
			UserID:    acc.ID,
			Age:       int(age.Int64),
			Height:    height.Float64,
			Weight:    weight.Float64,
			Goal:      goal.String,
			CreatedAt: createdAt.Time,
		}
	}

	return &acc, nil
}

// Create inserts the account. A unique constraint violation is returned as
// *common.ConflictError naming the field, the same error a pre-insert
// uniqueness check produces.
func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) error {
	if err := account.CheckCredential(); err != nil {
		return err
	}

	query :=
		`INSERT INTO accounts (id, email, phone, nickname, password_hash, external_id)
         VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.ID, account.Email, account.Phone, account.Nickname,
		nullable(account.PasswordHash), nullable(account.ExternalID)).Scan(&account.CreatedAt)

	if err != nil {
		if constraint, ok := dbx.UniqueViolation(err); ok {
			if field, known := uniqueConstraints[constraint]; known {
				return &common.ConflictError{Field: string(field)}
			}
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
