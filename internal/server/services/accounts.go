// Package services contains server-side business logic. AccountService
// implements the registration and login flows for both authentication
// methods; ProfileService attaches fitness profiles to accounts.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/cryptox"
	"github.com/dmitrijs2005/fitaccounts/internal/logging"
	"github.com/dmitrijs2005/fitaccounts/internal/server/auth"
	"github.com/dmitrijs2005/fitaccounts/internal/server/config"
	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
	"github.com/dmitrijs2005/fitaccounts/internal/server/notify"
	"github.com/dmitrijs2005/fitaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/fitaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fitaccounts/internal/server/validation"
	"github.com/google/uuid"
)

const (
	welcomeSubject = "Registration successful!"
	welcomeWarning = "account created, but the welcome email could not be sent"
)

// LoginOutput is the login view plus a freshly minted access token.
type LoginOutput struct {
	models.LoginResult
	AccessToken string
}

// AccountService orchestrates registration, login and account read-back.
// It keeps no mutable state; all state lives behind the repositories.
type AccountService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	hasher                      cryptox.PasswordHasher
	notifier                    notify.Notifier
	logger                      logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	notifyTimeout               time.Duration
	newID                       func() string
	generateToken               func(accountID string, secret []byte, ttl time.Duration) (string, error)
}

// NewAccountService constructs an AccountService from the shared pool,
// repositories and server config.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, h cryptox.PasswordHasher,
	n notify.Notifier, l logging.Logger, cfg *config.Config) *AccountService {
	return &AccountService{
		db:                          db,
		repomanager:                 m,
		hasher:                      h,
		notifier:                    n,
		logger:                      l.With("module", "accounts"),
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		notifyTimeout:               cfg.NotifyTimeout,
		newID:                       uuid.NewString,
		generateToken:               auth.GenerateToken,
	}
}

// Register validates the input, enforces uniqueness, prepares the credential
// and stores a new account.
//
// A repeated external-provider registration is not an error: it returns the
// existing account id with AlreadyRegistered set. A failed welcome mail does
// not undo the registration; it is reported in RegistrationResult.Warning.
func (s *AccountService) Register(ctx context.Context, r models.Registration) (*models.RegistrationResult, error) {
	if err := validation.ValidateRegistration(r); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	account := &models.Account{Email: r.Email, Phone: r.Phone, Nickname: r.Nickname}

	switch a := r.Auth.(type) {
	case models.ExternalAuth:
		existing, err := s.findExternal(ctx, repo, a.ProviderUserID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		account.ExternalID = a.ProviderUserID

	case models.PasswordAuth:
		if err := s.checkUnique(ctx, repo, r); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(a.Secret)
		if err != nil {
			if !errors.Is(err, common.ErrHashing) {
				err = fmt.Errorf("%w: %w", common.ErrHashing, err)
			}
			return nil, err
		}
		account.PasswordHash = hash

	default:
		return nil, common.NewValidationError("auth", common.ReasonUnknownAuthMethod)
	}

	account.ID = s.newID()

	if err := repo.Create(ctx, account); err != nil {
		var conflict *common.ConflictError
		if !errors.As(err, &conflict) {
			s.logger.Error(ctx, "account insert failed", "nickname", r.Nickname, "error", err)
			return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
		}
		// lost a race against a concurrent registration with the same provider id
		if ext, ok := r.Auth.(models.ExternalAuth); ok && conflict.Field == string(models.FieldExternalID) {
			if existing, ferr := s.findExternal(ctx, repo, ext.ProviderUserID); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, conflict
	}

	method, _ := models.AuthMethodName(r.Auth)
	s.logger.Info(ctx, "account registered", "account_id", account.ID, "nickname", account.Nickname, "method", method)

	result := &models.RegistrationResult{
		AccountID: account.ID,
		Message:   fmt.Sprintf("account created: %s", account.Nickname),
	}

	if err := s.sendWelcome(ctx, account); err != nil {
		s.logger.Warn(ctx, "welcome email not sent", "account_id", account.ID, "email", account.Email, "error", err)
		result.Warning = welcomeWarning
	}

	return result, nil
}

// findExternal returns a result for an already linked provider id, nil when
// the id is unseen, or an ErrLookup-wrapped error.
func (s *AccountService) findExternal(ctx context.Context, repo accounts.Repository, providerUserID string) (*models.RegistrationResult, error) {
	ref, err := repo.FindByExternalID(ctx, providerUserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", common.ErrLookup, err)
	}

	s.logger.Info(ctx, "external account already registered", "account_id", ref.ID, "nickname", ref.Nickname)
	return &models.RegistrationResult{
		AccountID:         ref.ID,
		Message:           fmt.Sprintf("account already registered: %s", ref.Nickname),
		AlreadyRegistered: true,
	}, nil
}

// checkUnique checks email, phone and nickname in that order and stops at
// the first collision.
func (s *AccountService) checkUnique(ctx context.Context, repo accounts.Repository, r models.Registration) error {
	checks := []struct {
		field models.Field
		value string
	}{
		{models.FieldEmail, r.Email},
		{models.FieldPhone, r.Phone},
		{models.FieldNickname, r.Nickname},
	}

	for _, c := range checks {
		exists, err := repo.ExistsBy(ctx, c.field, c.value)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrLookup, err)
		}
		if exists {
			return &common.ConflictError{Field: string(c.field)}
		}
	}
	return nil
}

func (s *AccountService) sendWelcome(ctx context.Context, account *models.Account) error {
	// the account is committed; a cancelled request must not skip the mail
	ctx = context.WithoutCancel(ctx)
	if s.notifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()
	}

	body := fmt.Sprintf("Hello, %s! Your account has been registered.", account.Nickname)
	return s.notifier.Notify(ctx, account.Email, welcomeSubject, body)
}

// Login resolves the account by email or phone and verifies the password.
//
// The returned errors keep "no such account" (ErrAccountNotFound) and "wrong
// password" (ErrInvalidCredential) apart; callers facing end users should
// present both the same way.
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*LoginOutput, error) {
	kind, err := models.ParseIdentifierKind(req.Ident)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	view, err := repo.FindForLogin(ctx, kind, req.Login)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		s.logger.Error(ctx, "login lookup failed", "ident", req.Ident, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrLookup, err)
	}

	if view.ExternalID != "" || view.PasswordHash == "" {
		return nil, common.ErrMethodMismatch
	}

	if !s.hasher.Verify(req.Password, view.PasswordHash) {
		s.logger.Info(ctx, "login rejected", "account_id", view.AccountID)
		return nil, common.ErrInvalidCredential
	}

	token, err := s.generateToken(view.AccountID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		s.logger.Error(ctx, "access token not issued", "account_id", view.AccountID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "login succeeded", "account_id", view.AccountID)
	return &LoginOutput{
		LoginResult: models.LoginResult{
			AccountID: view.AccountID,
			Email:     view.Email,
			Phone:     view.Phone,
			Nickname:  view.Nickname,
		},
		AccessToken: token,
	}, nil
}

// GetAccount returns the account and its profile, if any.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*models.AccountWithProfile, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, common.NewValidationError("user_id", common.ReasonInvalidValue)
	}

	acc, err := s.repomanager.Accounts(s.db).GetWithProfile(ctx, id.String())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrLookup, err)
	}
	return acc, nil
}
