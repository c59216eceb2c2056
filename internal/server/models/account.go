package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
)

// Account is the persisted identity record. Exactly one of PasswordHash and
// ExternalID is non-empty.
type Account struct {
	ID           string
	Email        string
	Phone        string
	Nickname     string
	PasswordHash string
	ExternalID   string
	CreatedAt    time.Time
}

var errCredentialShape = errors.New("account must carry exactly one of password hash or external id")

// CheckCredential enforces the single-credential invariant.
func (a *Account) CheckCredential() error {
	if (a.PasswordHash == "") == (a.ExternalID == "") {
		return errCredentialShape
	}
	return nil
}

// AuthMethod is the registration-time authentication choice. The set of
// implementations is closed: PasswordAuth and ExternalAuth.
type AuthMethod interface {
	authMethod()
}

// PasswordAuth registers a local-password account.
type PasswordAuth struct {
	Secret string
}

// ExternalAuth registers an account linked to an identity provider user id.
type ExternalAuth struct {
	ProviderUserID string
}

func (PasswordAuth) authMethod() {}
func (ExternalAuth) authMethod() {}

// ErrUnknownAuthMethod is returned by consumers meeting an AuthMethod they
// do not handle.
var ErrUnknownAuthMethod = errors.New("unknown auth method")

// AuthMethodName is the wire name of an auth method ("password" or "external").
func AuthMethodName(m AuthMethod) (string, error) {
	switch m.(type) {
	case PasswordAuth:
		return "password", nil
	case ExternalAuth:
		return "external", nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownAuthMethod, m)
	}
}

// Registration is the input of the registration flow.
type Registration struct {
	Email    string
	Phone    string
	Nickname string
	Auth     AuthMethod
}

// RegistrationResult is returned on success. AlreadyRegistered is set for a
// repeated external-provider registration. Warning carries a post-commit
// problem (welcome mail not sent); the account exists regardless.
type RegistrationResult struct {
	AccountID         string
	Message           string
	AlreadyRegistered bool
	Warning           string
}

// Field names an account column that carries a uniqueness constraint.
type Field string

const (
	FieldEmail      Field = "email"
	FieldPhone      Field = "phone"
	FieldNickname   Field = "nickname"
	FieldAccountID  Field = "account_id"
	FieldExternalID Field = "external_id"
)

// IdentifierKind selects the column a login attempt is resolved by.
type IdentifierKind string

const (
	IdentifierEmail IdentifierKind = "email"
	IdentifierPhone IdentifierKind = "phone"
)

// ParseIdentifierKind accepts "email" and "phone".
func ParseIdentifierKind(s string) (IdentifierKind, error) {
	switch IdentifierKind(s) {
	case IdentifierEmail, IdentifierPhone:
		return IdentifierKind(s), nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnsupportedIdentifier, s)
}

// LoginRequest is transient input of the login flow.
type LoginRequest struct {
	Ident    string
	Login    string
	Password string
}

// AccountRef is the short form returned by external id lookups.
type AccountRef struct {
	ID       string
	Nickname string
}

// LoginView is the row the resolver returns for login. It includes the
// stored credential and must not leave the service layer.
type LoginView struct {
	AccountID    string
	Email        string
	Phone        string
	Nickname     string
	PasswordHash string
	ExternalID   string
}

// LoginResult is what a successful login exposes.
type LoginResult struct {
	AccountID string
	Email     string
	Phone     string
	Nickname  string
}
