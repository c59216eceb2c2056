package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/dbx"
	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
	"github.com/dmitrijs2005/fitaccounts/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/fitaccounts/internal/server/repositories/profiles"
)

var errBoom = errors.New("boom")

// memAccounts is an in-memory accounts store that enforces the same unique
// columns as the accounts table.
type memAccounts struct {
	mu   sync.Mutex
	rows []models.Account

	existsErr error
	findErr   error
	createErr error

	existsCalls []models.Field
	createCalls int
}

func (m *memAccounts) ExistsBy(_ context.Context, field models.Field, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls = append(m.existsCalls, field)
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, r := range m.rows {
		if column(r, field) == value {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAccounts) FindByExternalID(_ context.Context, id string) (*models.AccountRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rows {
		if r.ExternalID != "" && r.ExternalID == id {
			return &models.AccountRef{ID: r.ID, Nickname: r.Nickname}, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memAccounts) FindForLogin(_ context.Context, kind models.IdentifierKind, value string) (*models.LoginView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rows {
		if (kind == models.IdentifierEmail && r.Email == value) || (kind == models.IdentifierPhone && r.Phone == value) {
			return &models.LoginView{
				AccountID: r.ID, Email: r.Email, Phone: r.Phone, Nickname: r.Nickname,
				PasswordHash: r.PasswordHash, ExternalID: r.ExternalID,
			}, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memAccounts) GetWithProfile(_ context.Context, id string) (*models.AccountWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rows {
		if r.ID == id {
			return &models.AccountWithProfile{ID: r.ID, Email: r.Email, Phone: r.Phone, Nickname: r.Nickname}, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memAccounts) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if err := a.CheckCredential(); err != nil {
		return err
	}
	for _, r := range m.rows {
		for _, f := range []models.Field{models.FieldEmail, models.FieldPhone, models.FieldNickname, models.FieldExternalID} {
			v := column(*a, f)
			if v != "" && column(r, f) == v {
				return &common.ConflictError{Field: string(f)}
			}
		}
	}
	m.rows = append(m.rows, *a)
	return nil
}

func (m *memAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func column(a models.Account, f models.Field) string {
	switch f {
	case models.FieldEmail:
		return a.Email
	case models.FieldPhone:
		return a.Phone
	case models.FieldNickname:
		return a.Nickname
	case models.FieldAccountID:
		return a.ID
	case models.FieldExternalID:
		return a.ExternalID
	}
	return ""
}

type memProfiles struct {
	rows      map[string]models.Profile
	createErr error
}

func (m *memProfiles) Create(_ context.Context, p *models.Profile) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.rows == nil {
		m.rows = map[string]models.Profile{}
	}
	if _, ok := m.rows[p.UserID]; ok {
		return &common.ConflictError{Field: "user_id"}
	}
	m.rows[p.UserID] = *p
	return nil
}

type fakeRepoManager struct {
	accounts *memAccounts
	profiles *memProfiles
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{accounts: &memAccounts{}, profiles: &memProfiles{}}
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository         { return f.accounts }
func (f *fakeRepoManager) Profiles(dbx.DBTX) profiles.Repository         { return f.profiles }

// countingHasher produces reversible "hashes" and counts calls.
type countingHasher struct {
	hashCalls   atomic.Int32
	verifyCalls atomic.Int32
	hashErr     error
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashCalls.Add(1)
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + password, nil
}

func (h *countingHasher) Verify(password, encoded string) bool {
	h.verifyCalls.Add(1)
	return strings.TrimPrefix(encoded, "hashed:") == password && strings.HasPrefix(encoded, "hashed:")
}

type sentMail struct {
	email, subject, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, email, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{email, subject, body})
	return nil
}
