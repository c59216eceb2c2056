package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/cryptox"
	"github.com/dmitrijs2005/fitaccounts/internal/dbx"
	"github.com/dmitrijs2005/fitaccounts/internal/logging"
	"github.com/dmitrijs2005/fitaccounts/internal/server/auth"
	"github.com/dmitrijs2005/fitaccounts/internal/server/config"
	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
	"github.com/dmitrijs2005/fitaccounts/internal/server/repositories/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type accountFixture struct {
	svc      *AccountService
	repo     *fakeRepoManager
	hasher   *countingHasher
	notifier *fakeNotifier
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = testSecret

	f := &accountFixture{
		repo:     newFakeRepoManager(),
		hasher:   &countingHasher{},
		notifier: &fakeNotifier{},
	}
	f.svc = NewAccountService(nil, f.repo, f.hasher, f.notifier, logging.Discard(), cfg)

	var n int
	var mu sync.Mutex
	f.svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
	return f
}

func alice() models.Registration {
	return models.Registration{
		Email:    "a@x.com",
		Phone:    "+79990000000",
		Nickname: "alice",
		Auth:     models.PasswordAuth{Secret: "Passw0rd"},
	}
}

func TestRegister_PasswordThenLogin(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", res.AccountID)
	assert.False(t, res.AlreadyRegistered)
	assert.Empty(t, res.Warning)
	assert.Equal(t, "account created: alice", res.Message)

	stored := f.repo.accounts.rows[0]
	assert.Equal(t, "hashed:Passw0rd", stored.PasswordHash)
	assert.Empty(t, stored.ExternalID)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sentMail{"a@x.com", "Registration successful!", "Hello, alice! Your account has been registered."}, f.notifier.sent[0])

	out, err := f.svc.Login(ctx, models.LoginRequest{Ident: "email", Login: "a@x.com", Password: "Passw0rd"})
	require.NoError(t, err)
	assert.Equal(t, res.AccountID, out.AccountID)
	assert.Equal(t, "alice", out.Nickname)
	assert.Equal(t, "+79990000000", out.Phone)

	sub, err := auth.GetAccountIDFromToken(out.AccessToken, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, res.AccountID, sub)

	byPhone, err := f.svc.Login(ctx, models.LoginRequest{Ident: "phone", Login: "+79990000000", Password: "Passw0rd"})
	require.NoError(t, err)
	assert.Equal(t, res.AccountID, byPhone.AccountID)
}

func TestRegister_WithRealHasher(t *testing.T) {
	f := newAccountFixture(t)
	f.svc.hasher = cryptox.NewArgon2Hasher(cryptox.Params{
		Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	ctx := context.Background()

	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)
	assert.Contains(t, f.repo.accounts.rows[0].PasswordHash, "$argon2id$")
	assert.NotContains(t, f.repo.accounts.rows[0].PasswordHash, "Passw0rd")

	_, err = f.svc.Login(ctx, models.LoginRequest{Ident: "email", Login: "a@x.com", Password: "Passw0rd"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, models.LoginRequest{Ident: "email", Login: "a@x.com", Password: "Passw0rd!"})
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestRegister_ValidationBeforeIO(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Registration)
		field  string
		reason string
	}{
		{"bad phone", func(r *models.Registration) { r.Phone = "89990000000" }, "phone", common.ReasonPhoneFormat},
		{"bad email", func(r *models.Registration) { r.Email = "a@x" }, "email", common.ReasonEmailFormat},
		{"short nickname", func(r *models.Registration) { r.Nickname = "al" }, "nickname", common.ReasonNicknameLength},
		{"short password", func(r *models.Registration) { r.Auth = models.PasswordAuth{Secret: "Pa55"} }, "password", common.ReasonPasswordTooShort},
		{"letters only", func(r *models.Registration) { r.Auth = models.PasswordAuth{Secret: "Password"} }, "password", common.ReasonPasswordMissingDigitOrLetter},
		{"empty provider id", func(r *models.Registration) { r.Auth = models.ExternalAuth{} }, "provider_user_id", common.ReasonExternalIDEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccountFixture(t)
			r := alice()
			tt.mutate(&r)

			_, err := f.svc.Register(context.Background(), r)

			var verr *common.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.reason, verr.Reason)
			assert.Empty(t, f.repo.accounts.existsCalls)
			assert.Zero(t, f.repo.accounts.createCalls)
			assert.Zero(t, f.hasher.hashCalls.Load())
		})
	}
}

func TestRegister_DuplicatesAreRejectedBeforeHashing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Registration)
		field  string
	}{
		{"same email", func(r *models.Registration) { r.Phone, r.Nickname = "+79990000001", "bob" }, "email"},
		{"same phone", func(r *models.Registration) { r.Email, r.Nickname = "b@x.com", "bob" }, "phone"},
		{"same nickname", func(r *models.Registration) { r.Email, r.Phone = "b@x.com", "+79990000001" }, "nickname"},
		{"everything equal reports email first", func(*models.Registration) {}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccountFixture(t)
			ctx := context.Background()

			_, err := f.svc.Register(ctx, alice())
			require.NoError(t, err)
			require.EqualValues(t, 1, f.hasher.hashCalls.Load())

			r := alice()
			tt.mutate(&r)
			_, err = f.svc.Register(ctx, r)

			var conflict *common.ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, tt.field, conflict.Field)
			assert.EqualValues(t, 1, f.hasher.hashCalls.Load(), "duplicate must not reach the hasher")
			assert.Equal(t, 1, f.repo.accounts.count())
		})
	}
}

func TestRegister_ExternalIsIdempotent(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	r := models.Registration{
		Email: "g@x.com", Phone: "+79990000002", Nickname: "gina",
		Auth: models.ExternalAuth{ProviderUserID: "google-123"},
	}

	first, err := f.svc.Register(ctx, r)
	require.NoError(t, err)
	assert.False(t, first.AlreadyRegistered)
	assert.Equal(t, "google-123", f.repo.accounts.rows[0].ExternalID)
	assert.Empty(t, f.repo.accounts.rows[0].PasswordHash)

	second, err := f.svc.Register(ctx, r)
	require.NoError(t, err)
	assert.True(t, second.AlreadyRegistered)
	assert.Equal(t, first.AccountID, second.AccountID)
	assert.Equal(t, "account already registered: gina", second.Message)

	assert.Equal(t, 1, f.repo.accounts.count())
	assert.Len(t, f.notifier.sent, 1)
	assert.Zero(t, f.hasher.hashCalls.Load())
}

func TestRegister_ExternalInsertRaceResolvesToExisting(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	race := &racingAccounts{memAccounts: f.repo.accounts, winner: models.Account{
		ID: "11111111-1111-4111-8111-111111111111", Email: "w@x.com", Phone: "+79990000009",
		Nickname: "winner", ExternalID: "google-7",
	}}
	f.svc.repomanager = &raceManager{fakeRepoManager: f.repo, accounts: race}

	res, err := f.svc.Register(ctx, models.Registration{
		Email: "g@x.com", Phone: "+79990000002", Nickname: "gina",
		Auth: models.ExternalAuth{ProviderUserID: "google-7"},
	})
	require.NoError(t, err)
	assert.True(t, res.AlreadyRegistered)
	assert.Equal(t, "11111111-1111-4111-8111-111111111111", res.AccountID)
}

func TestRegister_StoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("exists lookup error is not read as absent", func(t *testing.T) {
		f := newAccountFixture(t)
		f.repo.accounts.existsErr = errBoom

		_, err := f.svc.Register(ctx, alice())
		assert.ErrorIs(t, err, common.ErrLookup)
		assert.ErrorIs(t, err, errBoom)
		assert.Zero(t, f.repo.accounts.createCalls)
	})

	t.Run("external lookup error", func(t *testing.T) {
		f := newAccountFixture(t)
		f.repo.accounts.findErr = errBoom

		_, err := f.svc.Register(ctx, models.Registration{
			Email: "g@x.com", Phone: "+79990000002", Nickname: "gina",
			Auth: models.ExternalAuth{ProviderUserID: "google-1"},
		})
		assert.ErrorIs(t, err, common.ErrLookup)
		assert.Zero(t, f.repo.accounts.createCalls)
	})

	t.Run("hashing failure", func(t *testing.T) {
		f := newAccountFixture(t)
		f.hasher.hashErr = errBoom

		_, err := f.svc.Register(ctx, alice())
		assert.ErrorIs(t, err, common.ErrHashing)
		assert.Zero(t, f.repo.accounts.createCalls)
	})

	t.Run("insert failure", func(t *testing.T) {
		f := newAccountFixture(t)
		f.repo.accounts.createErr = errBoom

		_, err := f.svc.Register(ctx, alice())
		assert.ErrorIs(t, err, common.ErrPersistence)
		assert.Equal(t, 1, f.repo.accounts.createCalls)
		assert.Empty(t, f.notifier.sent)
	})

	t.Run("insert conflict passes through", func(t *testing.T) {
		f := newAccountFixture(t)
		f.repo.accounts.createErr = &common.ConflictError{Field: "nickname"}

		_, err := f.svc.Register(ctx, alice())
		var conflict *common.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "nickname", conflict.Field)
		assert.False(t, errors.Is(err, common.ErrPersistence))
	})
}

func TestRegister_NotificationFailureKeepsAccount(t *testing.T) {
	f := newAccountFixture(t)
	f.notifier.err = errBoom

	res, err := f.svc.Register(context.Background(), alice())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, 1, f.repo.accounts.count())
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := alice()
			r.Phone = fmt.Sprintf("+7999000010%d", i)
			r.Nickname = fmt.Sprintf("alice_%d", i)
			_, errs[i] = f.svc.Register(ctx, r)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *common.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "email", conflict.Field)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.repo.accounts.count())
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	seeded := func(t *testing.T) *accountFixture {
		f := newAccountFixture(t)
		_, err := f.svc.Register(ctx, alice())
		require.NoError(t, err)
		_, err = f.svc.Register(ctx, models.Registration{
			Email: "g@x.com", Phone: "+79990000002", Nickname: "gina",
			Auth: models.ExternalAuth{ProviderUserID: "google-123"},
		})
		require.NoError(t, err)
		return f
	}

	t.Run("unsupported identifier", func(t *testing.T) {
		f := seeded(t)
		_, err := f.svc.Login(ctx, models.LoginRequest{Ident: "nickname", Login: "alice", Password: "Passw0rd"})
		assert.ErrorIs(t, err, common.ErrUnsupportedIdentifier)
	})

	t.Run("unknown account", func(t *testing.T) {
		f := seeded(t)
		_, err := f.svc.Login(ctx, models.LoginRequest{Ident: "email", Login: "nobody@x.com", Password: "Passw0rd"})
		assert.ErrorIs(t, err, common.ErrAccountNotFound)
		assert.Zero(t, f.hasher.verifyCalls.Load())
	})

	t.Run("wrong password", func(t *testing.T) {
		f := seeded(t)
		_, err := f.svc.Login(ctx, models.LoginRequest{Ident: "email", Login: "a@x.com", Password: "Passw0rd1"})
		assert.ErrorIs(t, err, common.ErrInvalidCredential)
	})

	t.Run("external account never verifies", func(t *testing.T) {
		f := seeded(t)
		for _, pw := range []string{"", "google-123", "Passw0rd"} {
			_, err := f.svc.Login(ctx, models.LoginRequest{Ident: "email", Login: "g@x.com", Password: pw})
			assert.ErrorIs(t, err, common.ErrMethodMismatch)
		}
		assert.Zero(t, f.hasher.verifyCalls.Load())
	})

	t.Run("lookup failure", func(t *testing.T) {
		f := seeded(t)
		f.repo.accounts.findErr = errBoom
		_, err := f.svc.Login(ctx, models.LoginRequest{Ident: "phone", Login: "+79990000000", Password: "Passw0rd"})
		assert.ErrorIs(t, err, common.ErrLookup)
		assert.False(t, errors.Is(err, common.ErrAccountNotFound))
	})

	t.Run("token expires per config", func(t *testing.T) {
		f := seeded(t)
		f.svc.accessTokenValidityDuration = -time.Second
		out, err := f.svc.Login(ctx, models.LoginRequest{Ident: "email", Login: "a@x.com", Password: "Passw0rd"})
		require.NoError(t, err)
		_, err = auth.GetAccountIDFromToken(out.AccessToken, []byte(testSecret))
		assert.ErrorIs(t, err, common.ErrTokenExpired)
	})
}

func TestLogin_TokenFailureKeepsCause(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)

	f.svc.generateToken = func(string, []byte, time.Duration) (string, error) { return "", errBoom }

	_, err = f.svc.Login(ctx, models.LoginRequest{Ident: "email", Login: "a@x.com", Password: "Passw0rd"})
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.ErrorIs(t, err, errBoom)
}

func TestGetAccount(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, alice())
	require.NoError(t, err)

	got, err := f.svc.GetAccount(ctx, res.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Nickname)
	assert.Nil(t, got.Profile)

	_, err = f.svc.GetAccount(ctx, "not-a-uuid")
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "user_id", verr.Field)

	_, err = f.svc.GetAccount(ctx, "22222222-2222-4222-8222-222222222222")
	assert.ErrorIs(t, err, common.ErrAccountNotFound)

	f.repo.accounts.findErr = errBoom
	_, err = f.svc.GetAccount(ctx, res.AccountID)
	assert.ErrorIs(t, err, common.ErrLookup)
}

// racingAccounts inserts winner right after the first external-id lookup
// misses, as a concurrent request would.
type racingAccounts struct {
	*memAccounts
	winner models.Account
	raced  bool
}

func (r *racingAccounts) FindByExternalID(ctx context.Context, id string) (*models.AccountRef, error) {
	ref, err := r.memAccounts.FindByExternalID(ctx, id)
	if !r.raced && errors.Is(err, common.ErrorNotFound) {
		r.raced = true
		r.memAccounts.rows = append(r.memAccounts.rows, r.winner)
	}
	return ref, err
}

type raceManager struct {
	*fakeRepoManager
	accounts *racingAccounts
}

func (m *raceManager) Accounts(dbx.DBTX) accounts.Repository { return m.accounts }
