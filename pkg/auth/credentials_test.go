package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func managerWith(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

func TestManagerStoreAndRetrieve(t *testing.T) {
	store := NewMockStore()
	m := managerWith(store)

	account := &Account{Username: "someone", LiAt: "AQEDcookievalue123"}
	require.NoError(t, m.Store(account))
	assert.False(t, account.LastModified.IsZero())

	got, err := m.Retrieve("someone")
	require.NoError(t, err)
	assert.Equal(t, "AQEDcookievalue123", got.LiAt)
}

func TestManagerStoreValidation(t *testing.T) {
	m := managerWith(NewMockStore())

	assert.Error(t, m.Store(&Account{LiAt: "cookie"}), "account name required")
	assert.Error(t, m.Store(&Account{Username: "someone"}), "session cookie required")
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreErr = ErrStoreUnavailable
	broken.RetrieveErr = ErrStoreUnavailable
	working := NewMockStore()
	m := managerWith(broken, working)

	require.NoError(t, m.Store(&Account{Username: "someone", LiAt: "cookie"}))
	got, err := m.Retrieve("someone")
	require.NoError(t, err)
	assert.Equal(t, "someone", got.Username)
}

func TestManagerRetrieveNotFound(t *testing.T) {
	m := managerWith(NewMockStore())
	_, err := m.Retrieve("nobody")
	assert.Error(t, err)
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMockStore()
	require.NoError(t, older.Store(&Account{
		Username: "someone", LiAt: "stale", LastModified: time.Now().Add(-time.Hour),
	}))
	newer := NewMockStore()
	require.NoError(t, newer.Store(&Account{
		Username: "someone", LiAt: "fresh", LastModified: time.Now(),
	}))
	m := managerWith(older, newer)

	accounts, err := m.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "fresh", accounts[0].LiAt)
}

func TestManagerDeleteRemovesFromAllStores(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	account := &Account{Username: "someone", LiAt: "cookie"}
	require.NoError(t, first.Store(account))
	require.NoError(t, second.Store(account))
	m := managerWith(first, second)

	require.NoError(t, m.Delete("someone"))
	assert.False(t, first.Exists("someone"))
	assert.False(t, second.Exists("someone"))

	assert.Error(t, m.Delete("someone"), "second delete finds nothing")
}

func TestEnvironmentStoreRetrieve(t *testing.T) {
	t.Setenv("LISCRAPER_LI_AT", "env-cookie")
	t.Setenv("LISCRAPER_USER_AGENT", "Mozilla/5.0 test")

	store := NewEnvironmentStore()
	account, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "default", account.Username)
	assert.Equal(t, "env-cookie", account.LiAt)
	assert.Equal(t, "Mozilla/5.0 test", account.UserAgent)

	assert.ErrorIs(t, store.Store(account), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("default"), ErrStoreUnavailable)
}

func TestEnvironmentStoreMissing(t *testing.T) {
	t.Setenv("LISCRAPER_LI_AT", "")
	store := NewEnvironmentStore()
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists(""))
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("LISCRAPER_PASSPHRASE", "test-passphrase")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(dir + "/credentials.enc")
	require.NoError(t, err)

	account := &Account{Username: "someone", LiAt: "secret-cookie", LastModified: time.Now()}
	require.NoError(t, store.Store(account))

	// A fresh store instance with the same passphrase reads it back.
	reopened, err := NewEncryptedFileStore(dir + "/credentials.enc")
	require.NoError(t, err)
	got, err := reopened.Retrieve("someone")
	require.NoError(t, err)
	assert.Equal(t, "secret-cookie", got.LiAt)

	require.NoError(t, reopened.Delete("someone"))
	_, err = reopened.Retrieve("someone")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("LISCRAPER_PASSPHRASE", "right")
	store, err := NewEncryptedFileStore(dir + "/credentials.enc")
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Username: "someone", LiAt: "cookie"}))

	t.Setenv("LISCRAPER_PASSPHRASE", "wrong")
	reopened, err := NewEncryptedFileStore(dir + "/credentials.enc")
	require.NoError(t, err)
	_, err = reopened.Retrieve("someone")
	assert.Error(t, err)
}

func TestSanitizeAccount(t *testing.T) {
	masked := SanitizeAccount(&Account{Username: "someone", LiAt: "AQEDlongcookievalue"})
	assert.Equal(t, "AQED...alue", masked.LiAt)
	assert.Equal(t, "********", SanitizeAccount(&Account{LiAt: "short"}).LiAt)
	assert.Nil(t, SanitizeAccount(nil))
}
