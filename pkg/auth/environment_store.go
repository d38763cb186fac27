package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from LISCRAPER_LI_AT and
// LISCRAPER_USER_AGENT. It is read-only; Store and Delete are refused.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	liAt := os.Getenv("LISCRAPER_LI_AT")
	if liAt == "" {
		return nil, ErrCredentialsNotFound
	}
	if username == "" {
		username = "default"
	}
	return &Account{
		Username:     username,
		LiAt:         liAt,
		UserAgent:    os.Getenv("LISCRAPER_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	return os.Getenv("LISCRAPER_LI_AT") != ""
}
