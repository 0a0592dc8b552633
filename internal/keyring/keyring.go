package keyring

import (
	"errors"
	"os"

	gokeyring "github.com/zalando/go-keyring"
)

// ServiceName is the keyring service under which agentdesk stores its secrets.
const ServiceName = "agentdesk"

// Secret keys and the environment variables that override them.
const (
	KeyOpenAI     = "openai_api_key"
	KeyOpenRouter = "openrouter_api_key"
	KeyBrave      = "brave_api_key"
	KeyPolygon    = "polygon_api_key"
	KeyPushover   = "pushover_token"
)

// EnvVars maps each secret key to the environment variable that takes
// precedence over the keyring.
var EnvVars = map[string]string{
	KeyOpenAI:     "OPENAI_API_KEY",
	KeyOpenRouter: "OPENROUTER_API_KEY",
	KeyBrave:      "BRAVE_API_KEY",
	KeyPolygon:    "POLYGON_API_KEY",
	KeyPushover:   "PUSHOVER_TOKEN",
}

// ErrNotFound is returned when a secret is not found in the keyring.
var ErrNotFound = errors.New("secret not found")

// Store provides an interface for secure secret storage.
type Store interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// SystemStore implements Store using the system keyring.
type SystemStore struct{}

func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

func (s *SystemStore) Get(service, key string) (string, error) {
	secret, err := gokeyring.Get(service, key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return secret, nil
}

func (s *SystemStore) Set(service, key, value string) error {
	return gokeyring.Set(service, key, value)
}

// Delete removes a secret. Deleting a missing secret is not an error.
func (s *SystemStore) Delete(service, key string) error {
	err := gokeyring.Delete(service, key)
	if err != nil && errors.Is(err, gokeyring.ErrNotFound) {
		return nil
	}
	return err
}

// EnvStore wraps another Store and checks the environment first, so
// headless runs and .env files work without a keyring.
type EnvStore struct {
	underlying Store
	getenv     func(string) string
}

func NewEnvStore(underlying Store) *EnvStore {
	return &EnvStore{underlying: underlying, getenv: os.Getenv}
}

func (e *EnvStore) Get(service, key string) (string, error) {
	if name, ok := EnvVars[key]; ok {
		if v := e.getenv(name); v != "" {
			return v, nil
		}
	}
	return e.underlying.Get(service, key)
}

func (e *EnvStore) Set(service, key, value string) error {
	return e.underlying.Set(service, key, value)
}

func (e *EnvStore) Delete(service, key string) error {
	return e.underlying.Delete(service, key)
}

// Lookup returns the secret for key, or "" when it is not stored anywhere.
// Keyring backend failures (no D-Bus session, locked keychain) are treated
// as missing.
func Lookup(s Store, key string) string {
	v, err := s.Get(ServiceName, key)
	if err != nil {
		return ""
	}
	return v
}
