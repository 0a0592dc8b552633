package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"agentdesk/internal/keyring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore map[string]string

func (m mapStore) Get(_, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m mapStore) Set(_, key, value string) error { m[key] = value; return nil }
func (m mapStore) Delete(_, key string) error     { delete(m, key); return nil }

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDBPath, EnvProjectRoot, "OTEL_EXPORTER_OTLP_ENDPOINT", "PUSHOVER_USER"} {
		t.Setenv(k, "")
	}
	for _, k := range keyring.EnvVars {
		t.Setenv(k, "")
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
	assert.Equal(t, "Tom", cfg.Trader.Name)
	assert.Equal(t, "Trader", cfg.Trader.Lastname)
	require.Len(t, cfg.MCP.Trader, 2)
	assert.Equal(t, []string{"accounts-server"}, cfg.MCP.Trader[0].Args)
	assert.Empty(t, cfg.MCP.Researcher)
	assert.NotEmpty(t, cfg.ProjectRoot)
}

func TestLoadFile_FileAndOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
project_root = "/srv/desk"

[db]
path = "/tmp/from-file.db"

[trader]
name = "Ava"
model = "deepseek/deepseek-chat"

[[mcp.researcher]]
name = "fetch"
command = "uvx"
args = ["mcp-server-fetch"]
timeout = "45s"
`), 0o644))

	t.Setenv(EnvDBPath, "/tmp/from-env.db")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := LoadFile(path, keyring.NewEnvStore(mapStore{keyring.KeyBrave: "brave-key"}))
	require.NoError(t, err)

	assert.Equal(t, "/srv/desk", cfg.ProjectRoot)
	assert.Equal(t, "/tmp/from-env.db", cfg.DB.Path)
	assert.Equal(t, "Ava", cfg.Trader.Name)
	assert.Equal(t, "Trader", cfg.Trader.Lastname)
	require.Len(t, cfg.MCP.Researcher, 1)
	assert.Equal(t, 45*time.Second, cfg.MCP.Researcher[0].Timeout)
	assert.Equal(t, "sk-env", cfg.LLMs[ProviderOpenAI].APIKey)
	assert.Equal(t, "brave-key", cfg.Services.BraveAPIKey)
	assert.Equal(t, "", cfg.Services.PolygonAPIKey)
}

func TestConfig_Router(t *testing.T) {
	cfg := Default()
	cfg.LLMs[ProviderOpenAI].APIKey = "sk-openai"
	cfg.LLMs[ProviderOpenRouter].APIKey = "sk-router"

	r := cfg.Router()
	assert.Equal(t, "sk-openai", r.Endpoint("gpt-4o-mini").APIKey)
	assert.Equal(t, "https://openrouter.ai/api/v1", r.Endpoint("google/gemini-2.0-flash").BaseURL)
}

func TestLoadFile_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("project_root = ["), 0o644))

	_, err := LoadFile(path, nil)
	assert.Error(t, err)
}

func TestConfig_AccountsServer(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"accounts-server"}, cfg.AccountsServer().Args)

	cfg.MCP.Trader = []MCPServerConfig{{Name: "accounts", Command: "uv", Args: []string{"run", "accounts_server.py"}}}
	assert.Equal(t, "uv", cfg.AccountsServer().Command)

	cfg.MCP.Trader = nil
	assert.Equal(t, AccountsServerName, cfg.AccountsServer().Name)
}
