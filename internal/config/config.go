package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"agentdesk/internal/keyring"
	"agentdesk/internal/llm"
	"agentdesk/internal/trace"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"

	// EnvDBPath lets a parent process point its MCP server subprocesses at
	// the same database file.
	EnvDBPath      = "AGENTDESK_DB_PATH"
	EnvProjectRoot = "AGENTDESK_PROJECT_ROOT"
	EnvConfigPath  = "AGENTDESK_CONFIG"

	// AccountsServerName names the trader MCP server publishing the account
	// resources.
	AccountsServerName = "accounts"
)

type Config struct {
	ProjectRoot  string                `toml:"project_root"`
	DefaultModel string                `toml:"default_model"`
	LLMs         map[string]*LLMConfig `toml:"llm"`
	DB           DBConfig              `toml:"db"`
	Trace        TraceConfig           `toml:"trace"`
	MCP          MCPConfig             `toml:"mcp"`
	Services     ServicesConfig        `toml:"services"`
	Crew         CrewConfig            `toml:"crew"`
	Trader       TraderConfig          `toml:"trader"`
}

type LLMConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

type TraceConfig struct {
	Endpoint string `toml:"endpoint"`
	URLPath  string `toml:"url_path"`
	APIKey   string `toml:"api_key"`
	Secure   bool   `toml:"secure"`
}

// MCPServerConfig describes a stdio MCP server subprocess. An empty Command
// runs the agentdesk executable itself.
type MCPServerConfig struct {
	Name    string            `toml:"name"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	Timeout time.Duration     `toml:"timeout"`
}

type MCPConfig struct {
	Trader     []MCPServerConfig `toml:"trader"`
	Researcher []MCPServerConfig `toml:"researcher"`
}

type ServicesConfig struct {
	BraveAPIKey   string `toml:"brave_api_key"`
	PolygonAPIKey string `toml:"polygon_api_key"`
	PushoverUser  string `toml:"pushover_user"`
	PushoverToken string `toml:"pushover_token"`
}

type CrewConfig struct {
	// Dir holds agents.yaml and tasks.yaml overriding the built-in crew.
	Dir string `toml:"dir"`
	// OutputDir is the base for relative task output files. Empty means the
	// working directory.
	OutputDir string `toml:"output_dir"`
}

type TraderConfig struct {
	Name     string `toml:"name"`
	Lastname string `toml:"lastname"`
	Model    string `toml:"model"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		DefaultModel: "gpt-4o-mini",
		LLMs: map[string]*LLMConfig{
			ProviderOpenAI:     {BaseURL: "https://api.openai.com/v1"},
			ProviderOpenRouter: {BaseURL: "https://openrouter.ai/api/v1"},
		},
		DB: DBConfig{Path: defaultDBPath()},
		MCP: MCPConfig{
			Trader: []MCPServerConfig{
				{Name: AccountsServerName, Args: []string{"accounts-server"}},
				{Name: "market", Args: []string{"market-server"}},
			},
		},
		Trader: TraderConfig{Name: "Tom", Lastname: "Trader", Model: "gpt-4o-mini"},
	}
}

// Load reads .env from the working directory, the TOML config file, the
// environment overrides and finally any secrets still missing from the
// keyring.
func Load(secrets keyring.Store) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return LoadFile(configPath(), secrets)
}

// LoadFile is Load without the .env step, reading the config from path. A
// missing file is not an error.
func LoadFile(path string, secrets keyring.Store) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DB.Path = v
	}
	if v := os.Getenv(EnvProjectRoot); v != "" {
		cfg.ProjectRoot = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Trace.Endpoint = v
	}
	if v := os.Getenv("PUSHOVER_USER"); v != "" {
		cfg.Services.PushoverUser = v
	}

	if secrets != nil {
		cfg.resolveSecrets(secrets)
	}

	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = defaultProjectRoot()
	}
	return cfg, nil
}

func (c *Config) resolveSecrets(secrets keyring.Store) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = keyring.Lookup(secrets, key)
		}
	}
	for name, key := range map[string]string{
		ProviderOpenAI:     keyring.KeyOpenAI,
		ProviderOpenRouter: keyring.KeyOpenRouter,
	} {
		l, ok := c.LLMs[name]
		if !ok || l == nil {
			l = &LLMConfig{}
			c.LLMs[name] = l
		}
		fill(&l.APIKey, key)
	}
	fill(&c.Services.BraveAPIKey, keyring.KeyBrave)
	fill(&c.Services.PolygonAPIKey, keyring.KeyPolygon)
	fill(&c.Services.PushoverToken, keyring.KeyPushover)
}

// AccountsServer returns the configured accounts server, or the built-in one
// when the trader list has none.
func (c *Config) AccountsServer() MCPServerConfig {
	for _, s := range c.MCP.Trader {
		if s.Name == AccountsServerName {
			return s
		}
	}
	return MCPServerConfig{Name: AccountsServerName, Args: []string{"accounts-server"}}
}

// Router maps model names to the OpenAI or OpenRouter endpoint.
func (c *Config) Router() llm.Router {
	endpoint := func(name string) llm.Endpoint {
		l, ok := c.LLMs[name]
		if !ok || l == nil {
			return llm.Endpoint{}
		}
		return llm.Endpoint{BaseURL: l.BaseURL, APIKey: l.APIKey}
	}
	return llm.Router{
		Default:    endpoint(ProviderOpenAI),
		Aggregator: endpoint(ProviderOpenRouter),
	}
}

func (c *Config) TraceConfig() trace.Config {
	return trace.Config{
		Endpoint: c.Trace.Endpoint,
		URLPath:  c.Trace.URLPath,
		APIKey:   c.Trace.APIKey,
		Secure:   c.Trace.Secure,
	}
}

// Path returns the location of the config file.
func Path() string {
	return configPath()
}

func configPath() string {
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "agentdesk", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "agentdesk", "agentdesk.db")
}

// defaultProjectRoot is the directory holding the executable, falling back
// to the working directory.
func defaultProjectRoot() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Dir(exe)
	}
	wd, _ := os.Getwd()
	return wd
}
