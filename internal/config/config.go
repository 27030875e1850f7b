package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 5173
	DefaultBindAddr       = "127.0.0.1"
	DefaultAPIBaseURL     = "https://stagingapi.iprescribe.online/api/v1"
	DefaultLoginPath      = "/login"
	DefaultRequestTimeout = 30 * time.Second
)

type Config struct {
	Port           int           `yaml:"port"`
	BindAddr       string        `yaml:"bind_addr"`
	APIBaseURL     string        `yaml:"api_base_url"`
	LoginPath      string        `yaml:"login_path"`
	StateFile      string        `yaml:"state_file"`
	GinMode        string        `yaml:"gin_mode"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
	TLSCertFile    string        `yaml:"tls_cert_file"`
	TLSKeyFile     string        `yaml:"tls_key_file"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

// LoadConfigFromEnv builds the configuration from defaults, then the YAML
// file named by CONSOLE_CONFIG_FILE, then environment variables.
func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:           DefaultPort,
		BindAddr:       DefaultBindAddr,
		APIBaseURL:     DefaultAPIBaseURL,
		LoginPath:      DefaultLoginPath,
		GinMode:        "release",
		RequestTimeout: DefaultRequestTimeout,
		LogLevel:       "info",
	}
	if home := env.Getenv("HOME"); home != "" {
		cfg.StateFile = filepath.Join(home, ".iprescribe-console", "state.json")
	}

	if path := env.Getenv("CONSOLE_CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}
	if raw := env.Getenv("BIND_ADDR"); raw != "" {
		cfg.BindAddr = raw
	}
	if raw := env.Getenv("API_BASE_URL"); raw != "" {
		cfg.APIBaseURL = raw
	}
	if raw := env.Getenv("LOGIN_PATH"); raw != "" {
		cfg.LoginPath = raw
	}
	if raw := env.Getenv("STATE_FILE"); raw != "" {
		cfg.StateFile = raw
	}
	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	if raw := env.Getenv("REQUEST_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid REQUEST_TIMEOUT_SECONDS")
		}
		cfg.RequestTimeout = time.Duration(seconds) * time.Second
	}
	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := env.Getenv("TLS_CERT_FILE"); raw != "" {
		cfg.TLSCertFile = raw
	}
	if raw := env.Getenv("TLS_KEY_FILE"); raw != "" {
		cfg.TLSKeyFile = raw
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT")
	}
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL")
	}
	if !strings.HasPrefix(c.LoginPath, "/") {
		return fmt.Errorf("LOGIN_PATH must start with /")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request timeout")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// MockAPIConfig configures the local stand-in for the iPrescribe API.
type MockAPIConfig struct {
	Port         int
	MasterSecret string
	TokenExpiry  time.Duration
	GinMode      string
}

func LoadMockAPIConfig() (MockAPIConfig, error) {
	return LoadMockAPIConfigFromEnv(osEnv{})
}

func LoadMockAPIConfigFromEnv(env Env) (MockAPIConfig, error) {
	cfg := MockAPIConfig{
		Port:        8081,
		GinMode:     "release",
		TokenExpiry: 24 * time.Hour,
	}

	if raw := env.Getenv("MOCKAPI_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return MockAPIConfig{}, fmt.Errorf("invalid MOCKAPI_PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return MockAPIConfig{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return MockAPIConfig{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}
