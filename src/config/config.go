package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"market-pulse/src/helpers"
	"market-pulse/src/models"
	"market-pulse/src/utils"
)

const (
	DefaultName     = "market-pulse"
	DefaultHost     = "0.0.0.0"
	DefaultPort     = 3000
	DefaultBaseURL  = "https://api.coingecko.com/api/v3"
	DefaultCurrency = "usd"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig loads the YAML file (optional), then .env, then the process
// environment, fills defaults and validates. Later sources win.
func NewConfig(configPath string) (*Config, error) {
	var modelConfig models.MConfig

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file '%s'", configPath)
		}
		if err := yaml.Unmarshal(data, &modelConfig); err != nil {
			return nil, errors.Wrap(err, "failed to parse config from YAML")
		}
	}

	if err := loadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}

	config := &Config{MConfig: &modelConfig}
	if err := applyEnvOverrides(config.MConfig, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(config.MConfig)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// -----------------------------------------------------------------------------

// loadDotEnv loads path, or .env when path is empty. A missing default file is
// not an error; existing process variables are never overwritten.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return errors.Wrapf(err, "env file '%s'", path)
	}
	return errors.Wrapf(godotenv.Load(path), "load env file '%s'", path)
}

// -----------------------------------------------------------------------------

// applyEnvOverrides reads the recognized variables through lookup.
func applyEnvOverrides(c *models.MConfig, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return configError(fmt.Sprintf("%s must be an integer, got %q", key, v), err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *models.MDuration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := models.ParseDuration(v)
		if err != nil {
			return configError(fmt.Sprintf("%s is not a valid duration", key), err)
		}
		*dst = models.MDuration(d)
		return nil
	}

	str("HOST", &c.Host)
	str("LOG_LEVEL", &c.LogLevel)
	str("UPSTREAM_URL", &c.Upstream.BaseURL)
	str("COINGECKO_API_KEY", &c.Upstream.APIKey)

	if origins, ok := lookup("ALLOWED_ORIGINS"); ok && strings.TrimSpace(origins) != "" {
		c.AllowedOrigins = splitList(origins)
	}

	for _, f := range []func() error{
		func() error { return num("PORT", &c.Port) },
		func() error { return num("GRPC_PORT", &c.GrpcPort) },
		func() error { return num("MAX_CHART_POINTS", &c.Feed.MaxChartPoints) },
		func() error { return num("ASSET_COUNT", &c.Upstream.AssetCount) },
		func() error { return dur("FETCH_INTERVAL", &c.Feed.FetchInterval) },
		func() error { return dur("MIN_API_INTERVAL", &c.Feed.MinAPIInterval) },
		func() error { return dur("REQUEST_TIMEOUT", &c.Upstream.RequestTimeout) },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func applyDefaults(c *models.MConfig) {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.GrpcPort != 0 && c.GrpcHost == "" {
		c.GrpcHost = c.Host
	}

	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultBaseURL
	}
	if c.Upstream.Currency == "" {
		c.Upstream.Currency = DefaultCurrency
	}
	if c.Upstream.AssetCount == 0 {
		c.Upstream.AssetCount = utils.DefaultAssetCount
	}
	if c.Upstream.RequestTimeout == 0 {
		c.Upstream.RequestTimeout = models.MDuration(utils.DefaultRequestTimeout)
	}

	setDuration(&c.Feed.FetchInterval, utils.DefaultFetchInterval)
	setDuration(&c.Feed.MinAPIInterval, utils.DefaultMinAPIInterval)
	setDuration(&c.Feed.MinClientInterval, utils.DefaultMinClientInterval)
	setDuration(&c.Feed.MaxClientInterval, utils.DefaultMaxClientInterval)
	if c.Feed.MaxChartPoints == 0 {
		c.Feed.MaxChartPoints = utils.DefaultMaxChartPoints
	}
	if c.Feed.SendBufferSize == 0 {
		c.Feed.SendBufferSize = utils.DefaultSendBufferSize
	}
}

func setDuration(dst *models.MDuration, def time.Duration) {
	if *dst == 0 {
		*dst = models.MDuration(def)
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return configError("application name cannot be empty", nil)
	}
	if c.Host == "" {
		return configError("server host cannot be empty", nil)
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return configError(fmt.Sprintf("invalid server port number: %d (must be between 1025 and 65535)", c.Port), nil)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535 || c.GrpcPort == c.Port) {
		return configError(fmt.Sprintf("invalid grpc port number: %d", c.GrpcPort), nil)
	}

	if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		return configError(fmt.Sprintf("upstream base url must be http(s): %q", c.Upstream.BaseURL), nil)
	}
	if c.Upstream.AssetCount <= 0 || c.Upstream.AssetCount > 250 {
		return configError(fmt.Sprintf("asset count must be between 1 and 250, got %d", c.Upstream.AssetCount), nil)
	}
	if c.Upstream.RequestTimeout <= 0 {
		return configError("request timeout must be greater than 0", nil)
	}

	if c.Feed.FetchInterval <= 0 || c.Feed.MinAPIInterval <= 0 {
		return configError("fetch and min api intervals must be greater than 0", nil)
	}
	if c.Feed.MinClientInterval > c.Feed.MaxClientInterval {
		return configError("min client interval cannot exceed max client interval", nil)
	}
	if c.Feed.MaxChartPoints <= 0 {
		return configError("max chart points must be greater than 0", nil)
	}
	if c.Feed.SendBufferSize < 3 {
		return configError("send buffer must hold at least one full push (3 messages)", nil)
	}

	return nil
}

// -----------------------------------------------------------------------------

// Marshal renders the configuration as YAML with the API key left out. The key
// is supplied through COINGECKO_API_KEY.
func (c *Config) Marshal() ([]byte, error) {
	redacted := *c.MConfig
	redacted.Upstream.APIKey = ""

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config to YAML")
	}
	return data, nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config to file '%s'", configPath)
	}

	return nil
}

// -----------------------------------------------------------------------------
// Helper functions
// -----------------------------------------------------------------------------

func configError(msg string, cause error) error {
	return &helpers.ConfigurationError{MarketObserverError: helpers.MarketObserverError{Message: msg, Cause: cause}}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
