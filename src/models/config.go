package models

// MConfig Structure
type MConfig struct {
	Name           string          `yaml:"name"`
	Host           string          `yaml:"host"`
	Port           int             `yaml:"port"`
	LogLevel       string          `yaml:"log_level"`
	GrpcHost       string          `yaml:"grpc_host"`
	GrpcPort       int             `yaml:"grpc_port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	Network        MNetworkConfig  `yaml:"network"`
	Upstream       MUpstreamConfig `yaml:"upstream"`
	Feed           MFeedConfig     `yaml:"feed"`
}

type MNetworkConfig struct {
	Proxies   []string `yaml:"proxies"`
	UserAgent string   `yaml:"user_agent"`
}

type MUpstreamConfig struct {
	BaseURL        string    `yaml:"base_url"`
	Currency       string    `yaml:"currency"`
	AssetCount     int       `yaml:"asset_count"`
	RequestTimeout MDuration `yaml:"request_timeout"`
	APIKey         string    `yaml:"api_key"` // Optional
}

type MFeedConfig struct {
	FetchInterval     MDuration `yaml:"fetch_interval"`   // per-session push period
	MinAPIInterval    MDuration `yaml:"min_api_interval"` // shared upstream gate
	MaxChartPoints    int       `yaml:"max_chart_points"`
	MinClientInterval MDuration `yaml:"min_client_interval"`
	MaxClientInterval MDuration `yaml:"max_client_interval"`
	SendBufferSize    int       `yaml:"send_buffer_size"`
}

// GetLogLevel lets the logger pick its level from the config.
func (c *MConfig) GetLogLevel() string {
	return c.LogLevel
}
