package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	LogLevel string         `yaml:"log_level"`
	API      MAPIConfig     `yaml:"api"`
	Channel  MChannelConfig `yaml:"channel"`
	Buffer   MBufferConfig  `yaml:"buffer"`
	Watch    MWatchConfig   `yaml:"watch"`
	Sim      MSimConfig     `yaml:"sim"`
}

// MAPIConfig configures the REST task API client.
type MAPIConfig struct {
	BaseURL        string `yaml:"base_url"`
	RequestTimeout int    `yaml:"timeout"`
}

// MChannelConfig configures the push channel.
type MChannelConfig struct {
	URL               string `yaml:"url"`
	ReconnectAttempts int    `yaml:"reconnect_attempts"`
	ReconnectDelaySec int    `yaml:"reconnect_delay_seconds"`
}

// MBufferConfig configures the per-task sample buffers.
type MBufferConfig struct {
	Capacity int `yaml:"capacity"`
}

// MWatchConfig configures the watch loop of the client.
type MWatchConfig struct {
	RefreshIntervalSec int `yaml:"refresh_interval_seconds"`
	RenderIntervalSec  int `yaml:"render_interval_seconds"`
}

// MSimConfig configures the local simulator backend.
type MSimConfig struct {
	Host               string         `yaml:"host"`
	Port               int            `yaml:"port"`
	TickIntervalMs     int            `yaml:"tick_interval_ms"`
	RespectMarketHours bool           `yaml:"respect_market_hours"`
	Storage            MStorageConfig `yaml:"storage"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}
