package config

// RPC configures the JSON-RPC listener.
type RPC struct {
	ReadHeaderTimeoutSecs uint32  `toml:"ReadHeaderTimeoutSecs"`
	ReadTimeoutSecs       uint32  `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs      uint32  `toml:"WriteTimeoutSecs"`
	MaxBodyBytes          int64   `toml:"MaxBodyBytes"`
	RateLimitPerSecond    float64 `toml:"RateLimitPerSecond"` // per client IP; 0 disables
	RateLimitBurst        int     `toml:"RateLimitBurst"`
	AuthToken             string  `toml:"AuthToken"` // bearer token required for exchange_sendTransaction when set
}

// Logging configures the optional rotated log file.
type Logging struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"` // key=value,key2=value2
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}
