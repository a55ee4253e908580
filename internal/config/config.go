package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	InactivityDays  int           `mapstructure:"inactivity_days" yaml:"inactivity_days"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "seenup.db",
		LogLevel:          "info",
		JWTSecret:         "change-me",
		JWTIssuer:         "seenup",
		JWTAudience:       "seenup-clients",
		JWTTTL:            24 * time.Hour,
		CleanupInterval:   time.Hour,
		InactivityDays:    30,
	}
}

// InactivityAge returns the channel inactivity threshold as a duration.
func (c Config) InactivityAge() time.Duration {
	return time.Duration(c.InactivityDays) * 24 * time.Hour
}
