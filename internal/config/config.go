package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
// It is constructed once at process start and injected into each
// component; core logic never consults ambient globals.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	// AppName and Env identify the deployment in log output; they do not
	// change behavior.
	AppName string `mapstructure:"app_name" validate:"required"`
	Env     string `mapstructure:"env"      validate:"required,oneof=dev staging prod"`

	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// RequestTimeoutMs is the hard per-request wall-clock budget enforced
	// by the pipeline's deadline stage.
	RequestTimeoutMs int `mapstructure:"request_timeout_ms" validate:"required,gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the database/sql driver: "pgx" for PostgreSQL or
	// "sqlite" for the embedded store.
	Driver string `mapstructure:"driver" validate:"required,oneof=pgx sqlite"`
	URL    string `mapstructure:"url"    validate:"required"`
}

// AuthConfig contains all bearer-token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	Issuer    string `mapstructure:"issuer"     validate:"required"`
	Audience  string `mapstructure:"audience"   validate:"required"`
}
