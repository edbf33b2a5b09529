package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Email    EmailConfig    `mapstructure:"email"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenLifetimeMinutes is the validity window for access tokens.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`

	// RefreshTokenLifetimeMinutes is the validity window for refresh tokens.
	RefreshTokenLifetimeMinutes int `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
}

// EmailConfig contains settings for the outbound email collaborator.
// When Host is empty, email delivery is disabled and notification emails
// are logged instead of sent.
type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"      validate:"omitempty,gt=0,lt=65536"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"      validate:"omitempty,email"`
}

// NotifyConfig tunes the asynchronous side-effect pipeline.
type NotifyConfig struct {
	// QueueSize is the buffer size of the background task queue.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`

	// WorkerCount is the number of goroutines draining the queue.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// SubscriberBuffer is the per-viewer channel buffer for the live
	// activity broadcaster.
	SubscriberBuffer int `mapstructure:"subscriber_buffer" validate:"required,gt=0"`
}
