package dbgateway

import apperrors "github.com/jordigilh/glance/internal/errors"

// DefaultConnectConfig mirrors the defaults a fresh ConnectionProfile
// would carry before the user overrides anything.
func DefaultConnectConfig() ConnectConfig {
	return ConnectConfig{
		Host:     "localhost",
		Port:     5432,
		SSLMode:  "disable",
		PoolSize: 5,
	}
}

// Validate checks a ConnectConfig for the combinations that spec.md
// classifies as a Connection-kind Config error before a Connect attempt
// is even made.
func Validate(cfg ConnectConfig) error {
	if cfg.Host == "" {
		return apperrors.ValidationError("host", "database host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return apperrors.ValidationError("port", "database port must be between 1 and 65535")
	}
	if cfg.User == "" {
		return apperrors.ValidationError("user", "database user is required")
	}
	if cfg.Database == "" {
		return apperrors.ValidationError("database", "database name is required")
	}
	if cfg.PoolSize < 0 {
		return apperrors.ValidationError("pool_size", "pool size must be non-negative")
	}
	return nil
}
