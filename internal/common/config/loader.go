// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "incompat-report/internal/common/errors"
)

// Load reads configuration from the environment, after loading the first
// .env file found. It returns the .env path that was applied, if any.
func Load(envFile string) (*Config, string, error) {
	loaded, err := loadEnvFile(envFile)
	if err != nil {
		return nil, "", err
	}
	cfg, err := LoadWithViper(viper.New())
	if err != nil {
		return nil, loaded, err
	}
	return cfg, loaded, nil
}

// LoadWithViper binds every key to its environment variable on v, applies
// defaults and validates the result.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("failed to unmarshal config: %v", err))
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("smtp.server", DefaultSMTPServer)
	v.SetDefault("smtp.port", DefaultSMTPPort)
	v.SetDefault("smtp.subject", DefaultSubject)
	v.SetDefault("smtp.timeout", DefaultSMTPTimeout)
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", DefaultDBPath())
	v.SetDefault("report.detail_limit", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// applyDefaults fills values an operator blanked out explicitly (e.g. SMTP_SERVER="").
func applyDefaults(cfg *Config) {
	cfg.SMTP.Server = strings.TrimSpace(cfg.SMTP.Server)
	cfg.SMTP.Username = strings.TrimSpace(cfg.SMTP.Username)
	cfg.SMTP.Recipient = strings.TrimSpace(cfg.SMTP.Recipient)
	if cfg.SMTP.Subject == "" {
		cfg.SMTP.Subject = DefaultSubject
	}
	if cfg.SMTP.Timeout <= 0 {
		cfg.SMTP.Timeout = DefaultSMTPTimeout
	}

	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if strings.TrimSpace(cfg.Database.Path) == "" {
		cfg.Database.Path = DefaultDBPath()
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// validateConfig checks structural settings. Delivery credentials are
// checked by the email sender so dry runs work without them.
func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return apperrors.NewConfigInvalidError(fmt.Sprintf("%s must be %q or %q, got %q",
			EnvName("database.driver"), DriverSQLite, DriverPostgres, cfg.Database.Driver))
	}
	if cfg.SMTP.Port < 0 || cfg.SMTP.Port > 65535 {
		return apperrors.NewConfigInvalidError(fmt.Sprintf("%s must be between 1 and 65535", EnvName("smtp.port")))
	}
	return nil
}

// DefaultDBPath is scil.db in the directory above the installed binary.
func DefaultDBPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultDBFile
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(filepath.Dir(exe)), DefaultDBFile)
}

// loadEnvFile loads an explicit .env file, or the first one found walking
// up from the working directory. A missing explicit file is an error.
func loadEnvFile(explicit string) (string, error) {
	if explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return "", apperrors.NewConfigInvalidError(fmt.Sprintf("load env file %s: %v", explicit, err))
		}
		return explicit, nil
	}

	possiblePaths := []string{".env", "../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path, nil
			}
		}
	}
	return "", nil
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
