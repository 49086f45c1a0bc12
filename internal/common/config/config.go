// internal/common/config/config.go
package config

import (
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Database DatabaseConfig `mapstructure:"database"`
	Report   ReportConfig   `mapstructure:"report"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// SMTPConfig holds the mail relay settings. Username doubles as the sender address.
type SMTPConfig struct {
	Server    string        `mapstructure:"server"`
	Port      int           `mapstructure:"port"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Recipient string        `mapstructure:"recipient"`
	Subject   string        `mapstructure:"subject"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig points at the SCIL store. Path is a file path for sqlite
// and a DSN for postgres.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type ReportConfig struct {
	DetailLimit int `mapstructure:"detail_limit"` // <= 0 lists every case
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig enables the Prometheus textfile output when TextfilePath is set.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultSMTPServer  = "smtp.gmail.com"
	DefaultSMTPPort    = 587
	DefaultSMTPTimeout = 20 * time.Second
	DefaultSubject     = "Reporte de incompatibilidades - SASP"
	DefaultDBFile      = "scil.db"
)

// envBindings maps config keys to the operator-facing environment variables.
var envBindings = map[string]string{
	"smtp.server":           "SMTP_SERVER",
	"smtp.port":             "SMTP_PORT",
	"smtp.username":         "EMAIL_USER",
	"smtp.password":         "EMAIL_PASS",
	"smtp.recipient":        "DESTINO",
	"smtp.subject":          "EMAIL_SUBJECT",
	"smtp.timeout":          "SMTP_TIMEOUT",
	"database.driver":       "SCIL_DB_DRIVER",
	"database.path":         "SCIL_DB",
	"report.detail_limit":   "REPORT_DETAIL_LIMIT",
	"logging.level":         "LOG_LEVEL",
	"logging.format":        "LOG_FORMAT",
	"metrics.textfile_path": "METRICS_TEXTFILE",
}

// EnvName returns the environment variable bound to a config key.
func EnvName(key string) string {
	return envBindings[key]
}
