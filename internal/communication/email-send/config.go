package emailsend

import (
	"time"

	"incompat-report/internal/common/config"
	apperrors "incompat-report/internal/common/errors"
)

type Config struct {
	SMTPHost     string        `mapstructure:"smtp_host"`
	SMTPPort     int           `mapstructure:"smtp_port"`
	SMTPUsername string        `mapstructure:"smtp_username"`
	SMTPPassword string        `mapstructure:"smtp_password"`
	Recipient    string        `mapstructure:"recipient"`
	Subject      string        `mapstructure:"subject"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		SMTPHost: config.DefaultSMTPServer,
		SMTPPort: config.DefaultSMTPPort,
		Subject:  config.DefaultSubject,
		Timeout:  config.DefaultSMTPTimeout,
	}
}

// FromAppConfig maps the SMTP section of the application config.
func FromAppConfig(c config.SMTPConfig) *Config {
	return &Config{
		SMTPHost:     c.Server,
		SMTPPort:     c.Port,
		SMTPUsername: c.Username,
		SMTPPassword: c.Password,
		Recipient:    c.Recipient,
		Subject:      c.Subject,
		Timeout:      c.Timeout,
	}
}

// Validate reports every missing setting at once, by environment variable name.
func (c *Config) Validate() error {
	var missing []string
	if c.SMTPHost == "" {
		missing = append(missing, config.EnvName("smtp.server"))
	}
	if c.SMTPPort == 0 {
		missing = append(missing, config.EnvName("smtp.port"))
	}
	if c.SMTPUsername == "" {
		missing = append(missing, config.EnvName("smtp.username"))
	}
	if c.SMTPPassword == "" {
		missing = append(missing, config.EnvName("smtp.password"))
	}
	if c.Recipient == "" {
		missing = append(missing, config.EnvName("smtp.recipient"))
	}
	if len(missing) > 0 {
		return apperrors.NewConfigMissingError(missing)
	}

	if c.SMTPPort < 0 || c.SMTPPort > 65535 {
		return apperrors.NewConfigInvalidError("smtp_port must be between 1 and 65535")
	}
	if c.Timeout <= 0 {
		return apperrors.NewConfigInvalidError("timeout must be positive")
	}
	return nil
}
