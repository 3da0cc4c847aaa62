// Package config loads smsbridge runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Backend names accepted by SMSBRIDGE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendMessages = "messages"
	BackendGateway  = "gateway"
)

const defaultDBPath = "smsbridge.db"

// Config captures all runtime configuration for the bridge.
type Config struct {
	Env      string
	LogLevel string
	Backend  string
	// DBPath is the smsdb file for the sqlite backend, or a chat.db override
	// for the messages backend.
	DBPath       string
	GSM7Capacity int
	UCS2Capacity int
	Gateway      GatewayConfig
}

// GatewayConfig holds the mail gateway settings.
type GatewayConfig struct {
	Domain   string
	SMTPAddr string
	IMAPAddr string
	Mailbox  string
	Address  string
	Password string
}

// Load reads an optional .env file and the environment, applies defaults,
// validates and returns the Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.Env = ldr.getString("SMSBRIDGE_ENV", "production", false)
	cfg.LogLevel = ldr.getString("SMSBRIDGE_LOG_LEVEL", "info", false)
	cfg.Backend = strings.ToLower(ldr.getString("SMSBRIDGE_BACKEND", BackendSQLite, false))
	cfg.GSM7Capacity = ldr.getPositiveInt("SMSBRIDGE_GSM7_CAPACITY", 160)
	cfg.UCS2Capacity = ldr.getPositiveInt("SMSBRIDGE_UCS2_CAPACITY", 70)

	switch cfg.Backend {
	case BackendSQLite:
		cfg.DBPath = ldr.getString("SMSBRIDGE_DB_PATH", defaultDBPath, false)
	case BackendMessages:
		cfg.DBPath = ldr.getString("SMSBRIDGE_DB_PATH", "", false)
	case BackendGateway:
		cfg.Gateway = GatewayConfig{
			Domain:   ldr.getString("SMSBRIDGE_GATEWAY_DOMAIN", "", true),
			SMTPAddr: ldr.getString("SMSBRIDGE_SMTP_ADDR", "", true),
			IMAPAddr: ldr.getString("SMSBRIDGE_IMAP_ADDR", "", true),
			Mailbox:  ldr.getString("SMSBRIDGE_MAILBOX", "INBOX", false),
			Address:  ldr.getString("SMSBRIDGE_MAIL_ADDRESS", "", true),
			Password: ldr.getString("SMSBRIDGE_MAIL_PASSWORD", "", true),
		}
	default:
		ldr.addError(fmt.Sprintf("SMSBRIDGE_BACKEND must be one of %s, %s, %s", BackendSQLite, BackendMessages, BackendGateway))
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		if val = strings.TrimSpace(val); val != "" {
			return val
		}
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getPositiveInt(key string, def int) int {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	if i <= 0 {
		l.addError(fmt.Sprintf("%s must be positive", key))
		return def
	}
	return i
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
