// Package config provides functionality for managing configuration options
// for the server using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`

	// RedisURL points at the redis instance backing the token revocation list.
	// Empty means an in-memory list is used.
	RedisURL string `json:"redis_url"`

	// JWTSecret signs session access tokens.
	JWTSecret string `json:"jwt_secret"`

	// TokenTTL is the lifetime of an issued session token.
	TokenTTL time.Duration `json:"-"`

	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `json:"log_level"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// CallbackURL is the deep link embedded in magic-link emails.
	CallbackURL string `json:"callback_url"`

	// GoogleClientID is the audience of accepted Google ID tokens. Empty
	// disables Google sign-in.
	GoogleClientID string `json:"google_client_id"`

	// AuthRateLimit caps requests per minute to the public auth endpoints,
	// per client IP and per email. Zero disables the limit.
	AuthRateLimit int `json:"auth_rate_limit"`

	// CleanupBatch bounds the expired auth codes removed per statement.
	CleanupBatch int `json:"cleanup_batch"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

const (
	// DefaultJWTSecret is the development signing secret.
	DefaultJWTSecret   = "dev-secret-change-me"
	defaultCallbackURL = "beitak://auth/callback"
)

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	register(flag.CommandLine, options)
}

func register(fs *flag.FlagSet, o *Options) {
	fs.StringVar(&o.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&o.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&o.RedisURL, "r", "", "redis url for token revocation")
	fs.StringVar(&o.JWTSecret, "k", DefaultJWTSecret, "jwt signing secret")
	fs.DurationVar(&o.TokenTTL, "t", 7*24*time.Hour, "session token lifetime")
	fs.StringVar(&o.LogLevel, "l", "info", "log level")
	fs.StringVar(&o.TLSCert, "tls-cert", "", "path to server TLS certificate")
	fs.StringVar(&o.TLSKey, "tls-key", "", "path to server TLS key")
	fs.StringVar(&o.CallbackURL, "callback", defaultCallbackURL, "magic link callback url")
	fs.StringVar(&o.GoogleClientID, "google-client-id", "", "OAuth client id for Google sign-in")
	fs.IntVar(&o.AuthRateLimit, "auth-rate", 10, "auth requests per minute per IP and per email")
	fs.IntVar(&o.CleanupBatch, "cleanup-batch", 500, "expired auth codes removed per statement")
	fs.StringVar(&o.Config, "config", "config.json", "path to config file")
	fs.StringVar(&o.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values. Precedence: environment, then config file,
// then flags.
func Parse() (*Options, error) {
	flag.Parse()
	if err := load(options, os.LookupEnv); err != nil {
		return nil, err
	}
	return options, nil
}

// ParseArgs is Parse over an explicit argument list and environment lookup.
func ParseArgs(args []string, lookup func(string) (string, bool)) (*Options, error) {
	o := &Options{}
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	register(fs, o)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := load(o, lookup); err != nil {
		return nil, err
	}
	return o, nil
}

func load(o *Options, lookup func(string) (string, bool)) error {
	// Override flags with environment variables if set
	if configPath, ok := lookup("CONFIG"); ok && configPath != "" {
		o.Config = configPath
	}

	if o.Config != "" {
		if _, err := os.Stat(o.Config); err == nil {
			data, err := os.ReadFile(o.Config)
			if err != nil {
				return fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, o); err != nil {
				return fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	env := map[string]*string{
		"SERVER_ADDRESS":   &o.Port,
		"DATABASE_DSN":     &o.DatabaseDSN,
		"REDIS_URL":        &o.RedisURL,
		"JWT_SECRET":       &o.JWTSecret,
		"LOG_LEVEL":        &o.LogLevel,
		"GOOGLE_CLIENT_ID": &o.GoogleClientID,
	}
	for key, dst := range env {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("TOKEN_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_TTL: %w", err)
		}
		o.TokenTTL = ttl
	}

	if o.AuthRateLimit < 0 {
		return fmt.Errorf("auth-rate must not be negative")
	}
	if o.CleanupBatch <= 0 {
		return fmt.Errorf("cleanup-batch must be positive")
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		return fmt.Errorf("tls-cert and tls-key must be set together")
	}
	return nil
}

// TLSEnabled reports whether the server should serve HTTPS.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}
