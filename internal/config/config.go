package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BackendMode selects where applications, payments and identities live.
type BackendMode string

const (
	BackendLocal    BackendMode = "local"
	BackendSupabase BackendMode = "supabase"
	BackendPostgres BackendMode = "postgres"
)

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string
	Format string // text or json
}

// SupabaseConfig points at a hosted backend project.
type SupabaseConfig struct {
	URL       string
	AnonKey   string
	Timeout   time.Duration
	RateLimit float64
}

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string
	CORSOrigins []string
	Logging     LoggingConfig

	Mode BackendMode
	// ModeDefaulted is set when no backend was configured and local mode was
	// picked as the fallback.
	ModeDefaulted bool

	Supabase    SupabaseConfig
	DatabaseURL string

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	LocalDataDir string
	SessionFile  string
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:        fallback(os.Getenv("PORT"), "8080"),
		CORSOrigins: parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		Logging: LoggingConfig{
			Level:  fallback(os.Getenv("LOG_LEVEL"), "info"),
			Format: strings.ToLower(fallback(os.Getenv("LOG_FORMAT"), "text")),
		},
		Supabase: SupabaseConfig{
			URL:       strings.TrimSpace(os.Getenv("SUPABASE_URL")),
			AnonKey:   strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY")),
			Timeout:   parseDuration(os.Getenv("SUPABASE_TIMEOUT"), 30*time.Second),
			RateLimit: parseFloat(os.Getenv("SUPABASE_RATE_LIMIT"), 20),
		},
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:    strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:    fallback(os.Getenv("JWT_ISSUER"), "loandesk"),
		LocalDataDir: fallback(os.Getenv("LOCAL_DATA_DIR"), ".loandesk"),
		SessionFile:  fallback(os.Getenv("LOANCTL_SESSION_FILE"), defaultSessionFile()),
	}

	minutes := fallback(os.Getenv("JWT_TTL_MINUTES"), "60")
	if ttlMinutes, err := strconv.Atoi(minutes); err == nil && ttlMinutes > 0 {
		cfg.JWTTTL = time.Duration(ttlMinutes) * time.Minute
	} else {
		cfg.JWTTTL = 60 * time.Minute
	}

	switch mode := BackendMode(strings.ToLower(strings.TrimSpace(os.Getenv("BACKEND_MODE")))); mode {
	case "":
		if cfg.Supabase.URL != "" {
			cfg.Mode = BackendSupabase
		} else {
			cfg.Mode = BackendLocal
			cfg.ModeDefaulted = true
		}
	case BackendLocal, BackendSupabase, BackendPostgres:
		cfg.Mode = mode
	default:
		return Config{}, fmt.Errorf("BACKEND_MODE must be one of local, supabase, postgres; got %q", mode)
	}

	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be text or json; got %q", cfg.Logging.Format)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Mode {
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required in supabase mode")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required in postgres mode")
		}
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required in postgres mode")
		}
	case BackendLocal:
		// The fallback mode generates and keeps its own signing key.
		if c.JWTSecret == "" && !c.ModeDefaulted {
			return errors.New("JWT_SECRET is required in local mode")
		}
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func parseDuration(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseFloat(value string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".loandesk", "session.json")
	}
	return filepath.Join(home, ".loandesk", "session.json")
}
