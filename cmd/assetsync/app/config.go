package app

import (
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bcgov/bcparks-asset-sync/pkg/errors"
)

// Config holds the application configuration loaded from environment
// variables, .env files, and command-line flags.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool

	// Operational store connection (PG_*_CW environment variables)
	PGHost     string
	PGPort     string
	PGDatabase string
	PGUser     string
	PGPassword string

	// Feature service connection (AGO_* environment variables)
	AGOHost     string
	AGOUsername string
	AGOPassword string
	LayerURL    string

	// Pipeline configuration
	SchemaPath   string
	BoundaryPath string
	ReportPath   string
	Tables       []string
	Workers      int
	DryRun       bool

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration in order of precedence: command-line
// flags (applied later by cobra), environment variables, .env files,
// defaults.
func LoadConfig() (*Config, error) {
	// .env files load first so Viper's env binding sees them.
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	config := &Config{
		PGHost:     viper.GetString("PG_HOST_CW"),
		PGPort:     getEnvOrDefault("PG_PORT_CW", "5432"),
		PGDatabase: viper.GetString("PG_DATABASE_CW"),
		PGUser:     viper.GetString("PG_USER_CW"),
		PGPassword: viper.GetString("PG_PASSWORD_CW"),

		AGOHost:     viper.GetString("AGO_HOST"),
		AGOUsername: viper.GetString("AGO_USERNAME"),
		AGOPassword: viper.GetString("AGO_PASSWORD"),
		LayerURL:    viper.GetString("AGO_LAYER_URL"),

		BoundaryPath: getEnvOrDefault("BOUNDARY_PATH", "data/bc_boundary.geojson"),
		Workers:      4,

		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

// ValidateStore checks that the store connection settings are complete.
func (c *Config) ValidateStore() error {
	missing := missingOf(map[string]string{
		"PG_HOST_CW":     c.PGHost,
		"PG_DATABASE_CW": c.PGDatabase,
		"PG_USER_CW":     c.PGUser,
		"PG_PASSWORD_CW": c.PGPassword,
	})
	if len(missing) > 0 {
		return &errors.ConfigError{
			Component: "store",
			Message:   "missing required settings: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// ValidateRemote checks that the feature service settings are complete.
func (c *Config) ValidateRemote() error {
	missing := missingOf(map[string]string{
		"AGO_HOST":      c.AGOHost,
		"AGO_USERNAME":  c.AGOUsername,
		"AGO_PASSWORD":  c.AGOPassword,
		"AGO_LAYER_URL": c.LayerURL,
	})
	if len(missing) > 0 {
		return &errors.ConfigError{
			Component: "remote",
			Message:   "missing required settings: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// missingOf returns the sorted names whose values are empty.
func missingOf(settings map[string]string) []string {
	var missing []string
	for name, value := range settings {
		if value == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// loadEnvFiles loads .env files from the working directory. Missing
// files are fine; real values in the environment always win.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

// getEnvOrDefault returns the environment value or a fallback.
func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
