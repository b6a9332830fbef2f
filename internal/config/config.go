// Package config provides functionality for managing configuration options
// for the application using command-line flags and environment variables.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string

	// DataDir is the root directory holding per-user vault trees.
	DataDir string

	// LogLevel sets the zap logging level.
	LogLevel string

	// Config is the path to the Config file.
	Config string

	// Debounce is how long the watcher coalesces filesystem events on
	// one path before syncing it.
	Debounce time.Duration

	// SuppressTTL is how long the engine's own writes suppress watcher
	// events for the written path.
	SuppressTTL time.Duration

	// ReconcileInterval is the period between full catalog sweeps.
	ReconcileInterval time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	flag.StringVar(&options.DatabaseDSN, "d", "", "db address")
	flag.StringVar(&options.DataDir, "data", "data", "root directory for vault files")
	flag.StringVar(&options.LogLevel, "log-level", "Info", "logging level")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	flag.DurationVar(&options.Debounce, "debounce", 500*time.Millisecond, "watcher event debounce window")
	flag.DurationVar(&options.SuppressTTL, "suppress-ttl", 5*time.Second, "self-write suppression TTL")
	flag.DurationVar(&options.ReconcileInterval, "reconcile-interval", 5*time.Minute, "period between reconcile sweeps")
	flag.DurationVar(&options.ShutdownTimeout, "shutdown-timeout", 15*time.Second, "graceful shutdown deadline")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		options.DataDir = dataDir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		options.LogLevel = level
	}

	return options
}
