package config

import (
	"fmt"
	"time"

	"github.com/casklane/stockfeed/internal/db"
	"github.com/spf13/viper"
)

// ImporterConfig holds the governed-import settings.
type ImporterConfig struct {
	InboxDir     string
	StatusDir    string
	Target       string
	Timeout      time.Duration
	RunningGrace time.Duration
	PendingGrace time.Duration
	ListenAddr   string
	LockName     string
}

// Config is the full application configuration.
type Config struct {
	Database db.Config
	Importer ImporterConfig
}

// DefaultImporterConfig returns default importer settings.
func DefaultImporterConfig() ImporterConfig {
	return ImporterConfig{
		InboxDir:     "./inbox",
		StatusDir:    "./status",
		Target:       "default",
		Timeout:      30 * time.Minute,
		RunningGrace: 2 * time.Hour,
		PendingGrace: 15 * time.Minute,
		ListenAddr:   ":8090",
		LockName:     "stockfeed.daily_import",
	}
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Config{
		Database: db.DefaultConfig(),
		Importer: DefaultImporterConfig(),
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()            // allow environment overrides
	v.SetEnvPrefix("STOCKFEED") // map env vars like STOCKFEED_DATABASE.HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("importer.inbox_dir")
	v.BindEnv("importer.status_dir")
	v.BindEnv("importer.target")
	v.BindEnv("importer.timeout")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("importer.inbox_dir") {
		cfg.Importer.InboxDir = v.GetString("importer.inbox_dir")
	}
	if v.IsSet("importer.status_dir") {
		cfg.Importer.StatusDir = v.GetString("importer.status_dir")
	}
	if v.IsSet("importer.target") {
		cfg.Importer.Target = v.GetString("importer.target")
	}
	if v.IsSet("importer.timeout") {
		cfg.Importer.Timeout = v.GetDuration("importer.timeout")
	}
	if v.IsSet("importer.running_grace") {
		cfg.Importer.RunningGrace = v.GetDuration("importer.running_grace")
	}
	if v.IsSet("importer.pending_grace") {
		cfg.Importer.PendingGrace = v.GetDuration("importer.pending_grace")
	}
	if v.IsSet("importer.listen_addr") {
		cfg.Importer.ListenAddr = v.GetString("importer.listen_addr")
	}
	if v.IsSet("importer.lock_name") {
		cfg.Importer.LockName = v.GetString("importer.lock_name")
	}

	return cfg, nil
}
