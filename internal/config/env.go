package config

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved run configuration. Flags win over MIGRATE_*
// environment variables, which win over defaults.
type Config struct {
	SourceOrg       string
	TargetOrg       string
	ExportConfig    string
	OutputDir       string
	LogFile         string
	Debug           bool
	APIVersion      string
	SQLConnString   string
	MongoConnString string
	MongoDatabase   string
}

func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MIGRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("output-dir", "_output")
	v.SetDefault("log-file", "")
	v.SetDefault("debug", false)
	v.SetDefault("api-version", "62.0")
	v.SetDefault("mongo-database", "treemigrate")

	// Unprefixed names kept for existing .env files.
	_ = v.BindEnv("sql-connection-string", "MIGRATE_SQL_CONNECTION_STRING", "SQL_CONNECTION_STRING")
	_ = v.BindEnv("mongo-connection-string", "MIGRATE_MONGO_CONNECTION_STRING", "MONGO_CONNECTION_STRING")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		SourceOrg:       v.GetString("source-org"),
		TargetOrg:       v.GetString("target-org"),
		ExportConfig:    v.GetString("export-config"),
		OutputDir:       v.GetString("output-dir"),
		LogFile:         v.GetString("log-file"),
		Debug:           v.GetBool("debug"),
		APIVersion:      strings.TrimPrefix(v.GetString("api-version"), "v"),
		SQLConnString:   v.GetString("sql-connection-string"),
		MongoConnString: v.GetString("mongo-connection-string"),
		MongoDatabase:   v.GetString("mongo-database"),
	}
	if cfg.SourceOrg == "" {
		return nil, errors.New("source org not set (--source-org or MIGRATE_SOURCE_ORG)")
	}
	if cfg.ExportConfig == "" {
		return nil, errors.New("export config not set (--export-config or MIGRATE_EXPORT_CONFIG)")
	}
	return cfg, nil
}
