package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(args ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("source-org", "s", "", "")
	fs.StringP("target-org", "t", "", "")
	fs.StringP("export-config", "e", "", "")
	fs.BoolP("debug", "d", false, "")
	fs.String("output-dir", "_output", "")
	_ = fs.Parse(args)
	return fs
}

func TestLoadConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("MIGRATE_TARGET_ORG", "env-target")
	t.Setenv("MIGRATE_SOURCE_ORG", "env-source")
	t.Setenv("SQL_CONNECTION_STRING", "sqlserver://legacy")
	t.Setenv("MIGRATE_MONGO_CONNECTION_STRING", "mongodb://prefixed")
	t.Setenv("MONGO_CONNECTION_STRING", "mongodb://legacy")
	t.Setenv("MIGRATE_API_VERSION", "v61.0")

	cfg, err := LoadConfig(testFlags("-s", "dev", "-e", "export.json", "-d"))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.SourceOrg, "flags win over env")
	assert.Equal(t, "env-target", cfg.TargetOrg)
	assert.Equal(t, "export.json", cfg.ExportConfig)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "_output", cfg.OutputDir)
	assert.Equal(t, "61.0", cfg.APIVersion)
	assert.Equal(t, "sqlserver://legacy", cfg.SQLConnString)
	assert.Equal(t, "mongodb://prefixed", cfg.MongoConnString)
	assert.Equal(t, "treemigrate", cfg.MongoDatabase)
}

func TestLoadConfigRequiresSourceAndExport(t *testing.T) {
	_, err := LoadConfig(testFlags("-e", "export.json"))
	assert.ErrorContains(t, err, "source org")

	_, err = LoadConfig(testFlags("-s", "dev"))
	assert.ErrorContains(t, err, "export config")
}

func TestLoadExportConfig(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "export.json")
	yamlPath := filepath.Join(dir, "export.yml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"treeConfig":{"apiName":"Account","recordIds":["001A"]}}`), 0o644))
	require.NoError(t, os.WriteFile(yamlPath, []byte("treeConfig:\n  apiName: Case\n  recordIds: [500A]\n"), 0o644))

	cfg, err := LoadExportConfig(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "Account", cfg.TreeConfig.APIName)

	cfg, err = LoadExportConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"500A"}, cfg.TreeConfig.RecordIDs)

	_, err = LoadExportConfig(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read export config")

	require.NoError(t, os.WriteFile(jsonPath, []byte(`{`), 0o644))
	_, err = LoadExportConfig(jsonPath)
	assert.ErrorContains(t, err, "failed to parse export config")
}
