// Package config resolves run settings and loads export configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BartekS5/treemigrate/pkg/models"
)

// LoadExportConfig reads the export configuration at filePath. Files ending
// in .yaml or .yml are parsed as YAML, anything else as JSON.
func LoadExportConfig(filePath string) (*models.ExportConfig, error) {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read export config '%s': %w", filePath, err)
	}

	var cfg *models.ExportConfig
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		cfg, err = models.LoadMappingYAML(bytes)
	default:
		cfg, err = models.LoadMapping(bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse export config '%s': %w", filePath, err)
	}
	return cfg, nil
}
