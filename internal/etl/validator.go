package etl

import (
	"errors"
	"fmt"

	"github.com/BartekS5/treemigrate/pkg/models"
)

var (
	ErrNoTree                = errors.New("export config has no treeConfig")
	ErrEmptyAPIName          = errors.New("config node has no apiName")
	ErrMissingReferenceField = errors.New("child config has no referenceField")
	ErrNestedDependency      = errors.New("dependency configs must be flat")
	ErrInvalidKeyMapping     = errors.New("invalid key mapping")
)

// Validate checks an export config before any I/O happens.
func Validate(cfg *models.ExportConfig) error {
	if cfg == nil || cfg.TreeConfig == nil {
		return ErrNoTree
	}
	root := cfg.TreeConfig
	if root.ReferenceField != "" && len(root.ParentRecordIDs) == 0 {
		return fmt.Errorf("%w: root %s filters on %s but declares no parentRecordIds",
			ErrMissingReferenceField, root.APIName, root.ReferenceField)
	}
	if err := validateNode(root, root.APIName, true); err != nil {
		return err
	}

	for i, dep := range cfg.DependencyConfig {
		if dep == nil || dep.APIName == "" {
			return fmt.Errorf("%w: dependencyConfig[%d]", ErrEmptyAPIName, i)
		}
		if len(dep.Children) > 0 || dep.ReferenceField != "" {
			return fmt.Errorf("%w: %s", ErrNestedDependency, dep.APIName)
		}
	}

	for i, km := range cfg.KeyMappings {
		switch {
		case km.APIName == "":
			return fmt.Errorf("%w: keyMappings[%d] has no apiName", ErrInvalidKeyMapping, i)
		case len(km.KeyFields) == 0:
			return fmt.Errorf("%w: %s has no keyFields", ErrInvalidKeyMapping, km.APIName)
		case km.FilterField == "":
			return fmt.Errorf("%w: %s has no filterField", ErrInvalidKeyMapping, km.APIName)
		}
	}
	return nil
}

func validateNode(node *models.TreeConfig, path string, root bool) error {
	if node == nil || node.APIName == "" {
		return fmt.Errorf("%w: %s", ErrEmptyAPIName, path)
	}
	if !root && node.ReferenceField == "" {
		return fmt.Errorf("%w: %s", ErrMissingReferenceField, path)
	}
	for i, child := range node.Children {
		childPath := fmt.Sprintf("%s.children[%d]", path, i)
		if child != nil && child.APIName != "" {
			childPath = path + "." + child.APIName
		}
		if err := validateNode(child, childPath, false); err != nil {
			return err
		}
	}
	return nil
}
