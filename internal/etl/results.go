package etl

import (
	"fmt"
	"strings"

	"github.com/BartekS5/treemigrate/pkg/logger"
	"github.com/BartekS5/treemigrate/pkg/models"
)

var pastTense = map[string]string{
	"insert": "Inserted",
	"update": "Updated",
	"upsert": "Upserted",
	"delete": "Deleted",
}

// WriteError reports rows rejected by a write call.
type WriteError struct {
	Action     string
	ObjectType string
	Summary    models.Summary
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %d of %d records failed: %s", e.Action, e.ObjectType,
		e.Summary.ErrorCount, e.Summary.ErrorCount+e.Summary.SuccessCount, e.Summary)
}

func displayResults(action, objectType string, s models.Summary) {
	if s.SuccessCount > 0 {
		logger.Info("\t✅ %s %d %s record%s: %s", pastTense[action], s.SuccessCount, objectType,
			plural(s.SuccessCount), strings.Join(s.SuccessIDs, ", "))
	}
	if s.ErrorCount > 0 {
		logger.Warn("\t⚠️  Failed to %s %d %s record%s:", action, s.ErrorCount, objectType, plural(s.ErrorCount))
		for _, e := range s.Errors {
			logger.Warn("\t   • %s (%s)", e.Message, e.StatusCode)
		}
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
