package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BartekS5/treemigrate/pkg/models"
	"github.com/gofrs/flock"
)

// FileSink writes <dir>/<Type>.json files. It holds a lock on the directory
// for its lifetime so two runs never interleave their output.
type FileSink struct {
	Dir  string
	lock *flock.Flock
}

// OpenFileSink creates dir and takes its lock.
func OpenFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring output lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another run is writing to %s", dir)
	}
	return &FileSink{Dir: dir, lock: lock}, nil
}

func (f *FileSink) Dump(_ context.Context, objectType string, records []*models.Record) error {
	if records == nil {
		records = []*models.Record{}
	}
	return f.WriteJSON(objectType+".json", records)
}

// WriteJSON writes v indented under the sink directory.
func (f *FileSink) WriteJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(f.Dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (f *FileSink) Close() error {
	if f.lock == nil {
		return nil
	}
	return f.lock.Unlock()
}
