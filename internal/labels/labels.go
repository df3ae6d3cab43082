// Package labels maps model output indices to breed names.
package labels

import (
	"errors"
	"os"
	"strconv"

	"github.com/Brownie44l1/dogbreed-api/internal/core"

	"github.com/bytedance/sonic"
)

// Table is an immutable index to name mapping.
type Table struct {
	names map[int]string
}

// New builds a table from an explicit mapping.
func New(names map[int]string) *Table {
	t := &Table{names: make(map[int]string, len(names))}
	for k, v := range names {
		t.names[k] = v
	}
	return t
}

// Load reads a class_indices.json file of the form {"0": "Affenpinscher", ...}.
// Any failure is logged and yields an empty table.
func Load(path string, logger core.Logger) *Table {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Label file %s not found, all predictions will be %q", path, core.UnknownLabel)
		} else {
			logger.Warn("Failed to read label file %s: %v", path, err)
		}
		return New(nil)
	}

	t, err := Parse(data, logger)
	if err != nil {
		logger.Warn("Failed to parse label file %s: %v", path, err)
		return New(nil)
	}

	logger.Info("Loaded %d labels from %s", t.Len(), path)
	return t
}

// Parse decodes the JSON label mapping. Keys that are not integers are skipped.
func Parse(data []byte, logger core.Logger) (*Table, error) {
	raw := make(map[string]string)
	if len(data) > 0 {
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}

	names := make(map[int]string, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil {
			logger.Warn("Skipping label with non-integer index %q", k)
			continue
		}
		names[idx] = v
	}
	return &Table{names: names}, nil
}

// Name returns the label for idx, or core.UnknownLabel.
func (t *Table) Name(idx int) string {
	if t == nil {
		return core.UnknownLabel
	}
	if name, ok := t.names[idx]; ok {
		return name
	}
	return core.UnknownLabel
}

// Len returns the number of known labels.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}
