package records

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadSnapshot reads an exported collection from disk. JSON and YAML files
// are accepted; the result is either a mapping of key to record or a list,
// exactly as exported, and is meant to be handed to breeding.Normalize.
func LoadSnapshot(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "records: read snapshot %s", path)
	}
	var raw any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, eris.Wrapf(err, "records: decode yaml snapshot %s", path)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, eris.Wrapf(err, "records: decode json snapshot %s", path)
		}
	}
	return raw, nil
}

// AsCollection converts a decoded snapshot into the map form returned by
// Store.List. List snapshots are keyed by position; entries that are not
// mappings are dropped.
func AsCollection(raw any) map[string]Record {
	out := make(map[string]Record)
	switch v := raw.(type) {
	case map[string]any:
		for key, item := range v {
			if rec, ok := item.(map[string]any); ok && rec != nil {
				out[key] = rec
			}
		}
	case []any:
		for i, item := range v {
			if rec, ok := item.(map[string]any); ok && rec != nil {
				out[strconv.Itoa(i)] = rec
			}
		}
	}
	return out
}
