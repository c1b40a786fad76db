package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/calcsync/internal/ir"
)

// marshalValues converts a string map to canonical JSON TEXT so stored rows
// are byte-stable.
func marshalValues(values map[string]string) (string, error) {
	if values == nil {
		values = map[string]string{}
	}
	data, err := ir.MarshalCanonical(values)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

func unmarshalValues(data string) (map[string]string, error) {
	out := map[string]string{}
	if data == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return out, nil
}

func marshalPaths(paths []string) (string, error) {
	if paths == nil {
		paths = []string{}
	}
	data, err := ir.MarshalCanonical(paths)
	if err != nil {
		return "", fmt.Errorf("marshal drill paths: %w", err)
	}
	return string(data), nil
}

func unmarshalPaths(data string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal drill paths: %w", err)
	}
	return out, nil
}
