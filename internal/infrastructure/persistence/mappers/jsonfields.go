// Package mappers converts between domain entities and persistence
// models. Domain invariants are enforced by the Reconstruct constructors,
// so a row that fails conversion is surfaced as an error, never silently
// patched.
package mappers

import (
	"encoding/json"
	"fmt"

	"firmup/internal/domain/firmware"
)

func encodeOptions(opts firmware.UpgradeOptions) (string, error) {
	if len(opts) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode upgrade options: %w", err)
	}
	return string(raw), nil
}

func decodeOptions(raw string) (firmware.UpgradeOptions, error) {
	if raw == "" {
		return nil, nil
	}
	var opts firmware.UpgradeOptions
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, fmt.Errorf("failed to decode upgrade options: %w", err)
	}
	return opts, nil
}

func encodeStrings(values []string) (string, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode string list: %w", err)
	}
	return string(raw), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode string list: %w", err)
	}
	return values, nil
}
