package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var storeJSON = jsoniter.Config{SortMapKeys: true, IndentionStep: 2}.Froze()

// LoadProfileStore reads the JSON profile/schedule/always-blocked
// store from path. A missing file yields an empty, usable store
// rather than an error, since a fresh install has declared nothing
// yet.
func LoadProfileStore(path string) (ProfileStore, error) {
	store := ProfileStore{Profiles: map[string]Profile{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return store, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := storeJSON.Unmarshal(data, &store); err != nil {
		return store, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if store.Profiles == nil {
		store.Profiles = map[string]Profile{}
	}
	return store, nil
}

// SaveProfileStore writes the store back to path as indented, sorted
// JSON, the canonical encoding used throughout this module.
func SaveProfileStore(path string, store ProfileStore) error {
	data, err := storeJSON.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encoding profile store: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
