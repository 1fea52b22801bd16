package config

import (
	"fmt"
)

// Lookup returns the effective value of key and whether viper knows it.
func (cm *Manager) Lookup(key string) (any, bool) {
	if !cm.v.IsSet(key) {
		return nil, false
	}
	return cm.v.Get(key), true
}

// Entries returns every documented key with its effective value.
func (cm *Manager) Entries() []Entry {
	entries := DefaultEntries()
	for i := range entries {
		entries[i].Value = cm.v.Get(entries[i].Key)
	}
	return entries
}

// Set updates a key and persists the config file. The new configuration
// must validate before it is written.
func (cm *Manager) Set(key string, value any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	path := cm.v.ConfigFileUsed()
	if path == "" {
		return fmt.Errorf("no config file loaded; run 'cuentos config init' first")
	}

	prev, hadPrev := cm.Lookup(key)
	cm.v.Set(key, value)
	cfg, err := cm.load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		if hadPrev {
			cm.v.Set(key, prev)
		}
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	if err := cm.v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()
	return nil
}

// Reset restores a documented key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func (cm *Manager) Reset(key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return cm.Set(key, def.Value)
}
