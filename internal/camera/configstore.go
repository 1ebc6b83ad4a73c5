package camera

import (
	"sync"

	"github.com/veganlens/veganlens-core/internal/infrastructure/config"
)

// ModeConfigStore holds the per-mode default hardware configuration.
// Defaults are mutable at runtime through Update; reads return copies.
//
// All methods are safe for concurrent use.
type ModeConfigStore struct {
	mu       sync.RWMutex
	defaults map[Mode]Config
}

// NewModeConfigStore seeds the store from the YAML mode defaults.
// Inactive has no hardware intent and maps to the zero config.
func NewModeConfigStore(modes config.ModesConfig) *ModeConfigStore {
	return &ModeConfigStore{
		defaults: map[Mode]Config{
			ModeInactive:         {},
			ModeScanner:          configFromDefaults(modes.Scanner),
			ModeProductPhoto:     configFromDefaults(modes.ProductPhoto),
			ModeIngredientsPhoto: configFromDefaults(modes.IngredientsPhoto),
		},
	}
}

// Get returns a copy of the stored default for mode.
func (s *ModeConfigStore) Get(mode Mode) Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults[mode].clone()
}

// Update merges the patch into the stored default for mode and returns a
// copy of the result.
func (s *ModeConfigStore) Update(mode Mode, patch *ConfigPatch) Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.defaults[mode].clone()
	patch.apply(&cfg)
	s.defaults[mode] = cfg
	return cfg.clone()
}
