package core

import (
	"errors"
	"fmt"
)

// ErrUnknownEntity is returned for an entity key with no registered config.
var ErrUnknownEntity = errors.New("unknown entity")

// Registry holds the import configs available to a Service. It is built
// once and read-only afterwards.
type Registry struct {
	configs map[string]ImportConfig
	order   []string
}

// NewRegistry validates and registers configs, keeping their order.
func NewRegistry(configs ...ImportConfig) (*Registry, error) {
	r := &Registry{configs: make(map[string]ImportConfig, len(configs))}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.configs[cfg.Key]; exists {
			return nil, fmt.Errorf("import config already registered: %s", cfg.Key)
		}
		r.configs[cfg.Key] = cfg
		r.order = append(r.order, cfg.Key)
	}
	return r, nil
}

// Get returns the config for key.
func (r *Registry) Get(key string) (ImportConfig, bool) {
	cfg, ok := r.configs[key]
	return cfg, ok
}

// Lookup is Get with an error wrapping ErrUnknownEntity.
func (r *Registry) Lookup(key string) (ImportConfig, error) {
	cfg, ok := r.configs[key]
	if !ok {
		return ImportConfig{}, fmt.Errorf("%w: %s", ErrUnknownEntity, key)
	}
	return cfg, nil
}

// All returns every config in registration order.
func (r *Registry) All() []ImportConfig {
	out := make([]ImportConfig, len(r.order))
	for i, key := range r.order {
		out[i] = r.configs[key]
	}
	return out
}

// Len returns the number of registered configs.
func (r *Registry) Len() int {
	return len(r.order)
}
