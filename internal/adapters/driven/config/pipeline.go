// Package config turns stored configuration values into the typed
// pipeline configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/mmtf-derive/internal/core/domain"
	"github.com/custodia-labs/mmtf-derive/internal/core/ports/driven"
	"github.com/custodia-labs/mmtf-derive/internal/filter"
)

// Configuration keys.
const (
	KeyPartitionCount    = "partition_count"
	KeyWorkers           = "workers"
	KeyAllModels         = "extract.all_models"
	KeyUseChainID        = "extract.use_chain_id"
	KeyExcludeDuplicates = "extract.exclude_duplicates"
	KeyFilters           = "filters"
	KeyDerivers          = "derivers"
	KeyManifestDB        = "manifest_db"
	KeyOutput            = "output"

	divisorPrefix = "divisor_override."
)

// PipelineConfig builds the pipeline configuration from a store, starting
// from domain.DefaultPipelineConfig. Only keys present in the store
// replace defaults.
func PipelineConfig(store driven.ConfigStore) (domain.PipelineConfig, error) {
	cfg := domain.DefaultPipelineConfig()

	if _, ok := store.Get(KeyPartitionCount); ok {
		cfg.PartitionCount = store.GetInt(KeyPartitionCount)
	}
	if _, ok := store.Get(KeyWorkers); ok {
		cfg.Workers = store.GetInt(KeyWorkers)
	}
	cfg.Extract = domain.ExtractOptions{
		AllModels:         store.GetBool(KeyAllModels),
		UseChainID:        store.GetBool(KeyUseChainID),
		ExcludeDuplicates: store.GetBool(KeyExcludeDuplicates),
	}

	for _, key := range store.Keys() {
		if !strings.HasPrefix(key, divisorPrefix) {
			continue
		}
		val, _ := store.Get(key)
		d, ok := toFloat(val)
		if !ok {
			return cfg, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
		if cfg.DivisorOverride == nil {
			cfg.DivisorOverride = make(map[string]float64)
		}
		cfg.DivisorOverride[strings.TrimPrefix(key, divisorPrefix)] = d
	}

	if val, ok := store.Get(KeyFilters); ok {
		items, ok := val.([]any)
		if !ok {
			return cfg, fmt.Errorf("%w: %s must be an array of tables", domain.ErrInvalidInput, KeyFilters)
		}
		for i, item := range items {
			p, err := predicate(item)
			if err != nil {
				return cfg, fmt.Errorf("filter %d: %w", i, err)
			}
			if err := filter.Validate(p); err != nil {
				return cfg, fmt.Errorf("filter %d: %w", i, err)
			}
			cfg.Filters = append(cfg.Filters, p)
		}
	}

	if val, ok := store.Get(KeyDerivers); ok {
		specs, err := deriverSpecs(val)
		if err != nil {
			return cfg, err
		}
		cfg.Derivers = specs
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// predicate converts a decoded TOML table into a predicate tree.
func predicate(v any) (domain.Predicate, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return domain.Predicate{}, fmt.Errorf("%w: predicate must be a table, got %T", domain.ErrInvalidInput, v)
	}
	p := domain.Predicate{
		Kind:   domain.PredicateKind(str(m["kind"])),
		Target: domain.Target(str(m["target"])),
		Field:  str(m["field"]),
		Op:     str(m["op"]),
		Value:  m["value"],
	}
	if p.Kind == "" && p.Field != "" {
		p.Kind = domain.PredicateAtomic
	}
	if terms, ok := m["terms"].([]any); ok {
		for _, t := range terms {
			term, err := predicate(t)
			if err != nil {
				return p, err
			}
			p.Terms = append(p.Terms, term)
		}
	}
	return p, nil
}

func deriverSpecs(v any) ([]domain.DeriverSpec, error) {
	switch items := v.(type) {
	case []string:
		specs := make([]domain.DeriverSpec, len(items))
		for i, name := range items {
			specs[i] = domain.DeriverSpec{Name: name}
		}
		return specs, nil
	case []any:
		specs := make([]domain.DeriverSpec, 0, len(items))
		for i, item := range items {
			switch d := item.(type) {
			case string:
				specs = append(specs, domain.DeriverSpec{Name: d})
			case map[string]any:
				name := str(d["name"])
				if name == "" {
					return nil, fmt.Errorf("%w: deriver %d has no name", domain.ErrInvalidInput, i)
				}
				opts, _ := d["options"].(map[string]any)
				specs = append(specs, domain.DeriverSpec{Name: name, Options: opts})
			default:
				return nil, fmt.Errorf("%w: deriver %d must be a name or table", domain.ErrInvalidInput, i)
			}
		}
		return specs, nil
	}
	return nil, fmt.Errorf("%w: %s must be an array", domain.ErrInvalidInput, KeyDerivers)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
