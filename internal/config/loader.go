package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/spark-corp/redshadow/pkg/models"
)

// includeKey is the directive a config file uses to pull in another file's
// contents before its own keys are applied, resolved depth-first with cycle
// detection so a chain of includes can't loop forever.
const includeKey = "$include"

// Load reads the YAML config at path, resolving any $include directives
// relative to each file's own directory, and returns a validated Config
// with provider defaults applied. An anthropic or openai provider entry with
// no api_key takes it from ANTHROPIC_API_KEY or OPENAI_API_KEY.
func Load(path string) (*Config, error) {
	raw, err := loadRawRecursive(path, map[string]bool{})
	if err != nil {
		return nil, err
	}

	buf, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config: re-marshal merged document: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg.Providers = applyProviderDefaults(cfg.Providers)
	for i := range cfg.Providers {
		if cfg.Providers[i].APIKey != "" {
			continue
		}
		switch cfg.Providers[i].Kind {
		case models.ProviderAnthropic:
			cfg.Providers[i].APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case models.ProviderOpenAI:
			cfg.Providers[i].APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadRawRecursive reads path as an untyped document, resolves its
// $include directive (if any) first, and deep-merges path's own keys over
// the included document's so a local file can override specific fields.
func loadRawRecursive(path string, visiting map[string]bool) (map[string]any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path %s: %w", path, err)
	}
	if visiting[abs] {
		return nil, fmt.Errorf("config: $include cycle detected at %s", abs)
	}
	visiting[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", abs, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", abs, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	includePath, ok := doc[includeKey].(string)
	if !ok || includePath == "" {
		return doc, nil
	}
	delete(doc, includeKey)

	if !filepath.IsAbs(includePath) {
		includePath = filepath.Join(filepath.Dir(abs), includePath)
	}
	base, err := loadRawRecursive(includePath, visiting)
	if err != nil {
		return nil, err
	}
	return mergeMaps(base, doc), nil
}

// mergeMaps deep-merges override onto base, recursing into nested maps and
// otherwise letting override win outright (including for slices, which are
// replaced rather than concatenated).
func mergeMaps(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if baseVal, ok := out[k]; ok {
			if baseMap, ok := baseVal.(map[string]any); ok {
				if overrideMap, ok := v.(map[string]any); ok {
					out[k] = mergeMaps(baseMap, overrideMap)
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}
