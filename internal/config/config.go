package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads path and the files it includes, loads the dotenv files they
// name, fills defaults, overlays the environment and validates.
//
// Two top-level keys are directives rather than settings:
//
//	include:   [llm.yaml]      merged before the including file
//	env_files: [secrets.env]   loaded into the environment before the overlay
//
// Both take a string or a list, relative to the file that names them.
// Variables already in the environment win over env_files, and an including
// file's env_files win over those of the files it includes.
func Load(path string) (*Config, error) {
	sources, err := collectSources(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	var envFiles []string
	for _, src := range sources {
		if err := v.MergeConfigMap(src.settings); err != nil {
			return nil, fmt.Errorf("merging config %s: %w", src.path, err)
		}
	}
	// godotenv never overrides, so the file loaded first wins.
	for i := len(sources) - 1; i >= 0; i-- {
		envFiles = append(envFiles, sources[i].envFiles...)
	}
	if len(envFiles) > 0 {
		if err := LoadDotEnv(envFiles...); err != nil {
			return nil, fmt.Errorf("loading env_files: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	flattenConfigKeys("", v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("parsing environment failed: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// source is one config file, in merge order, with its directives stripped.
type source struct {
	path     string
	settings map[string]any
	envFiles []string
}

const (
	keyInclude  = "include"
	keyEnvFiles = "env_files"
)

func collectSources(path string) ([]source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	var out []source
	seen := make(map[string]bool)
	stack := make(map[string]bool)
	if err := walkSource(abs, seen, stack, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// walkSource appends includes depth first, then path itself. A file reached
// twice is merged once; a file that includes itself is an error.
func walkSource(path string, seen, stack map[string]bool, out *[]source) error {
	path = filepath.Clean(path)
	if stack[path] {
		return fmt.Errorf("include cycle detected: %s", path)
	}
	if seen[path] {
		return nil
	}
	stack[path] = true
	defer delete(stack, path)

	settings, err := readSettings(path)
	if err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	dir := filepath.Dir(path)
	includes, err := directiveList(settings, keyInclude, dir)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	envFiles, err := directiveList(settings, keyEnvFiles, dir)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, inc := range includes {
		if err := walkSource(inc, seen, stack, out); err != nil {
			return err
		}
	}
	seen[path] = true
	*out = append(*out, source{path: path, settings: settings, envFiles: envFiles})
	return nil
}

func readSettings(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

// directiveList removes key from settings and returns its entries resolved
// against dir.
func directiveList(settings map[string]any, key, dir string) ([]string, error) {
	raw, ok := settings[key]
	if !ok {
		return nil, nil
	}
	delete(settings, key)
	var items []string
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		items = []string{val}
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s only supports strings", key)
			}
			items = append(items, s)
		}
	case []string:
		items = val
	default:
		return nil, fmt.Errorf("%s must be a string or a string list", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !filepath.IsAbs(item) {
			item = filepath.Join(dir, item)
		}
		out = append(out, item)
	}
	return out, nil
}

// flattenConfigKeys marks every leaf key (and every list) as explicitly set,
// so defaults never replace a value the file spelled out.
func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
