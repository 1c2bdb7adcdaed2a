package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed defaults/*.txt
var defaults embed.FS

// Loader resolves the system prompt for a stage. Files named <name>.txt in
// the configured directories override the compiled-in defaults.
type Loader struct {
	bases []string
}

func NewLoader(bases ...string) *Loader {
	normalized := make([]string, 0, len(bases))
	seen := make(map[string]struct{}, len(bases))
	for _, base := range bases {
		base = strings.TrimSpace(base)
		if base == "" {
			continue
		}
		if _, ok := seen[base]; ok {
			continue
		}
		normalized = append(normalized, base)
		seen[base] = struct{}{}
	}
	return &Loader{bases: normalized}
}

// Load returns the prompt for name (e.g. "critic").
func (l *Loader) Load(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid prompt name %q", name)
	}
	for _, base := range l.bases {
		data, err := os.ReadFile(filepath.Join(base, name+".txt"))
		if err == nil && strings.TrimSpace(string(data)) != "" {
			return strings.TrimSpace(string(data)), nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("read prompt %s: %w", name, err)
		}
	}
	data, err := defaults.ReadFile("defaults/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("prompt %s not found", name)
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadAll resolves every name up front so a missing prompt fails at startup.
func (l *Loader) LoadAll(names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		txt, err := l.Load(n)
		if err != nil {
			return nil, err
		}
		out[n] = txt
	}
	return out, nil
}
