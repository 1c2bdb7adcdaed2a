package risk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"informer/internal/logger"
)

// FileConfig maps the optional profiles file.
type FileConfig struct {
	Profiles []Profile `yaml:"profiles"`
}

// Snapshot is an immutable view of the profile table.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]Profile
}

// Resolve returns the named profile, or nil when the name is empty or unknown.
func (s Snapshot) Resolve(name string) *Profile {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	p, ok := s.Profiles[name]
	if !ok {
		return nil
	}
	return &p
}

func (s Snapshot) Names() []string {
	out := make([]string, 0, len(s.Profiles))
	for k := range s.Profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Registry holds the built-in profiles plus any loaded from a YAML file. The
// file is watched and reloaded; a run takes one Snapshot at its start.
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry loads built-ins and, when path is non-empty, the profiles file.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path)}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if r.path == "" {
		return r, nil
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read risk profiles failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("risk profile reload failed (%s): %v", evt.Op, err)
		}
	})
	v.WatchConfig()
	r.v = v
	return r, nil
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

func (r *Registry) reload() error {
	profiles := Builtin()
	if r.path != "" {
		cfg, err := readProfilesFile(r.path)
		if err != nil {
			return err
		}
		for _, p := range cfg.Profiles {
			p.Name = strings.TrimSpace(p.Name)
			if err := p.Validate(); err != nil {
				return err
			}
			profiles[p.Name] = p
		}
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: profiles,
	}
	r.mu.Unlock()
	if r.path != "" {
		logger.Infof("risk profile registry loaded %d profiles from %s", len(profiles), filepath.Base(r.path))
	}
	return nil
}

func readProfilesFile(path string) (FileConfig, error) {
	var cfg FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read risk profiles failed: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse risk profiles %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Profiles: make(map[string]Profile, len(src.Profiles)),
	}
	for k, v := range src.Profiles {
		dst.Profiles[k] = v
	}
	return dst
}
