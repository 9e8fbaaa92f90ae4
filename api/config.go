package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/treepress/internal/depthcache"
)

// ErrInvalidConfig is returned by Validate and LoadConfig.
var ErrInvalidConfig = errors.New("api: invalid config")

// Config represents the user-facing compression settings. It can be
// written as HCL or JSON; omitted settings keep their defaults.
type Config struct {
	// SubtreeCapacity is the number of recent subtrees kept per depth.
	SubtreeCapacity int `json:"subtree_capacity,omitempty" hcl:"subtree_capacity,optional"`
	// TemplateCapacity is the number of derived templates kept per depth.
	// Zero disables templates.
	TemplateCapacity int `json:"template_capacity,omitempty" hcl:"template_capacity,optional"`
	// DepthWindow is how many levels above and below a node are searched.
	DepthWindow int `json:"depth_window,omitempty" hcl:"depth_window,optional"`
	// Select is a JSONPath applied to JSON input before lifting.
	Select string `json:"select,omitempty" hcl:"select,optional"`
	// Language overrides detection from the file extension.
	Language string `json:"language,omitempty" hcl:"language,optional"`
	// Workers bounds batch parallelism.
	Workers int `json:"workers,omitempty" hcl:"workers,optional"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		SubtreeCapacity:  32,
		TemplateCapacity: 8,
		DepthWindow:      2,
		Workers:          4,
	}
}

// LoadConfig reads a .hcl or .json config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, filepath.Ext(path))
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings no run could use. Capacity and window limits
// are those of the history; see depthcache.Config.Validate.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	if err := c.Cache().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Cache returns the history sizes of a run.
func (c Config) Cache() depthcache.Config {
	return depthcache.Config{
		SubtreeCapacity:  c.SubtreeCapacity,
		TemplateCapacity: c.TemplateCapacity,
		DepthWindow:      c.DepthWindow,
	}
}
