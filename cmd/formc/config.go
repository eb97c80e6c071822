package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the formc.yaml layout. Every field can be overridden by the flag
// of the same name.
type Config struct {
	Library   string `yaml:"library"`
	Catalog   string `yaml:"catalog"`
	DomainURL string `yaml:"domainUrl"`
	Database  string `yaml:"database"`
	AllowHTTP bool   `yaml:"allowHttp"`
	Listen    string `yaml:"listen"`
	Forms     string `yaml:"forms"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() Config {
	return Config{Listen: ":8080"}
}

// loadConfig reads path. A missing file is only an error when the path was
// given explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("formc: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("formc: parse config %s: %w", path, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultConfig().Listen
	}
	return cfg, nil
}

// merge applies the flags the user actually set.
func (c Config) merge(cmd *cobra.Command, flags Config) Config {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("library") {
		c.Library = flags.Library
	}
	if changed("catalog") {
		c.Catalog = flags.Catalog
	}
	if changed("domain-url") {
		c.DomainURL = flags.DomainURL
	}
	if changed("db") {
		c.Database = flags.Database
	}
	if changed("allow-http") {
		c.AllowHTTP = flags.AllowHTTP
	}
	return c
}

func (c Config) describeSource() string {
	switch {
	case c.DomainURL != "":
		return "http " + c.DomainURL
	case c.Database != "":
		return "sqlite " + c.Database
	case c.Catalog != "":
		return "catalog " + c.Catalog
	default:
		return "bundled catalog"
	}
}
