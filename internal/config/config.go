// Package config loads an optional YAML profile file holding Params
// defaults and vector-generator knobs. None of the cmd/ runners import this
// package: they take their settings from their own flags only.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the runner defaults a profile file can set. Every field
// except Whiten mirrors a flag of one of the cmd/ runners; no runner has a
// whitening flag. A zero Config is valid.
type Config struct {
	SF  int `yaml:"sf"`
	BW  int `yaml:"bw"`
	CR  int `yaml:"cr"`
	OSR int `yaml:"osr"`

	Window string `yaml:"window"` // "none" or "hann"
	Whiten bool   `yaml:"whiten"`

	// Vector-generator knobs.
	Bytes      int     `yaml:"bytes"`
	Seed       int64   `yaml:"seed"`
	CFOBins    float64 `yaml:"cfo_bins"`
	TimeOffset float64 `yaml:"time_offset"`

	// Session store path, the setting cmd/lorawan-demo takes through its
	// --store flag.
	StorePath string `yaml:"store_path"`
}

// Load reads and parses a YAML profile file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills a zero SF, BW, CR, OSR, Window and StorePath with
// 7, 125000, 4, 1, "none" and "lorawan-sessions.db". The other fields are
// left as they are.
func (c *Config) ApplyDefaults() {
	if c.SF == 0 {
		c.SF = 7
	}
	if c.BW == 0 {
		c.BW = 125000
	}
	if c.CR == 0 {
		c.CR = 4
	}
	if c.OSR == 0 {
		c.OSR = 1
	}
	if c.Window == "" {
		c.Window = "none"
	}
	if c.StorePath == "" {
		c.StorePath = "lorawan-sessions.db"
	}
}
