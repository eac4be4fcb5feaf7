package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Roster is the optional YAML file naming the models to compare and how
// fast to call them. Durations use Go syntax ("1100ms", "10s").
//
//	default_provider: groq
//	models:
//	  - groq:llama3-8b-8192
//	  - gemini:gemini-1.5-flash
//	pacing:
//	  generation_interval: 2s
//	  oracle_interval: 1100ms
//	  model_gap: 10s
//	concurrency: 1
type Roster struct {
	DefaultProvider string   `yaml:"default_provider"`
	Models          []string `yaml:"models"`
	Oracle          string   `yaml:"oracle"`
	Pacing          Pacing   `yaml:"pacing"`
	Concurrency     int      `yaml:"concurrency"`
}

type Pacing struct {
	GenerationInterval string `yaml:"generation_interval"`
	OracleInterval     string `yaml:"oracle_interval"`
	ModelGap           string `yaml:"model_gap"`
}

func LoadRoster(path string) (Roster, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(b)
}

func ParseRoster(b []byte) (Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(b, &r); err != nil {
		return Roster{}, fmt.Errorf("parse roster: %w", err)
	}
	return r, nil
}

// ApplyRoster overrides the fields the roster sets.
func (c *Config) ApplyRoster(r Roster) error {
	if r.DefaultProvider != "" {
		c.DefaultProvider = r.DefaultProvider
	}
	if len(r.Models) > 0 {
		ids := make([]string, 0, len(r.Models))
		for _, m := range r.Models {
			if m = strings.TrimSpace(m); m != "" {
				ids = append(ids, m)
			}
		}
		c.Models = strings.Join(ids, "|")
	}
	if r.Oracle != "" {
		c.Oracle = strings.ToLower(r.Oracle)
	}
	if r.Concurrency > 0 {
		c.Concurrency = r.Concurrency
	}
	set := func(raw string, dst *int, unit time.Duration, name string) error {
		if raw == "" {
			return nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("pacing.%s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("pacing.%s: negative duration %s", name, raw)
		}
		*dst = int(d / unit)
		return nil
	}
	if err := set(r.Pacing.GenerationInterval, &c.GenerationIntervalMS, time.Millisecond, "generation_interval"); err != nil {
		return err
	}
	if err := set(r.Pacing.OracleInterval, &c.OracleIntervalMS, time.Millisecond, "oracle_interval"); err != nil {
		return err
	}
	return set(r.Pacing.ModelGap, &c.ModelGapSecs, time.Second, "model_gap")
}
