package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads path, expands ${VAR} and ${VAR:-default} references, and
// decodes the YAML into a Config. Decoding is strict: unknown keys are
// rejected so typos surface at load time instead of silently falling
// back to defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	dec := yaml.NewDecoder(strings.NewReader(ExpandEnv(string(raw))))
	dec.KnownFields(true)

	cfg := &Config{}
	switch err := dec.Decode(cfg); {
	case errors.Is(err, io.EOF):
		// Empty file: every setting keeps its default.
	case err != nil:
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return cfg, nil
}
