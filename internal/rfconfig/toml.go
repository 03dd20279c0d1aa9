package rfconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadTOMLConfig loads a configuration from a TOML file.
// Keys that do not map to a setting are rejected, matching the YAML loader.
func LoadTOMLConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing TOML config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing TOML config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return &cfg, nil
}
