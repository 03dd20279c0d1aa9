// Package rfconfig loads rfls configuration.
//
// Three formats are supported:
//   - rfls.toml: declarative TOML configuration
//   - rfls.yaml: the same settings as YAML
//   - config.sky: Starlark configuration defining configure()
//
// Configuration is discovered by walking up from a workspace root to the
// enclosing git repository root. The RFLS_CONFIG environment variable names a
// file that overrides discovery.
package rfconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config file names in priority order.
const (
	// ConfigSky is the Starlark config filename.
	ConfigSky = "config.sky"
	// ConfigTOML is the TOML config filename.
	ConfigTOML = "rfls.toml"
	// ConfigYAML is the YAML config filename.
	ConfigYAML = "rfls.yaml"
)

// EnvConfig is the environment variable for specifying config file path.
const EnvConfig = "RFLS_CONFIG"

// ErrConflict is returned when multiple config files exist in the same directory.
var ErrConflict = errors.New("multiple config files found in the same directory; use only one")

// Config is the configuration of one workspace root.
type Config struct {
	// Index controls discovery and re-indexing.
	Index IndexConfig `json:"index" toml:"index" yaml:"index"`

	// Python selects the interpreter used for library introspection.
	Python PythonConfig `json:"python" toml:"python" yaml:"python"`

	// Catalog adds keyword listings to the bundled built-in catalog.
	Catalog CatalogConfig `json:"catalog" toml:"catalog" yaml:"catalog"`
}

// IndexConfig contains indexing configuration.
type IndexConfig struct {
	// Timeout bounds the initial and full re-index of a root (e.g., "30s").
	Timeout Duration `json:"timeout" toml:"timeout" yaml:"timeout"`

	// Debounce delays re-parsing after an edit so bursts parse once.
	Debounce Duration `json:"debounce" toml:"debounce" yaml:"debounce"`

	// Exclude lists directory names skipped during discovery.
	Exclude []string `json:"exclude" toml:"exclude" yaml:"exclude"`

	// Extensions lists extra file extensions indexed as suites (e.g., ".txt").
	Extensions []string `json:"extensions" toml:"extensions" yaml:"extensions"`
}

// PythonConfig contains interpreter configuration.
type PythonConfig struct {
	// Interpreter is the Python executable; empty searches PATH.
	Interpreter string `json:"interpreter" toml:"interpreter" yaml:"interpreter"`

	// Path lists extra PYTHONPATH entries, relative to the config file.
	Path []string `json:"path" toml:"path" yaml:"path"`

	// DisableIntrospection turns library introspection off.
	DisableIntrospection bool `json:"disable_introspection" toml:"disable_introspection" yaml:"disable_introspection"`
}

// CatalogConfig contains built-in catalog configuration.
type CatalogConfig struct {
	// Dirs lists directories of JSON keyword listings, relative to the config file.
	Dirs []string `json:"dirs" toml:"dirs" yaml:"dirs"`
}

// Duration wraps time.Duration for TOML/YAML/JSON string parsing.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	if d.Duration == 0 {
		return nil, nil
	}
	return []byte(d.Duration.String()), nil
}

// Default values.
const (
	DefaultIndexTimeout = 60 * time.Second
	DefaultDebounce     = 300 * time.Millisecond
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Timeout:  Duration{DefaultIndexTimeout},
			Debounce: Duration{DefaultDebounce},
		},
	}
}

// LoadConfig loads configuration from the specified path.
// The format is auto-detected based on file extension. Unset fields keep
// their defaults and relative paths are resolved against the file's directory.
func LoadConfig(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		cfg, err = LoadTOMLConfig(path)
	case ".yaml", ".yml":
		cfg, err = LoadYAMLConfig(path)
	case ".sky", ".star":
		cfg, err = LoadStarlarkConfig(path, DefaultStarlarkTimeout)
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s (expected .sky, .toml, or .yaml)", ext)
	}
	if err != nil {
		return nil, err
	}

	merged := DefaultConfig()
	merged.Merge(cfg)
	merged.resolvePaths(filepath.Dir(path))
	return merged, nil
}

// DiscoverConfig searches for a configuration file.
//
// Resolution order:
//  1. If RFLS_CONFIG env var is set, use that path
//  2. Walk up from startDir looking for config files, stopping at the git root
//
// If multiple config files exist in the same directory, an error is returned.
// Returns the loaded config, the path to the config file, and any error.
// If no config is found, returns (DefaultConfig(), "", nil).
func DiscoverConfig(startDir string) (*Config, string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		cfg, err := LoadConfig(envPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", EnvConfig, err)
		}
		return cfg, envPath, nil
	}

	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting working directory: %w", err)
		}
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	gitRoot := findGitRoot(absDir)

	dir := absDir
	for {
		configPath, err := findConfigInDir(dir)
		if err != nil {
			return nil, "", err
		}

		if configPath != "" {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return nil, "", err
			}
			return cfg, configPath, nil
		}

		if gitRoot != "" && dir == gitRoot {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}

	return DefaultConfig(), "", nil
}

// findConfigInDir looks for config files in a directory.
// Returns the path to the config file if exactly one is found.
// Returns an error if multiple config files exist.
// Returns ("", nil) if no config files exist.
func findConfigInDir(dir string) (string, error) {
	var found []string
	for _, name := range []string{ConfigSky, ConfigTOML, ConfigYAML} {
		if fileExists(filepath.Join(dir, name)) {
			found = append(found, name)
		}
	}

	switch len(found) {
	case 0:
		return "", nil
	case 1:
		return filepath.Join(dir, found[0]), nil
	}
	return "", fmt.Errorf("%w: found %s in %s", ErrConflict, strings.Join(found, ", "), dir)
}

// fileExists returns true if the file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// findGitRoot finds the git repository root from a starting directory.
// Returns empty string if not in a git repository.
func findGitRoot(startDir string) string {
	dir := startDir
	for {
		if fileExists(filepath.Join(dir, ".git")) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// resolvePaths makes relative paths absolute against dir. A bare interpreter
// name such as "python3" is left for PATH lookup.
func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, p := range c.Python.Path {
		c.Python.Path[i] = abs(p)
	}
	for i, p := range c.Catalog.Dirs {
		c.Catalog.Dirs[i] = abs(p)
	}
	if strings.ContainsRune(c.Python.Interpreter, '/') || strings.ContainsRune(c.Python.Interpreter, filepath.Separator) {
		c.Python.Interpreter = abs(c.Python.Interpreter)
	}
}

// Merge merges the other config into this one.
// Non-zero values from other override values in c; lists are appended.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Index.Timeout.Duration != 0 {
		c.Index.Timeout = other.Index.Timeout
	}
	if other.Index.Debounce.Duration != 0 {
		c.Index.Debounce = other.Index.Debounce
	}
	if len(other.Index.Exclude) > 0 {
		c.Index.Exclude = append(c.Index.Exclude, other.Index.Exclude...)
	}
	if len(other.Index.Extensions) > 0 {
		c.Index.Extensions = append(c.Index.Extensions, other.Index.Extensions...)
	}

	if other.Python.Interpreter != "" {
		c.Python.Interpreter = other.Python.Interpreter
	}
	if len(other.Python.Path) > 0 {
		c.Python.Path = append(c.Python.Path, other.Python.Path...)
	}
	if other.Python.DisableIntrospection {
		c.Python.DisableIntrospection = true
	}

	if len(other.Catalog.Dirs) > 0 {
		c.Catalog.Dirs = append(c.Catalog.Dirs, other.Catalog.Dirs...)
	}
}
