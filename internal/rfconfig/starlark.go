package rfconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.starlark.net/starlark"
)

// DefaultStarlarkTimeout is the default execution timeout for Starlark config files.
const DefaultStarlarkTimeout = 5 * time.Second

// ErrConfigureNotFound is returned when config.sky doesn't define a configure() function.
var ErrConfigureNotFound = errors.New("config.sky must define a configure() function")

// ErrConfigureReturnType is returned when configure() doesn't return a dict.
var ErrConfigureReturnType = errors.New("configure() must return a dict")

// LoadStarlarkConfig loads a configuration from a Starlark file.
// The file must define a configure() function that returns a dict.
// The execution is sandboxed: no filesystem or network access, with a timeout.
func LoadStarlarkConfig(path string, timeout time.Duration) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name: path,
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("execution timeout")
		case <-done:
		}
	}()
	defer close(done)

	globals, err := starlark.ExecFile(thread, path, data, configPredeclared())
	if err != nil {
		return nil, fmt.Errorf("executing config %s: %w", path, err)
	}

	configureFn, ok := globals["configure"]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrConfigureNotFound)
	}

	fn, ok := configureFn.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("%s: configure must be a function, got %s", path, configureFn.Type())
	}

	result, err := starlark.Call(thread, fn, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: calling configure(): %w", path, err)
	}

	dict, ok := result.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: %w, got %s", path, ErrConfigureReturnType, result.Type())
	}

	return dictToConfig(dict)
}

// configPredeclared returns the predeclared values for config Starlark files.
// This is a sandboxed environment with no filesystem or network access.
func configPredeclared() starlark.StringDict {
	return starlark.StringDict{
		"getenv":    starlark.NewBuiltin("getenv", builtinGetenv),
		"host_os":   starlark.String(runtime.GOOS),
		"host_arch": starlark.String(runtime.GOARCH),
		"duration":  starlark.NewBuiltin("duration", builtinDuration),
	}
}

// builtinGetenv implements getenv(name, default="") -> string.
func builtinGetenv(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultVal starlark.String
	if err := starlark.UnpackArgs("getenv", args, kwargs, "name", &name, "default?", &defaultVal); err != nil {
		return nil, err
	}

	val := os.Getenv(name)
	if val == "" {
		return defaultVal, nil
	}
	return starlark.String(val), nil
}

// builtinDuration implements duration(s) -> string.
// Validates that the string is a valid Go duration.
func builtinDuration(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackArgs("duration", args, kwargs, "s", &s); err != nil {
		return nil, err
	}
	if _, err := time.ParseDuration(s); err != nil {
		return nil, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return starlark.String(s), nil
}

// dictToConfig converts a Starlark dict to a Config struct.
func dictToConfig(d *starlark.Dict) (*Config, error) {
	var cfg Config

	if v, found, _ := d.Get(starlark.String("index")); found {
		section, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("index must be a dict, got %s", v.Type())
		}
		if err := parseIndexConfig(section, &cfg.Index); err != nil {
			return nil, fmt.Errorf("parsing index config: %w", err)
		}
	}

	if v, found, _ := d.Get(starlark.String("python")); found {
		section, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("python must be a dict, got %s", v.Type())
		}
		if err := parsePythonConfig(section, &cfg.Python); err != nil {
			return nil, fmt.Errorf("parsing python config: %w", err)
		}
	}

	if v, found, _ := d.Get(starlark.String("catalog")); found {
		section, ok := v.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("catalog must be a dict, got %s", v.Type())
		}
		dirs, err := stringList(section, "dirs")
		if err != nil {
			return nil, fmt.Errorf("parsing catalog config: %w", err)
		}
		cfg.Catalog.Dirs = dirs
	}

	return &cfg, nil
}

func parseIndexConfig(d *starlark.Dict, cfg *IndexConfig) error {
	var err error
	if cfg.Timeout, err = duration(d, "timeout"); err != nil {
		return err
	}
	if cfg.Debounce, err = duration(d, "debounce"); err != nil {
		return err
	}
	if cfg.Exclude, err = stringList(d, "exclude"); err != nil {
		return err
	}
	if cfg.Extensions, err = stringList(d, "extensions"); err != nil {
		return err
	}
	return nil
}

func parsePythonConfig(d *starlark.Dict, cfg *PythonConfig) error {
	if v, found, _ := d.Get(starlark.String("interpreter")); found {
		s, ok := starlark.AsString(v)
		if !ok {
			return fmt.Errorf("interpreter must be a string, got %s", v.Type())
		}
		cfg.Interpreter = s
	}

	path, err := stringList(d, "path")
	if err != nil {
		return err
	}
	cfg.Path = path

	if v, found, _ := d.Get(starlark.String("disable_introspection")); found {
		b, ok := v.(starlark.Bool)
		if !ok {
			return fmt.Errorf("disable_introspection must be a bool, got %s", v.Type())
		}
		cfg.DisableIntrospection = bool(b)
	}
	return nil
}

// duration reads an optional duration string field.
func duration(d *starlark.Dict, key string) (Duration, error) {
	v, found, _ := d.Get(starlark.String(key))
	if !found {
		return Duration{}, nil
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return Duration{}, fmt.Errorf("%s must be a string, got %s", key, v.Type())
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return Duration{}, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return Duration{dur}, nil
}

// stringList reads an optional list-of-strings field.
func stringList(d *starlark.Dict, key string) ([]string, error) {
	v, found, _ := d.Get(starlark.String(key))
	if !found {
		return nil, nil
	}
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("%s must be a list, got %s", key, v.Type())
	}
	var out []string
	for i := 0; i < list.Len(); i++ {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", key, i)
		}
		out = append(out, s)
	}
	return out, nil
}
