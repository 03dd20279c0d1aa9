package rfconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// gitRoot creates a temporary directory that looks like a repository root,
// so discovery never walks above it.
func gitRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "rfls.toml",
			content: `
[index]
timeout = "90s"
debounce = "50ms"
exclude = ["output"]
extensions = [".txt"]

[python]
interpreter = "venv/bin/python"
path = ["libs"]
disable_introspection = true

[catalog]
dirs = ["catalog"]
`,
		},
		{
			name: "yaml",
			file: "rfls.yaml",
			content: `
index:
  timeout: 90s
  debounce: 50ms
  exclude: [output]
  extensions: [.txt]
python:
  interpreter: venv/bin/python
  path: [libs]
  disable_introspection: true
catalog:
  dirs: [catalog]
`,
		},
		{
			name: "starlark",
			file: "config.sky",
			content: `
def configure():
    return {
        "index": {
            "timeout": duration("90s"),
            "debounce": "50ms",
            "exclude": ["output"],
            "extensions": [".txt"],
        },
        "python": {
            "interpreter": "venv/bin/python",
            "path": ["libs"],
            "disable_introspection": True,
        },
        "catalog": {"dirs": ["catalog"]},
    }
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			cfg, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}

			want := &Config{
				Index: IndexConfig{
					Timeout:    Duration{90 * time.Second},
					Debounce:   Duration{50 * time.Millisecond},
					Exclude:    []string{"output"},
					Extensions: []string{".txt"},
				},
				Python: PythonConfig{
					Interpreter:          filepath.Join(dir, "venv/bin/python"),
					Path:                 []string{filepath.Join(dir, "libs")},
					DisableIntrospection: true,
				},
				Catalog: CatalogConfig{Dirs: []string{filepath.Join(dir, "catalog")}},
			}
			if diff := cmp.Diff(want, cfg); diff != "" {
				t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rfls.toml")
	writeFile(t, path, "[python]\ninterpreter = \"python3.12\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index.Timeout.Duration != DefaultIndexTimeout {
		t.Errorf("timeout = %v, want default", cfg.Index.Timeout.Duration)
	}
	if cfg.Index.Debounce.Duration != DefaultDebounce {
		t.Errorf("debounce = %v, want default", cfg.Index.Debounce.Duration)
	}
	if cfg.Python.Interpreter != "python3.12" {
		t.Errorf("bare interpreter name rewritten to %q", cfg.Python.Interpreter)
	}
}

func TestEmptyYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfls.yaml")
	writeFile(t, path, "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("empty YAML mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unsupported extension", "rfls.json", "{}", "unsupported config file extension"},
		{"bad toml", "rfls.toml", "[index\n", "parsing TOML"},
		{"bad duration", "rfls.toml", "[index]\ntimeout = \"soon\"\n", "invalid duration"},
		{"unknown toml key", "rfls.toml", "[index]\ntimout = \"5s\"\n", "unknown keys index.timout"},
		{"unknown yaml key", "rfls.yaml", "index:\n  timout: 1s\n", "parsing YAML"},
		{"no configure", "config.sky", "x = 1\n", "configure() function"},
		{"configure returns list", "config.sky", "def configure():\n    return []\n", "must return a dict"},
		{"bad section type", "config.sky", "def configure():\n    return {\"index\": []}\n", "index must be a dict"},
		{"bad list item", "config.sky", "def configure():\n    return {\"index\": {\"exclude\": [1]}}\n", "exclude[0] must be a string"},
		{"starlark error", "config.sky", "def configure(:\n", "executing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)

			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStarlarkSandbox(t *testing.T) {
	t.Setenv("RFLS_TEST_PYTHON", "/opt/python")
	path := filepath.Join(t.TempDir(), "config.sky")
	writeFile(t, path, `
def configure():
    return {"python": {"interpreter": getenv("RFLS_TEST_PYTHON", "python3")}}
`)

	cfg, err := LoadStarlarkConfig(path, DefaultStarlarkTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Python.Interpreter != "/opt/python" {
		t.Errorf("interpreter = %q", cfg.Python.Interpreter)
	}
}

func TestStarlarkTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.sky")
	writeFile(t, path, `
def configure():
    x = 0
    for i in range(1000000000):
        x += i
    return {}
`)

	_, err := LoadStarlarkConfig(path, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestDiscoverConfig(t *testing.T) {
	t.Setenv(EnvConfig, "")

	tests := []struct {
		name     string
		setup    func(t *testing.T, root string) string
		wantFile string
		wantErr  error
	}{
		{
			name: "toml in root",
			setup: func(t *testing.T, root string) string {
				writeFile(t, filepath.Join(root, ConfigTOML), "")
				return root
			},
			wantFile: ConfigTOML,
		},
		{
			name: "yaml in parent",
			setup: func(t *testing.T, root string) string {
				writeFile(t, filepath.Join(root, ConfigYAML), "")
				sub := filepath.Join(root, "suites", "login")
				if err := os.MkdirAll(sub, 0o755); err != nil {
					t.Fatal(err)
				}
				return sub
			},
			wantFile: ConfigYAML,
		},
		{
			name: "nearest wins",
			setup: func(t *testing.T, root string) string {
				writeFile(t, filepath.Join(root, ConfigYAML), "")
				writeFile(t, filepath.Join(root, "sub", ConfigSky), "def configure():\n    return {}\n")
				return filepath.Join(root, "sub")
			},
			wantFile: filepath.Join("sub", ConfigSky),
		},
		{
			name: "conflict",
			setup: func(t *testing.T, root string) string {
				writeFile(t, filepath.Join(root, ConfigYAML), "")
				writeFile(t, filepath.Join(root, ConfigTOML), "")
				return root
			},
			wantErr: ErrConflict,
		},
		{
			name:  "no config returns defaults",
			setup: func(t *testing.T, root string) string { return root },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := gitRoot(t)
			start := tt.setup(t, root)

			cfg, path, err := DiscoverConfig(start)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DiscoverConfig() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DiscoverConfig() error = %v", err)
			}
			if cfg == nil {
				t.Fatal("DiscoverConfig() returned nil config")
			}

			want := ""
			if tt.wantFile != "" {
				want = filepath.Join(root, tt.wantFile)
			}
			if path != want {
				t.Errorf("DiscoverConfig() path = %q, want %q", path, want)
			}
		})
	}
}

func TestDiscoverConfigEnvVar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	writeFile(t, path, "[index]\ntimeout = \"5s\"\n")
	t.Setenv(EnvConfig, path)

	cfg, got, err := DiscoverConfig(gitRoot(t))
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
	if cfg.Index.Timeout.Duration != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.Index.Timeout.Duration)
	}

	t.Setenv(EnvConfig, filepath.Join(dir, "missing.toml"))
	if _, _, err := DiscoverConfig(dir); err == nil {
		t.Error("expected error for missing env config")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	base.Index.Exclude = []string{"results"}
	base.Merge(&Config{
		Index:  IndexConfig{Timeout: Duration{time.Second}, Exclude: []string{"tmp"}},
		Python: PythonConfig{Interpreter: "py", Path: []string{"/x"}},
	})
	base.Merge(nil)

	if base.Index.Timeout.Duration != time.Second {
		t.Errorf("timeout = %v", base.Index.Timeout.Duration)
	}
	if base.Index.Debounce.Duration != DefaultDebounce {
		t.Errorf("debounce = %v, want default kept", base.Index.Debounce.Duration)
	}
	if diff := cmp.Diff([]string{"results", "tmp"}, base.Index.Exclude); diff != "" {
		t.Errorf("exclude mismatch (-want +got):\n%s", diff)
	}
	if base.Python.Interpreter != "py" {
		t.Errorf("interpreter = %q", base.Python.Interpreter)
	}
}

func TestDuration(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Duration = %v", d.Duration)
	}
	text, _ := d.MarshalText()
	if string(text) != "1m30s" {
		t.Errorf("MarshalText() = %q", text)
	}
	if err := d.UnmarshalText(nil); err != nil || d.Duration != 0 {
		t.Errorf("empty UnmarshalText() = %v, %v", d.Duration, err)
	}
	if err := d.UnmarshalText([]byte("later")); err == nil {
		t.Error("expected error for invalid duration")
	}
}
