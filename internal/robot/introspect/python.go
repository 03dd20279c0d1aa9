package introspect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// libdocScript prints the keywords of the library named by argv[1] as JSON.
const libdocScript = `import json, sys
try:
    from robot.libdocpkg import LibraryDocumentation
except ImportError as e:
    print(json.dumps({"error": "robot framework not importable: %s" % e}))
    sys.exit(0)
try:
    lib = LibraryDocumentation(sys.argv[1])
except Exception as e:
    print(json.dumps({"error": str(e)}))
    sys.exit(0)
out = []
for kw in lib.keywords:
    out.append({
        "name": kw.name,
        "args": [str(a) for a in kw.args],
        "doc": kw.shortdoc,
        "source": kw.source or lib.source or "",
        "lineno": kw.lineno or 0,
    })
print(json.dumps({"library": lib.name, "version": lib.version, "keywords": out}))
`

// defaultInterpreters are tried in order when none is configured.
var defaultInterpreters = []string{"python3", "python"}

// Python introspects libraries by running a Python interpreter.
type Python struct {
	// Interpreter is the executable to run; empty means search PATH.
	Interpreter string

	// Path lists extra PYTHONPATH entries.
	Path []string

	// Dir is the working directory, normally the workspace root.
	Dir string
}

// NewPython creates a Python introspector.
func NewPython(interpreter string, path []string, dir string) *Python {
	return &Python{Interpreter: interpreter, Path: path, Dir: dir}
}

type libdocOutput struct {
	Library  string          `json:"library"`
	Version  string          `json:"version"`
	Keywords []KeywordSource `json:"keywords"`
	Error    string          `json:"error"`
}

// Keywords implements Introspector.
func (p *Python) Keywords(ctx context.Context, library string) ([]KeywordSource, error) {
	exe, err := p.executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, exe, "-c", libdocScript, library)
	cmd.Dir = p.Dir
	cmd.Env = os.Environ()
	if len(p.Path) > 0 {
		entries := p.Path
		if existing := os.Getenv("PYTHONPATH"); existing != "" {
			entries = append(append([]string(nil), entries...), existing)
		}
		cmd.Env = append(cmd.Env, "PYTHONPATH="+strings.Join(entries, string(os.PathListSeparator)))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("introspect %s: exit %d: %s", library, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("introspect %s: %w", library, err)
	}

	var out libdocOutput
	if err := json.Unmarshal(lastLine(stdout.Bytes()), &out); err != nil {
		return nil, fmt.Errorf("introspect %s: parsing output: %w", library, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("introspect %s: %s", library, out.Error)
	}

	// Relative sources are resolved against the working directory.
	for i, kw := range out.Keywords {
		if kw.Source != "" && !filepath.IsAbs(kw.Source) && p.Dir != "" {
			out.Keywords[i].Source = filepath.Join(p.Dir, kw.Source)
		}
	}
	return out.Keywords, nil
}

func (p *Python) executable() (string, error) {
	if p.Interpreter != "" {
		exe, err := exec.LookPath(p.Interpreter)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoInterpreter, err)
		}
		return exe, nil
	}
	for _, name := range defaultInterpreters {
		if exe, err := exec.LookPath(name); err == nil {
			return exe, nil
		}
	}
	return "", ErrNoInterpreter
}

// lastLine returns the last non-empty line of output; libraries may print
// to stdout while being imported.
func lastLine(out []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	return lines[len(lines)-1]
}
