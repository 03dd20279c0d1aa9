package rfquery

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/rfls/internal/cli"
)

const commonResource = `*** Variables ***
${HOST}    example.com

*** Keywords ***
Open Session
    [Arguments]    ${user}
    Log    Connecting to ${HOST} as ${user}
`

const loginSuite = `*** Settings ***
Resource    common.resource

*** Test Cases ***
Valid Login
    [Tags]    smoke
    Open Session    alice
    Log    ${HOST}
`

func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, text := range map[string]string{
		"common.resource": commonResource,
		"login.robot":     loginSuite,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func run(t *testing.T, dir string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--root", dir, "--no-introspection"}, args...)
	code := RunWithIO(context.Background(), full, nil, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := RunWithIO(context.Background(), []string{"--version"}, nil, &stdout, &stderr)

	if code != 0 {
		t.Errorf("RunWithIO(--version) returned %d, want 0", code)
	}
	if !strings.Contains(stdout.String(), "rfquery") {
		t.Errorf("RunWithIO(--version) output = %q, want program name", stdout.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := RunWithIO(context.Background(), []string{"frobnicate"}, nil, &stdout, &stderr)

	if code != cli.ExitError {
		t.Errorf("RunWithIO(frobnicate) returned %d, want %d", code, cli.ExitError)
	}
	if !strings.HasPrefix(stderr.String(), "rfquery: ") {
		t.Errorf("stderr = %q, want rfquery prefix", stderr.String())
	}
}

func TestRun_Keyword(t *testing.T) {
	dir := writeWorkspace(t)

	code, stdout, stderr := run(t, dir, "keyword", "open session")
	if code != 0 {
		t.Fatalf("keyword returned %d\nstderr: %s", code, stderr)
	}
	if want := "common.resource:5:1  Open Session\n"; stdout != want {
		t.Errorf("keyword output = %q, want %q", stdout, want)
	}
}

func TestRun_KeywordBuiltin(t *testing.T) {
	dir := writeWorkspace(t)

	code, stdout, stderr := run(t, dir, "keyword", "Log")
	if code != 0 {
		t.Fatalf("keyword returned %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "builtin:///BuiltIn") || !strings.Contains(stdout, "library BuiltIn") {
		t.Errorf("keyword Log output = %q, want the BuiltIn catalog entry", stdout)
	}
}

func TestRun_NotFound(t *testing.T) {
	dir := writeWorkspace(t)

	code, stdout, stderr := run(t, dir, "keyword", "No Such Keyword")
	if code != cli.ExitNotFound {
		t.Errorf("keyword returned %d, want %d", code, cli.ExitNotFound)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	if !strings.Contains(stderr, "no matches") {
		t.Errorf("stderr = %q, want no matches", stderr)
	}
}

func TestRun_Variable(t *testing.T) {
	dir := writeWorkspace(t)

	for _, name := range []string{"HOST", "${HOST}", "@{host}"} {
		t.Run(name, func(t *testing.T) {
			code, stdout, stderr := run(t, dir, "variable", name)
			if code != 0 {
				t.Fatalf("variable returned %d\nstderr: %s", code, stderr)
			}
			if want := "common.resource:2:1  ${HOST}  suite = example.com\n"; stdout != want {
				t.Errorf("variable output = %q, want %q", stdout, want)
			}
		})
	}
}

func TestRun_TestCaseJSON(t *testing.T) {
	dir := writeWorkspace(t)

	code, stdout, stderr := run(t, dir, "-o", "json", "test", "valid login")
	if code != 0 {
		t.Fatalf("test returned %d\nstderr: %s", code, stderr)
	}

	var got []symbolJSON
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Name != "Valid Login" || got[0].Kind != "test" {
		t.Errorf("result = %+v", got[0])
	}
	if diff := cmp.Diff([]string{"smoke"}, got[0].Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if got[0].Location == nil || got[0].Location.File != "login.robot" || got[0].Location.Line != 5 {
		t.Errorf("location = %+v, want login.robot:5", got[0].Location)
	}
}

func TestRun_Usages(t *testing.T) {
	dir := writeWorkspace(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "keyword",
			args: []string{"usages", "Open Session"},
			want: "login.robot:7:5\n",
		},
		{
			name: "keyword with declaration",
			args: []string{"usages", "--declaration", "Open Session"},
			want: "common.resource:5:1\nlogin.robot:7:5\n",
		},
		{
			name: "variable",
			args: []string{"usages", "--kind", "variable", "HOST"},
			want: "common.resource:7:26\nlogin.robot:8:12\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := run(t, dir, tt.args...)
			if code != 0 {
				t.Fatalf("usages returned %d\nstderr: %s", code, stderr)
			}
			if diff := cmp.Diff(tt.want, stdout); diff != "" {
				t.Errorf("usages output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_BadKind(t *testing.T) {
	dir := writeWorkspace(t)

	code, _, stderr := run(t, dir, "usages", "--kind", "macro", "x")
	if code != cli.ExitError {
		t.Errorf("usages returned %d, want %d", code, cli.ExitError)
	}
	if !strings.Contains(stderr, `unknown kind "macro"`) {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_Symbols(t *testing.T) {
	dir := writeWorkspace(t)

	code, stdout, stderr := run(t, dir, "symbols")
	if code != 0 {
		t.Fatalf("symbols returned %d\nstderr: %s", code, stderr)
	}
	for _, want := range []string{"Open Session", "${HOST}", "${user}", "Valid Login"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("symbols output missing %q:\n%s", want, stdout)
		}
	}

	code, stdout, _ = run(t, dir, "symbols", "--kind", "keyword", "session")
	if code != 0 {
		t.Fatalf("symbols --kind keyword returned %d", code)
	}
	if want := "common.resource:5:1  Open Session\n"; stdout != want {
		t.Errorf("filtered symbols = %q, want %q", stdout, want)
	}
}

func TestRun_RenameDiff(t *testing.T) {
	dir := writeWorkspace(t)

	code, stdout, stderr := run(t, dir, "rename", "Open Session", "Start Session")
	if code != 0 {
		t.Fatalf("rename returned %d\nstderr: %s", code, stderr)
	}
	for _, want := range []string{
		"--- a/common.resource",
		"+++ b/common.resource",
		"-Open Session\n",
		"+Start Session\n",
		"--- a/login.robot",
		"+    Start Session    alice\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("rename diff missing %q:\n%s", want, stdout)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "login.robot"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != loginSuite {
		t.Error("rename without --write modified login.robot")
	}
}

func TestRun_RenameWrite(t *testing.T) {
	dir := writeWorkspace(t)

	code, stdout, stderr := run(t, dir, "rename", "--kind", "variable", "--write", "HOST", "SERVER")
	if code != 0 {
		t.Fatalf("rename returned %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "common.resource: 2 edits") {
		t.Errorf("rename output = %q", stdout)
	}

	data, err := os.ReadFile(filepath.Join(dir, "login.robot"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Log    ${SERVER}") {
		t.Errorf("login.robot not rewritten:\n%s", data)
	}
}

func TestRun_RenameLibraryKeyword(t *testing.T) {
	dir := writeWorkspace(t)

	code, _, stderr := run(t, dir, "rename", "Log", "Write")
	if code != cli.ExitError {
		t.Errorf("rename Log returned %d, want %d", code, cli.ExitError)
	}
	if stderr == "" {
		t.Error("rename Log printed no error")
	}
}

func TestRun_Catalog(t *testing.T) {
	dir := writeWorkspace(t)

	code, stdout, stderr := run(t, dir, "catalog")
	if code != 0 {
		t.Fatalf("catalog returned %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "BuiltIn\n") {
		t.Errorf("catalog output = %q, want BuiltIn", stdout)
	}

	code, stdout, _ = run(t, dir, "catalog", "BuiltIn")
	if code != 0 {
		t.Fatalf("catalog BuiltIn returned %d", code)
	}
	if !strings.Contains(stdout, "Should Be Equal") {
		t.Errorf("catalog BuiltIn output missing Should Be Equal:\n%s", stdout)
	}

	code, _, _ = run(t, dir, "catalog", "NoSuchLibrary")
	if code != cli.ExitNotFound {
		t.Errorf("catalog NoSuchLibrary returned %d, want %d", code, cli.ExitNotFound)
	}
}

func TestRun_MissingRoot(t *testing.T) {
	code, _, stderr := run(t, filepath.Join(t.TempDir(), "missing"), "symbols")
	if code != cli.ExitError {
		t.Errorf("symbols returned %d, want %d", code, cli.ExitError)
	}
	if stderr == "" {
		t.Error("missing root printed no error")
	}
}

func TestVariableName(t *testing.T) {
	tests := map[string]string{
		"HOST":     "${HOST}",
		" HOST ":   "${HOST}",
		"${HOST}":  "${HOST}",
		"@{items}": "@{items}",
	}
	for in, want := range tests {
		if got := variableName(in); got != want {
			t.Errorf("variableName(%q) = %q, want %q", in, got, want)
		}
	}
}
