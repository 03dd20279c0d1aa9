// Package cmdtest provides a testscript-based test harness for the rfls CLI tools.
//
// It uses txtar format test files to specify input files and expected outputs,
// making it easy to write comprehensive CLI tests.
//
// Example test file (testdata/rfquery/keyword.txtar):
//
//	# rfquery finds a resource keyword
//	exec rfquery --no-introspection keyword 'open session'
//	stdout 'common.resource:5:1  Open Session'
//
//	-- common.resource --
//	*** Keywords ***
//	...
package cmdtest

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/albertocavalcante/rfls/internal/cmd/rfls"
	"github.com/albertocavalcante/rfls/internal/cmd/rfquery"
	"github.com/albertocavalcante/rfls/internal/rfconfig"
)

// Run executes the testscript tests in the given directory.
func Run(t *testing.T, dir string) {
	testscript.Run(t, testscript.Params{
		Dir: dir,
		Setup: func(env *testscript.Env) error {
			// Keep a config from the developer's environment out of the scripts.
			env.Setenv(rfconfig.EnvConfig, "")
			return nil
		},
	})
}

// Main is the TestMain function that should be called from test files.
// It sets up the CLI tools as testscript commands.
func Main(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"rfls":    wrapRun(rfls.Run),
		"rfquery": wrapRun(rfquery.Run),
	}))
}

// wrapRun wraps a Run(args []string) int function to func() int for testscript.
// The args are taken from os.Args[1:].
func wrapRun(run func(args []string) int) func() int {
	return func() int {
		return run(os.Args[1:])
	}
}
