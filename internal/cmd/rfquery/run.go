// Package rfquery implements the rfquery command: symbol lookups, usage
// search and rename previews over a Robot Framework workspace.
package rfquery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/rfls/internal/cli"
	"github.com/albertocavalcante/rfls/internal/version"
	"github.com/albertocavalcante/rfls/internal/workspace"
)

// errNotFound marks queries that ran fine but matched nothing.
var errNotFound = errors.New("no matches")

// Run executes rfquery with the given arguments.
// Returns exit code.
func Run(args []string) int {
	return RunWithIO(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for embedding/testing.
func RunWithIO(ctx context.Context, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	app := &app{stdout: stdout, stderr: stderr}
	cmd := app.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return cli.ExitOK
	case errors.Is(err, errNotFound):
		cli.Writef(stderr, "rfquery: %v\n", err)
		return cli.ExitNotFound
	default:
		cli.Writef(stderr, "rfquery: %v\n", err)
		return cli.ExitError
	}
}

// app holds the global flags and the loaded workspace.
type app struct {
	stdout, stderr io.Writer

	root            string
	output          string
	noColor         bool
	verbose         bool
	noIntrospection bool

	styles styles
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rfquery",
		Short:         "Query a Robot Framework workspace",
		Long:          "Look up keywords, variables and tests, find their usages and preview renames.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.verbose {
				log.SetOutput(a.stderr)
				log.SetFlags(log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}
			if a.output != "text" && a.output != "json" {
				return fmt.Errorf("unknown output format %q (want text or json)", a.output)
			}
			a.styles = newStyles(a.stdout, !a.noColor)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.root, "root", "r", ".", "workspace root directory")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text or json")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log indexing to stderr")
	flags.BoolVar(&a.noIntrospection, "no-introspection", false, "do not ask Python where library keywords live")

	cmd.AddCommand(
		a.lookupCmd("keyword", "Show the definitions of a keyword"),
		a.lookupCmd("variable", "Show the definitions of a variable"),
		a.lookupCmd("test", "Show the definitions of a test case"),
		a.usagesCmd(),
		a.symbolsCmd(),
		a.renameCmd(),
		a.catalogCmd(),
		a.watchCmd(),
	)
	return cmd
}

// load indexes the workspace root.
func (a *app) load(ctx context.Context) (*workspace.Registry, *workspace.Indexer, error) {
	root, err := filepath.Abs(a.root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", root)
	}

	reg := workspace.NewRegistry(workspace.DefaultFactory(workspace.FactoryOptions{
		NoIntrospection: a.noIntrospection,
	}))
	ix, err := reg.Add(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	return reg, ix, nil
}
