package rfls

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"

	"github.com/albertocavalcante/rfls/internal/cli"
	"github.com/albertocavalcante/rfls/internal/lsp"
	"github.com/albertocavalcante/rfls/internal/version"
)

// Run executes rfls with the given arguments.
func Run(args []string) int {
	return RunWithIO(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO allows custom IO for testing.
func RunWithIO(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		versionFlag     bool
		verboseFlag     bool
		logFile         string
		watchFlag       bool
		noIntrospection bool
	)

	fs := flag.NewFlagSet("rfls", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")
	fs.BoolVar(&verboseFlag, "v", false, "verbose logging to stderr")
	fs.StringVar(&logFile, "logfile", "", "append logs to `file`")
	fs.BoolVar(&watchFlag, "watch", false, "watch workspace folders for file changes")
	fs.BoolVar(&noIntrospection, "no-introspection", false, "do not ask Python where library keywords live")

	fs.Usage = func() {
		cli.Writeln(stderr, "Usage: rfls [flags]")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Robot Framework Language Server Protocol (LSP) implementation.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "The server communicates over stdio using JSON-RPC 2.0.")
		cli.Writeln(stderr, "Configure your editor to launch this binary as an LSP server.")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Features:")
		cli.Writeln(stderr, "  - Hover documentation")
		cli.Writeln(stderr, "  - Go to definition and find references")
		cli.Writeln(stderr, "  - Rename of keywords, variables and tests")
		cli.Writeln(stderr, "  - Keyword and variable completion")
		cli.Writeln(stderr, "  - Document and workspace symbols")
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Flags:")
		fs.PrintDefaults()
		cli.Writeln(stderr)
		cli.Writeln(stderr, "Each workspace folder reads rfls.toml, rfls.yaml or config.sky")
		cli.Writeln(stderr, "from the folder or a parent directory up to the repository root.")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return cli.ExitOK
		}
		return cli.ExitError
	}

	if versionFlag {
		cli.Writef(stdout, "rfls %s\n", version.String())
		return cli.ExitOK
	}

	// Setup logging
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			cli.Writef(stderr, "rfls: %v\n", err)
			return cli.ExitError
		}
		defer f.Close()
		log.SetOutput(f)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	case verboseFlag:
		log.SetOutput(stderr)
		log.SetFlags(log.Ltime | log.Lshortfile)
	default:
		log.SetOutput(io.Discard)
	}

	// Create context with cancellation for clean shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := lsp.NewServer(cancel, lsp.Options{
		Watch:           watchFlag,
		NoIntrospection: noIntrospection,
	})

	// Create stdio connection
	rwc := &stdioConn{
		Reader: stdin,
		Writer: stdout,
	}

	conn := lsp.NewConn(rwc, server)
	server.SetConn(conn)

	log.Printf("rfls: starting server %s", version.Version)

	if err := conn.Run(ctx); err != nil && ctx.Err() == nil {
		cli.Writef(stderr, "rfls: %v\n", err)
		return cli.ExitError
	}

	log.Printf("rfls: server stopped")
	return cli.ExitOK
}

// stdioConn wraps stdin/stdout as an io.ReadWriteCloser.
type stdioConn struct {
	io.Reader
	io.Writer
}

func (s *stdioConn) Close() error {
	return nil
}
