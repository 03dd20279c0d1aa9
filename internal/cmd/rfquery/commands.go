package rfquery

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/rfls/internal/cli"
	"github.com/albertocavalcante/rfls/internal/robot/index"
	"github.com/albertocavalcante/rfls/internal/robot/resolve"
	"github.com/albertocavalcante/rfls/internal/robot/sortutil"
	"github.com/albertocavalcante/rfls/internal/robot/symbols"
	"github.com/albertocavalcante/rfls/internal/workspace"
)

func (a *app) printer(root string) printer {
	return printer{w: a.stdout, root: root, json: a.output == "json", styles: a.styles}
}

// variableName accepts "HOST" as shorthand for "${HOST}".
func variableName(name string) string {
	name = strings.TrimSpace(name)
	if index.IsVariable(name) {
		return name
	}
	return "${" + name + "}"
}

func parseKind(s string) (index.SymbolKind, error) {
	kind, ok := index.ParseSymbolKind(s)
	if !ok {
		return 0, fmt.Errorf("unknown kind %q (want keyword, variable or test)", s)
	}
	return kind, nil
}

func (a *app) lookupCmd(use, short string) *cobra.Command {
	kind, _ := index.ParseSymbolKind(use)
	return &cobra.Command{
		Use:   use + " NAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, ix, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer reg.Close()
			return a.lookup(ix, kind, args[0])
		},
	}
}

func (a *app) lookup(ix *workspace.Indexer, kind index.SymbolKind, name string) error {
	p := a.printer(ix.Root())
	res := ix.Resolver()

	var (
		syms []symbolJSON
		locs []index.Location
	)
	switch kind {
	case index.KindKeyword:
		defs := res.Keywords(name)
		sortutil.Keywords(defs)
		for _, d := range defs {
			syms = append(syms, p.keyword(d))
			locs = append(locs, d.Location())
		}
	case index.KindVariable:
		defs := ix.Table().LookupVariable(variableName(name))
		sortutil.ByLocation(defs, func(d index.VariableDefinition) index.Location { return d.Location })
		for _, d := range defs {
			syms = append(syms, p.variable(d))
			locs = append(locs, d.Location)
		}
	case index.KindTestCase:
		defs := ix.Table().LookupTestCase(name)
		sortutil.ByLocation(defs, func(d index.TestCaseDefinition) index.Location { return d.Location })
		for _, d := range defs {
			syms = append(syms, p.testCase(d))
			locs = append(locs, d.Location)
		}
	}
	if len(syms) == 0 {
		return fmt.Errorf("%s %q: %w", kind, name, errNotFound)
	}
	return p.symbols(syms, locs)
}

func (a *app) usagesCmd() *cobra.Command {
	var (
		kindName    string
		declaration bool
	)
	cmd := &cobra.Command{
		Use:   "usages NAME",
		Short: "List the places a keyword or variable is used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindName)
			if err != nil {
				return err
			}
			reg, ix, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer reg.Close()

			name := args[0]
			if kind == index.KindVariable {
				name = variableName(name)
			}
			locs, err := ix.Resolver().FindUsages(cmd.Context(), name, kind, declaration)
			if err != nil {
				return err
			}
			sortutil.Locations(locs)
			return a.printer(ix.Root()).locations(locs)
		},
	}
	cmd.Flags().StringVarP(&kindName, "kind", "k", "keyword", "symbol kind: keyword, variable or test")
	cmd.Flags().BoolVarP(&declaration, "declaration", "d", false, "include the declarations")
	return cmd
}

func (a *app) symbolsCmd() *cobra.Command {
	var kindName string
	cmd := &cobra.Command{
		Use:   "symbols [QUERY]",
		Short: "List workspace definitions whose name contains QUERY",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query string
			if len(args) == 1 {
				query = index.NormalizeName(args[0])
			}
			reg, ix, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer reg.Close()
			return a.listSymbols(ix.Table(), ix.Root(), kindName, query)
		},
	}
	cmd.Flags().StringVarP(&kindName, "kind", "k", "", "only list this kind: keyword, variable or test")
	return cmd
}

type listed struct {
	sym symbolJSON
	loc index.Location
}

func (a *app) listSymbols(table *symbols.Table, root, kindName, query string) error {
	want := func(index.SymbolKind) bool { return true }
	if kindName != "" {
		kind, err := parseKind(kindName)
		if err != nil {
			return err
		}
		want = func(k index.SymbolKind) bool { return k == kind }
	}
	match := func(name string) bool {
		return strings.Contains(index.NormalizeName(name), query)
	}

	p := a.printer(root)
	var all []listed
	if want(index.KindKeyword) {
		for _, d := range table.UserKeywords() {
			if match(d.Name) {
				all = append(all, listed{p.keyword(d), d.Location()})
			}
		}
	}
	if want(index.KindVariable) {
		for _, d := range table.AllVariables() {
			if match(d.Name) {
				all = append(all, listed{p.variable(d), d.Location})
			}
		}
	}
	if want(index.KindTestCase) {
		for _, d := range table.AllTestCases() {
			if match(d.Name) {
				all = append(all, listed{p.testCase(d), d.Location})
			}
		}
	}
	sortutil.ByLocation(all, func(l listed) index.Location { return l.loc })

	syms := make([]symbolJSON, 0, len(all))
	locs := make([]index.Location, 0, len(all))
	for _, l := range all {
		syms = append(syms, l.sym)
		locs = append(locs, l.loc)
	}
	return p.symbols(syms, locs)
}

func (a *app) renameCmd() *cobra.Command {
	var (
		kindName string
		write    bool
	)
	cmd := &cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Preview or apply a rename as a unified diff",
		Long: "Rename a workspace keyword, variable or test case. The edits are printed\n" +
			"as a unified diff unless --write is given.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindName)
			if err != nil {
				return err
			}
			reg, ix, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer reg.Close()

			oldName, newName := args[0], args[1]
			if kind == index.KindVariable {
				oldName, newName = variableName(oldName), variableName(newName)
			}
			edits, err := ix.Resolver().Rename(cmd.Context(), oldName, kind, newName)
			if err != nil {
				return err
			}
			return a.applyRename(ix, edits, write)
		},
	}
	cmd.Flags().StringVarP(&kindName, "kind", "k", "keyword", "symbol kind: keyword, variable or test")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the changes instead of printing a diff")
	return cmd
}

func (a *app) applyRename(ix *workspace.Indexer, edits []resolve.Edit, write bool) error {
	p := a.printer(ix.Root())
	byFile := resolve.EditsByFile(edits)
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	slices.Sort(files)

	for _, file := range files {
		before, err := ix.ReadDocument(file)
		if err != nil {
			return err
		}
		after, err := resolve.ApplyEdits(before, byFile[file])
		if err != nil {
			return fmt.Errorf("%s: %w", p.rel(file), err)
		}

		if write {
			info, err := os.Stat(file)
			if err != nil {
				return err
			}
			if err := os.WriteFile(file, []byte(after), info.Mode().Perm()); err != nil {
				return fmt.Errorf("writing %s: %w", p.rel(file), err)
			}
			cli.Writef(a.stdout, "%s: %d edits\n", p.rel(file), len(byFile[file]))
			continue
		}

		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(before),
			B:        difflib.SplitLines(after),
			FromFile: "a/" + p.rel(file),
			ToFile:   "b/" + p.rel(file),
			Context:  3,
		})
		if err != nil {
			return err
		}
		cli.Write(a.stdout, a.styles.diff(diff))
	}
	return nil
}

func (a *app) catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [LIBRARY]",
		Short: "List the bundled library keywords",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, ix, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			defer reg.Close()

			catalog := ix.Table().Catalog()
			p := a.printer(ix.Root())
			if len(args) == 0 {
				if p.json {
					return p.encode(catalog.Libraries())
				}
				for _, lib := range catalog.Libraries() {
					cli.Writeln(a.stdout, lib)
				}
				return nil
			}

			lib := args[0]
			if !catalog.HasLibrary(lib) {
				return fmt.Errorf("library %q: %w", lib, errNotFound)
			}
			var defs []index.KeywordDefinition
			for _, d := range catalog.All() {
				if strings.EqualFold(d.LibraryName(), lib) {
					defs = append(defs, d)
				}
			}
			sortutil.ByName(defs, func(d index.KeywordDefinition) string { return d.Name })
			if p.json {
				out := make([]symbolJSON, 0, len(defs))
				for _, d := range defs {
					s := p.keyword(d)
					s.Location = nil
					out = append(out, s)
				}
				return p.encode(out)
			}
			for _, d := range defs {
				cli.Writeln(a.stdout, a.styles.render(a.styles.name, d.Signature()))
			}
			return nil
		},
	}
}

// watchInterval is how often watch polls the table for changes.
const watchInterval = 500 * time.Millisecond

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Index the workspace and report re-indexing until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			reg, ix, err := a.load(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			a.printStats(ix)
			if err := reg.Watch(ix.Root()); err != nil {
				return err
			}
			return a.watchLoop(ctx, ix)
		},
	}
}

func (a *app) printStats(ix *workspace.Indexer) {
	st := ix.Table().Stats()
	cli.Writef(a.stdout, "%s: %d files, %d keywords, %d variables, %d tests\n",
		ix.Root(), st.Files, st.Keywords, st.Variables, st.TestCases)
}

// watchLoop prints the table size whenever it changes.
func (a *app) watchLoop(ctx context.Context, ix *workspace.Indexer) error {
	last := ix.Table().Stats()
	tick := time.NewTicker(watchInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if st := ix.Table().Stats(); st != last {
				last = st
				a.printStats(ix)
			}
		}
	}
}
