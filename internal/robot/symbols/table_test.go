package symbols

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/rfls/internal/robot/builtins"
	"github.com/albertocavalcante/rfls/internal/robot/index"
)

func testCatalog() *builtins.Catalog {
	return builtins.NewCatalog(
		index.KeywordDefinition{Name: "Log", Origin: index.Builtin{Name: "BuiltIn"}},
		index.KeywordDefinition{Name: "Append To List", Origin: index.Builtin{Name: "Collections"}},
	)
}

const suite = `*** Variables ***
${X}    1

*** Test Cases ***
T1
    Log    ${X}

*** Keywords ***
My Keyword
    Log    one
my   keyword
    Log    two
Log
    No Operation
`

func files(defs []index.KeywordDefinition) []string {
	var out []string
	for _, d := range defs {
		out = append(out, fmt.Sprintf("%s:%d", d.Location().File, d.Location().Line))
	}
	return out
}

func TestLookupNormalized(t *testing.T) {
	tbl := New(testCatalog())
	tbl.UpsertFile("a.robot", index.Extract("a.robot", suite))

	want := tbl.LookupKeyword("My Keyword")
	for _, name := range []string{"MY KEYWORD", "my keyword", "my    KEYWORD", " My\tKeyword "} {
		if diff := cmp.Diff(want, tbl.LookupKeyword(name)); diff != "" {
			t.Errorf("LookupKeyword(%q) mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestDuplicateKeywordsKept(t *testing.T) {
	tbl := New(testCatalog())
	tbl.UpsertFile("a.robot", index.Extract("a.robot", suite))

	got := tbl.LookupKeyword("MY KEYWORD")
	if diff := cmp.Diff([]string{"a.robot:9", "a.robot:11"}, files(got)); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}
}

func TestUserBeforeBuiltin(t *testing.T) {
	tbl := New(testCatalog())
	tbl.UpsertFile("a.robot", index.Extract("a.robot", suite))

	got := tbl.LookupKeyword("log")
	if len(got) != 2 {
		t.Fatalf("LookupKeyword(log) = %d results, want 2", len(got))
	}
	if _, ok := got[0].Origin.(index.User); !ok {
		t.Errorf("first result origin = %T, want User", got[0].Origin)
	}
	if _, ok := got[1].Origin.(index.Builtin); !ok {
		t.Errorf("second result origin = %T, want Builtin", got[1].Origin)
	}
}

func TestUpsertReplacesFile(t *testing.T) {
	tbl := New(testCatalog())
	tbl.UpsertFile("a.robot", index.Extract("a.robot", suite))
	tbl.UpsertFile("b.robot", index.Extract("b.robot", "*** Keywords ***\nMy Keyword\n    No Operation\n"))

	replacement := "*** Keywords ***\n\n\nMy Keyword\n    Log    moved\n"
	tbl.UpsertFile("a.robot", index.Extract("a.robot", replacement))

	got := files(tbl.LookupKeyword("my keyword"))
	want := []string{"b.robot:2", "a.robot:4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("after re-upsert (-want +got):\n%s", diff)
	}
	if len(tbl.LookupVariable("${X}")) != 0 {
		t.Error("variable from first upsert survived")
	}
	if len(tbl.LookupTestCase("T1")) != 0 {
		t.Error("test case from first upsert survived")
	}
}

func TestRemoveFileKeepsBuiltins(t *testing.T) {
	tbl := New(testCatalog())
	tbl.UpsertFile("a.robot", index.Extract("a.robot", suite))
	tbl.RemoveFile("a.robot")

	got := tbl.LookupKeyword("Log")
	if len(got) != 1 {
		t.Fatalf("LookupKeyword(Log) = %d results, want the builtin only", len(got))
	}
	if got[0].Location().File == "a.robot" {
		t.Error("removed file still referenced")
	}
	if !got[0].Location().IsSynthetic() {
		t.Errorf("builtin location = %v, want synthetic", got[0].Location())
	}
	if len(tbl.Files()) != 0 {
		t.Errorf("Files() = %v, want empty", tbl.Files())
	}

	// Removing an unknown file is a no-op.
	tbl.RemoveFile("missing.robot")
}

func TestClearAllKeepsBuiltins(t *testing.T) {
	tbl := New(testCatalog())
	if len(tbl.LookupKeyword("Log")) != 1 {
		t.Error("builtin lookup should work on an empty table")
	}

	tbl.UpsertFile("a.robot", index.Extract("a.robot", suite))
	tbl.SetLibrary("Custom", []index.KeywordDefinition{{Name: "Custom Step"}})
	tbl.ClearAll()

	if got := tbl.LookupKeyword("Log"); len(got) != 1 {
		t.Errorf("LookupKeyword(Log) after ClearAll = %d results, want 1", len(got))
	}
	if len(tbl.AllVariables()) != 0 || len(tbl.AllTestCases()) != 0 {
		t.Error("ClearAll left user definitions")
	}
	if len(tbl.LookupKeyword("Custom Step")) != 1 {
		t.Error("ClearAll dropped library keywords")
	}
}

func TestLookupVariableSigilInsensitive(t *testing.T) {
	tbl := New(nil)
	tbl.UpsertFile("a.robot", index.Extract("a.robot", suite))

	for _, name := range []string{"${X}", "@{x}", "&{ X }", "x"} {
		if got := tbl.LookupVariable(name); len(got) != 1 {
			t.Errorf("LookupVariable(%q) = %d results, want 1", name, len(got))
		}
	}
}

func TestLibraryKeywords(t *testing.T) {
	tbl := New(testCatalog())
	loc := index.Location{File: "/site-packages/Browser/keywords.py", Line: 42}
	tbl.SetLibrary("Browser", []index.KeywordDefinition{
		{Name: "New Page", Origin: index.User{Loc: loc}},
	})

	got := tbl.LookupKeyword("new page")
	if len(got) != 1 {
		t.Fatalf("LookupKeyword(new page) = %d results", len(got))
	}
	want := index.Library{Name: "Browser", Loc: loc}
	if diff := cmp.Diff(index.Origin(want), got[0].Origin); diff != "" {
		t.Errorf("origin mismatch (-want +got):\n%s", diff)
	}
	if !tbl.HasLibrary("browser") {
		t.Error("HasLibrary(browser) = false")
	}

	// Library keywords are not owned by any workspace file.
	tbl.RemoveFile(loc.File)
	if len(tbl.LookupKeyword("New Page")) != 1 {
		t.Error("RemoveFile dropped a library keyword")
	}

	tbl.SetLibrary("Browser", nil)
	if tbl.HasLibrary("Browser") {
		t.Error("SetLibrary(nil) should drop the library")
	}
}

func TestQualifiedLookup(t *testing.T) {
	tbl := New(testCatalog())
	tbl.UpsertFile("/ws/common.resource", index.Extract("/ws/common.resource", "*** Keywords ***\nOpen App\n    Log    x\n"))
	tbl.SetLibrary("Browser", []index.KeywordDefinition{{Name: "Click"}})

	tests := []struct {
		name string
		want int
	}{
		{"common.Open App", 1},
		{"other.Open App", 0},
		{"Browser.Click", 1},
		{"Collections.Append To List", 1},
		{"BuiltIn.Append To List", 0},
	}
	for _, tt := range tests {
		if got := tbl.LookupKeyword(tt.name); len(got) != tt.want {
			t.Errorf("LookupKeyword(%q) = %d results, want %d", tt.name, len(got), tt.want)
		}
	}
}

func TestPreciseLocations(t *testing.T) {
	catalog := testCatalog()
	tbl := New(catalog)
	other := New(catalog)

	src := index.Location{File: "/usr/lib/robot/libraries/BuiltIn.py", Line: 3011}
	tbl.SetPreciseLocations("BuiltIn", map[string]index.Location{"log": src})

	got := tbl.LookupKeyword("Log")
	if len(got) != 1 || got[0].Location() != src {
		t.Fatalf("LookupKeyword(Log) = %+v, want precise location", got)
	}
	if _, ok := got[0].Origin.(index.Builtin); !ok {
		t.Errorf("origin = %T, want Builtin", got[0].Origin)
	}

	// The overlay is per table; the shared catalog is untouched.
	if loc := other.LookupKeyword("Log")[0].Location(); !loc.IsSynthetic() {
		t.Errorf("other table location = %v, want synthetic", loc)
	}
	if loc := catalog.Lookup("Log")[0].Location(); !loc.IsSynthetic() {
		t.Errorf("catalog location = %v, want synthetic", loc)
	}

	tbl.ClearLibraries()
	if loc := tbl.LookupKeyword("Log")[0].Location(); !loc.IsSynthetic() {
		t.Errorf("location after ClearLibraries = %v, want synthetic", loc)
	}
}

func TestAllKeywordsOrder(t *testing.T) {
	tbl := New(testCatalog())
	tbl.UpsertFile("b.robot", index.Extract("b.robot", "*** Keywords ***\nFrom B\n    Log    b\n"))
	tbl.UpsertFile("a.robot", index.Extract("a.robot", "*** Keywords ***\nFrom A\n    Log    a\n"))
	tbl.SetLibrary("Zeta", []index.KeywordDefinition{{Name: "Z"}})
	tbl.SetLibrary("Alpha", []index.KeywordDefinition{{Name: "A"}})

	var got []string
	for _, d := range tbl.AllKeywords() {
		got = append(got, d.Name)
	}
	want := []string{"From B", "From A", "A", "Z", "Log", "Append To List"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AllKeywords() mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"b.robot", "a.robot"}, tbl.Files()); diff != "" {
		t.Errorf("Files() mismatch (-want +got):\n%s", diff)
	}
	if n := len(tbl.UserKeywords()); n != 2 {
		t.Errorf("UserKeywords() = %d, want 2", n)
	}
}

func TestStats(t *testing.T) {
	tbl := New(testCatalog())
	tbl.UpsertFile("a.robot", index.Extract("a.robot", suite))

	want := Stats{Files: 1, Keywords: 3, Variables: 1, TestCases: 1}
	if diff := cmp.Diff(want, tbl.Stats()); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
	if tbl.File("a.robot") == nil || tbl.File("b.robot") != nil {
		t.Error("File() lookup mismatch")
	}
}

func TestConcurrentUpsertAndLookup(t *testing.T) {
	tbl := New(testCatalog())
	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			file := fmt.Sprintf("f%d.robot", i)
			for range 50 {
				tbl.UpsertFile(file, index.Extract(file, suite))
				tbl.LookupKeyword("my keyword")
				tbl.AllVariables()
			}
		}()
	}
	wg.Wait()

	// Each file contributes exactly its two duplicates.
	if got := len(tbl.LookupKeyword("my keyword")); got != 16 {
		t.Errorf("LookupKeyword(my keyword) = %d results, want 16", got)
	}
}

func TestPreferUser(t *testing.T) {
	user := index.KeywordDefinition{Name: "Log", Origin: index.User{Loc: index.Location{File: "a.robot", Line: 1}}}
	lib := index.KeywordDefinition{Name: "Log", Origin: index.Library{Name: "Custom"}}
	builtin := index.KeywordDefinition{Name: "Log", Origin: index.Builtin{Name: "BuiltIn"}}

	tests := []struct {
		name string
		in   []index.KeywordDefinition
		want []index.KeywordDefinition
	}{
		{"empty", nil, nil},
		{"user wins", []index.KeywordDefinition{builtin, lib, user}, []index.KeywordDefinition{user}},
		{"library over builtin", []index.KeywordDefinition{builtin, lib}, []index.KeywordDefinition{lib}},
		{"builtin only", []index.KeywordDefinition{builtin}, []index.KeywordDefinition{builtin}},
		{"all users kept", []index.KeywordDefinition{user, builtin, user}, []index.KeywordDefinition{user, user}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, PreferUser(tt.in)); diff != "" {
				t.Errorf("PreferUser() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if got, ok := Best([]index.KeywordDefinition{builtin, user}); !ok || got.Origin != user.Origin {
		t.Errorf("Best() = %+v, %v", got, ok)
	}
	if _, ok := Best(nil); ok {
		t.Error("Best(nil) should report false")
	}
}
