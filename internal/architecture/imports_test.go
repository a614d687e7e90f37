package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
)

// layers maps a directory prefix under internal/ to the internal packages it
// must never import. Lower layers know nothing about the ones above them.
var layers = []struct {
	name     string
	prefixes []string
	forbid   []string
}{
	{"platform", []string{"platform/", "pkg/"}, []string{"app", "http/", "search", "ingestion", "temporalx", "data/", "services"}},
	{"data", []string{"data/", "domain/"}, []string{"app", "http/", "search", "ingestion", "temporalx"}},
	{"core", []string{"search/", "embedding/", "cache/"}, []string{"app", "http/", "ingestion", "temporalx"}},
	{"ingestion", []string{"ingestion/"}, []string{"app", "http/", "temporalx"}},
	{"workers", []string{"temporalx/"}, []string{"app", "http/"}},
	{"http", []string{"http/"}, []string{"app", "data/", "temporalx"}},
}

func TestImportBoundaries(t *testing.T) {
	modulePath, files := loadImports(t)
	internal := modulePath + "/internal/"

	var problems []string
	for rel, imports := range files {
		name, forbid := layerOf(strings.TrimPrefix(rel, "internal/"))
		if name == "" {
			continue
		}
		for _, imp := range imports {
			for _, bad := range forbid {
				if strings.HasPrefix(imp, internal+bad) {
					problems = append(problems, fmt.Sprintf("%s (%s) imports %q", rel, name, imp))
					break
				}
			}
		}
	}
	report(t, "import boundary violations", problems)
}

func TestClientsOnlyImportedByApp(t *testing.T) {
	modulePath, files := loadImports(t)
	clients := modulePath + "/internal/clients/"

	var problems []string
	for rel, imports := range files {
		if strings.HasPrefix(rel, "internal/app/") || strings.HasPrefix(rel, "internal/clients/") {
			continue
		}
		for _, imp := range imports {
			if strings.HasPrefix(imp, clients) {
				problems = append(problems, fmt.Sprintf("%s imports %q", rel, imp))
			}
		}
	}
	report(t, "internal/clients may only be wired from internal/app", problems)
}

func layerOf(rel string) (string, []string) {
	for _, l := range layers {
		for _, p := range l.prefixes {
			if strings.HasPrefix(rel, p) {
				return l.name, l.forbid
			}
		}
	}
	return "", nil
}

func report(t *testing.T, title string, problems []string) {
	t.Helper()
	if len(problems) == 0 {
		return
	}
	sort.Strings(problems)
	t.Fatalf("%s:\n- %s", title, strings.Join(problems, "\n- "))
}

// loadImports parses the import block of every .go file under internal/ and
// returns them keyed by slash-separated path relative to the module root.
func loadImports(t *testing.T) (string, map[string][]string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err := findModuleRoot(wd)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}
	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}

	fset := token.NewFileSet()
	files := map[string][]string{}
	err = filepath.WalkDir(filepath.Join(root, "internal"), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") {
			return err
		}
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		var imports []string
		for _, spec := range f.Imports {
			if imp, err := strconv.Unquote(spec.Path.Value); err == nil {
				imports = append(imports, imp)
			}
		}
		files[filepath.ToSlash(rel)] = imports
		return nil
	})
	if err != nil {
		t.Fatalf("walk internal/: %v", err)
	}
	return modulePath, files
}

func findModuleRoot(dir string) (string, error) {
	for start := dir; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above %s", start)
		}
		dir = parent
	}
}

func readModulePath(goMod string) (string, error) {
	f, err := os.Open(goMod)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "module "); ok {
			if mp := strings.TrimSpace(rest); mp != "" {
				return mp, nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no module directive in %s", goMod)
}
