package main

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/tdewolff/test"
	"github.com/wc3ts/luamin/lua"
)

func TestMain(m *testing.M) {
	Error = log.New(ioutil.Discard, "", 0)
	Warning = log.New(ioutil.Discard, "", 0)
	Info = log.New(ioutil.Discard, "", 0)
	os.Exit(m.Run())
}

func TestCreateTasks(t *testing.T) {
	fsys := fstest.MapFS{
		"a.lua":             {},
		"dir/b.lua":         {},
		"dir/c.txt":         {},
		"dir/.hidden/d.lua": {},
		"dir/sub/e.lua":     {},
		"dir/sub/tree.json": {},
	}

	tests := []struct {
		input, output string
		tasks         map[string]string
	}{
		// root file
		{"a.lua", "", map[string]string{"a.lua": ""}},
		{"a.lua", ".", map[string]string{"a.lua": "a.lua"}},
		{"a.lua", "./", map[string]string{"a.lua": "a.lua"}},
		{"a.lua", "out", map[string]string{"a.lua": "out"}},
		{"a.lua", "out/", map[string]string{"a.lua": "out/a.lua"}},

		// nested file
		{"dir/b.lua", "", map[string]string{"dir/b.lua": ""}},
		{"dir/b.lua", ".", map[string]string{"dir/b.lua": "b.lua"}},
		{"dir/b.lua", "out/", map[string]string{"dir/b.lua": "out/b.lua"}},

		// directory
		{"dir", "out/", map[string]string{"dir/b.lua": "out/dir/b.lua", "dir/sub/e.lua": "out/dir/sub/e.lua", "dir/sub/tree.json": "out/dir/sub/tree.json"}},
		{"dir/", "out/", map[string]string{"dir/b.lua": "out/b.lua", "dir/sub/e.lua": "out/sub/e.lua", "dir/sub/tree.json": "out/sub/tree.json"}},
		{"dir/sub", "out/", map[string]string{"dir/sub/e.lua": "out/sub/e.lua", "dir/sub/tree.json": "out/sub/tree.json"}},
	}

	recursive = true
	for _, tt := range tests {
		t.Run(tt.input+" => "+tt.output, func(t *testing.T) {
			tasks, _, err := createTasks(fsys, []string{tt.input}, tt.output)
			test.Error(t, err)
			if len(tasks) != len(tt.tasks) {
				test.Fail(t, fmt.Sprintf("missing %v", tt.tasks))
			}
			for _, task := range tasks {
				if dst, ok := tt.tasks[task.srcs[0]]; !ok || dst != task.dst {
					test.Fail(t, fmt.Sprintf("unexpected %s => %s", task.srcs[0], task.dst))
				}
			}
		})
	}

	_, _, err := createTasks(fsys, []string{"missing.lua"}, "")
	test.That(t, err != nil)
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern  string
		filename string
		match    bool
	}{
		{"*.lua", "a.lua", true},
		{"*.lua", "a.json", false},
		{"*.lua", "dir/a.lua", false},
		{"**.lua", "dir/a.lua", true},
		{"a?.lua", "ab.lua", true},
		{"~^[a-c]\\.lua$", "b.lua", true},
		{"~^[a-c]\\.lua$", "d.lua", false},
		{"\\~a", "~a", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.filename, func(t *testing.T) {
			re, err := compilePattern(tt.pattern)
			test.Error(t, err)
			test.T(t, re.MatchString(filepath.FromSlash(tt.filename)), tt.match)
		})
	}
}

func TestTaskMimetype(t *testing.T) {
	mimetype = ""
	typ, err := taskMimetype(Task{srcs: []string{"a.lua", "b.lua"}})
	test.Error(t, err)
	test.String(t, typ, luaMimetype)

	typ, err = taskMimetype(Task{srcs: []string{"tree.json"}})
	test.Error(t, err)
	test.String(t, typ, luaASTMimetype)

	_, err = taskMimetype(Task{srcs: []string{"a.lua", "tree.json"}})
	test.That(t, err != nil, "mixed filetypes")

	_, err = taskMimetype(Task{srcs: []string{"a.json", "b.json"}})
	test.That(t, err != nil, "bundled syntax trees")

	_, err = taskMimetype(Task{srcs: []string{"a.txt"}})
	test.That(t, err != nil, "unknown extension")
}

func TestMinifyTask(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.lua")
	dst := filepath.Join(dir, "out", "a.lua")
	test.Error(t, os.WriteFile(src, []byte("local foo = 1\nreturn foo"), 0644))

	quiet = true
	mimetype = ""
	m = newMinifier(lua.Minifier{})
	test.That(t, minify(Task{dir, []string{src}, dst}))
	b, err := os.ReadFile(dst)
	test.Error(t, err)
	test.String(t, string(b), "local a=1;return a")

	// output is left untouched on error
	test.Error(t, os.WriteFile(src, []byte("local = 1"), 0644))
	test.That(t, !minify(Task{dir, []string{src}, dst}))
	b, err = os.ReadFile(dst)
	test.Error(t, err)
	test.String(t, string(b), "local a=1;return a")

	// overwrite the input
	test.Error(t, os.WriteFile(src, []byte("x = 1 -- comment"), 0644))
	test.That(t, minify(Task{dir, []string{src}, src}))
	b, err = os.ReadFile(src)
	test.Error(t, err)
	test.String(t, string(b), "x=1")
}

func TestMinifyBundle(t *testing.T) {
	dir := t.TempDir()
	src1 := filepath.Join(dir, "map.lua")
	src2 := filepath.Join(dir, "main.lua")
	dst := filepath.Join(dir, "out.lua")
	test.Error(t, os.WriteFile(src1, []byte("function config() end"), 0644))
	test.Error(t, os.WriteFile(src2, []byte("function main() config() end"), 0644))

	quiet = true
	mimetype = ""
	m = newMinifier(lua.Minifier{
		MinifyAllGlobalVars:      true,
		PreservedGlobalFunctions: []string{"main"},
	})
	test.That(t, minify(Task{dir, []string{src1, src2}, dst}))
	b, err := os.ReadFile(dst)
	test.Error(t, err)
	test.String(t, string(b), "function a()end;function main()a()end")
}
