package lua

import (
	"errors"
	"strings"
	"testing"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/test"
)

func TestParse(t *testing.T) {
	var tests = []struct {
		lua      string
		expected string
	}{
		{"", ""},
		{"local a = 1", "Stmt(local a = 1)"},
		{"local a, b", "Stmt(local a, b)"},
		{"a, b = 1, 2", "Stmt(a, b = 1, 2)"},
		{"f(x)", "Stmt(f(x))"},
		{"if a then elseif b then else end", "Stmt(if a { } elseif b { } else { })"},
		{"if a then else if b then end end", "Stmt(if a { } else { Stmt(if b { }) })"},
		{"while a do end", "Stmt(while a { })"},
		{"do end", "Stmt(do { })"},
		{"return", "Stmt(return)"},
		{"return 1, 2", "Stmt(return 1, 2)"},
		{"while true do break end", "Stmt(while true { Stmt(break) })"},
		{"repeat until a", "Stmt(repeat { } until a)"},
		{"local function f(a, ...) end", "Stmt(local function f(a, ...) { })"},
		{"local f = function() end", "Stmt(local f = function() { })"},
		{"function a.b:c() end", "Stmt(function a.b:c() { })"},
		{"for k, v in pairs(t) do end", "Stmt(for k, v in pairs(t) { })"},
		{"for i = 1, 10, 2 do end", "Stmt(for i = 1, 10, 2 { })"},
		{"for i = 1, 10 do end", "Stmt(for i = 1, 10 { })"},
		{"::l:: goto l", "Stmt(::l::) Stmt(goto l)"},
		{"x = (a + b) * -c", "Stmt(x = ((a + b) * (-c)))"},
		{"x = not a or #b", "Stmt(x = ((not a) or (#b)))"},
		{"x = a .. b .. c", "Stmt(x = (a .. (b .. c)))"},
		{"x = (f())", "Stmt(x = (f()))"},
		{"x = (...)", "Stmt(x = (...))"},
		{"x = a.b[c]:d()", "Stmt(x = a.b[c]:d())"},
		{"x = {1, a = 2, [3] = 4}", "Stmt(x = {1, a=2, [3]=4})"},
		{"x = 'a\"b'", "Stmt(x = 'a\"b')"},
		{"x = function(...) end", "Stmt(x = function(...) { })"},
		{"x = ('s'):len()", "Stmt(x = (\"s\"):len())"},
		{"x = a['b'], a['b c'], a[1]", "Stmt(x = a.b, a[\"b c\"], a[1])"},
		{"x = 0x1F + 1.50", "Stmt(x = (0x1F + 1.50))"},
		{"return a // b", "Stmt(return (a // b))"},
		{"x = a // b % c", "Stmt(x = ((a // b) % c))"},
		{"x = a | b ~ c & d << e .. f", "Stmt(x = (a | (b ~ (c & (d << (e .. f))))))"},
		{"x = ~a >> 1", "Stmt(x = ((~a) >> 1))"},
		{"x = a ~= ~b", "Stmt(x = (a ~= (~b)))"},
		{"x = 1 < 2 == true and a or b", "Stmt(x = ((((1 < 2) == true) and a) or b))"},
		{"x = -a ^ -b ^ c", "Stmt(x = (-(a ^ (-(b ^ c)))))"},
		{"x = (a)", "Stmt(x = a)"},
		{"x = (a).b, (a + b).c", "Stmt(x = a.b, ((a + b)).c)"},
		{"f'x' f{} f[[y]]", "Stmt(f\"x\") Stmt(f{}) Stmt(f\"y\")"},
		{"x = {a, b; c = 1, ['d'] = 2,}", "Stmt(x = {a, b, c=1, d=2})"},
		{"x = [[\nline]]", "Stmt(x = \"line\")"},
		{"x = 'a\\65\\u{42}'", "Stmt(x = \"aAB\")"},
		{"#!/usr/bin/lua\nx = 1", "Stmt(x = 1)"},
		{";;x = 1;", "Stmt(x = 1)"},
		{"return;", "Stmt(return)"},
		{"goto continue ::continue::", "Stmt(goto continue) Stmt(::continue::)"},
		{"local function f(...) return ... end", "Stmt(local function f(...) { Stmt(return ...) })"},
	}
	for _, tt := range tests {
		t.Run(tt.lua, func(t *testing.T) {
			ast, err := Parse(parse.NewInputString(tt.lua))
			test.Error(t, err)
			test.String(t, ast.String(), tt.expected)
		})
	}
}

func TestParseError(t *testing.T) {
	var tests = []struct {
		lua  string
		line int
	}{
		{"local = 1", 1},
		{"x = 1\ny = = 2", 2},
		{"x = 1 1", 1},
		{"f() = 1", 1},
		{"(a) = 1", 1},
		{"a:b = 1", 1},
		{"(f())", 1},
		{"x", 1},
		{"function f()\nreturn ...\nend", 2},
		{"if a then\n", 2},
		{"x = {1,\n2", 2},
		{"for i do end", 1},
		{"local goto = 1", 1},
		{"return 1\nx = 2", 2},
		{"x = 'unfinished", 1},
		{"end", 1},
		{"x = " + strings.Repeat("(", 300) + "1" + strings.Repeat(")", 300), 1},
	}
	for _, tt := range tests {
		t.Run(tt.lua, func(t *testing.T) {
			_, err := Parse(parse.NewInputString(tt.lua))
			var perr *parse.Error
			test.That(t, errors.As(err, &perr), "expected parse error", err)
			test.T(t, perr.Line, tt.line)
		})
	}
}

func TestParseReaderError(t *testing.T) {
	_, err := Parse(parse.NewInput(test.NewErrorReader(0)))
	test.T(t, err, test.ErrPlain)
}

func TestResolve(t *testing.T) {
	var tests = []struct {
		lua     string
		globals []string
	}{
		{"", []string{}},
		{"local a = 1 return a", []string{}},
		{"print(x, x, y)", []string{"print", "x", "y"}},
		{"local x = x", []string{"x"}},
		{"local function f() return f end", []string{}},
		{"local f = function() return f end", []string{"f"}},
		{"function f() end f()", []string{"f"}},
		{"function t:m() return self end", []string{"t"}},
		{"for i = i, n do end", []string{"i", "n"}},
		{"for k in next, k do end", []string{"next", "k"}},
		{"repeat local done = true until done", []string{}},
		{"do local a end return a", []string{"a"}},
		{"if a then local b else b = 1 end", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.lua, func(t *testing.T) {
			ast, err := Parse(parse.NewInputString(tt.lua))
			test.Error(t, err)
			test.T(t, ast.Globals, tt.globals)
		})
	}
}

func TestResolveLocality(t *testing.T) {
	ast, err := Parse(parse.NewInputString("local a = b\nfunction c(d) return a, d, e end"))
	test.Error(t, err)

	local := ast.List[0].(*LocalStmt)
	test.That(t, local.Names[0].IsLocal)
	test.That(t, !local.Values[0].(*Identifier).IsLocal)

	decl := ast.List[1].(*FuncDeclStmt)
	test.That(t, !decl.Name.(*Identifier).IsLocal)
	test.That(t, decl.Params[0].IsLocal)
	ret := decl.Body[0].(*ReturnStmt)
	test.That(t, ret.Values[0].(*Identifier).IsLocal, "upvalue")
	test.That(t, ret.Values[1].(*Identifier).IsLocal, "parameter")
	test.That(t, !ret.Values[2].(*Identifier).IsLocal, "global")
}

func TestQuoteString(t *testing.T) {
	var tests = []struct {
		s        string
		expected string
	}{
		{"", `""`},
		{"abc", `"abc"`},
		{`a"b`, `'a"b'`},
		{`a'b`, `"a'b"`},
		{`a"b'c'`, `"a\"b'c'"`},
		{"a\\b", `"a\\b"`},
		{"a\nb\tc\rd", `"a\nb\tc\rd"`},
		{"\x00", `"\0"`},
		{"\x001", `"\0001"`},
		{"\x1b[0m", `"\27[0m"`},
		{"\x1b0", `"\0270"`},
		{"héllo", `"héllo"`},
	}
	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			test.String(t, string(QuoteString(tt.s)), tt.expected)
		})
	}
}

func TestIsName(t *testing.T) {
	test.That(t, IsName("a"))
	test.That(t, IsName("_a1"))
	test.That(t, !IsName(""))
	test.That(t, !IsName("1a"))
	test.That(t, !IsName("a b"))
	test.That(t, !IsName("end"))
	test.That(t, IsKeyword("goto"))
	test.That(t, !IsKeyword("self"))
}
