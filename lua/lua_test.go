package lua

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/tdewolff/test"
	"github.com/wc3ts/luamin"
	"github.com/wc3ts/luamin/parse/lua"
)

func TestLua(t *testing.T) {
	luaTests := []struct {
		lua      string
		expected string
	}{
		{"", ""},
		{"local a = 1\nlocal b = 2\nreturn a + b", "local a=1;local b=2;return a+b"},
		{"local foo, bar = 1, 2\nprint(foo + bar)", "local a,b=1,2;print(a+b)"},
		{"--[[ block ]] local x = 1 -- trailing", "local a=1"},
		{"local function add(x, y) return x + y end", "local function a(b,c)return b+c end"},
		{"local f = function(x, ...) return x, ... end", "local a=function(b,...)return b,...end"},
		{"x = x + 1", "x=x+1"},
		{"local a = {} a.b = 1", "local a={}a.b=1"},
		{"a = b; (f or g)()", "a=b;(f or g)()"},

		// literals
		{"local x = 0x1F", "local a=0x1F"},
		{"return 0xff .. x", "return 0xff ..x"},
		{"return 0x10 .. x", "return 0x10 ..x"},
		{"local x = 007.100", "local a=7.1"},
		{"local x = 1.0", "local a=1.0"},
		{"local x = 1e10", "local a=1e10"},
		{"return 1.5e+3", "return 1.5e+3"},
		{"local s = 'it\\'s'", `local a="it's"`},
		{"local s = [[long]]", `local a="long"`},
		{"return true, false, nil", "return true,false,nil"},

		// precedence
		{"return (a + b) * c", "return(a+b)*c"},
		{"return a + (b - c)", "return a+b-c"},
		{"return (a - b) - c", "return a-b-c"},
		{"return a - (b - c)", "return a-(b-c)"},
		{"return a * (b / c)", "return a*b/c"},
		{"return a / (b * c)", "return a/(b*c)"},
		{"return a * (b % c)", "return a*(b%c)"},
		{"return a ^ (b ^ c)", "return a^b^c"},
		{"return (a ^ b) ^ c", "return(a^b)^c"},
		{"return a .. (b .. c)", "return a..b..c"},
		{"return (a .. b) .. c", "return(a..b)..c"},
		{"return (a < b) == c", "return a<b==c"},
		{"return a == (b < c)", "return a==(b<c)"},
		{"return a == b, a ~= b, a <= b", "return a==b,a~=b,a<=b"},
		{"return a and (b or c)", "return a and(b or c)"},
		{"return (a and b) or c", "return a and b or c"},
		{"return -a ^ 2", "return-a^2"},
		{"return (-a) ^ 2", "return(-a)^2"},
		{"return 2 ^ -a", "return 2^-a"},
		{"return not (a == b)", "return not(a==b)"},
		{"return not not a", "return not not a"},
		{"return - -a", "return- -a"},
		{"return #t + 1", "return#t+1"},
		{"return 1 .. x", "return 1 ..x"},
		{"return a // b, a // (b * c)", "return a//b,a//(b*c)"},
		{"return a & b | c ~ d", "return a&b|c~d"},
		{"return (a | b) & c", "return(a|b)&c"},
		{"return a << (b >> c)", "return a<<(b>>c)"},
		{"return ~a, a ~ ~b, a ~= ~b", "return~a,a~~b,a~=~b"},
		{"return 1 << 2 .. x", "return 1<<2 ..x"},

		// parentheses that truncate to one value
		{"return (f())", "return(f())"},
		{"return (...)", "return(...)"},
		{"return ...", "return..."},
		{"return x, (y)", "return x,y"},
		{"return {(f())}", "return{(f())}"},

		// prefix expressions
		{"return a.b.c, a[1], a['x y']", `return a.b.c,a[1],a["x y"]`},
		{"return (a).b", "return a.b"},
		{"return ('x'):rep(2)", `return("x"):rep(2)`},
		{"return ({}).x", "return({}).x"},
		{"f{1, 2}", "f{1,2}"},
		{"f'x'", `f"x"`},
		{"f('x')", `f"x"`},
		{"obj:method 'x'", `obj:method"x"`},
		{"local t = {1, x = 2, [3] = 4, ['y z'] = 5}", `local a={1,x=2,[3]=4,["y z"]=5}`},
		{"return function(...) return ... end", "return function(...)return...end"},

		// statements
		{"if a then b() elseif c then d() else e() end", "if a then b()elseif c then d()else e()end"},
		{"if a then else if b then end end", "if a then else if b then end end"},
		{"while a do b() end", "while a do b()end"},
		{"repeat local x = 1 until x", "repeat local a=1 until a"},
		{"for i = 1, 10, 2 do print(i) end", "for a=1,10,2 do print(a)end"},
		{"for k, v in pairs(t) do print(k, v) end", "for a,b in pairs(t)do print(a,b)end"},
		{"do local x = 1 end", "do local a=1 end"},
		{"while true do break end", "while true do break end"},
		{"::top:: goto top", "::a::goto a"},
		{"local obj = {}\nfunction obj:get() return self.x end", "local a={}function a:get()return self.x end"},
		{"function M.f() end", "function M.f()end"},
	}

	m := minify.New()
	for _, tt := range luaTests {
		t.Run(tt.lua, func(t *testing.T) {
			r := bytes.NewBufferString(tt.lua)
			w := &bytes.Buffer{}
			err := Minify(m, w, r, nil)
			test.Minify(t, tt.lua, err, w.String(), tt.expected)
		})
	}
}

func TestLuaOptions(t *testing.T) {
	luaTests := []struct {
		lua      string
		o        Minifier
		expected string
	}{
		{"local a = 1\nlocal b = 2\nreturn a + b", Minifier{NewlineSeparator: true}, "local a=1\nlocal b=2\nreturn a+b"},
		{"a = b; (f or g)()", Minifier{NewlineSeparator: true}, "a=b\n;(f or g)()"},

		{"x = 1\nprint(x)", Minifier{MinifyAssignedGlobalVars: true}, "a=1;print(a)"},
		{"x = 1\nprint(x)", Minifier{MinifyAssignedGlobalVars: true, PreservedGlobalVars: []string{"a"}}, "b=1;print(b)"},
		{"x = 1\nprint(x)", Minifier{MinifyAssignedGlobalVars: true, PreservedGlobalVars: []string{"x"}}, "x=1;print(x)"},
		{"_x = 1\nprint(_x)", Minifier{MinifyAssignedGlobalVars: true}, "_x=1;print(_x)"},
		{"local y = 2\nx = y", Minifier{MinifyAssignedGlobalVars: true}, "local a=2;b=a"},
		{"x, y = 1, 2\nprint(y, x)", Minifier{MinifyAssignedGlobalVars: true}, "a,b=1,2;print(b,a)"},
		{"t.x = 1", Minifier{MinifyAssignedGlobalVars: true}, "t.x=1"},

		{"function foo() return 1 end\nfoo()", Minifier{MinifyGlobalFunctions: true}, "function a()return 1 end;a()"},
		{"function foo() end\nfoo()", Minifier{MinifyGlobalFunctions: true, PreservedGlobalFunctions: []string{"foo"}}, "function foo()end;foo()"},
		{"function M.foo() end", Minifier{MinifyGlobalFunctions: true}, "function M.foo()end"},
		{"function foo() end\nfoo()", Minifier{MinifyAssignedGlobalVars: true}, "function foo()end;foo()"},

		{"x = 1 _y = 2 print(x, _y)", Minifier{MinifyAllGlobalVars: true}, "a=1;_y=2;b(a,_y)"},
		{"print(x)", Minifier{MinifyAllGlobalVars: true, PreservedGlobalFunctions: []string{"print"}}, "print(a)"},

		{"local t = {}\nt.foo = 1\nt._bar = 2\nt:foo()", Minifier{MinifyMemberNames: true}, "local a={}a.b=1;a._bar=2;a:b()"},
		{"local foo = 1\nlocal t = {}\nt.foo = foo", Minifier{MinifyMemberNames: true}, "local a=1;local b={}b.a=a"},
		{"local t = {foo = 1, _foo = 2}", Minifier{MinifyTableKeyStrings: true}, "local a={b=1,_foo=2}"},
		{"local t = {foo = 1}\nreturn t.foo", Minifier{MinifyTableKeyStrings: true}, "local a={b=1}return a.foo"},
	}

	for _, tt := range luaTests {
		t.Run(tt.lua, func(t *testing.T) {
			r := bytes.NewBufferString(tt.lua)
			w := &bytes.Buffer{}
			err := tt.o.Minify(nil, w, r, nil)
			test.Minify(t, tt.lua, err, w.String(), tt.expected)
		})
	}
}

// Occurrences of a global before its first assignment keep the original name.
func TestLateUnprotect(t *testing.T) {
	o := &Minifier{MinifyAssignedGlobalVars: true}
	w := &bytes.Buffer{}
	err := o.Minify(nil, w, bytes.NewBufferString("print(x)\nx = 1\nprint(x)"), nil)
	test.Minify(t, "late", err, w.String(), "print(x)a=1;print(a)")
}

func TestRandomIdentifiers(t *testing.T) {
	src := "local foo, bar = 1, 2\nreturn foo, bar"
	re := regexp.MustCompile(`^local ([a-zA-Z]),([a-zA-Z])=1,2;return ([a-zA-Z]),([a-zA-Z])$`)

	o := &Minifier{RandomIdentifiers: true, Seed: 42}
	w := &bytes.Buffer{}
	test.Error(t, o.Minify(nil, w, bytes.NewBufferString(src), nil))
	out := w.String()

	match := re.FindStringSubmatch(out)
	test.That(t, match != nil, "unexpected output", out)
	test.String(t, match[1], match[3])
	test.String(t, match[2], match[4])
	test.That(t, match[1] != match[2], "names must differ")

	w.Reset()
	test.Error(t, o.Minify(nil, w, bytes.NewBufferString(src), nil))
	test.String(t, w.String(), out, "same seed gives the same names")

	o = &Minifier{RandomIdentifiers: true}
	w.Reset()
	test.Error(t, o.Minify(nil, w, bytes.NewBufferString(src), nil))
	test.That(t, re.MatchString(w.String()), "unexpected output", w.String())
}

func TestRandomSeedError(t *testing.T) {
	orig := seedReader
	defer func() { seedReader = orig }()
	seedReader = test.NewErrorReader(0)

	o := &Minifier{RandomIdentifiers: true}
	w := &bytes.Buffer{}
	err := o.Minify(nil, w, bytes.NewBufferString("local a = 1"), nil)
	test.T(t, errors.Is(err, test.ErrPlain), true, err)
	test.String(t, w.String(), "")

	o.Seed = 3
	test.Error(t, o.Minify(nil, w, bytes.NewBufferString("local a = 1"), nil), "a fixed seed needs no entropy")
}

func TestParams(t *testing.T) {
	m := minify.New()
	m.AddFunc("text/x-lua", Minify)

	out, err := m.String("text/x-lua;newline=true", "local a = 1 local b = 2")
	test.Error(t, err)
	test.String(t, out, "local a=1\nlocal b=2")

	out, err = m.String("text/x-lua;assigned=1", "x = 1 print(x)")
	test.Error(t, err)
	test.String(t, out, "a=1;print(a)")

	out, err = m.String("text/x-lua;random=true;seed=3", "local foo = 1 return foo")
	test.Error(t, err)
	test.That(t, regexp.MustCompile(`^local [a-zA-Z]=1;return [a-zA-Z]$`).MatchString(out), out)

	test.That(t, !DefaultMinifier.NewlineSeparator, "parameters do not change the minifier")

	_, err = m.String("text/x-lua;seed=abc", "return")
	test.That(t, errors.Is(err, ErrBadParam), err)
	_, err = m.String("text/x-lua;newline=maybe", "return")
	test.That(t, errors.Is(err, ErrBadParam), err)
}

func TestASTInput(t *testing.T) {
	src := `{"type":"Chunk","body":[
		{"type":"LocalStatement","variables":[{"type":"Identifier","name":"foo","isLocal":true}],"init":[{"type":"NumericLiteral","value":1.5,"raw":"01.50"}]},
		{"type":"ReturnStatement","arguments":[{"type":"BinaryExpression","operator":"*",
			"left":{"type":"Identifier","name":"foo","isLocal":true},
			"right":{"type":"BinaryExpression","operator":"+","left":{"type":"Identifier","name":"x","isLocal":false},"right":{"type":"NumericLiteral","value":1,"raw":"1"},"inParens":true}}]}
	],"globals":[{"type":"Identifier","name":"x"}]}`

	o := &Minifier{ASTInput: true}
	w := &bytes.Buffer{}
	err := o.Minify(nil, w, bytes.NewBufferString(src), nil)
	test.Minify(t, src, err, w.String(), "local a=1.5;return a*(x+1)")

	w.Reset()
	err = o.Minify(nil, w, bytes.NewBufferString(`{"type":"Chunk","body":[]}`), nil)
	test.T(t, err, ErrMissingGlobals)
	test.String(t, w.String(), "")
}

func TestMinifyAST(t *testing.T) {
	id := func(name string) *lua.Identifier {
		return &lua.Identifier{Name: name}
	}
	ret := func(x lua.IExpr) *lua.AST {
		return &lua.AST{List: []lua.IStmt{&lua.ReturnStmt{Values: []lua.IExpr{x}}}, Globals: []string{"a", "b", "c"}}
	}

	astTests := []struct {
		ast      *lua.AST
		expected string
	}{
		{ret(&lua.BinaryExpr{lua.BitOrOp, id("a"), &lua.BinaryExpr{lua.BitAndOp, id("b"), id("c")}}), "return a|b&c"},
		{ret(&lua.BinaryExpr{lua.BitAndOp, &lua.BinaryExpr{lua.BitOrOp, id("a"), id("b")}, id("c")}), "return(a|b)&c"},
		{ret(&lua.BinaryExpr{lua.FloorDivOp, id("a"), &lua.BinaryExpr{lua.MulOp, id("b"), id("c")}}), "return a//(b*c)"},
		{ret(&lua.BinaryExpr{lua.MulOp, id("a"), &lua.BinaryExpr{lua.FloorDivOp, id("b"), id("c")}}), "return a*(b//c)"},
		{ret(&lua.BinaryExpr{lua.ShlOp, id("a"), &lua.BinaryExpr{lua.ShlOp, id("b"), id("c")}}), "return a<<(b<<c)"},
		{ret(&lua.BinaryExpr{lua.BitXorOp, id("a"), &lua.UnaryExpr{lua.BitNotOp, id("b")}}), "return a~~b"},
		{ret(&lua.UnaryExpr{lua.BitNotOp, id("a")}), "return~a"},
		{ret(&lua.GroupExpr{&lua.GroupExpr{&lua.CallExpr{X: id("a")}}}), "return(a())"},
		{ret(&lua.IndexExpr{id("a"), &lua.LiteralExpr{lua.StringLiteral, []byte("[[x]]")}}), "return a[ [[x]]]"},
		{ret(&lua.TableCallExpr{id("a"), &lua.TableExpr{}}), "return a{}"},
		{ret(&lua.StringCallExpr{&lua.GroupExpr{&lua.StringCallExpr{id("a"), &lua.LiteralExpr{lua.StringLiteral, []byte(`"x"`)}}}, &lua.LiteralExpr{lua.StringLiteral, []byte(`"y"`)}}), `return(a"x")"y"`},
		{ret(&lua.MemberExpr{&lua.GroupExpr{&lua.CallExpr{X: id("a")}}, '.', id("b")}), "return(a()).b"},
		{ret(&lua.TableExpr{[]lua.Field{{Key: &lua.LiteralExpr{lua.StringLiteral, []byte("[[x]]")}, Value: id("b")}}}), "return{[ [[x]]]=b}"},
	}
	for _, tt := range astTests {
		t.Run(tt.expected, func(t *testing.T) {
			b, err := MinifyAST(tt.ast)
			test.Minify(t, tt.ast.String(), err, string(b), tt.expected)
		})
	}
}

func TestMinifyASTErrors(t *testing.T) {
	_, err := MinifyAST(nil)
	test.T(t, err, ErrMissingGlobals)
	_, err = MinifyAST(&lua.AST{List: []lua.IStmt{&lua.BreakStmt{}}})
	test.T(t, err, ErrMissingGlobals)

	b, err := MinifyAST(&lua.AST{List: []lua.IStmt{nil}, Globals: []string{}})
	test.That(t, errors.Is(err, ErrUnknownNode), err)
	test.That(t, b == nil, "no partial output")

	bad := &lua.ReturnStmt{Values: []lua.IExpr{&lua.BinaryExpr{lua.ErrorOp, &lua.Identifier{Name: "a"}, &lua.Identifier{Name: "b"}}}}
	b, err = MinifyAST(&lua.AST{List: []lua.IStmt{&lua.BreakStmt{}, bad}, Globals: []string{}})
	test.That(t, errors.Is(err, ErrUnknownNode), err)
	test.That(t, b == nil, "no partial output")

	_, err = MinifyAST(&lua.AST{List: []lua.IStmt{&lua.IfStmt{}}, Globals: []string{}})
	test.That(t, errors.Is(err, ErrUnknownNode), err)
}

func TestParseErrors(t *testing.T) {
	errorTests := []string{
		"local = 1",
		"x = 1 1",
		"return return",
		"local s = 'unfinished",
	}
	for _, tt := range errorTests {
		t.Run(tt, func(t *testing.T) {
			w := &bytes.Buffer{}
			err := Minify(nil, w, bytes.NewBufferString(tt), nil)
			test.That(t, err != nil, "expected parse error")
			test.String(t, w.String(), "")
		})
	}
}

func TestReaderErrors(t *testing.T) {
	r := test.NewErrorReader(0)
	w := &bytes.Buffer{}
	err := Minify(nil, w, r, nil)
	test.T(t, err, test.ErrPlain, "return error at first read")
}

func TestWriterErrors(t *testing.T) {
	r := bytes.NewBufferString("local a = 1")
	w := test.NewErrorWriter(0)
	err := Minify(nil, w, r, nil)
	test.T(t, err, test.ErrPlain, "return error at first write")
}

////////////////////////////////////////////////////////////////

func ExampleMinify() {
	m := minify.New()
	m.AddFunc("text/x-lua", Minify)

	out, err := m.String("text/x-lua", "local greeting = 'hello'\nprint(greeting)")
	if err != nil {
		panic(err)
	}
	fmt.Println(out)
	// Output: local a="hello"print(a)
}

func BenchmarkMinify(b *testing.B) {
	src := []byte(`
local function fib(n)
	if n < 2 then
		return n
	end
	return fib(n - 1) + fib(n - 2)
end

local results = {}
for i = 1, 20 do
	results[#results + 1] = fib(i)
end
print(table.concat(results, ", "))
`)
	o := &Minifier{MinifyAllGlobalVars: true}
	for i := 0; i < b.N; i++ {
		w := &bytes.Buffer{}
		if err := o.Minify(nil, w, bytes.NewReader(src), nil); err != nil {
			b.Fatal(err)
		}
	}
}
