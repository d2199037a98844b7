// Package minify holds a registry with the Lua minifiers for their mimetypes.
package minify

import (
	"regexp"

	"github.com/wc3ts/luamin"
	"github.com/wc3ts/luamin/lua"
)

// LuaASTMimetype is the mimetype of a luaparse syntax tree in JSON.
const LuaASTMimetype = "application/x-lua-ast+json"

// Default minifiers for Lua source and Lua syntax trees
var Default *minify.M

func init() {
	Default = minify.New()
	Default.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?lua$"), lua.Minify)
	Default.Add(LuaASTMimetype, &lua.Minifier{ASTInput: true})
}

// Lua string minifier using the default minifiers
func Lua(s string) (string, error) {
	return Default.String("text/x-lua", s)
}

// LuaAST minifies a luaparse syntax tree in JSON into Lua source
func LuaAST(s string) (string, error) {
	return Default.String(LuaASTMimetype, s)
}
