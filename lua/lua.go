// Package lua minifies Lua source code by removing whitespace, comments and redundant parentheses, and by renaming identifiers.
package lua

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
	"github.com/tdewolff/parse/v2"
	"github.com/wc3ts/luamin"
	"github.com/wc3ts/luamin/parse/lua"
)

// ErrMissingGlobals is returned when a syntax tree has no globals inventory.
var ErrMissingGlobals = errors.New("syntax tree has no globals inventory")

// ErrBadParam is returned for a mediatype parameter with a value of the wrong type.
var ErrBadParam = errors.New("bad mediatype parameter")

// ErrUnknownNode is returned for a statement or expression the printer cannot render.
var ErrUnknownNode = errors.New("unknown syntax node")

var (
	endBytes   = []byte("end")
	doBytes    = []byte("do")
	thenBytes  = []byte("then")
	untilBytes = []byte("until")
)

////////////////////////////////////////////////////////////////

// DefaultMinifier is the default minifier.
var DefaultMinifier = &Minifier{}

// Minifier is a Lua minifier. The zero value only shortens locals and labels.
type Minifier struct {
	NewlineSeparator         bool // join statements with a newline instead of a semicolon
	MinifyMemberNames        bool // rename keys of a.key and a:key
	MinifyTableKeyStrings    bool // rename keys of {key=value}
	MinifyAssignedGlobalVars bool // rename globals from their first assignment on
	MinifyGlobalFunctions    bool // rename globals from their first function declaration on
	MinifyAllGlobalVars      bool // rename all globals
	RandomIdentifiers        bool // draw names randomly instead of sequentially

	PreservedGlobalFunctions []string
	PreservedGlobalVars      []string

	// Seed of the random identifiers, zero picks a random seed.
	Seed int64

	// ASTInput reads a syntax tree in the luaparse JSON format instead of Lua source code.
	ASTInput bool
}

// Minify minifies Lua data, it reads from r and writes to w.
func Minify(m *minify.M, w io.Writer, r io.Reader, params map[string]string) error {
	return DefaultMinifier.Minify(m, w, r, params)
}

// MinifyAST renders a syntax tree with the default minifier.
func MinifyAST(ast *lua.AST) ([]byte, error) {
	return DefaultMinifier.MinifyAST(ast)
}

// Minify minifies Lua data, it reads from r and writes to w.
// Mediatype parameters override the options of o for this call only.
func (o *Minifier) Minify(_ *minify.M, w io.Writer, r io.Reader, params map[string]string) error {
	if 0 < len(params) {
		var err error
		if o, err = o.withParams(params); err != nil {
			return err
		}
	}

	z := parse.NewInput(r)
	defer z.Restore()

	var ast *lua.AST
	var err error
	if o.ASTInput {
		ast, err = lua.ParseJSON(z)
	} else {
		ast, err = lua.Parse(z)
	}
	if err != nil {
		return err
	}

	b, err := o.MinifyAST(ast)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	return nil
}

// MinifyAST renders a syntax tree as minified Lua source. The tree is not modified.
// Nothing is returned on error.
func (o *Minifier) MinifyAST(ast *lua.AST) ([]byte, error) {
	if ast == nil || ast.Globals == nil {
		return nil, ErrMissingGlobals
	}

	var alloc allocator = newSequential()
	if o.RandomIdentifiers {
		seed := o.Seed
		if seed == 0 {
			var err error
			if seed, err = randomSeed(); err != nil {
				return nil, fmt.Errorf("random seed: %w", err)
			}
		}
		alloc = newRandom(seed)
	}

	m := &luaMinifier{o: o, renamer: newRenamer(alloc)}
	for _, name := range o.PreservedGlobalFunctions {
		m.renamer.preserve(name)
	}
	for _, name := range o.PreservedGlobalVars {
		m.renamer.preserve(name)
	}
	for _, name := range ast.Globals {
		if !o.MinifyAllGlobalVars || strings.HasPrefix(name, "_") {
			m.renamer.protect(name)
		} else {
			m.rename(name)
		}
	}

	b := m.stmtList(ast.List)
	if m.err != nil {
		return nil, m.err
	}
	return b, nil
}

func (o *Minifier) withParams(params map[string]string) (*Minifier, error) {
	c := *o
	for key, val := range params {
		var err error
		switch key {
		case "newline":
			c.NewlineSeparator, err = cast.ToBoolE(val)
		case "members":
			c.MinifyMemberNames, err = cast.ToBoolE(val)
		case "tablekeys":
			c.MinifyTableKeyStrings, err = cast.ToBoolE(val)
		case "assigned":
			c.MinifyAssignedGlobalVars, err = cast.ToBoolE(val)
		case "functions":
			c.MinifyGlobalFunctions, err = cast.ToBoolE(val)
		case "globals":
			c.MinifyAllGlobalVars, err = cast.ToBoolE(val)
		case "random":
			c.RandomIdentifiers, err = cast.ToBoolE(val)
		case "seed":
			c.Seed, err = cast.ToInt64E(val)
		case "ast":
			c.ASTInput, err = cast.ToBoolE(val)
		case "charset":
		default:
			minify.Warning.Println("unknown Lua mediatype parameter", key)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%s", ErrBadParam, key, val)
		}
	}
	return &c, nil
}

// seedReader is the entropy source of randomSeed.
var seedReader io.Reader = rand.Reader

func randomSeed() (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(seedReader, b[:]); err != nil {
		return 0, err
	}
	if seed := int64(binary.LittleEndian.Uint64(b[:]) >> 1); seed != 0 {
		return seed, nil
	}
	return 1, nil
}

////////////////////////////////////////////////////////////////

// luaMinifier holds the renaming state of a single minification.
type luaMinifier struct {
	o       *Minifier
	renamer *renamer
	err     error
}

func (m *luaMinifier) rename(name string) []byte {
	if m.err != nil {
		return nil
	}
	rename, err := m.renamer.rename(name)
	if err != nil {
		m.err = err
		return nil
	}
	return []byte(rename)
}

// unprotect renames a global from here on, once an assignment or declaration shows it is defined by the chunk itself.
func (m *luaMinifier) unprotect(name string) {
	if m.err != nil {
		return
	}
	if _, err := m.renamer.unprotect(name); err != nil {
		m.err = err
	}
}

func (m *luaMinifier) unknown(node interface{}) {
	if m.err == nil {
		m.err = fmt.Errorf("%w: %T", ErrUnknownNode, node)
	}
}
