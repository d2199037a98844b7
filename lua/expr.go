package lua

import (
	"strings"

	"github.com/wc3ts/luamin"
	"github.com/wc3ts/luamin/parse/lua"
)

// exprOpts is the context an expression is rendered in.
type exprOpts struct {
	prec     OpPrec // precedence demanded by the parent operator
	right    bool   // right-hand side of the parent operator
	parent   lua.Op
	preserve bool // never rename by policy
	force    bool // always rename
}

func group(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	out = append(out, '(')
	out = append(out, b...)
	return append(out, ')')
}

func isCall(i lua.IExpr) bool {
	switch i.(type) {
	case *lua.CallExpr, *lua.TableCallExpr, *lua.StringCallExpr:
		return true
	}
	return false
}

func unwrapGroup(i lua.IExpr) lua.IExpr {
	for {
		g, ok := i.(*lua.GroupExpr)
		if !ok {
			return i
		}
		i = g.X
	}
}

func (m *luaMinifier) identifier(id *lua.Identifier, opts exprOpts) []byte {
	if id == nil {
		m.unknown(id)
		return nil
	}
	name := id.Name
	if opts.force || (id.IsLocal || (m.o.MinifyAllGlobalVars || m.renamer.shortened[name]) && !strings.HasPrefix(name, "_")) && !opts.preserve {
		return m.rename(name)
	}
	return []byte(name)
}

// base renders the prefix of an index, member or call expression.
// Parentheses are kept only where the prefix would not parse otherwise, or where they truncate the results of a call.
func (m *luaMinifier) base(i lua.IExpr) []byte {
	g, ok := i.(*lua.GroupExpr)
	if !ok {
		return m.expr(i, exprOpts{})
	}
	switch x := unwrapGroup(g).(type) {
	case *lua.Identifier, *lua.IndexExpr, *lua.MemberExpr:
		return m.expr(x, exprOpts{})
	default:
		if isCall(x) {
			return m.expr(g, exprOpts{})
		}
		return group(m.expr(x, exprOpts{}))
	}
}

func (m *luaMinifier) exprList(list []lua.IExpr) []byte {
	b := []byte{}
	for j, item := range list {
		if j != 0 {
			b = append(b, ',')
		}
		b = append(b, m.expr(item, exprOpts{})...)
	}
	return b
}

func (m *luaMinifier) params(params []*lua.Identifier, vararg bool) []byte {
	b := []byte{'('}
	for j, param := range params {
		if j != 0 {
			b = append(b, ',')
		}
		if param == nil {
			m.unknown(param)
			return nil
		}
		b = append(b, m.rename(param.Name)...)
	}
	if vararg {
		if len(params) != 0 {
			b = append(b, ',')
		}
		b = append(b, "..."...)
	}
	return append(b, ')')
}

func (m *luaMinifier) expr(i lua.IExpr, opts exprOpts) []byte {
	if m.err != nil {
		return nil
	}

	switch expr := i.(type) {
	case *lua.Identifier:
		return m.identifier(expr, opts)
	case *lua.LiteralExpr:
		if expr.Type == lua.NumericLiteral {
			return append([]byte{}, minify.Number(expr.Data)...)
		}
		return append([]byte{}, expr.Data...)
	case *lua.GroupExpr:
		x := unwrapGroup(expr)
		if lit, ok := x.(*lua.LiteralExpr); isCall(x) || ok && lit.Type == lua.VarargLiteral {
			// parentheses truncate the results to one value
			return group(m.expr(x, exprOpts{}))
		}
		return m.expr(x, opts)
	case *lua.BinaryExpr:
		prec, ok := binaryOpPrecMap[expr.Op]
		if !ok {
			m.unknown(expr)
			return nil
		}
		b := m.expr(expr.X, exprOpts{prec: prec, parent: expr.Op})
		b = appendJoin(b, []byte(expr.Op.String()), ' ')
		b = appendJoin(b, m.expr(expr.Y, exprOpts{prec: prec, right: true, parent: expr.Op}), ' ')
		if prec < opts.prec || prec == opts.prec && isRightAssoc(expr.Op) != opts.right && opts.parent != lua.AddOp && !(opts.parent == lua.MulOp && (expr.Op == lua.DivOp || expr.Op == lua.MulOp)) {
			b = group(b)
		}
		return b
	case *lua.UnaryExpr:
		if !expr.Op.IsUnary() {
			m.unknown(expr)
			return nil
		}
		b := appendJoin([]byte(expr.Op.String()), m.expr(expr.X, exprOpts{prec: OpUnary}), ' ')
		if OpUnary < opts.prec && !(opts.parent == lua.PowOp && opts.right) {
			// the right-hand side of ^ always starts a unary expression
			b = group(b)
		}
		return b
	case *lua.CallExpr:
		if len(expr.Args) == 1 {
			switch arg := expr.Args[0].(type) {
			case *lua.TableExpr:
				return append(m.base(expr.X), m.expr(arg, exprOpts{})...)
			case *lua.LiteralExpr:
				if arg.Type == lua.StringLiteral {
					return append(m.base(expr.X), m.expr(arg, exprOpts{})...)
				}
			}
		}
		b := append(m.base(expr.X), '(')
		b = append(b, m.exprList(expr.Args)...)
		return append(b, ')')
	case *lua.TableCallExpr:
		if expr.Arg == nil {
			m.unknown(expr)
			return nil
		}
		return append(m.base(expr.X), m.expr(expr.Arg, exprOpts{})...)
	case *lua.StringCallExpr:
		if expr.Arg == nil {
			m.unknown(expr)
			return nil
		}
		return append(m.base(expr.X), m.expr(expr.Arg, exprOpts{})...)
	case *lua.IndexExpr:
		b := appendJoin(append(m.base(expr.X), '['), m.expr(expr.Index, exprOpts{}), ' ')
		return append(b, ']')
	case *lua.MemberExpr:
		if expr.Key == nil {
			m.unknown(expr)
			return nil
		}
		b := append(m.base(expr.X), expr.Indexer)
		return append(b, m.identifier(expr.Key, exprOpts{
			preserve: true,
			force:    m.o.MinifyMemberNames && !strings.HasPrefix(expr.Key.Name, "_"),
		})...)
	case *lua.FuncExpr:
		b := append([]byte("function"), m.params(expr.Params, expr.Vararg)...)
		b = appendJoin(b, m.stmtList(expr.Body), ' ')
		return appendJoin(b, endBytes, ' ')
	case *lua.TableExpr:
		b := []byte{'{'}
		for j, field := range expr.Fields {
			if j != 0 {
				b = append(b, ',')
			}
			if field.Key != nil {
				b = appendJoin(append(b, '['), m.expr(field.Key, exprOpts{}), ' ')
				b = append(b, ']', '=')
			} else if field.Name != nil {
				b = append(b, m.identifier(field.Name, exprOpts{
					preserve: true,
					force:    m.o.MinifyTableKeyStrings && !strings.HasPrefix(field.Name.Name, "_"),
				})...)
				b = append(b, '=')
			}
			b = append(b, m.expr(field.Value, exprOpts{})...)
		}
		return append(b, '}')
	}
	m.unknown(i)
	return nil
}
