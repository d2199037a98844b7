package lua

import (
	"strings"

	"github.com/wc3ts/luamin/parse/lua"
)

func (m *luaMinifier) stmtList(list []lua.IStmt) []byte {
	sep := byte(';')
	if m.o.NewlineSeparator {
		sep = '\n'
	}

	b := []byte{}
	for _, item := range list {
		if m.err != nil {
			return nil
		}
		b = appendJoin(b, m.stmt(item), sep)
	}
	return b
}

// block renders `keyword body end`.
func (m *luaMinifier) block(b []byte, body []lua.IStmt) []byte {
	b = appendJoin(b, m.stmtList(body), ' ')
	return appendJoin(b, endBytes, ' ')
}

// isGlobalName returns true if i is a reference to a global that may be renamed by policy.
func isGlobalName(i lua.IExpr) (string, bool) {
	if id, ok := i.(*lua.Identifier); ok && !id.IsLocal && !strings.HasPrefix(id.Name, "_") {
		return id.Name, true
	}
	return "", false
}

func (m *luaMinifier) stmt(i lua.IStmt) []byte {
	if m.err != nil {
		return nil
	}

	switch stmt := i.(type) {
	case *lua.AssignStmt:
		b := []byte{}
		for j, item := range stmt.Vars {
			if name, ok := isGlobalName(item); ok && m.o.MinifyAssignedGlobalVars && !m.renamer.shortened[name] {
				m.unprotect(name)
			}
			if j != 0 {
				b = append(b, ',')
			}
			b = append(b, m.expr(item, exprOpts{})...)
		}
		b = append(b, '=')
		return append(b, m.exprList(stmt.Values)...)
	case *lua.LocalStmt:
		b := []byte("local ")
		for j, name := range stmt.Names {
			if j != 0 {
				b = append(b, ',')
			}
			if name == nil {
				m.unknown(name)
				return nil
			}
			b = append(b, m.rename(name.Name)...)
		}
		if len(stmt.Values) != 0 {
			b = append(b, '=')
			b = append(b, m.exprList(stmt.Values)...)
		}
		return b
	case *lua.CallStmt:
		return m.expr(stmt.Call, exprOpts{})
	case *lua.IfStmt:
		if len(stmt.Clauses) == 0 || stmt.Clauses[0].Cond == nil {
			m.unknown(stmt)
			return nil
		}
		b := []byte{}
		for j, clause := range stmt.Clauses {
			if clause.Cond == nil {
				b = appendJoin(b, []byte("else"), ' ')
			} else {
				if j == 0 {
					b = append(b, "if"...)
				} else {
					b = appendJoin(b, []byte("elseif"), ' ')
				}
				b = appendJoin(b, m.expr(clause.Cond, exprOpts{}), ' ')
				b = appendJoin(b, thenBytes, ' ')
			}
			b = appendJoin(b, m.stmtList(clause.Body), ' ')
		}
		return appendJoin(b, endBytes, ' ')
	case *lua.WhileStmt:
		b := appendJoin([]byte("while"), m.expr(stmt.Cond, exprOpts{}), ' ')
		b = appendJoin(b, doBytes, ' ')
		return m.block(b, stmt.Body)
	case *lua.DoStmt:
		return m.block([]byte("do"), stmt.Body)
	case *lua.ReturnStmt:
		b := []byte("return")
		for j, item := range stmt.Values {
			if j != 0 {
				b = append(b, ',')
			}
			b = appendJoin(b, m.expr(item, exprOpts{}), ' ')
		}
		return b
	case *lua.BreakStmt:
		return []byte("break")
	case *lua.RepeatStmt:
		b := appendJoin([]byte("repeat"), m.stmtList(stmt.Body), ' ')
		b = appendJoin(b, untilBytes, ' ')
		return appendJoin(b, m.expr(stmt.Cond, exprOpts{}), ' ')
	case *lua.FuncDeclStmt:
		if name, ok := isGlobalName(stmt.Name); ok && !stmt.IsLocal && m.o.MinifyGlobalFunctions && !m.renamer.shortened[name] {
			m.unprotect(name)
		}
		b := []byte{}
		if stmt.IsLocal {
			b = append(b, "local "...)
		}
		b = append(b, "function "...)
		b = append(b, m.expr(stmt.Name, exprOpts{})...)
		b = append(b, m.params(stmt.Params, stmt.Vararg)...)
		return m.block(b, stmt.Body)
	case *lua.ForGenericStmt:
		b := []byte("for ")
		for j, name := range stmt.Names {
			if j != 0 {
				b = append(b, ',')
			}
			if name == nil {
				m.unknown(name)
				return nil
			}
			b = append(b, m.rename(name.Name)...)
		}
		b = append(b, " in"...)
		for j, item := range stmt.Iters {
			if j != 0 {
				b = append(b, ',')
			}
			b = appendJoin(b, m.expr(item, exprOpts{}), ' ')
		}
		b = appendJoin(b, doBytes, ' ')
		return m.block(b, stmt.Body)
	case *lua.ForNumericStmt:
		if stmt.Name == nil {
			m.unknown(stmt)
			return nil
		}
		b := append([]byte("for "), m.rename(stmt.Name.Name)...)
		b = append(b, '=')
		b = append(b, m.expr(stmt.Start, exprOpts{})...)
		b = append(b, ',')
		b = append(b, m.expr(stmt.End, exprOpts{})...)
		if stmt.Step != nil {
			b = append(b, ',')
			b = append(b, m.expr(stmt.Step, exprOpts{})...)
		}
		b = appendJoin(b, doBytes, ' ')
		return m.block(b, stmt.Body)
	case *lua.LabelStmt:
		b := append([]byte("::"), m.rename(stmt.Name)...)
		return append(b, "::"...)
	case *lua.GotoStmt:
		return append([]byte("goto "), m.rename(stmt.Label)...)
	}
	m.unknown(i)
	return nil
}
