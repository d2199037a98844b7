package lua

import (
	"bytes"
	"io"
	"strconv"

	"github.com/tdewolff/parse/v2"
)

// maxLevels bounds the nesting of statements and expressions.
const maxLevels = 200

// binaryPrec holds the left and right binding power of the binary operators.
var binaryPrec = map[Op][2]int{
	OrOp:       {1, 1},
	AndOp:      {2, 2},
	LtOp:       {3, 3},
	GtOp:       {3, 3},
	LtEqOp:     {3, 3},
	GtEqOp:     {3, 3},
	NotEqOp:    {3, 3},
	EqOp:       {3, 3},
	BitOrOp:    {4, 4},
	BitXorOp:   {5, 5},
	BitAndOp:   {6, 6},
	ShlOp:      {7, 7},
	ShrOp:      {7, 7},
	ConcatOp:   {9, 8},
	AddOp:      {10, 10},
	SubOp:      {10, 10},
	MulOp:      {11, 11},
	DivOp:      {11, 11},
	FloorDivOp: {11, 11},
	ModOp:      {11, 11},
	PowOp:      {14, 13},
}

const unaryPrec = 12

// Parse parses Lua 5.3 source code and returns its tree with locality and the globals inventory resolved.
func Parse(r *parse.Input) (*AST, error) {
	if err := r.Err(); err != nil && err != io.EOF {
		return nil, err
	}

	p := &parser{
		l:       NewLexer(r),
		src:     r.Bytes(),
		varargs: []bool{true},
	}
	p.next()
	ast := &AST{List: p.block()}
	if p.tt != ErrorToken {
		p.fail("'<eof>' expected")
	}
	if p.err != nil {
		return nil, p.err
	}
	Resolve(ast)
	return ast, nil
}

////////////////////////////////////////////////////////////////

type parser struct {
	l   *Lexer
	src []byte
	err error

	tt     TokenType
	data   []byte
	value  []byte
	offset int

	ahead       bool
	aheadTT     TokenType
	aheadData   []byte
	aheadValue  []byte
	aheadOffset int

	varargs []bool // whether each enclosing function takes ...
	level   int
}

func (p *parser) next() {
	if p.err != nil {
		return
	} else if p.ahead {
		p.ahead = false
		p.tt, p.data, p.value, p.offset = p.aheadTT, p.aheadData, p.aheadValue, p.aheadOffset
	} else {
		p.tt, p.data = p.l.Next()
		p.value, p.offset = p.l.Value(), p.l.Offset()
	}
	if p.tt == ErrorToken {
		if err := p.l.Err(); lexError(err) {
			p.err = err
		}
		p.offset = len(p.src)
	}
}

// peekIs returns true if the token after the current one is the given keyword or punctuator.
func (p *parser) peekIs(s string) bool {
	if !p.ahead {
		p.ahead = true
		p.aheadTT, p.aheadData = p.l.Next()
		p.aheadValue, p.aheadOffset = p.l.Value(), p.l.Offset()
	}
	return (p.aheadTT == KeywordToken || p.aheadTT == PunctuatorToken) && string(p.aheadData) == s
}

func (p *parser) fail(format string, a ...interface{}) {
	if p.err == nil {
		near := "<eof>"
		if p.tt != ErrorToken {
			near = "'" + string(p.data) + "'"
		}
		p.err = parse.NewError(bytes.NewReader(p.src), p.offset, format+" near "+near, a...)
	}
	p.tt = ErrorToken
}

// is returns true if the current token is the given keyword or punctuator.
func (p *parser) is(s string) bool {
	return (p.tt == KeywordToken || p.tt == PunctuatorToken) && string(p.data) == s
}

func (p *parser) consume(s string) bool {
	if p.is(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(s string) {
	if !p.consume(s) {
		p.fail("'%s' expected", s)
	}
}

// expectClose expects the keyword that closes a construct opened at offset.
func (p *parser) expectClose(s, open string, offset int) {
	if !p.consume(s) {
		line, _, _ := parse.Position(bytes.NewReader(p.src), offset)
		p.fail("'%s' expected (to close '%s' at line %d)", s, open, line)
	}
}

func (p *parser) enter() {
	p.level++
	if maxLevels < p.level {
		p.fail("chunk has too many syntax levels")
	}
}

func (p *parser) leave() {
	p.level--
}

func (p *parser) name() *Identifier {
	if p.tt != NameToken {
		p.fail("<name> expected")
		return &Identifier{}
	}
	id := &Identifier{Name: string(p.data)}
	p.next()
	return id
}

func (p *parser) nameList() []*Identifier {
	names := []*Identifier{p.name()}
	for p.consume(",") {
		names = append(names, p.name())
	}
	return names
}

////////////////////////////////////////////////////////////////

func (p *parser) blockFollow() bool {
	if p.tt == ErrorToken {
		return true
	} else if p.tt != KeywordToken {
		return false
	}
	switch string(p.data) {
	case "else", "elseif", "end", "until":
		return true
	}
	return false
}

func (p *parser) block() []IStmt {
	list := []IStmt{}
	for !p.blockFollow() {
		if p.is("return") {
			list = append(list, p.returnStmt())
			break
		}
		if stmt := p.stmt(); stmt != nil {
			list = append(list, stmt)
		}
	}
	return list
}

func (p *parser) returnStmt() IStmt {
	p.next()
	stmt := &ReturnStmt{Values: []IExpr{}}
	if !p.blockFollow() && !p.is(";") {
		stmt.Values = p.exprList()
	}
	p.consume(";")
	return stmt
}

func (p *parser) stmt() IStmt {
	p.enter()
	defer p.leave()

	offset := p.offset
	switch {
	case p.consume(";"):
		return nil
	case p.consume("if"):
		stmt := &IfStmt{}
		for {
			cond := p.expr()
			p.expect("then")
			stmt.Clauses = append(stmt.Clauses, IfClause{Cond: cond, Body: p.block()})
			if !p.consume("elseif") {
				break
			}
		}
		if p.consume("else") {
			stmt.Clauses = append(stmt.Clauses, IfClause{Body: p.block()})
		}
		p.expectClose("end", "if", offset)
		return stmt
	case p.consume("while"):
		cond := p.expr()
		p.expect("do")
		body := p.block()
		p.expectClose("end", "while", offset)
		return &WhileStmt{Cond: cond, Body: body}
	case p.consume("do"):
		body := p.block()
		p.expectClose("end", "do", offset)
		return &DoStmt{Body: body}
	case p.consume("for"):
		return p.forStmt(offset)
	case p.consume("repeat"):
		body := p.block()
		p.expectClose("until", "repeat", offset)
		return &RepeatStmt{Body: body, Cond: p.expr()}
	case p.consume("function"):
		var name IExpr = p.name()
		for p.consume(".") {
			name = &MemberExpr{X: name, Indexer: '.', Key: p.name()}
		}
		if p.consume(":") {
			name = &MemberExpr{X: name, Indexer: ':', Key: p.name()}
		}
		stmt := &FuncDeclStmt{Name: name}
		stmt.Params, stmt.Vararg, stmt.Body = p.funcBody(offset)
		return stmt
	case p.consume("local"):
		if p.consume("function") {
			stmt := &FuncDeclStmt{Name: p.name(), IsLocal: true}
			stmt.Params, stmt.Vararg, stmt.Body = p.funcBody(offset)
			return stmt
		}
		stmt := &LocalStmt{Names: p.nameList(), Values: []IExpr{}}
		if p.consume("=") {
			stmt.Values = p.exprList()
		}
		return stmt
	case p.consume("::"):
		stmt := &LabelStmt{Name: p.name().Name}
		p.expect("::")
		return stmt
	case p.consume("break"):
		return &BreakStmt{}
	case p.consume("goto"):
		return &GotoStmt{Label: p.name().Name}
	}
	return p.exprStmt()
}

func (p *parser) forStmt(offset int) IStmt {
	first := p.name()
	if p.consume("=") {
		stmt := &ForNumericStmt{Name: first, Start: p.expr()}
		p.expect(",")
		stmt.End = p.expr()
		if p.consume(",") {
			stmt.Step = p.expr()
		}
		p.expect("do")
		stmt.Body = p.block()
		p.expectClose("end", "for", offset)
		return stmt
	} else if !p.is(",") && !p.is("in") {
		p.fail("'=' or 'in' expected")
		return nil
	}

	stmt := &ForGenericStmt{Names: []*Identifier{first}}
	for p.consume(",") {
		stmt.Names = append(stmt.Names, p.name())
	}
	p.expect("in")
	stmt.Iters = p.exprList()
	p.expect("do")
	stmt.Body = p.block()
	p.expectClose("end", "for", offset)
	return stmt
}

func (p *parser) funcBody(offset int) ([]*Identifier, bool, []IStmt) {
	params, vararg := []*Identifier{}, false
	p.expect("(")
	if !p.is(")") {
		for {
			if p.consume("...") {
				vararg = true
				break
			}
			params = append(params, p.name())
			if p.err != nil || !p.consume(",") {
				break
			}
		}
	}
	p.expect(")")

	p.varargs = append(p.varargs, vararg)
	body := p.block()
	p.varargs = p.varargs[:len(p.varargs)-1]
	p.expectClose("end", "function", offset)
	return params, vararg, body
}

func (p *parser) exprStmt() IStmt {
	x, paren := p.suffixedExpr()
	if p.is("=") || p.is(",") {
		stmt := &AssignStmt{Vars: []IExpr{p.assignable(x, paren)}}
		for p.consume(",") {
			stmt.Vars = append(stmt.Vars, p.assignable(p.suffixedExpr()))
		}
		p.expect("=")
		stmt.Values = p.exprList()
		return stmt
	}
	switch x.(type) {
	case *CallExpr, *TableCallExpr, *StringCallExpr:
		if !paren {
			return &CallStmt{Call: x}
		}
	}
	p.fail("syntax error")
	return nil
}

func (p *parser) assignable(x IExpr, paren bool) IExpr {
	if !paren {
		switch x := x.(type) {
		case *Identifier, *IndexExpr:
			return x
		case *MemberExpr:
			if x.Indexer == '.' {
				return x
			}
		}
	}
	p.fail("syntax error")
	return x
}

////////////////////////////////////////////////////////////////

func (p *parser) exprList() []IExpr {
	list := []IExpr{p.expr()}
	for p.consume(",") {
		list = append(list, p.expr())
	}
	return list
}

func (p *parser) expr() IExpr {
	return p.subExpr(0)
}

// subExpr parses an expression whose binary operators bind stronger than limit.
func (p *parser) subExpr(limit int) IExpr {
	p.enter()
	defer p.leave()

	var x IExpr
	if op, ok := p.unaryOp(); ok {
		p.next()
		x = &UnaryExpr{Op: op, X: p.subExpr(unaryPrec)}
	} else {
		x = p.simpleExpr()
	}
	for {
		op, ok := p.binaryOp()
		if !ok || binaryPrec[op][0] <= limit {
			return x
		}
		p.next()
		x = &BinaryExpr{Op: op, X: x, Y: p.subExpr(binaryPrec[op][1])}
	}
}

func (p *parser) unaryOp() (Op, bool) {
	if p.tt != KeywordToken && p.tt != PunctuatorToken {
		return ErrorOp, false
	}
	return UnaryOp(string(p.data))
}

func (p *parser) binaryOp() (Op, bool) {
	if p.tt != KeywordToken && p.tt != PunctuatorToken {
		return ErrorOp, false
	}
	return BinaryOp(string(p.data))
}

func (p *parser) simpleExpr() IExpr {
	switch {
	case p.tt == NumericToken:
		x := &LiteralExpr{NumericLiteral, p.data}
		p.next()
		return x
	case p.tt == StringToken:
		return p.stringLiteral()
	case p.consume("nil"):
		return &LiteralExpr{NilLiteral, []byte("nil")}
	case p.consume("true"):
		return &LiteralExpr{BooleanLiteral, []byte("true")}
	case p.consume("false"):
		return &LiteralExpr{BooleanLiteral, []byte("false")}
	case p.is("..."):
		if !p.varargs[len(p.varargs)-1] {
			p.fail("cannot use '...' outside a vararg function")
		}
		p.next()
		return &LiteralExpr{VarargLiteral, []byte("...")}
	case p.is("{"):
		return p.table()
	case p.is("function"):
		offset := p.offset
		p.next()
		x := &FuncExpr{}
		x.Params, x.Vararg, x.Body = p.funcBody(offset)
		return x
	}
	x, _ := p.suffixedExpr()
	return x
}

func (p *parser) stringLiteral() *LiteralExpr {
	x := &LiteralExpr{StringLiteral, QuoteString(string(p.value))}
	p.next()
	return x
}

// primaryExpr parses a name or a parenthesized expression. Parentheses are kept only where they truncate multiple results to one.
func (p *parser) primaryExpr() (IExpr, bool) {
	if p.tt == NameToken {
		return p.name(), false
	} else if p.consume("(") {
		x := p.expr()
		p.expect(")")
		switch x := x.(type) {
		case *CallExpr, *TableCallExpr, *StringCallExpr:
			return &GroupExpr{x}, true
		case *LiteralExpr:
			if x.Type == VarargLiteral {
				return &GroupExpr{x}, true
			}
		}
		return x, true
	}
	p.fail("unexpected symbol")
	return &LiteralExpr{NilLiteral, []byte("nil")}, false
}

// suffixedExpr parses a prefix expression with its member, index and call suffixes.
// It returns true if the expression is parenthesized without any suffix.
func (p *parser) suffixedExpr() (IExpr, bool) {
	x, paren := p.primaryExpr()
	for {
		switch {
		case p.consume("."):
			x = &MemberExpr{X: prefix(x, paren), Indexer: '.', Key: p.name()}
		case p.consume("["):
			x = p.index(prefix(x, paren))
		case p.consume(":"):
			method := &MemberExpr{X: prefix(x, paren), Indexer: ':', Key: p.name()}
			x = p.call(method)
		case p.is("(") || p.is("{") || p.tt == StringToken:
			x = p.call(prefix(x, paren))
		default:
			return x, paren
		}
		paren = false
	}
}

// prefix wraps parenthesized expressions that are not prefix expressions themselves.
func prefix(x IExpr, paren bool) IExpr {
	if paren {
		switch x.(type) {
		case *Identifier, *IndexExpr, *MemberExpr, *GroupExpr:
		default:
			return &GroupExpr{x}
		}
	}
	return x
}

// index parses `[index]`, a string index that is a valid name becomes a member access.
func (p *parser) index(x IExpr) IExpr {
	index := p.expr()
	p.expect("]")
	if name, ok := nameLiteral(index); ok {
		return &MemberExpr{X: x, Indexer: '.', Key: &Identifier{Name: name}}
	}
	return &IndexExpr{X: x, Index: index}
}

func (p *parser) call(x IExpr) IExpr {
	switch {
	case p.tt == StringToken:
		return &StringCallExpr{X: x, Arg: p.stringLiteral()}
	case p.is("{"):
		return &TableCallExpr{X: x, Arg: p.table()}
	case p.consume("("):
		call := &CallExpr{X: x, Args: []IExpr{}}
		if !p.is(")") {
			call.Args = p.exprList()
		}
		p.expect(")")
		return call
	}
	p.fail("function arguments expected")
	return x
}

func (p *parser) table() *TableExpr {
	offset := p.offset
	p.expect("{")
	table := &TableExpr{Fields: []Field{}}
	for !p.is("}") && p.tt != ErrorToken {
		if p.consume("[") {
			key := p.expr()
			p.expect("]")
			p.expect("=")
			if name, ok := nameLiteral(key); ok {
				table.Fields = append(table.Fields, Field{Name: &Identifier{Name: name}, Value: p.expr()})
			} else {
				table.Fields = append(table.Fields, Field{Key: key, Value: p.expr()})
			}
		} else if p.tt == NameToken && p.peekIs("=") {
			name := p.name()
			p.next()
			table.Fields = append(table.Fields, Field{Name: name, Value: p.expr()})
		} else {
			table.Fields = append(table.Fields, Field{Value: p.expr()})
		}
		if !p.consume(",") && !p.consume(";") {
			break
		}
	}
	p.expectClose("}", "{", offset)
	return table
}

// nameLiteral returns the value of a string literal that is a valid name.
func nameLiteral(x IExpr) (string, bool) {
	if lit, ok := x.(*LiteralExpr); ok && lit.Type == StringLiteral && 2 < len(lit.Data) {
		if name := string(lit.Data[1 : len(lit.Data)-1]); IsName(name) {
			return name, true
		}
	}
	return "", false
}

////////////////////////////////////////////////////////////////

var keywords = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true, "end": true,
	"false": true, "for": true, "function": true, "goto": true, "if": true, "in": true,
	"local": true, "nil": true, "not": true, "or": true, "repeat": true, "return": true,
	"then": true, "true": true, "until": true, "while": true,
}

// IsKeyword returns true if s is a reserved word.
func IsKeyword(s string) bool {
	return keywords[s]
}

// IsName returns true if s is a valid identifier that is not a reserved word.
func IsName(s string) bool {
	if len(s) == 0 || '0' <= s[0] && s[0] <= '9' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != '_' && (c < 'a' || 'z' < c) && (c < 'A' || 'Z' < c) && (c < '0' || '9' < c) {
			return false
		}
	}
	return !keywords[s]
}

// QuoteString returns the shortest quoted Lua string literal for the raw string value.
func QuoteString(s string) []byte {
	quote := byte('"')
	if dq, sq := countByte(s, '"'), countByte(s, '\''); sq < dq {
		quote = '\''
	}

	b := make([]byte, 0, len(s)+2)
	b = append(b, quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case quote, '\\':
			b = append(b, '\\', c)
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		default:
			if c < 0x20 || c == 0x7f {
				b = append(b, '\\')
				if i+1 < len(s) && '0' <= s[i+1] && s[i+1] <= '9' {
					// pad so that a following digit is not read as part of the escape
					if c < 100 {
						b = append(b, '0')
					}
					if c < 10 {
						b = append(b, '0')
					}
				}
				b = strconv.AppendInt(b, int64(c), 10)
			} else {
				b = append(b, c)
			}
		}
	}
	return append(b, quote)
}

func countByte(s string, c byte) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			n++
		}
	}
	return n
}
