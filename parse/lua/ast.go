// Package lua holds a syntax tree for Lua programs and the frontends that produce it.
package lua

import (
	"strconv"
	"strings"
)

// Op is an operator of a binary, logical or unary expression.
type Op uint8

// Operators, binary ones first.
const (
	ErrorOp Op = iota
	OrOp
	AndOp
	LtOp
	GtOp
	LtEqOp
	GtEqOp
	NotEqOp
	EqOp
	BitOrOp
	BitXorOp
	BitAndOp
	ShlOp
	ShrOp
	ConcatOp
	AddOp
	SubOp
	MulOp
	DivOp
	FloorDivOp
	ModOp
	PowOp
	NotOp
	LenOp
	NegOp
	BitNotOp
)

var opStrings = [...]string{
	ErrorOp:    "",
	OrOp:       "or",
	AndOp:      "and",
	LtOp:       "<",
	GtOp:       ">",
	LtEqOp:     "<=",
	GtEqOp:     ">=",
	NotEqOp:    "~=",
	EqOp:       "==",
	BitOrOp:    "|",
	BitXorOp:   "~",
	BitAndOp:   "&",
	ShlOp:      "<<",
	ShrOp:      ">>",
	ConcatOp:   "..",
	AddOp:      "+",
	SubOp:      "-",
	MulOp:      "*",
	DivOp:      "/",
	FloorDivOp: "//",
	ModOp:      "%",
	PowOp:      "^",
	NotOp:      "not",
	LenOp:      "#",
	NegOp:      "-",
	BitNotOp:   "~",
}

var binaryOps = map[string]Op{}
var unaryOps = map[string]Op{
	"not": NotOp,
	"#":   LenOp,
	"-":   NegOp,
	"~":   BitNotOp,
}

func init() {
	for op := OrOp; op <= PowOp; op++ {
		binaryOps[opStrings[op]] = op
	}
}

// BinaryOp returns the binary or logical operator for its token text.
func BinaryOp(s string) (Op, bool) {
	op, ok := binaryOps[s]
	return op, ok
}

// UnaryOp returns the unary operator for its token text.
func UnaryOp(s string) (Op, bool) {
	op, ok := unaryOps[s]
	return op, ok
}

func (op Op) String() string {
	if int(op) < len(opStrings) && op != ErrorOp {
		return opStrings[op]
	}
	return "Invalid(" + strconv.Itoa(int(op)) + ")"
}

// IsUnary returns true for prefix operators.
func (op Op) IsUnary() bool {
	return NotOp <= op && op <= BitNotOp
}

// IsLogical returns true for the short-circuit operators and, or.
func (op Op) IsLogical() bool {
	return op == OrOp || op == AndOp
}

// IsWord returns true if the operator is spelled as a keyword.
func (op Op) IsWord() bool {
	return op == OrOp || op == AndOp || op == NotOp
}

// LiteralType is the kind of a literal expression.
type LiteralType uint8

// Literal types.
const (
	StringLiteral LiteralType = iota
	NumericLiteral
	BooleanLiteral
	NilLiteral
	VarargLiteral
)

func (t LiteralType) String() string {
	switch t {
	case StringLiteral:
		return "String"
	case NumericLiteral:
		return "Numeric"
	case BooleanLiteral:
		return "Boolean"
	case NilLiteral:
		return "Nil"
	case VarargLiteral:
		return "Vararg"
	}
	return "Invalid(" + strconv.Itoa(int(t)) + ")"
}

////////////////////////////////////////////////////////////////

// AST is the syntax tree of a chunk.
type AST struct {
	List []IStmt

	// Globals lists every free name referenced in the chunk once, in order of first appearance.
	// A nil slice means the producer did not compute it.
	Globals []string
}

func (ast AST) String() string {
	s := ""
	for i, item := range ast.List {
		if i != 0 {
			s += " "
		}
		s += item.String()
	}
	return s
}

// IStmt is a statement node.
type IStmt interface {
	String() string
	stmtNode()
}

// IExpr is an expression node.
type IExpr interface {
	String() string
	exprNode()
}

func blockString(list []IStmt) string {
	s := "{"
	for _, item := range list {
		s += " " + item.String()
	}
	return s + " }"
}

func exprsString(list []IExpr) string {
	ss := make([]string, 0, len(list))
	for _, item := range list {
		ss = append(ss, item.String())
	}
	return strings.Join(ss, ", ")
}

func paramsString(params []*Identifier, vararg bool) string {
	ss := make([]string, 0, len(params)+1)
	for _, param := range params {
		ss = append(ss, param.Name)
	}
	if vararg {
		ss = append(ss, "...")
	}
	return strings.Join(ss, ", ")
}

////////////////////////////////////////////////////////////////

// AssignStmt is `vars = values`.
type AssignStmt struct {
	Vars   []IExpr
	Values []IExpr
}

func (n *AssignStmt) String() string {
	return "Stmt(" + exprsString(n.Vars) + " = " + exprsString(n.Values) + ")"
}

// LocalStmt is `local names = values`, Values may be empty.
type LocalStmt struct {
	Names  []*Identifier
	Values []IExpr
}

func (n *LocalStmt) String() string {
	s := "Stmt(local " + paramsString(n.Names, false)
	if len(n.Values) != 0 {
		s += " = " + exprsString(n.Values)
	}
	return s + ")"
}

// CallStmt is a function call in statement position.
type CallStmt struct {
	Call IExpr
}

func (n *CallStmt) String() string {
	return "Stmt(" + n.Call.String() + ")"
}

// IfClause is one branch of an if statement. Cond is nil for the else branch.
type IfClause struct {
	Cond IExpr
	Body []IStmt
}

// IfStmt is an if statement with its elseif and else clauses in order.
type IfStmt struct {
	Clauses []IfClause
}

func (n *IfStmt) String() string {
	s := "Stmt("
	for i, clause := range n.Clauses {
		if clause.Cond == nil {
			s += " else " + blockString(clause.Body)
			continue
		} else if i == 0 {
			s += "if "
		} else {
			s += " elseif "
		}
		s += clause.Cond.String() + " " + blockString(clause.Body)
	}
	return s + ")"
}

type WhileStmt struct {
	Cond IExpr
	Body []IStmt
}

func (n *WhileStmt) String() string {
	return "Stmt(while " + n.Cond.String() + " " + blockString(n.Body) + ")"
}

type DoStmt struct {
	Body []IStmt
}

func (n *DoStmt) String() string {
	return "Stmt(do " + blockString(n.Body) + ")"
}

type ReturnStmt struct {
	Values []IExpr
}

func (n *ReturnStmt) String() string {
	if len(n.Values) == 0 {
		return "Stmt(return)"
	}
	return "Stmt(return " + exprsString(n.Values) + ")"
}

type BreakStmt struct{}

func (n *BreakStmt) String() string {
	return "Stmt(break)"
}

type RepeatStmt struct {
	Body []IStmt
	Cond IExpr
}

func (n *RepeatStmt) String() string {
	return "Stmt(repeat " + blockString(n.Body) + " until " + n.Cond.String() + ")"
}

// FuncDeclStmt is a named function declaration. Name is an *Identifier, or a *MemberExpr chain for `function a.b:c()`.
type FuncDeclStmt struct {
	Name    IExpr
	IsLocal bool
	Params  []*Identifier
	Vararg  bool
	Body    []IStmt
}

func (n *FuncDeclStmt) String() string {
	s := "Stmt("
	if n.IsLocal {
		s += "local "
	}
	return s + "function " + n.Name.String() + "(" + paramsString(n.Params, n.Vararg) + ") " + blockString(n.Body) + ")"
}

// ForGenericStmt is `for names in iters do body end`.
type ForGenericStmt struct {
	Names []*Identifier
	Iters []IExpr
	Body  []IStmt
}

func (n *ForGenericStmt) String() string {
	return "Stmt(for " + paramsString(n.Names, false) + " in " + exprsString(n.Iters) + " " + blockString(n.Body) + ")"
}

// ForNumericStmt is `for name = start, end, step do body end`, Step may be nil.
type ForNumericStmt struct {
	Name  *Identifier
	Start IExpr
	End   IExpr
	Step  IExpr
	Body  []IStmt
}

func (n *ForNumericStmt) String() string {
	s := "Stmt(for " + n.Name.Name + " = " + n.Start.String() + ", " + n.End.String()
	if n.Step != nil {
		s += ", " + n.Step.String()
	}
	return s + " " + blockString(n.Body) + ")"
}

type LabelStmt struct {
	Name string
}

func (n *LabelStmt) String() string {
	return "Stmt(::" + n.Name + "::)"
}

type GotoStmt struct {
	Label string
}

func (n *GotoStmt) String() string {
	return "Stmt(goto " + n.Label + ")"
}

func (n *AssignStmt) stmtNode()     {}
func (n *LocalStmt) stmtNode()      {}
func (n *CallStmt) stmtNode()       {}
func (n *IfStmt) stmtNode()         {}
func (n *WhileStmt) stmtNode()      {}
func (n *DoStmt) stmtNode()         {}
func (n *ReturnStmt) stmtNode()     {}
func (n *BreakStmt) stmtNode()      {}
func (n *RepeatStmt) stmtNode()     {}
func (n *FuncDeclStmt) stmtNode()   {}
func (n *ForGenericStmt) stmtNode() {}
func (n *ForNumericStmt) stmtNode() {}
func (n *LabelStmt) stmtNode()      {}
func (n *GotoStmt) stmtNode()       {}

////////////////////////////////////////////////////////////////

// Identifier is a variable reference or declaration. IsLocal is set when it resolves to a local binding.
type Identifier struct {
	Name    string
	IsLocal bool
}

func (n *Identifier) String() string {
	return n.Name
}

// LiteralExpr holds the literal as written in the source.
type LiteralExpr struct {
	Type LiteralType
	Data []byte
}

func (n *LiteralExpr) String() string {
	return string(n.Data)
}

// GroupExpr is an expression explicitly wrapped in parentheses.
type GroupExpr struct {
	X IExpr
}

func (n *GroupExpr) String() string {
	return "(" + n.X.String() + ")"
}

// BinaryExpr is a binary or logical expression.
type BinaryExpr struct {
	Op   Op
	X, Y IExpr
}

func (n *BinaryExpr) String() string {
	return "(" + n.X.String() + " " + n.Op.String() + " " + n.Y.String() + ")"
}

type UnaryExpr struct {
	Op Op
	X  IExpr
}

func (n *UnaryExpr) String() string {
	if n.Op.IsWord() {
		return "(" + n.Op.String() + " " + n.X.String() + ")"
	}
	return "(" + n.Op.String() + n.X.String() + ")"
}

// CallExpr is `x(args)`.
type CallExpr struct {
	X    IExpr
	Args []IExpr
}

func (n *CallExpr) String() string {
	return n.X.String() + "(" + exprsString(n.Args) + ")"
}

// TableCallExpr is `x{...}`.
type TableCallExpr struct {
	X   IExpr
	Arg *TableExpr
}

func (n *TableCallExpr) String() string {
	return n.X.String() + n.Arg.String()
}

// StringCallExpr is `x"..."`.
type StringCallExpr struct {
	X   IExpr
	Arg *LiteralExpr
}

func (n *StringCallExpr) String() string {
	return n.X.String() + n.Arg.String()
}

// IndexExpr is `x[index]`.
type IndexExpr struct {
	X     IExpr
	Index IExpr
}

func (n *IndexExpr) String() string {
	return n.X.String() + "[" + n.Index.String() + "]"
}

// MemberExpr is `x.key`, or `x:key` for a method when Indexer is ':'.
type MemberExpr struct {
	X       IExpr
	Indexer byte
	Key     *Identifier
}

func (n *MemberExpr) String() string {
	return n.X.String() + string(n.Indexer) + n.Key.Name
}

// FuncExpr is an anonymous function.
type FuncExpr struct {
	Params []*Identifier
	Vararg bool
	Body   []IStmt
}

func (n *FuncExpr) String() string {
	return "function(" + paramsString(n.Params, n.Vararg) + ") " + blockString(n.Body)
}

// Field is a table constructor entry: `[Key]=Value` when Key is set, `Name=Value` when Name is set, or a positional Value.
type Field struct {
	Key   IExpr
	Name  *Identifier
	Value IExpr
}

func (n Field) String() string {
	if n.Key != nil {
		return "[" + n.Key.String() + "]=" + n.Value.String()
	} else if n.Name != nil {
		return n.Name.Name + "=" + n.Value.String()
	}
	return n.Value.String()
}

type TableExpr struct {
	Fields []Field
}

func (n *TableExpr) String() string {
	ss := make([]string, 0, len(n.Fields))
	for _, field := range n.Fields {
		ss = append(ss, field.String())
	}
	return "{" + strings.Join(ss, ", ") + "}"
}

func (n *Identifier) exprNode()     {}
func (n *LiteralExpr) exprNode()    {}
func (n *GroupExpr) exprNode()      {}
func (n *BinaryExpr) exprNode()     {}
func (n *UnaryExpr) exprNode()      {}
func (n *CallExpr) exprNode()       {}
func (n *TableCallExpr) exprNode()  {}
func (n *StringCallExpr) exprNode() {}
func (n *IndexExpr) exprNode()      {}
func (n *MemberExpr) exprNode()     {}
func (n *FuncExpr) exprNode()       {}
func (n *TableExpr) exprNode()      {}
