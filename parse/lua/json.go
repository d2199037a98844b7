package lua

import (
	"bytes"
	"io"

	"github.com/buger/jsonparser"
	"github.com/tdewolff/parse/v2"
)

// ParseJSON decodes a syntax tree in the JSON format of the luaparse JavaScript parser, produced with its scope option enabled.
// Identifier locality and the globals inventory are taken from the input as is. Globals is nil when the chunk has no globals property.
func ParseJSON(r *parse.Input) (*AST, error) {
	if err := r.Err(); err != nil && err != io.EOF {
		return nil, err
	}

	d := &jsonDecoder{data: r.Bytes()}
	root, typ, _, err := jsonparser.Get(d.data)
	if err != nil || typ != jsonparser.Object {
		return nil, parse.NewError(bytes.NewReader(d.data), 0, "expected a chunk object")
	}
	start := bytes.IndexByte(d.data, '{')

	chunk := d.object(root, start)
	if t := chunk.string("type"); d.err == nil && t != "Chunk" {
		d.fail(start, "expected a chunk object instead of %s", t)
	}
	ast := &AST{List: d.stmts(chunk.get("body"))}
	if globals := chunk.get("globals"); globals.Type == jsonparser.Array {
		ast.Globals = d.globals(globals)
	}
	if d.err != nil {
		return nil, d.err
	}
	return ast, nil
}

type jsonValue struct {
	Data   []byte
	Type   jsonparser.ValueType
	Offset int // offset of the value in the document
}

type jsonObject struct {
	d      *jsonDecoder
	fields map[string]jsonValue
	offset int
}

func (o jsonObject) get(key string) jsonValue {
	if v, ok := o.fields[key]; ok {
		return v
	}
	return jsonValue{Type: jsonparser.NotExist, Offset: o.offset}
}

func (o jsonObject) string(key string) string {
	v := o.get(key)
	if v.Type != jsonparser.String {
		o.d.fail(v.Offset, "expected string property %s", key)
		return ""
	}
	s, err := jsonparser.ParseString(v.Data)
	if err != nil {
		o.d.fail(v.Offset, "bad string property %s: %v", key, err)
	}
	return s
}

func (o jsonObject) bool(key string) bool {
	v := o.get(key)
	if v.Type != jsonparser.Boolean {
		return false
	}
	b, _ := jsonparser.ParseBoolean(v.Data)
	return b
}

////////////////////////////////////////////////////////////////

type jsonDecoder struct {
	data []byte
	err  error
}

func (d *jsonDecoder) fail(offset int, msg string, a ...interface{}) {
	if d.err == nil {
		d.err = parse.NewError(bytes.NewReader(d.data), offset, msg, a...)
	}
}

func (d *jsonDecoder) object(data []byte, offset int) jsonObject {
	o := jsonObject{d: d, fields: map[string]jsonValue{}, offset: offset}
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, typ jsonparser.ValueType, end int) error {
		start := end - len(value)
		if typ == jsonparser.String {
			start--
		}
		o.fields[string(key)] = jsonValue{value, typ, offset + start}
		return nil
	})
	if err != nil {
		d.fail(offset, "%v", err)
	}
	return o
}

func (d *jsonDecoder) array(v jsonValue, cb func(jsonValue)) {
	if v.Type != jsonparser.Array {
		d.fail(v.Offset, "expected array")
		return
	}
	_, err := jsonparser.ArrayEach(v.Data, func(value []byte, typ jsonparser.ValueType, offset int, _ error) {
		if d.err == nil {
			cb(jsonValue{value, typ, v.Offset + offset})
		}
	})
	if err != nil {
		d.fail(v.Offset, "%v", err)
	}
}

func (d *jsonDecoder) globals(v jsonValue) []string {
	globals := []string{}
	seen := map[string]bool{}
	d.array(v, func(item jsonValue) {
		var name string
		if item.Type == jsonparser.String {
			name, _ = jsonparser.ParseString(item.Data)
		} else if item.Type == jsonparser.Object {
			name = d.object(item.Data, item.Offset).string("name")
		} else {
			d.fail(item.Offset, "expected global identifier")
			return
		}
		if !seen[name] {
			seen[name] = true
			globals = append(globals, name)
		}
	})
	return globals
}

func (d *jsonDecoder) stmts(v jsonValue) []IStmt {
	list := []IStmt{}
	d.array(v, func(item jsonValue) {
		if stmt := d.stmt(item); stmt != nil {
			list = append(list, stmt)
		}
	})
	return list
}

func (d *jsonDecoder) exprs(v jsonValue) []IExpr {
	list := []IExpr{}
	if v.Type == jsonparser.NotExist || v.Type == jsonparser.Null {
		return list
	}
	d.array(v, func(item jsonValue) {
		list = append(list, d.expr(item))
	})
	return list
}

func (d *jsonDecoder) identifier(v jsonValue) *Identifier {
	if v.Type != jsonparser.Object {
		d.fail(v.Offset, "expected identifier")
		return &Identifier{}
	}
	o := d.object(v.Data, v.Offset)
	if typ := o.string("type"); typ != "Identifier" {
		d.fail(v.Offset, "expected identifier instead of %s", typ)
	}
	return &Identifier{Name: o.string("name"), IsLocal: o.bool("isLocal")}
}

func (d *jsonDecoder) identifiers(v jsonValue) []*Identifier {
	list := []*Identifier{}
	d.array(v, func(item jsonValue) {
		list = append(list, d.identifier(item))
	})
	return list
}

// params returns the parameter identifiers and whether the list ends in a vararg.
func (d *jsonDecoder) params(v jsonValue) ([]*Identifier, bool) {
	params := []*Identifier{}
	vararg := false
	d.array(v, func(item jsonValue) {
		if item.Type == jsonparser.Object && d.object(item.Data, item.Offset).string("type") == "VarargLiteral" {
			vararg = true
			return
		}
		params = append(params, d.identifier(item))
	})
	return params, vararg
}

func (d *jsonDecoder) stmt(v jsonValue) IStmt {
	if v.Type != jsonparser.Object {
		d.fail(v.Offset, "expected statement")
		return nil
	}
	o := d.object(v.Data, v.Offset)
	switch typ := o.string("type"); typ {
	case "AssignmentStatement":
		return &AssignStmt{Vars: d.exprs(o.get("variables")), Values: d.exprs(o.get("init"))}
	case "LocalStatement":
		return &LocalStmt{Names: d.identifiers(o.get("variables")), Values: d.exprs(o.get("init"))}
	case "CallStatement":
		return &CallStmt{Call: d.expr(o.get("expression"))}
	case "IfStatement":
		ifStmt := &IfStmt{}
		d.array(o.get("clauses"), func(item jsonValue) {
			clause := d.object(item.Data, item.Offset)
			switch ctyp := clause.string("type"); ctyp {
			case "IfClause", "ElseifClause":
				ifStmt.Clauses = append(ifStmt.Clauses, IfClause{Cond: d.expr(clause.get("condition")), Body: d.stmts(clause.get("body"))})
			case "ElseClause":
				ifStmt.Clauses = append(ifStmt.Clauses, IfClause{Body: d.stmts(clause.get("body"))})
			default:
				d.fail(item.Offset, "unknown clause type %s", ctyp)
			}
		})
		return ifStmt
	case "WhileStatement":
		return &WhileStmt{Cond: d.expr(o.get("condition")), Body: d.stmts(o.get("body"))}
	case "DoStatement":
		return &DoStmt{Body: d.stmts(o.get("body"))}
	case "ReturnStatement":
		return &ReturnStmt{Values: d.exprs(o.get("arguments"))}
	case "BreakStatement":
		return &BreakStmt{}
	case "RepeatStatement":
		return &RepeatStmt{Body: d.stmts(o.get("body")), Cond: d.expr(o.get("condition"))}
	case "FunctionDeclaration":
		params, vararg := d.params(o.get("parameters"))
		return &FuncDeclStmt{
			Name:    d.expr(o.get("identifier")),
			IsLocal: o.bool("isLocal"),
			Params:  params,
			Vararg:  vararg,
			Body:    d.stmts(o.get("body")),
		}
	case "ForGenericStatement":
		return &ForGenericStmt{Names: d.identifiers(o.get("variables")), Iters: d.exprs(o.get("iterators")), Body: d.stmts(o.get("body"))}
	case "ForNumericStatement":
		forStmt := &ForNumericStmt{
			Name:  d.identifier(o.get("variable")),
			Start: d.expr(o.get("start")),
			End:   d.expr(o.get("end")),
			Body:  d.stmts(o.get("body")),
		}
		if step := o.get("step"); step.Type == jsonparser.Object {
			forStmt.Step = d.expr(step)
		}
		return forStmt
	case "LabelStatement":
		return &LabelStmt{Name: d.identifier(o.get("label")).Name}
	case "GotoStatement":
		return &GotoStmt{Label: d.identifier(o.get("label")).Name}
	default:
		d.fail(v.Offset, "unknown statement type %s", typ)
	}
	return nil
}

func (d *jsonDecoder) literal(o jsonObject, typ LiteralType) *LiteralExpr {
	if raw := o.get("raw"); raw.Type == jsonparser.String {
		return &LiteralExpr{typ, []byte(o.string("raw"))}
	}
	switch typ {
	case NilLiteral:
		return &LiteralExpr{typ, []byte("nil")}
	case VarargLiteral:
		return &LiteralExpr{typ, []byte("...")}
	case BooleanLiteral:
		if o.bool("value") {
			return &LiteralExpr{typ, []byte("true")}
		}
		return &LiteralExpr{typ, []byte("false")}
	case StringLiteral:
		if value := o.get("value"); value.Type == jsonparser.String {
			return &LiteralExpr{typ, QuoteString(o.string("value"))}
		}
	case NumericLiteral:
		if value := o.get("value"); value.Type == jsonparser.Number {
			return &LiteralExpr{typ, append([]byte{}, value.Data...)}
		}
	}
	d.fail(o.offset, "literal without raw text")
	return &LiteralExpr{typ, []byte{}}
}

func (d *jsonDecoder) expr(v jsonValue) IExpr {
	if v.Type != jsonparser.Object {
		d.fail(v.Offset, "expected expression")
		return &LiteralExpr{NilLiteral, []byte("nil")}
	}
	o := d.object(v.Data, v.Offset)

	var x IExpr
	switch typ := o.string("type"); typ {
	case "Identifier":
		x = &Identifier{Name: o.string("name"), IsLocal: o.bool("isLocal")}
	case "StringLiteral":
		x = d.literal(o, StringLiteral)
	case "NumericLiteral":
		x = d.literal(o, NumericLiteral)
	case "BooleanLiteral":
		x = d.literal(o, BooleanLiteral)
	case "NilLiteral":
		x = d.literal(o, NilLiteral)
	case "VarargLiteral":
		x = d.literal(o, VarargLiteral)
	case "LogicalExpression", "BinaryExpression":
		operator := o.string("operator")
		op, ok := BinaryOp(operator)
		if !ok {
			d.fail(v.Offset, "unknown binary operator %s", operator)
		}
		x = &BinaryExpr{op, d.expr(o.get("left")), d.expr(o.get("right"))}
	case "UnaryExpression":
		operator := o.string("operator")
		op, ok := UnaryOp(operator)
		if !ok {
			d.fail(v.Offset, "unknown unary operator %s", operator)
		}
		x = &UnaryExpr{op, d.expr(o.get("argument"))}
	case "CallExpression":
		x = &CallExpr{X: d.expr(o.get("base")), Args: d.exprs(o.get("arguments"))}
	case "TableCallExpression":
		arg, ok := d.expr(o.get("arguments")).(*TableExpr)
		if !ok {
			d.fail(v.Offset, "expected table argument")
			arg = &TableExpr{}
		}
		x = &TableCallExpr{X: d.expr(o.get("base")), Arg: arg}
	case "StringCallExpression":
		arg, ok := d.expr(o.get("argument")).(*LiteralExpr)
		if !ok || arg.Type != StringLiteral {
			d.fail(v.Offset, "expected string argument")
			arg = &LiteralExpr{StringLiteral, []byte(`""`)}
		}
		x = &StringCallExpr{X: d.expr(o.get("base")), Arg: arg}
	case "IndexExpression":
		x = &IndexExpr{X: d.expr(o.get("base")), Index: d.expr(o.get("index"))}
	case "MemberExpression":
		indexer := o.string("indexer")
		if indexer != "." && indexer != ":" {
			d.fail(v.Offset, "unknown indexer %s", indexer)
			indexer = "."
		}
		x = &MemberExpr{X: d.expr(o.get("base")), Indexer: indexer[0], Key: d.identifier(o.get("identifier"))}
	case "FunctionDeclaration":
		params, vararg := d.params(o.get("parameters"))
		x = &FuncExpr{Params: params, Vararg: vararg, Body: d.stmts(o.get("body"))}
	case "TableConstructorExpression":
		table := &TableExpr{Fields: []Field{}}
		d.array(o.get("fields"), func(item jsonValue) {
			field := d.object(item.Data, item.Offset)
			switch ftyp := field.string("type"); ftyp {
			case "TableKey":
				table.Fields = append(table.Fields, Field{Key: d.expr(field.get("key")), Value: d.expr(field.get("value"))})
			case "TableKeyString":
				table.Fields = append(table.Fields, Field{Name: d.identifier(field.get("key")), Value: d.expr(field.get("value"))})
			case "TableValue":
				table.Fields = append(table.Fields, Field{Value: d.expr(field.get("value"))})
			default:
				d.fail(item.Offset, "unknown field type %s", ftyp)
			}
		})
		x = table
	default:
		d.fail(v.Offset, "unknown expression type %s", typ)
		return &LiteralExpr{NilLiteral, []byte("nil")}
	}

	if o.bool("inParens") {
		return &GroupExpr{x}
	}
	return x
}
