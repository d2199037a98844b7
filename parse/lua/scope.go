package lua

type scope struct {
	parent *scope
	names  map[string]bool
}

func (s *scope) declare(id *Identifier) {
	id.IsLocal = true
	s.names[id.Name] = true
}

func (s *scope) lookup(name string) bool {
	for ; s != nil; s = s.parent {
		if s.names[name] {
			return true
		}
	}
	return false
}

type resolver struct {
	scope   *scope
	globals []string
	seen    map[string]bool
}

// Resolve sets IsLocal on every identifier of the tree according to Lua's lexical scoping rules,
// and sets Globals to the free names in order of first appearance.
func Resolve(ast *AST) {
	r := &resolver{seen: map[string]bool{}}
	r.push()
	r.block(ast.List)
	r.pop()
	if r.globals == nil {
		r.globals = []string{}
	}
	ast.Globals = r.globals
}

func (r *resolver) push() {
	r.scope = &scope{parent: r.scope, names: map[string]bool{}}
}

func (r *resolver) pop() {
	r.scope = r.scope.parent
}

func (r *resolver) use(id *Identifier) {
	id.IsLocal = r.scope.lookup(id.Name)
	if !id.IsLocal && !r.seen[id.Name] {
		r.seen[id.Name] = true
		r.globals = append(r.globals, id.Name)
	}
}

func (r *resolver) block(list []IStmt) {
	for _, stmt := range list {
		r.stmt(stmt)
	}
}

func (r *resolver) scopedBlock(list []IStmt) {
	r.push()
	r.block(list)
	r.pop()
}

func (r *resolver) function(params []*Identifier, body []IStmt, method bool) {
	r.push()
	if method {
		r.scope.names["self"] = true
	}
	for _, param := range params {
		r.scope.declare(param)
	}
	r.block(body)
	r.pop()
}

func (r *resolver) stmt(i IStmt) {
	switch stmt := i.(type) {
	case *AssignStmt:
		r.exprs(stmt.Vars)
		r.exprs(stmt.Values)
	case *LocalStmt:
		r.exprs(stmt.Values)
		for _, name := range stmt.Names {
			r.scope.declare(name)
		}
	case *CallStmt:
		r.expr(stmt.Call)
	case *IfStmt:
		for _, clause := range stmt.Clauses {
			if clause.Cond != nil {
				r.expr(clause.Cond)
			}
			r.scopedBlock(clause.Body)
		}
	case *WhileStmt:
		r.expr(stmt.Cond)
		r.scopedBlock(stmt.Body)
	case *DoStmt:
		r.scopedBlock(stmt.Body)
	case *ReturnStmt:
		r.exprs(stmt.Values)
	case *RepeatStmt:
		// the condition sees the locals of the body
		r.push()
		r.block(stmt.Body)
		r.expr(stmt.Cond)
		r.pop()
	case *FuncDeclStmt:
		method := false
		if stmt.IsLocal {
			if id, ok := stmt.Name.(*Identifier); ok {
				r.scope.declare(id)
			}
		} else {
			if member, ok := stmt.Name.(*MemberExpr); ok && member.Indexer == ':' {
				method = true
			}
			r.expr(stmt.Name)
		}
		r.function(stmt.Params, stmt.Body, method)
	case *ForGenericStmt:
		r.exprs(stmt.Iters)
		r.push()
		for _, name := range stmt.Names {
			r.scope.declare(name)
		}
		r.block(stmt.Body)
		r.pop()
	case *ForNumericStmt:
		r.expr(stmt.Start)
		r.expr(stmt.End)
		if stmt.Step != nil {
			r.expr(stmt.Step)
		}
		r.push()
		r.scope.declare(stmt.Name)
		r.block(stmt.Body)
		r.pop()
	}
}

func (r *resolver) exprs(list []IExpr) {
	for _, expr := range list {
		r.expr(expr)
	}
}

func (r *resolver) expr(i IExpr) {
	switch expr := i.(type) {
	case *Identifier:
		r.use(expr)
	case *GroupExpr:
		r.expr(expr.X)
	case *BinaryExpr:
		r.expr(expr.X)
		r.expr(expr.Y)
	case *UnaryExpr:
		r.expr(expr.X)
	case *CallExpr:
		r.expr(expr.X)
		r.exprs(expr.Args)
	case *TableCallExpr:
		r.expr(expr.X)
		r.expr(expr.Arg)
	case *StringCallExpr:
		r.expr(expr.X)
	case *IndexExpr:
		r.expr(expr.X)
		r.expr(expr.Index)
	case *MemberExpr:
		r.expr(expr.X)
	case *FuncExpr:
		r.function(expr.Params, expr.Body, false)
	case *TableExpr:
		for _, field := range expr.Fields {
			if field.Key != nil {
				r.expr(field.Key)
			}
			r.expr(field.Value)
		}
	}
}
