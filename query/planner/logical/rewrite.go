package logical

import "kotobadb.dev/kotobadb/query/ast"

// Rewrite runs the four idempotent tree transforms in the order that
// lets each pass benefit from the last:
// constant folding first (so pushdown sees simplified predicates),
// then predicate pushdown, then projection pruning, then limit
// pushdown.
func Rewrite(op Op) Op {
	op = FoldConstants(op)
	op = PushDownPredicates(op)
	op = PruneProjections(op)
	op = PushDownLimit(op)
	return op
}

// PushDownPredicates moves a Filter below an Expand when its
// predicate references only variables already bound on the Expand's
// input side, shrinking the row count Expand has to walk. A Filter
// above any other operator, including a Join, stays where it is.
func PushDownPredicates(op Op) Op {
	switch n := op.(type) {
	case *Filter:
		n.Input = PushDownPredicates(n.Input)
		if expand, ok := n.Input.(*Expand); ok && predicateRefsOnly(n.Predicate, expand.FromVar) {
			// Predicate only touches the side Expand reads from, not
			// the side it produces: safe to evaluate before expanding.
			expand.Input = PushDownPredicates(&Filter{Input: expand.Input, Predicate: n.Predicate})
			return expand
		}
		return n
	default:
		children := op.Children()
		for i, c := range children {
			children[i] = PushDownPredicates(c)
		}
		op.SetChildren(children)
		return op
	}
}

// predicateRefsOnly reports whether every variable reference inside
// expr names variable, so the predicate can run before a later Expand
// introduces any other binding.
func predicateRefsOnly(expr ast.Expr, variable string) bool {
	switch e := expr.(type) {
	case *LabelCheck:
		return e.Variable == variable
	case *ast.Ident:
		return e.Name == variable || e.Name == "*"
	case *ast.PropertyAccess:
		return predicateRefsOnly(e.Target, variable)
	case *ast.BinaryExpr:
		return predicateRefsOnly(e.Left, variable) && predicateRefsOnly(e.Right, variable)
	case *ast.UnaryExpr:
		return predicateRefsOnly(e.Operand, variable)
	case *ast.FuncCall:
		for _, a := range e.Args {
			if !predicateRefsOnly(a, variable) {
				return false
			}
		}
		return true
	case *ast.ListExpr:
		for _, it := range e.Items {
			if !predicateRefsOnly(it, variable) {
				return false
			}
		}
		return true
	case *ast.Literal, *ast.Param:
		return true
	default:
		return false
	}
}

// PruneProjections collects the variables actually referenced by the
// tree's terminal Project/Group and annotates every NodeScan reachable
// below it with NeededVars. The annotation is informational: the
// executor's scans do not read it and materialize every vertex in full.
func PruneProjections(op Op) Op {
	needed := map[string]bool{}
	collectNeededVars(op, needed)
	annotateScans(op, needed)
	return op
}

func collectNeededVars(op Op, needed map[string]bool) {
	switch n := op.(type) {
	case *Project:
		for _, it := range n.Items {
			collectExprVars(it.Expr, needed)
		}
	case *Group:
		for _, g := range n.GroupBy {
			collectExprVars(g, needed)
		}
		for _, a := range n.Aggregates {
			collectExprVars(a.Expr, needed)
		}
	case *Filter:
		collectExprVars(n.Predicate, needed)
	case *Sort:
		for _, it := range n.Items {
			collectExprVars(it.Expr, needed)
		}
	}
	for _, c := range op.Children() {
		collectNeededVars(c, needed)
	}
}

func collectExprVars(expr ast.Expr, needed map[string]bool) {
	switch e := expr.(type) {
	case *LabelCheck:
		needed[e.Variable] = true
	case *ast.Ident:
		needed[e.Name] = true
	case *ast.PropertyAccess:
		collectExprVars(e.Target, needed)
	case *ast.BinaryExpr:
		collectExprVars(e.Left, needed)
		collectExprVars(e.Right, needed)
	case *ast.UnaryExpr:
		collectExprVars(e.Operand, needed)
	case *ast.FuncCall:
		for _, a := range e.Args {
			collectExprVars(a, needed)
		}
	case *ast.ListExpr:
		for _, it := range e.Items {
			collectExprVars(it, needed)
		}
	}
}

func annotateScans(op Op, needed map[string]bool) {
	if scan, ok := op.(*NodeScan); ok {
		for v := range needed {
			scan.NeededVars = append(scan.NeededVars, v)
		}
	}
	for _, c := range op.Children() {
		annotateScans(c, needed)
	}
}

// PushDownLimit moves a top-level Limit below a Project, since
// projection never changes row count; it is not pushed below Sort,
// Group, Distinct, or Filter, each of which can change which rows
// survive or their order.
func PushDownLimit(op Op) Op {
	limit, ok := op.(*Limit)
	if !ok {
		children := op.Children()
		for i, c := range children {
			children[i] = PushDownLimit(c)
		}
		op.SetChildren(children)
		return op
	}
	if proj, ok := limit.Input.(*Project); ok {
		inner := &Limit{Input: proj.Input, N: limit.N}
		proj.Input = inner
		return proj
	}
	return limit
}

// FoldConstants evaluates literal-only subexpressions in every Filter
// predicate and Project/Group expression at plan time.
func FoldConstants(op Op) Op {
	switch n := op.(type) {
	case *Filter:
		n.Predicate = foldExpr(n.Predicate)
	case *Project:
		for i := range n.Items {
			n.Items[i].Expr = foldExpr(n.Items[i].Expr)
		}
	case *Group:
		for i := range n.GroupBy {
			n.GroupBy[i] = foldExpr(n.GroupBy[i])
		}
		for i := range n.Aggregates {
			n.Aggregates[i].Expr = foldExpr(n.Aggregates[i].Expr)
		}
	}
	for _, c := range op.Children() {
		FoldConstants(c)
	}
	return op
}

func foldExpr(expr ast.Expr) ast.Expr {
	switch e := expr.(type) {
	case *ast.UnaryExpr:
		e.Operand = foldExpr(e.Operand)
		if lit, ok := e.Operand.(*ast.Literal); ok {
			if folded, ok := foldUnary(e.Op, lit); ok {
				return folded
			}
		}
		return e
	case *ast.BinaryExpr:
		e.Left = foldExpr(e.Left)
		e.Right = foldExpr(e.Right)
		lLit, lok := e.Left.(*ast.Literal)
		rLit, rok := e.Right.(*ast.Literal)
		if lok && rok {
			if folded, ok := foldBinary(e.Op, lLit, rLit); ok {
				return folded
			}
		}
		return e
	default:
		return expr
	}
}
