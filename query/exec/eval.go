package exec

import (
	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query"
	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/query/planner/logical"
)

// evalExpr evaluates expr against row's bindings and the query's bound
// parameters, returning either a graph.Value (for scalar results) or a
// *graph.Vertex/*graph.Edge (for a bare variable reference, so a
// downstream Project can still render the whole entity).
func evalExpr(expr ast.Expr, row Row, params map[string]graph.Value) (any, error) {
	switch e := expr.(type) {
	case *ast.Ident:
		v, ok := row[e.Name]
		if !ok {
			return nil, query.NewUnknownBindingError(e.Name)
		}
		return v, nil

	case *ast.PropertyAccess:
		target, err := evalExpr(e.Target, row, params)
		if err != nil {
			return nil, err
		}
		props := propertiesOf(target)
		if props == nil {
			return graph.Null(), nil
		}
		if v, ok := props[e.Property]; ok {
			return v, nil
		}
		return graph.Null(), nil

	case *ast.Literal:
		return e.Value, nil

	case *ast.Param:
		if v, ok := params[e.Name]; ok {
			return v, nil
		}
		return graph.Null(), nil

	case *ast.ListExpr:
		items := make([]graph.Value, 0, len(e.Items))
		for _, item := range e.Items {
			v, err := evalExpr(item, row, params)
			if err != nil {
				return nil, err
			}
			val, ok := asValue(v)
			if !ok {
				return nil, query.NewTypeMismatchError("list element does not evaluate to a scalar value")
			}
			items = append(items, val)
		}
		return graph.ArrayValue(items), nil

	case *ast.UnaryExpr:
		operand, err := evalExpr(e.Operand, row, params)
		if err != nil {
			return nil, err
		}
		val, ok := asValue(operand)
		if !ok {
			return nil, query.NewTypeMismatchError("unary operand is not a scalar value")
		}
		return evalUnary(e.Op, val)

	case *ast.BinaryExpr:
		left, err := evalExpr(e.Left, row, params)
		if err != nil {
			return nil, err
		}
		right, err := evalExpr(e.Right, row, params)
		if err != nil {
			return nil, err
		}
		lv, lok := asValue(left)
		rv, rok := asValue(right)
		if !lok || !rok {
			return nil, query.NewTypeMismatchError("binary operand is not a scalar value")
		}
		return evalBinary(e.Op, lv, rv)

	case *ast.FuncCall:
		return evalScalarFunc(e, row, params)

	case *logical.LabelCheck:
		v, ok := row[e.Variable]
		if !ok {
			return nil, query.NewUnknownBindingError(e.Variable)
		}
		return graph.BoolValue(hasAnyLabel(v, e.Labels)), nil

	default:
		return nil, query.NewTypeMismatchError("unsupported expression %T", expr)
	}
}

// evalPredicate evaluates expr and reports its truthiness; a non-bool
// result is treated as false rather than an error, matching GQL's
// permissive WHERE semantics for NULL-valued comparisons.
func evalPredicate(expr ast.Expr, row Row, params map[string]graph.Value) (bool, error) {
	v, err := evalExpr(expr, row, params)
	if err != nil {
		return false, err
	}
	val, ok := asValue(v)
	if !ok || val.Kind != graph.KindBool {
		return false, nil
	}
	return val.Bool, nil
}

func propertiesOf(v any) map[string]graph.Value {
	switch t := v.(type) {
	case *graph.Vertex:
		return t.Properties
	case *graph.Edge:
		return t.Properties
	case graph.Vertex:
		return t.Properties
	case graph.Edge:
		return t.Properties
	default:
		return nil
	}
}

func hasAnyLabel(v any, labels []string) bool {
	var label string
	switch t := v.(type) {
	case *graph.Vertex:
		label = t.Label
	case graph.Vertex:
		label = t.Label
	default:
		return false
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// asValue coerces an evaluation result down to a scalar graph.Value;
// bare vertex/edge references (as returned for `RETURN n`) have no
// scalar coercion and fail.
func asValue(v any) (graph.Value, bool) {
	switch t := v.(type) {
	case graph.Value:
		return t, true
	default:
		return graph.Value{}, false
	}
}

func evalUnary(op ast.UnaryOp, v graph.Value) (graph.Value, error) {
	switch op {
	case ast.OpNot:
		if v.Kind != graph.KindBool {
			return graph.Value{}, query.NewTypeMismatchError("NOT requires a boolean operand")
		}
		return graph.BoolValue(!v.Bool), nil
	case ast.OpNeg:
		switch v.Kind {
		case graph.KindInt:
			return graph.IntValue(-v.Int), nil
		case graph.KindFloat:
			return graph.FloatValue(-v.Float), nil
		default:
			return graph.Value{}, query.NewTypeMismatchError("unary minus requires a numeric operand")
		}
	default:
		return graph.Value{}, query.NewTypeMismatchError("unsupported unary operator")
	}
}

func evalBinary(op ast.BinaryOp, l, r graph.Value) (graph.Value, error) {
	switch op {
	case ast.OpEq:
		return graph.BoolValue(l.Equal(r)), nil
	case ast.OpNeq:
		return graph.BoolValue(!l.Equal(r)), nil
	case ast.OpAnd:
		if l.Kind != graph.KindBool || r.Kind != graph.KindBool {
			return graph.Value{}, query.NewTypeMismatchError("AND requires boolean operands")
		}
		return graph.BoolValue(l.Bool && r.Bool), nil
	case ast.OpOr:
		if l.Kind != graph.KindBool || r.Kind != graph.KindBool {
			return graph.Value{}, query.NewTypeMismatchError("OR requires boolean operands")
		}
		return graph.BoolValue(l.Bool || r.Bool), nil
	case ast.OpIn:
		if r.Kind != graph.KindArray {
			return graph.Value{}, query.NewTypeMismatchError("IN requires a list on the right-hand side")
		}
		for _, item := range r.Array {
			if l.Equal(item) {
				return graph.BoolValue(true), nil
			}
		}
		return graph.BoolValue(false), nil
	}

	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return graph.Value{}, query.NewTypeMismatchError("operator requires numeric operands")
	}

	switch op {
	case ast.OpLt:
		return graph.BoolValue(lf < rf), nil
	case ast.OpLte:
		return graph.BoolValue(lf <= rf), nil
	case ast.OpGt:
		return graph.BoolValue(lf > rf), nil
	case ast.OpGte:
		return graph.BoolValue(lf >= rf), nil
	}

	bothInt := l.Kind == graph.KindInt && r.Kind == graph.KindInt
	switch op {
	case ast.OpAdd:
		if bothInt {
			return graph.IntValue(l.Int + r.Int), nil
		}
		return graph.FloatValue(lf + rf), nil
	case ast.OpSub:
		if bothInt {
			return graph.IntValue(l.Int - r.Int), nil
		}
		return graph.FloatValue(lf - rf), nil
	case ast.OpMul:
		if bothInt {
			return graph.IntValue(l.Int * r.Int), nil
		}
		return graph.FloatValue(lf * rf), nil
	case ast.OpDiv:
		if rf == 0 {
			return graph.Value{}, query.NewTypeMismatchError("division by zero")
		}
		if bothInt {
			return graph.IntValue(l.Int / r.Int), nil
		}
		return graph.FloatValue(lf / rf), nil
	case ast.OpMod:
		if !bothInt {
			return graph.Value{}, query.NewTypeMismatchError("modulo requires integer operands")
		}
		if r.Int == 0 {
			return graph.Value{}, query.NewTypeMismatchError("modulo by zero")
		}
		return graph.IntValue(l.Int % r.Int), nil
	}
	return graph.Value{}, query.NewTypeMismatchError("unsupported binary operator")
}

func asFloat(v graph.Value) (float64, bool) {
	switch v.Kind {
	case graph.KindInt:
		return float64(v.Int), true
	case graph.KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// evalScalarFunc handles non-aggregate function calls; aggregate calls
// (count/sum/avg/min/max) only evaluate meaningfully against a Group
// partition and are computed directly by the Group iterator instead.
func evalScalarFunc(call *ast.FuncCall, row Row, params map[string]graph.Value) (any, error) {
	switch call.Name {
	case "labels":
		if len(call.Args) != 1 {
			return nil, query.NewTypeMismatchError("labels() takes exactly one argument")
		}
		target, err := evalExpr(call.Args[0], row, params)
		if err != nil {
			return nil, err
		}
		switch t := target.(type) {
		case *graph.Vertex:
			return graph.ArrayValue([]graph.Value{graph.StringValue(t.Label)}), nil
		case graph.Vertex:
			return graph.ArrayValue([]graph.Value{graph.StringValue(t.Label)}), nil
		default:
			return nil, query.NewTypeMismatchError("labels() requires a node argument")
		}
	case "type":
		if len(call.Args) != 1 {
			return nil, query.NewTypeMismatchError("type() takes exactly one argument")
		}
		target, err := evalExpr(call.Args[0], row, params)
		if err != nil {
			return nil, err
		}
		switch t := target.(type) {
		case *graph.Edge:
			return graph.StringValue(t.Label), nil
		case graph.Edge:
			return graph.StringValue(t.Label), nil
		default:
			return nil, query.NewTypeMismatchError("type() requires a relationship argument")
		}
	case "count", "sum", "avg", "min", "max":
		return nil, query.NewTypeMismatchError("%s() is only valid in a RETURN projection", call.Name)
	default:
		return nil, query.NewTypeMismatchError("unknown function %s", call.Name)
	}
}

// EvalConstant evaluates an expression with no row bindings, used for
// LOCAL program bindings and other constant contexts. Only parameter
// references and literal arithmetic resolve; variable references fail
// with an unknown-binding error.
func EvalConstant(expr ast.Expr, params map[string]graph.Value) (graph.Value, error) {
	out, err := evalExpr(expr, Row{}, params)
	if err != nil {
		return graph.Null(), err
	}
	if v, ok := asValue(out); ok {
		return v, nil
	}
	return graph.Null(), query.NewTypeMismatchError("expression is not a scalar constant")
}
