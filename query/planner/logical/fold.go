package logical

import (
	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query/ast"
)

func foldUnary(op ast.UnaryOp, operand *ast.Literal) (*ast.Literal, bool) {
	switch op {
	case ast.OpNot:
		if operand.Value.Kind == graph.KindBool {
			return &ast.Literal{Value: graph.BoolValue(!operand.Value.Bool)}, true
		}
	case ast.OpNeg:
		switch operand.Value.Kind {
		case graph.KindInt:
			return &ast.Literal{Value: graph.IntValue(-operand.Value.Int)}, true
		case graph.KindFloat:
			return &ast.Literal{Value: graph.FloatValue(-operand.Value.Float)}, true
		}
	}
	return nil, false
}

func foldBinary(op ast.BinaryOp, left, right *ast.Literal) (*ast.Literal, bool) {
	l, r := left.Value, right.Value

	if op == ast.OpAnd || op == ast.OpOr {
		if l.Kind != graph.KindBool || r.Kind != graph.KindBool {
			return nil, false
		}
		if op == ast.OpAnd {
			return &ast.Literal{Value: graph.BoolValue(l.Bool && r.Bool)}, true
		}
		return &ast.Literal{Value: graph.BoolValue(l.Bool || r.Bool)}, true
	}

	switch op {
	case ast.OpEq:
		return &ast.Literal{Value: graph.BoolValue(l.Equal(r))}, true
	case ast.OpNeq:
		return &ast.Literal{Value: graph.BoolValue(!l.Equal(r))}, true
	}

	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, false
	}

	switch op {
	case ast.OpLt:
		return &ast.Literal{Value: graph.BoolValue(lf < rf)}, true
	case ast.OpLte:
		return &ast.Literal{Value: graph.BoolValue(lf <= rf)}, true
	case ast.OpGt:
		return &ast.Literal{Value: graph.BoolValue(lf > rf)}, true
	case ast.OpGte:
		return &ast.Literal{Value: graph.BoolValue(lf >= rf)}, true
	}

	// Arithmetic: keep Int+Int as Int, anything involving Float as Float.
	bothInt := l.Kind == graph.KindInt && r.Kind == graph.KindInt
	switch op {
	case ast.OpAdd:
		if bothInt {
			return &ast.Literal{Value: graph.IntValue(l.Int + r.Int)}, true
		}
		return &ast.Literal{Value: graph.FloatValue(lf + rf)}, true
	case ast.OpSub:
		if bothInt {
			return &ast.Literal{Value: graph.IntValue(l.Int - r.Int)}, true
		}
		return &ast.Literal{Value: graph.FloatValue(lf - rf)}, true
	case ast.OpMul:
		if bothInt {
			return &ast.Literal{Value: graph.IntValue(l.Int * r.Int)}, true
		}
		return &ast.Literal{Value: graph.FloatValue(lf * rf)}, true
	case ast.OpDiv:
		if rf == 0 {
			return nil, false
		}
		if bothInt {
			return &ast.Literal{Value: graph.IntValue(l.Int / r.Int)}, true
		}
		return &ast.Literal{Value: graph.FloatValue(lf / rf)}, true
	case ast.OpMod:
		if bothInt && r.Int != 0 {
			return &ast.Literal{Value: graph.IntValue(l.Int % r.Int)}, true
		}
	}
	return nil, false
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
