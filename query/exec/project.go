package exec

import (
	"context"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query/ast"
)

// projectIter evaluates Items against each input row, writing the
// result under each item's column name while preserving the input
// row's original variable bindings — so a later Sort can still order
// by an expression (e.g. `p.age`) that RETURN didn't project, the way
// a real result set carries a hidden sort key alongside its visible
// columns.
type projectIter struct {
	input   RowIterator
	items   []ast.ReturnItem
	columns []string
	params  map[string]graph.Value
}

func newProjectIter(input RowIterator, items []ast.ReturnItem, params map[string]graph.Value) *projectIter {
	columns := make([]string, len(items))
	for i, it := range items {
		columns[i] = columnName(it)
	}
	return &projectIter{input: input, items: items, columns: columns, params: params}
}

func columnName(item ast.ReturnItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	return exprColumnName(item.Expr)
}

// exprColumnName renders an unaliased return expression the way it
// was written, so `RETURN p.name, p.age` yields distinct column names
// rather than a shared placeholder.
func exprColumnName(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.PropertyAccess:
		return exprColumnName(x.Target) + "." + x.Property
	case *ast.FuncCall:
		if x.Star {
			return x.Name + "(*)"
		}
		args := ""
		for i, a := range x.Args {
			if i > 0 {
				args += ", "
			}
			args += exprColumnName(a)
		}
		return x.Name + "(" + args + ")"
	case *ast.Literal:
		return x.Value.String()
	default:
		return "expr"
	}
}

func (it *projectIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	row, ok, err := it.input.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	out := row.clone()
	for i, item := range it.items {
		v, err := evalExpr(item.Expr, row, it.params)
		if err != nil {
			return nil, false, err
		}
		out[it.columns[i]] = v
	}
	return out, true, nil
}

func (it *projectIter) Close() error { return it.input.Close() }

// distinctIter deduplicates rows by the tuple of their declared result
// columns, accumulating seen keys as it streams (not the full input).
type distinctIter struct {
	input   RowIterator
	columns []string
	seen    map[string]bool
}

func (it *distinctIter) Next(ctx context.Context) (Row, bool, error) {
	if it.seen == nil {
		it.seen = map[string]bool{}
	}
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		row, ok, err := it.input.Next(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		key := distinctKey(row, it.columns)
		if it.seen[key] {
			continue
		}
		it.seen[key] = true
		return row, true, nil
	}
}

func distinctKey(row Row, columns []string) string {
	key := ""
	for _, c := range columns {
		if val, ok := asValue(row[c]); ok {
			key += c + "=" + val.String() + "\x1f"
		} else {
			key += c + "=<entity>\x1f"
		}
	}
	return key
}

func (it *distinctIter) Close() error { return it.input.Close() }

// limitIter yields at most N rows, still polling the input (and thus
// ctx) for each one rather than draining it up front.
type limitIter struct {
	input RowIterator
	n     int64
	count int64
}

func (it *limitIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	if it.count >= it.n {
		return nil, false, nil
	}
	row, ok, err := it.input.Next(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	it.count++
	return row, true, nil
}

func (it *limitIter) Close() error { return it.input.Close() }
