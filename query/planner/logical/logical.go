// Package logical builds and rewrites the logical operator tree for a
// parsed GQL query: NodeScan, Filter, Expand, Join, Project, Distinct,
// Sort, Group, Limit, plus the four algebraic rewrite passes that
// simplify the tree before costing.
package logical

import (
	"sort"

	"kotobadb.dev/kotobadb/query/ast"
)

// Op is one logical operator node. Every concrete type below
// implements it; Children/SetChildren let the rewrite passes walk and
// rebuild the tree generically.
type Op interface {
	Children() []Op
	SetChildren(children []Op)
	Describe() string
}

// NodeScan reads every vertex bound to Variable, optionally filtered
// by label.
type NodeScan struct {
	Variable   string
	Labels     []string
	NeededVars []string // populated by PruneProjections
}

func (s *NodeScan) Children() []Op          { return nil }
func (s *NodeScan) SetChildren(_ []Op)      {}
func (s *NodeScan) Describe() string        { return "NodeScan(" + s.Variable + ")" }

// Filter drops input rows that do not satisfy Predicate.
type Filter struct {
	Input     Op
	Predicate ast.Expr
}

func (f *Filter) Children() []Op     { return []Op{f.Input} }
func (f *Filter) SetChildren(c []Op) { f.Input = c[0] }
func (f *Filter) Describe() string   { return "Filter" }

// Expand walks Pattern's edge from each input row's FromVar binding,
// producing one output row per matching edge/endpoint, bound to
// Pattern.Variable (edge) and ToVar (endpoint vertex).
type Expand struct {
	Input           Op
	Pattern         *ast.EdgePattern
	FromVar, ToVar  string
}

func (e *Expand) Children() []Op     { return []Op{e.Input} }
func (e *Expand) SetChildren(c []Op) { e.Input = c[0] }
func (e *Expand) Describe() string   { return "Expand(" + e.FromVar + "->" + e.ToVar + ")" }

// JoinKind names the join strategy preference left for the physical
// planner to honor or override based on cost.
type JoinKind int

const (
	JoinAny JoinKind = iota
)

// Join combines two independently-scanned branches of a pattern (used
// when a pattern cannot be expressed as a single Expand chain, e.g. a
// disconnected MATCH with more than one component).
type Join struct {
	Left, Right Op
	Condition   ast.Expr
}

func (j *Join) Children() []Op     { return []Op{j.Left, j.Right} }
func (j *Join) SetChildren(c []Op) { j.Left, j.Right = c[0], c[1] }
func (j *Join) Describe() string   { return "Join" }

// Project evaluates Items against each input row, producing the
// RETURN column list.
type Project struct {
	Input Op
	Items []ast.ReturnItem
}

func (p *Project) Children() []Op     { return []Op{p.Input} }
func (p *Project) SetChildren(c []Op) { p.Input = c[0] }
func (p *Project) Describe() string   { return "Project" }

// Distinct deduplicates rows by their full column tuple.
type Distinct struct{ Input Op }

func (d *Distinct) Children() []Op     { return []Op{d.Input} }
func (d *Distinct) SetChildren(c []Op) { d.Input = c[0] }
func (d *Distinct) Describe() string   { return "Distinct" }

// Sort orders rows by Items, accumulating the full input before
// yielding.
type Sort struct {
	Input Op
	Items []ast.OrderByItem
}

func (s *Sort) Children() []Op     { return []Op{s.Input} }
func (s *Sort) SetChildren(c []Op) { s.Input = c[0] }
func (s *Sort) Describe() string   { return "Sort" }

// Group partitions rows by GroupBy and evaluates Aggregates per
// partition, accumulating the full input before yielding.
type Group struct {
	Input      Op
	GroupBy    []ast.Expr
	Aggregates []ast.ReturnItem
}

func (g *Group) Children() []Op     { return []Op{g.Input} }
func (g *Group) SetChildren(c []Op) { g.Input = c[0] }
func (g *Group) Describe() string   { return "Group" }

// Limit yields only the first N rows.
type Limit struct {
	Input Op
	N     int64
}

func (l *Limit) Children() []Op     { return []Op{l.Input} }
func (l *Limit) SetChildren(c []Op) { l.Input = c[0] }
func (l *Limit) Describe() string   { return "Limit(" + itoa(l.N) + ")" }

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// isAggregateCall reports whether e is a recognized aggregate
// function invocation.
func isAggregateCall(e ast.Expr) (*ast.FuncCall, bool) {
	call, ok := e.(*ast.FuncCall)
	if !ok {
		return nil, false
	}
	switch call.Name {
	case "count", "sum", "avg", "min", "max":
		return call, true
	default:
		return nil, false
	}
}

func hasAggregate(items []ast.ReturnItem) bool {
	for _, it := range items {
		if _, ok := isAggregateCall(it.Expr); ok {
			return true
		}
	}
	return false
}

// Build translates a parsed Query into a logical operator tree: a
// NodeScan/Expand chain for the MATCH pattern, a Filter for WHERE, a
// Group for aggregation (when present), a Project for RETURN, and
// Distinct/Sort/Limit as the clauses require.
func Build(q *ast.Query) (Op, error) {
	pattern := q.Match.Pattern
	first := pattern.Nodes[0]
	var op Op = &NodeScan{Variable: first.Variable, Labels: first.Labels}
	if pred := propertyPredicate(first); pred != nil {
		op = &Filter{Input: op, Predicate: pred}
	}

	for i, edge := range pattern.Edges {
		toNode := pattern.Nodes[i+1]
		op = &Expand{
			Input:   op,
			Pattern: edge,
			FromVar: pattern.Nodes[i].Variable,
			ToVar:   toNode.Variable,
		}
		if len(toNode.Labels) > 0 {
			op = &Filter{Input: op, Predicate: labelPredicate(toNode.Variable, toNode.Labels)}
		}
		if pred := propertyPredicate(toNode); pred != nil {
			op = &Filter{Input: op, Predicate: pred}
		}
	}

	if q.Where != nil {
		op = &Filter{Input: op, Predicate: q.Where}
	}

	if len(q.GroupBy) > 0 || hasAggregate(q.Return.Items) {
		op = &Group{Input: op, GroupBy: q.GroupBy, Aggregates: q.Return.Items}
	} else {
		op = &Project{Input: op, Items: q.Return.Items}
	}

	if q.Return.Distinct {
		op = &Distinct{Input: op}
	}
	if len(q.OrderBy) > 0 {
		op = &Sort{Input: op, Items: q.OrderBy}
	}
	if q.Limit != nil {
		op = &Limit{Input: op, N: *q.Limit}
	}
	return op, nil
}

// propertyPredicate folds a pattern's inline property map
// (`(p:Person {name: "Alice"})`) into the conjunction of equality
// predicates it abbreviates; nil when the pattern carries none.
func propertyPredicate(node *ast.NodePattern) ast.Expr {
	if len(node.Properties) == 0 {
		return nil
	}
	props := make([]string, 0, len(node.Properties))
	for name := range node.Properties {
		props = append(props, name)
	}
	sort.Strings(props)

	var pred ast.Expr
	for _, name := range props {
		eq := &ast.BinaryExpr{
			Op:    ast.OpEq,
			Left:  &ast.PropertyAccess{Target: &ast.Ident{Name: node.Variable}, Property: name},
			Right: node.Properties[name],
		}
		if pred == nil {
			pred = eq
		} else {
			pred = &ast.BinaryExpr{Op: ast.OpAnd, Left: pred, Right: eq}
		}
	}
	return pred
}

// labelPredicate builds the synthetic label-membership predicate for
// an expanded-to node; the executor's predicate evaluation
// special-cases *LabelCheck rather than routing it through general
// expression machinery.
func labelPredicate(variable string, labels []string) ast.Expr {
	return &LabelCheck{Variable: variable, Labels: labels}
}

// LabelCheck is a synthetic predicate node (not produced by the
// parser) asserting a bound vertex carries one of Labels. Kept in the
// logical package rather than ast since it is a planner-internal
// artifact, not surface syntax.
type LabelCheck struct {
	Variable string
	Labels   []string
}

func (*LabelCheck) ExprNode() {}
