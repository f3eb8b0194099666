package physical

import "kotobadb.dev/kotobadb/query/ast"

// ScanStrategy selects between a full NodeScan and an equality
// IndexScan for a physical scan node.
type ScanStrategy int

const (
	ScanFull ScanStrategy = iota
	ScanIndex
)

// JoinStrategy selects between NestedLoopJoin and HashJoin for a
// physical join node.
type JoinStrategy int

const (
	StrategyNestedLoop JoinStrategy = iota
	StrategyHash
)

// Op is a physical operator: same shape as logical.Op but annotated
// with the concrete scan/join strategy the cost model chose.
type Op interface {
	Children() []Op
	Describe() string
}

// NodeScan reads vertices bound to Variable, either fully (ScanFull)
// or via an equality index lookup (ScanIndex) on IndexProperty against
// IndexValue.
type NodeScan struct {
	Variable      string
	Labels        []string
	Strategy      ScanStrategy
	IndexProperty string
	IndexValue    ast.Expr
	NeededVars    []string
	cardinality   int64
}

func (s *NodeScan) Children() []Op { return nil }
func (s *NodeScan) Describe() string {
	if s.Strategy == ScanIndex {
		return "IndexScan(" + s.Variable + "." + s.IndexProperty + ")"
	}
	return "NodeScan(" + s.Variable + ")"
}

// Filter, Project, Distinct, Sort, Group, Limit carry over unchanged
// from the logical tree; only Scan and Join nodes have a physical
// strategy choice to make.
type Filter struct {
	Input     Op
	Predicate ast.Expr
}

func (f *Filter) Children() []Op   { return []Op{f.Input} }
func (f *Filter) Describe() string { return "Filter" }

type Expand struct {
	Input          Op
	Pattern        *ast.EdgePattern
	FromVar, ToVar string
}

func (e *Expand) Children() []Op   { return []Op{e.Input} }
func (e *Expand) Describe() string { return "Expand(" + e.FromVar + "->" + e.ToVar + ")" }

// Join combines two independently-planned branches using the chosen
// Strategy. HashJoin's build side is always Right.
type Join struct {
	Left, Right Op
	Condition   ast.Expr
	Strategy    JoinStrategy
}

func (j *Join) Children() []Op   { return []Op{j.Left, j.Right} }
func (j *Join) Describe() string { return "Join" }

type Project struct {
	Input Op
	Items []ast.ReturnItem
}

func (p *Project) Children() []Op   { return []Op{p.Input} }
func (p *Project) Describe() string { return "Project" }

type Distinct struct{ Input Op }

func (d *Distinct) Children() []Op   { return []Op{d.Input} }
func (d *Distinct) Describe() string { return "Distinct" }

type Sort struct {
	Input Op
	Items []ast.OrderByItem
}

func (s *Sort) Children() []Op   { return []Op{s.Input} }
func (s *Sort) Describe() string { return "Sort" }

type Group struct {
	Input      Op
	GroupBy    []ast.Expr
	Aggregates []ast.ReturnItem
}

func (g *Group) Children() []Op   { return []Op{g.Input} }
func (g *Group) Describe() string { return "Group" }

type Limit struct {
	Input Op
	N     int64
}

func (l *Limit) Children() []Op   { return []Op{l.Input} }
func (l *Limit) Describe() string { return "Limit" }
