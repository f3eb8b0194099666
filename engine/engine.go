// Package engine assembles the full query path over the lower layers:
// parse, authorize, plan, execute. It is the one entry point the HTTP
// server and the CLI drive; nothing above it touches the planner or
// the storage tiers directly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/graph/schema"
	"kotobadb.dev/kotobadb/monitoring"
	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/query/exec"
	"kotobadb.dev/kotobadb/query/parser"
	"kotobadb.dev/kotobadb/query/planner/logical"
	"kotobadb.dev/kotobadb/query/planner/physical"
	"kotobadb.dev/kotobadb/security"
	"kotobadb.dev/kotobadb/session"
	"kotobadb.dev/kotobadb/txlog"
)

// ErrDenied is returned when the policy engine refuses an operation.
var ErrDenied = errors.New("authorization denied")

// Engine owns the wired core: graph projection, transaction log,
// schema registry, policy service, and statement executor.
type Engine struct {
	Store      *graph.Store
	Log        *txlog.Log
	Schemas    *schema.Registry
	Policy     *security.PolicyService
	Statements *exec.StatementExecutor

	catalog  physical.Catalog
	logger   *logrus.Entry
	recorder monitoring.Recorder
}

// Options configures optional engine collaborators.
type Options struct {
	Policy   *security.PolicyService
	Catalog  physical.Catalog
	Logger   *logrus.Logger
	Recorder monitoring.Recorder
	NodeID   string
	Author   string
}

// New wires an engine over a graph store and transaction log.
func New(store *graph.Store, log *txlog.Log, registry *schema.Registry, opts Options) *Engine {
	if opts.Catalog == nil {
		opts.Catalog = physical.NewStoreCatalog(store)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.NodeID == "" {
		opts.NodeID = "node-1"
	}
	if opts.Author == "" {
		opts.Author = "system"
	}
	if opts.Recorder == nil {
		opts.Recorder = monitoring.NopRecorder{}
	}
	wallClock := func() uint64 { return uint64(time.Now().UnixMilli()) }
	return &Engine{
		Store:      store,
		Log:        log,
		Schemas:    registry,
		Policy:     opts.Policy,
		Statements: exec.NewStatementExecutor(store, log, registry, opts.Author, opts.NodeID, wallClock),
		catalog:    opts.Catalog,
		logger:     opts.Logger.WithField("component", "engine"),
		recorder:   opts.Recorder,
	}
}

// ResultSet is the row output of a single query statement.
type ResultSet struct {
	Columns []string
	Rows    []exec.Row
}

// StatementOutcome is the result of one program statement: exactly one
// of Result (query rows) or Statement (DDL/DML report) is set.
type StatementOutcome struct {
	Result    *ResultSet
	Statement *exec.StatementResult
}

// Execute runs a full GQL program under the query context: parse,
// authorize each statement, then run queries through the row executor
// and DDL/DML through the statement executor. A statement failure
// aborts the remainder of the program; committed statements stay
// committed.
func (e *Engine) Execute(ctx context.Context, qc *session.QueryContext, source string) ([]StatementOutcome, error) {
	program, err := parser.Parse(source)
	if err != nil {
		return nil, common.Wrap(common.KindQuery, "parse", err)
	}

	ctx, cancel := qc.Deadline(ctx)
	defer cancel()

	start := time.Now()
	outcomes := make([]StatementOutcome, 0, len(program.Statements))
	for _, st := range program.Statements {
		if err := e.authorize(ctx, qc, st); err != nil {
			return outcomes, err
		}
		switch s := st.(type) {
		case *ast.Query:
			rs, err := e.runQuery(ctx, qc, s)
			if err != nil {
				return outcomes, err
			}
			outcomes = append(outcomes, StatementOutcome{Result: rs})
		default:
			sr, err := e.Statements.Execute(ctx, st)
			if err != nil {
				return outcomes, err
			}
			outcomes = append(outcomes, StatementOutcome{Statement: sr})
		}
	}
	e.recorder.Counter("engine_programs_total", 1, map[string]string{"database": qc.Database})
	e.recorder.Duration("engine_program_duration", time.Since(start), nil)
	e.logger.WithFields(logrus.Fields{
		"request_id": qc.RequestID,
		"statements": len(program.Statements),
		"duration":   time.Since(start),
	}).Debug("program executed")
	return outcomes, nil
}

// Query runs a single query statement and returns its rows. Programs
// with multiple statements go through Execute.
func (e *Engine) Query(ctx context.Context, qc *session.QueryContext, source string) (*ResultSet, error) {
	outcomes, err := e.Execute(ctx, qc, source)
	if err != nil {
		return nil, err
	}
	for i := len(outcomes) - 1; i >= 0; i-- {
		if outcomes[i].Result != nil {
			return outcomes[i].Result, nil
		}
	}
	return &ResultSet{}, nil
}

func (e *Engine) runQuery(ctx context.Context, qc *session.QueryContext, q *ast.Query) (*ResultSet, error) {
	params := make(map[string]graph.Value, len(qc.Parameters))
	for k, v := range qc.Parameters {
		params[k] = v
	}
	// LOCAL bindings resolve in order and shadow request parameters.
	for _, local := range q.Locals {
		v, err := exec.EvalConstant(local.Value, params)
		if err != nil {
			return nil, common.Wrap(common.KindQuery, "local-binding", err)
		}
		params[local.Name] = v
	}

	plan, err := e.plan(ctx, q)
	if err != nil {
		return nil, err
	}

	it, err := exec.Build(ctx, plan, e.Store, params)
	if err != nil {
		return nil, common.Wrap(common.KindQuery, "build", err)
	}
	defer it.Close()

	rs := &ResultSet{Columns: exec.Columns(plan)}
	for {
		row, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rs.Rows = append(rs.Rows, projectColumns(row, rs.Columns))
	}
	return rs, nil
}

// projectColumns trims a row to its visible columns; the executor
// keeps original bindings alongside projected values so ORDER BY can
// reference unprojected expressions, but callers only see the
// declared result shape.
func projectColumns(row exec.Row, columns []string) exec.Row {
	if len(columns) == 0 {
		return row
	}
	out := make(exec.Row, len(columns))
	for _, c := range columns {
		out[c] = row[c]
	}
	return out
}

func (e *Engine) plan(ctx context.Context, q *ast.Query) (physical.Op, error) {
	lp, err := logical.Build(q)
	if err != nil {
		return nil, common.Wrap(common.KindQuery, "plan", err)
	}
	lp = logical.Rewrite(lp)
	pp, err := physical.Plan(ctx, lp, e.catalog)
	if err != nil {
		return nil, common.Wrap(common.KindQuery, "plan", err)
	}
	return pp, nil
}

// Explain parses and plans a query without executing it, returning
// the physical plan rendered one operator per line, children indented
// beneath their parent.
func (e *Engine) Explain(ctx context.Context, qc *session.QueryContext, source string) (string, error) {
	st, err := parser.ParseStatement(source)
	if err != nil {
		return "", common.Wrap(common.KindQuery, "parse", err)
	}
	q, ok := st.(*ast.Query)
	if !ok {
		return "", common.Wrap(common.KindQuery, "explain",
			fmt.Errorf("EXPLAIN applies to queries, not %T", st))
	}
	plan, err := e.plan(ctx, q)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	renderPlan(&sb, plan, 0)
	return sb.String(), nil
}

func renderPlan(sb *strings.Builder, op physical.Op, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(op.Describe())
	sb.WriteString("\n")
	for _, child := range op.Children() {
		renderPlan(sb, child, depth+1)
	}
}

// authorize gates one statement through the policy service. Queries
// need execute-on-query plus read-on-graph; mutating statements need
// the matching write/create/delete capability on the graph resource.
// An engine with no policy service permits everything, the embedded
// single-user configuration.
func (e *Engine) authorize(ctx context.Context, qc *session.QueryContext, st ast.Statement) error {
	if e.Policy == nil {
		return nil
	}
	principal := qc.Principal()
	resourceID := common.Ptr(qc.Database)

	type check struct {
		resource security.ResourceType
		action   security.Action
	}
	graphCheck := func(kind security.ActionKind) check {
		return check{security.NewResourceType(security.ResourceGraph), security.NewAction(kind)}
	}
	var checks []check
	switch st.(type) {
	case *ast.Query:
		checks = []check{
			{security.NewResourceType(security.ResourceQuery), security.NewAction(security.ActionExecute)},
			graphCheck(security.ActionRead),
		}
	case *ast.CreateGraph, *ast.CreateIndex:
		checks = []check{graphCheck(security.ActionCreate)}
	case *ast.DropGraph, *ast.DropIndex:
		checks = []check{graphCheck(security.ActionDelete)}
	default:
		checks = []check{graphCheck(security.ActionWrite)}
	}
	for _, check := range checks {
		allowed, err := e.Policy.CheckPermission(ctx, principal, check.resource, resourceID, check.action)
		if err != nil {
			return common.Wrap(common.KindAuthorization, "authorize", err)
		}
		if !allowed {
			e.logger.WithFields(logrus.Fields{
				"principal": principal,
				"resource":  check.resource.String(),
				"action":    check.action.String(),
			}).Info("authorization denied")
			return common.Wrap(common.KindAuthorization, "authorize", ErrDenied)
		}
	}
	return nil
}
