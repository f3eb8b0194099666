package exec

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/graph/schema"
	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/txlog"
)

// StatementResult reports the outcome of one DDL/DML statement: how
// many rows it affected, which identifiers it created, and per-row
// failures for bulk operations. Bulk inserts are partial-success:
// each failed element is reported individually and the committed ones
// stay committed.
type StatementResult struct {
	RowsAffected int
	CreatedIDs   []string
	TxID         txlog.TxRef
	RowErrors    []string
}

// StatementExecutor translates DDL/DML statements into transactions:
// every statement appends exactly one transaction to the log before
// its effects reach the graph projection. Direct store writes that
// bypass the log are confined to this type's apply step, which runs
// only after the append has committed.
type StatementExecutor struct {
	store    *graph.Store
	log      *txlog.Log
	registry *schema.Registry
	author   string

	mu          sync.Mutex
	hlc         txlog.HLC
	wallClock   func() uint64
	bootstrapped bool
}

// NewStatementExecutor wires a statement executor over the store, log
// and schema registry. author identifies the writing principal in
// appended transactions.
func NewStatementExecutor(store *graph.Store, log *txlog.Log, registry *schema.Registry, author, nodeID string, wallClock func() uint64) *StatementExecutor {
	return &StatementExecutor{
		store:     store,
		log:       log,
		registry:  registry,
		author:    author,
		hlc:       txlog.NewHLC(nodeID, wallClock()),
		wallClock: wallClock,
	}
}

func (e *StatementExecutor) nextHLC() txlog.HLC {
	e.hlc = e.hlc.Tick(e.wallClock())
	return e.hlc
}

func (e *StatementExecutor) nextTxID(prefix string) txlog.TxRef {
	return txlog.TxRef(prefix + "-" + uuid.NewString())
}

var (
	bulkInsertRule = txlog.NewDefRef([]string{"rules", "bulk-insert"}, txlog.DefTypeRule)
	dropRule       = txlog.NewDefRef([]string{"rules", "drop"}, txlog.DefTypeRule)
)

// bootstrap registers the built-in rule definitions DML transactions
// depend on, so a later replay finds every dependency in the log.
func (e *StatementExecutor) bootstrap(ctx context.Context) error {
	if e.bootstrapped {
		return nil
	}
	for _, rule := range []txlog.DefRef{bulkInsertRule, dropRule} {
		if _, ok := e.log.Provenance(rule); ok {
			continue
		}
		tx := txlog.NewTransaction(e.nextTxID("bootstrap"), e.nextHLC(), nil, e.author, txlog.Operation{
			Kind:           txlog.OpDefinitionRegistration,
			DefRefValue:    rule,
			DefinitionType: txlog.DefinitionRule,
		})
		if err := e.log.Append(ctx, tx); err != nil {
			return err
		}
	}
	e.bootstrapped = true
	return nil
}

// Execute dispatches a single DDL/DML statement. Query statements are
// not accepted here; the engine routes those to the row executor.
func (e *StatementExecutor) Execute(ctx context.Context, st ast.Statement) (*StatementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.bootstrap(ctx); err != nil {
		return nil, err
	}

	switch s := st.(type) {
	case *ast.CreateGraph:
		return e.createGraph(ctx, s)
	case *ast.DropGraph:
		return e.dropGraph(ctx, s)
	case *ast.CreateIndex:
		return e.createIndex(ctx, s)
	case *ast.DropIndex:
		return e.dropIndex(ctx, s)
	case *ast.InsertStatement:
		return e.insert(ctx, s)
	default:
		return nil, common.Wrap(common.KindQuery, "statement",
			fmt.Errorf("statement %T is not a DDL/DML statement", st))
	}
}

func graphDefRef(name string) txlog.DefRef {
	return txlog.NewDefRef([]string{"graphs", name}, txlog.DefTypeType)
}

func (e *StatementExecutor) createGraph(ctx context.Context, s *ast.CreateGraph) (*StatementResult, error) {
	tx := txlog.NewTransaction(e.nextTxID("create-graph"), e.nextHLC(), nil, e.author, txlog.Operation{
		Kind:           txlog.OpDefinitionRegistration,
		DefRefValue:    graphDefRef(s.Name),
		DefinitionType: txlog.DefinitionTypeKind,
	})
	if err := e.log.Append(ctx, tx); err != nil {
		return nil, err
	}
	return &StatementResult{CreatedIDs: []string{s.Name}, TxID: tx.TxID}, nil
}

func (e *StatementExecutor) dropGraph(ctx context.Context, s *ast.DropGraph) (*StatementResult, error) {
	creator, ok := e.log.Provenance(graphDefRef(s.Name))
	if !ok {
		return nil, common.Wrap(common.KindQuery, "drop-graph",
			fmt.Errorf("graph %q does not exist", s.Name))
	}
	tx := txlog.NewTransaction(e.nextTxID("drop-graph"), e.nextHLC(), []txlog.TxRef{creator}, e.author, txlog.Operation{
		Kind:      txlog.OpGraphTransformation,
		InputRefs: []txlog.DefRef{graphDefRef(s.Name)},
		RuleRef:   dropRule,
		OutputRef: txlog.NewDefRef([]string{"graphs", s.Name, "dropped"}, txlog.DefTypeFunction),
	})
	if err := e.log.Append(ctx, tx); err != nil {
		return nil, err
	}

	removed, err := e.clearStore(ctx)
	if err != nil {
		return nil, err
	}
	return &StatementResult{RowsAffected: removed, TxID: tx.TxID}, nil
}

// clearStore deletes every vertex and edge; edges first so no delete
// ever leaves a dangling reference behind.
func (e *StatementExecutor) clearStore(ctx context.Context) (int, error) {
	removed := 0
	edges, err := e.store.ScanEdges(ctx)
	if err != nil {
		return 0, err
	}
	for _, edge := range edges {
		if err := e.store.DeleteEdge(ctx, edge.ID); err != nil {
			return removed, err
		}
		removed++
	}
	vertices, err := e.store.ScanVertices(ctx)
	if err != nil {
		return removed, err
	}
	for _, v := range vertices {
		if err := e.store.DeleteVertex(ctx, v.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func indexDefRef(name string) txlog.DefRef {
	return txlog.NewDefRef([]string{"indexes", name}, txlog.DefTypeType)
}

func (e *StatementExecutor) createIndex(ctx context.Context, s *ast.CreateIndex) (*StatementResult, error) {
	tx := txlog.NewTransaction(e.nextTxID("create-index"), e.nextHLC(), nil, e.author, txlog.Operation{
		Kind:           txlog.OpDefinitionRegistration,
		DefRefValue:    indexDefRef(s.Name),
		DefinitionType: txlog.DefinitionTypeKind,
	})
	if err := e.log.Append(ctx, tx); err != nil {
		return nil, err
	}
	// Index entries themselves are maintained by the store on every
	// write; the statement records the index's declared existence.
	return &StatementResult{CreatedIDs: []string{s.Name}, TxID: tx.TxID}, nil
}

func (e *StatementExecutor) dropIndex(ctx context.Context, s *ast.DropIndex) (*StatementResult, error) {
	creator, ok := e.log.Provenance(indexDefRef(s.Name))
	if !ok {
		return nil, common.Wrap(common.KindQuery, "drop-index",
			fmt.Errorf("index %q does not exist", s.Name))
	}
	tx := txlog.NewTransaction(e.nextTxID("drop-index"), e.nextHLC(), []txlog.TxRef{creator}, e.author, txlog.Operation{
		Kind:      txlog.OpGraphTransformation,
		InputRefs: []txlog.DefRef{indexDefRef(s.Name)},
		RuleRef:   dropRule,
		OutputRef: txlog.NewDefRef([]string{"indexes", s.Name, "dropped"}, txlog.DefTypeFunction),
	})
	if err := e.log.Append(ctx, tx); err != nil {
		return nil, err
	}
	return &StatementResult{TxID: tx.TxID}, nil
}

// insert materializes an INSERT statement's pattern elements. The
// whole statement is one transaction; element failures are collected
// per row while successful elements stay committed.
func (e *StatementExecutor) insert(ctx context.Context, s *ast.InsertStatement) (*StatementResult, error) {
	tx := txlog.NewTransaction(e.nextTxID("insert"), e.nextHLC(), nil, e.author, txlog.Operation{
		Kind:      txlog.OpGraphTransformation,
		InputRefs: []txlog.DefRef{bulkInsertRule},
		RuleRef:   bulkInsertRule,
		OutputRef: txlog.NewDefRef([]string{"inserts", uuid.NewString()}, txlog.DefTypeFunction),
	})
	if err := e.log.Append(ctx, tx); err != nil {
		return nil, err
	}

	result := &StatementResult{TxID: tx.TxID}
	bound := map[string]graph.Vertex{} // variable -> created/referenced vertex

	for _, pattern := range s.Elements {
		e.insertPattern(ctx, pattern, bound, result)
	}
	return result, nil
}

func (e *StatementExecutor) insertPattern(ctx context.Context, pattern *ast.PathPattern, bound map[string]graph.Vertex, result *StatementResult) {
	vertices := make([]graph.Vertex, len(pattern.Nodes))
	for i, node := range pattern.Nodes {
		v, err := e.insertNode(ctx, node, bound)
		if err != nil {
			result.RowErrors = append(result.RowErrors, err.Error())
			return
		}
		vertices[i] = v
		if v.ID != "" && !containsID(result.CreatedIDs, v.ID) {
			result.CreatedIDs = append(result.CreatedIDs, v.ID)
		}
	}
	for i, edge := range pattern.Edges {
		from, to := vertices[i], vertices[i+1]
		if edge.Direction == ast.DirIn {
			from, to = to, from
		}
		ge := graph.Edge{
			Label:      firstLabel(edge.Labels),
			From:       from.ID,
			To:         to.ID,
			Properties: literalProps(edge.Properties),
		}
		ge.ID = ge.CID().String()
		if e.registry != nil {
			if err := e.registry.ValidateEdge(ge, from.Label, to.Label); err != nil {
				result.RowErrors = append(result.RowErrors, err.Error())
				continue
			}
		}
		if err := e.store.PutEdge(ctx, ge); err != nil {
			result.RowErrors = append(result.RowErrors, err.Error())
			continue
		}
		result.RowsAffected++
		result.CreatedIDs = append(result.CreatedIDs, ge.ID)
	}
}

func (e *StatementExecutor) insertNode(ctx context.Context, node *ast.NodePattern, bound map[string]graph.Vertex) (graph.Vertex, error) {
	if node.Variable != "" {
		if v, ok := bound[node.Variable]; ok {
			return v, nil
		}
	}
	v := graph.Vertex{
		Label:      firstLabel(node.Labels),
		Properties: literalProps(node.Properties),
	}
	v.ID = v.CID().String()
	if e.registry != nil {
		if err := e.registry.ValidateVertex(v); err != nil {
			return graph.Vertex{}, err
		}
	}
	if err := e.store.PutVertex(ctx, v); err != nil {
		return graph.Vertex{}, err
	}
	if node.Variable != "" {
		bound[node.Variable] = v
	}
	return v, nil
}

// RegisterSchema registers a schema through the log: one
// DefinitionRegistration transaction, then the registry persists the
// schema under its CID.
func (e *StatementExecutor) RegisterSchema(ctx context.Context, s *schema.GraphSchema) (*StatementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cid, err := e.registry.Register(ctx, s)
	if err != nil {
		return nil, err
	}
	tx := txlog.NewTransaction(e.nextTxID("register-schema"), e.nextHLC(), nil, e.author, txlog.Operation{
		Kind:           txlog.OpDefinitionRegistration,
		DefRefValue:    txlog.NewDefRef([]string{"schemas", cid.String()}, txlog.DefTypeSchema),
		DefinitionType: txlog.DefinitionSchema,
	})
	if err := e.log.Append(ctx, tx); err != nil {
		return nil, err
	}
	return &StatementResult{CreatedIDs: []string{cid.String()}, TxID: tx.TxID}, nil
}

// MigrateSchema appends a SchemaMigration transaction from one
// registered schema CID to another. Both must already be registered;
// the migration rules must have been registered as rule definitions.
func (e *StatementExecutor) MigrateSchema(ctx context.Context, from, to common.CID, rules []txlog.DefRef) (*StatementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fromRef := txlog.NewDefRef([]string{"schemas", from.String()}, txlog.DefTypeSchema)
	toRef := txlog.NewDefRef([]string{"schemas", to.String()}, txlog.DefTypeSchema)
	var parents []txlog.TxRef
	for _, ref := range []txlog.DefRef{fromRef, toRef} {
		producer, ok := e.log.Provenance(ref)
		if !ok {
			return nil, common.Wrap(common.KindSchema, "migrate",
				fmt.Errorf("schema %s is not registered", ref.Path[len(ref.Path)-1]))
		}
		parents = append(parents, producer)
	}
	tx := txlog.NewTransaction(e.nextTxID("migrate-schema"), e.nextHLC(), dedupeRefs(parents), e.author, txlog.Operation{
		Kind:           txlog.OpSchemaMigration,
		FromSchema:     fromRef,
		ToSchema:       toRef,
		MigrationRules: rules,
	})
	if err := e.log.Append(ctx, tx); err != nil {
		return nil, err
	}
	return &StatementResult{TxID: tx.TxID}, nil
}

func dedupeRefs(refs []txlog.TxRef) []txlog.TxRef {
	seen := map[txlog.TxRef]bool{}
	out := refs[:0]
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func firstLabel(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// literalProps folds a pattern's property expressions into concrete
// values. INSERT property maps carry literals only; anything else is
// skipped rather than evaluated, since no row bindings exist yet.
func literalProps(props map[string]ast.Expr) map[string]graph.Value {
	out := make(map[string]graph.Value, len(props))
	for k, expr := range props {
		if lit, ok := expr.(*ast.Literal); ok {
			out[k] = lit.Value
		}
	}
	return out
}
