package txlog

import (
	"fmt"
	"time"

	"kotobadb.dev/kotobadb/common"
)

// TxRef is a transaction's content address: the hex CID of its
// canonical encoding, used as the key under storage's TX: prefix.
type TxRef string

// DefType names the kind of definition a DefRef points at.
type DefType int

const (
	DefTypeFunction DefType = iota
	DefTypeType
	DefTypeRule
	DefTypeStrategy
	DefTypeSchema
)

func (t DefType) String() string {
	switch t {
	case DefTypeFunction:
		return "function"
	case DefTypeType:
		return "type"
	case DefTypeRule:
		return "rule"
	case DefTypeStrategy:
		return "strategy"
	case DefTypeSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// DefRef references a content-addressed definition (a function, type,
// rule, strategy, or schema) by its path segments and declared type.
type DefRef struct {
	Path    []string
	DefType DefType
}

func NewDefRef(path []string, defType DefType) DefRef {
	return DefRef{Path: append([]string(nil), path...), DefType: defType}
}

func (d DefRef) Equal(other DefRef) bool {
	if d.DefType != other.DefType || len(d.Path) != len(other.Path) {
		return false
	}
	for i := range d.Path {
		if d.Path[i] != other.Path[i] {
			return false
		}
	}
	return true
}

// DefinitionType is the declared-type discriminant used by
// DefinitionRegistration operations, independent from DefType so a
// mismatch between the two can be detected as an integrity error.
type DefinitionType int

const (
	DefinitionFunction DefinitionType = iota
	DefinitionTypeKind
	DefinitionRule
	DefinitionStrategy
	DefinitionSchema
)

func (d DefinitionType) expectedDefType() DefType {
	switch d {
	case DefinitionFunction:
		return DefTypeFunction
	case DefinitionTypeKind:
		return DefTypeType
	case DefinitionRule:
		return DefTypeRule
	case DefinitionStrategy:
		return DefTypeStrategy
	case DefinitionSchema:
		return DefTypeSchema
	default:
		return DefTypeType
	}
}

// OperationKind discriminates the Operation sum type's four variants.
type OperationKind int

const (
	OpGraphTransformation OperationKind = iota
	OpSchemaMigration
	OpDefinitionRegistration
	OpWitnessValidation
)

// Operation is the closed sum of transaction payloads. Only the
// fields relevant to Kind are populated; dispatch switches on Kind
// exhaustively.
type Operation struct {
	Kind OperationKind

	// OpGraphTransformation
	InputRefs   []DefRef
	OutputRef   DefRef
	RuleRef     DefRef
	StrategyRef *DefRef

	// OpSchemaMigration
	FromSchema     DefRef
	ToSchema       DefRef
	MigrationRules []DefRef

	// OpDefinitionRegistration
	DefRefValue    DefRef
	DefinitionType DefinitionType

	// OpWitnessValidation
	WitnessRefs      []DefRef
	ValidationResult bool
}

func (op Operation) OperationType() string {
	switch op.Kind {
	case OpGraphTransformation:
		return "graph_transformation"
	case OpSchemaMigration:
		return "schema_migration"
	case OpDefinitionRegistration:
		return "definition_registration"
	case OpWitnessValidation:
		return "witness_validation"
	default:
		return "unknown"
	}
}

func (op Operation) IsReadOnly() bool { return op.Kind == OpWitnessValidation }

func (op Operation) EstimatedCost() float64 {
	switch op.Kind {
	case OpGraphTransformation:
		return 10.0
	case OpSchemaMigration:
		return 5.0 + float64(len(op.MigrationRules))*2.0
	case OpDefinitionRegistration:
		return 1.0
	case OpWitnessValidation:
		return float64(len(op.WitnessRefs)) * 0.5
	default:
		return 0
	}
}

// Dependencies returns the DefRefs this operation reads.
func (op Operation) Dependencies() []DefRef {
	switch op.Kind {
	case OpGraphTransformation:
		return op.InputRefs
	case OpSchemaMigration:
		deps := append([]DefRef{op.FromSchema, op.ToSchema}, op.MigrationRules...)
		return deps
	case OpDefinitionRegistration:
		return nil
	case OpWitnessValidation:
		return op.WitnessRefs
	default:
		return nil
	}
}

// Outputs returns the DefRefs this operation produces.
func (op Operation) Outputs() []DefRef {
	switch op.Kind {
	case OpGraphTransformation:
		return []DefRef{op.OutputRef}
	case OpSchemaMigration:
		return []DefRef{op.ToSchema}
	case OpDefinitionRegistration:
		return []DefRef{op.DefRefValue}
	case OpWitnessValidation:
		return nil
	default:
		return nil
	}
}

// verify checks operation-specific integrity constraints.
func (op Operation) verify() error {
	switch op.Kind {
	case OpGraphTransformation:
		if len(op.InputRefs) == 0 {
			return fmt.Errorf("graph transformation must have at least one input")
		}
		if op.OutputRef.DefType != DefTypeFunction {
			return fmt.Errorf("graph transformation output must be a function")
		}
		if op.RuleRef.DefType != DefTypeRule {
			return fmt.Errorf("graph transformation rule must be a rule")
		}
		if op.StrategyRef != nil && op.StrategyRef.DefType != DefTypeStrategy {
			return fmt.Errorf("graph transformation strategy must be a strategy")
		}
	case OpSchemaMigration:
		if op.FromSchema.DefType != DefTypeSchema {
			return fmt.Errorf("migration source must be a schema")
		}
		if op.ToSchema.DefType != DefTypeSchema {
			return fmt.Errorf("migration target must be a schema")
		}
		for _, r := range op.MigrationRules {
			if r.DefType != DefTypeRule {
				return fmt.Errorf("migration rules must be rules")
			}
		}
	case OpDefinitionRegistration:
		expected := op.DefinitionType.expectedDefType()
		if op.DefRefValue.DefType != expected {
			return fmt.Errorf("def ref type %s does not match declared type %s", op.DefRefValue.DefType, expected)
		}
	case OpWitnessValidation:
		if len(op.WitnessRefs) == 0 {
			return fmt.Errorf("witness validation must have witnesses")
		}
		if !op.ValidationResult {
			return fmt.Errorf("witness validation failed")
		}
	}
	return nil
}

// Transaction is a single, content-addressed log entry.
type Transaction struct {
	TxID      TxRef
	HLC       HLC
	Parents   []TxRef
	Author    string
	Signature []byte
	Operation Operation
	Witnesses []DefRef
	Metadata  map[string]string

	hash *common.CID
}

// NewTransaction builds a transaction with no signature/witnesses/metadata set.
func NewTransaction(txID TxRef, hlc HLC, parents []TxRef, author string, op Operation) *Transaction {
	return &Transaction{
		TxID:      txID,
		HLC:       hlc,
		Parents:   parents,
		Author:    author,
		Operation: op,
		Metadata:  make(map[string]string),
	}
}

func (t *Transaction) WithSignature(sig []byte) *Transaction { t.Signature = sig; return t }
func (t *Transaction) WithWitnesses(w []DefRef) *Transaction { t.Witnesses = w; return t }
func (t *Transaction) WithMetadata(k, v string) *Transaction { t.Metadata[k] = v; return t }

// ComputeHash hashes the transaction's canonical encoding, ignoring
// the memoized hash field itself to avoid a self-referential digest.
func (t *Transaction) ComputeHash() common.CID {
	enc := common.NewEncoder()
	enc.String(string(t.TxID))
	enc.Uint64(t.HLC.Physical)
	enc.Uint64(uint64(t.HLC.Logical))
	enc.String(t.HLC.NodeID)
	for _, p := range t.Parents {
		enc.String(string(p))
	}
	enc.String(t.Author)
	enc.ByteString(t.Signature)
	enc.String(t.Operation.OperationType())
	enc.StringMap(t.Metadata)
	return enc.CID()
}

// Hash returns the memoized hash, computing and caching it on first call.
func (t *Transaction) Hash() common.CID {
	if t.hash == nil {
		h := t.ComputeHash()
		t.hash = &h
	}
	return *t.hash
}

// VerifySignatures requires a non-empty signature to be present.
func (t *Transaction) VerifySignatures() error {
	if t.Signature == nil {
		return ErrMissingSignature
	}
	if len(t.Signature) == 0 {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyIntegrity runs the full per-transaction integrity check:
// valid HLC, signature (if present), and operation-specific rules.
func (t *Transaction) VerifyIntegrity() error {
	if !t.HLC.IsValid() {
		return ErrInvalidHLC
	}
	if t.Signature != nil {
		if err := t.VerifySignatures(); err != nil {
			return err
		}
	}
	return t.Operation.verify()
}

func (t *Transaction) Dependencies() []DefRef { return t.Operation.Dependencies() }
func (t *Transaction) Outputs() []DefRef      { return t.Operation.Outputs() }

func (t *Transaction) Affects(ref DefRef) bool {
	for _, d := range t.Dependencies() {
		if d.Equal(ref) {
			return true
		}
	}
	for _, o := range t.Outputs() {
		if o.Equal(ref) {
			return true
		}
	}
	return false
}

// Summary is a compact view of a transaction for listings and logs.
type Summary struct {
	TxID             TxRef
	Author           string
	OperationType    string
	Timestamp        uint64
	ParentCount      int
	SignaturePresent bool
	WitnessCount     int
}

func (t *Transaction) Summary() Summary {
	return Summary{
		TxID:             t.TxID,
		Author:           t.Author,
		OperationType:    t.Operation.OperationType(),
		Timestamp:        t.HLC.Physical,
		ParentCount:      len(t.Parents),
		SignaturePresent: t.Signature != nil,
		WitnessCount:     len(t.Witnesses),
	}
}

// Stats accumulates running aggregates over applied transactions.
type Stats struct {
	TotalCount            int
	ByOperation           map[string]int
	AvgSize               float64
	ValidationFailureRate float64
	AvgProcessingTime     time.Duration
}

func NewStats() *Stats {
	return &Stats{ByOperation: make(map[string]int)}
}

func (s *Stats) Update(t *Transaction, size int, processingTime time.Duration) {
	prevCount := s.TotalCount
	s.TotalCount++
	s.ByOperation[t.Operation.OperationType()]++
	s.AvgSize = (s.AvgSize*float64(prevCount) + float64(size)) / float64(s.TotalCount)
	s.AvgProcessingTime = time.Duration((int64(s.AvgProcessingTime)*int64(prevCount) + int64(processingTime)) / int64(s.TotalCount))
}
