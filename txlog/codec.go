package txlog

import "encoding/json"

// wireTransaction is the JSON-on-the-wire form persisted to storage.
// Not used for content-addressing (Transaction.ComputeHash uses the
// canonical encoder directly), only for durable round-tripping.
type wireTransaction struct {
	TxID      TxRef             `json:"tx_id"`
	HLC       HLC               `json:"hlc"`
	Parents   []TxRef           `json:"parents"`
	Author    string            `json:"author"`
	Signature []byte            `json:"signature,omitempty"`
	Operation wireOperation     `json:"operation"`
	Witnesses []DefRef          `json:"witnesses,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type wireOperation struct {
	Kind             OperationKind  `json:"kind"`
	InputRefs        []DefRef       `json:"input_refs,omitempty"`
	OutputRef        DefRef         `json:"output_ref,omitempty"`
	RuleRef          DefRef         `json:"rule_ref,omitempty"`
	StrategyRef      *DefRef        `json:"strategy_ref,omitempty"`
	FromSchema       DefRef         `json:"from_schema,omitempty"`
	ToSchema         DefRef         `json:"to_schema,omitempty"`
	MigrationRules   []DefRef       `json:"migration_rules,omitempty"`
	DefRefValue      DefRef         `json:"def_ref,omitempty"`
	DefinitionType   DefinitionType `json:"definition_type,omitempty"`
	WitnessRefs      []DefRef       `json:"witness_refs,omitempty"`
	ValidationResult bool           `json:"validation_result,omitempty"`
}

func encodeTransaction(t *Transaction) ([]byte, error) {
	w := wireTransaction{
		TxID: t.TxID, HLC: t.HLC, Parents: t.Parents, Author: t.Author,
		Signature: t.Signature, Witnesses: t.Witnesses, Metadata: t.Metadata,
		Operation: wireOperation{
			Kind: t.Operation.Kind, InputRefs: t.Operation.InputRefs,
			OutputRef: t.Operation.OutputRef, RuleRef: t.Operation.RuleRef,
			StrategyRef: t.Operation.StrategyRef, FromSchema: t.Operation.FromSchema,
			ToSchema: t.Operation.ToSchema, MigrationRules: t.Operation.MigrationRules,
			DefRefValue: t.Operation.DefRefValue, DefinitionType: t.Operation.DefinitionType,
			WitnessRefs: t.Operation.WitnessRefs, ValidationResult: t.Operation.ValidationResult,
		},
	}
	return json.Marshal(w)
}

func decodeTransaction(data []byte) (*Transaction, error) {
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	tx := &Transaction{
		TxID: w.TxID, HLC: w.HLC, Parents: w.Parents, Author: w.Author,
		Signature: w.Signature, Witnesses: w.Witnesses, Metadata: w.Metadata,
		Operation: Operation{
			Kind: w.Operation.Kind, InputRefs: w.Operation.InputRefs,
			OutputRef: w.Operation.OutputRef, RuleRef: w.Operation.RuleRef,
			StrategyRef: w.Operation.StrategyRef, FromSchema: w.Operation.FromSchema,
			ToSchema: w.Operation.ToSchema, MigrationRules: w.Operation.MigrationRules,
			DefRefValue: w.Operation.DefRefValue, DefinitionType: w.Operation.DefinitionType,
			WitnessRefs: w.Operation.WitnessRefs, ValidationResult: w.Operation.ValidationResult,
		},
	}
	if tx.Metadata == nil {
		tx.Metadata = make(map[string]string)
	}
	return tx, nil
}

// EncodeTransaction renders a transaction in the persisted wire form,
// the payload replication ships between nodes.
func EncodeTransaction(t *Transaction) ([]byte, error) { return encodeTransaction(t) }

// DecodeTransaction parses the persisted wire form back into a
// transaction.
func DecodeTransaction(data []byte) (*Transaction, error) { return decodeTransaction(data) }
