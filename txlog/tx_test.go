package txlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registrationOp(defType DefType, definitionType DefinitionType) Operation {
	return Operation{
		Kind:           OpDefinitionRegistration,
		DefRefValue:    NewDefRef([]string{"a"}, defType),
		DefinitionType: definitionType,
	}
}

func TestTransaction_ComputeHashIsDeterministic(t *testing.T) {
	tx := NewTransaction("tx1", NewHLC("n1", 1), nil, "alice", registrationOp(DefTypeType, DefinitionTypeKind))
	h1 := tx.ComputeHash()
	h2 := tx.ComputeHash()
	assert.Equal(t, h1, h2)
}

func TestTransaction_VerifyIntegrity_RejectsInvalidHLC(t *testing.T) {
	tx := NewTransaction("tx1", HLC{}, nil, "alice", registrationOp(DefTypeType, DefinitionTypeKind))
	err := tx.VerifyIntegrity()
	assert.ErrorIs(t, err, ErrInvalidHLC)
}

func TestTransaction_VerifyIntegrity_RejectsMismatchedDefType(t *testing.T) {
	tx := NewTransaction("tx1", NewHLC("n1", 1), nil, "alice", registrationOp(DefTypeFunction, DefinitionTypeKind))
	err := tx.VerifyIntegrity()
	assert.Error(t, err)
}

func TestTransaction_VerifySignatures(t *testing.T) {
	tx := NewTransaction("tx1", NewHLC("n1", 1), nil, "alice", registrationOp(DefTypeType, DefinitionTypeKind))
	assert.ErrorIs(t, tx.VerifySignatures(), ErrMissingSignature)

	tx.WithSignature([]byte{})
	assert.ErrorIs(t, tx.VerifySignatures(), ErrInvalidSignature)

	tx.WithSignature([]byte("sig"))
	assert.NoError(t, tx.VerifySignatures())
}

func TestOperation_GraphTransformationRequiresInputs(t *testing.T) {
	op := Operation{
		Kind:      OpGraphTransformation,
		OutputRef: NewDefRef([]string{"f"}, DefTypeFunction),
		RuleRef:   NewDefRef([]string{"r"}, DefTypeRule),
	}
	err := op.verify()
	assert.Error(t, err)

	op.InputRefs = []DefRef{NewDefRef([]string{"x"}, DefTypeType)}
	require.NoError(t, op.verify())
}

func TestOperation_DependenciesAndOutputs(t *testing.T) {
	op := Operation{
		Kind:      OpGraphTransformation,
		InputRefs: []DefRef{NewDefRef([]string{"in"}, DefTypeType)},
		OutputRef: NewDefRef([]string{"out"}, DefTypeFunction),
		RuleRef:   NewDefRef([]string{"r"}, DefTypeRule),
	}
	assert.Len(t, op.Dependencies(), 1)
	assert.Len(t, op.Outputs(), 1)
}

func TestStats_UpdateComputesRunningAverage(t *testing.T) {
	s := NewStats()
	tx := NewTransaction("tx1", NewHLC("n1", 1), nil, "alice", registrationOp(DefTypeType, DefinitionTypeKind))

	s.Update(tx, 100, 0)
	s.Update(tx, 200, 0)

	assert.Equal(t, 2, s.TotalCount)
	assert.Equal(t, 150.0, s.AvgSize)
	assert.Equal(t, 2, s.ByOperation["definition_registration"])
}
