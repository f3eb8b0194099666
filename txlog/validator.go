package txlog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationRules configures Validator's leniency.
type ValidationRules struct {
	RequireSignatures bool
	MaxMetadataSize   int
	AllowUnsigned     bool
}

func DefaultValidationRules() ValidationRules {
	return ValidationRules{RequireSignatures: true, MaxMetadataSize: 1024 * 1024, AllowUnsigned: false}
}

// ValidationResult reports independent errors (hard failures) and
// warnings (soft, non-blocking observations).
type ValidationResult struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

// Validator runs pre-append sanity checks distinct from Log.Append's
// own protocol — intended for a staging area (e.g. the Pool) to
// surface problems before a transaction is even attempted.
type Validator struct {
	Rules ValidationRules
}

func NewValidator() *Validator {
	return &Validator{Rules: DefaultValidationRules()}
}

func (v *Validator) Validate(tx *Transaction) (ValidationResult, error) {
	var errs, warnings []string

	if !tx.HLC.IsValid() {
		errs = append(errs, "Invalid HLC timestamp")
	}

	if len(tx.Parents) == 0 && !strings.HasPrefix(string(tx.TxID), "genesis") {
		warnings = append(warnings, "Transaction has no parents")
	}

	if err := tx.Operation.verify(); err != nil {
		errs = append(errs, fmt.Sprintf("Operation validation failed: %s", err))
	}

	if tx.Signature == nil {
		warnings = append(warnings, "Transaction is not signed")
	}

	metaJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return ValidationResult{}, err
	}
	if len(metaJSON) > v.Rules.MaxMetadataSize {
		warnings = append(warnings, "Transaction metadata is very large")
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs, Warnings: warnings}, nil
}
