package schema

import "fmt"

// ValidationErrorType classifies a schema consistency failure.
type ValidationErrorType int

const (
	ErrMissingRequiredProperty ValidationErrorType = iota
	ErrInvalidPropertyType
	ErrConstraintViolation
	ErrSchemaNotFound
	ErrTypeMismatch
	ErrInheritanceError
)

// ValidationError is one consistency failure found in a schema.
type ValidationError struct {
	Type      ValidationErrorType
	Message   string
	ElementID string
	Property  string
}

// ValidationResult collects the errors and warnings of one
// validation pass.
type ValidationResult struct {
	IsValid  bool
	Errors   []ValidationError
	Warnings []string
}

// ValidateSchema checks the schema's internal consistency: that every
// edge type's source/target vertex-type references exist, that vertex
// inheritance refers only to known parent types, and that a vertex
// type's required-property list has no duplicates.
func (s *GraphSchema) ValidateSchema() ValidationResult {
	var errs []ValidationError

	for _, et := range s.EdgeTypes {
		for _, sourceType := range et.SourceTypes {
			if !s.HasVertexType(sourceType) {
				errs = append(errs, ValidationError{
					Type:      ErrTypeMismatch,
					Message:   fmt.Sprintf("Edge type '%s' references unknown source vertex type '%s'", et.Name, sourceType),
					ElementID: et.Name,
				})
			}
		}
		for _, targetType := range et.TargetTypes {
			if !s.HasVertexType(targetType) {
				errs = append(errs, ValidationError{
					Type:      ErrTypeMismatch,
					Message:   fmt.Sprintf("Edge type '%s' references unknown target vertex type '%s'", et.Name, targetType),
					ElementID: et.Name,
				})
			}
		}
	}

	for _, vt := range s.VertexTypes {
		for _, parent := range vt.Inherits {
			if !s.HasVertexType(parent) {
				errs = append(errs, ValidationError{
					Type:      ErrInheritanceError,
					Message:   fmt.Sprintf("Vertex type '%s' inherits from unknown type '%s'", vt.Name, parent),
					ElementID: vt.Name,
				})
			}
		}
	}

	for _, vt := range s.VertexTypes {
		seen := make(map[string]bool)
		for _, prop := range vt.RequiredProperties {
			if seen[prop] {
				errs = append(errs, ValidationError{
					Type:      ErrConstraintViolation,
					Message:   fmt.Sprintf("Duplicate required property '%s' in vertex type '%s'", prop, vt.Name),
					ElementID: vt.Name,
					Property:  prop,
				})
			}
			seen[prop] = true
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
