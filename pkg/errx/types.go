package errx

// Type categorizes an error along the domain's failure taxonomy.
type Type string

const (
	// TypeInternal represents infrastructure or programmer defects
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents structurally invalid input
	TypeValidation Type = "VALIDATION"

	// TypeAuthorization represents authentication/authorization failures
	TypeAuthorization Type = "AUTHORIZATION"

	// TypeNotFound represents resource not found failures
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents resource conflicts
	TypeConflict Type = "CONFLICT"

	// TypeBusiness represents expected business-rule violations
	TypeBusiness Type = "BUSINESS"

	// TypeExternal represents failures of external collaborators
	TypeExternal Type = "EXTERNAL"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}

// IsViolation reports whether the type describes an expected business
// outcome rather than a defect or collaborator failure.
func (t Type) IsViolation() bool {
	switch t {
	case TypeValidation, TypeAuthorization, TypeNotFound, TypeConflict, TypeBusiness:
		return true
	default:
		return false
	}
}
