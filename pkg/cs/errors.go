package cs

import "errors"

// These are sentinel values compared with errors.Is, using an
// "errors.New with a package prefix" convention rather than a hierarchy of
// exported error types.
var (
	// ErrDegreeOverflow: symbolic arithmetic produced a term or constraint
	// whose degree exceeds the algebra's limits. For Term.Mul the limit is
	// 4 (sum of operand degrees); for Constraint.Normalize the limit is 2.
	ErrDegreeOverflow = errors.New("cs: constraint degree overflow")

	// ErrConstraintInvariant: a substitution/expression precondition was
	// violated (variable absent, multiplicity > 1, inverse of zero).
	ErrConstraintInvariant = errors.New("cs: constraint invariant violated")
)
