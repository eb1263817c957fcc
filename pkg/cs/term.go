package cs

import (
	"fmt"
	"sort"

	"github.com/zkriscv/prover/pkg/field"
	"github.com/zkriscv/prover/pkg/variable"
)

// maxTermDegree is the storage capacity for Term.vars: two degree-2
// factors can transiently multiply to degree 4. Constraint.Normalize rejects anything
// above 2; Term itself tolerates up to 4.
const maxTermDegree = 4

// Term is a single monomial: either a bare field constant, or
// coeff * x_1 * x_2 * ... * x_d for a sorted list of variables. A zero Go
// value has a zero coefficient and evaluates to zero; it is not flagged as
// a constant (IsConstant reports false) until normalization.
type Term struct {
	isConstant bool
	constant   field.Element
	coeff      field.Element
	vars       [maxTermDegree]variable.Variable
	degree     int
}

// ValueSource resolves a Variable to its assigned field value, as consulted
// by Term.Value/Constraint.GetValue.
type ValueSource interface {
	GetValue(v variable.Variable) (field.Element, bool)
}

func newPlaceholderVars() [maxTermDegree]variable.Variable {
	var vs [maxTermDegree]variable.Variable
	for i := range vs {
		vs[i] = variable.Placeholder
	}
	return vs
}

// ConstantTerm builds Constant(c).
func ConstantTerm(c field.Element) Term {
	return Term{isConstant: true, constant: c, vars: newPlaceholderVars()}
}

// VariableTerm builds the monomial 1*v.
func VariableTerm(v variable.Variable) Term {
	t := Term{coeff: field.One(), degree: 1, vars: newPlaceholderVars()}
	t.vars[0] = v
	return t
}

// Normalize enforces the Term invariants: zero coefficient collapses to
// Constant(0); the active var prefix is sorted; slots beyond degree stay
// placeholders.
func (t Term) Normalize() Term {
	if t.isConstant {
		return t
	}
	if t.coeff.IsZero() {
		return ConstantTerm(field.Zero())
	}
	active := t.vars[:t.degree]
	sort.Slice(active, func(i, j int) bool { return active[i].Less(active[j]) })
	for i := t.degree; i < maxTermDegree; i++ {
		t.vars[i] = variable.Placeholder
	}
	return t
}

// Degree returns the term's total degree (0 for constants).
func (t Term) Degree() int {
	if t.isConstant {
		return 0
	}
	return t.degree
}

// IsConstant reports whether t is a bare field constant.
func (t Term) IsConstant() bool { return t.isConstant }

// AsConstant returns the constant value when t.IsConstant(), else false.
func (t Term) AsConstant() (field.Element, bool) {
	if t.isConstant {
		return t.constant, true
	}
	return field.Zero(), false
}

// Coeff returns the monomial coefficient (the constant value itself, for a
// Constant term).
func (t Term) Coeff() field.Element {
	if t.isConstant {
		return t.constant
	}
	return t.coeff
}

// Vars returns the active (non-placeholder) variable prefix.
func (t Term) Vars() []variable.Variable {
	if t.isConstant {
		return nil
	}
	return append([]variable.Variable(nil), t.vars[:t.degree]...)
}

// SameMultiple reports whether t and o are like terms: equal degree and, for
// expressions, equal sorted variable lists.
func (t Term) SameMultiple(o Term) bool {
	if t.isConstant != o.isConstant {
		return false
	}
	if t.isConstant {
		return true
	}
	if t.degree != o.degree {
		return false
	}
	for i := 0; i < t.degree; i++ {
		if !t.vars[i].Equal(o.vars[i]) {
			return false
		}
	}
	return true
}

// Combine folds o's coefficient into t in place and reports true, if t and o
// are like terms; otherwise t is left unchanged and it returns false.
func (t *Term) Combine(o Term) bool {
	if !t.SameMultiple(o) {
		return false
	}
	if t.isConstant {
		t.constant = t.constant.Add(o.constant)
	} else {
		t.coeff = t.coeff.Add(o.coeff)
	}
	return true
}

// Scale multiplies t's coefficient (or constant) by factor.
func (t Term) Scale(factor field.Element) Term {
	if t.isConstant {
		return ConstantTerm(t.constant.Mul(factor))
	}
	t.coeff = t.coeff.Mul(factor)
	return t.Normalize()
}

// ContainsVar reports whether v appears in t.
func (t Term) ContainsVar(v variable.Variable) bool {
	if t.isConstant {
		return false
	}
	for i := 0; i < t.degree; i++ {
		if t.vars[i].Equal(v) {
			return true
		}
	}
	return false
}

// DegreeForVar returns v's multiplicity within t (0 if absent).
func (t Term) DegreeForVar(v variable.Variable) int {
	if t.isConstant {
		return 0
	}
	n := 0
	for i := 0; i < t.degree; i++ {
		if t.vars[i].Equal(v) {
			n++
		}
	}
	return n
}

// GetVariable returns (v, true) iff t is exactly the monomial 1*v.
func (t Term) GetVariable() (variable.Variable, bool) {
	if t.isConstant || t.degree != 1 {
		return variable.Variable{}, false
	}
	if !t.coeff.Equal(field.One()) {
		return variable.Variable{}, false
	}
	return t.vars[0], true
}

// Mul multiplies two terms, producing a single combined-degree term. It
// fails with ErrDegreeOverflow when the sum of degrees exceeds 4; degree 3
// or 4 results are tolerated here and rejected later by
// Constraint.Normalize.
func (t Term) Mul(o Term) (Term, error) {
	td, od := t.Degree(), o.Degree()
	if td+od > maxTermDegree {
		return Term{}, fmt.Errorf("%w: term degrees %d+%d > %d", ErrDegreeOverflow, td, od, maxTermDegree)
	}
	switch {
	case t.isConstant && o.isConstant:
		return ConstantTerm(t.constant.Mul(o.constant)), nil
	case t.isConstant:
		r := o
		r.coeff = o.coeff.Mul(t.constant)
		return r.Normalize(), nil
	case o.isConstant:
		r := t
		r.coeff = t.coeff.Mul(o.constant)
		return r.Normalize(), nil
	default:
		r := Term{coeff: t.coeff.Mul(o.coeff), degree: td + od, vars: newPlaceholderVars()}
		copy(r.vars[0:td], t.vars[0:td])
		copy(r.vars[td:td+od], o.vars[0:od])
		return r.Normalize(), nil
	}
}

// compare implements the total order from degree descending;
// within a degree, constants before expressions; expressions compare by
// sorted vars lexicographically, then by reduced coefficient.
func (t Term) compare(o Term) int {
	td, od := t.Degree(), o.Degree()
	if td != od {
		if td > od {
			return -1
		}
		return 1
	}
	if t.isConstant != o.isConstant {
		if t.isConstant {
			return -1
		}
		return 1
	}
	if t.isConstant {
		return cmpU64(t.constant.AsU64Reduced(), o.constant.AsU64Reduced())
	}
	for i := 0; i < td; i++ {
		if !t.vars[i].Equal(o.vars[i]) {
			if t.vars[i].Less(o.vars[i]) {
				return -1
			}
			return 1
		}
	}
	return cmpU64(t.coeff.AsU64Reduced(), o.coeff.AsU64Reduced())
}

// Less reports whether t sorts before o under the Term total order.
func (t Term) Less(o Term) bool { return t.compare(o) < 0 }

func cmpU64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Value evaluates t against a ValueSource, returning (_, false) if any
// required variable is unassigned.
func (t Term) Value(src ValueSource) (field.Element, bool) {
	if t.isConstant {
		return t.constant, true
	}
	product := t.coeff
	for i := 0; i < t.degree; i++ {
		v, ok := src.GetValue(t.vars[i])
		if !ok {
			return field.Zero(), false
		}
		product = product.Mul(v)
	}
	return product, true
}
