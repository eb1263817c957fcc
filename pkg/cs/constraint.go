// Package cs implements the constraint algebra engine: Term and Constraint,
// symbolic polynomials over a prime field limited to degree 2 after
// normalization.
package cs

import (
	"fmt"
	"sort"

	"github.com/zkriscv/prover/pkg/field"
	"github.com/zkriscv/prover/pkg/variable"
)

// Constraint is a normalized polynomial of degree ≤ 2: an ordered sequence
// of Terms, no two of which are like terms, none with a zero coefficient.
// The zero Go value is the all-zero constraint (empty sequence).
type Constraint struct {
	terms []Term
}

// Num is a constant-or-variable wrapper used when a caller needs to pass
// either a fixed field constant or a live variable into the same slot.
type Num struct {
	isVar bool
	v     variable.Variable
	c     field.Element
}

// NumFromVariable wraps a Variable as a Num.
func NumFromVariable(v variable.Variable) Num { return Num{isVar: true, v: v} }

// NumFromConstant wraps a field constant as a Num.
func NumFromConstant(c field.Element) Num { return Num{c: c} }

// normalizeTerms normalizes every term, sorts by the Term total order, folds
// like terms together, drops zero-coefficient terms, and enforces the
// degree invariants.
func normalizeTerms(terms []Term) ([]Term, error) {
	normed := make([]Term, len(terms))
	initialDegree := 0
	for i, t := range terms {
		nt := t.Normalize()
		normed[i] = nt
		if d := nt.Degree(); d > initialDegree {
			initialDegree = d
		}
	}
	sort.SliceStable(normed, func(i, j int) bool { return normed[i].Less(normed[j]) })

	combined := make([]Term, 0, len(normed))
	for _, t := range normed {
		if n := len(combined); n > 0 && combined[n-1].Combine(t) {
			continue
		}
		combined = append(combined, t)
	}

	filtered := combined[:0]
	finalDegree := 0
	for _, t := range combined {
		if t.IsConstant() {
			if c, _ := t.AsConstant(); c.IsZero() {
				continue
			}
		} else if t.Coeff().IsZero() {
			continue
		}
		filtered = append(filtered, t)
		if d := t.Degree(); d > finalDegree {
			finalDegree = d
		}
	}

	if finalDegree > 2 {
		return nil, fmt.Errorf("%w: final degree %d", ErrDegreeOverflow, finalDegree)
	}
	if finalDegree > initialDegree {
		panic(fmt.Sprintf("cs: normalize increased degree %d -> %d, internal invariant violated", initialDegree, finalDegree))
	}
	return filtered, nil
}

// FromTerm builds a Constraint from a single term.
func FromTerm(t Term) (Constraint, error) {
	terms, err := normalizeTerms([]Term{t})
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{terms: terms}, nil
}

// FromVariable builds the Constraint "1*v". Cannot fail: a single linear
// term is always within the degree bound.
func FromVariable(v variable.Variable) Constraint {
	c, _ := FromTerm(VariableTerm(v))
	return c
}

// FromConstant builds a constant Constraint.
func FromConstant(c field.Element) Constraint {
	if c.IsZero() {
		return Constraint{}
	}
	return Constraint{terms: []Term{ConstantTerm(c)}}
}

// FromBool builds the constant 0 or 1.
func FromBool(b bool) Constraint {
	if b {
		return FromConstant(field.One())
	}
	return Constraint{}
}

// FromUint64 builds a constant Constraint from a raw u64.
func FromUint64(u uint64) Constraint { return FromConstant(field.FromUint64(u)) }

// FromNum builds a Constraint from a Num.
func FromNum(n Num) Constraint {
	if n.isVar {
		return FromVariable(n.v)
	}
	return FromConstant(n.c)
}

// Normalize re-normalizes c. It is idempotent: normalizing an already
// normalized constraint returns an equal one.
func (c Constraint) Normalize() (Constraint, error) {
	terms, err := normalizeTerms(c.terms)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{terms: terms}, nil
}

// Add returns c + o, normalized.
func (c Constraint) Add(o Constraint) (Constraint, error) {
	combined := make([]Term, 0, len(c.terms)+len(o.terms))
	combined = append(combined, c.terms...)
	combined = append(combined, o.terms...)
	terms, err := normalizeTerms(combined)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{terms: terms}, nil
}

// Sub returns c - o, normalized.
func (c Constraint) Sub(o Constraint) (Constraint, error) {
	negOne := field.One().Neg()
	negated := make([]Term, len(o.terms))
	for i, t := range o.terms {
		negated[i] = t.Scale(negOne)
	}
	combined := make([]Term, 0, len(c.terms)+len(negated))
	combined = append(combined, c.terms...)
	combined = append(combined, negated...)
	terms, err := normalizeTerms(combined)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{terms: terms}, nil
}

// Mul returns c * o, distributing term-by-term and normalizing. Fails with
// ErrDegreeOverflow if the product's degree exceeds 2.
func (c Constraint) Mul(o Constraint) (Constraint, error) {
	products := make([]Term, 0, len(c.terms)*len(o.terms))
	for _, a := range c.terms {
		for _, b := range o.terms {
			p, err := a.Mul(b)
			if err != nil {
				return Constraint{}, err
			}
			products = append(products, p)
		}
	}
	terms, err := normalizeTerms(products)
	if err != nil {
		return Constraint{}, err
	}
	return Constraint{terms: terms}, nil
}

// Scale multiplies every term's coefficient by factor. Never raises the
// constraint's degree, so it cannot fail.
func (c Constraint) Scale(factor field.Element) Constraint {
	scaled := make([]Term, len(c.terms))
	for i, t := range c.terms {
		scaled[i] = t.Scale(factor)
	}
	terms, err := normalizeTerms(scaled)
	if err != nil {
		panic(fmt.Sprintf("cs: Scale raised degree unexpectedly: %v", err))
	}
	return Constraint{terms: terms}
}

// Degree returns the constraint's maximum term degree (0 if empty).
func (c Constraint) Degree() int {
	d := 0
	for _, t := range c.terms {
		if td := t.Degree(); td > d {
			d = td
		}
	}
	return d
}

// IsZero reports whether c is the all-zero constraint.
func (c Constraint) IsZero() bool { return len(c.terms) == 0 }

// Terms returns a defensive copy of c's normalized term sequence.
func (c Constraint) Terms() []Term { return append([]Term(nil), c.terms...) }

// AsConstant returns c's value when c is a bare constant (including zero).
func (c Constraint) AsConstant() (field.Element, bool) {
	switch len(c.terms) {
	case 0:
		return field.Zero(), true
	case 1:
		return c.terms[0].AsConstant()
	default:
		return field.Zero(), false
	}
}

// AsTerm returns c as a single Term when c has at most one term.
func (c Constraint) AsTerm() (Term, bool) {
	switch len(c.terms) {
	case 0:
		return ConstantTerm(field.Zero()), true
	case 1:
		return c.terms[0], true
	default:
		return Term{}, false
	}
}

// QuadTerm is a quadratic monomial coeff*A*B (A may equal B, i.e. coeff*A^2).
type QuadTerm struct {
	Coeff field.Element
	A, B  variable.Variable
}

// LinTerm is a linear monomial coeff*V.
type LinTerm struct {
	Coeff field.Element
	V     variable.Variable
}

// SplitMaxQuadratic splits a normalized constraint into its quadratic
// terms, linear terms, and constant term. It panics if a non-quadratic
// shape (degree > 2) appears, or if more than one constant term is seen —
// both indicate the constraint was not actually normalized.
func (c Constraint) SplitMaxQuadratic() ([]QuadTerm, []LinTerm, field.Element) {
	var quad []QuadTerm
	var lin []LinTerm
	constant := field.Zero()
	haveConstant := false
	for _, t := range c.terms {
		switch t.Degree() {
		case 0:
			if haveConstant {
				panic("cs: split_max_quadratic: more than one constant term")
			}
			v, _ := t.AsConstant()
			constant = v
			haveConstant = true
		case 1:
			lin = append(lin, LinTerm{Coeff: t.coeff, V: t.vars[0]})
		case 2:
			quad = append(quad, QuadTerm{Coeff: t.coeff, A: t.vars[0], B: t.vars[1]})
		default:
			panic(fmt.Sprintf("cs: split_max_quadratic: non-quadratic term of degree %d", t.Degree()))
		}
	}
	return quad, lin, constant
}

// ExpressVariable requires that v appears in exactly one term of c, and
// that that term is the pure linear monomial a*v. It returns the constraint
// -a^-1 * rest such that v equals it under the original constraint c == 0.
func (c Constraint) ExpressVariable(v variable.Variable) (Constraint, error) {
	idx := -1
	for i, t := range c.terms {
		if t.ContainsVar(v) {
			if idx != -1 {
				return Constraint{}, fmt.Errorf("%w: express_variable: variable present in more than one term", ErrConstraintInvariant)
			}
			idx = i
		}
	}
	if idx == -1 {
		return Constraint{}, fmt.Errorf("%w: express_variable: variable not present", ErrConstraintInvariant)
	}
	t := c.terms[idx]
	if t.Degree() != 1 || t.DegreeForVar(v) != 1 {
		return Constraint{}, fmt.Errorf("%w: express_variable: variable not linear in its term", ErrConstraintInvariant)
	}
	aInv, err := t.coeff.Inverse()
	if err != nil {
		return Constraint{}, fmt.Errorf("%w: express_variable: %v", ErrConstraintInvariant, err)
	}
	rest := make([]Term, 0, len(c.terms)-1)
	for i, ot := range c.terms {
		if i != idx {
			rest = append(rest, ot)
		}
	}
	return Constraint{terms: rest}.Scale(aInv.Neg()), nil
}

// SubstituteVariable replaces every occurrence of v in c by expr. A linear
// occurrence coeff*v contributes coeff*expr; a quadratic cross occurrence
// coeff*v*other contributes coeff*other*expr; a pure square occurrence
// coeff*v*v contributes coeff*expr*expr (see DESIGN.md for why this goes
// beyond a strict "multiplicity exactly 1 per term" precondition: it's
// needed to support (x+1)^2-style substitutions). The result is normalized;
// degree is asserted to stay ≤ 2 throughout (via Add/Mul's own
// normalization).
func (c Constraint) SubstituteVariable(v variable.Variable, expr Constraint) (Constraint, error) {
	acc := Constraint{}
	var err error
	for _, t := range c.terms {
		if !t.ContainsVar(v) {
			acc, err = acc.Add(Constraint{terms: []Term{t}})
			if err != nil {
				return Constraint{}, err
			}
			continue
		}
		switch t.Degree() {
		case 1:
			acc, err = acc.Add(expr.Scale(t.coeff))
			if err != nil {
				return Constraint{}, err
			}
		case 2:
			if t.DegreeForVar(v) == 2 {
				sq, mErr := expr.Mul(expr)
				if mErr != nil {
					return Constraint{}, mErr
				}
				acc, err = acc.Add(sq.Scale(t.coeff))
				if err != nil {
					return Constraint{}, err
				}
				continue
			}
			var other variable.Variable
			if t.vars[0].Equal(v) {
				other = t.vars[1]
			} else {
				other = t.vars[0]
			}
			otherLinear := FromVariable(other).Scale(t.coeff)
			contribution, mErr := otherLinear.Mul(expr)
			if mErr != nil {
				return Constraint{}, mErr
			}
			acc, err = acc.Add(contribution)
			if err != nil {
				return Constraint{}, err
			}
		default:
			return Constraint{}, fmt.Errorf("%w: substitute_variable: unexpected degree %d term containing variable", ErrConstraintInvariant, t.Degree())
		}
	}
	return acc, nil
}

// GetValue evaluates c against src, returning (_, false) if any variable
// the constraint depends on is unassigned.
func (c Constraint) GetValue(src ValueSource) (field.Element, bool) {
	sum := field.Zero()
	for _, t := range c.terms {
		v, ok := t.Value(src)
		if !ok {
			return field.Zero(), false
		}
		sum = sum.Add(v)
	}
	return sum, true
}
