// Package variable defines the opaque circuit-variable identifier used
// throughout the constraint algebra. Variables carry no
// lifetime tied to a constraint system: they are plain comparable values.
package variable

import "math"

// placeholderID is the sentinel id reserved for Placeholder. Real variables
// are allocated starting at 0, so this is unreachable from a real Allocator.
const placeholderID = math.MaxUint64

// Variable is an opaque, totally ordered circuit-variable identifier.
type Variable struct {
	id uint64
}

// Placeholder is the distinguished sentinel value used to fill unused
// Term.Vars slots.
var Placeholder = Variable{id: placeholderID}

// New wraps a raw id into a Variable. Callers normally obtain Variables
// from an Allocator rather than constructing them directly.
func New(id uint64) Variable { return Variable{id: id} }

// ID returns the raw identifier.
func (v Variable) ID() uint64 { return v.id }

// IsPlaceholder reports whether v is the distinguished placeholder.
func (v Variable) IsPlaceholder() bool { return v.id == placeholderID }

// Equal reports whether v and o identify the same variable.
func (v Variable) Equal(o Variable) bool { return v.id == o.id }

// Less gives the total order used to sort Term.Vars and to break monomial
// ties in the Term ordering.
func (v Variable) Less(o Variable) bool { return v.id < o.id }

// Allocator hands out fresh, sequentially-numbered Variables.
type Allocator struct {
	next uint64
}

// NewAllocator returns an Allocator starting at id 0.
func NewAllocator() *Allocator { return &Allocator{} }

// Fresh returns a new Variable distinct from every previously allocated one.
func (a *Allocator) Fresh() Variable {
	v := Variable{id: a.next}
	a.next++
	return v
}
