// Package field supplies the concrete prime-field element type the
// constraint algebra and downstream components are built over. Field
// arithmetic itself is treated as assumed/external; this package is the one
// concrete realization every other package imports, backed by
// gnark-crypto's bn254 scalar field rather than a hand-rolled big.Int
// wrapper.
package field

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrInverseOfZero is returned by Inverse when called on the zero element.
var ErrInverseOfZero = errors.New("field: inverse of zero")

// Element is a single prime-field value. The zero Go value is the field's
// zero element.
type Element struct {
	v fr.Element
}

// Zero returns the additive identity.
func Zero() Element { return Element{} }

// One returns the multiplicative identity.
func One() Element {
	var e Element
	e.v.SetOne()
	return e
}

// FromUint64 lifts a u64 into the field.
func FromUint64(val uint64) Element {
	var e Element
	e.v.SetUint64(val)
	return e
}

// Add returns e + o.
func (e Element) Add(o Element) Element {
	var r Element
	r.v.Add(&e.v, &o.v)
	return r
}

// Sub returns e - o.
func (e Element) Sub(o Element) Element {
	var r Element
	r.v.Sub(&e.v, &o.v)
	return r
}

// Mul returns e * o.
func (e Element) Mul(o Element) Element {
	var r Element
	r.v.Mul(&e.v, &o.v)
	return r
}

// Neg returns -e.
func (e Element) Neg() Element {
	var r Element
	r.v.Neg(&e.v)
	return r
}

// Inverse returns e^-1, or ErrInverseOfZero if e is zero.
func (e Element) Inverse() (Element, error) {
	if e.IsZero() {
		return Element{}, ErrInverseOfZero
	}
	var r Element
	r.v.Inverse(&e.v)
	return r, nil
}

// IsZero reports whether e is the additive identity.
func (e Element) IsZero() bool { return e.v.IsZero() }

// Equal reports whether e and o hold the same value.
func (e Element) Equal(o Element) bool { return e.v.Equal(&o.v) }

// AsU64Reduced returns a u64 derived from e's canonical (non-Montgomery)
// representation. It is used only for deterministic total ordering of
// Terms, never as a value-preserving reduction.
func (e Element) AsU64Reduced() uint64 {
	var bi big.Int
	e.v.BigInt(&bi)
	return bi.Uint64()
}

// String renders the element's decimal representation.
func (e Element) String() string { return e.v.String() }
