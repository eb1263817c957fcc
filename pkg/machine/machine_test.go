package machine

import "testing"

func TestConstantsForAllVariants(t *testing.T) {
	for _, m := range []Machine{Standard, Reduced, ReducedLog23, ReducedFinal} {
		c := ConstantsFor(m)
		if c.DomainSize == 0 || c.DomainSize&(c.DomainSize-1) != 0 {
			t.Fatalf("%s: domain size %d is not a power of two", m, c.DomainSize)
		}
		if c.CyclesPerChunk != c.DomainSize-1 {
			t.Fatalf("%s: cycles per chunk must be domain_size-1", m)
		}
	}
}

func TestCircuitTypeMainDelegation(t *testing.T) {
	mc := Main(RiscVCycles)
	if _, ok := mc.AsDelegation(); ok {
		t.Fatalf("main circuit type reported as delegation")
	}
	main, ok := mc.AsMain()
	if !ok || main != RiscVCycles {
		t.Fatalf("AsMain round-trip failed")
	}

	dc := Delegation(BigIntWithControl)
	if _, ok := dc.AsMain(); ok {
		t.Fatalf("delegation circuit type reported as main")
	}
}

func TestDelegationCircuitTypeFromU16PanicsOnUnknown(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for unknown delegation type")
		}
	}()
	DelegationCircuitTypeFromU16(9999)
}
