// Package oracle implements the verifier oracle encoder: it serializes a
// layer's proof metadata and proof list into the flat []uint32 stream the
// on-chain/universal verifier circuit consumes. The proof-flattening
// primitives themselves are opaque proof math outside this package's Go
// surface, so this package takes a Proof interface exposing
// already-flattened word slices.
package oracle

import (
	"fmt"

	"github.com/zkriscv/prover/pkg/machine"
)

// LayerKind is the oracle stream's prefix word, identifying which payload
// shape follows.
type LayerKind uint32

const (
	BaseLayer                       LayerKind = 0
	RecursionLayer                  LayerKind = 1
	RiscV                           LayerKind = 3
	CombinedRecursionLayers         LayerKind = 4
	RecursionLog23Layer             LayerKind = 5
	CombinedMultipleRecursionLayers LayerKind = 6
)

// Proof is the already-flattened proof surface the encoder needs: a
// skeleton (optionally shuffle-applied, per the caller's proof-list kind)
// and its queries, each pre-flattened into words. The actual flattening
// math lives in the external proof system.
type Proof interface {
	FlattenSkeleton(applyShuffle bool) []uint32
	FlattenedQueries() [][]uint32
}

// ProofList groups a layer's proofs by kind: at most one of
// BasicProofs/ReducedProofs/ReducedLog23Proofs is populated per the
// metadata's corresponding count, plus delegation proofs keyed by circuit
// type.
type ProofList struct {
	BasicProofs        []Proof
	ReducedProofs      []Proof
	ReducedLog23Proofs []Proof
	DelegationProofs   map[machine.DelegationCircuitType][]Proof
}

// splitTimestamp splits a 64-bit last-access timestamp into its low and
// high 32-bit words.
func splitTimestamp(ts uint64) (low, high uint32) {
	return uint32(ts), uint32(ts >> 32)
}

// EncodeForUniversalVerifier prepends the layer-kind prefix word to
// EncodeMetadataAndProofList's output, selecting BaseLayer/RecursionLayer/
// RecursionLog23Layer from whichever proof count is non-zero.
func EncodeForUniversalVerifier(meta machine.ProofMetadata, proofs ProofList) []uint32 {
	body := EncodeMetadataAndProofList(meta, proofs)

	var prefix LayerKind
	switch {
	case meta.BasicProofCount > 0:
		prefix = BaseLayer
	case meta.ReducedProofCount > 0:
		prefix = RecursionLayer
	case meta.ReducedLog23ProofCount > 0:
		prefix = RecursionLog23Layer
	default:
		panic("oracle: final proofs are no longer supported, use log23 proofs instead")
	}

	out := make([]uint32, 0, len(body)+1)
	out = append(out, uint32(prefix))
	out = append(out, body...)
	return out
}

// EncodeMetadataAndProofList produces the oracle stream for one layer's
// metadata and proof list: 32 registers' (value, ts_low, ts_high), the
// dominant proof kind's count and flattened proofs, each allowed
// delegation type's count and flattened proofs in the machine's fixed
// order, and an optional trailing previous-layer end-parameters output.
func EncodeMetadataAndProofList(meta machine.ProofMetadata, proofs ProofList) []uint32 {
	var out []uint32

	for _, reg := range meta.RegisterValues {
		low, high := splitTimestamp(reg.LastAccessTimestamp)
		out = append(out, reg.Value, low, high)
	}

	var kindProofs []Proof
	var allowedDelegations []uint32
	switch {
	case meta.BasicProofCount > 0:
		if meta.ReducedProofCount != 0 {
			panic("oracle: basic_proof_count and reduced_proof_count are both non-zero")
		}
		out = append(out, uint32(meta.BasicProofCount))
		kindProofs = proofs.BasicProofs
		allowedDelegations = machine.FullMachineAllowedDelegationTypes()
	case meta.ReducedProofCount > 0:
		out = append(out, uint32(meta.ReducedProofCount))
		kindProofs = proofs.ReducedProofs
		allowedDelegations = machine.ReducedMachineAllowedDelegationTypes()
	case meta.ReducedLog23ProofCount > 0:
		out = append(out, uint32(meta.ReducedLog23ProofCount))
		kindProofs = proofs.ReducedLog23Proofs
		allowedDelegations = machine.ReducedMachineAllowedDelegationTypes()
	default:
		panic("oracle: metadata has no proofs of any kind")
	}

	for _, proof := range kindProofs {
		out = append(out, proof.FlattenSkeleton(true)...)
		for _, query := range proof.FlattenedQueries() {
			out = append(out, query...)
		}
	}

	allowedSet := make(map[machine.DelegationCircuitType]struct{}, len(allowedDelegations))
	for _, raw := range allowedDelegations {
		allowedSet[machine.DelegationCircuitTypeFromU16(uint16(raw))] = struct{}{}
	}
	for circuitType := range meta.DelegationProofCount {
		if _, ok := allowedSet[circuitType]; !ok {
			panic(fmt.Sprintf("oracle: no delegation circuit for type %d", circuitType))
		}
	}

	for _, raw := range allowedDelegations {
		circuitType := machine.DelegationCircuitTypeFromU16(uint16(raw))
		delegationProofs := proofs.DelegationProofs[circuitType]
		out = append(out, uint32(len(delegationProofs)))
		for _, proof := range delegationProofs {
			// Delegation proofs are never shuffled.
			out = append(out, proof.FlattenSkeleton(false)...)
			for _, query := range proof.FlattenedQueries() {
				out = append(out, query...)
			}
		}
	}

	if meta.PrevEndParamsOutput != nil {
		out = append(out, meta.PrevEndParamsOutput[:]...)
	}

	return out
}
