package ring

import (
	"fmt"
	"sync"

	"github.com/levelhe/levelhe/utils"
)

// GaloisGen is the generator of the cyclic group of row rotations.
const GaloisGen uint64 = 5

// GaloisTool maps rotation steps to Galois elements of Z_{2N}^* and applies
// the corresponding automorphisms X -> X^galEl to polynomials, in coefficient
// or NTT representation. NTT permutation tables are computed on first use
// and cached.
type GaloisTool struct {
	n    int
	logN int

	mu    sync.RWMutex
	perms map[uint64][]uint32
}

// NewGaloisTool creates a new [GaloisTool] for the ring degree 2^logN.
func NewGaloisTool(logN int) (*GaloisTool, error) {
	if logN < 1 || 1<<logN > PolyModulusDegreeMax {
		return nil, fmt.Errorf("%w: logN out of range", ErrInvalidArgument)
	}
	return &GaloisTool{n: 1 << logN, logN: logN, perms: map[uint64][]uint32{}}, nil
}

// N returns the ring degree.
func (g *GaloisTool) N() int {
	return g.n
}

// IsValidGaloisElt checks that galEl is an odd integer in [1, 2N-1].
func (g *GaloisTool) IsValidGaloisElt(galEl uint64) bool {
	return galEl&1 == 1 && galEl < 2*uint64(g.n)
}

// GetEltFromStep returns the Galois element rotating the rows of a batched
// plaintext by step slots to the left. A step of 0 returns the element
// swapping the two rows (the complex conjugation for CKKS).
func (g *GaloisTool) GetEltFromStep(step int) (uint64, error) {

	n := uint64(g.n)
	m := n << 1
	rowSize := n >> 1

	if step == 0 {
		return m - 1, nil
	}

	if step >= int(rowSize) || -step >= int(rowSize) {
		return 0, fmt.Errorf("%w: step count too large", ErrInvalidArgument)
	}

	var pos uint64
	if step > 0 {
		pos = uint64(step)
	} else {
		pos = rowSize - uint64(-step)
	}

	galEl := uint64(1)
	for i := uint64(0); i < pos; i++ {
		galEl = galEl * GaloisGen & (m - 1)
	}

	return galEl, nil
}

// GetEltsFromSteps calls [GaloisTool.GetEltFromStep] on each step.
func (g *GaloisTool) GetEltsFromSteps(steps []int) (galEls []uint64, err error) {
	galEls = make([]uint64, len(steps))
	for i, step := range steps {
		if galEls[i], err = g.GetEltFromStep(step); err != nil {
			return nil, err
		}
	}
	return
}

// GetEltsAll returns the distinct Galois elements of the rotations by
// +/- 2^i, for 0 <= i < log2(N)-1, followed by the row swap element 2N-1.
// The rotations by +/- N/4 are the same element, which is listed once.
func (g *GaloisTool) GetEltsAll() (galEls []uint64) {

	m := uint64(g.n) << 1
	twoPowerOfGen := GaloisGen

	// the inverse of the generator is 5^{N/2 - 1}
	twoPowerOfGenInv, _ := g.GetEltFromStep(-1)

	galEls = make([]uint64, 0, 2*(g.logN-1))

	for i := 0; i < g.logN-1; i++ {
		galEls = append(galEls, twoPowerOfGen)
		if twoPowerOfGenInv != twoPowerOfGen {
			galEls = append(galEls, twoPowerOfGenInv)
		}
		twoPowerOfGen = twoPowerOfGen * twoPowerOfGen & (m - 1)
		twoPowerOfGenInv = twoPowerOfGenInv * twoPowerOfGenInv & (m - 1)
	}

	return append(galEls, m-1)
}

// ApplyGalois applies X -> X^galEl to the polynomial in in coefficient form
// modulo q and writes the result on out. in and out must not overlap.
func (g *GaloisTool) ApplyGalois(in []uint64, galEl uint64, q Modulus, out []uint64) {

	if !g.IsValidGaloisElt(galEl) {
		panic(fmt.Errorf("invalid galois element %d", galEl))
	}

	mask := uint64(g.n) - 1
	logN := uint(g.logN)

	var index uint64
	for i := uint64(0); i < uint64(g.n); i++ {
		index = i * galEl
		// X^{N} = -1
		if (index>>logN)&1 == 1 {
			out[index&mask] = NegMod(in[i], q.value)
		} else {
			out[index&mask] = in[i]
		}
	}
}

// ApplyGaloisNTT applies X -> X^galEl to the polynomial in in NTT form and
// writes the result on out. in and out must not overlap.
func (g *GaloisTool) ApplyGaloisNTT(in []uint64, galEl uint64, out []uint64) {
	perm := g.permutation(galEl)
	for i, j := range perm {
		out[i] = in[j]
	}
}

// permutation returns the cached NTT index table of galEl.
func (g *GaloisTool) permutation(galEl uint64) []uint32 {

	if !g.IsValidGaloisElt(galEl) {
		panic(fmt.Errorf("invalid galois element %d", galEl))
	}

	g.mu.RLock()
	perm, ok := g.perms[galEl]
	g.mu.RUnlock()

	if ok {
		return perm
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if perm, ok = g.perms[galEl]; ok {
		return perm
	}

	mask := uint64(2*g.n) - 1
	perm = make([]uint32, g.n)
	for i := uint64(0); i < uint64(g.n); i++ {
		reversed := utils.BitReverse64(i, g.logN)
		indexRaw := (galEl * (2*reversed + 1)) & mask
		perm[i] = uint32(utils.BitReverse64((indexRaw-1)>>1, g.logN))
	}

	g.perms[galEl] = perm

	return perm
}
