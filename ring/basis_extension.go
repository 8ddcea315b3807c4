package ring

import (
	"fmt"
	"math"
	"math/big"

	"github.com/levelhe/levelhe/utils"
)

// RNSBase is an ordered set of pairwise coprime moduli together with the
// constants needed to compose and decompose integers in the residue number system.
type RNSBase struct {
	moduli []Modulus

	prod *big.Int

	// prod / moduli[i]
	puncturedProd []*big.Int

	// (prod / moduli[i])^-1 mod moduli[i]
	invPuncturedProdModBase []MulOperand
}

// NewRNSBase creates the [RNSBase] of the given moduli.
// The moduli must be non-zero and pairwise coprime.
func NewRNSBase(moduli []Modulus) (base *RNSBase, err error) {

	if len(moduli) == 0 {
		return nil, fmt.Errorf("%w: rns base cannot be empty", ErrInvalidArgument)
	}

	for i := range moduli {
		if moduli[i].IsZero() {
			return nil, fmt.Errorf("%w: rns base contains a zero modulus", ErrInvalidArgument)
		}
		for j := 0; j < i; j++ {
			if utils.GCD(moduli[i].value, moduli[j].value) > 1 {
				return nil, fmt.Errorf("%w: rns base contains non-coprime moduli %d and %d", ErrInvalidArgument, moduli[j].value, moduli[i].value)
			}
		}
	}

	base = &RNSBase{moduli: append([]Modulus(nil), moduli...)}

	base.prod = big.NewInt(1)
	for _, m := range moduli {
		base.prod.Mul(base.prod, new(big.Int).SetUint64(m.value))
	}

	base.puncturedProd = make([]*big.Int, len(moduli))
	base.invPuncturedProdModBase = make([]MulOperand, len(moduli))

	tmp := new(big.Int)
	for i, m := range moduli {
		qi := new(big.Int).SetUint64(m.value)
		base.puncturedProd[i] = new(big.Int).Quo(base.prod, qi)
		inv, ok := ModInverse(tmp.Mod(base.puncturedProd[i], qi).Uint64(), m.value)
		if !ok {
			return nil, fmt.Errorf("%w: rns base is not coprime", ErrInvalidArgument)
		}
		base.invPuncturedProdModBase[i] = NewMulOperand(inv, m)
	}

	return
}

// Size returns the number of moduli of the base.
func (b *RNSBase) Size() int {
	return len(b.moduli)
}

// At returns the i-th modulus of the base.
func (b *RNSBase) At(i int) Modulus {
	return b.moduli[i]
}

// Moduli returns a copy of the moduli of the base.
func (b *RNSBase) Moduli() []Modulus {
	return append([]Modulus(nil), b.moduli...)
}

// Prod returns the product of the moduli of the base.
func (b *RNSBase) Prod() *big.Int {
	return new(big.Int).Set(b.prod)
}

// PuncturedProd returns the product of all moduli but the i-th.
func (b *RNSBase) PuncturedProd(i int) *big.Int {
	return new(big.Int).Set(b.puncturedProd[i])
}

// InvPuncturedProdModBase returns (prod / moduli[i])^-1 mod moduli[i].
func (b *RNSBase) InvPuncturedProdModBase(i int) MulOperand {
	return b.invPuncturedProdModBase[i]
}

// Contains returns true if m is a modulus of the base.
func (b *RNSBase) Contains(m Modulus) bool {
	for _, q := range b.moduli {
		if q == m {
			return true
		}
	}
	return false
}

// IsSubbaseOf returns true if every modulus of b is a modulus of other.
func (b *RNSBase) IsSubbaseOf(other *RNSBase) bool {
	for _, q := range b.moduli {
		if !other.Contains(q) {
			return false
		}
	}
	return true
}

// IsSuperbaseOf returns true if every modulus of other is a modulus of b.
func (b *RNSBase) IsSuperbaseOf(other *RNSBase) bool {
	return other.IsSubbaseOf(b)
}

// Extend returns a new base with m appended.
func (b *RNSBase) Extend(m Modulus) (*RNSBase, error) {
	return NewRNSBase(append(b.Moduli(), m))
}

// Drop returns a new base without its last modulus.
func (b *RNSBase) Drop() (*RNSBase, error) {
	if len(b.moduli) == 1 {
		return nil, fmt.Errorf("%w: cannot drop from base of size 1", ErrLogic)
	}
	return NewRNSBase(b.moduli[:len(b.moduli)-1])
}

// Decompose returns the residues of x modulo the moduli of the base.
func (b *RNSBase) Decompose(x *big.Int) (residues []uint64) {
	residues = make([]uint64, len(b.moduli))
	tmp := new(big.Int)
	for i, m := range b.moduli {
		residues[i] = tmp.Mod(x, new(big.Int).SetUint64(m.value)).Uint64()
	}
	return
}

// Compose returns the unique integer in [0, prod) with the given residues.
func (b *RNSBase) Compose(residues []uint64) *big.Int {
	acc := new(big.Int)
	tmp := new(big.Int)
	for i, m := range b.moduli {
		t := MulShoup(BRedAdd(residues[i], m), b.invPuncturedProdModBase[i], m.value)
		acc.Add(acc, tmp.Mul(b.puncturedProd[i], new(big.Int).SetUint64(t)))
	}
	return acc.Mod(acc, b.prod)
}

// ComposeArray composes the coefficients of the polynomial whose limbs are
// given by in, one limb per modulus of the base, into out.
func (b *RNSBase) ComposeArray(in [][]uint64, out []*big.Int) {
	residues := make([]uint64, len(b.moduli))
	for j := range out {
		for i := range b.moduli {
			residues[i] = in[i][j]
		}
		if out[j] == nil {
			out[j] = new(big.Int)
		}
		out[j].Set(b.Compose(residues))
	}
}

// DecomposeArray decomposes the integers in, which must be in [0, prod), into
// the limbs of out, one limb per modulus of the base.
func (b *RNSBase) DecomposeArray(in []*big.Int, out [][]uint64) {
	for j := range in {
		for i, r := range b.Decompose(in[j]) {
			out[i][j] = r
		}
	}
}

// BaseConverter performs the fast (approximate) conversion of RNS residues
// from an input base to an output base.
type BaseConverter struct {
	ibase, obase *RNSBase

	// baseChangeMatrix[j][i] = (prod(ibase) / ibase[i]) mod obase[j]
	baseChangeMatrix [][]uint64
}

// NewBaseConverter creates a new [BaseConverter] from ibase to obase.
func NewBaseConverter(ibase, obase *RNSBase) *BaseConverter {

	conv := &BaseConverter{ibase: ibase, obase: obase}

	conv.baseChangeMatrix = make([][]uint64, obase.Size())
	tmp := new(big.Int)
	for j, p := range obase.moduli {
		pj := new(big.Int).SetUint64(p.value)
		conv.baseChangeMatrix[j] = make([]uint64, ibase.Size())
		for i := range ibase.moduli {
			conv.baseChangeMatrix[j][i] = tmp.Mod(ibase.puncturedProd[i], pj).Uint64()
		}
	}

	return conv
}

// InputBase returns the input base of the converter.
func (conv *BaseConverter) InputBase() *RNSBase {
	return conv.ibase
}

// OutputBase returns the output base of the converter.
func (conv *BaseConverter) OutputBase() *RNSBase {
	return conv.obase
}

// FastConvert converts the residues in (one per input modulus) to the residues
// out (one per output modulus) of sum_i [in_i * (Q/q_i)^-1]_{q_i} * Q/q_i, which
// equals the input integer plus a small multiple of Q.
func (conv *BaseConverter) FastConvert(in, out []uint64) {
	temp := make([]uint64, conv.ibase.Size())
	for i, q := range conv.ibase.moduli {
		temp[i] = MulShoup(in[i], conv.ibase.invPuncturedProdModBase[i], q.value)
	}
	for j, p := range conv.obase.moduli {
		out[j] = DotProductMod(temp, conv.baseChangeMatrix[j], p)
	}
}

// FastConvertArray applies [BaseConverter.FastConvert] to every coefficient of
// the polynomial whose limbs are in (one per input modulus), writing the
// limbs of out (one per output modulus). in and out must not overlap.
func (conv *BaseConverter) FastConvertArray(in, out [][]uint64) {

	N := len(in[0])
	isize := conv.ibase.Size()

	temp := make([]uint64, isize*N)
	for i, q := range conv.ibase.moduli {
		op := conv.ibase.invPuncturedProdModBase[i]
		t := temp[i*N : (i+1)*N]
		for k := range t {
			t[k] = MulShoup(in[i][k], op, q.value)
		}
	}

	col := make([]uint64, isize)
	for j, p := range conv.obase.moduli {
		row := conv.baseChangeMatrix[j]
		outj := out[j]
		for k := 0; k < N; k++ {
			for i := range col {
				col[i] = temp[i*N+k]
			}
			outj[k] = DotProductMod(col, row, p)
		}
	}
}

// ExactConvertArray converts the polynomial whose limbs are in (one per input
// modulus) to the unique single modulus of the output base, removing the
// multiple of Q introduced by the fast conversion with a floating point
// estimate. The input coefficients must be small enough relative to Q for
// the estimate to be exact.
func (conv *BaseConverter) ExactConvertArray(in [][]uint64, out []uint64) {

	if conv.obase.Size() != 1 {
		panic(fmt.Errorf("exact conversion requires an output base of size 1 but is %d", conv.obase.Size()))
	}

	p := conv.obase.moduli[0]
	qModP := new(big.Int).Mod(conv.ibase.prod, new(big.Int).SetUint64(p.value)).Uint64()
	row := conv.baseChangeMatrix[0]

	isize := conv.ibase.Size()
	temp := make([]uint64, isize)
	qInv := make([]float64, isize)
	for i, q := range conv.ibase.moduli {
		qInv[i] = 1 / float64(q.value)
	}

	for k := range out {

		var aggregated float64
		for i, q := range conv.ibase.moduli {
			temp[i] = MulShoup(in[i][k], conv.ibase.invPuncturedProdModBase[i], q.value)
			aggregated += float64(temp[i]) * qInv[i]
		}

		rounded := uint64(math.Round(aggregated))

		sum := DotProductMod(temp, row, p)
		out[k] = SubMod(sum, BRed(BRedAdd(rounded, p), qModP, p), p.value)
	}
}
