package ring

import "fmt"

// SecLevel is a security level according to the HomomorphicEncryption.org
// security standard, assuming a ternary secret and classical adversaries.
type SecLevel int

const (
	// SecLevelNone enforces no security bound.
	SecLevelNone SecLevel = iota
	// SecLevelTC128 is 128-bit classical security.
	SecLevelTC128
	// SecLevelTC192 is 192-bit classical security.
	SecLevelTC192
	// SecLevelTC256 is 256-bit classical security.
	SecLevelTC256
)

// DefaultSecLevel is the security level used when none is specified.
const DefaultSecLevel = SecLevelTC128

func (s SecLevel) String() string {
	switch s {
	case SecLevelNone:
		return "none"
	case SecLevelTC128:
		return "tc128"
	case SecLevelTC192:
		return "tc192"
	case SecLevelTC256:
		return "tc256"
	default:
		return fmt.Sprintf("SecLevel(%d)", int(s))
	}
}

// StandardErrorStdDev is the standard deviation of the error distribution
// recommended by the security standard.
const StandardErrorStdDev = 3.2

// StandardErrorMaxDev is the bound at which the error distribution is clipped.
const StandardErrorMaxDev = 6 * StandardErrorStdDev

// maximum total bit count of the coefficient modulus per ring degree
var maxBitCount = map[SecLevel]map[int]int{
	SecLevelTC128: {1024: 27, 2048: 54, 4096: 109, 8192: 218, 16384: 438, 32768: 881},
	SecLevelTC192: {1024: 19, 2048: 37, 4096: 75, 8192: 152, 16384: 305, 32768: 611},
	SecLevelTC256: {1024: 14, 2048: 29, 4096: 58, 8192: 118, 16384: 237, 32768: 476},
}

// bit sizes of the default BFV coefficient moduli, which exhaust the bound of each level
var defaultCoeffModulusBitSizes = map[SecLevel]map[int][]int{
	SecLevelTC128: {
		1024:  {27},
		2048:  {54},
		4096:  {36, 36, 37},
		8192:  {43, 43, 44, 44, 44},
		16384: {48, 48, 48, 49, 49, 49, 49, 49, 49},
		32768: {55, 55, 55, 55, 55, 55, 55, 55, 55, 55, 55, 55, 55, 55, 55, 56},
	},
	SecLevelTC192: {
		1024:  {19},
		2048:  {37},
		4096:  {25, 25, 25},
		8192:  {38, 38, 38, 38},
		16384: {50, 50, 50, 50, 50, 50},
		32768: {54, 54, 54, 54, 54, 55, 55, 55, 55, 55, 55},
	},
	SecLevelTC256: {
		1024:  {14},
		2048:  {29},
		4096:  {58},
		8192:  {39, 39, 40},
		16384: {47, 47, 47, 48, 48},
		32768: {52, 53, 53, 53, 53, 53, 53, 53, 53},
	},
}
