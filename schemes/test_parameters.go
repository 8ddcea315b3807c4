package schemes

import "github.com/levelhe/levelhe/core/rlwe"

var (
	// BgvTestInsecure are insecure parameters used for the sole purpose of fast testing.
	BgvTestInsecure = rlwe.ParametersLiteral{
		Scheme: rlwe.SchemeBGV,
		LogN:   12,
		LogQ:   []int{45, 45, 45, 50},
		LogT:   20,
	}

	// BfvTestInsecure are insecure parameters used for the sole purpose of fast testing.
	BfvTestInsecure = rlwe.ParametersLiteral{
		Scheme: rlwe.SchemeBFV,
		LogN:   12,
		LogQ:   []int{36, 36, 37, 50},
		LogT:   17,
	}

	// BatchingTestParams are the parameters of the integer schemes tests.
	BatchingTestParams = []rlwe.ParametersLiteral{BgvTestInsecure, BfvTestInsecure}
)

var (
	// CkksTestInsecurePrec40 are insecure parameters used for the sole purpose of fast testing.
	CkksTestInsecurePrec40 = rlwe.ParametersLiteral{
		Scheme: rlwe.SchemeCKKS,
		LogN:   12,
		LogQ:   []int{55, 40, 40, 60},
	}

	// CkksTestInsecurePrec30 are insecure parameters used for the sole purpose of fast testing.
	CkksTestInsecurePrec30 = rlwe.ParametersLiteral{
		Scheme: rlwe.SchemeCKKS,
		LogN:   11,
		LogQ:   []int{50, 30, 50},
	}

	CkksTestParametersLiteral = []rlwe.ParametersLiteral{CkksTestInsecurePrec40, CkksTestInsecurePrec30}
)
