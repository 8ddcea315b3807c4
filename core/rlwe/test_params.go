package rlwe

var (
	// testInsecure are small parameter sets, one per scheme, for testing purposes only.
	testInsecure = []ParametersLiteral{
		{
			Scheme: SchemeBFV,
			LogN:   12,
			LogQ:   []int{45, 45, 45, 50},
			LogT:   20,
		},
		{
			Scheme: SchemeBGV,
			LogN:   12,
			LogQ:   []int{45, 45, 45, 50},
			LogT:   20,
		},
		{
			Scheme: SchemeCKKS,
			LogN:   12,
			LogQ:   []int{50, 40, 40, 55},
		},
	}
)
