package chain

import "github.com/ethereum/go-ethereum/accounts/abi"

// The rollup manager and per-rollup base contracts expose far more surface
// than this; these are only the read-only methods Discovery needs (§4.4).

func abiType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

func mustMethod(name string, inputTypes []string, outputTypes []string) abi.Method {
	inputs := make(abi.Arguments, len(inputTypes))
	for i, t := range inputTypes {
		inputs[i] = abi.Argument{Name: "arg", Type: abiType(t)}
	}
	outputs := make(abi.Arguments, len(outputTypes))
	for i, t := range outputTypes {
		outputs[i] = abi.Argument{Type: abiType(t)}
	}
	return abi.NewMethod(name, name, abi.Function, "view", false, false, inputs, outputs)
}

var (
	// rollupCount() view returns (uint32)
	MethodRollupCount = mustMethod("rollupCount", nil, []string{"uint32"})

	// rollupIDToRollupData(uint32) view returns (address rollupContract, ...)
	// Only the first output, the rollup's base contract address, is used.
	MethodRollupIDToRollupData = mustMethod("rollupIDToRollupData", []string{"uint32"}, []string{"address"})

	// trustedSequencerURL() view returns (string)
	MethodTrustedSequencerURL = mustMethod("trustedSequencerURL", nil, []string{"string"})

	// networkName() view returns (string)
	MethodNetworkName = mustMethod("networkName", nil, []string{"string"})

	// bridgeAddress() view returns (address)
	MethodBridgeAddress = mustMethod("bridgeAddress", nil, []string{"address"})
)
