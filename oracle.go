package stylus

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Oracle answers whether a code object is already registered and activated
// on-chain, keyed by its canonical codehash.
type Oracle struct {
	provider ChainProvider
}

// NewOracle creates an oracle over the given provider.
func NewOracle(provider ChainProvider) *Oracle {
	return &Oracle{provider: provider}
}

// notActivatedErrors are the ArbWasm revert reasons that mean "this codehash
// is not currently activated". Only these three map to a false result; any
// other revert is escalated.
var notActivatedErrors = []string{
	"ProgramNotActivated",
	"ProgramNeedsUpgrade",
	"ProgramExpired",
}

// Exists queries codehashVersion for the codehash. A successful call means
// the code is registered with the current Stylus version. The three known
// "not activated" revert reasons map to false; any other revert is returned
// as ErrUnexpectedPrecompile, never silently treated as "not activated".
func (o *Oracle) Exists(ctx context.Context, codehash common.Hash) (bool, error) {
	calldata, err := arbWasmABI.Pack("codehashVersion", [32]byte(codehash))
	if err != nil {
		return false, fmt.Errorf("stylus: packing codehashVersion: %w", err)
	}
	_, err = o.provider.CallContract(ctx, ethereum.CallMsg{
		To:   &ArbWasmAddress,
		Data: calldata,
	}, nil)
	if err == nil {
		return true, nil
	}

	data, ok := revertData(err)
	if !ok || len(data) < 4 {
		return false, fmt.Errorf("%w: %v", ErrUnexpectedPrecompile, err)
	}
	for _, name := range notActivatedErrors {
		id := arbWasmABI.Errors[name].ID
		if bytes.Equal(data[:4], id[:4]) {
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %v", ErrUnexpectedPrecompile, err)
}
