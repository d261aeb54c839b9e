package stylus

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ContractStatus reports whether a packaged contract is already activated
// on-chain, and the suggested data fee when it is not.
type ContractStatus struct {
	// Code is the packaged code object.
	Code Code

	// UncompressedSize is the normalized module length, needed for the root
	// object of a fragmented deployment.
	UncompressedSize uint32

	// Active is true when the codehash is already registered and activated.
	Active bool

	// DataFee is the bumped activation fee. Zero when Active.
	DataFee *big.Int
}

// CheckWasm validates that a raw module can be deployed: it runs the full
// packaging pipeline, consults the codehash oracle, and simulates activation
// to price the data fee for contracts not yet on-chain. programAddress is
// where activation would occur; the zero address selects a random one.
func CheckWasm(ctx context.Context, provider ChainProvider, raw []byte, projectHash [32]byte, programAddress common.Address, opts ...Option) (*ContractStatus, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	code, uncompressedSize, err := PackageWasm(raw, projectHash, cfg.MaxCodeSize)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Debug("packaged contract", "codesize", code.Codesize(), "wasm_size", uncompressedSize)

	exists, err := NewOracle(provider).Exists(ctx, code.Codehash())
	if err != nil {
		return nil, err
	}
	if exists {
		return &ContractStatus{Code: code, UncompressedSize: uncompressedSize, Active: true, DataFee: new(big.Int)}, nil
	}

	if programAddress == (common.Address{}) {
		programAddress = randomAddress()
	}
	activator := NewActivator(provider, nil, opts...)
	fee, err := activator.DataFee(ctx, code.Bytes(), programAddress, common.Address{})
	if err != nil {
		return nil, err
	}
	return &ContractStatus{Code: code, UncompressedSize: uncompressedSize, DataFee: fee}, nil
}
