package stylus

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

// missingEntrypointMarker appears in activation reverts when the module lacks
// the memory-growth hostio every entrypoint-bearing contract imports. Matching
// on it is a heuristic; there is no structured error for this condition.
const missingEntrypointMarker = "pay_for_memory_grow"

// Activator computes activation data fees and submits activation
// transactions against the ArbWasm precompile.
type Activator struct {
	provider ChainProvider
	deployer *Deployer
	cfg      *Config
}

// NewActivator creates an activator. The deployer supplies transaction
// submission and may be nil when only fee simulation is needed.
func NewActivator(provider ChainProvider, deployer *Deployer, opts ...Option) *Activator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Activator{
		provider: provider,
		deployer: deployer,
		cfg:      cfg,
	}
}

// DataFee simulates activateProgram to learn the one-time data fee for the
// given code, then bumps it by the configured percentage (integer floor).
// The simulation overrides the target address's code with code and the
// sender's balance with the maximum value; when from is the zero address a
// random throwaway sender is used.
func (a *Activator) DataFee(ctx context.Context, code []byte, program common.Address, from common.Address) (*big.Int, error) {
	if from == (common.Address{}) {
		from = randomAddress()
	}
	calldata, err := arbWasmABI.Pack("activateProgram", program)
	if err != nil {
		return nil, fmt.Errorf("stylus: packing activateProgram: %w", err)
	}

	overrides := StateOverride{
		program: {Code: code},
		from:    {Balance: math.MaxBig256},
	}
	msg := ethereum.CallMsg{
		From:  from,
		To:    &ArbWasmAddress,
		Value: big.NewInt(params.Ether),
		Data:  calldata,
	}
	output, err := a.provider.CallContractWithOverrides(ctx, msg, overrides)
	if err != nil {
		return nil, classifyActivationError(err)
	}

	values, err := arbWasmABI.Unpack("activateProgram", output)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("stylus: decoding activateProgram result: %w", err)
	}
	dataFee, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("stylus: decoding activateProgram result: unexpected type %T", values[0])
	}

	adjusted := bumpDataFee(dataFee, a.cfg.DataFeeBumpPercent)
	a.cfg.Logger.Debug("wasm data fee", "fee", adjusted, "original", dataFee, "bump", a.cfg.DataFeeBumpPercent)
	return adjusted, nil
}

// Activate activates an already deployed contract. It fetches the real
// deployed code, computes the data fee with the signer as sender, and sends
// activateProgram with the fee as value.
func (a *Activator) Activate(ctx context.Context, program common.Address) (*types.Receipt, error) {
	code, err := a.provider.CodeAt(ctx, program, nil)
	if err != nil {
		return nil, fmt.Errorf("stylus: fetching code at %s: %w", program.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCodeAtAddress, program.Hex())
	}

	sender := a.deployer.signer.Address()
	fee, err := a.DataFee(ctx, code, program, sender)
	if err != nil {
		return nil, err
	}

	balance, err := a.provider.BalanceAt(ctx, sender, nil)
	if err != nil {
		return nil, fmt.Errorf("stylus: fetching balance: %w", err)
	}
	if balance.Cmp(fee) < 0 {
		return nil, &InsufficientFundsError{From: sender, Balance: balance, Need: fee}
	}

	calldata, err := arbWasmABI.Pack("activateProgram", program)
	if err != nil {
		return nil, fmt.Errorf("stylus: packing activateProgram: %w", err)
	}
	receipt, err := a.deployer.submit(ctx, &ArbWasmAddress, fee, calldata)
	if err != nil {
		return nil, classifyActivationError(err)
	}
	a.cfg.Logger.Info("activated contract", "address", program, "tx", receipt.TxHash)
	return receipt, nil
}

// EstimateGas estimates the gas for activating the contract at program,
// including the data-fee value transfer.
func (a *Activator) EstimateGas(ctx context.Context, program common.Address) (uint64, error) {
	code, err := a.provider.CodeAt(ctx, program, nil)
	if err != nil {
		return 0, fmt.Errorf("stylus: fetching code at %s: %w", program.Hex(), err)
	}
	sender := a.deployer.signer.Address()
	fee, err := a.DataFee(ctx, code, program, sender)
	if err != nil {
		return 0, err
	}
	calldata, err := arbWasmABI.Pack("activateProgram", program)
	if err != nil {
		return 0, fmt.Errorf("stylus: packing activateProgram: %w", err)
	}
	gas, err := a.provider.EstimateGas(ctx, ethereum.CallMsg{
		From:  sender,
		To:    &ArbWasmAddress,
		Value: fee,
		Data:  calldata,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGasEstimation, err)
	}
	return gas, nil
}

// bumpDataFee pads fee by percent, flooring the division.
func bumpDataFee(fee *big.Int, percent uint64) *big.Int {
	adjusted := new(big.Int).Mul(fee, new(big.Int).SetUint64(100+percent))
	return adjusted.Div(adjusted, big.NewInt(100))
}

// classifyActivationError maps the missing-entrypoint revert onto
// ErrMissingEntrypoint; everything else passes through as a ContractError.
func classifyActivationError(err error) error {
	if strings.Contains(err.Error(), missingEntrypointMarker) {
		return ErrMissingEntrypoint
	}
	if data, ok := revertData(err); ok {
		if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
			if strings.Contains(reason, missingEntrypointMarker) {
				return ErrMissingEntrypoint
			}
			return &ContractError{Err: fmt.Errorf("%s: %w", reason, err)}
		}
	}
	return &ContractError{Err: err}
}

// randomAddress returns a throwaway sender for fee simulation.
func randomAddress() common.Address {
	var addr common.Address
	rand.Read(addr[:])
	return addr
}
