package stylus

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors for common failure conditions.
var (
	// ErrMissingReceiptAddress indicates a creation receipt carried no contract address.
	ErrMissingReceiptAddress = errors.New("stylus: deployment receipt is missing a contract address")

	// ErrNoContractAddress indicates the factory receipt carried no ContractDeployed event.
	ErrNoContractAddress = errors.New("stylus: no contract address in deployment logs")

	// ErrGasEstimation indicates the node rejected the gas estimation call.
	ErrGasEstimation = errors.New("stylus: gas estimation failed")

	// ErrMissingEntrypoint indicates activation reverted in a way that suggests the
	// contract was compiled without a Stylus entrypoint. This is a heuristic based
	// on the pay_for_memory_grow hostio appearing in the revert message.
	ErrMissingEntrypoint = errors.New("stylus: contract is missing an entrypoint")

	// ErrNoCodeAtAddress indicates no deployment transaction or code was found.
	ErrNoCodeAtAddress = errors.New("stylus: no code at address")

	// ErrInvalidInitData indicates factory init data does not call the Stylus constructor.
	ErrInvalidInitData = errors.New("stylus: invalid init data: constructor not called")

	// ErrNoConstructor indicates the deployment used a constructor but the local
	// project does not declare one.
	ErrNoConstructor = errors.New("stylus: deployment uses a constructor but the local project has none")

	// ErrInvalidFactoryAddress indicates the transaction targeted an unknown factory.
	ErrInvalidFactoryAddress = errors.New("stylus: invalid factory address")

	// ErrTxNotSuccessful indicates the historical deployment transaction reverted.
	ErrTxNotSuccessful = errors.New("stylus: deployment transaction not successful")

	// ErrUnexpectedPrecompile indicates the ArbWasm precompile reverted with a
	// reason this package does not recognize. It is never silently mapped to
	// "not activated".
	ErrUnexpectedPrecompile = errors.New("stylus: unexpected ArbWasm precompile error")

	// ErrInvalidState indicates a deployer state transition that is not allowed.
	ErrInvalidState = errors.New("stylus: invalid deployer state transition")

	// ErrFragmentedVerification indicates the local rebuild produced a fragmented
	// contract, which verification does not yet support.
	ErrFragmentedVerification = errors.New("stylus: verification of fragmented deployments is not supported")
)

// WasmStage identifies the normalization stage that failed.
type WasmStage uint8

const (
	// StageRead is the initial binary parse of the module.
	StageRead WasmStage = iota

	// StageStrip is the removal of custom and unknown sections.
	StageStrip

	// StageReencode is the final validation pass over the emitted bytes.
	StageReencode
)

func (s WasmStage) String() string {
	switch s {
	case StageRead:
		return "read"
	case StageStrip:
		return "strip"
	case StageReencode:
		return "reencode"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// WasmError indicates a failure while normalizing a WASM module.
type WasmError struct {
	Stage WasmStage
	Err   error
}

func (e *WasmError) Error() string {
	return fmt.Sprintf("stylus: wasm %s: %v", e.Stage, e.Err)
}

func (e *WasmError) Unwrap() error {
	return e.Err
}

// CompressionError indicates the brotli codec failed.
type CompressionError struct {
	Err error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("stylus: compression failed: %v", e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

// ArgCoercionError indicates a constructor argument could not be coerced to
// its ABI type, or the argument count does not match the constructor.
type ArgCoercionError struct {
	Index int
	Type  string
	Err   error
}

func (e *ArgCoercionError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("stylus: constructor arguments: %v", e.Err)
	}
	return fmt.Sprintf("stylus: constructor argument %d (%s): %v", e.Index, e.Type, e.Err)
}

func (e *ArgCoercionError) Unwrap() error {
	return e.Err
}

// ContractError wraps a revert from an on-chain call that passed through
// without further classification.
type ContractError struct {
	Err error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("stylus: contract error: %v", e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// TxRevertedError indicates a submitted transaction reverted on-chain.
type TxRevertedError struct {
	TxHash common.Hash
}

func (e *TxRevertedError) Error() string {
	return fmt.Sprintf("stylus: transaction reverted: %s", e.TxHash.Hex())
}

// InsufficientFundsError indicates the sender cannot cover the data fee.
type InsufficientFundsError struct {
	From    common.Address
	Balance *big.Int
	Need    *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("stylus: not enough funds in account %s to pay data fee: balance %v < %v wei",
		e.From.Hex(), e.Balance, e.Need)
}
