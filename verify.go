package stylus

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Verifier checks that a historical deployment transaction matches a local
// rebuild of the same contract.
type Verifier struct {
	provider ChainProvider
	cfg      *Config
}

// NewVerifier creates a verifier over the given provider.
func NewVerifier(provider ChainProvider, opts ...Option) *Verifier {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Verifier{provider: provider, cfg: cfg}
}

// VerificationResult is the outcome of a verification run. A nil Failure
// means the transaction matches the local rebuild byte-for-byte.
type VerificationResult struct {
	Failure *VerificationFailure
}

// Success reports whether the deployment matched.
func (r *VerificationResult) Success() bool {
	return r.Failure == nil
}

// VerificationFailure describes how the transaction and the local rebuild
// differ. Neither side is assumed authoritative.
type VerificationFailure struct {
	// PreludeMismatch is set when the first PreludeLength bytes differ.
	PreludeMismatch *PreludeMismatch

	// TxCodeLength is the tagged code length found in the transaction.
	TxCodeLength int

	// BuildCodeLength is the tagged code length of the local rebuild.
	BuildCodeLength int
}

// PreludeMismatch holds both preludes, hex encoded, for diagnostics.
type PreludeMismatch struct {
	Tx    string
	Build string
}

// Verify rebuilds the contract from raw module bytes and diffs it against
// the historical deployment transaction. A nil constructor means the local
// project declares no Stylus constructor.
//
// Transactions with an empty destination are treated as direct creation and
// compared byte-for-byte against the rebuilt DeploymentCalldata. Factory
// transactions are decoded as deploy(bytes,bytes,uint256,bytes32) calls and
// the embedded bytecode compared the same way; init-data arguments are not
// deep-compared.
func (v *Verifier) Verify(ctx context.Context, raw []byte, projectHash [32]byte, txHash common.Hash, constructor *Constructor) (*VerificationResult, error) {
	tx, _, err := v.provider.TransactionByHash(ctx, txHash)
	if err != nil || tx == nil {
		return nil, fmt.Errorf("%w: transaction %s", ErrNoCodeAtAddress, txHash.Hex())
	}
	receipt, err := v.provider.TransactionReceipt(ctx, txHash)
	if err != nil || receipt == nil {
		return nil, fmt.Errorf("stylus: fetching receipt for %s: %w", txHash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ErrTxNotSuccessful
	}

	code, _, err := PackageWasm(raw, projectHash, v.cfg.MaxCodeSize)
	if err != nil {
		return nil, err
	}
	contract, ok := code.(*ContractCode)
	if !ok {
		return nil, ErrFragmentedVerification
	}
	expected := NewDeploymentCalldata(contract.Bytes())

	if to := tx.To(); to != nil {
		return v.verifyFactoryDeployment(tx.Data(), expected, *to, constructor)
	}
	return compareCalldata(DeploymentCalldataFromBytes(tx.Data()), expected), nil
}

// verifyFactoryDeployment checks a constructor-mediated deployment: the
// transaction must target the known factory, call its deploy entry, and
// carry init data starting with the Stylus constructor selector.
func (v *Verifier) verifyFactoryDeployment(input []byte, expected DeploymentCalldata, factory common.Address, constructor *Constructor) (*VerificationResult, error) {
	if constructor == nil {
		return nil, ErrNoConstructor
	}
	if factory != v.cfg.Factory {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFactoryAddress, factory.Hex())
	}

	deployMethod := deployerABI.Methods["deploy"]
	if len(input) < 4 || !bytes.Equal(input[:4], deployMethod.ID) {
		return nil, ErrInvalidInitData
	}
	values, err := deployMethod.Inputs.Unpack(input[4:])
	if err != nil || len(values) != 4 {
		return nil, fmt.Errorf("%w: undecodable deploy call", ErrInvalidInitData)
	}
	bytecode, ok := values[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: undecodable deploy call", ErrInvalidInitData)
	}
	initData, ok := values[1].([]byte)
	if !ok || !bytes.HasPrefix(initData, constructorSelector) {
		return nil, ErrInvalidInitData
	}

	return compareCalldata(DeploymentCalldataFromBytes(bytecode), expected), nil
}

// compareCalldata diffs the transaction calldata against the local rebuild.
func compareCalldata(tx, build DeploymentCalldata) *VerificationResult {
	if bytes.Equal(tx.Bytes(), build.Bytes()) {
		return &VerificationResult{}
	}

	failure := &VerificationFailure{
		TxCodeLength:    len(tx.Code()),
		BuildCodeLength: len(build.Code()),
	}
	if !bytes.Equal(tx.Prelude(), build.Prelude()) {
		failure.PreludeMismatch = &PreludeMismatch{
			Tx:    hexutil.Encode(tx.Prelude()),
			Build: hexutil.Encode(build.Prelude()),
		}
	}
	return &VerificationResult{Failure: failure}
}
